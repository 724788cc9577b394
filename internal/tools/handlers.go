package tools

import (
	"context"
	"fmt"
	"strings"
)

func (d *Dispatcher) startCall(_ context.Context, args Args) (string, error) {
	contact, err := args.String("contact")
	if err != nil {
		return "", err
	}
	if err := d.env.StartCall(contact); err != nil {
		return "", err
	}
	return fmt.Sprintf("Calling %s now. Tell the user the call is being placed.", contact), nil
}

func (d *Dispatcher) endCall(_ context.Context, _ Args) (string, error) {
	if err := d.env.EndCall(); err != nil {
		return "", err
	}
	return "The call has ended. Confirm to the user that you hung up.", nil
}

func (d *Dispatcher) sendMessage(_ context.Context, args Args) (string, error) {
	contact, err := args.String("contact")
	if err != nil {
		return "", err
	}
	body, err := args.String("message")
	if err != nil {
		return "", err
	}
	if err := d.env.SendMessage(contact, body); err != nil {
		return "", err
	}
	return fmt.Sprintf("Message to %s sent. Confirm to the user that it was delivered.", contact), nil
}

func (d *Dispatcher) setReminder(_ context.Context, args Args) (string, error) {
	task, err := args.String("task")
	if err != nil {
		return "", err
	}
	when := args.StringOr("time", "")
	if err := d.env.SetReminder(task, when); err != nil {
		return "", err
	}
	if when != "" {
		return fmt.Sprintf("Reminder stored: %s at %s. Confirm to the user that the reminder is set.", task, when), nil
	}
	return fmt.Sprintf("Reminder stored: %s. Confirm to the user that the reminder is set.", task), nil
}

func (d *Dispatcher) checkNotifications(_ context.Context, _ Args) (string, error) {
	notes, err := d.env.Notifications()
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return "There are no new notifications. Tell the user their inbox is clear.", nil
	}
	return fmt.Sprintf("There are %d notifications: %s. Read them to the user.",
		len(notes), strings.Join(notes, "; ")), nil
}

func (d *Dispatcher) controlScreen(_ context.Context, args Args) (string, error) {
	action, err := args.String("action")
	if err != nil {
		return "", err
	}
	if err := d.env.ControlScreen(action); err != nil {
		return "", err
	}
	return fmt.Sprintf("Screen action %q performed. Confirm to the user that it is done.", action), nil
}

func (d *Dispatcher) showWeather(_ context.Context, args Args) (string, error) {
	location, err := args.String("location")
	if err != nil {
		return "", err
	}
	w, err := d.env.ShowWeather(location)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"The weather in %s is now on screen: %s, %.0f degrees. Describe it to the user.",
		w.Location, w.Condition, w.Temperature), nil
}

func (d *Dispatcher) generateImage(ctx context.Context, args Args) (string, error) {
	prompt, err := args.String("prompt")
	if err != nil {
		return "", err
	}
	if d.images == nil {
		return "", fmt.Errorf("image generation is not configured")
	}
	url, err := d.images.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := d.env.ShowImage(prompt, url); err != nil {
		return "", err
	}
	return fmt.Sprintf("An image for %q is ready and on screen. Tell the user to take a look.", prompt), nil
}
