// Package tools executes model-issued tool calls against the device
// environment. The tool set is a fixed contract with the remote model; it
// must never grow or shrink silently.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"voice_assistant_client/internal/events"
	"voice_assistant_client/internal/gateway"
)

// Handler executes one tool call. The returned string is spoken back by
// the model, so it is phrased as an instruction to confirm out loud.
type Handler func(ctx context.Context, args Args) (string, error)

// Args is the named-argument map of a tool call.
type Args map[string]any

// String returns the named argument as a string, or an error when absent
// or of the wrong type. Numbers are accepted and formatted.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", missingArg(key)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return fmt.Sprintf("%g", s), nil
	default:
		return "", fmt.Errorf("argument %s has unexpected type %T", key, v)
	}
}

// StringOr returns the named argument as a string, or fallback when absent.
func (a Args) StringOr(key, fallback string) string {
	s, err := a.String(key)
	if err != nil {
		return fallback
	}
	return s
}

// Dispatcher maps tool names to handlers. It holds no state beyond the
// fixed registry; all side effects go through the Environment.
type Dispatcher struct {
	env      Environment
	images   *ImageGenerator
	observer events.Observer
	logger   zerolog.Logger
	handlers map[string]Handler
}

// NewDispatcher builds the dispatcher with the full fixed tool set.
// images may be nil, in which case generate_image reports failure.
func NewDispatcher(env Environment, images *ImageGenerator, observer events.Observer, logger zerolog.Logger) *Dispatcher {
	if observer == nil {
		observer = events.NoopObserver{}
	}
	d := &Dispatcher{
		env:      env,
		images:   images,
		observer: observer,
		logger:   logger,
	}
	d.handlers = map[string]Handler{
		"start_call":          d.startCall,
		"end_call":            d.endCall,
		"send_message":        d.sendMessage,
		"set_reminder":        d.setReminder,
		"check_notifications": d.checkNotifications,
		"control_screen":      d.controlScreen,
		"show_weather":        d.showWeather,
		"generate_image":      d.generateImage,
	}
	return d
}

// Dispatch runs one tool call to completion and always returns exactly one
// response with the call's id. Handler errors and panics are absorbed into
// the result string; a tool can never kill the session.
func (d *Dispatcher) Dispatch(ctx context.Context, call gateway.ToolCall) gateway.ToolResponse {
	d.observer.OnEvent(events.New(events.TypeToolCall, events.LevelAction, "tools", map[string]any{
		"id":   call.ID,
		"name": call.Name,
		"args": map[string]any(call.Args),
	}))

	result := d.run(ctx, call)

	d.observer.OnEvent(events.New(events.TypeToolResult, events.LevelAction, "tools", map[string]any{
		"id":     call.ID,
		"name":   call.Name,
		"result": result,
	}))
	return gateway.ToolResponse{ID: call.ID, Name: call.Name, Result: result}
}

func (d *Dispatcher) run(ctx context.Context, call gateway.ToolCall) (result string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("tool", call.Name).Any("panic", r).Msg("tool handler panicked")
			result = fmt.Sprintf(
				"The %s tool failed unexpectedly (%v). Apologize to the user and say the action did not complete.",
				call.Name, r)
		}
	}()

	result, err := d.execute(ctx, call)
	if err != nil {
		d.logger.Warn().Err(err).Str("tool", call.Name).Msg("tool call failed")
		if errors.Is(err, ErrUnknownTool) {
			return fmt.Sprintf(
				"The tool %q is not recognized on this device. Tell the user that action is not supported.",
				call.Name)
		}
		return fmt.Sprintf(
			"The %s action failed: %v. Apologize and tell the user what went wrong.",
			call.Name, err)
	}
	return result
}

// execute looks the handler up and runs it.
func (d *Dispatcher) execute(ctx context.Context, call gateway.ToolCall) (string, error) {
	handler, ok := d.handlers[call.Name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}
	return handler(ctx, Args(call.Args))
}
