package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"voice_assistant_client/internal/audio"
	"voice_assistant_client/internal/config"
	"voice_assistant_client/internal/control"
	"voice_assistant_client/internal/events"
	"voice_assistant_client/internal/gateway"
	"voice_assistant_client/internal/session"
	"voice_assistant_client/internal/tools"
)

// App is the console front end. It stands in for the device UI: it owns
// the in-memory state the tools mutate and renders session events.
type App struct {
	cfg      *config.Config
	logger   zerolog.Logger
	observer events.Observer

	recorder   *audio.Recorder
	player     *audio.Player
	scheduler  *audio.Scheduler
	gateway    *gateway.Client
	controller *session.Controller
	stdin      *control.StdinMonitor

	// Device state mutated by the tool environment.
	envMu         sync.Mutex
	activeCall    string
	reminders     []string
	notifications []string
	images        []events.Reference

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp wires every component together.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		// A couple of unread notifications so check_notifications has
		// something to say on a fresh start.
		notifications: []string{
			"Calendar: standup at 9:30",
			"Battery at 85 percent",
		},
	}
	app.observer = events.NewMultiObserver(events.NewLogObserver(logger))

	app.recorder = audio.NewRecorder(&cfg.Audio, logger)
	app.player = audio.NewPlayer(&cfg.Audio)
	app.scheduler = audio.NewScheduler(app.player, cfg.Audio.PlaybackRate)
	app.gateway = gateway.NewClient(&cfg.Gateway, logger)

	dispatcher := tools.NewDispatcher(app, tools.NewImageGenerator(&cfg.Tools), app.observer, logger)
	app.controller = session.NewController(cfg, app.recorder, app.gateway,
		app.scheduler, dispatcher, app.observer, logger)

	app.stdin = control.NewStdinMonitor(ctx, app, logger)
	return app
}

// Start acquires the audio devices and begins reading console commands.
func (app *App) Start() error {
	if err := app.recorder.Initialize(); err != nil {
		return err
	}
	if err := app.player.Start(); err != nil {
		return err
	}
	return app.stdin.Start()
}

// Stop tears everything down in dependency order.
func (app *App) Stop() error {
	app.cancel()
	app.stdin.Stop()

	if err := app.controller.Disconnect(); err != nil {
		app.logger.Warn().Err(err).Msg("disconnect failed")
	}
	if err := app.player.Close(); err != nil {
		app.logger.Warn().Err(err).Msg("closing player failed")
	}
	if err := app.recorder.Terminate(); err != nil {
		app.logger.Warn().Err(err).Msg("terminating recorder failed")
	}

	app.wg.Wait()
	app.logger.Info().Msg("shut down")
	return nil
}

// Wait blocks until the application is asked to exit.
func (app *App) Wait() {
	<-app.ctx.Done()
}

// === control.Handler ===

// HandleCommand reacts to console commands.
func (app *App) HandleCommand(cmd control.Command) {
	switch cmd {
	case control.CmdConnect:
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.controller.Connect(app.ctx); err != nil {
				app.logger.Error().Err(err).Msg("connect failed")
			}
		}()

	case control.CmdDisconnect:
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.controller.Disconnect(); err != nil {
				app.logger.Error().Err(err).Msg("disconnect failed")
			}
		}()

	case control.CmdStatus:
		app.envMu.Lock()
		fmt.Printf("state: %s  call: %q  reminders: %d  images: %d\n",
			app.controller.State(), app.activeCall, len(app.reminders), len(app.images))
		app.envMu.Unlock()

	case control.CmdQuit:
		app.logger.Info().Msg("quit requested")
		app.cancel()
	}
}

// === tools.Environment ===

func (app *App) effect(name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["name"] = name
	app.observer.OnEvent(events.New(events.TypeToolEffect, events.LevelAction, "device", data))
}

// StartCall places a call; only one can be active.
func (app *App) StartCall(contact string) error {
	app.envMu.Lock()
	defer app.envMu.Unlock()
	if app.activeCall != "" {
		return fmt.Errorf("a call with %s is already active", app.activeCall)
	}
	app.activeCall = contact
	app.effect("start_call", map[string]any{"contact": contact})
	return nil
}

// EndCall hangs up the active call.
func (app *App) EndCall() error {
	app.envMu.Lock()
	defer app.envMu.Unlock()
	if app.activeCall == "" {
		return fmt.Errorf("no call is active")
	}
	contact := app.activeCall
	app.activeCall = ""
	app.effect("end_call", map[string]any{"contact": contact})
	return nil
}

// SendMessage records an outgoing text message.
func (app *App) SendMessage(contact, body string) error {
	app.effect("send_message", map[string]any{"contact": contact, "message": body})
	return nil
}

// SetReminder appends to the reminder list.
func (app *App) SetReminder(task, when string) error {
	app.envMu.Lock()
	defer app.envMu.Unlock()
	entry := task
	if when != "" {
		entry = fmt.Sprintf("%s (%s)", task, when)
	}
	app.reminders = append(app.reminders, entry)
	app.effect("set_reminder", map[string]any{"task": task, "time": when, "count": len(app.reminders)})
	return nil
}

// Notifications returns the unread notifications and marks them read.
func (app *App) Notifications() ([]string, error) {
	app.envMu.Lock()
	defer app.envMu.Unlock()
	notes := app.notifications
	app.notifications = nil
	app.effect("check_notifications", map[string]any{"count": len(notes)})
	return notes, nil
}

// ControlScreen performs a named screen action.
func (app *App) ControlScreen(action string) error {
	switch action {
	case "brighten", "dim", "lock", "unlock", "home":
		app.effect("control_screen", map[string]any{"action": action})
		return nil
	default:
		return fmt.Errorf("unsupported screen action %q", action)
	}
}

// ShowWeather resolves a canned forecast and displays it.
func (app *App) ShowWeather(location string) (tools.Weather, error) {
	if location == "" {
		return tools.Weather{}, fmt.Errorf("no location given")
	}
	// No live weather backend on the console; a deterministic canned
	// forecast keeps the tool path end-to-end exercised.
	w := tools.Weather{Location: location, Condition: "partly cloudy", Temperature: 18}
	app.effect("show_weather", map[string]any{
		"location": w.Location, "condition": w.Condition, "temperature": w.Temperature,
	})
	return w, nil
}

// ShowImage records a generated image reference for display.
func (app *App) ShowImage(prompt, url string) error {
	app.envMu.Lock()
	defer app.envMu.Unlock()
	app.images = append(app.images, events.Reference{Title: prompt, URL: url})
	app.effect("generate_image", map[string]any{"prompt": prompt, "url": url})
	return nil
}
