package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice_assistant_client/internal/config"
	"voice_assistant_client/internal/events"
	"voice_assistant_client/internal/gateway"
)

// fakeEnv records every side effect and can be told to fail or panic.
type fakeEnv struct {
	mu        sync.Mutex
	actions   []string
	reminders []string
	notes     []string
	failWith  error
	panicWith any
}

func (e *fakeEnv) record(s string) error {
	if e.panicWith != nil {
		panic(e.panicWith)
	}
	if e.failWith != nil {
		return e.failWith
	}
	e.mu.Lock()
	e.actions = append(e.actions, s)
	e.mu.Unlock()
	return nil
}

func (e *fakeEnv) StartCall(contact string) error { return e.record("call " + contact) }
func (e *fakeEnv) EndCall() error                 { return e.record("hangup") }
func (e *fakeEnv) SendMessage(contact, body string) error {
	return e.record(fmt.Sprintf("msg %s: %s", contact, body))
}
func (e *fakeEnv) SetReminder(task, when string) error {
	if err := e.record("remind " + task); err != nil {
		return err
	}
	e.reminders = append(e.reminders, task)
	return nil
}
func (e *fakeEnv) Notifications() ([]string, error) {
	if err := e.record("notifications"); err != nil {
		return nil, err
	}
	return e.notes, nil
}
func (e *fakeEnv) ControlScreen(action string) error { return e.record("screen " + action) }
func (e *fakeEnv) ShowWeather(location string) (Weather, error) {
	if err := e.record("weather " + location); err != nil {
		return Weather{}, err
	}
	return Weather{Location: location, Condition: "cloudy", Temperature: 14}, nil
}
func (e *fakeEnv) ShowImage(prompt, url string) error {
	return e.record(fmt.Sprintf("image %s -> %s", prompt, url))
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) OnEvent(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func newDispatcher(env *fakeEnv) (*Dispatcher, *eventRecorder) {
	rec := &eventRecorder{}
	return NewDispatcher(env, nil, rec, zerolog.Nop()), rec
}

func call(id, name string, args map[string]any) gateway.ToolCall {
	return gateway.ToolCall{ID: id, Name: name, Args: args}
}

func TestDispatch_Handlers(t *testing.T) {
	tests := []struct {
		name       string
		call       gateway.ToolCall
		wantResult string
		wantAction string
	}{
		{
			name:       "start call",
			call:       call("1", "start_call", map[string]any{"contact": "Dana"}),
			wantResult: "Calling Dana now",
			wantAction: "call Dana",
		},
		{
			name:       "end call",
			call:       call("2", "end_call", nil),
			wantResult: "The call has ended",
			wantAction: "hangup",
		},
		{
			name:       "send message",
			call:       call("3", "send_message", map[string]any{"contact": "Dana", "message": "running late"}),
			wantResult: "Message to Dana sent",
			wantAction: "msg Dana: running late",
		},
		{
			name:       "set reminder with time",
			call:       call("4", "set_reminder", map[string]any{"task": "water plants", "time": "6pm"}),
			wantResult: "Reminder stored: water plants at 6pm",
			wantAction: "remind water plants",
		},
		{
			name:       "check notifications empty",
			call:       call("5", "check_notifications", nil),
			wantResult: "no new notifications",
			wantAction: "notifications",
		},
		{
			name:       "control screen",
			call:       call("6", "control_screen", map[string]any{"action": "dim"}),
			wantResult: `Screen action "dim" performed`,
			wantAction: "screen dim",
		},
		{
			name:       "show weather",
			call:       call("7", "show_weather", map[string]any{"location": "Oslo"}),
			wantResult: "cloudy, 14 degrees",
			wantAction: "weather Oslo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &fakeEnv{}
			d, _ := newDispatcher(env)

			resp := d.Dispatch(context.Background(), tt.call)

			assert.Equal(t, tt.call.ID, resp.ID)
			assert.Equal(t, tt.call.Name, resp.Name)
			assert.Contains(t, resp.Result, tt.wantResult)
			assert.Contains(t, env.actions, tt.wantAction)
		})
	}
}

func TestDispatch_BatchPreservesOrder(t *testing.T) {
	env := &fakeEnv{}
	d, _ := newDispatcher(env)

	batch := []gateway.ToolCall{
		call("a", "set_reminder", map[string]any{"task": "buy milk"}),
		call("b", "unknown_tool", map[string]any{}),
	}

	var responses []gateway.ToolResponse
	for _, c := range batch {
		responses = append(responses, d.Dispatch(context.Background(), c))
	}

	require.Len(t, responses, 2)
	assert.Equal(t, "a", responses[0].ID)
	assert.Contains(t, responses[0].Result, "Reminder stored: buy milk")
	assert.Equal(t, "b", responses[1].ID)
	assert.Contains(t, responses[1].Result, "not recognized")
	assert.Equal(t, []string{"buy milk"}, env.reminders)
}

func TestDispatch_UnknownTool(t *testing.T) {
	d, _ := newDispatcher(&fakeEnv{})

	resp := d.Dispatch(context.Background(), call("x", "reboot_universe", nil))

	assert.Equal(t, "x", resp.ID)
	assert.Equal(t, "reboot_universe", resp.Name)
	assert.Contains(t, resp.Result, "not recognized")
}

func TestExecute_UnknownToolSentinel(t *testing.T) {
	d, _ := newDispatcher(&fakeEnv{})

	_, err := d.execute(context.Background(), call("x", "reboot_universe", nil))

	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestDispatch_MissingArgument(t *testing.T) {
	d, _ := newDispatcher(&fakeEnv{})

	resp := d.Dispatch(context.Background(), call("x", "start_call", map[string]any{}))

	assert.Equal(t, "x", resp.ID)
	assert.Contains(t, resp.Result, "failed")
	assert.Contains(t, resp.Result, "contact")
}

func TestDispatch_EnvironmentError(t *testing.T) {
	env := &fakeEnv{failWith: fmt.Errorf("radio is off")}
	d, _ := newDispatcher(env)

	resp := d.Dispatch(context.Background(), call("x", "start_call", map[string]any{"contact": "Dana"}))

	assert.Equal(t, "x", resp.ID)
	assert.Contains(t, resp.Result, "radio is off")
	assert.Contains(t, resp.Result, "Apologize")
}

func TestDispatch_HandlerPanic(t *testing.T) {
	env := &fakeEnv{panicWith: "display driver gone"}
	d, _ := newDispatcher(env)

	resp := d.Dispatch(context.Background(), call("x", "control_screen", map[string]any{"action": "dim"}))

	assert.Equal(t, "x", resp.ID)
	assert.Contains(t, resp.Result, "failed unexpectedly")
	assert.Contains(t, resp.Result, "display driver gone")
}

func TestDispatch_NotificationsRead(t *testing.T) {
	env := &fakeEnv{notes: []string{"Dana: see you at 6", "battery low"}}
	d, _ := newDispatcher(env)

	resp := d.Dispatch(context.Background(), call("n", "check_notifications", nil))

	assert.Contains(t, resp.Result, "2 notifications")
	assert.Contains(t, resp.Result, "Dana: see you at 6")
}

func TestDispatch_EmitsEvents(t *testing.T) {
	d, rec := newDispatcher(&fakeEnv{})

	d.Dispatch(context.Background(), call("e1", "end_call", nil))

	require.Len(t, rec.events, 2)
	assert.Equal(t, events.TypeToolCall, rec.events[0].Type)
	assert.Equal(t, "e1", rec.events[0].Data["id"])
	assert.Equal(t, events.TypeToolResult, rec.events[1].Type)
	assert.Equal(t, "end_call", rec.events[1].Data["name"])
}

func TestGenerateImage_EndToEnd(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			// One transient failure; the generator retries.
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, `{"url": "https://img.example.test/42.png"}`)
	}))
	defer server.Close()

	cfg := config.Default().Tools
	cfg.ImageEndpoint = server.URL
	gen := NewImageGenerator(&cfg)

	env := &fakeEnv{}
	d := NewDispatcher(env, gen, nil, zerolog.Nop())

	resp := d.Dispatch(context.Background(), call("i", "generate_image", map[string]any{"prompt": "a red fox"}))

	assert.Equal(t, "i", resp.ID)
	assert.Contains(t, resp.Result, `"a red fox"`)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, env.actions, "image a red fox -> https://img.example.test/42.png")
}

func TestGenerateImage_ClientErrorIsNotRetried(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := config.Default().Tools
	cfg.ImageEndpoint = server.URL
	gen := NewImageGenerator(&cfg)

	d := NewDispatcher(&fakeEnv{}, gen, nil, zerolog.Nop())
	resp := d.Dispatch(context.Background(), call("i", "generate_image", map[string]any{"prompt": "x"}))

	assert.Contains(t, resp.Result, "failed")
	assert.Equal(t, 1, attempts)
}

func TestDispatch_ImageGenerationUnconfigured(t *testing.T) {
	d, _ := newDispatcher(&fakeEnv{})

	resp := d.Dispatch(context.Background(), call("i", "generate_image", map[string]any{"prompt": "x"}))

	assert.Contains(t, resp.Result, "not configured")
}
