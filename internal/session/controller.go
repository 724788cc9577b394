// Package session owns the lifecycle of one duplex voice conversation:
// connect, route inbound events to playback and tools, disconnect.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"voice_assistant_client/internal/audio"
	"voice_assistant_client/internal/config"
	"voice_assistant_client/internal/events"
	"voice_assistant_client/internal/gateway"
)

// ErrAlreadyConnected is returned by Connect while a session is open.
// The caller must disconnect first; the controller never replaces a live
// session silently.
var ErrAlreadyConnected = errors.New("session already connected")

// Capture is the microphone pipeline.
type Capture interface {
	Initialize() error
	Start(handler audio.WindowHandler) error
	Stop() error
}

// Transport is the duplex channel to the remote model.
type Transport interface {
	Connect(ctx context.Context, setup gateway.Setup, handler gateway.EventHandler) error
	SendAudioFrame(pcm []byte) error
	SendToolResponse(resp gateway.ToolResponse) error
	Close() error
}

// Playback is the gapless output scheduler.
type Playback interface {
	Enqueue(pcm []byte)
	Interrupt()
	SetSpeakingFunc(fn func(speaking bool))
}

// ToolRunner executes one tool call and always produces a response.
type ToolRunner interface {
	Dispatch(ctx context.Context, call gateway.ToolCall) gateway.ToolResponse
}

// Controller drives one session at a time over the collaborators above.
// All externally observable behavior flows through the event observer.
type Controller struct {
	cfg       *config.Config
	capture   Capture
	transport Transport
	playback  Playback
	tools     ToolRunner
	observer  events.Observer
	logger    zerolog.Logger

	mu         sync.Mutex
	phase      phase
	state      ConnectionState
	sessionCtx context.Context
	cancel     context.CancelFunc
	toolCh     chan gateway.ToolCall

	toolWg sync.WaitGroup
	failed atomic.Bool
}

// NewController wires the collaborators together. The controller registers
// itself as the playback speaking listener.
func NewController(cfg *config.Config, capture Capture, transport Transport, playback Playback, tools ToolRunner, observer events.Observer, logger zerolog.Logger) *Controller {
	if observer == nil {
		observer = events.NoopObserver{}
	}
	c := &Controller{
		cfg:       cfg,
		capture:   capture,
		transport: transport,
		playback:  playback,
		tools:     tools,
		observer:  observer,
		logger:    logger,
	}
	playback.SetSpeakingFunc(c.onSpeaking)
	return c
}

// State returns the externally observable session state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a session is fully established.
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phaseConnected
}

// Connect acquires the capture device, dials the gateway, and hands it the
// persona and voice parameters. Capture starts once the gateway
// acknowledges setup. Only one session may be open at a time.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != phaseDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.phase = phaseConnecting
	c.failed.Store(false)
	c.mu.Unlock()

	c.emitLog(events.LevelSystem, "connecting")

	if err := c.capture.Initialize(); err != nil {
		c.abortConnect()
		c.emitLog(events.LevelError, fmt.Sprintf("audio device unavailable: %v", err))
		return fmt.Errorf("initialize capture: %w", err)
	}

	setup := gateway.Setup{
		SystemPrompt:     c.cfg.Assistant.SystemPrompt,
		Voice:            c.cfg.Assistant.Voice,
		InputSampleRate:  c.cfg.Audio.TargetRate,
		OutputSampleRate: c.cfg.Audio.PlaybackRate,
	}
	if err := c.transport.Connect(ctx, setup, c); err != nil {
		c.abortConnect()
		c.emitLog(events.LevelError, fmt.Sprintf("gateway connect failed: %v", err))
		return err
	}

	c.mu.Lock()
	if c.phase != phaseConnecting || c.failed.Load() {
		// A disconnect or a terminal failure won the race mid-handshake.
		// The setup ack may have already started capture; release
		// everything acquired so far.
		if c.phase == phaseConnecting {
			c.phase = phaseDisconnected
		}
		c.mu.Unlock()
		c.transport.Close()
		if err := c.capture.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("stopping capture failed")
		}
		c.setState(StateIdle)
		return fmt.Errorf("connect aborted")
	}
	sessionCtx, cancel := context.WithCancel(context.Background())
	c.sessionCtx = sessionCtx
	c.cancel = cancel
	c.toolCh = make(chan gateway.ToolCall, 32)
	toolCh := c.toolCh
	c.phase = phaseConnected
	c.mu.Unlock()

	c.toolWg.Add(1)
	go c.toolLoop(sessionCtx, toolCh)
	return nil
}

// Disconnect tears the session down. Safe to call at any point, including
// before Connect and mid-handshake; redundant calls are no-ops.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	switch c.phase {
	case phaseDisconnected, phaseClosing:
		c.mu.Unlock()
		return nil
	case phaseConnecting:
		// Connect has not finished acquiring resources; flag it to bail.
		c.phase = phaseDisconnected
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.teardown()
}

func (c *Controller) abortConnect() {
	c.mu.Lock()
	if c.phase == phaseConnecting {
		c.phase = phaseDisconnected
	}
	c.mu.Unlock()
}

// teardown releases every sub-resource. Device and channel teardown keep
// going past individual errors; the first one is returned.
func (c *Controller) teardown() error {
	c.mu.Lock()
	if c.phase != phaseConnected {
		c.mu.Unlock()
		return nil
	}
	c.phase = phaseClosing
	cancel := c.cancel
	c.mu.Unlock()

	c.emitLog(events.LevelSystem, "disconnecting")
	if cancel != nil {
		cancel()
	}

	var firstErr error
	if err := c.capture.Stop(); err != nil {
		firstErr = err
		c.logger.Warn().Err(err).Msg("stopping capture failed")
	}
	c.playback.Interrupt()
	if err := c.transport.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	c.toolWg.Wait()

	c.mu.Lock()
	c.phase = phaseDisconnected
	c.sessionCtx = nil
	c.cancel = nil
	c.toolCh = nil
	c.mu.Unlock()

	c.setState(StateIdle)
	c.emitLog(events.LevelSystem, "disconnected")
	return firstErr
}

// fail records the first terminal failure, surfaces it, and tears down in
// the background. Running teardown on the calling goroutine would deadlock
// when the failure originates inside the transport read loop.
func (c *Controller) fail(err error) {
	if !c.failed.CompareAndSwap(false, true) {
		return
	}
	c.logger.Error().Err(err).Msg("session failed")
	c.emitLog(events.LevelError, fmt.Sprintf("session failed: %v", err))
	c.setState(StateError)
	go c.teardown()
}

// onCaptureWindow encodes one capture window and ships it out. Send
// failures are terminal for the session.
func (c *Controller) onCaptureWindow(samples []float32) {
	pcm := audio.EncodePCM16(samples)
	if err := c.transport.SendAudioFrame(pcm); err != nil {
		c.fail(fmt.Errorf("send audio frame: %w", err))
	}
}

// onSpeaking tracks the playback speaking flag.
func (c *Controller) onSpeaking(speaking bool) {
	c.observer.OnEvent(events.New(events.TypeSpeakingChanged, events.LevelInfo, "playback",
		map[string]any{"speaking": speaking}))
	if speaking {
		c.setState(StateSpeaking)
		return
	}
	c.mu.Lock()
	connected := c.phase == phaseConnected
	c.mu.Unlock()
	if connected {
		c.setState(StateListening)
	}
}

// === gateway.EventHandler ===

// HandleSetupComplete starts the capture pipeline once the gateway has
// acknowledged the session parameters. An ack arriving after a disconnect
// has already raced the handshake is stale and ignored.
func (c *Controller) HandleSetupComplete() {
	c.mu.Lock()
	live := c.phase == phaseConnecting || c.phase == phaseConnected
	c.mu.Unlock()
	if !live {
		return
	}

	if err := c.capture.Start(c.onCaptureWindow); err != nil {
		c.fail(fmt.Errorf("start capture: %w", err))
		return
	}
	c.setState(StateListening)
	c.emitLog(events.LevelSystem, "session established, listening")
}

// HandleAudio enqueues one inbound reply buffer for gapless playback.
// Audio arriving after teardown has begun is dropped.
func (c *Controller) HandleAudio(pcm []byte) {
	c.mu.Lock()
	connected := c.phase == phaseConnected
	c.mu.Unlock()
	if !connected {
		return
	}
	c.playback.Enqueue(pcm)
}

// HandleToolCalls queues a batch for the tool worker, preserving order.
// The read loop returns immediately so inbound audio never waits on a
// slow tool. An empty batch is a no-op.
func (c *Controller) HandleToolCalls(calls []gateway.ToolCall) {
	if len(calls) == 0 {
		return
	}

	c.mu.Lock()
	if c.phase != phaseConnected {
		c.mu.Unlock()
		return
	}
	ctx := c.sessionCtx
	ch := c.toolCh
	c.mu.Unlock()

	c.transition(StateListening, StateProcessing)
	for _, call := range calls {
		select {
		case ch <- call:
		case <-ctx.Done():
			return
		}
	}
}

// HandleInterrupted is the barge-in signal: stop everything now.
func (c *Controller) HandleInterrupted() {
	c.playback.Interrupt()
	c.transition(StateSpeaking, StateListening)
	c.emitLog(events.LevelInfo, "reply interrupted")
}

// HandleMetadata forwards auxiliary references to observers without
// buffering them in the session.
func (c *Controller) HandleMetadata(refs []events.Reference) {
	c.observer.OnEvent(events.New(events.TypeMetadata, events.LevelInfo, "session",
		map[string]any{"references": refs}))
}

// HandleTurnComplete marks the end of the model's reply.
func (c *Controller) HandleTurnComplete() {
	c.logger.Debug().Msg("turn complete")
	c.transition(StateProcessing, StateListening)
}

// HandleTransportError is terminal; the session tears down.
func (c *Controller) HandleTransportError(err error) {
	c.fail(fmt.Errorf("transport: %w", err))
}

// toolLoop dispatches queued tool calls in order and sends each response
// back as it completes.
func (c *Controller) toolLoop(ctx context.Context, ch <-chan gateway.ToolCall) {
	defer c.toolWg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case call := <-ch:
			resp := c.tools.Dispatch(ctx, call)
			if err := c.transport.SendToolResponse(resp); err != nil {
				c.fail(fmt.Errorf("send tool response: %w", err))
				return
			}
			if len(ch) == 0 {
				c.transition(StateProcessing, StateListening)
			}
		}
	}
}

// setState publishes a state change to observers.
func (c *Controller) setState(next ConnectionState) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = next
	c.mu.Unlock()

	c.observer.OnEvent(events.New(events.TypeStateChanged, events.LevelInfo, "session",
		map[string]any{"from": from.String(), "to": next.String()}))
}

// transition changes state only when the current state matches from.
func (c *Controller) transition(from, to ConnectionState) {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	c.observer.OnEvent(events.New(events.TypeStateChanged, events.LevelInfo, "session",
		map[string]any{"from": from.String(), "to": to.String()}))
}

func (c *Controller) emitLog(level events.Level, message string) {
	c.observer.OnEvent(events.Log(level, "session", message))
}
