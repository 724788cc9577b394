package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"voice_assistant_client/internal/config"
	"voice_assistant_client/pkg/buffer"
)

// Player renders scheduled audio through the default output device. It
// implements Sink: the scheduler writes PCM bytes, the device callback
// drains them, and Reset discards everything buffered for barge-in.
type Player struct {
	cfg  *config.AudioConfig
	ring *buffer.RingBuffer
	tap  *Tap

	// scratch is reused across render ticks; the callback is the only
	// goroutine touching it, and it must not allocate.
	scratch []byte

	mu      sync.Mutex
	stream  *portaudio.Stream
	started bool
}

// NewPlayer creates a player for the fixed playback rate. PortAudio must
// already be initialized.
func NewPlayer(cfg *config.AudioConfig) *Player {
	return &Player{
		cfg:  cfg,
		ring: buffer.New(cfg.RingSize),
	}
}

// Start opens the default output stream. The callback reads from the ring
// buffer and zero-fills on underrun so the device never blocks.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	if p.cfg.PlaybackTapPath != "" && p.tap == nil {
		tap, err := NewTap(p.cfg.PlaybackTapPath, p.cfg.PlaybackRate)
		if err != nil {
			return fmt.Errorf("open playback tap: %w", err)
		}
		p.tap = tap
	}

	stream, err := portaudio.OpenDefaultStream(
		0, 1,
		float64(p.cfg.PlaybackRate),
		0,
		p.renderCallback,
	)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start output stream: %w", err)
	}

	p.stream = stream
	p.started = true
	return nil
}

func (p *Player) renderCallback(out []int16) {
	need := len(out) * 2
	if cap(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	raw := p.scratch[:need]
	n, _ := p.ring.Read(raw)

	for i := 0; i < n/2; i++ {
		out[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	for i := n / 2; i < len(out); i++ {
		out[i] = 0
	}
}

// Write buffers PCM bytes for the device callback.
func (p *Player) Write(pcm []byte) {
	p.ring.Write(pcm)
	if p.tap != nil {
		p.tap.WriteBytes(pcm)
	}
}

// Reset drops all buffered audio immediately.
func (p *Player) Reset() {
	p.ring.Reset()
}

// Close stops the output stream and releases the device.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	var firstErr error
	if err := p.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := p.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	p.stream = nil
	p.ring.Reset()

	if p.tap != nil {
		if err := p.tap.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.tap = nil
	}
	return firstErr
}
