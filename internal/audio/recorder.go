package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"voice_assistant_client/internal/config"
	"voice_assistant_client/pkg/utils"
)

// debugSilenceRMS is the RMS level below which a capture window is
// reported as silent in debug logs.
const debugSilenceRMS = 0.01

// WindowHandler receives fixed-size windows of captured samples at the
// target rate, in capture order. The slice is recycled once the handler
// returns; handlers must not retain it.
type WindowHandler func(samples []float32)

// Recorder captures microphone audio at the device's native rate,
// resamples it to the fixed target rate, and delivers fixed-size windows
// to a handler. One capture session at a time.
type Recorder struct {
	cfg    *config.AudioConfig
	logger zerolog.Logger

	mu            sync.Mutex
	portAudioInit bool
	device        *portaudio.DeviceInfo
	stream        *portaudio.Stream
	tap           *Tap

	capturing  atomic.Bool
	handler    WindowHandler
	window     []float32
	windowCh   chan []float32
	dispatchWg sync.WaitGroup

	// resampleBuf and freeCh keep the device callback allocation-free:
	// resampling reuses one scratch buffer, and delivered windows cycle
	// back through a free list once the handler is done with them.
	resampleBuf []float32
	freeCh      chan []float32
}

// NewRecorder creates a recorder. Call Initialize before Start.
func NewRecorder(cfg *config.AudioConfig, logger zerolog.Logger) *Recorder {
	return &Recorder{cfg: cfg, logger: logger}
}

// Initialize acquires PortAudio and the default input device. Safe to call
// more than once. Acquisition failure is terminal for the caller's connect
// attempt; the recorder never retries on its own.
func (r *Recorder) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.portAudioInit {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize audio host: %w", err)
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("no input device available: %w", err)
	}
	if device.MaxInputChannels < 1 {
		portaudio.Terminate()
		return fmt.Errorf("input device %s has no capture channels", device.Name)
	}

	r.device = device
	r.portAudioInit = true
	return nil
}

// Start begins capture, delivering windows to handler until Stop. After
// Stop returns, handler is never invoked again.
func (r *Recorder) Start(handler WindowHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.portAudioInit {
		return fmt.Errorf("recorder not initialized")
	}
	if r.capturing.Load() {
		return fmt.Errorf("capture already running")
	}

	if r.cfg.CaptureTapPath != "" && r.tap == nil {
		tap, err := NewTap(r.cfg.CaptureTapPath, r.cfg.TargetRate)
		if err != nil {
			return fmt.Errorf("open capture tap: %w", err)
		}
		r.tap = tap
	}

	r.handler = handler
	r.window = make([]float32, 0, r.cfg.WindowSamples*2)
	r.windowCh = make(chan []float32, 16)
	r.freeCh = make(chan []float32, 17)
	r.resampleBuf = make([]float32, 0, 2048)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   r.device,
			Channels: 1,
			Latency:  r.device.DefaultLowInputLatency,
		},
		SampleRate:      float64(r.cfg.CaptureDeviceRate),
		FramesPerBuffer: 1024,
	}

	stream, err := portaudio.OpenStream(params, r.captureCallback)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	r.stream = stream
	r.capturing.Store(true)

	r.dispatchWg.Add(1)
	go r.dispatchLoop(r.windowCh)

	return nil
}

// captureCallback runs on the device thread. It must never block: full
// windows are handed off over a buffered channel and dropped on overflow.
func (r *Recorder) captureCallback(in []float32) {
	if !r.capturing.Load() {
		return
	}

	r.resampleBuf = utils.ResampleInto(r.resampleBuf[:0], in, r.cfg.CaptureDeviceRate, r.cfg.TargetRate)
	r.window = append(r.window, r.resampleBuf...)

	for len(r.window) >= r.cfg.WindowSamples {
		window := r.takeWindow()
		copy(window, r.window[:r.cfg.WindowSamples])
		r.window = r.window[r.cfg.WindowSamples:]

		select {
		case r.windowCh <- window:
		default:
			// Consumer fell behind; dropping is better than stalling
			// the device callback.
			r.recycle(window)
		}
	}
}

// takeWindow reuses a recycled window slice when one is available.
func (r *Recorder) takeWindow() []float32 {
	select {
	case window := <-r.freeCh:
		return window[:r.cfg.WindowSamples]
	default:
		return make([]float32, r.cfg.WindowSamples)
	}
}

func (r *Recorder) recycle(window []float32) {
	select {
	case r.freeCh <- window:
	default:
	}
}

// dispatchLoop delivers windows to the handler in capture order.
func (r *Recorder) dispatchLoop(ch <-chan []float32) {
	defer r.dispatchWg.Done()
	for window := range ch {
		if r.tap != nil {
			r.tap.WriteFloat(window)
		}
		if e := r.logger.Debug(); e.Enabled() {
			stats := utils.CalculateAudioStats(window, debugSilenceRMS)
			e.Float64("rms", utils.CalculateRMS(window)).
				Float32("peak", stats.Peak).
				Bool("silent", utils.IsSilent(window, debugSilenceRMS, 0.9)).
				Msg("capture window")
		}
		r.handler(window)
		r.recycle(window)
	}
}

// Stop ends the capture session and releases the input stream. It returns
// only after the last in-flight window has been delivered, so callers see
// no handler invocations afterwards.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.capturing.Load() {
		return nil
	}
	r.capturing.Store(false)

	var firstErr error
	if err := r.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := r.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	r.stream = nil
	r.window = nil

	close(r.windowCh)
	r.dispatchWg.Wait()
	r.windowCh = nil
	r.freeCh = nil
	r.handler = nil

	return firstErr
}

// Terminate stops any capture and releases the audio host.
func (r *Recorder) Terminate() error {
	if err := r.Stop(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.tap != nil {
		firstErr = r.tap.Close()
		r.tap = nil
	}
	if r.portAudioInit {
		if err := portaudio.Terminate(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.portAudioInit = false
		r.device = nil
	}
	return firstErr
}
