package audio

import (
	"sync"
	"time"
)

// completionTolerance absorbs timer jitter when deciding whether the
// output clock has caught up to the next-start marker.
const completionTolerance = time.Millisecond

// Clock reports elapsed time on the shared output timeline.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	epoch time.Time
}

func (c monotonicClock) Now() time.Duration { return time.Since(c.epoch) }

// TimerFunc schedules fn after d and returns a stop function. Injectable
// so tests can fire completions deterministically.
type TimerFunc func(d time.Duration, fn func()) (stop func() bool)

func afterFuncTimer(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Sink receives scheduled PCM bytes and can drop buffered audio
// immediately on barge-in.
type Sink interface {
	Write(pcm []byte)
	Reset()
}

type slot struct {
	start time.Duration
	dur   time.Duration
	stop  func() bool
}

// Scheduler queues decoded playback buffers back-to-back on the output
// clock. Slots never overlap and never leave a gap when enqueued while
// audio is still pending. Interrupt stops everything at once.
type Scheduler struct {
	mu       sync.Mutex
	clock    Clock
	newTimer TimerFunc
	sink     Sink
	rate     int

	nextStart time.Duration
	slots     map[int64]*slot
	nextID    int64
	speaking  bool

	onSpeaking func(bool)
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces the output clock.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithTimerFunc replaces the completion timer factory.
func WithTimerFunc(f TimerFunc) SchedulerOption {
	return func(s *Scheduler) { s.newTimer = f }
}

// NewScheduler creates a scheduler writing to sink. sampleRate is the
// fixed playback rate used to derive buffer durations.
func NewScheduler(sink Sink, sampleRate int, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:    monotonicClock{epoch: time.Now()},
		newTimer: afterFuncTimer,
		sink:     sink,
		rate:     sampleRate,
		slots:    make(map[int64]*slot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSpeakingFunc registers a callback invoked whenever the speaking flag
// changes. The callback runs outside the scheduler lock.
func (s *Scheduler) SetSpeakingFunc(fn func(speaking bool)) {
	s.mu.Lock()
	s.onSpeaking = fn
	s.mu.Unlock()
}

// Enqueue schedules pcm to start at max(now, nextStart) and advances the
// marker by the buffer's duration. A zero-duration buffer leaves the
// marker alone but is still tracked for completion bookkeeping.
func (s *Scheduler) Enqueue(pcm []byte) {
	dur := s.durationOf(len(pcm))

	s.mu.Lock()
	now := s.clock.Now()
	start := now
	if s.nextStart > now {
		start = s.nextStart
	}
	if dur > 0 {
		s.nextStart = start + dur
	}

	id := s.nextID
	s.nextID++
	sl := &slot{start: start, dur: dur}
	s.slots[id] = sl
	sl.stop = s.newTimer(start+dur-now, func() { s.complete(id) })

	notify := s.setSpeakingLocked(true)
	s.mu.Unlock()

	if len(pcm) > 0 {
		s.sink.Write(pcm)
	}
	notify()
}

// Interrupt stops every active slot, clears the slot set, drains the sink,
// and re-anchors the marker at the current clock time. Idempotent when
// nothing is playing.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	for id, sl := range s.slots {
		if sl.stop != nil {
			sl.stop()
		}
		delete(s.slots, id)
	}
	s.nextStart = s.clock.Now()
	notify := s.setSpeakingLocked(false)
	s.mu.Unlock()

	s.sink.Reset()
	notify()
}

// Speaking reports whether any slot is still active.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// ActiveSlots returns the number of slots awaiting completion.
func (s *Scheduler) ActiveSlots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// complete deregisters a naturally finished slot. Stopping a slot that was
// already interrupted is a harmless no-op.
func (s *Scheduler) complete(id int64) {
	s.mu.Lock()
	if _, ok := s.slots[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.slots, id)

	notify := func() {}
	if len(s.slots) == 0 {
		now := s.clock.Now()
		if now+completionTolerance >= s.nextStart {
			notify = s.setSpeakingLocked(false)
		} else {
			// Timer fired early; check again once the clock catches up.
			s.newTimer(s.nextStart-now, func() { s.checkIdle() })
		}
	}
	s.mu.Unlock()
	notify()
}

func (s *Scheduler) checkIdle() {
	s.mu.Lock()
	notify := func() {}
	if len(s.slots) == 0 && s.clock.Now()+completionTolerance >= s.nextStart {
		notify = s.setSpeakingLocked(false)
	}
	s.mu.Unlock()
	notify()
}

// setSpeakingLocked flips the flag and returns the deferred notification.
// Callers invoke the result after releasing the lock.
func (s *Scheduler) setSpeakingLocked(speaking bool) func() {
	if s.speaking == speaking {
		return func() {}
	}
	s.speaking = speaking
	fn := s.onSpeaking
	if fn == nil {
		return func() {}
	}
	return func() { fn(speaking) }
}

func (s *Scheduler) durationOf(nbytes int) time.Duration {
	samples := nbytes / 2
	if samples <= 0 || s.rate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(s.rate)
}
