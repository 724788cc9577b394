package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 24000

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration { return c.now }

type manualTimer struct {
	deadline time.Duration
	fn       func()
	stopped  bool
	fired    bool
}

type manualTimers struct {
	clock  *fakeClock
	timers []*manualTimer
}

func (m *manualTimers) timerFunc(d time.Duration, fn func()) func() bool {
	t := &manualTimer{deadline: m.clock.now + d, fn: fn}
	m.timers = append(m.timers, t)
	return func() bool {
		if t.fired || t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// advance moves the clock forward and fires due timers in deadline order.
func (m *manualTimers) advance(to time.Duration) {
	m.clock.now = to
	for {
		var next *manualTimer
		for _, t := range m.timers {
			if t.fired || t.stopped || t.deadline > to {
				continue
			}
			if next == nil || t.deadline < next.deadline {
				next = t
			}
		}
		if next == nil {
			return
		}
		next.fired = true
		next.fn()
	}
}

type fakeSink struct {
	writes [][]byte
	resets int
}

func (s *fakeSink) Write(pcm []byte) { s.writes = append(s.writes, pcm) }
func (s *fakeSink) Reset()           { s.resets++ }

func pcmOf(d time.Duration) []byte {
	samples := int(d * testRate / time.Second)
	return make([]byte, samples*2)
}

func newTestScheduler() (*Scheduler, *fakeClock, *manualTimers, *fakeSink) {
	clock := &fakeClock{}
	timers := &manualTimers{clock: clock}
	sink := &fakeSink{}
	s := NewScheduler(sink, testRate, WithClock(clock), WithTimerFunc(timers.timerFunc))
	return s, clock, timers, sink
}

func TestEnqueue_GaplessBackToBack(t *testing.T) {
	s, _, timers, sink := newTestScheduler()

	// 1.0s, 0.5s, 2.0s enqueued with no interruption.
	s.Enqueue(pcmOf(1 * time.Second))
	s.Enqueue(pcmOf(500 * time.Millisecond))
	s.Enqueue(pcmOf(2 * time.Second))

	// Completion deadlines are start+duration: t0+1.0, t0+1.5, t0+3.5.
	require.Len(t, timers.timers, 3)
	assert.Equal(t, 1*time.Second, timers.timers[0].deadline)
	assert.Equal(t, 1500*time.Millisecond, timers.timers[1].deadline)
	assert.Equal(t, 3500*time.Millisecond, timers.timers[2].deadline)

	assert.True(t, s.Speaking())
	assert.Equal(t, 3, s.ActiveSlots())
	assert.Len(t, sink.writes, 3)

	// Total speaking duration is 3.5s, then the flag flips false.
	timers.advance(3400 * time.Millisecond)
	assert.True(t, s.Speaking())

	timers.advance(3500 * time.Millisecond)
	assert.False(t, s.Speaking())
	assert.Equal(t, 0, s.ActiveSlots())
}

func TestEnqueue_AfterIdleGapStartsNow(t *testing.T) {
	s, _, timers, _ := newTestScheduler()

	s.Enqueue(pcmOf(1 * time.Second))
	timers.advance(5 * time.Second)

	// The marker is behind the clock; the new slot starts immediately.
	s.Enqueue(pcmOf(1 * time.Second))
	last := timers.timers[len(timers.timers)-1]
	assert.Equal(t, 6*time.Second, last.deadline)
}

func TestInterrupt_StopsAllActiveSlots(t *testing.T) {
	s, clock, timers, sink := newTestScheduler()

	s.Enqueue(pcmOf(1 * time.Second))
	s.Enqueue(pcmOf(1 * time.Second))
	s.Enqueue(pcmOf(1 * time.Second))
	require.Equal(t, 3, s.ActiveSlots())

	clock.now = 500 * time.Millisecond
	s.Interrupt()

	assert.Equal(t, 0, s.ActiveSlots())
	assert.False(t, s.Speaking())
	assert.Equal(t, 1, sink.resets)

	// A subsequent enqueue schedules from "now", not the stale marker.
	s.Enqueue(pcmOf(1 * time.Second))
	last := timers.timers[len(timers.timers)-1]
	assert.Equal(t, 1500*time.Millisecond, last.deadline)

	// Stale timers firing later must not disturb the new slot.
	timers.advance(1 * time.Second)
	assert.Equal(t, 1, s.ActiveSlots())
}

func TestInterrupt_IdempotentWhenIdle(t *testing.T) {
	s, _, _, sink := newTestScheduler()

	s.Interrupt()
	s.Interrupt()

	assert.False(t, s.Speaking())
	assert.Equal(t, 0, s.ActiveSlots())
	assert.Equal(t, 2, sink.resets)
}

func TestEnqueue_ZeroDurationBuffer(t *testing.T) {
	s, _, timers, sink := newTestScheduler()

	s.Enqueue(nil)

	// The marker does not move, but the slot is tracked.
	assert.Equal(t, 1, s.ActiveSlots())
	assert.Empty(t, sink.writes)

	// A real buffer still starts at t0.
	s.Enqueue(pcmOf(1 * time.Second))
	last := timers.timers[len(timers.timers)-1]
	assert.Equal(t, 1*time.Second, last.deadline)

	timers.advance(1 * time.Second)
	assert.Equal(t, 0, s.ActiveSlots())
	assert.False(t, s.Speaking())
}

func TestSpeakingFlag_Transitions(t *testing.T) {
	s, _, timers, _ := newTestScheduler()

	var transitions []bool
	s.SetSpeakingFunc(func(speaking bool) { transitions = append(transitions, speaking) })

	s.Enqueue(pcmOf(1 * time.Second))
	s.Enqueue(pcmOf(1 * time.Second))
	timers.advance(2 * time.Second)

	assert.Equal(t, []bool{true, false}, transitions)
}

func TestComplete_WaitsForClockToCatchUp(t *testing.T) {
	s, clock, timers, _ := newTestScheduler()

	s.Enqueue(pcmOf(1 * time.Second))

	// Fire the completion timer early: the clock has not caught up, so the
	// scheduler re-arms instead of flipping the flag.
	clock.now = 500 * time.Millisecond
	timers.timers[0].fired = true
	timers.timers[0].fn()
	assert.True(t, s.Speaking())

	timers.advance(1 * time.Second)
	assert.False(t, s.Speaking())
}

func TestStartTimes_NonDecreasingProperty(t *testing.T) {
	s, _, timers, _ := newTestScheduler()

	durations := []time.Duration{
		300 * time.Millisecond,
		100 * time.Millisecond,
		700 * time.Millisecond,
		50 * time.Millisecond,
	}
	for _, d := range durations {
		s.Enqueue(pcmOf(d))
	}

	// deadline(i) = start(i) + d(i); gapless means deadline(i) = start(i+1).
	var elapsed time.Duration
	for i, d := range durations {
		elapsed += d
		assert.Equal(t, elapsed, timers.timers[i].deadline, "slot %d", i)
	}
}
