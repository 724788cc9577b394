package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voice_assistant_client/internal/events"
)

type recording struct {
	got []events.Event
}

func (r *recording) OnEvent(e events.Event) { r.got = append(r.got, e) }

func TestMultiObserver_FansOut(t *testing.T) {
	a := &recording{}
	b := &recording{}
	multi := events.NewMultiObserver(a, nil, b)

	multi.OnEvent(events.Log(events.LevelInfo, "test", "hello"))

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Equal(t, events.TypeLog, a.got[0].Type)
	assert.Equal(t, "hello", a.got[0].Data["message"])
}

func TestNoopObserver(t *testing.T) {
	// Must not panic on any event.
	events.NoopObserver{}.OnEvent(events.Event{})
}

func TestObserverFunc(t *testing.T) {
	var seen events.Event
	fn := events.ObserverFunc(func(e events.Event) { seen = e })

	fn.OnEvent(events.New(events.TypeSpeakingChanged, events.LevelSystem, "playback",
		map[string]any{"speaking": true}))

	assert.Equal(t, events.TypeSpeakingChanged, seen.Type)
	assert.Equal(t, true, seen.Data["speaking"])
}

func TestLog_StampsTimestamp(t *testing.T) {
	e := events.Log(events.LevelError, "gateway", "boom")
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, events.LevelError, e.Level)
}
