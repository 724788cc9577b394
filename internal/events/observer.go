package events

// Observer receives session events. Implementations must not block; slow
// consumers should buffer internally.
type Observer interface {
	OnEvent(event Event)
}

// MultiObserver fans out events to multiple observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates a MultiObserver forwarding to all non-nil
// observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnEvent(event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(event)
	}
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnEvent(Event) {}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(event Event) { f(event) }
