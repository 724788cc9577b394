package session

// ConnectionState is the externally observable phase of the session. It is
// derived from controller events; presentation code never sets it.
type ConnectionState int32

const (
	StateIdle ConnectionState = iota
	StateListening
	StateProcessing
	StateSpeaking
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// phase is the internal lifecycle of the duplex channel.
type phase int32

const (
	phaseDisconnected phase = iota
	phaseConnecting
	phaseConnected
	phaseClosing
)

func (p phase) String() string {
	switch p {
	case phaseDisconnected:
		return "disconnected"
	case phaseConnecting:
		return "connecting"
	case phaseConnected:
		return "connected"
	case phaseClosing:
		return "closing"
	default:
		return "unknown"
	}
}
