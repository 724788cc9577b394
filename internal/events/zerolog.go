package events

import "github.com/rs/zerolog"

// LogObserver renders events through a zerolog logger. The event type
// becomes the message for non-log events; log entries use their message.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates a LogObserver emitting to the given logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnEvent(event Event) {
	entry := o.logger.WithLevel(zerologLevel(event.Level)).
		Str("source", event.Source).
		Str("kind", string(event.Level))

	message := string(event.Type)
	for k, v := range event.Data {
		if k == "message" {
			if s, ok := v.(string); ok {
				message = s
				continue
			}
		}
		entry = entry.Interface(k, v)
	}
	entry.Msg(message)
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelError:
		return zerolog.ErrorLevel
	case LevelSystem:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
