// Package events carries typed session events to any number of observers.
// Protocol code emits events; presentation (console, log stream, tests)
// subscribes. Nothing in this package talks back to the session.
package events

import "time"

// Level classifies a log entry as presented to the user.
type Level string

const (
	LevelInfo   Level = "info"   // conversational progress
	LevelAction Level = "action" // a tool side effect happened
	LevelError  Level = "error"  // a failure, always user-visible
	LevelSystem Level = "system" // lifecycle noise (connect, teardown)
)

// Type identifies the kind of event.
type Type string

const (
	// TypeStateChanged reports a ConnectionState transition.
	// Data: "from", "to" (state names).
	TypeStateChanged Type = "session.state_changed"
	// TypeLog is a human-readable log entry. Data: "message".
	TypeLog Type = "session.log"
	// TypeSpeakingChanged reports the playback speaking flag.
	// Data: "speaking" (bool).
	TypeSpeakingChanged Type = "playback.speaking_changed"
	// TypeToolCall reports a tool invocation request.
	// Data: "id", "name", "args".
	TypeToolCall Type = "tool.call"
	// TypeToolResult reports the response produced for a tool call.
	// Data: "id", "name", "result".
	TypeToolResult Type = "tool.result"
	// TypeToolEffect reports a UI-observable tool side effect.
	// Data: "name" plus effect-specific keys.
	TypeToolEffect Type = "tool.effect"
	// TypeMetadata carries auxiliary reference metadata from a reply.
	// Data: "references" ([]Reference).
	TypeMetadata Type = "session.metadata"
)

// Reference is an auxiliary citation accompanying a model reply.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Event is a single observable occurrence.
type Event struct {
	Type      Type
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// New builds an event stamped with the current time.
func New(typ Type, level Level, source string, data map[string]any) Event {
	return Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// Log builds a log-entry event.
func Log(level Level, source, message string) Event {
	return New(TypeLog, level, source, map[string]any{"message": message})
}
