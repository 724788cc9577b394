package gateway

import (
	"encoding/json"

	"voice_assistant_client/internal/events"
)

// Setup carries the connect-time parameters supplied by the surrounding UI.
type Setup struct {
	SystemPrompt     string
	Voice            string
	InputSampleRate  int
	OutputSampleRate int
}

// ToolCall is a tool invocation request from the remote model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResponse answers one ToolCall. Exactly one response is sent per
// call, result phrased for the model to confirm verbally.
type ToolResponse struct {
	ID     string
	Name   string
	Result string
}

// clientEnvelope frames every outbound message.
type clientEnvelope struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

type setupPayload struct {
	SystemPrompt     string `json:"systemPrompt"`
	Voice            string `json:"voice"`
	InputSampleRate  int    `json:"inputSampleRate"`
	OutputSampleRate int    `json:"outputSampleRate"`
}

type audioPayload struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type toolResponseBody struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Response struct {
		Result string `json:"result"`
	} `json:"response"`
}

type toolResponsePayload struct {
	Responses []toolResponseBody `json:"responses"`
}

// serverEnvelope frames every inbound message; Data is decoded per action.
type serverEnvelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type serverAudioPayload struct {
	Data string `json:"data"`
}

type serverToolCallPayload struct {
	Calls []ToolCall `json:"calls"`
}

type serverMetadataPayload struct {
	References []events.Reference `json:"references"`
}

type serverErrorPayload struct {
	Message string `json:"message"`
}

// Inbound action names.
const (
	actionSetupComplete = "setupComplete"
	actionAudioStream   = "audioStream"
	actionToolCall      = "toolCall"
	actionInterrupted   = "interrupted"
	actionMetadata      = "metadata"
	actionTurnComplete  = "turnComplete"
	actionError         = "error"
)

// Outbound action names.
const (
	actionSetup        = "setup"
	actionToolResponse = "toolResponse"
)

// EventHandler receives typed inbound events from the read loop.
type EventHandler interface {
	HandleSetupComplete()
	HandleAudio(pcm []byte)
	HandleToolCalls(calls []ToolCall)
	HandleInterrupted()
	HandleMetadata(refs []events.Reference)
	HandleTurnComplete()
	HandleTransportError(err error)
}
