// Package agent runs the LLM tool-execution loop: it streams model
// output, dispatches tool calls to the trading core and feeds results
// back until the model settles on a text response.
package agent

import "encoding/json"

// SSE event names emitted by the loop.
const (
	EventText             = "text"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventAssistantMessage = "assistant_message"
	EventError            = "error"
	EventDone             = "done"
)

// EventSink receives loop events in emission order. The fiber SSE route
// adapts this onto a streaming response writer.
type EventSink func(event string, payload any) error

type toolCallPayload struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type toolResultPayload struct {
	Name   string `json:"name"`
	Result any    `json:"result"`
	Report string `json:"report,omitempty"`
	Error  string `json:"error,omitempty"`
}

type assistantMessagePayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}
