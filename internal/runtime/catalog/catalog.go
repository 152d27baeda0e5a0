// Package catalog names the versioned event vocabulary spoken between the
// assistant backend and streamgate, together with the payload shapes each
// event carries. Event names are namespaced and versioned so incompatible
// payload changes ship under a new name instead of silently breaking
// subscribers.
package catalog

// Event names emitted by the backend during one request generation.
const (
	EventMessageStart    = "assistant.v1.message.start"
	EventMessageChunk    = "assistant.v1.message.chunk"
	EventToolStart       = "assistant.v1.tool.start"
	EventToolComplete    = "assistant.v1.tool.complete"
	EventSessionComplete = "assistant.v1.session.complete"
	EventSessionError    = "assistant.v1.session.error"
)

// MethodSessionSend is the invoke method that starts a new request
// generation on a session.
const MethodSessionSend = "assistant.v1.session.send"

// Names returns every event name a session subscription must listen on,
// in the order they are registered.
func Names() []string {
	return []string{
		EventMessageStart,
		EventMessageChunk,
		EventToolStart,
		EventToolComplete,
		EventSessionComplete,
		EventSessionError,
	}
}

// MessageStart announces that the assistant began producing a message.
type MessageStart struct {
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
}

// MessageChunk carries one incremental slice of assistant output.
type MessageChunk struct {
	MessageID string `json:"message_id"`
	Delta     string `json:"delta"`
}

// ToolStart announces that the assistant began executing a tool call.
type ToolStart struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolComplete reports the outcome of a tool call.
type ToolComplete struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Result string `json:"result,omitempty"`
	Err    string `json:"error,omitempty"`
}

// SessionComplete marks the end of a request generation.
type SessionComplete struct {
	MessageID  string `json:"message_id,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// SessionError reports a request generation that failed on the backend.
type SessionError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// SendRequest is the invoke payload for MethodSessionSend. RequestID is the
// generation id minted by the caller before dispatch so events emitted by
// the backend can be correlated from the very first one.
type SendRequest struct {
	RequestID string `json:"request_id"`
	Prompt    string `json:"prompt"`
}

// CorrelationID exposes the generation id for transport metadata.
func (r SendRequest) CorrelationID() string { return r.RequestID }
