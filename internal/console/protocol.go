package console

import (
	"encoding/json"
	"time"
)

// Frame types used on the console WebSocket.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// ProtocolVersion is the console wire protocol version.
const ProtocolVersion = 1

// Frame is the single wire envelope for requests, responses, and events.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
}

// ErrorShape is the error body carried by failed responses.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Hello is pushed as the "console.hello" event when a connection opens.
// It tells the browser which session it is on and what it can call.
type Hello struct {
	Protocol  int           `json:"protocol"`
	ConnID    string        `json:"connId"`
	SessionID string        `json:"sessionId"`
	Version   string        `json:"version"`
	Target    string        `json:"target"`
	Methods   []string      `json:"methods"`
	Resumed   bool          `json:"resumed,omitempty"`
	History   []ChatMessage `json:"history,omitempty"`
}

// ChatMessage is one transcript entry as rendered by the console.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatResult is the payload of a successful chat.send response.
type ChatResult struct {
	Response   string `json:"response"`
	SessionID  string `json:"sessionId"`
	DurationMs int64  `json:"durationMs"`
}

// NewRequest builds a request frame with marshaled params.
func NewRequest(id, method string, params any) (Frame, error) {
	f := Frame{Type: FrameTypeRequest, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Frame{}, err
		}
		f.Params = raw
	}
	return f, nil
}

// NewResponse builds a success response frame for the given request ID.
func NewResponse(reqID string, payload any) (Frame, error) {
	ok := true
	f := Frame{Type: FrameTypeResponse, ID: reqID, OK: &ok}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Frame{}, err
		}
		f.Payload = raw
	}
	return f, nil
}

// NewErrorResponse builds a failed response frame for the given request ID.
func NewErrorResponse(reqID string, errShape ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: reqID, OK: &ok, Error: &errShape}
}

// NewEvent builds an event frame with marshaled payload.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	f := Frame{Type: FrameTypeEvent, Event: event, Seq: seq}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Frame{}, err
		}
		f.Payload = raw
	}
	return f, nil
}
