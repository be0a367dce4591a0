package console

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameTypeConstants(t *testing.T) {
	assert.Equal(t, "req", FrameTypeRequest)
	assert.Equal(t, "res", FrameTypeResponse)
	assert.Equal(t, "event", FrameTypeEvent)
}

// --- NewRequest tests ---

func TestNewRequest(t *testing.T) {
	frame, err := NewRequest("req-1", "health", nil)
	require.NoError(t, err)

	assert.Equal(t, FrameTypeRequest, frame.Type)
	assert.Equal(t, "req-1", frame.ID)
	assert.Equal(t, "health", frame.Method)
}

func TestNewRequest_WithParams(t *testing.T) {
	frame, err := NewRequest("req-2", "chat.send", chatSendParams{Message: "status?"})
	require.NoError(t, err)

	var decoded chatSendParams
	require.NoError(t, json.Unmarshal(frame.Params, &decoded))
	assert.Equal(t, "status?", decoded.Message)
}

func TestNewRequest_MarshalRoundTrip(t *testing.T) {
	frame, err := NewRequest("req-3", "chat.send", map[string]string{"message": "hello"})
	require.NoError(t, err)

	data, err := json.Marshal(frame)
	require.NoError(t, err)

	var decoded Frame
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, FrameTypeRequest, decoded.Type)
	assert.Equal(t, "req-3", decoded.ID)
	assert.Equal(t, "chat.send", decoded.Method)
}

// --- NewResponse tests ---

func TestNewResponse(t *testing.T) {
	frame, err := NewResponse("req-1", map[string]string{"status": "ok"})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeResponse, frame.Type)
	assert.Equal(t, "req-1", frame.ID)
	require.NotNil(t, frame.OK)
	assert.True(t, *frame.OK)
	assert.Nil(t, frame.Error)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, "ok", payload["status"])
}

func TestNewResponse_NilPayload(t *testing.T) {
	frame, err := NewResponse("req-1", nil)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeResponse, frame.Type)
	require.NotNil(t, frame.OK)
	assert.True(t, *frame.OK)
}

// --- NewErrorResponse tests ---

func TestNewErrorResponse(t *testing.T) {
	frame := NewErrorResponse("req-1", ErrorShape{
		Code:    "invalid_params",
		Message: "message is required",
	})

	assert.Equal(t, FrameTypeResponse, frame.Type)
	assert.Equal(t, "req-1", frame.ID)
	require.NotNil(t, frame.OK)
	assert.False(t, *frame.OK)
	require.NotNil(t, frame.Error)
	assert.Equal(t, "invalid_params", frame.Error.Code)
	assert.Equal(t, "message is required", frame.Error.Message)
}

// --- NewEvent tests ---

func TestNewEvent(t *testing.T) {
	frame, err := NewEvent("console.hello", map[string]string{"connId": "c-1"}, 42)
	require.NoError(t, err)

	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, "console.hello", frame.Event)
	assert.Equal(t, int64(42), frame.Seq)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, "c-1", payload["connId"])
}

func TestNewEvent_NilPayload(t *testing.T) {
	frame, err := NewEvent("shutdown", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeEvent, frame.Type)
}

// --- Hello tests ---

func TestHello_Marshal(t *testing.T) {
	hello := Hello{
		Protocol:  ProtocolVersion,
		ConnID:    "conn-1",
		SessionID: "sess-1",
		Version:   "1.0.0",
		Target:    "https://example.lambda-url.us-west-2.on.aws/",
		Methods:   []string{"health", "chat.send"},
		Resumed:   true,
		History: []ChatMessage{
			{Role: "user", Content: "status?", Timestamp: time.Now()},
		},
	}

	data, err := json.Marshal(hello)
	require.NoError(t, err)

	var decoded Hello
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ProtocolVersion, decoded.Protocol)
	assert.Equal(t, "conn-1", decoded.ConnID)
	assert.Equal(t, "sess-1", decoded.SessionID)
	assert.True(t, decoded.Resumed)
	require.Len(t, decoded.History, 1)
	assert.Equal(t, "status?", decoded.History[0].Content)
}

func TestHello_OmitsEmptyHistory(t *testing.T) {
	hello := Hello{Protocol: ProtocolVersion, ConnID: "conn-1", SessionID: "sess-1"}

	data, err := json.Marshal(hello)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "history")
	assert.NotContains(t, string(data), "resumed")
}
