package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointAsk(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Why is the conveyor vibrating?", req.Query)
		assert.Equal(t, "session-42", req.SessionID)

		json.NewEncoder(w).Encode(QueryResponse{
			Response:  "Check the drive-side bearing.",
			SessionID: req.SessionID,
			Timestamp: "req-abc123",
		})
	}))
	defer ts.Close()

	ep := NewEndpoint(ts.URL)
	out, err := ep.Ask(context.Background(), "Why is the conveyor vibrating?", "session-42")
	require.NoError(t, err)
	assert.Equal(t, "Check the drive-side bearing.", out.Response)
	assert.Equal(t, "session-42", out.SessionID)
	assert.Equal(t, "req-abc123", out.Timestamp)
}

func TestEndpointAskHandlerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(apiError{Error: "Forbidden", Message: "Invalid request origin"})
	}))
	defer ts.Close()

	ep := NewEndpoint(ts.URL)
	_, err := ep.Ask(context.Background(), "query", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Invalid request origin")
}

func TestEndpointAskOpaqueError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	ep := NewEndpoint(ts.URL)
	_, err := ep.Ask(context.Background(), "query", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestEndpointAskBadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	ep := NewEndpoint(ts.URL)
	_, err := ep.Ask(context.Background(), "query", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}
