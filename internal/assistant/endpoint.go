package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QueryRequest is the Function URL request body.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// QueryResponse is the Function URL reply.
type QueryResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp,omitempty"`
}

// apiError is the body the handlers return on non-200 statuses.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Endpoint is an HTTP client for the assistant's public Function URL.
type Endpoint struct {
	url    string
	client *http.Client
}

// NewEndpoint creates a client for the given Function URL.
func NewEndpoint(url string) *Endpoint {
	return &Endpoint{
		url:    url,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// URL returns the Function URL this endpoint posts to.
func (e *Endpoint) URL() string {
	return e.url
}

// Ask posts one query and returns the assistant's reply. Error bodies
// from the handler surface as errors carrying the handler's message.
func (e *Endpoint) Ask(ctx context.Context, query, sessionID string) (*QueryResponse, error) {
	payload, err := json.Marshal(QueryRequest{Query: query, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Message != "" {
			return nil, fmt.Errorf("assistant error (%d): %s", resp.StatusCode, ae.Message)
		}
		return nil, fmt.Errorf("assistant error (%d): %s", resp.StatusCode, string(body))
	}

	var out QueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}
