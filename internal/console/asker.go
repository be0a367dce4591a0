package console

import (
	"context"

	"github.com/fieldsight/maintkit/internal/assistant"
)

// Asker answers one maintenance question within a session. The console
// normally relays through the deployed query handler's Function URL, but
// can also talk to the Bedrock agent directly for debugging.
type Asker interface {
	Ask(ctx context.Context, query, sessionID string) (string, error)
	Target() string
}

type endpointAsker struct {
	ep *assistant.Endpoint
}

// ViaEndpoint relays questions through the query handler's Function URL.
func ViaEndpoint(ep *assistant.Endpoint) Asker {
	return endpointAsker{ep: ep}
}

func (a endpointAsker) Ask(ctx context.Context, query, sessionID string) (string, error) {
	resp, err := a.ep.Ask(ctx, query, sessionID)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (a endpointAsker) Target() string {
	return a.ep.URL()
}

type agentAsker struct {
	client *assistant.Client
}

// ViaAgent invokes the Bedrock agent directly, bypassing the Lambda.
func ViaAgent(client *assistant.Client) Asker {
	return agentAsker{client: client}
}

func (a agentAsker) Ask(ctx context.Context, query, sessionID string) (string, error) {
	return a.client.Invoke(ctx, query, sessionID)
}

func (a agentAsker) Target() string {
	return "bedrock-agent (direct)"
}
