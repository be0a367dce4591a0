package lambdafn

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/logging"
)

// maxQueryChars caps accepted question length.
const maxQueryChars = 10000

// minRemainingTime is the Lambda budget below which the handler refuses
// new work instead of being killed mid-invoke.
const minRemainingTime = 10 * time.Second

// Asker produces an answer for one query within one session.
type Asker interface {
	Ask(ctx context.Context, query, sessionID string) string
}

// QueryHandler serves the assistant's Function URL contract:
// POST {"query", "sessionId"} -> {"response", "sessionId", "timestamp"}.
type QueryHandler struct {
	ask     Asker
	allowed []string
	log     *logging.Logger
}

// NewQueryHandler wires the handler from the Lambda environment
// (BEDROCK_AGENT_ID, BEDROCK_AGENT_ALIAS_ID, ALLOWED_ORIGINS). A missing
// agent configuration is reported per request rather than failing cold
// start, so misconfiguration surfaces as JSON instead of a bare 502.
func NewQueryHandler(ctx context.Context) (*QueryHandler, error) {
	log := logging.NewForLambda()
	h := &QueryHandler{allowed: allowedOrigins(), log: log.Sub("query_handler")}

	agentID := os.Getenv("BEDROCK_AGENT_ID")
	aliasID := os.Getenv("BEDROCK_AGENT_ALIAS_ID")
	if agentID == "" || aliasID == "" {
		h.log.Warn().Msg("BEDROCK_AGENT_ID or BEDROCK_AGENT_ALIAS_ID not set")
		return h, nil
	}

	clients, err := awsx.New(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		return nil, err
	}
	h.ask = assistant.New(clients.AgentRuntime, agentID, aliasID, log)
	return h, nil
}

// Handle processes one Function URL event.
func (h *QueryHandler) Handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	origin := header(event, "origin")
	headers := queryHeaders(origin, h.allowed)

	if method(event) == http.MethodOptions {
		return preflight(headers), nil
	}
	if !originAllowed(origin, h.allowed) {
		h.log.Warn().Str("origin", origin).Msg("rejected origin")
		return respondError(http.StatusForbidden, headers,
			"Forbidden", "Invalid request origin"), nil
	}
	if h.ask == nil {
		return respondError(http.StatusInternalServerError, headers,
			"Service configuration error",
			"The maintenance system is not properly configured. Please contact support."), nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < minRemainingTime {
		return respondError(http.StatusServiceUnavailable, headers,
			"Service timeout", "The request is taking too long. Please try again."), nil
	}

	payload, err := requestBody(event)
	var req assistant.QueryRequest
	if err == nil {
		err = json.Unmarshal(payload, &req)
	}
	if err != nil {
		return respondError(http.StatusBadRequest, headers,
			"Invalid request format", "Request body must be valid JSON"), nil
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return respondError(http.StatusBadRequest, headers,
			"Missing query parameter", "Please provide a question about equipment maintenance"), nil
	}
	if len(query) > maxQueryChars {
		return respondError(http.StatusBadRequest, headers,
			"Query too long", "Please keep questions under 10,000 characters"), nil
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = assistant.NewSessionID()
	}

	requestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}
	h.log.Info().
		Str("session_id", sessionID).
		Str("request_id", requestID).
		Int("query_chars", len(query)).
		Msg("handling query")

	answer := h.ask.Ask(ctx, query, sessionID)
	return respond(http.StatusOK, headers, assistant.QueryResponse{
		Response:  answer,
		SessionID: sessionID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}), nil
}
