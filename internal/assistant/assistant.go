// Package assistant runs maintenance queries against the deployed
// Bedrock agent, either directly through the agent runtime or over the
// public Function URL.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/google/uuid"

	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/logging"
)

const (
	maxQueryChars    = 10000
	maxChunks        = 1000
	maxResponseChars = 50000
)

// Fallback texts returned in place of an answer. The agent fronts a
// public URL, so callers see readable advice, never a raw AWS error.
const (
	msgEmptyQuery    = "Please provide a valid question about equipment maintenance."
	msgQueryTooLong  = "Your question is too long. Please keep it under 10,000 characters."
	msgEmptyResponse = "I apologize, but I couldn't generate a response. Please try rephrasing your question or check if the maintenance system is available."
	msgBadRequest    = "There was an issue with your request format. Please try again."
	msgNoAccess      = "I don't have permission to access the maintenance system. Please contact support."
	msgBusy          = "The system is currently busy. Please wait a moment and try again."
	msgUnavailable   = "The maintenance system is temporarily unavailable. Please try again later."
	msgTechnical     = "I encountered a technical issue. Please try again in a few moments."
)

// NewSessionID returns a fresh conversation ID for the agent runtime.
func NewSessionID() string {
	return uuid.New().String()
}

// Client speaks to one agent alias through the Bedrock agent runtime.
type Client struct {
	runtime *bedrockagentruntime.Client
	agentID string
	aliasID string
	log     *logging.Logger
}

// New creates a Client for the given agent and alias.
func New(runtime *bedrockagentruntime.Client, agentID, aliasID string, log *logging.Logger) *Client {
	return &Client{
		runtime: runtime,
		agentID: agentID,
		aliasID: aliasID,
		log:     log.Sub("assistant"),
	}
}

// Ask runs one query through the agent and always produces readable
// text: input problems and AWS failures come back as advice instead of
// an error.
func (c *Client) Ask(ctx context.Context, query, sessionID string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		c.log.Warn().Msg("empty query received")
		return msgEmptyQuery
	}
	if len(query) > maxQueryChars {
		c.log.Warn().Int("chars", len(query)).Msg("query too long")
		return msgQueryTooLong
	}

	text, err := c.Invoke(ctx, query, sessionID)
	if err != nil {
		c.log.Error().Err(err).Str("session_id", sessionID).Msg("agent invocation failed")
		return friendlyError(err)
	}
	if text == "" {
		c.log.Warn().Str("session_id", sessionID).Msg("empty response from agent")
		return msgEmptyResponse
	}
	return text
}

// Invoke sends the query to the agent and accumulates the streamed
// completion. Runaway streams are cut off: past 1000 chunks the stream
// is abandoned, and past 50000 characters the text is truncated with a
// notice appended.
func (c *Client) Invoke(ctx context.Context, query, sessionID string) (string, error) {
	c.log.Info().
		Str("agent_id", c.agentID).
		Str("alias_id", c.aliasID).
		Str("session_id", sessionID).
		Int("query_chars", len(query)).
		Msg("invoking agent")

	out, err := c.runtime.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(c.agentID),
		AgentAliasId: aws.String(c.aliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(query),
	})
	if err != nil {
		return "", fmt.Errorf("invoke agent %s: %w", c.agentID, err)
	}

	stream := out.GetStream()
	defer stream.Close()

	var b strings.Builder
	chunks := 0
	for event := range stream.Events() {
		chunks++
		if chunks > maxChunks {
			c.log.Warn().Int("chunks", chunks).Msg("too many response chunks, truncating")
			break
		}
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		b.Write(chunk.Value.Bytes)
		if b.Len() > maxResponseChars {
			c.log.Warn().Int("chars", b.Len()).Msg("response too long, truncating")
			b.WriteString("\n\n[Response truncated due to length]")
			break
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("read agent stream: %w", err)
	}

	text := strings.TrimSpace(b.String())
	c.log.Info().Int("chars", len(text)).Int("chunks", chunks).Msg("agent responded")
	return text, nil
}

// friendlyError maps an AWS failure onto advice a maintenance operator
// can act on.
func friendlyError(err error) string {
	switch awsx.ErrorCode(err) {
	case "ValidationException":
		return msgBadRequest
	case "AccessDeniedException":
		return msgNoAccess
	case "ThrottlingException":
		return msgBusy
	case "ResourceNotFoundException":
		return msgUnavailable
	default:
		return msgTechnical
	}
}
