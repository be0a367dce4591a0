package console

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/store"
)

// maxMessageChars mirrors the query handler's limit so oversized
// questions fail locally instead of burning a round trip.
const maxMessageChars = 10000

// askTimeout is the maximum duration for one assistant call.
const askTimeout = 3 * time.Minute

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("chat.history", s.rpcChatHistory)
	s.Handle("session.reset", s.rpcSessionReset)
	s.Handle("transcript.list", s.rpcTranscriptList)
	s.Handle("transcript.search", s.rpcTranscriptSearch)
}

// Built-in RPC handlers

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Target:   s.target(),
		Clients:  s.clients.Count(),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	})
}

type chatSendParams struct {
	Message string `json:"message"`
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	if s.ask == nil {
		rc.RespondError("unavailable", "no assistant backend configured")
		return
	}

	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	p.Message = strings.TrimSpace(p.Message)
	if p.Message == "" {
		rc.RespondError("invalid_params", "message is required")
		return
	}
	if len(p.Message) > maxMessageChars {
		rc.RespondError("invalid_params", "message exceeds 10,000 characters")
		return
	}

	s.record(rc.Client, store.Message{Role: "user", Content: p.Message})

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	start := time.Now()
	answer, err := s.ask.Ask(ctx, p.Message, rc.Client.SessionID)
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", rc.Client.SessionID).Msg("assistant call failed")
		rc.RespondError("agent_error", err.Error())
		return
	}
	elapsed := time.Since(start)

	s.record(rc.Client, store.Message{Role: "assistant", Content: answer, Elapsed: elapsed})

	rc.Respond(ChatResult{
		Response:   answer,
		SessionID:  rc.Client.SessionID,
		DurationMs: elapsed.Milliseconds(),
	})
}

func (s *Server) rpcChatHistory(rc *RequestContext) {
	rc.Respond(map[string]any{
		"sessionId": rc.Client.SessionID,
		"messages":  s.history(rc.Client.SessionID),
	})
}

func (s *Server) rpcSessionReset(rc *RequestContext) {
	rc.Client.SessionID = assistant.NewSessionID()
	rc.Client.ConversationID = ""
	s.log.Info().Str("connId", rc.Client.ConnID).Str("sessionId", rc.Client.SessionID).Msg("session reset")
	rc.Respond(map[string]any{"sessionId": rc.Client.SessionID})
}

type transcriptListParams struct {
	Limit int `json:"limit,omitempty"`
}

// transcriptSummary is one conversation row in transcript.list.
type transcriptSummary struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) rpcTranscriptList(rc *RequestContext) {
	if s.transcripts == nil {
		rc.Respond(map[string]any{"conversations": []transcriptSummary{}})
		return
	}

	var p transcriptListParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	convs := s.transcripts.Recent(p.Limit)
	out := make([]transcriptSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, transcriptSummary{
			ID:        c.ID,
			SessionID: c.SessionID,
			Source:    c.Source,
			Title:     c.Title,
			UpdatedAt: c.UpdatedAt,
		})
	}
	rc.Respond(map[string]any{"conversations": out})
}

type transcriptSearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// searchHit is one matched transcript message in transcript.search.
type searchHit struct {
	ConversationID string    `json:"conversationId"`
	SessionID      string    `json:"sessionId"`
	Title          string    `json:"title"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

func (s *Server) rpcTranscriptSearch(rc *RequestContext) {
	var p transcriptSearchParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(p.Query) == "" {
		rc.RespondError("invalid_params", "query is required")
		return
	}
	if s.transcripts == nil {
		rc.Respond(map[string]any{"hits": []searchHit{}})
		return
	}

	hits, err := s.transcripts.Search(p.Query, p.Limit)
	if err != nil {
		rc.RespondError("search_failed", err.Error())
		return
	}

	out := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchHit{
			ConversationID: h.ConversationID,
			SessionID:      h.SessionID,
			Title:          h.Title,
			Role:           h.Role,
			Content:        h.Content,
			Timestamp:      h.Timestamp,
		})
	}
	rc.Respond(map[string]any{"hits": out})
}

// record appends a transcript entry when a transcript store is configured.
func (s *Server) record(c *Client, msg store.Message) {
	if s.transcripts == nil {
		return
	}
	if c.ConversationID == "" {
		c.ConversationID = s.transcripts.GetOrCreate(c.SessionID, "console").ID
	}
	s.transcripts.Append(c.ConversationID, msg)
}

// history returns the stored transcript for a session, oldest first.
func (s *Server) history(sessionID string) []ChatMessage {
	if s.transcripts == nil {
		return []ChatMessage{}
	}
	conv := s.transcripts.FindBySession(sessionID)
	if conv == nil {
		return []ChatMessage{}
	}
	msgs := s.transcripts.History(conv.ID)
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

func (s *Server) target() string {
	if s.ask == nil {
		return ""
	}
	return s.ask.Target()
}
