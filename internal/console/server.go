// Package console serves the local web chat UI for the maintenance
// assistant. The browser loads a single embedded page, opens a WebSocket,
// and exchanges req/res/event frames with the server, which relays each
// question to the deployed query handler (or straight to the Bedrock
// agent) and records transcripts locally.
package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/logging"
	"github.com/fieldsight/maintkit/internal/store"
	"github.com/fieldsight/maintkit/internal/version"
	"github.com/gorilla/websocket"
)

var ErrClientClosed = errors.New("client connection closed")

// maxFrameBytes caps a single inbound WebSocket message.
const maxFrameBytes = 1 << 20

// Server is the console HTTP + WebSocket server.
type Server struct {
	cfg      config.ConsoleConfig
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	// Assistant backend; nil answers chat.send with an error.
	ask Asker

	// Transcript store; nil disables recording.
	transcripts *store.TranscriptStore

	corsOrigins []string

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures optional server collaborators.
type ServerOption func(*Server)

// WithAsker sets the assistant backend used to answer chat.send.
func WithAsker(a Asker) ServerOption {
	return func(s *Server) {
		s.ask = a
	}
}

// WithTranscripts sets the transcript store for conversation recording.
func WithTranscripts(ts *store.TranscriptStore) ServerOption {
	return func(s *Server) {
		s.transcripts = ts
	}
}

// WithAllowedOrigins permits cross-origin browsers beyond the console's
// own origin.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// New creates a new console server.
func New(cfg config.ConsoleConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log.Sub("console"),
		clients:  NewClientRegistry(log.Sub("clients")),
		handlers: make(map[string]RequestHandler),
		version:  version.Version,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, s.corsOrigins)
		},
	}

	s.registerRPCHandlers()
	return s
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the list of registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	return methods
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ConsoleConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.Host
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)

	handler := withMiddleware(mux, s.log, s.corsOrigins)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Bind != "" && s.cfg.Bind != "loopback" {
		s.log.Warn().Str("bind", s.cfg.Bind).Msg("console has no authentication; avoid exposing it beyond localhost")
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("target", s.target()).
		Int("methods", len(s.handlers)).
		Msg("console ready")

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down console")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	client, err := s.welcome(conn, r.URL.Query().Get("session"))
	if err != nil {
		s.log.Warn().Err(err).Msg("welcome failed")
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(client)
}

// welcome assigns a session to the new connection and pushes the hello
// event. Passing ?session=<id> continues that Bedrock session; when the
// transcript store knows it, the recorded history rides along.
func (s *Server) welcome(conn *websocket.Conn, sessionID string) (*Client, error) {
	resumed := false
	if sessionID == "" {
		sessionID = assistant.NewSessionID()
	} else if s.transcripts != nil && s.transcripts.FindBySession(sessionID) != nil {
		resumed = true
	}

	client := NewClient(conn, sessionID, s.log.Sub("ws"))

	hello := Hello{
		Protocol:  ProtocolVersion,
		ConnID:    client.ConnID,
		SessionID: sessionID,
		Version:   s.version,
		Target:    s.target(),
		Methods:   s.Methods(),
		Resumed:   resumed,
	}
	if resumed {
		hello.History = s.history(sessionID)
	}

	if err := client.SendEvent("console.hello", hello, s.eventSeq.Add(1)); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("sessionId", sessionID).
		Bool("resumed", resumed).
		Msg("console session started")

	return client, nil
}

// readLoop processes incoming frames from a connected client.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(client, frame)
	}
}

// dispatch routes a request frame to the appropriate handler.
func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    "method_not_found",
			Message: "unknown method: " + frame.Method,
		})
		return
	}

	rc := &RequestContext{
		Client: client,
		Frame:  frame,
		Server: s,
	}

	handler(rc)
}
