package console

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/logging"
	"github.com/fieldsight/maintkit/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsker struct {
	mu          sync.Mutex
	reply       string
	err         error
	lastQuery   string
	lastSession string
}

func (f *fakeAsker) Ask(ctx context.Context, query, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	f.lastSession = sessionID
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeAsker) Target() string { return "fake://assistant" }

func (f *fakeAsker) last() (query, session string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery, f.lastSession
}

func testServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.ConsoleConfig{Port: 8501, Bind: "loopback"}
	log := logging.New(nil, "silent")

	srv := New(cfg, log, opts...)

	mux := http.NewServeMux()
	srv.registerHTTPRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func testTranscripts(t *testing.T) *store.TranscriptStore {
	t.Helper()
	db, err := store.Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewTranscriptStore(db)
}

// connectWS dials the console WebSocket and reads the hello event.
func connectWS(t *testing.T, ts *httptest.Server, session string) (*websocket.Conn, Hello) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if session != "" {
		wsURL += "?session=" + session
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })

	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, FrameTypeEvent, frame.Type)
	require.Equal(t, "console.hello", frame.Event)

	var hello Hello
	require.NoError(t, json.Unmarshal(frame.Payload, &hello))
	return conn, hello
}

// call sends one RPC request and returns the matching response frame.
func call(t *testing.T, conn *websocket.Conn, id, method string, params any) Frame {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, FrameTypeResponse, resp.Type)
	require.Equal(t, id, resp.ID)
	return resp
}

// --- HTTP route tests ---

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestIndexPage(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Virtual Engineer")
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- WebSocket session tests ---

func TestWebSocketHello(t *testing.T) {
	_, ts := testServer(t, WithAsker(&fakeAsker{reply: "hi"}))

	_, hello := connectWS(t, ts, "")

	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.ConnID)
	assert.Equal(t, "fake://assistant", hello.Target)
	assert.Contains(t, hello.Methods, "chat.send")
	assert.False(t, hello.Resumed)

	_, err := uuid.Parse(hello.SessionID)
	assert.NoError(t, err, "fresh connections get a generated session ID")
}

func TestWebSocketHello_KeepsProvidedSession(t *testing.T) {
	_, ts := testServer(t)

	_, hello := connectWS(t, ts, "my-custom-session")

	assert.Equal(t, "my-custom-session", hello.SessionID)
	assert.False(t, hello.Resumed)
}

func TestWebSocketHello_ResumesRecordedSession(t *testing.T) {
	transcripts := testTranscripts(t)
	conv := transcripts.GetOrCreate("sess-resume-1", "console")
	transcripts.Append(conv.ID, store.Message{Role: "user", Content: "pump status?"})
	transcripts.Append(conv.ID, store.Message{Role: "assistant", Content: "Pump 2 pressure is low."})

	_, ts := testServer(t, WithTranscripts(transcripts))

	_, hello := connectWS(t, ts, "sess-resume-1")

	assert.Equal(t, "sess-resume-1", hello.SessionID)
	assert.True(t, hello.Resumed)
	require.Len(t, hello.History, 2)
	assert.Equal(t, "user", hello.History[0].Role)
	assert.Equal(t, "pump status?", hello.History[0].Content)
	assert.Equal(t, "Pump 2 pressure is low.", hello.History[1].Content)
}

// --- chat.send tests ---

func TestChatSend(t *testing.T) {
	asker := &fakeAsker{reply: "Conveyor 3 shows elevated vibration."}
	_, ts := testServer(t, WithAsker(asker))

	conn, hello := connectWS(t, ts, "")

	resp := call(t, conn, "chat-1", "chat.send", chatSendParams{Message: "conveyor status?"})
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var result ChatResult
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, "Conveyor 3 shows elevated vibration.", result.Response)
	assert.Equal(t, hello.SessionID, result.SessionID)

	query, session := asker.last()
	assert.Equal(t, "conveyor status?", query)
	assert.Equal(t, hello.SessionID, session)
}

func TestChatSend_EmptyMessage(t *testing.T) {
	_, ts := testServer(t, WithAsker(&fakeAsker{reply: "hi"}))

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "chat-2", "chat.send", chatSendParams{Message: "   "})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestChatSend_TooLong(t *testing.T) {
	_, ts := testServer(t, WithAsker(&fakeAsker{reply: "hi"}))

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "chat-3", "chat.send", chatSendParams{Message: strings.Repeat("x", maxMessageChars+1)})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestChatSend_NoBackend(t *testing.T) {
	_, ts := testServer(t)

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "chat-4", "chat.send", chatSendParams{Message: "hello"})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	assert.Equal(t, "unavailable", resp.Error.Code)
}

func TestChatSend_BackendError(t *testing.T) {
	asker := &fakeAsker{err: io.ErrUnexpectedEOF}
	_, ts := testServer(t, WithAsker(asker))

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "chat-5", "chat.send", chatSendParams{Message: "status?"})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	assert.Equal(t, "agent_error", resp.Error.Code)
}

func TestChatSend_RecordsTranscript(t *testing.T) {
	transcripts := testTranscripts(t)
	asker := &fakeAsker{reply: "Replace the bearing within two weeks."}
	_, ts := testServer(t, WithAsker(asker), WithTranscripts(transcripts))

	conn, hello := connectWS(t, ts, "")

	call(t, conn, "chat-6", "chat.send", chatSendParams{Message: "bearing recommendation?"})

	conv := transcripts.FindBySession(hello.SessionID)
	require.NotNil(t, conv)
	assert.Equal(t, "console", conv.Source)

	msgs := transcripts.History(conv.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "bearing recommendation?", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "Replace the bearing within two weeks.", msgs[1].Content)
}

// --- other RPC tests ---

func TestRPCHealth(t *testing.T) {
	_, ts := testServer(t, WithAsker(&fakeAsker{reply: "hi"}))

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "health-1", "health", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "fake://assistant", health.Target)
	assert.Equal(t, 1, health.Clients)
}

func TestSessionReset(t *testing.T) {
	_, ts := testServer(t, WithAsker(&fakeAsker{reply: "hi"}))

	conn, hello := connectWS(t, ts, "")

	resp := call(t, conn, "reset-1", "session.reset", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var result map[string]string
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.NotEmpty(t, result["sessionId"])
	assert.NotEqual(t, hello.SessionID, result["sessionId"])

	_, err := uuid.Parse(result["sessionId"])
	assert.NoError(t, err)
}

func TestSessionReset_NewTranscript(t *testing.T) {
	transcripts := testTranscripts(t)
	asker := &fakeAsker{reply: "ok"}
	_, ts := testServer(t, WithAsker(asker), WithTranscripts(transcripts))

	conn, hello := connectWS(t, ts, "")
	call(t, conn, "c-1", "chat.send", chatSendParams{Message: "first question"})

	resp := call(t, conn, "r-1", "session.reset", nil)
	var result map[string]string
	require.NoError(t, json.Unmarshal(resp.Payload, &result))

	call(t, conn, "c-2", "chat.send", chatSendParams{Message: "second question"})

	first := transcripts.FindBySession(hello.SessionID)
	second := transcripts.FindBySession(result["sessionId"])
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, transcripts.History(first.ID), 2)
	assert.Len(t, transcripts.History(second.ID), 2)
}

func TestChatHistoryRPC(t *testing.T) {
	transcripts := testTranscripts(t)
	_, ts := testServer(t, WithAsker(&fakeAsker{reply: "All pumps nominal."}), WithTranscripts(transcripts))

	conn, hello := connectWS(t, ts, "")
	call(t, conn, "c-1", "chat.send", chatSendParams{Message: "pump check"})

	resp := call(t, conn, "h-1", "chat.history", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var result struct {
		SessionID string        `json:"sessionId"`
		Messages  []ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Equal(t, hello.SessionID, result.SessionID)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "pump check", result.Messages[0].Content)
}

func TestTranscriptListRPC(t *testing.T) {
	transcripts := testTranscripts(t)
	conv := transcripts.GetOrCreate("sess-list-1", "console")
	transcripts.Append(conv.ID, store.Message{Role: "user", Content: "motor drive faults?"})

	_, ts := testServer(t, WithTranscripts(transcripts))

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "l-1", "transcript.list", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var result struct {
		Conversations []transcriptSummary `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	require.NotEmpty(t, result.Conversations)
	assert.Equal(t, "sess-list-1", result.Conversations[0].SessionID)
	assert.Equal(t, "motor drive faults?", result.Conversations[0].Title)
}

func TestTranscriptSearchRPC(t *testing.T) {
	transcripts := testTranscripts(t)
	conv := transcripts.GetOrCreate("sess-search-1", "console")
	transcripts.Append(conv.ID, store.Message{Role: "assistant", Content: "The gearbox is overheating under load."})

	_, ts := testServer(t, WithTranscripts(transcripts))

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "s-1", "transcript.search", transcriptSearchParams{Query: "gearbox"})
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var result struct {
		Hits []searchHit `json:"hits"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "sess-search-1", result.Hits[0].SessionID)
	assert.Contains(t, result.Hits[0].Content, "gearbox")
}

func TestTranscriptSearchRPC_RequiresQuery(t *testing.T) {
	_, ts := testServer(t, WithTranscripts(testTranscripts(t)))

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "s-2", "transcript.search", transcriptSearchParams{Query: "  "})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	_, ts := testServer(t)

	conn, _ := connectWS(t, ts, "")

	resp := call(t, conn, "u-1", "nonexistent.method", nil)
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "method_not_found", resp.Error.Code)
}

// --- lifecycle tests ---

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		bind string
		host string
		port int
		want string
	}{
		{"loopback", "", 8501, "127.0.0.1:8501"},
		{"lan", "", 9999, "0.0.0.0:9999"},
		{"custom", "10.0.0.5", 3000, "10.0.0.5:3000"},
		{"custom", "", 3000, "0.0.0.0:3000"},
		{"", "", 5000, "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.bind+"/"+tt.host, func(t *testing.T) {
			addr := resolveBindAddr(config.ConsoleConfig{Bind: tt.bind, Host: tt.host, Port: tt.port})
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestServerStart(t *testing.T) {
	cfg := config.ConsoleConfig{Port: 0, Bind: "loopback"} // let OS pick a port
	log := logging.New(nil, "silent")
	srv := New(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Give it a moment to start
	time.Sleep(100 * time.Millisecond)

	cancel()

	err := <-errCh
	assert.NoError(t, err)
}
