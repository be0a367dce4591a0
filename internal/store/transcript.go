package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// titleLimit caps the auto-derived conversation title length.
const titleLimit = 80

// Conversation is one chat thread against the assistant, keyed by the
// Bedrock session ID it ran under.
type Conversation struct {
	ID        string
	SessionID string
	Source    string // "chat", "console", "direct"
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// Message is one turn in a conversation.
type Message struct {
	Role      string // "user" or "assistant"
	Content   string
	Timestamp time.Time
	Elapsed   time.Duration // assistant turns: time to answer
}

// TranscriptStore records conversations and their messages.
type TranscriptStore struct {
	db *DB
}

// NewTranscriptStore creates a transcript store using the given database.
func NewTranscriptStore(db *DB) *TranscriptStore {
	return &TranscriptStore{db: db}
}

// FindBySession returns the conversation for a Bedrock session ID, or
// nil if none exists.
func (s *TranscriptStore) FindBySession(sessionID string) *Conversation {
	var conv Conversation
	var createdAt, updatedAt string
	err := s.db.sql.QueryRow(
		`SELECT id, session_id, source, title, created_at, updated_at
		 FROM conversations WHERE session_id = ?`, sessionID,
	).Scan(&conv.ID, &conv.SessionID, &conv.Source, &conv.Title, &createdAt, &updatedAt)
	if err != nil {
		return nil
	}
	conv.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	conv.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return &conv
}

// GetOrCreate finds an existing conversation by session ID or creates a
// new one.
func (s *TranscriptStore) GetOrCreate(sessionID, source string) *Conversation {
	if conv := s.FindBySession(sessionID); conv != nil {
		return conv
	}

	conv := Conversation{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Source:    source,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO conversations (id, session_id, source, title, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?)`,
		conv.ID, sessionID, source,
		conv.CreatedAt.Format(time.DateTime), conv.UpdatedAt.Format(time.DateTime),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to create conversation")
	}

	return &conv
}

// Get returns a conversation by ID with its messages, or nil if not found.
func (s *TranscriptStore) Get(id string) *Conversation {
	var conv Conversation
	var createdAt, updatedAt string

	err := s.db.sql.QueryRow(
		`SELECT id, session_id, source, title, created_at, updated_at
		 FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.SessionID, &conv.Source, &conv.Title, &createdAt, &updatedAt)
	if err != nil {
		return nil
	}

	conv.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	conv.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	conv.Messages = s.History(conv.ID)
	return &conv
}

// Append adds a message to a conversation and freshens its title and
// timestamp.
func (s *TranscriptStore) Append(conversationID string, msg Message) {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO messages (conversation_id, role, content, timestamp, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		conversationID, msg.Role, msg.Content, ts.Format(time.DateTime), msg.Elapsed.Milliseconds(),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("conversation", conversationID).Msg("failed to append message")
		return
	}

	// The first question becomes the title
	if msg.Role == "user" {
		_, _ = s.db.sql.Exec(
			`UPDATE conversations SET title = ? WHERE id = ? AND title = ''`,
			deriveTitle(msg.Content), conversationID,
		)
	}
	_, _ = s.db.sql.Exec(
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().Format(time.DateTime), conversationID,
	)
}

// History returns the messages of a conversation in order.
func (s *TranscriptStore) History(conversationID string) []Message {
	rows, err := s.db.sql.Query(
		`SELECT role, content, timestamp, elapsed_ms
		 FROM messages WHERE conversation_id = ? ORDER BY id`, conversationID,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var msg Message
		var ts string
		var elapsedMS int64

		if err := rows.Scan(&msg.Role, &msg.Content, &ts, &elapsedMS); err != nil {
			continue
		}
		msg.Timestamp, _ = time.Parse(time.DateTime, ts)
		msg.Elapsed = time.Duration(elapsedMS) * time.Millisecond

		msgs = append(msgs, msg)
	}
	return msgs
}

// Recent returns the most recently active conversations, newest first,
// without their messages. Limit of 0 defaults to 20.
func (s *TranscriptStore) Recent(limit int) []Conversation {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.sql.Query(
		`SELECT id, session_id, source, title, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var conv Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&conv.ID, &conv.SessionID, &conv.Source, &conv.Title, &createdAt, &updatedAt); err != nil {
			continue
		}
		conv.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		conv.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		convs = append(convs, conv)
	}
	return convs
}

// Delete removes a conversation and its messages. Messages are deleted
// directly rather than by FK cascade so the FTS triggers always fire.
func (s *TranscriptStore) Delete(id string) error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// deriveTitle turns the first question into a short conversation title.
func deriveTitle(content string) string {
	t := strings.TrimSpace(content)
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = strings.TrimSpace(t[:nl])
	}
	runes := []rune(t)
	if len(runes) > titleLimit {
		t = string(runes[:titleLimit-3]) + "..."
	}
	return t
}
