package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL,
				source      TEXT NOT NULL DEFAULT 'chat',
				title       TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE UNIQUE INDEX idx_conversations_session ON conversations (session_id);
			CREATE INDEX idx_conversations_updated ON conversations (updated_at);

			CREATE TABLE messages (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				role            TEXT NOT NULL,
				content         TEXT NOT NULL,
				timestamp       TEXT NOT NULL DEFAULT (datetime('now')),
				elapsed_ms      INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create transcript full-text search",
		SQL: `
			CREATE VIRTUAL TABLE message_fts USING fts5(
				content,
				content='messages',
				content_rowid='id'
			);

			CREATE TRIGGER message_ai AFTER INSERT ON messages BEGIN
				INSERT INTO message_fts(rowid, content)
				VALUES (new.id, new.content);
			END;

			CREATE TRIGGER message_ad AFTER DELETE ON messages BEGIN
				INSERT INTO message_fts(message_fts, rowid, content)
				VALUES ('delete', old.id, old.content);
			END;

			CREATE TRIGGER message_au AFTER UPDATE ON messages BEGIN
				INSERT INTO message_fts(message_fts, rowid, content)
				VALUES ('delete', old.id, old.content);
				INSERT INTO message_fts(rowid, content)
				VALUES (new.id, new.content);
			END;
		`,
	},
}
