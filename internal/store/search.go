package store

import "time"

// SearchHit is one transcript message matched by full-text search.
type SearchHit struct {
	ConversationID string
	SessionID      string
	Title          string
	Role           string
	Content        string
	Timestamp      time.Time
	Rank           float64
}

// Search finds transcript messages matching the query using FTS5.
// Results are ranked by relevance. Limit of 0 defaults to 20.
func (s *TranscriptStore) Search(query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.sql.Query(
		`SELECT c.id, c.session_id, c.title, m.role, m.content, m.timestamp, rank
		 FROM message_fts
		 JOIN messages m ON m.id = message_fts.rowid
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE message_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		var ts string
		if err := rows.Scan(
			&hit.ConversationID, &hit.SessionID, &hit.Title,
			&hit.Role, &hit.Content, &ts, &hit.Rank,
		); err != nil {
			continue
		}
		hit.Timestamp, _ = time.Parse(time.DateTime, ts)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
