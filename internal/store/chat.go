package store

import (
	"context"
	"fmt"

	"github.com/projectcloudline/loss-assessment-service/internal/assistant"
	"github.com/projectcloudline/loss-assessment-service/internal/db"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

// AppendChat stores one chat entry of a session.
func (s *Store) AppendChat(ctx context.Context, sessionID string, e assistant.Entry) error {
	if _, err := s.db.Insert(ctx,
		`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		sessionID, string(e.Role), e.Content, e.Timestamp); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ChatHistory returns the most recent limit entries of a session, oldest
// first.
func (s *Store) ChatHistory(ctx context.Context, sessionID string, limit int) ([]assistant.Entry, error) {
	if limit <= 0 {
		limit = assistant.MaxHistory
	}
	rows, err := s.db.Query(ctx,
		`SELECT role, content, created_at FROM (
		     SELECT id, role, content, created_at FROM chat_messages
		     WHERE session_id = $1 ORDER BY id DESC LIMIT $2
		 ) recent ORDER BY id`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	out := make([]assistant.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, assistant.Entry{
			Role:      oracle.Role(db.String(row["role"])),
			Content:   db.String(row["content"]),
			Timestamp: db.Time(row["created_at"]),
		})
	}
	return out, nil
}

// ClearChat deletes every entry of a session.
func (s *Store) ClearChat(ctx context.Context, sessionID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}
	return nil
}
