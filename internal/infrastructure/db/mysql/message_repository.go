package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/99minutos/lanchat/internal/core/domain"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO messages (username, timestamp, content) VALUES (?, ?, ?)",
		msg.Username, msg.Timestamp, msg.Content)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert message: last id: %w", err)
	}
	msg.ID = id
	return nil
}

// Recent selects the newest limit rows and returns them oldest first.
func (r *MessageRepository) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, timestamp, content FROM (
			SELECT id, username, timestamp, content FROM messages ORDER BY id DESC LIMIT ?
		) recent ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	out := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.Username, &m.Timestamp, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return out, nil
}
