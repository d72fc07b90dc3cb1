package memory

import (
	"context"
	"sync"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// MessageRepository implements ports.MessageRepository as an append-only slice.
type MessageRepository struct {
	mu       sync.RWMutex
	messages []domain.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{}
}

// Append assigns msg.ID and stores a copy.
func (r *MessageRepository) Append(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *MessageRepository) Recent(_ context.Context, limit int) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		return []domain.Message{}, nil
	}
	start := len(r.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]domain.Message, len(r.messages)-start)
	copy(out, r.messages[start:])
	return out, nil
}

// Len returns the number of stored messages.
func (r *MessageRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}
