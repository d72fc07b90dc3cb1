package ports

import (
	"context"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// MessageRepository is the append-only chat history.
type MessageRepository interface {
	// Append stores msg and assigns it the next insertion id.
	Append(ctx context.Context, msg *domain.Message) error
	// Recent returns at most limit of the most recently appended messages,
	// oldest first.
	Recent(ctx context.Context, limit int) ([]domain.Message, error)
}
