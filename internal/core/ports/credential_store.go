package ports

import (
	"context"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// CredentialStore is the read/write contract the chat core needs from storage.
type CredentialStore interface {
	GetUser(ctx context.Context, username string) (*domain.User, error)
	AddUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	SaveMessage(ctx context.Context, msg domain.Message) error
	RecentMessages(ctx context.Context, limit int) ([]domain.Message, error)
}
