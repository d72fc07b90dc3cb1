package ports

import (
	"context"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// UserRepository persists chat accounts. Implementations must enforce unique
// usernames atomically and return domain.ErrUserExists on conflict.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}
