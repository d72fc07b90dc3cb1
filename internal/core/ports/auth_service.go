package ports

import (
	"context"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// Authenticator validates chat logins. Unknown users and wrong passwords are
// both reported as domain.ErrInvalidCredentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (domain.Role, error)
}

// AuthService adds account management and admin tokens on top of Authenticator.
type AuthService interface {
	Authenticator
	Register(ctx context.Context, username, password string, role domain.Role) (*domain.User, error)
	IssueToken(username string, role domain.Role) (string, error)
}
