package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/api/metrics"
	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
)

// DefaultAdminUsername is the account created on first start.
const DefaultAdminUsername = "admin"

// CredentialService implements ports.CredentialStore over a user and a message
// repository. Passwords are hashed here, repositories only see hashes.
type CredentialService struct {
	users    ports.UserRepository
	messages ports.MessageRepository
	log      zerolog.Logger
}

// NewCredentialService returns a CredentialService.
func NewCredentialService(users ports.UserRepository, messages ports.MessageRepository, log zerolog.Logger) *CredentialService {
	return &CredentialService{
		users:    users,
		messages: messages,
		log:      log.With().Str("component", "credential_store").Logger(),
	}
}

func (s *CredentialService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			metrics.StorageErrorsTotal.WithLabelValues("get_user").Inc()
		}
		return nil, domain.NewStorageError("get user", err)
	}
	return user, nil
}

// AddUser hashes password and inserts the account. It fails with
// domain.ErrUserExists when username is taken, leaving the existing row as is.
func (s *CredentialService) AddUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("add user: %w: %q", domain.ErrInvalidRole, role)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("add user: hash password: %w", err)
	}

	created, err := s.users.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrUserExists) {
			metrics.StorageErrorsTotal.WithLabelValues("add_user").Inc()
		}
		return nil, domain.NewStorageError("add user", err)
	}
	return created, nil
}

func (s *CredentialService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, domain.NewStorageError("list users", err)
	}
	return users, nil
}

func (s *CredentialService) SaveMessage(ctx context.Context, msg domain.Message) error {
	if err := s.messages.Append(ctx, &msg); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("save_message").Inc()
		return domain.NewStorageError("save message", err)
	}
	return nil
}

// RecentMessages returns at most limit messages, oldest first.
func (s *CredentialService) RecentMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	msgs, err := s.messages.Recent(ctx, limit)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("recent_messages").Inc()
		return nil, domain.NewStorageError("recent messages", err)
	}
	return msgs, nil
}

// EnsureAdmin creates the bootstrap administrator when no account named
// DefaultAdminUsername exists. It reports whether an account was created.
func (s *CredentialService) EnsureAdmin(ctx context.Context, bootstrapPassword string) (bool, error) {
	_, err := s.GetUser(ctx, DefaultAdminUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return false, err
	}

	if _, err := s.AddUser(ctx, DefaultAdminUsername, bootstrapPassword, domain.RoleAdmin); err != nil {
		// Another process may have bootstrapped concurrently.
		if errors.Is(err, domain.ErrUserExists) {
			return false, nil
		}
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	s.log.Warn().
		Str("username", DefaultAdminUsername).
		Msg("created bootstrap administrator account; rotate BOOTSTRAP_ADMIN_PASSWORD before exposing the server")
	return true, nil
}
