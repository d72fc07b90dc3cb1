package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
)

// registration carries the rules applied to new accounts. bcrypt ignores
// everything past 72 bytes, so longer passwords are rejected.
type registration struct {
	Username string `validate:"required,username"`
	Password string `validate:"required,min=8,max=72"`
	Role     string `validate:"required,oneof=user admin"`
}

// AuthService implements chat login, account registration and admin tokens.
type AuthService struct {
	store     ports.CredentialStore
	validate  *validator.Validate
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(store ports.CredentialStore, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return domain.ValidUsername(fl.Field().String())
	})
	return &AuthService{store: store, validate: v, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Login returns the stored role for valid credentials. Unknown users, wrong
// passwords and unreadable hashes all yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.Role, error) {
	if username == "" || password == "" {
		return "", domain.ErrInvalidCredentials
	}

	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			checkPassword(string(dummyHash), password)
			return "", domain.ErrInvalidCredentials
		}
		return "", fmt.Errorf("login: %w", err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return "", domain.ErrInvalidCredentials
	}
	return user.Role, nil
}

// Register validates and creates a new account.
func (s *AuthService) Register(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	req := registration{Username: username, Password: password, Role: string(role)}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, describeValidation(err))
	}
	return s.store.AddUser(ctx, username, password, role)
}

// IssueToken signs an HS256 token for the admin API.
func (s *AuthService) IssueToken(username string, role domain.Role) (string, error) {
	claims := jwt.MapClaims{
		"username": username,
		"role":     string(role),
		"exp":      time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

func describeValidation(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "username":
			msgs = append(msgs, field+" must be 3-20 letters, digits or underscores")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
