package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/core/domain"
)

func newTestAuthService(t *testing.T) (*AuthService, *stubUserRepo) {
	t.Helper()
	users := newStubUserRepo()
	store := NewCredentialService(users, &stubMessageRepo{}, zerolog.Nop())
	return NewAuthService(store, "secret", time.Hour), users
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "wonderland", domain.RoleAdmin); err != nil {
		t.Fatalf("register: %v", err)
	}

	role, err := svc.Login(ctx, "alice", "wonderland")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if role != domain.RoleAdmin {
		t.Fatalf("expected role admin, got %s", role)
	}
}

func TestAuthService_Login_Rejections(t *testing.T) {
	svc, users := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "wonderland", domain.RoleUser); err != nil {
		t.Fatalf("register: %v", err)
	}
	users.users["mallory"] = &domain.User{ID: "m", Username: "mallory", PasswordHash: "not-a-bcrypt-hash", Role: domain.RoleUser}

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "nope-nope"},
		{"unknown user", "nobody", "wonderland"},
		{"corrupt stored hash", "mallory", "not-a-bcrypt-hash"},
		{"empty password", "alice", ""},
		{"empty username", "", "wonderland"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			role, err := svc.Login(ctx, tc.username, tc.password)
			if !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if role != "" {
				t.Fatalf("expected empty role on failure, got %q", role)
			}
		})
	}
}

func TestAuthService_Login_StorageFailure(t *testing.T) {
	svc, users := newTestAuthService(t)
	users.findErr = errors.New("disk on fire")

	_, err := svc.Login(context.Background(), "alice", "wonderland")
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected a storage error, got %v", err)
	}
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError in chain, got %T", err)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
		role     domain.Role
	}{
		{"short username", "al", "wonderland", domain.RoleUser},
		{"bad characters", "al ice", "wonderland", domain.RoleUser},
		{"short password", "alice", "short", domain.RoleUser},
		{"unknown role", "alice", "wonderland", domain.Role("root")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.username, tc.password, tc.role); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "wonderland", domain.RoleUser); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "different1", domain.RoleAdmin); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	role, err := svc.Login(ctx, "alice", "wonderland")
	if err != nil || role != domain.RoleUser {
		t.Fatalf("original account changed: role=%q err=%v", role, err)
	}
}

func TestAuthService_IssueToken(t *testing.T) {
	svc, _ := newTestAuthService(t)

	signed, err := svc.IssueToken("alice", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte("secret"), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if claims["username"] != "alice" || claims["role"] != "admin" {
		t.Fatalf("unexpected claims: %v", claims)
	}
}
