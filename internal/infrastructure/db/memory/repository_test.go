package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/99minutos/lanchat/internal/core/domain"
)

func TestUserRepository_CreateAndFind(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected id to be assigned")
	}

	got, err := repo.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.PasswordHash != "h1" || got.Role != domain.RoleUser {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := repo.FindByUsername(ctx, "Alice"); err != domain.ErrUserNotFound {
		t.Fatalf("expected exact-match lookup to miss, got %v", err)
	}
}

func TestUserRepository_DuplicateLeavesRowUnchanged(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	_, _ = repo.Create(ctx, &domain.User{Username: "bob", PasswordHash: "original", Role: domain.RoleUser})
	if _, err := repo.Create(ctx, &domain.User{Username: "bob", PasswordHash: "other", Role: domain.RoleAdmin}); err != domain.ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	got, _ := repo.FindByUsername(ctx, "bob")
	if got.PasswordHash != "original" || got.Role != domain.RoleUser {
		t.Fatalf("existing row changed: %+v", got)
	}
}

func TestUserRepository_ConcurrentCreateIsAtomic(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Create(ctx, &domain.User{Username: "carol", Role: domain.RoleUser}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful create, got %d", wins)
	}
}

func TestUserRepository_ListOrderedByID(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	for _, name := range []string{"zed", "amy", "kim"} {
		if _, err := repo.Create(ctx, &domain.User{Username: name, Role: domain.RoleUser}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 3 || users[0].Username != "zed" || users[2].Username != "kim" {
		t.Fatalf("unexpected order: %v %v %v", users[0].Username, users[1].Username, users[2].Username)
	}
}

func TestMessageRepository_RecentOldestFirst(t *testing.T) {
	repo := NewMessageRepository()
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		msg := &domain.Message{Username: "alice", Content: fmt.Sprintf("m%d", i)}
		if err := repo.Append(ctx, msg); err != nil {
			t.Fatalf("append: %v", err)
		}
		if msg.ID != int64(i) {
			t.Fatalf("expected id %d, got %d", i, msg.ID)
		}
	}

	got, err := repo.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].Content != "m8" || got[1].Content != "m9" || got[2].Content != "m10" {
		t.Fatalf("unexpected recent messages: %+v", got)
	}

	all, _ := repo.Recent(ctx, 100)
	if len(all) != 10 || all[0].Content != "m1" {
		t.Fatalf("expected all 10 messages oldest first, got %d", len(all))
	}
}
