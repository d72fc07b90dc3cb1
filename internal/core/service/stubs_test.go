package service

import (
	"context"
	"errors"
	"sync"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs shared by the service tests
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users   map[string]*domain.User
	order   []string
	findErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, exists := r.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	stored := cloneUser(user)
	stored.ID = user.Username
	r.users[stored.Username] = stored
	r.order = append(r.order, stored.Username)
	return cloneUser(stored), nil
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, cloneUser(r.users[name]))
	}
	return out, nil
}

type stubMessageRepo struct {
	mu        sync.Mutex
	messages  []domain.Message
	appendErr error
	recentErr error
}

func (r *stubMessageRepo) Append(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	msg.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *stubMessageRepo) Recent(_ context.Context, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recentErr != nil {
		return nil, r.recentErr
	}
	start := len(r.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]domain.Message, len(r.messages)-start)
	copy(out, r.messages[start:])
	return out, nil
}

func (r *stubMessageRepo) stored() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

var errStubDeliver = errors.New("stub: deliver failed")

// stubPeer records every frame delivered to it.
type stubPeer struct {
	info domain.SessionInfo

	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func newStubPeer(id, username string) *stubPeer {
	return &stubPeer{info: domain.SessionInfo{ID: id, Username: username, Role: domain.RoleUser}}
}

func (p *stubPeer) ID() string { return p.info.ID }
func (p *stubPeer) Info() domain.SessionInfo { return p.info }

func (p *stubPeer) Deliver(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errStubDeliver
	}
	p.frames = append(p.frames, append([]byte(nil), frame...))
	return nil
}

func (p *stubPeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *stubPeer) received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, string(f))
	}
	return out
}
