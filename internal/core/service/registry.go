package service

import (
	"sort"
	"sync"

	"github.com/99minutos/lanchat/internal/api/metrics"
	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
)

// Registry is the concurrent set of authenticated sessions used for fan-out.
// A session appears at most once, keyed by its id.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]ports.Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]ports.Peer)}
}

// Register adds peer. It returns false, leaving the registry unchanged, when
// a peer with the same id is already present.
func (r *Registry) Register(peer ports.Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[peer.ID()]; exists {
		return false
	}
	r.peers[peer.ID()] = peer
	metrics.SessionsActive.Set(float64(len(r.peers)))
	return true
}

// Unregister removes the peer with id. It is a no-op returning false when
// the id is not present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; !exists {
		return false
	}
	delete(r.peers, id)
	metrics.SessionsActive.Set(float64(len(r.peers)))
	return true
}

// Snapshot returns a point-in-time copy safe to iterate while the registry
// keeps changing.
func (r *Registry) Snapshot() []ports.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]ports.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Sessions describes the registered sessions, oldest connection first.
func (r *Registry) Sessions() []domain.SessionInfo {
	peers := r.Snapshot()
	infos := make([]domain.SessionInfo, 0, len(peers))
	for _, p := range peers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ConnectedAt.Equal(infos[j].ConnectedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}
