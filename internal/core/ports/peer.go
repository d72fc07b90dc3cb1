package ports

import "github.com/99minutos/lanchat/internal/core/domain"

// Peer is the broadcast-facing side of an authenticated connection.
type Peer interface {
	ID() string
	Info() domain.SessionInfo
	// Deliver queues one encoded frame without blocking. A non-nil error
	// means this recipient did not get the frame.
	Deliver(frame []byte) error
	// Close releases the connection. Safe to call more than once.
	Close() error
}
