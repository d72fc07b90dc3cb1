package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/api/metrics"
	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
	"github.com/99minutos/lanchat/internal/protocol"
)

// ErrAlreadyRegistered is returned by Join for a peer id already in the registry.
var ErrAlreadyRegistered = errors.New("session already registered")

// DeliveryFailure records one recipient that did not receive a broadcast.
type DeliveryFailure struct {
	SessionID string
	Username  string
	Err       error
}

// Delivery is the per-recipient outcome of one broadcast.
type Delivery struct {
	Timestamp  string
	Recipients int
	Delivered  int
	Failed     []DeliveryFailure
	// StoreErr is set when a chat message could not be persisted. The
	// message is still delivered.
	StoreErr error
}

// Broadcaster persists chat messages and fans them out to the registry.
//
// A single mutex covers timestamping, persistence and enqueueing to every
// recipient, and also covers Join, so stored order, delivered order and
// history replay never disagree.
type Broadcaster struct {
	mu       sync.Mutex
	store    ports.CredentialStore
	registry *Registry
	log      zerolog.Logger
	now      func() time.Time
}

func NewBroadcaster(store ports.CredentialStore, registry *Registry, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		store:    store,
		registry: registry,
		log:      log.With().Str("component", "broadcaster").Logger(),
		now:      time.Now,
	}
}

// Broadcast sends content to every registered session. Non-system messages
// are persisted first; system notices are attributed to SYSTEM and never
// stored. Failures are reported per recipient and never abort the fan-out.
func (b *Broadcaster) Broadcast(ctx context.Context, username, content string, system bool) Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	defer func() { metrics.BroadcastDuration.Observe(time.Since(start).Seconds()) }()

	d := Delivery{Timestamp: domain.FormatTimestamp(b.now())}

	kind := "system"
	if !system {
		kind = "chat"
		msg := domain.Message{Username: username, Timestamp: d.Timestamp, Content: content}
		if err := b.store.SaveMessage(ctx, msg); err != nil {
			d.StoreErr = err
			b.log.Error().Err(err).Str("username", username).Msg("failed to persist message, broadcasting anyway")
		}
	}
	metrics.BroadcastsTotal.WithLabelValues(kind).Inc()

	frame, err := protocol.Encode(protocol.NewChat(username, d.Timestamp, content, system))
	if err != nil {
		b.log.Error().Err(err).Msg("failed to encode broadcast")
		return d
	}

	b.fanOut(frame, &d)

	if len(d.Failed) > 0 {
		b.log.Warn().
			Int("recipients", d.Recipients).
			Int("failed", len(d.Failed)).
			Bool("system", system).
			Msg("broadcast partially delivered")
	}
	return d
}

func (b *Broadcaster) fanOut(frame []byte, d *Delivery) {
	peers := b.registry.Snapshot()
	d.Recipients = len(peers)

	for _, p := range peers {
		if err := p.Deliver(frame); err != nil {
			info := p.Info()
			d.Failed = append(d.Failed, DeliveryFailure{SessionID: info.ID, Username: info.Username, Err: err})
			metrics.DeliveryFailuresTotal.Inc()
			b.log.Debug().Err(err).Str("session_id", info.ID).Str("username", info.Username).Msg("delivery failed")
			continue
		}
		d.Delivered++
	}
}

// Join registers peer and queues its history replay (at most historyLimit
// messages, oldest first) before any later broadcast can reach it. A history
// load failure is logged and replayed as an empty history.
func (b *Broadcaster) Join(ctx context.Context, peer ports.Peer, historyLimit int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	info := peer.Info()

	msgs, err := b.store.RecentMessages(ctx, historyLimit)
	if err != nil {
		b.log.Error().Err(err).Str("session_id", info.ID).Msg("failed to load history, replaying empty history")
		msgs = nil
	}

	frame, err := protocol.Encode(protocol.NewHistory(msgs))
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}

	if !b.registry.Register(peer) {
		return fmt.Errorf("join %s: %w", info.ID, ErrAlreadyRegistered)
	}

	if err := peer.Deliver(frame); err != nil {
		return fmt.Errorf("join %s: deliver history: %w", info.ID, err)
	}
	return nil
}
