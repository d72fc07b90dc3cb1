package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
)

const (
	historyKey         = "lanchat:history"
	DefaultHistorySize = 500
)

// HistoryCache is a write-through ports.MessageRepository decorator that keeps
// the newest messages in a Redis list. The wrapped repository stays the source
// of truth: a Redis failure drops the cached list and reads fall back to it.
//
// Append and Recent are expected to be serialized by the caller, as the
// broadcaster does; concurrent use can leave the list stale until the next
// refill.
type HistoryCache struct {
	client *redis.Client
	inner  ports.MessageRepository
	size   int
	log    zerolog.Logger

	// stale is set when the list may be missing a message and could not be
	// dropped. Reads bypass Redis until a Warm succeeds.
	stale atomic.Bool
}

func NewHistoryCache(client *redis.Client, inner ports.MessageRepository, size int, log zerolog.Logger) *HistoryCache {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &HistoryCache{
		client: client,
		inner:  inner,
		size:   size,
		log:    log.With().Str("component", "history_cache").Logger(),
	}
}

type cachedMessage struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

func (c *HistoryCache) Append(ctx context.Context, msg *domain.Message) error {
	if err := c.inner.Append(ctx, msg); err != nil {
		return err
	}

	if c.stale.Load() {
		return nil
	}

	raw, err := encodeMessage(*msg)
	if err != nil {
		c.invalidate(ctx, err)
		return nil
	}

	// RPUSHX only extends a list that was already filled, so a cold cache is
	// never left holding a partial tail.
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPushX(ctx, historyKey, raw)
		pipe.LTrim(ctx, historyKey, int64(-c.size), -1)
		return nil
	})
	if err != nil {
		c.invalidate(ctx, err)
	}
	return nil
}

// Recent serves from Redis when the list already holds limit entries and
// otherwise reads the wrapped repository, refilling the list on the way.
func (c *HistoryCache) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}

	cachedLen := -1
	if c.stale.Load() {
		cachedLen = 0
	} else if limit <= c.size {
		raws, err := c.client.LRange(ctx, historyKey, int64(-limit), -1).Result()
		if err != nil {
			c.log.Warn().Err(err).Msg("history cache read failed, falling back to store")
		} else if len(raws) == limit {
			msgs, err := decodeMessages(raws)
			if err == nil {
				return msgs, nil
			}
			c.invalidate(ctx, err)
		} else {
			cachedLen = len(raws)
		}
	}

	msgs, err := c.inner.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	if cachedLen >= 0 && (cachedLen < len(msgs) || c.stale.Load()) {
		if err := c.Warm(ctx); err != nil {
			c.log.Warn().Err(err).Msg("history cache refill failed")
		}
	}
	return msgs, nil
}

// Warm replaces the cached list with the newest messages of the wrapped
// repository.
func (c *HistoryCache) Warm(ctx context.Context) error {
	msgs, err := c.inner.Recent(ctx, c.size)
	if err != nil {
		return fmt.Errorf("warm history cache: %w", err)
	}

	vals := make([]any, 0, len(msgs))
	for _, m := range msgs {
		raw, err := encodeMessage(m)
		if err != nil {
			return fmt.Errorf("warm history cache: %w", err)
		}
		vals = append(vals, raw)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, historyKey)
		if len(vals) > 0 {
			pipe.RPush(ctx, historyKey, vals...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("warm history cache: %w", err)
	}
	c.stale.Store(false)
	return nil
}

func (c *HistoryCache) invalidate(ctx context.Context, cause error) {
	c.log.Warn().Err(cause).Msg("history cache out of sync, dropping it")
	if err := c.client.Del(ctx, historyKey).Err(); err != nil {
		c.stale.Store(true)
		c.log.Error().Err(err).Msg("failed to drop history cache, bypassing it until refilled")
	}
}

func encodeMessage(m domain.Message) (string, error) {
	b, err := json.Marshal(cachedMessage{
		ID:        m.ID,
		Username:  m.Username,
		Timestamp: m.Timestamp,
		Content:   m.Content,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMessages(raws []string) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		var cm cachedMessage
		if err := json.Unmarshal([]byte(raw), &cm); err != nil {
			return nil, fmt.Errorf("decode cached message: %w", err)
		}
		out = append(out, domain.Message{
			ID:        cm.ID,
			Username:  cm.Username,
			Timestamp: cm.Timestamp,
			Content:   cm.Content,
		})
	}
	return out, nil
}
