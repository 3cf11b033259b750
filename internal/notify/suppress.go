package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSuppressTTL = 15 * time.Minute

// RedisSuppressor collapses duplicate notifications via a short-lived
// Redis key per (template, recipient). Key format:
// notify:<template>:<recipient>
type RedisSuppressor struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSuppressor wraps the given Redis client. A non-positive ttl
// falls back to the default window.
func NewRedisSuppressor(client *redis.Client, ttl time.Duration) *RedisSuppressor {
	if ttl <= 0 {
		ttl = defaultSuppressTTL
	}
	return &RedisSuppressor{client: client, ttl: ttl}
}

// ShouldSend implements Suppressor with a single SETNX round trip.
func (s *RedisSuppressor) ShouldSend(ctx context.Context, msg Message) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(msg), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("notify suppress: %w", err)
	}
	return ok, nil
}

func (s *RedisSuppressor) key(msg Message) string {
	return fmt.Sprintf("notify:%s:%s", msg.Template, msg.Recipient)
}

// Connect initialises a Redis client and validates connectivity.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
