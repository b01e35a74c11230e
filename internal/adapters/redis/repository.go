package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harborline/tablepos/internal/core"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionKeyPrefix is the prefix for terminal session keys in Redis
	SessionKeyPrefix = "terminal_session:"
	// DefaultSessionTTL is the fallback TTL when no TTL is configured
	DefaultSessionTTL = 12 * time.Hour
)

// Repository implements SessionRepository using Redis
type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// Get retrieves a terminal session by token. A missing key means the
// session expired or was revoked.
func (r *Repository) Get(ctx context.Context, token string) (*core.TerminalSession, error) {
	key := SessionKeyPrefix + token
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: terminal session", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get terminal session: %w", err)
	}

	var session core.TerminalSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal terminal session: %w", err)
	}

	return &session, nil
}

// Set stores a terminal session with the given TTL
func (r *Repository) Set(ctx context.Context, token string, session *core.TerminalSession, ttl time.Duration) error {
	key := SessionKeyPrefix + token
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal terminal session: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set terminal session: %w", err)
	}

	return nil
}

// Delete revokes a terminal session
func (r *Repository) Delete(ctx context.Context, token string) error {
	key := SessionKeyPrefix + token
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete terminal session: %w", err)
	}
	return nil
}
