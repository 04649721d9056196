// Package summary stores rolling conversation summaries in Redis so a
// conversation can span process restarts without replaying every turn.
package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps a summary alive for a day past the last turn.
const DefaultTTL = 24 * time.Hour

// RedisStore is a SummaryStore over a Redis client.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis at the given URL and verifies the
// connection. ttl of 0 uses DefaultTTL.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func key(conversationID string) string {
	return "athletedesk:summary:" + conversationID
}

// Get returns the summary for a conversation, or "" when none exists.
func (s *RedisStore) Get(ctx context.Context, conversationID string) (string, error) {
	val, err := s.client.Get(ctx, key(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading summary: %w", err)
	}
	return val, nil
}

// Set stores the summary and refreshes its TTL.
func (s *RedisStore) Set(ctx context.Context, conversationID, summary string) error {
	if err := s.client.Set(ctx, key(conversationID), summary, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
