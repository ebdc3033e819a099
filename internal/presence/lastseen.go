package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LastSeenStore keeps the last-known-offline timestamp per user in Redis.
// It is display data only; the Registry alone decides who is online.
type LastSeenStore struct {
	client *redis.Client
}

// NewLastSeenStore wraps a Redis client.
func NewLastSeenStore(client *redis.Client) *LastSeenStore {
	return &LastSeenStore{client: client}
}

func lastSeenKey(userID int64) string {
	return fmt.Sprintf("presence:last_seen:%d", userID)
}

// Touch records the moment the user's final connection closed.
func (s *LastSeenStore) Touch(ctx context.Context, userID int64, at time.Time) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Set(ctx, lastSeenKey(userID), at.UTC().Format(time.RFC3339Nano), 0).Err()
}

// Get returns the stored timestamp, or nil when the user has never
// disconnected or Redis is unavailable.
func (s *LastSeenStore) Get(ctx context.Context, userID int64) *time.Time {
	if s == nil || s.client == nil {
		return nil
	}
	val, err := s.client.Get(ctx, lastSeenKey(userID)).Result()
	if err != nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil
	}
	return &t
}
