// Package cache holds the small Redis-backed stores that sit next to the
// primary database. The attribution store remembers which referral code a
// device clicked so a later signup can still be credited to the referrer.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const attributionKeyPrefix = "referral:attribution:"

// attributionRecord is the JSON payload stored per session.
type attributionRecord struct {
	Code  string    `json:"code"`
	SetAt time.Time `json:"set_at"`
}

// AttributionStore persists click attribution markers with a TTL equal to
// the program's attribution window, so stale markers expire on their own.
type AttributionStore struct {
	client *redis.Client
	window time.Duration
}

// NewAttributionStore creates an attribution store over an existing Redis client.
func NewAttributionStore(client *redis.Client, window time.Duration) *AttributionStore {
	return &AttributionStore{client: client, window: window}
}

// Set records that sessionID clicked the given referral code. A later click
// overwrites an earlier one; last click wins.
func (s *AttributionStore) Set(ctx context.Context, sessionID, code string, now time.Time) error {
	payload, err := json.Marshal(attributionRecord{Code: code, SetAt: now})
	if err != nil {
		return fmt.Errorf("failed to marshal attribution record: %w", err)
	}

	if err := s.client.Set(ctx, attributionKeyPrefix+sessionID, payload, s.window).Err(); err != nil {
		return fmt.Errorf("failed to store attribution marker: %w", err)
	}
	return nil
}

// Get returns the attribution marker for a session. ok is false when no
// marker exists or it has already expired out of Redis.
func (s *AttributionStore) Get(ctx context.Context, sessionID string) (code string, setAt time.Time, ok bool, err error) {
	raw, err := s.client.Get(ctx, attributionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("failed to read attribution marker: %w", err)
	}

	var record attributionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return "", time.Time{}, false, fmt.Errorf("failed to unmarshal attribution record: %w", err)
	}
	return record.Code, record.SetAt, true, nil
}

// Clear removes the marker once a signup has consumed it.
func (s *AttributionStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, attributionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear attribution marker: %w", err)
	}
	return nil
}
