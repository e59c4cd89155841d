package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// availabilityKeyFmt is the Redis key for an event's cached fill-state.
	availabilityKeyFmt = "cache:event:%d:availability"
	// AvailabilityTTL bounds how stale a cached fill-state can get; writes
	// through the registration engine also invalidate eagerly.
	AvailabilityTTL = 10 * time.Second
)

// Availability is an event's cached fill-state.
type Availability struct {
	EventID         int64 `json:"event_id"`
	Capacity        int   `json:"capacity"`
	RegisteredCount int   `json:"registered_count"`
	AvailableSpots  int   `json:"available_spots"`
	IsFull          bool  `json:"is_full"`
}

// Cache is a Redis-backed read-side cache for derived event state.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// New creates a cache on an existing Redis client.
func New(client *redis.Client, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, logger: logger}
}

// GetAvailability returns the cached fill-state, or nil on a miss.
func (c *Cache) GetAvailability(ctx context.Context, eventID int64) (*Availability, error) {
	raw, err := c.client.Get(ctx, availabilityKey(eventID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var a Availability
	if err := json.Unmarshal(raw, &a); err != nil {
		// Stale or corrupted entry; treat as a miss.
		c.logger.Warn("drop unreadable cache entry", zap.Int64("event_id", eventID), zap.Error(err))
		_ = c.client.Del(ctx, availabilityKey(eventID)).Err()
		return nil, nil
	}
	return &a, nil
}

// SetAvailability stores the fill-state with the standard TTL.
func (c *Cache) SetAvailability(ctx context.Context, a Availability) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, availabilityKey(a.EventID), raw, AvailabilityTTL).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached fill-state for an event. Called by the
// registration engine after a successful register or cancel.
func (c *Cache) Invalidate(ctx context.Context, eventID int64) error {
	if err := c.client.Del(ctx, availabilityKey(eventID)).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}

func availabilityKey(eventID int64) string {
	return fmt.Sprintf(availabilityKeyFmt, eventID)
}
