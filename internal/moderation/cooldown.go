package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/rueidis"
)

// CooldownTracker gates repeatable actions behind a per-key window.
type CooldownTracker interface {
	// TryAcquire claims the key for the ttl window. Returns false when the
	// key is still held from a previous claim.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops a claimed key before its window lapses, so a claim
	// can be undone when the guarded action fails.
	Release(ctx context.Context, key string) error
}

// RedisCooldown tracks cooldowns as Redis keys with a TTL, so windows
// survive restarts and are shared across processes.
type RedisCooldown struct {
	client rueidis.Client
}

// NewRedisCooldown creates a tracker over the given Redis client.
func NewRedisCooldown(client rueidis.Client) *RedisCooldown {
	return &RedisCooldown{client: client}
}

// TryAcquire claims the key with SET NX EX; an existing key means the
// window is still open.
func (c *RedisCooldown) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	err := c.client.Do(ctx,
		c.client.B().Set().Key(key).Value("1").Nx().Ex(ttl).Build(),
	).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to acquire cooldown: %w", err)
	}

	return true, nil
}

// Release deletes the key.
func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	err := c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to release cooldown: %w", err)
	}

	return nil
}

// MemoryCooldown tracks cooldowns in process memory. Used when Redis is
// disabled; windows do not survive restarts.
type MemoryCooldown struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

// NewMemoryCooldown creates an empty in-process tracker.
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{expires: make(map[string]time.Time)}
}

// TryAcquire claims the key if its previous window has lapsed. Expired
// entries are dropped opportunistically on each call.
func (c *MemoryCooldown) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	for k, expiry := range c.expires {
		if expiry.Before(now) {
			delete(c.expires, k)
		}
	}

	if expiry, held := c.expires[key]; held && expiry.After(now) {
		return false, nil
	}

	c.expires[key] = now.Add(ttl)

	return true, nil
}

// Release drops the key if it is held.
func (c *MemoryCooldown) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.expires, key)

	return nil
}
