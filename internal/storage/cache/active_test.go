package cache_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/storage/cache"
)

func newBan(id int64, target uuid.UUID, durationMillis int64, issuedAt time.Time) *types.Punishment {
	return types.NewPunishment(
		id, target, "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", durationMillis, "http://x", 1, issuedAt,
	)
}

func TestWarmAndForPlayer(t *testing.T) {
	t.Parallel()

	target := uuid.New()
	other := uuid.New()
	now := time.Now()

	c := cache.NewActive()
	c.Warm([]*types.Punishment{
		newBan(1, target, types.PermanentDuration, now),
		newBan(2, other, types.PermanentDuration, now),
	})

	list, ok := c.ForPlayer(target, now)
	assert.True(t, ok)
	assert.Len(t, list, 1)

	list, ok = c.ForPlayer(other, now)
	assert.True(t, ok)
	assert.Len(t, list, 1)

	assert.Equal(t, 2, c.Len())
}

func TestRemoveLeavesNoTransientWindow(t *testing.T) {
	t.Parallel()

	target := uuid.New()
	now := time.Now()

	c := cache.NewActive()
	c.Add(newBan(1, target, types.PermanentDuration, now))

	assert.True(t, c.HasPlayer(target, now))

	c.Remove(1)

	// Immediately after removal no reader may still observe the record.
	assert.False(t, c.HasPlayer(target, now))

	list, _ := c.ForPlayer(target, now)
	assert.Empty(t, list)
	assert.Nil(t, c.Get(1, now))
}

func TestExpiryBoundary(t *testing.T) {
	t.Parallel()

	target := uuid.New()
	issuedAt := time.Now()
	duration := 10 * time.Minute

	c := cache.NewActive()
	c.Add(newBan(1, target, duration.Milliseconds(), issuedAt))

	// Active one millisecond before expiry, inactive at exactly expiry,
	// regardless of whether the sweeper has run.
	beforeExpiry := issuedAt.Add(duration - time.Millisecond)
	atExpiry := issuedAt.Add(duration)

	assert.True(t, c.HasPlayer(target, beforeExpiry))
	assert.NotNil(t, c.Get(1, beforeExpiry))

	assert.False(t, c.HasPlayer(target, atExpiry))
	assert.Nil(t, c.Get(1, atExpiry))

	list, _ := c.ForPlayer(target, atExpiry)
	assert.Empty(t, list)

	// The stale record still occupies the cache until the sweeper runs.
	assert.Equal(t, 1, c.Len())
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	t.Parallel()

	target := uuid.New()
	now := time.Now()

	c := cache.NewActive()
	c.Add(newBan(1, target, types.PermanentDuration, now))

	list, _ := c.ForPlayer(target, now)
	list[0].Active = false

	assert.True(t, c.HasPlayer(target, now))
}

func TestCleanMarker(t *testing.T) {
	t.Parallel()

	target := uuid.New()
	now := time.Now()

	c := cache.NewActive()

	// An unknown player is not authoritative; a marked one is.
	_, ok := c.ForPlayer(target, now)
	assert.False(t, ok)

	c.MarkClean(target, now)

	list, ok := c.ForPlayer(target, now)
	assert.True(t, ok)
	assert.Empty(t, list)

	// Issuing a punishment drops the marker.
	c.Add(newBan(1, target, types.PermanentDuration, now))

	list, ok = c.ForPlayer(target, now)
	assert.True(t, ok)
	assert.Len(t, list, 1)

	c.Remove(1)

	_, ok = c.ForPlayer(target, now)
	assert.False(t, ok)
}

func TestMarkCleanSkippedWhenPunishmentPresent(t *testing.T) {
	t.Parallel()

	target := uuid.New()
	now := time.Now()

	c := cache.NewActive()
	c.Add(newBan(1, target, types.PermanentDuration, now))

	// A scan that raced with the add must not mark the player clean.
	c.MarkClean(target, now)

	list, ok := c.ForPlayer(target, now)
	assert.True(t, ok)
	assert.Len(t, list, 1)
}
