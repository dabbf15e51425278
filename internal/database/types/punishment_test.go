package types_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
)

func TestNewPunishmentNormalizesNegativeDuration(t *testing.T) {
	t.Parallel()

	p := types.NewPunishment(
		1, uuid.New(), "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", -500, "http://x", 1, time.Now(),
	)

	assert.Equal(t, types.PermanentDuration, p.Duration)
	assert.Equal(t, types.PermanentDuration, p.ExpiresAt)
	assert.True(t, p.Permanent())
	assert.True(t, p.Active)
}

func TestEnforceableBoundary(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now()
	duration := time.Hour

	p := types.NewPunishment(
		1, uuid.New(), "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", duration.Milliseconds(), "http://x", 1, issuedAt,
	)

	assert.True(t, p.Enforceable(issuedAt.Add(duration-time.Millisecond)))
	assert.False(t, p.Enforceable(issuedAt.Add(duration)))

	// Expired is derived and independent of the stored active flag.
	assert.True(t, p.Active)
	assert.True(t, p.Expired(issuedAt.Add(duration)))
}

func TestRevokeIsTerminal(t *testing.T) {
	t.Parallel()

	now := time.Now()
	revoker := uuid.New()

	p := types.NewPunishment(
		1, uuid.New(), "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeMute, "toxicity", time.Hour.Milliseconds(), "", 1, now,
	)

	assert.False(t, p.Revoked())

	p.Revoke(revoker, "Staff2", now)

	assert.False(t, p.Active)
	assert.True(t, p.Revoked())
	assert.Equal(t, revoker, p.RevokerID)
	assert.Equal(t, "Staff2", p.RevokerName)
	assert.False(t, p.Enforceable(now))
}

func TestTimeRemaining(t *testing.T) {
	t.Parallel()

	now := time.Now()

	p := types.NewPunishment(
		1, uuid.New(), "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeMute, "toxicity", time.Hour.Milliseconds(), "", 1, now,
	)

	assert.InDelta(t, time.Hour, p.TimeRemaining(now), float64(time.Millisecond))
	assert.Equal(t, time.Duration(0), p.TimeRemaining(now.Add(2*time.Hour)))

	permanent := types.NewPunishment(
		2, uuid.New(), "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", types.PermanentDuration, "", 1, now,
	)

	assert.Equal(t, time.Duration(-1), permanent.TimeRemaining(now))
}
