package moderation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/moderation"
	"github.com/tribunal-mc/tribunal/internal/storage/flatfile"
	"go.uber.org/zap"
)

func addWarn(t *testing.T, store *flatfile.Store, target uuid.UUID, reason string) *types.Punishment {
	t.Helper()

	ctx := t.Context()

	id, err := store.NextPunishmentID(ctx)
	require.NoError(t, err)

	p := types.NewPunishment(
		id, target, "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeWarn, reason, time.Hour.Milliseconds(), "", 1, time.Now(),
	)
	require.NoError(t, store.AddPunishment(ctx, p))

	return p
}

func TestNextLevelCountsSameTypeAndReason(t *testing.T) {
	t.Parallel()

	store, err := flatfile.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	tracker := moderation.NewLevelTracker(store, true)
	ctx := t.Context()
	alice := uuid.New()

	level, err := tracker.NextLevel(ctx, alice, enum.PunishmentTypeWarn, "spam")
	require.NoError(t, err)
	assert.Equal(t, 1, level)

	addWarn(t, store, alice, "spam")
	addWarn(t, store, alice, "caps") // different reason, not counted

	level, err = tracker.NextLevel(ctx, alice, enum.PunishmentTypeWarn, "spam")
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	// Case differences in the reason do not split history.
	level, err = tracker.NextLevel(ctx, alice, enum.PunishmentTypeWarn, "SPAM")
	require.NoError(t, err)
	assert.Equal(t, 2, level)
}

func TestNextLevelRevokedPolicy(t *testing.T) {
	t.Parallel()

	store, err := flatfile.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	ctx := t.Context()
	alice := uuid.New()

	p := addWarn(t, store, alice, "spam")

	ok, err := store.RevokePunishment(ctx, p.ID, uuid.New(), "Staff2")
	require.NoError(t, err)
	require.True(t, ok)

	counting := moderation.NewLevelTracker(store, true)

	level, err := counting.NextLevel(ctx, alice, enum.PunishmentTypeWarn, "spam")
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	forgiving := moderation.NewLevelTracker(store, false)

	level, err = forgiving.NextLevel(ctx, alice, enum.PunishmentTypeWarn, "spam")
	require.NoError(t, err)
	assert.Equal(t, 1, level)
}
