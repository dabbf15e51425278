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
	"github.com/tribunal-mc/tribunal/internal/setup/config"
	"github.com/tribunal-mc/tribunal/internal/storage/cache"
	"github.com/tribunal-mc/tribunal/internal/storage/flatfile"
	"go.uber.org/zap"
)

type appealsFixture struct {
	appeals *moderation.AppealService
	engine  *moderation.Engine
	store   *flatfile.Store
}

func setupAppeals(t *testing.T) *appealsFixture {
	t.Helper()

	store, err := flatfile.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	cfg := testPunishmentConfig()
	messages := moderation.NewMessenger(&config.Messages{})
	engine := moderation.NewEngine(
		store, cache.NewActive(),
		moderation.NewDurationResolver(cfg),
		moderation.NewLevelTracker(store, cfg.CountRevoked),
		moderation.NopNotifier{}, messages, zap.NewNop(),
	)

	appeals := moderation.NewAppealService(
		store, engine, moderation.NopNotifier{}, messages,
		&config.Appeals{MaxPerDay: 3}, zap.NewNop(),
	)

	return &appealsFixture{appeals: appeals, engine: engine, store: store}
}

func (f *appealsFixture) punish(t *testing.T, target uuid.UUID) int64 {
	t.Helper()

	id, err := f.engine.Punish(t.Context(), target, "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", "http://x")
	require.NoError(t, err)

	return id
}

func TestSubmitAppealPreconditions(t *testing.T) {
	t.Parallel()

	f := setupAppeals(t)
	ctx := t.Context()
	alice := uuid.New()
	bob := uuid.New()

	punishmentID := f.punish(t, alice)

	// Unknown punishment
	_, err := f.appeals.Submit(ctx, 999, alice, "Alice", "please", "")
	require.ErrorIs(t, err, moderation.ErrPunishmentNotFound)

	// Someone else's punishment
	_, err = f.appeals.Submit(ctx, punishmentID, bob, "Bob", "please", "")
	require.ErrorIs(t, err, moderation.ErrNotOwnPunishment)

	// Valid submission
	appealID, err := f.appeals.Submit(ctx, punishmentID, alice, "Alice", "it was my brother", "http://y")
	require.NoError(t, err)
	assert.Positive(t, appealID)

	// Only one pending appeal per punishment
	_, err = f.appeals.Submit(ctx, punishmentID, alice, "Alice", "again", "")
	require.ErrorIs(t, err, moderation.ErrAppealPending)
}

func TestSubmitAppealInactivePunishment(t *testing.T) {
	t.Parallel()

	f := setupAppeals(t)
	ctx := t.Context()
	alice := uuid.New()

	punishmentID := f.punish(t, alice)

	ok, err := f.engine.Revoke(ctx, punishmentID, uuid.New(), "Staff1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.appeals.Submit(ctx, punishmentID, alice, "Alice", "please", "")
	require.ErrorIs(t, err, moderation.ErrPunishmentInactive)
}

func TestSubmitAppealQuota(t *testing.T) {
	t.Parallel()

	f := setupAppeals(t)
	ctx := t.Context()
	alice := uuid.New()

	// Three distinct punishments, three appeals: at the quota.
	for range 3 {
		punishmentID := f.punish(t, alice)

		_, err := f.appeals.Submit(ctx, punishmentID, alice, "Alice", "please", "")
		require.NoError(t, err)
	}

	punishmentID := f.punish(t, alice)

	_, err := f.appeals.Submit(ctx, punishmentID, alice, "Alice", "please", "")
	require.ErrorIs(t, err, moderation.ErrAppealQuotaExceeded)
}

func TestApproveAppealRevokesPunishment(t *testing.T) {
	t.Parallel()

	f := setupAppeals(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	punishmentID := f.punish(t, alice)

	appealID, err := f.appeals.Submit(ctx, punishmentID, alice, "Alice", "please", "")
	require.NoError(t, err)

	result, err := f.appeals.Approve(ctx, appealID, staff, "Staff2", "convinced")
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.True(t, result.PunishmentRevoked)

	p, err := f.store.GetPunishment(ctx, punishmentID)
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, "Staff2", p.RevokerName)
}

func TestApproveAppealPunishmentAlreadyRevoked(t *testing.T) {
	t.Parallel()

	f := setupAppeals(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	punishmentID := f.punish(t, alice)

	appealID, err := f.appeals.Submit(ctx, punishmentID, alice, "Alice", "please", "")
	require.NoError(t, err)

	// Punishment revoked independently before the review lands.
	ok, err := f.engine.Revoke(ctx, punishmentID, staff, "Staff1")
	require.NoError(t, err)
	require.True(t, ok)

	result, err := f.appeals.Approve(ctx, appealID, staff, "Staff2", "convinced")
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.False(t, result.PunishmentRevoked)

	appeal, err := f.store.GetAppeal(ctx, appealID)
	require.NoError(t, err)
	assert.Equal(t, enum.AppealStatusApproved, appeal.Status)
}

func TestDenyAppeal(t *testing.T) {
	t.Parallel()

	f := setupAppeals(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	punishmentID := f.punish(t, alice)

	appealID, err := f.appeals.Submit(ctx, punishmentID, alice, "Alice", "please", "")
	require.NoError(t, err)

	ok, err := f.appeals.Deny(ctx, appealID, staff, "Staff2", "no")
	require.NoError(t, err)
	assert.True(t, ok)

	// Punishment stays enforceable.
	p, err := f.store.GetPunishment(ctx, punishmentID)
	require.NoError(t, err)
	assert.True(t, p.Enforceable(time.Now()))

	// Review is single-fire.
	ok, err = f.appeals.Deny(ctx, appealID, staff, "Staff2", "no")
	require.NoError(t, err)
	assert.False(t, ok)

	result, err := f.appeals.Approve(ctx, appealID, staff, "Staff2", "changed my mind")
	require.NoError(t, err)
	assert.False(t, result.Approved)
}

func TestAppealForExpiredPunishment(t *testing.T) {
	t.Parallel()

	f := setupAppeals(t)
	ctx := t.Context()
	alice := uuid.New()

	// Kick durations are zero, so the record expires immediately.
	id, err := f.store.NextPunishmentID(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.AddPunishment(ctx, types.NewPunishment(
		id, alice, "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeKick, "afk abuse", 0, "", 1, time.Now().Add(-time.Second),
	)))

	_, err = f.appeals.Submit(ctx, id, alice, "Alice", "please", "")
	require.ErrorIs(t, err, moderation.ErrPunishmentInactive)
}
