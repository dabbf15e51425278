package flatfile_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/storage/flatfile"
	"go.uber.org/zap"
)

func setupStore(t *testing.T) (*flatfile.Store, string) {
	t.Helper()

	dir := t.TempDir()

	store, err := flatfile.NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	return store, dir
}

func addPunishment(t *testing.T, store *flatfile.Store, target uuid.UUID, durationMillis int64) *types.Punishment {
	t.Helper()

	ctx := t.Context()

	id, err := store.NextPunishmentID(ctx)
	require.NoError(t, err)

	p := types.NewPunishment(
		id, target, "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", durationMillis, "http://x", 1, time.Now(),
	)
	require.NoError(t, store.AddPunishment(ctx, p))

	return p
}

func TestPunishmentRoundTrip(t *testing.T) {
	t.Parallel()

	store, dir := setupStore(t)
	ctx := t.Context()
	target := uuid.New()

	original := addPunishment(t, store, target, time.Hour.Milliseconds())
	require.NoError(t, store.Close())

	// Reopen from disk and compare every field.
	reopened, err := flatfile.NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	loaded, err := reopened.GetPunishment(ctx, original.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, original, loaded)
}

func TestGetPunishmentAbsentReturnsNil(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)

	p, err := store.GetPunishment(t.Context(), 999)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestIDCountersSurviveReopen(t *testing.T) {
	t.Parallel()

	store, dir := setupStore(t)
	ctx := t.Context()

	addPunishment(t, store, uuid.New(), types.PermanentDuration)
	addPunishment(t, store, uuid.New(), types.PermanentDuration)
	require.NoError(t, store.Close())

	reopened, err := flatfile.NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	next, err := reopened.NextPunishmentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next)
}

func TestRevokeTwiceIsIdempotent(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := t.Context()

	p := addPunishment(t, store, uuid.New(), types.PermanentDuration)
	revoker := uuid.New()

	ok, err := store.RevokePunishment(ctx, p.ID, revoker, "Staff2")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second revoke is a no-op failure, never an error.
	ok, err = store.RevokePunishment(ctx, p.ID, revoker, "Staff2")
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := store.GetPunishment(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Active)
	assert.Equal(t, "Staff2", loaded.RevokerName)
}

func TestRevokeAbsentReturnsFalse(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)

	ok, err := store.RevokePunishment(t.Context(), 7, uuid.New(), "Staff1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountHistoryRevokedToggle(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := t.Context()
	target := uuid.New()

	first := addPunishment(t, store, target, types.PermanentDuration)
	addPunishment(t, store, target, types.PermanentDuration)

	ok, err := store.RevokePunishment(ctx, first.ID, uuid.New(), "Staff2")
	require.NoError(t, err)
	require.True(t, ok)

	// Reason matching is case-insensitive.
	withRevoked, err := store.CountHistory(ctx, target, enum.PunishmentTypeBan, "Cheating", true)
	require.NoError(t, err)
	assert.Equal(t, 2, withRevoked)

	withoutRevoked, err := store.CountHistory(ctx, target, enum.PunishmentTypeBan, "cheating", false)
	require.NoError(t, err)
	assert.Equal(t, 1, withoutRevoked)
}

func TestExpireDuePunishments(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := t.Context()

	due := addPunishment(t, store, uuid.New(), time.Minute.Milliseconds())
	permanent := addPunishment(t, store, uuid.New(), types.PermanentDuration)

	expired, err := store.ExpireDuePunishments(ctx, time.Now().Add(2*time.Minute).UnixMilli())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, due.ID, expired[0].ID)
	assert.True(t, expired[0].AutoExpired)
	assert.False(t, expired[0].Active)

	// Permanent punishments are untouched; a second pass finds nothing.
	loaded, err := store.GetPunishment(ctx, permanent.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Active)

	expired, err = store.ExpireDuePunishments(ctx, time.Now().Add(2*time.Minute).UnixMilli())
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestPlayerPunishmentsNewestFirst(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := t.Context()
	target := uuid.New()

	first := addPunishment(t, store, target, types.PermanentDuration)
	second := addPunishment(t, store, target, types.PermanentDuration)

	list, err := store.PlayerPunishments(ctx, target)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestProcessReportSingleFire(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := t.Context()

	id, err := store.NextReportID(ctx)
	require.NoError(t, err)

	report := types.NewReport(id, uuid.New(), "Bob", uuid.New(), "Alice", "cheating", time.Now())
	require.NoError(t, store.AddReport(ctx, report))

	processor := uuid.New()

	ok, err := store.ProcessReport(ctx, id, processor, "Staff1", 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ProcessReport(ctx, id, processor, "Staff1", 42)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := store.GetReport(ctx, id)
	require.NoError(t, err)
	assert.True(t, loaded.Processed)
	assert.Equal(t, int64(42), loaded.ResultPunishmentID)
}

func TestPurgeProcessedReports(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := t.Context()

	oldID, err := store.NextReportID(ctx)
	require.NoError(t, err)

	old := types.NewReport(oldID, uuid.New(), "Bob", uuid.New(), "Alice", "spam", time.Now().Add(-48*time.Hour))
	require.NoError(t, store.AddReport(ctx, old))

	openID, err := store.NextReportID(ctx)
	require.NoError(t, err)

	open := types.NewReport(openID, uuid.New(), "Bob", uuid.New(), "Carol", "spam", time.Now().Add(-48*time.Hour))
	require.NoError(t, store.AddReport(ctx, open))

	_, err = store.ProcessReport(ctx, oldID, uuid.New(), "Staff1", 0)
	require.NoError(t, err)

	purged, err := store.PurgeProcessedReports(ctx, time.Now().Add(-24*time.Hour).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	// Unprocessed reports are retained regardless of age.
	remaining, err := store.GetReport(ctx, openID)
	require.NoError(t, err)
	assert.NotNil(t, remaining)
}

func TestAppealReviewSingleFire(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := t.Context()
	player := uuid.New()

	punishment := addPunishment(t, store, player, types.PermanentDuration)

	id, err := store.NextAppealID(ctx)
	require.NoError(t, err)

	appeal := types.NewAppeal(id, punishment.ID, player, "Alice", "it was my brother", "", time.Now())
	require.NoError(t, store.AddAppeal(ctx, appeal))

	pending, err := store.PendingAppealForPunishment(ctx, punishment.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, id, pending.ID)

	ok, err := store.ApproveAppeal(ctx, id, uuid.New(), "Staff1", "fine")
	require.NoError(t, err)
	assert.True(t, ok)

	// Terminal status; further review attempts fail.
	ok, err = store.DenyAppeal(ctx, id, uuid.New(), "Staff1", "no")
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := store.GetAppeal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enum.AppealStatusApproved, loaded.Status)
	assert.Equal(t, "fine", loaded.ReviewComment)

	pending, err = store.PendingAppealForPunishment(ctx, punishment.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
}
