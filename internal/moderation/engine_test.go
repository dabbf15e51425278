package moderation_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/moderation"
	"github.com/tribunal-mc/tribunal/internal/setup/config"
	"github.com/tribunal-mc/tribunal/internal/storage"
	"github.com/tribunal-mc/tribunal/internal/storage/cache"
	"github.com/tribunal-mc/tribunal/internal/storage/flatfile"
	"go.uber.org/zap"
)

func setupEngine(t *testing.T) (*moderation.Engine, *flatfile.Store, *cache.Active) {
	t.Helper()

	store, err := flatfile.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	cfg := testPunishmentConfig()
	activeCache := cache.NewActive()
	resolver := moderation.NewDurationResolver(cfg)
	levels := moderation.NewLevelTracker(store, cfg.CountRevoked)
	messages := moderation.NewMessenger(&config.Messages{})

	engine := moderation.NewEngine(
		store, activeCache, resolver, levels, moderation.NopNotifier{}, messages, zap.NewNop(),
	)

	return engine, store, activeCache
}

func TestPunishFirstOffense(t *testing.T) {
	t.Parallel()

	engine, store, _ := setupEngine(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	id, err := engine.Punish(ctx, alice, "Alice", staff, "Staff1",
		enum.PunishmentTypeWarn, "spam", "http://x")
	require.NoError(t, err)

	p, err := store.GetPunishment(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, minutes(30), p.Duration)
	assert.True(t, p.Active)
	assert.Empty(t, p.RevokerName)
	assert.Equal(t, "http://x", p.ProofLink)
}

func TestPunishEscalatesEvenAfterRevoke(t *testing.T) {
	t.Parallel()

	engine, store, _ := setupEngine(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	first, err := engine.Punish(ctx, alice, "Alice", staff, "Staff1",
		enum.PunishmentTypeWarn, "spam", "http://x")
	require.NoError(t, err)

	// Revoking the first offense does not reset escalation when
	// count_revoked is on.
	ok, err := engine.Revoke(ctx, first, staff, "Staff1")
	require.NoError(t, err)
	require.True(t, ok)

	second, err := engine.Punish(ctx, alice, "Alice", staff, "Staff1",
		enum.PunishmentTypeWarn, "spam", "http://x")
	require.NoError(t, err)

	p, err := store.GetPunishment(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, minutes(60), p.Duration)
}

func TestPunishSequentialLevels(t *testing.T) {
	t.Parallel()

	engine, store, _ := setupEngine(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	for want := 1; want <= 5; want++ {
		id, err := engine.Punish(ctx, alice, "Alice", staff, "Staff1",
			enum.PunishmentTypeMute, "toxicity", "")
		require.NoError(t, err)

		p, err := store.GetPunishment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, p.Level)
	}

	// Level 5 stores the true level but uses the level-3 duration.
	level, err := engine.PunishmentLevel(ctx, alice, enum.PunishmentTypeMute, "toxicity")
	require.NoError(t, err)
	assert.Equal(t, 6, level)
	assert.Equal(t, minutes(360), engine.ResolveDuration(enum.PunishmentTypeMute, "toxicity", 5))
}

func TestRevokeAbsentIsNoOp(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t)

	ok, err := engine.Revoke(t.Context(), 7, uuid.New(), "Staff1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeTwice(t *testing.T) {
	t.Parallel()

	engine, _, activeCache := setupEngine(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	id, err := engine.Punish(ctx, alice, "Alice", staff, "Staff1",
		enum.PunishmentTypeBan, "cheating", "http://x")
	require.NoError(t, err)
	assert.True(t, activeCache.HasPlayer(alice, time.Now()))

	ok, err := engine.Revoke(ctx, id, staff, "Staff1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Revoked records never satisfy active reads again.
	assert.False(t, activeCache.HasPlayer(alice, time.Now()))

	banned, err := engine.IsBanned(ctx, alice)
	require.NoError(t, err)
	assert.False(t, banned)

	ok, err = engine.Revoke(ctx, id, staff, "Staff1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsBannedAndIsMuted(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	_, err := engine.Punish(ctx, alice, "Alice", staff, "Staff1",
		enum.PunishmentTypeMute, "toxicity", "")
	require.NoError(t, err)

	muted, err := engine.IsMuted(ctx, alice)
	require.NoError(t, err)
	assert.True(t, muted)

	banned, err := engine.IsBanned(ctx, alice)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestActivePunishmentsColdCacheFallback(t *testing.T) {
	t.Parallel()

	engine, store, activeCache := setupEngine(t)
	ctx := t.Context()
	alice := uuid.New()

	// Write directly to the store, bypassing the cache.
	id, err := store.NextPunishmentID(ctx)
	require.NoError(t, err)
	require.NoError(t, store.AddPunishment(ctx, types.NewPunishment(
		id, alice, "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", types.PermanentDuration, "", 1, time.Now(),
	)))

	require.Equal(t, 0, activeCache.Len())

	banned, err := engine.IsBanned(ctx, alice)
	require.NoError(t, err)
	assert.True(t, banned)

	// The fallback scan populated the cache.
	assert.Equal(t, 1, activeCache.Len())
}

type scanCountingStore struct {
	storage.PunishmentStore

	scans atomic.Int32
}

func (s *scanCountingStore) ActivePunishments(
	ctx context.Context, playerID uuid.UUID,
) ([]*types.Punishment, error) {
	s.scans.Add(1)

	return s.PunishmentStore.ActivePunishments(ctx, playerID)
}

func TestCleanPlayerScansStoreOnce(t *testing.T) {
	t.Parallel()

	base, err := flatfile.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	store := &scanCountingStore{PunishmentStore: base}
	cfg := testPunishmentConfig()
	engine := moderation.NewEngine(
		store, cache.NewActive(),
		moderation.NewDurationResolver(cfg),
		moderation.NewLevelTracker(base, cfg.CountRevoked),
		moderation.NopNotifier{}, moderation.NewMessenger(&config.Messages{}),
		zap.NewNop(),
	)

	ctx := t.Context()
	alice := uuid.New()

	// Repeated checks for a player with no punishments hit the store once;
	// the empty result is cached.
	for range 3 {
		banned, err := engine.IsBanned(ctx, alice)
		require.NoError(t, err)
		assert.False(t, banned)
	}

	assert.Equal(t, int32(1), store.scans.Load())

	// Issuing a punishment invalidates the cached empty result.
	_, err = engine.Punish(ctx, alice, "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", "")
	require.NoError(t, err)

	banned, err := engine.IsBanned(ctx, alice)
	require.NoError(t, err)
	assert.True(t, banned)
	assert.Equal(t, int32(1), store.scans.Load())
}

type vetoHook struct {
	moderation.NopHook
}

func (vetoHook) PrePunish(context.Context, *types.Punishment) error {
	return moderation.ErrVetoed
}

func TestPunishVetoedByHook(t *testing.T) {
	t.Parallel()

	engine, store, _ := setupEngine(t)
	ctx := t.Context()
	alice := uuid.New()

	engine.RegisterHook(vetoHook{})

	_, err := engine.Punish(ctx, alice, "Alice", uuid.New(), "Staff1",
		enum.PunishmentTypeBan, "cheating", "")
	require.ErrorIs(t, err, moderation.ErrVetoed)

	// Nothing was persisted; the allocated id is a harmless gap.
	list, err := store.PlayerPunishments(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConcurrentPunishSerializesLevels(t *testing.T) {
	t.Parallel()

	engine, store, _ := setupEngine(t)
	ctx := t.Context()
	alice := uuid.New()
	staff := uuid.New()

	const issuers = 8

	var wg sync.WaitGroup
	for range issuers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := engine.Punish(ctx, alice, "Alice", staff, "Staff1",
				enum.PunishmentTypeWarn, "spam", "")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	// Per-player serialization means every level 1..N appears exactly once.
	list, err := store.PlayerPunishments(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, issuers)

	seen := make(map[int]bool, issuers)
	for _, p := range list {
		assert.False(t, seen[p.Level], "duplicate level %d", p.Level)
		seen[p.Level] = true
	}

	for level := 1; level <= issuers; level++ {
		assert.True(t, seen[level], "missing level %d", level)
	}
}
