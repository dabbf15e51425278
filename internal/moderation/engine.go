package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/storage"
	"github.com/tribunal-mc/tribunal/internal/storage/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Engine orchestrates the punishment lifecycle: level computation,
// duration resolution, persistence, cache maintenance, hooks, and
// notifications.
type Engine struct {
	store    storage.PunishmentStore
	cache    *cache.Active
	resolver *DurationResolver
	levels   *LevelTracker
	notifier Notifier
	messages *Messenger
	logger   *zap.Logger

	hooksMu sync.RWMutex
	hooks   []Hook

	// playerLocks serializes Punish per target. The level computation is
	// count-then-issue; without this, two concurrent issues for the same
	// player can observe the same prior count and under-escalate.
	playerLocks sync.Map // uuid.UUID -> *sync.Mutex

	// coldLoads collapses concurrent cache-miss store scans per player.
	coldLoads singleflight.Group
}

// NewEngine wires the lifecycle engine. Pass NopNotifier when no host
// integration is connected.
func NewEngine(
	store storage.PunishmentStore, activeCache *cache.Active, resolver *DurationResolver,
	levels *LevelTracker, notifier Notifier, messages *Messenger, logger *zap.Logger,
) *Engine {
	return &Engine{
		store:    store,
		cache:    activeCache,
		resolver: resolver,
		levels:   levels,
		notifier: notifier,
		messages: messages,
		logger:   logger.Named("engine"),
	}
}

// RegisterHook adds a lifecycle hook. Hooks run in registration order;
// the first pre-hook error aborts the operation.
func (e *Engine) RegisterHook(hook Hook) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()

	e.hooks = append(e.hooks, hook)
}

// Punish issues a punishment against the target and returns its id.
// Returns ErrVetoed when a policy hook cancels the issue; the allocated
// id is abandoned as a harmless gap.
func (e *Engine) Punish(
	ctx context.Context, targetID uuid.UUID, targetName string, issuerID uuid.UUID, issuerName string,
	punishmentType enum.PunishmentType, reason, proofLink string,
) (int64, error) {
	lock := e.lockFor(targetID)
	lock.Lock()
	defer lock.Unlock()

	level, err := e.levels.NextLevel(ctx, targetID, punishmentType, reason)
	if err != nil {
		return 0, err
	}

	duration := e.resolver.Resolve(punishmentType, reason, level)

	id, err := e.store.NextPunishmentID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate punishment id: %w", err)
	}

	punishment := types.NewPunishment(
		id, targetID, targetName, issuerID, issuerName,
		punishmentType, reason, duration, proofLink, level, time.Now(),
	)

	if err := e.runPrePunish(ctx, punishment); err != nil {
		if errors.Is(err, ErrVetoed) {
			e.logger.Info("Punishment vetoed by policy",
				zap.Int64("id", id),
				zap.String("target", targetName),
				zap.String("type", punishmentType.String()))
		}

		return 0, err
	}

	// Durability point: after this succeeds the punishment is canonical.
	if err := e.store.AddPunishment(ctx, punishment); err != nil {
		e.logger.Error("Failed to persist punishment",
			zap.Int64("id", id),
			zap.String("target", targetName),
			zap.String("issuer", issuerName),
			zap.Error(err))

		return 0, fmt.Errorf("failed to persist punishment: %w", err)
	}

	if punishment.Enforceable(time.Now()) {
		e.cache.Add(punishment)
	}

	e.runPostPunish(ctx, punishment)

	message := e.messages.IssueMessage(punishment)

	switch punishmentType {
	case enum.PunishmentTypeBan, enum.PunishmentTypeKick:
		e.notifier.Disconnect(targetID, message)
	case enum.PunishmentTypeWarn, enum.PunishmentTypeMute:
		e.notifier.NotifyPlayer(targetID, message)
	}

	e.notifier.BroadcastStaff(e.messages.StaffIssueMessage(punishment))

	e.logger.Info("Issued punishment",
		zap.Int64("id", id),
		zap.String("target", targetName),
		zap.String("issuer", issuerName),
		zap.String("type", punishmentType.String()),
		zap.String("reason", reason),
		zap.Int("level", level))

	return id, nil
}

// Revoke flips an active punishment inactive. Returns false when the
// punishment is absent or already inactive; safe to retry. Returns
// ErrVetoed when a policy hook cancels the revocation.
func (e *Engine) Revoke(
	ctx context.Context, id int64, revokerID uuid.UUID, revokerName string,
) (bool, error) {
	punishment, err := e.store.GetPunishment(ctx, id)
	if err != nil {
		return false, err
	}

	if punishment == nil || !punishment.Active {
		return false, nil
	}

	if err := e.runPreRevoke(ctx, punishment, revokerID, revokerName); err != nil {
		return false, err
	}

	ok, err := e.store.RevokePunishment(ctx, id, revokerID, revokerName)
	if err != nil {
		e.logger.Error("Failed to revoke punishment",
			zap.Int64("id", id),
			zap.String("revoker", revokerName),
			zap.Error(err))

		return false, fmt.Errorf("failed to revoke punishment: %w", err)
	}

	if !ok {
		// Lost the race to the sweeper or a concurrent revoke.
		return false, nil
	}

	e.cache.Remove(id)

	punishment.Revoke(revokerID, revokerName, time.Now())
	e.runPostRevoke(ctx, punishment)

	e.notifier.NotifyPlayer(punishment.TargetID, e.messages.RevokeMessage(punishment))
	e.notifier.BroadcastStaff(e.messages.StaffRevokeMessage(punishment))

	e.logger.Info("Revoked punishment",
		zap.Int64("id", id),
		zap.String("target", punishment.TargetName),
		zap.String("revoker", revokerName))

	return true, nil
}

// ActivePunishments returns the player's currently enforceable
// punishments. The warm cache serves the hot path; a cache miss falls
// back to a store scan whose result is cached either way, so players
// with no punishments are also answered from memory on repeat checks.
func (e *Engine) ActivePunishments(ctx context.Context, playerID uuid.UUID) ([]*types.Punishment, error) {
	now := time.Now()

	if list, ok := e.cache.ForPlayer(playerID, now); ok {
		return list, nil
	}

	result, err, _ := e.coldLoads.Do(playerID.String(), func() (any, error) {
		list, err := e.store.ActivePunishments(ctx, playerID)
		if err != nil {
			return nil, err
		}

		for _, p := range list {
			if e.cache.Get(p.ID, now) == nil {
				e.cache.Add(p)
			}
		}

		if len(list) == 0 {
			e.cache.MarkClean(playerID, now)
		}

		return list, nil
	})
	if err != nil {
		return nil, err
	}

	punishments, _ := result.([]*types.Punishment)

	return punishments, nil
}

// IsBanned reports whether the player has an enforceable ban.
func (e *Engine) IsBanned(ctx context.Context, playerID uuid.UUID) (bool, error) {
	return e.hasActive(ctx, playerID, enum.PunishmentTypeBan)
}

// IsMuted reports whether the player has an enforceable mute.
func (e *Engine) IsMuted(ctx context.Context, playerID uuid.UUID) (bool, error) {
	return e.hasActive(ctx, playerID, enum.PunishmentTypeMute)
}

func (e *Engine) hasActive(
	ctx context.Context, playerID uuid.UUID, punishmentType enum.PunishmentType,
) (bool, error) {
	list, err := e.ActivePunishments(ctx, playerID)
	if err != nil {
		return false, err
	}

	for _, p := range list {
		if p.Type == punishmentType {
			return true, nil
		}
	}

	return false, nil
}

// PunishmentLevel returns the escalation level the player's next
// punishment of this (type, reason) would carry.
func (e *Engine) PunishmentLevel(
	ctx context.Context, playerID uuid.UUID, punishmentType enum.PunishmentType, reason string,
) (int, error) {
	return e.levels.NextLevel(ctx, playerID, punishmentType, reason)
}

// ResolveDuration exposes duration resolution for previews in staff
// tooling. Returns milliseconds or types.PermanentDuration.
func (e *Engine) ResolveDuration(punishmentType enum.PunishmentType, reason string, level int) int64 {
	return e.resolver.Resolve(punishmentType, reason, level)
}

func (e *Engine) lockFor(playerID uuid.UUID) *sync.Mutex {
	lock, _ := e.playerLocks.LoadOrStore(playerID, &sync.Mutex{})

	return lock.(*sync.Mutex)
}

func (e *Engine) runPrePunish(ctx context.Context, p *types.Punishment) error {
	e.hooksMu.RLock()
	defer e.hooksMu.RUnlock()

	for _, hook := range e.hooks {
		if err := hook.PrePunish(ctx, p); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) runPostPunish(ctx context.Context, p *types.Punishment) {
	e.hooksMu.RLock()
	defer e.hooksMu.RUnlock()

	for _, hook := range e.hooks {
		hook.PostPunish(ctx, p)
	}
}

func (e *Engine) runPreRevoke(
	ctx context.Context, p *types.Punishment, revokerID uuid.UUID, revokerName string,
) error {
	e.hooksMu.RLock()
	defer e.hooksMu.RUnlock()

	for _, hook := range e.hooks {
		if err := hook.PreRevoke(ctx, p, revokerID, revokerName); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) runPostRevoke(ctx context.Context, p *types.Punishment) {
	e.hooksMu.RLock()
	defer e.hooksMu.RUnlock()

	for _, hook := range e.hooks {
		hook.PostRevoke(ctx, p)
	}
}
