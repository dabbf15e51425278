// Package sweeper runs the background pass that retires time-expired
// punishments and purges old processed reports.
package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/moderation"
	"github.com/tribunal-mc/tribunal/internal/setup/config"
	"github.com/tribunal-mc/tribunal/internal/storage"
	"github.com/tribunal-mc/tribunal/internal/storage/cache"
	"go.uber.org/zap"
)

// Worker periodically flips still-active-but-expired punishments to
// inactive with the auto-expired marker, removes them from the cache,
// and notifies affected players.
type Worker struct {
	store     storage.Store
	cache     *cache.Active
	notifier  moderation.Notifier
	messages  *moderation.Messenger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	// running skips a tick when the previous sweep has not finished, so
	// two sweeps never race on the same records.
	running atomic.Bool
}

// New creates a sweeper worker.
func New(
	store storage.Store, activeCache *cache.Active, notifier moderation.Notifier,
	messages *moderation.Messenger, sweeperCfg *config.Sweeper, reportsCfg *config.Reports,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		store:     store,
		cache:     activeCache,
		notifier:  notifier,
		messages:  messages,
		interval:  time.Duration(sweeperCfg.IntervalSeconds) * time.Second,
		retention: time.Duration(reportsCfg.DaysToKeep) * 24 * time.Hour,
		logger:    logger.Named("sweeper"),
	}
}

// Start runs sweep passes on the configured interval until the context
// is cancelled. An immediate pass runs before the first tick.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Sweeper started", zap.Duration("interval", w.interval))

	w.Sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass. Safe to call concurrently; overlapping calls
// are dropped rather than queued.
func (w *Worker) Sweep(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Warn("Skipping sweep, previous pass still running")
		return
	}
	defer w.running.Store(false)

	expired, err := w.store.ExpireDuePunishments(ctx, time.Now().UnixMilli())
	if err != nil {
		w.logger.Error("Failed to expire punishments", zap.Error(err))
		return
	}

	for _, p := range expired {
		w.cache.Remove(p.ID)
	}

	w.notifyExpired(expired)

	// Non-positive retention keeps processed reports forever.
	if w.retention > 0 {
		if purged, err := w.store.PurgeProcessedReports(ctx, time.Now().Add(-w.retention).UnixMilli()); err != nil {
			w.logger.Error("Failed to purge processed reports", zap.Error(err))
		} else if purged > 0 {
			w.logger.Info("Purged processed reports", zap.Int("count", purged))
		}
	}

	if len(expired) > 0 {
		w.logger.Info("Sweep pass complete", zap.Int("expired", len(expired)))
	}
}

func (w *Worker) notifyExpired(expired []*types.Punishment) {
	if len(expired) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(8)

	for _, punishment := range expired {
		p.Go(func() {
			if message := w.messages.ExpireMessage(punishment); message != "" {
				w.notifier.NotifyPlayer(punishment.TargetID, message)
			}
		})
	}

	p.Wait()
}
