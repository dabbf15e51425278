package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Punishment hot-path indexes
			CREATE INDEX IF NOT EXISTS idx_punishments_target
			ON punishments (target_id, issued_at DESC);

			CREATE INDEX IF NOT EXISTS idx_punishments_active
			ON punishments (active)
			WHERE active = true;

			CREATE INDEX IF NOT EXISTS idx_punishments_type
			ON punishments (type);

			-- History index for escalation level counting
			CREATE INDEX IF NOT EXISTS idx_history_entries_player
			ON history_entries (player_id);

			CREATE INDEX IF NOT EXISTS idx_history_entries_type_reason
			ON history_entries (type, reason);

			-- Report indexes
			CREATE INDEX IF NOT EXISTS idx_reports_reported
			ON reports (reported_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_reports_processed
			ON reports (processed)
			WHERE processed = false;

			-- Appeal indexes
			CREATE INDEX IF NOT EXISTS idx_appeals_player
			ON appeals (player_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_appeals_status
			ON appeals (status);

			CREATE INDEX IF NOT EXISTS idx_appeals_punishment_pending
			ON appeals (punishment_id)
			WHERE status = 0;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_punishments_target;
			DROP INDEX IF EXISTS idx_punishments_active;
			DROP INDEX IF EXISTS idx_punishments_type;
			DROP INDEX IF EXISTS idx_history_entries_player;
			DROP INDEX IF EXISTS idx_history_entries_type_reason;
			DROP INDEX IF EXISTS idx_reports_reported;
			DROP INDEX IF EXISTS idx_reports_processed;
			DROP INDEX IF EXISTS idx_appeals_player;
			DROP INDEX IF EXISTS idx_appeals_status;
			DROP INDEX IF EXISTS idx_appeals_punishment_pending;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
