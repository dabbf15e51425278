package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/dbretry"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PunishmentModel handles database operations for punishment records.
type PunishmentModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPunishment creates a new PunishmentModel instance.
func NewPunishment(db *bun.DB, logger *zap.Logger) *PunishmentModel {
	return &PunishmentModel{
		db:     db,
		logger: logger.Named("db_punishment"),
	}
}

// MaxID returns the highest punishment id currently stored, or 0.
func (m *PunishmentModel) MaxID(ctx context.Context) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var maxID int64

		err := m.db.NewSelect().
			Model((*types.Punishment)(nil)).
			ColumnExpr("COALESCE(MAX(id), 0)").
			Scan(ctx, &maxID)
		if err != nil {
			return 0, fmt.Errorf("failed to get max punishment id: %w", err)
		}

		return maxID, nil
	})
}

// Add inserts the punishment and its history entry in one transaction so a
// crash cannot leave an orphaned reference on either side.
func (m *PunishmentModel) Add(ctx context.Context, punishment *types.Punishment) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(punishment).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert punishment: %w", err)
		}

		entry := &types.HistoryEntry{
			PlayerID:     punishment.TargetID,
			PunishmentID: punishment.ID,
			Type:         punishment.Type,
			Reason:       strings.ToLower(punishment.Reason),
			Level:        punishment.Level,
		}
		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}

		return nil
	})
}

// Get retrieves a punishment by id. Returns nil if not found.
func (m *PunishmentModel) Get(ctx context.Context, id int64) (*types.Punishment, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Punishment, error) {
		var punishment types.Punishment

		err := m.db.NewSelect().
			Model(&punishment).
			Where("id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get punishment: %w", err)
		}

		return &punishment, nil
	})
}

// ForPlayer returns the player's full punishment history, newest first.
func (m *PunishmentModel) ForPlayer(ctx context.Context, playerID uuid.UUID) ([]*types.Punishment, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Punishment, error) {
		var punishments []*types.Punishment

		err := m.db.NewSelect().
			Model(&punishments).
			Where("target_id = ?", playerID).
			Order("issued_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get player punishments: %w", err)
		}

		return punishments, nil
	})
}

// ActiveForPlayer returns the player's active, unexpired punishments.
func (m *PunishmentModel) ActiveForPlayer(ctx context.Context, playerID uuid.UUID) ([]*types.Punishment, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Punishment, error) {
		var punishments []*types.Punishment

		err := m.db.NewSelect().
			Model(&punishments).
			Where("target_id = ?", playerID).
			Where("active = TRUE").
			Where("(expires_at = ? OR expires_at > ?)", types.PermanentDuration, time.Now().UnixMilli()).
			Order("issued_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get active punishments: %w", err)
		}

		return punishments, nil
	})
}

// AllActive returns every active, unexpired punishment across all players.
func (m *PunishmentModel) AllActive(ctx context.Context) ([]*types.Punishment, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Punishment, error) {
		var punishments []*types.Punishment

		err := m.db.NewSelect().
			Model(&punishments).
			Where("active = TRUE").
			Where("(expires_at = ? OR expires_at > ?)", types.PermanentDuration, time.Now().UnixMilli()).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get all active punishments: %w", err)
		}

		return punishments, nil
	})
}

// Revoke flips an active punishment inactive and stamps the revocation
// fields. Returns false if the punishment is absent or already inactive.
func (m *PunishmentModel) Revoke(
	ctx context.Context, id int64, revokerID uuid.UUID, revokerName string,
) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := m.db.NewUpdate().
			Model((*types.Punishment)(nil)).
			Set("active = FALSE").
			Set("revoker_id = ?", revokerID).
			Set("revoker_name = ?", revokerName).
			Set("revoked_at = ?", time.Now().UnixMilli()).
			Where("id = ?", id).
			Where("active = TRUE").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to revoke punishment: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, err
		}

		return affected > 0, nil
	})
}

// CountHistory counts history entries for the (type, reason) pair. When
// includeRevoked is false, entries whose punishment was revoked are skipped.
func (m *PunishmentModel) CountHistory(
	ctx context.Context, playerID uuid.UUID, punishmentType enum.PunishmentType,
	reason string, includeRevoked bool,
) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		query := m.db.NewSelect().
			Model((*types.HistoryEntry)(nil)).
			Where("history_entry.player_id = ?", playerID).
			Where("history_entry.type = ?", punishmentType).
			Where("history_entry.reason = ?", strings.ToLower(reason))

		if !includeRevoked {
			query = query.
				Join("JOIN punishments AS p ON p.id = history_entry.punishment_id").
				Where("p.revoker_name IS NULL")
		}

		count, err := query.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count history: %w", err)
		}

		return count, nil
	})
}

// ExpireDue marks every active punishment whose expiry has passed as
// inactive with the auto-expired marker and returns the affected records.
func (m *PunishmentModel) ExpireDue(ctx context.Context, nowMillis int64) ([]*types.Punishment, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Punishment, error) {
		var expired []*types.Punishment

		err := m.db.NewUpdate().
			Model(&expired).
			Set("active = FALSE").
			Set("auto_expired = TRUE").
			Where("active = TRUE").
			Where("expires_at != ?", types.PermanentDuration).
			Where("expires_at <= ?", nowMillis).
			Returning("*").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to expire punishments: %w", err)
		}

		if len(expired) > 0 {
			m.logger.Info("Auto-expired punishments", zap.Int("count", len(expired)))
		}

		return expired, nil
	})
}
