package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/dbretry"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// AppealModel handles database operations for punishment appeal records.
type AppealModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAppeal creates a new AppealModel instance.
func NewAppeal(db *bun.DB, logger *zap.Logger) *AppealModel {
	return &AppealModel{
		db:     db,
		logger: logger.Named("db_appeal"),
	}
}

// MaxID returns the highest appeal id currently stored, or 0.
func (m *AppealModel) MaxID(ctx context.Context) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var maxID int64

		err := m.db.NewSelect().
			Model((*types.Appeal)(nil)).
			ColumnExpr("COALESCE(MAX(id), 0)").
			Scan(ctx, &maxID)
		if err != nil {
			return 0, fmt.Errorf("failed to get max appeal id: %w", err)
		}

		return maxID, nil
	})
}

// Add inserts a new appeal record.
func (m *AppealModel) Add(ctx context.Context, appeal *types.Appeal) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		if _, err := m.db.NewInsert().Model(appeal).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert appeal: %w", err)
		}

		return nil
	})
}

// Get retrieves an appeal by id. Returns nil if not found.
func (m *AppealModel) Get(ctx context.Context, id int64) (*types.Appeal, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Appeal, error) {
		var appeal types.Appeal

		err := m.db.NewSelect().
			Model(&appeal).
			Where("id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get appeal: %w", err)
		}

		return &appeal, nil
	})
}

// ForPlayer returns appeals submitted by the player, newest first.
func (m *AppealModel) ForPlayer(ctx context.Context, playerID uuid.UUID) ([]*types.Appeal, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Appeal, error) {
		var appeals []*types.Appeal

		err := m.db.NewSelect().
			Model(&appeals).
			Where("player_id = ?", playerID).
			Order("created_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get player appeals: %w", err)
		}

		return appeals, nil
	})
}

// Pending returns all appeals awaiting review, newest first.
func (m *AppealModel) Pending(ctx context.Context) ([]*types.Appeal, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Appeal, error) {
		var appeals []*types.Appeal

		err := m.db.NewSelect().
			Model(&appeals).
			Where("status = ?", enum.AppealStatusPending).
			Order("created_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get pending appeals: %w", err)
		}

		return appeals, nil
	})
}

// PendingForPunishment returns the pending appeal targeting the punishment,
// or nil. At most one pending appeal exists per punishment.
func (m *AppealModel) PendingForPunishment(ctx context.Context, punishmentID int64) (*types.Appeal, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Appeal, error) {
		var appeal types.Appeal

		err := m.db.NewSelect().
			Model(&appeal).
			Where("punishment_id = ?", punishmentID).
			Where("status = ?", enum.AppealStatusPending).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get pending appeal: %w", err)
		}

		return &appeal, nil
	})
}

// Review moves a pending appeal to the given terminal status and stamps the
// review fields. Returns false if the appeal is absent or not pending.
func (m *AppealModel) Review(
	ctx context.Context, id int64, status enum.AppealStatus,
	reviewerID uuid.UUID, reviewerName, comment string,
) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := m.db.NewUpdate().
			Model((*types.Appeal)(nil)).
			Set("status = ?", status).
			Set("reviewer_id = ?", reviewerID).
			Set("reviewer_name = ?", reviewerName).
			Set("review_comment = ?", comment).
			Set("reviewed_at = ?", time.Now().UnixMilli()).
			Where("id = ?", id).
			Where("status = ?", enum.AppealStatusPending).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to review appeal: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, err
		}

		return affected > 0, nil
	})
}
