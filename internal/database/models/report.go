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
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ReportModel handles database operations for player report records.
type ReportModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewReport creates a new ReportModel instance.
func NewReport(db *bun.DB, logger *zap.Logger) *ReportModel {
	return &ReportModel{
		db:     db,
		logger: logger.Named("db_report"),
	}
}

// MaxID returns the highest report id currently stored, or 0.
func (m *ReportModel) MaxID(ctx context.Context) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var maxID int64

		err := m.db.NewSelect().
			Model((*types.Report)(nil)).
			ColumnExpr("COALESCE(MAX(id), 0)").
			Scan(ctx, &maxID)
		if err != nil {
			return 0, fmt.Errorf("failed to get max report id: %w", err)
		}

		return maxID, nil
	})
}

// Add inserts a new report record.
func (m *ReportModel) Add(ctx context.Context, report *types.Report) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		if _, err := m.db.NewInsert().Model(report).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}

		return nil
	})
}

// Get retrieves a report by id. Returns nil if not found.
func (m *ReportModel) Get(ctx context.Context, id int64) (*types.Report, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Report, error) {
		var report types.Report

		err := m.db.NewSelect().
			Model(&report).
			Where("id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get report: %w", err)
		}

		return &report, nil
	})
}

// ForPlayer returns reports filed against the player, newest first.
func (m *ReportModel) ForPlayer(ctx context.Context, playerID uuid.UUID) ([]*types.Report, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Report, error) {
		var reports []*types.Report

		err := m.db.NewSelect().
			Model(&reports).
			Where("reported_id = ?", playerID).
			Order("created_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get player reports: %w", err)
		}

		return reports, nil
	})
}

// Unprocessed returns all open reports, newest first.
func (m *ReportModel) Unprocessed(ctx context.Context) ([]*types.Report, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Report, error) {
		var reports []*types.Report

		err := m.db.NewSelect().
			Model(&reports).
			Where("processed = FALSE").
			Order("created_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get unprocessed reports: %w", err)
		}

		return reports, nil
	})
}

// Process stamps the processing fields exactly once. Returns false if the
// report is absent or already processed.
func (m *ReportModel) Process(
	ctx context.Context, id int64, processorID uuid.UUID, processorName string, resultPunishmentID int64,
) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		query := m.db.NewUpdate().
			Model((*types.Report)(nil)).
			Set("processed = TRUE").
			Set("processor_id = ?", processorID).
			Set("processor_name = ?", processorName).
			Set("processed_at = ?", time.Now().UnixMilli()).
			Where("id = ?", id).
			Where("processed = FALSE")

		if resultPunishmentID > 0 {
			query = query.Set("result_punishment_id = ?", resultPunishmentID)
		}

		result, err := query.Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to process report: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, err
		}

		return affected > 0, nil
	})
}

// PurgeProcessed deletes processed reports created before the cutoff and
// returns how many were removed.
func (m *ReportModel) PurgeProcessed(ctx context.Context, cutoffMillis int64) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		result, err := m.db.NewDelete().
			Model((*types.Report)(nil)).
			Where("processed = TRUE").
			Where("created_at < ?", cutoffMillis).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to purge reports: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}

		if affected > 0 {
			m.logger.Info("Purged old processed reports", zap.Int64("count", affected))
		}

		return int(affected), nil
	})
}
