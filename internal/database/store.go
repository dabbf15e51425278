package database

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/models"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Store is the PostgreSQL-backed record store. Ids are allocated from
// in-process counters seeded with MAX(id)+1 at startup; a single process
// owns the store, so counters never race with another writer.
type Store struct {
	db     *bun.DB
	logger *zap.Logger

	punishments *models.PunishmentModel
	reports     *models.ReportModel
	appeals     *models.AppealModel

	punishmentID atomic.Int64
	reportID     atomic.Int64
	appealID     atomic.Int64
}

// NewStore builds a Store over an open database connection and seeds the
// id counters from the existing data.
func NewStore(ctx context.Context, db *bun.DB, logger *zap.Logger) (*Store, error) {
	s := &Store{
		db:          db,
		logger:      logger.Named("pg_store"),
		punishments: models.NewPunishment(db, logger),
		reports:     models.NewReport(db, logger),
		appeals:     models.NewAppeal(db, logger),
	}

	if err := s.seedCounters(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) seedCounters(ctx context.Context) error {
	maxPunishment, err := s.punishments.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed punishment counter: %w", err)
	}

	maxReport, err := s.reports.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed report counter: %w", err)
	}

	maxAppeal, err := s.appeals.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed appeal counter: %w", err)
	}

	s.punishmentID.Store(maxPunishment)
	s.reportID.Store(maxReport)
	s.appealID.Store(maxAppeal)

	s.logger.Debug("Seeded id counters",
		zap.Int64("punishment", maxPunishment),
		zap.Int64("report", maxReport),
		zap.Int64("appeal", maxAppeal))

	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NextPunishmentID allocates the next punishment id.
func (s *Store) NextPunishmentID(context.Context) (int64, error) {
	return s.punishmentID.Add(1), nil
}

// AddPunishment writes the punishment and its history entry atomically.
func (s *Store) AddPunishment(ctx context.Context, punishment *types.Punishment) error {
	return s.punishments.Add(ctx, punishment)
}

// GetPunishment returns the punishment with the given id, or nil.
func (s *Store) GetPunishment(ctx context.Context, id int64) (*types.Punishment, error) {
	return s.punishments.Get(ctx, id)
}

// PlayerPunishments returns the player's full history, newest first.
func (s *Store) PlayerPunishments(ctx context.Context, playerID uuid.UUID) ([]*types.Punishment, error) {
	return s.punishments.ForPlayer(ctx, playerID)
}

// ActivePunishments returns the player's active, unexpired punishments.
func (s *Store) ActivePunishments(ctx context.Context, playerID uuid.UUID) ([]*types.Punishment, error) {
	return s.punishments.ActiveForPlayer(ctx, playerID)
}

// AllActivePunishments returns every active, unexpired punishment.
func (s *Store) AllActivePunishments(ctx context.Context) ([]*types.Punishment, error) {
	return s.punishments.AllActive(ctx)
}

// RevokePunishment flips an active punishment inactive.
func (s *Store) RevokePunishment(
	ctx context.Context, id int64, revokerID uuid.UUID, revokerName string,
) (bool, error) {
	return s.punishments.Revoke(ctx, id, revokerID, revokerName)
}

// CountHistory counts history entries for the (type, reason) pair.
func (s *Store) CountHistory(
	ctx context.Context, playerID uuid.UUID, punishmentType enum.PunishmentType,
	reason string, includeRevoked bool,
) (int, error) {
	return s.punishments.CountHistory(ctx, playerID, punishmentType, reason, includeRevoked)
}

// ExpireDuePunishments deactivates punishments whose expiry has passed.
func (s *Store) ExpireDuePunishments(ctx context.Context, nowMillis int64) ([]*types.Punishment, error) {
	return s.punishments.ExpireDue(ctx, nowMillis)
}

// NextReportID allocates the next report id.
func (s *Store) NextReportID(context.Context) (int64, error) {
	return s.reportID.Add(1), nil
}

// AddReport writes a new report record.
func (s *Store) AddReport(ctx context.Context, report *types.Report) error {
	return s.reports.Add(ctx, report)
}

// GetReport returns the report with the given id, or nil.
func (s *Store) GetReport(ctx context.Context, id int64) (*types.Report, error) {
	return s.reports.Get(ctx, id)
}

// PlayerReports returns reports filed against the player, newest first.
func (s *Store) PlayerReports(ctx context.Context, playerID uuid.UUID) ([]*types.Report, error) {
	return s.reports.ForPlayer(ctx, playerID)
}

// UnprocessedReports returns all open reports, newest first.
func (s *Store) UnprocessedReports(ctx context.Context) ([]*types.Report, error) {
	return s.reports.Unprocessed(ctx)
}

// ProcessReport stamps the processing fields exactly once.
func (s *Store) ProcessReport(
	ctx context.Context, id int64, processorID uuid.UUID, processorName string, resultPunishmentID int64,
) (bool, error) {
	return s.reports.Process(ctx, id, processorID, processorName, resultPunishmentID)
}

// PurgeProcessedReports deletes processed reports older than the cutoff.
func (s *Store) PurgeProcessedReports(ctx context.Context, cutoffMillis int64) (int, error) {
	return s.reports.PurgeProcessed(ctx, cutoffMillis)
}

// NextAppealID allocates the next appeal id.
func (s *Store) NextAppealID(context.Context) (int64, error) {
	return s.appealID.Add(1), nil
}

// AddAppeal writes a new appeal record.
func (s *Store) AddAppeal(ctx context.Context, appeal *types.Appeal) error {
	return s.appeals.Add(ctx, appeal)
}

// GetAppeal returns the appeal with the given id, or nil.
func (s *Store) GetAppeal(ctx context.Context, id int64) (*types.Appeal, error) {
	return s.appeals.Get(ctx, id)
}

// PlayerAppeals returns appeals submitted by the player, newest first.
func (s *Store) PlayerAppeals(ctx context.Context, playerID uuid.UUID) ([]*types.Appeal, error) {
	return s.appeals.ForPlayer(ctx, playerID)
}

// PendingAppeals returns all appeals awaiting review, newest first.
func (s *Store) PendingAppeals(ctx context.Context) ([]*types.Appeal, error) {
	return s.appeals.Pending(ctx)
}

// PendingAppealForPunishment returns the pending appeal for the punishment, or nil.
func (s *Store) PendingAppealForPunishment(ctx context.Context, punishmentID int64) (*types.Appeal, error) {
	return s.appeals.PendingForPunishment(ctx, punishmentID)
}

// ApproveAppeal moves a pending appeal to APPROVED.
func (s *Store) ApproveAppeal(
	ctx context.Context, id int64, reviewerID uuid.UUID, reviewerName, comment string,
) (bool, error) {
	return s.appeals.Review(ctx, id, enum.AppealStatusApproved, reviewerID, reviewerName, comment)
}

// DenyAppeal moves a pending appeal to DENIED.
func (s *Store) DenyAppeal(
	ctx context.Context, id int64, reviewerID uuid.UUID, reviewerName, comment string,
) (bool, error) {
	return s.appeals.Review(ctx, id, enum.AppealStatusDenied, reviewerID, reviewerName, comment)
}
