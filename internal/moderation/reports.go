package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/setup/config"
	"github.com/tribunal-mc/tribunal/internal/storage"
	"go.uber.org/zap"
)

// ErrReportCooldown is returned when the reporter is still inside the
// cooldown window for the reported player.
var ErrReportCooldown = errors.New("report cooldown active")

// ReportService implements the report sub-lifecycle: submission behind a
// per-(reporter, reported) cooldown, and single-fire processing.
type ReportService struct {
	store    storage.ReportStore
	cooldown CooldownTracker
	notifier Notifier
	messages *Messenger
	window   time.Duration
	logger   *zap.Logger
}

// NewReportService wires the report sub-lifecycle.
func NewReportService(
	store storage.ReportStore, cooldown CooldownTracker, notifier Notifier,
	messages *Messenger, cfg *config.Reports, logger *zap.Logger,
) *ReportService {
	return &ReportService{
		store:    store,
		cooldown: cooldown,
		notifier: notifier,
		messages: messages,
		window:   time.Duration(cfg.CooldownSeconds) * time.Second,
		logger:   logger.Named("reports"),
	}
}

// Submit files a report and returns its id. Returns ErrReportCooldown
// when the reporter recently reported the same player.
func (s *ReportService) Submit(
	ctx context.Context, reporterID uuid.UUID, reporterName string,
	reportedID uuid.UUID, reportedName, reason string,
) (int64, error) {
	key := fmt.Sprintf("report_cooldown:%s:%s", reporterID, reportedID)

	acquired, err := s.cooldown.TryAcquire(ctx, key, s.window)
	if err != nil {
		return 0, err
	}

	if !acquired {
		return 0, ErrReportCooldown
	}

	id, err := s.store.NextReportID(ctx)
	if err != nil {
		s.releaseCooldown(ctx, key)
		return 0, fmt.Errorf("failed to allocate report id: %w", err)
	}

	report := types.NewReport(id, reporterID, reporterName, reportedID, reportedName, reason, time.Now())

	if err := s.store.AddReport(ctx, report); err != nil {
		s.logger.Error("Failed to persist report",
			zap.Int64("id", id),
			zap.String("reporter", reporterName),
			zap.String("reported", reportedName),
			zap.Error(err))

		// Give the window back so the reporter can retry right away.
		s.releaseCooldown(ctx, key)

		return 0, fmt.Errorf("failed to persist report: %w", err)
	}

	s.notifier.NotifyPlayer(reporterID, s.messages.cfg.ReportFiled)

	s.logger.Info("Filed report",
		zap.Int64("id", id),
		zap.String("reporter", reporterName),
		zap.String("reported", reportedName),
		zap.String("reason", reason))

	return id, nil
}

func (s *ReportService) releaseCooldown(ctx context.Context, key string) {
	if err := s.cooldown.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release report cooldown",
			zap.String("key", key),
			zap.Error(err))
	}
}

// Process stamps the processing fields exactly once. Pass zero for
// resultPunishmentID when the report led to no punishment. Returns false
// when the report is absent or already processed.
func (s *ReportService) Process(
	ctx context.Context, id int64, processorID uuid.UUID, processorName string, resultPunishmentID int64,
) (bool, error) {
	ok, err := s.store.ProcessReport(ctx, id, processorID, processorName, resultPunishmentID)
	if err != nil {
		return false, err
	}

	if ok {
		s.logger.Info("Processed report",
			zap.Int64("id", id),
			zap.String("processor", processorName),
			zap.Int64("resultPunishment", resultPunishmentID))
	}

	return ok, nil
}

// Get returns the report with the given id, or nil.
func (s *ReportService) Get(ctx context.Context, id int64) (*types.Report, error) {
	return s.store.GetReport(ctx, id)
}

// ForPlayer returns reports filed against the player, newest first.
func (s *ReportService) ForPlayer(ctx context.Context, playerID uuid.UUID) ([]*types.Report, error) {
	return s.store.PlayerReports(ctx, playerID)
}

// Unprocessed returns all open reports, newest first.
func (s *ReportService) Unprocessed(ctx context.Context) ([]*types.Report, error) {
	return s.store.UnprocessedReports(ctx)
}
