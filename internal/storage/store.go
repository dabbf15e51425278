// Package storage defines the persistence contract shared by the flat-file
// and PostgreSQL backends. Both implementations must produce identical
// externally observable behavior; no other package may depend on which
// backend is active.
package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
)

// Store is the durable record store for punishments, reports, and appeals.
//
// Lookups return nil (not an error) when a record is absent, and mutations
// that find nothing to do return false; errors are reserved for persistence
// failures. ID allocators are strictly increasing and seeded from the
// maximum existing id at startup, so ids are never reused across restarts.
type Store interface {
	PunishmentStore
	ReportStore
	AppealStore

	// Close flushes pending writes and releases backend resources.
	Close() error
}

// PunishmentStore holds the punishment records and the per-player history
// index used for escalation level counting.
type PunishmentStore interface {
	// NextPunishmentID allocates the next punishment id. Allocated ids that
	// are never persisted (vetoed issues) leave harmless gaps.
	NextPunishmentID(ctx context.Context) (int64, error)

	// AddPunishment durably writes the punishment and appends it to the
	// target's history index. Both writes land atomically or not at all.
	AddPunishment(ctx context.Context, punishment *types.Punishment) error

	// GetPunishment returns the punishment with the given id, or nil.
	GetPunishment(ctx context.Context, id int64) (*types.Punishment, error)

	// PlayerPunishments returns the player's full punishment history,
	// newest first, including revoked and expired records.
	PlayerPunishments(ctx context.Context, playerID uuid.UUID) ([]*types.Punishment, error)

	// ActivePunishments scans the backend for the player's punishments that
	// are active and not time-expired at call time. This is the cold-cache
	// fallback path; hot-path reads go through the active cache.
	ActivePunishments(ctx context.Context, playerID uuid.UUID) ([]*types.Punishment, error)

	// AllActivePunishments returns every active, unexpired punishment.
	// Used to warm the active cache at startup.
	AllActivePunishments(ctx context.Context) ([]*types.Punishment, error)

	// RevokePunishment flips the punishment inactive and stamps the
	// revocation fields. Returns false when the punishment is absent or
	// already inactive; safe to retry.
	RevokePunishment(ctx context.Context, id int64, revokerID uuid.UUID, revokerName string) (bool, error)

	// CountHistory counts history entries for the (type, reason) pair,
	// matched case-insensitively. When includeRevoked is false, punishments
	// that were explicitly revoked are excluded from the count.
	CountHistory(
		ctx context.Context, playerID uuid.UUID, punishmentType enum.PunishmentType,
		reason string, includeRevoked bool,
	) (int, error)

	// ExpireDuePunishments marks every active punishment whose expiry has
	// passed as inactive with the auto-expired marker, and returns the
	// affected records. A record already revoked concurrently is skipped.
	ExpireDuePunishments(ctx context.Context, nowMillis int64) ([]*types.Punishment, error)
}

// ReportStore holds player report records.
type ReportStore interface {
	NextReportID(ctx context.Context) (int64, error)

	AddReport(ctx context.Context, report *types.Report) error

	// GetReport returns the report with the given id, or nil.
	GetReport(ctx context.Context, id int64) (*types.Report, error)

	// PlayerReports returns reports filed against the player, newest first.
	PlayerReports(ctx context.Context, playerID uuid.UUID) ([]*types.Report, error)

	// UnprocessedReports returns all open reports, newest first.
	UnprocessedReports(ctx context.Context) ([]*types.Report, error)

	// ProcessReport stamps the processing fields exactly once. Returns
	// false when the report is absent or already processed.
	ProcessReport(
		ctx context.Context, id int64, processorID uuid.UUID, processorName string, resultPunishmentID int64,
	) (bool, error)

	// PurgeProcessedReports deletes processed reports created before the
	// cutoff and returns how many were removed.
	PurgeProcessedReports(ctx context.Context, cutoffMillis int64) (int, error)
}

// AppealStore holds punishment appeal records.
type AppealStore interface {
	NextAppealID(ctx context.Context) (int64, error)

	AddAppeal(ctx context.Context, appeal *types.Appeal) error

	// GetAppeal returns the appeal with the given id, or nil.
	GetAppeal(ctx context.Context, id int64) (*types.Appeal, error)

	// PlayerAppeals returns appeals submitted by the player, newest first.
	PlayerAppeals(ctx context.Context, playerID uuid.UUID) ([]*types.Appeal, error)

	// PendingAppeals returns all appeals awaiting review, newest first.
	PendingAppeals(ctx context.Context) ([]*types.Appeal, error)

	// PendingAppealForPunishment returns the pending appeal targeting the
	// punishment, or nil. At most one pending appeal exists per punishment.
	PendingAppealForPunishment(ctx context.Context, punishmentID int64) (*types.Appeal, error)

	// ApproveAppeal moves a pending appeal to APPROVED and stamps the
	// review fields. Returns false when absent or not pending.
	ApproveAppeal(ctx context.Context, id int64, reviewerID uuid.UUID, reviewerName, comment string) (bool, error)

	// DenyAppeal moves a pending appeal to DENIED and stamps the review
	// fields. Returns false when absent or not pending.
	DenyAppeal(ctx context.Context, id int64, reviewerID uuid.UUID, reviewerName, comment string) (bool, error)
}
