// Package flatfile implements the record store on top of JSON files.
// It is the default backend for small deployments that do not run
// PostgreSQL; all records are held in memory and flushed to disk on
// every mutation.
package flatfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"go.uber.org/zap"
)

const (
	punishmentsFile = "punishments.json"
	historyFile     = "history.json"
	reportsFile     = "reports.json"
	appealsFile     = "appeals.json"
)

// Store keeps all records in memory and persists each collection to its
// own JSON file under dir. A single mutex serializes every operation;
// the write volume of a moderation system never justifies finer locking.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger

	punishments map[int64]*types.Punishment
	history     []*types.HistoryEntry
	reports     map[int64]*types.Report
	appeals     map[int64]*types.Appeal

	punishmentID int64
	historyID    int64
	reportID     int64
	appealID     int64
}

// NewStore loads (or creates) the JSON files under dir and seeds the id
// counters from the highest ids on disk.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &Store{
		dir:         dir,
		logger:      logger.Named("file_store"),
		punishments: make(map[int64]*types.Punishment),
		reports:     make(map[int64]*types.Report),
		appeals:     make(map[int64]*types.Appeal),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	s.logger.Debug("Loaded flat-file store",
		zap.Int("punishments", len(s.punishments)),
		zap.Int("reports", len(s.reports)),
		zap.Int("appeals", len(s.appeals)))

	return s, nil
}

func (s *Store) load() error {
	var punishments []*types.Punishment
	if err := s.loadFile(punishmentsFile, &punishments); err != nil {
		return err
	}

	for _, p := range punishments {
		s.punishments[p.ID] = p
		if p.ID > s.punishmentID {
			s.punishmentID = p.ID
		}
	}

	if err := s.loadFile(historyFile, &s.history); err != nil {
		return err
	}

	for _, e := range s.history {
		if e.ID > s.historyID {
			s.historyID = e.ID
		}
	}

	var reports []*types.Report
	if err := s.loadFile(reportsFile, &reports); err != nil {
		return err
	}

	for _, r := range reports {
		s.reports[r.ID] = r
		if r.ID > s.reportID {
			s.reportID = r.ID
		}
	}

	var appeals []*types.Appeal
	if err := s.loadFile(appealsFile, &appeals); err != nil {
		return err
	}

	for _, a := range appeals {
		s.appeals[a.ID] = a
		if a.ID > s.appealID {
			s.appealID = a.ID
		}
	}

	return nil
}

func (s *Store) loadFile(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}

	return nil
}

// saveFile writes atomically: marshal to a temp file, fsync, then rename
// over the target so a crash never leaves a truncated collection.
func (s *Store) saveFile(name string, in any) error {
	data, err := sonic.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", tmp, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}

func (s *Store) savePunishments() error {
	list := make([]*types.Punishment, 0, len(s.punishments))
	for _, p := range s.punishments {
		list = append(list, p)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return s.saveFile(punishmentsFile, list)
}

func (s *Store) saveReports() error {
	list := make([]*types.Report, 0, len(s.reports))
	for _, r := range s.reports {
		list = append(list, r)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return s.saveFile(reportsFile, list)
}

func (s *Store) saveAppeals() error {
	list := make([]*types.Appeal, 0, len(s.appeals))
	for _, a := range s.appeals {
		list = append(list, a)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return s.saveFile(appealsFile, list)
}

// Close flushes every collection to disk.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.savePunishments(); err != nil {
		return err
	}

	if err := s.saveFile(historyFile, s.history); err != nil {
		return err
	}

	if err := s.saveReports(); err != nil {
		return err
	}

	return s.saveAppeals()
}

// NextPunishmentID allocates the next punishment id.
func (s *Store) NextPunishmentID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.punishmentID++

	return s.punishmentID, nil
}

// AddPunishment stores the punishment and appends its history entry, then
// flushes both collections.
func (s *Store) AddPunishment(_ context.Context, punishment *types.Punishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *punishment
	s.punishments[stored.ID] = &stored

	s.historyID++
	s.history = append(s.history, &types.HistoryEntry{
		ID:           s.historyID,
		PlayerID:     stored.TargetID,
		PunishmentID: stored.ID,
		Type:         stored.Type,
		Reason:       strings.ToLower(stored.Reason),
		Level:        stored.Level,
	})

	if err := s.savePunishments(); err != nil {
		return err
	}

	return s.saveFile(historyFile, s.history)
}

// GetPunishment returns a copy of the punishment, or nil.
func (s *Store) GetPunishment(_ context.Context, id int64) (*types.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.punishments[id]
	if !ok {
		return nil, nil
	}

	clone := *p

	return &clone, nil
}

// PlayerPunishments returns the player's full history, newest first.
func (s *Store) PlayerPunishments(_ context.Context, playerID uuid.UUID) ([]*types.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*types.Punishment

	for _, p := range s.punishments {
		if p.TargetID == playerID {
			clone := *p
			list = append(list, &clone)
		}
	}

	sortPunishments(list)

	return list, nil
}

// ActivePunishments returns the player's active, unexpired punishments.
func (s *Store) ActivePunishments(_ context.Context, playerID uuid.UUID) ([]*types.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	var list []*types.Punishment

	for _, p := range s.punishments {
		if p.TargetID == playerID && p.Enforceable(now) {
			clone := *p
			list = append(list, &clone)
		}
	}

	sortPunishments(list)

	return list, nil
}

// AllActivePunishments returns every active, unexpired punishment.
func (s *Store) AllActivePunishments(context.Context) ([]*types.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	var list []*types.Punishment

	for _, p := range s.punishments {
		if p.Enforceable(now) {
			clone := *p
			list = append(list, &clone)
		}
	}

	sortPunishments(list)

	return list, nil
}

// RevokePunishment flips an active punishment inactive.
func (s *Store) RevokePunishment(
	_ context.Context, id int64, revokerID uuid.UUID, revokerName string,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.punishments[id]
	if !ok || !p.Active {
		return false, nil
	}

	p.Revoke(revokerID, revokerName, time.Now())

	if err := s.savePunishments(); err != nil {
		return false, err
	}

	return true, nil
}

// CountHistory counts history entries for the (type, reason) pair.
func (s *Store) CountHistory(
	_ context.Context, playerID uuid.UUID, punishmentType enum.PunishmentType,
	reason string, includeRevoked bool,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason = strings.ToLower(reason)
	count := 0

	for _, e := range s.history {
		if e.PlayerID != playerID || e.Type != punishmentType || e.Reason != reason {
			continue
		}

		if !includeRevoked {
			if p, ok := s.punishments[e.PunishmentID]; ok && p.Revoked() {
				continue
			}
		}

		count++
	}

	return count, nil
}

// ExpireDuePunishments deactivates punishments whose expiry has passed and
// returns copies of the affected records.
func (s *Store) ExpireDuePunishments(_ context.Context, nowMillis int64) ([]*types.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*types.Punishment

	for _, p := range s.punishments {
		if !p.Active || p.ExpiresAt == types.PermanentDuration || p.ExpiresAt > nowMillis {
			continue
		}

		p.Active = false
		p.AutoExpired = true

		clone := *p
		expired = append(expired, &clone)
	}

	if len(expired) == 0 {
		return nil, nil
	}

	if err := s.savePunishments(); err != nil {
		return nil, err
	}

	sortPunishments(expired)

	return expired, nil
}

// NextReportID allocates the next report id.
func (s *Store) NextReportID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reportID++

	return s.reportID, nil
}

// AddReport stores and flushes a new report.
func (s *Store) AddReport(_ context.Context, report *types.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *report
	s.reports[stored.ID] = &stored

	return s.saveReports()
}

// GetReport returns a copy of the report, or nil.
func (s *Store) GetReport(_ context.Context, id int64) (*types.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}

	clone := *r

	return &clone, nil
}

// PlayerReports returns reports filed against the player, newest first.
func (s *Store) PlayerReports(_ context.Context, playerID uuid.UUID) ([]*types.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*types.Report

	for _, r := range s.reports {
		if r.ReportedID == playerID {
			clone := *r
			list = append(list, &clone)
		}
	}

	sortReports(list)

	return list, nil
}

// UnprocessedReports returns all open reports, newest first.
func (s *Store) UnprocessedReports(context.Context) ([]*types.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*types.Report

	for _, r := range s.reports {
		if !r.Processed {
			clone := *r
			list = append(list, &clone)
		}
	}

	sortReports(list)

	return list, nil
}

// ProcessReport stamps the processing fields exactly once.
func (s *Store) ProcessReport(
	_ context.Context, id int64, processorID uuid.UUID, processorName string, resultPunishmentID int64,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok || r.Processed {
		return false, nil
	}

	r.MarkProcessed(processorID, processorName, resultPunishmentID, time.Now())

	if err := s.saveReports(); err != nil {
		return false, err
	}

	return true, nil
}

// PurgeProcessedReports deletes processed reports older than the cutoff.
func (s *Store) PurgeProcessedReports(_ context.Context, cutoffMillis int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for id, r := range s.reports {
		if r.Processed && r.CreatedAt < cutoffMillis {
			delete(s.reports, id)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}

	if err := s.saveReports(); err != nil {
		return 0, err
	}

	return removed, nil
}

// NextAppealID allocates the next appeal id.
func (s *Store) NextAppealID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appealID++

	return s.appealID, nil
}

// AddAppeal stores and flushes a new appeal.
func (s *Store) AddAppeal(_ context.Context, appeal *types.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *appeal
	s.appeals[stored.ID] = &stored

	return s.saveAppeals()
}

// GetAppeal returns a copy of the appeal, or nil.
func (s *Store) GetAppeal(_ context.Context, id int64) (*types.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appeals[id]
	if !ok {
		return nil, nil
	}

	clone := *a

	return &clone, nil
}

// PlayerAppeals returns appeals submitted by the player, newest first.
func (s *Store) PlayerAppeals(_ context.Context, playerID uuid.UUID) ([]*types.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*types.Appeal

	for _, a := range s.appeals {
		if a.PlayerID == playerID {
			clone := *a
			list = append(list, &clone)
		}
	}

	sortAppeals(list)

	return list, nil
}

// PendingAppeals returns all appeals awaiting review, newest first.
func (s *Store) PendingAppeals(context.Context) ([]*types.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*types.Appeal

	for _, a := range s.appeals {
		if a.Status == enum.AppealStatusPending {
			clone := *a
			list = append(list, &clone)
		}
	}

	sortAppeals(list)

	return list, nil
}

// PendingAppealForPunishment returns the pending appeal for the punishment, or nil.
func (s *Store) PendingAppealForPunishment(_ context.Context, punishmentID int64) (*types.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.appeals {
		if a.PunishmentID == punishmentID && a.Status == enum.AppealStatusPending {
			clone := *a

			return &clone, nil
		}
	}

	return nil, nil
}

// ApproveAppeal moves a pending appeal to APPROVED.
func (s *Store) ApproveAppeal(
	ctx context.Context, id int64, reviewerID uuid.UUID, reviewerName, comment string,
) (bool, error) {
	return s.review(ctx, id, enum.AppealStatusApproved, reviewerID, reviewerName, comment)
}

// DenyAppeal moves a pending appeal to DENIED.
func (s *Store) DenyAppeal(
	ctx context.Context, id int64, reviewerID uuid.UUID, reviewerName, comment string,
) (bool, error) {
	return s.review(ctx, id, enum.AppealStatusDenied, reviewerID, reviewerName, comment)
}

func (s *Store) review(
	_ context.Context, id int64, status enum.AppealStatus,
	reviewerID uuid.UUID, reviewerName, comment string,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appeals[id]
	if !ok || a.Status != enum.AppealStatusPending {
		return false, nil
	}

	if status == enum.AppealStatusApproved {
		a.Approve(reviewerID, reviewerName, comment, time.Now())
	} else {
		a.Deny(reviewerID, reviewerName, comment, time.Now())
	}

	if err := s.saveAppeals(); err != nil {
		return false, err
	}

	return true, nil
}

func sortPunishments(list []*types.Punishment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].IssuedAt != list[j].IssuedAt {
			return list[i].IssuedAt > list[j].IssuedAt
		}

		return list[i].ID > list[j].ID
	})
}

func sortReports(list []*types.Report) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}

		return list[i].ID > list[j].ID
	})
}

func sortAppeals(list []*types.Appeal) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}

		return list[i].ID > list[j].ID
	})
}
