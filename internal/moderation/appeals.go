package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/setup/config"
	"github.com/tribunal-mc/tribunal/internal/storage"
	"github.com/tribunal-mc/tribunal/pkg/utils"
	"go.uber.org/zap"
)

// Appeal submission precondition failures. All are routine negative
// outcomes the presentation layer translates into player-facing text.
var (
	ErrPunishmentNotFound  = errors.New("punishment does not exist")
	ErrNotOwnPunishment    = errors.New("punishment targets another player")
	ErrPunishmentInactive  = errors.New("punishment is not active")
	ErrAppealPending       = errors.New("punishment already has a pending appeal")
	ErrAppealQuotaExceeded = errors.New("appeal quota for the day exhausted")
)

// ApprovalResult reports the outcome of an appeal approval. Approved is
// the appeal's own transition; PunishmentRevoked is false when the
// underlying punishment was already inactive by other means, which makes
// the approval a partial success the caller must surface.
type ApprovalResult struct {
	Approved          bool
	PunishmentRevoked bool
}

// AppealService implements the appeal sub-lifecycle: guarded submission,
// and single-fire review where approval revokes the punishment.
type AppealService struct {
	store     storage.Store
	engine    *Engine
	notifier  Notifier
	messages  *Messenger
	maxPerDay int
	logger    *zap.Logger
}

// NewAppealService wires the appeal sub-lifecycle.
func NewAppealService(
	store storage.Store, engine *Engine, notifier Notifier,
	messages *Messenger, cfg *config.Appeals, logger *zap.Logger,
) *AppealService {
	return &AppealService{
		store:     store,
		engine:    engine,
		notifier:  notifier,
		messages:  messages,
		maxPerDay: cfg.MaxPerDay,
		logger:    logger.Named("appeals"),
	}
}

// Submit files an appeal for the punishment and returns its id. The
// punishment must exist, target the appellant, and be enforceable; the
// punishment must have no other pending appeal; and the appellant must
// be under their rolling 24-hour quota.
func (s *AppealService) Submit(
	ctx context.Context, punishmentID int64, playerID uuid.UUID, playerName, reason, evidence string,
) (int64, error) {
	punishment, err := s.store.GetPunishment(ctx, punishmentID)
	if err != nil {
		return 0, err
	}

	if punishment == nil {
		return 0, ErrPunishmentNotFound
	}

	if punishment.TargetID != playerID {
		return 0, ErrNotOwnPunishment
	}

	if !punishment.Enforceable(time.Now()) {
		return 0, ErrPunishmentInactive
	}

	pending, err := s.store.PendingAppealForPunishment(ctx, punishmentID)
	if err != nil {
		return 0, err
	}

	if pending != nil {
		return 0, ErrAppealPending
	}

	if err := s.checkQuota(ctx, playerID); err != nil {
		return 0, err
	}

	id, err := s.store.NextAppealID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate appeal id: %w", err)
	}

	appeal := types.NewAppeal(id, punishmentID, playerID, playerName, reason, evidence, time.Now())

	if err := s.store.AddAppeal(ctx, appeal); err != nil {
		s.logger.Error("Failed to persist appeal",
			zap.Int64("id", id),
			zap.Int64("punishment", punishmentID),
			zap.String("player", playerName),
			zap.Error(err))

		return 0, fmt.Errorf("failed to persist appeal: %w", err)
	}

	s.notifier.NotifyPlayer(playerID, utils.FormatMessage(s.messages.cfg.AppealFiled, map[string]string{
		"id": strconv.FormatInt(punishmentID, 10),
	}))

	s.logger.Info("Filed appeal",
		zap.Int64("id", id),
		zap.Int64("punishment", punishmentID),
		zap.String("player", playerName))

	return id, nil
}

func (s *AppealService) checkQuota(ctx context.Context, playerID uuid.UUID) error {
	appeals, err := s.store.PlayerAppeals(ctx, playerID)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-24 * time.Hour).UnixMilli()
	recent := 0

	for _, a := range appeals {
		if a.CreatedAt >= cutoff {
			recent++
		}
	}

	if recent >= s.maxPerDay {
		return ErrAppealQuotaExceeded
	}

	return nil
}

// Approve moves a pending appeal to APPROVED and revokes the punishment
// it targets. When the punishment was already inactive, the appeal still
// transitions but the result reports the revoke as failed.
func (s *AppealService) Approve(
	ctx context.Context, id int64, reviewerID uuid.UUID, reviewerName, comment string,
) (ApprovalResult, error) {
	appeal, err := s.store.GetAppeal(ctx, id)
	if err != nil {
		return ApprovalResult{}, err
	}

	if appeal == nil {
		return ApprovalResult{}, nil
	}

	approved, err := s.store.ApproveAppeal(ctx, id, reviewerID, reviewerName, comment)
	if err != nil {
		return ApprovalResult{}, err
	}

	if !approved {
		return ApprovalResult{}, nil
	}

	revoked, err := s.engine.Revoke(ctx, appeal.PunishmentID, reviewerID, reviewerName)
	if err != nil && !errors.Is(err, ErrVetoed) {
		return ApprovalResult{Approved: true}, err
	}

	if !revoked {
		s.logger.Warn("Approved appeal but punishment was already inactive",
			zap.Int64("appeal", id),
			zap.Int64("punishment", appeal.PunishmentID))
	}

	s.notifyResult(appeal, "approved")

	s.logger.Info("Approved appeal",
		zap.Int64("id", id),
		zap.Int64("punishment", appeal.PunishmentID),
		zap.String("reviewer", reviewerName),
		zap.Bool("punishmentRevoked", revoked))

	return ApprovalResult{Approved: true, PunishmentRevoked: revoked}, nil
}

// Deny moves a pending appeal to DENIED. Returns false when the appeal
// is absent or not pending.
func (s *AppealService) Deny(
	ctx context.Context, id int64, reviewerID uuid.UUID, reviewerName, comment string,
) (bool, error) {
	appeal, err := s.store.GetAppeal(ctx, id)
	if err != nil {
		return false, err
	}

	if appeal == nil {
		return false, nil
	}

	denied, err := s.store.DenyAppeal(ctx, id, reviewerID, reviewerName, comment)
	if err != nil {
		return false, err
	}

	if denied {
		s.notifyResult(appeal, "denied")

		s.logger.Info("Denied appeal",
			zap.Int64("id", id),
			zap.Int64("punishment", appeal.PunishmentID),
			zap.String("reviewer", reviewerName))
	}

	return denied, nil
}

func (s *AppealService) notifyResult(appeal *types.Appeal, result string) {
	s.notifier.NotifyPlayer(appeal.PlayerID, utils.FormatMessage(s.messages.cfg.AppealResult, map[string]string{
		"id":     strconv.FormatInt(appeal.PunishmentID, 10),
		"result": result,
	}))
}

// Get returns the appeal with the given id, or nil.
func (s *AppealService) Get(ctx context.Context, id int64) (*types.Appeal, error) {
	return s.store.GetAppeal(ctx, id)
}

// ForPlayer returns appeals submitted by the player, newest first.
func (s *AppealService) ForPlayer(ctx context.Context, playerID uuid.UUID) ([]*types.Appeal, error) {
	return s.store.PlayerAppeals(ctx, playerID)
}

// Pending returns all appeals awaiting review, newest first.
func (s *AppealService) Pending(ctx context.Context) ([]*types.Appeal, error) {
	return s.store.PendingAppeals(ctx)
}
