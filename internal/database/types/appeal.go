package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
)

// Appeal represents a player's request to overturn a punishment.
// Timestamps are unix milliseconds.
type Appeal struct {
	ID            int64             `bun:",pk"                json:"id"`
	PunishmentID  int64             `bun:",notnull"           json:"punishmentId"` // Punishment being appealed
	PlayerID      uuid.UUID         `bun:",notnull,type:uuid" json:"playerId"`
	PlayerName    string            `bun:",notnull"           json:"playerName"`
	Reason        string            `bun:",notnull"           json:"reason"`
	Evidence      string            `bun:",nullzero"          json:"evidence,omitempty"`
	CreatedAt     int64             `bun:",notnull"           json:"createdAt"`
	Status        enum.AppealStatus `bun:",notnull"           json:"status"`
	ReviewerID    uuid.UUID         `bun:",nullzero,type:uuid" json:"reviewerId,omitempty"`
	ReviewerName  string            `bun:",nullzero"           json:"reviewerName,omitempty"`
	ReviewedAt    int64             `bun:",nullzero"           json:"reviewedAt,omitempty"`
	ReviewComment string            `bun:",nullzero"           json:"reviewComment,omitempty"`
}

// NewAppeal constructs a pending appeal created at the given time.
func NewAppeal(
	id, punishmentID int64, playerID uuid.UUID, playerName, reason, evidence string, createdAt time.Time,
) *Appeal {
	return &Appeal{
		ID:           id,
		PunishmentID: punishmentID,
		PlayerID:     playerID,
		PlayerName:   playerName,
		Reason:       reason,
		Evidence:     evidence,
		CreatedAt:    createdAt.UnixMilli(),
		Status:       enum.AppealStatusPending,
	}
}

// Approve stamps the review fields and moves the appeal to APPROVED.
// Review is single-fire; callers must guard on Status before mutating.
func (a *Appeal) Approve(reviewerID uuid.UUID, reviewerName, comment string, at time.Time) {
	a.Status = enum.AppealStatusApproved
	a.review(reviewerID, reviewerName, comment, at)
}

// Deny stamps the review fields and moves the appeal to DENIED.
func (a *Appeal) Deny(reviewerID uuid.UUID, reviewerName, comment string, at time.Time) {
	a.Status = enum.AppealStatusDenied
	a.review(reviewerID, reviewerName, comment, at)
}

func (a *Appeal) review(reviewerID uuid.UUID, reviewerName, comment string, at time.Time) {
	a.ReviewerID = reviewerID
	a.ReviewerName = reviewerName
	a.ReviewComment = comment
	a.ReviewedAt = at.UnixMilli()
}
