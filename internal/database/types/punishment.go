package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
)

// PermanentDuration is the sentinel for punishments that never expire.
// It is stored verbatim in both the duration and expiry fields so records
// round-trip identically through every backend.
const PermanentDuration int64 = -1

// Punishment represents a single punishment record issued against a player.
// Timestamps are unix milliseconds.
type Punishment struct {
	ID          int64               `bun:",pk"                    json:"id"`
	TargetID    uuid.UUID           `bun:",notnull,type:uuid"     json:"targetId"`    // Player being punished
	TargetName  string              `bun:",notnull"               json:"targetName"`  // Display name at time of issue
	IssuerID    uuid.UUID           `bun:",notnull,type:uuid"     json:"issuerId"`    // Staff member who issued it
	IssuerName  string              `bun:",notnull"               json:"issuerName"`  // Display name at time of issue
	Type        enum.PunishmentType `bun:",notnull"               json:"type"`
	Reason      string              `bun:",notnull"               json:"reason"`
	IssuedAt    int64               `bun:",notnull"               json:"issuedAt"`
	Duration    int64               `bun:",notnull"               json:"duration"`  // Milliseconds, or PermanentDuration
	ExpiresAt   int64               `bun:",notnull"               json:"expiresAt"` // IssuedAt + Duration, or PermanentDuration
	Active      bool                `bun:",notnull"               json:"active"`
	ProofLink   string              `bun:",nullzero"              json:"proofLink,omitempty"` // Evidence reference
	Level       int                 `bun:",notnull"               json:"level"`               // Escalation level at time of issue, 1-based
	AutoExpired bool                `bun:",notnull,default:false" json:"autoExpired,omitempty"`
	RevokerID   uuid.UUID           `bun:",nullzero,type:uuid"    json:"revokerId,omitempty"`
	RevokerName string              `bun:",nullzero"              json:"revokerName,omitempty"`
	RevokedAt   int64               `bun:",nullzero"              json:"revokedAt,omitempty"`
}

// NewPunishment constructs an active punishment issued at the given time.
// A negative duration is normalized to PermanentDuration.
func NewPunishment(
	id int64, targetID uuid.UUID, targetName string, issuerID uuid.UUID, issuerName string,
	punishmentType enum.PunishmentType, reason string, durationMillis int64, proofLink string,
	level int, issuedAt time.Time,
) *Punishment {
	issued := issuedAt.UnixMilli()

	expiry := PermanentDuration
	if durationMillis >= 0 {
		expiry = issued + durationMillis
	} else {
		durationMillis = PermanentDuration
	}

	return &Punishment{
		ID:         id,
		TargetID:   targetID,
		TargetName: targetName,
		IssuerID:   issuerID,
		IssuerName: issuerName,
		Type:       punishmentType,
		Reason:     reason,
		IssuedAt:   issued,
		Duration:   durationMillis,
		ExpiresAt:  expiry,
		Active:     true,
		ProofLink:  proofLink,
		Level:      level,
	}
}

// Permanent reports whether the punishment never expires on its own.
func (p *Punishment) Permanent() bool {
	return p.ExpiresAt == PermanentDuration
}

// Expired reports whether the punishment's expiry time has passed.
// This is a derived fact independent of the stored active flag.
func (p *Punishment) Expired(now time.Time) bool {
	return !p.Permanent() && p.ExpiresAt <= now.UnixMilli()
}

// Enforceable reports whether the punishment should still be applied to the
// target: it must be active and not time-expired.
func (p *Punishment) Enforceable(now time.Time) bool {
	return p.Active && !p.Expired(now)
}

// Revoked reports whether the punishment was explicitly revoked by staff.
func (p *Punishment) Revoked() bool {
	return p.RevokerID != uuid.Nil
}

// TimeRemaining returns the time until expiry, zero if already expired,
// or -1 for permanent punishments.
func (p *Punishment) TimeRemaining(now time.Time) time.Duration {
	if p.Permanent() {
		return -1
	}

	remaining := time.Duration(p.ExpiresAt-now.UnixMilli()) * time.Millisecond
	if remaining < 0 {
		return 0
	}

	return remaining
}

// Revoke marks the punishment inactive and stamps the revocation fields.
// The transition is one-way; records never return to active.
func (p *Punishment) Revoke(revokerID uuid.UUID, revokerName string, at time.Time) {
	p.Active = false
	p.RevokerID = revokerID
	p.RevokerName = revokerName
	p.RevokedAt = at.UnixMilli()
}
