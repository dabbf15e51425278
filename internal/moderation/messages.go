package moderation

import (
	"strconv"
	"time"

	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/setup/config"
	"github.com/tribunal-mc/tribunal/pkg/utils"
)

// Messenger renders player-facing messages from the configured templates.
type Messenger struct {
	cfg *config.Messages
}

// NewMessenger creates a Messenger over the configured templates.
func NewMessenger(cfg *config.Messages) *Messenger {
	return &Messenger{cfg: cfg}
}

// IssueMessage renders the notification shown to a player when the
// punishment is issued. For bans and kicks this doubles as the disconnect
// screen text.
func (m *Messenger) IssueMessage(p *types.Punishment) string {
	var template string

	switch p.Type {
	case enum.PunishmentTypeWarn:
		template = m.cfg.Warned
	case enum.PunishmentTypeMute:
		template = m.cfg.Muted
	case enum.PunishmentTypeKick:
		template = m.cfg.Kicked
	case enum.PunishmentTypeBan:
		template = m.cfg.Banned
	}

	return utils.FormatMessage(template, m.values(p))
}

// RevokeMessage renders the notification shown to a player when their
// punishment is revoked.
func (m *Messenger) RevokeMessage(p *types.Punishment) string {
	template := m.cfg.BanRevoked
	if p.Type == enum.PunishmentTypeMute {
		template = m.cfg.MuteRevoked
	}

	return utils.FormatMessage(template, m.values(p))
}

// ExpireMessage renders the notification shown to a player when their
// punishment lapses on its own. Empty for types with no expiry message.
func (m *Messenger) ExpireMessage(p *types.Punishment) string {
	if p.Type != enum.PunishmentTypeMute {
		return ""
	}

	return utils.FormatMessage(m.cfg.MuteExpired, m.values(p))
}

// StaffIssueMessage renders the broadcast sent to privileged observers
// when a punishment is issued.
func (m *Messenger) StaffIssueMessage(p *types.Punishment) string {
	return utils.FormatMessage(
		"{issuer} issued {type} #{id} against {target} for {reason} ({duration})",
		m.values(p),
	)
}

// StaffRevokeMessage renders the broadcast sent to privileged observers
// when a punishment is revoked.
func (m *Messenger) StaffRevokeMessage(p *types.Punishment) string {
	return utils.FormatMessage(
		"{revoker} revoked {type} #{id} against {target}",
		m.values(p),
	)
}

func (m *Messenger) values(p *types.Punishment) map[string]string {
	duration := "permanent"
	if p.Duration >= 0 {
		duration = utils.FormatDuration(time.Duration(p.Duration) * time.Millisecond)
	}

	return map[string]string{
		"id":       strconv.FormatInt(p.ID, 10),
		"type":     p.Type.DisplayName(),
		"target":   p.TargetName,
		"issuer":   p.IssuerName,
		"revoker":  p.RevokerName,
		"reason":   p.Reason,
		"duration": duration,
	}
}
