// Package moderation implements the punishment lifecycle: escalation
// level computation, duration resolution, issuing and revoking
// punishments, and the report and appeal sub-lifecycles.
package moderation

import (
	"time"

	"github.com/tribunal-mc/tribunal/internal/database/types"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/setup/config"
)

// DurationResolver maps (type, reason, level) to a punishment duration
// from the configured ladders. Lookups never fail; missing entries fall
// back to the configured default so issuance cannot hard-fail on config.
type DurationResolver struct {
	ladders  map[string]map[string][]int64
	reasons  map[string][]string
	maxLevel int
	fallback int64
}

// NewDurationResolver normalizes the configured tables once so lookups
// are plain map reads.
func NewDurationResolver(cfg *config.Punishments) *DurationResolver {
	ladders := make(map[string]map[string][]int64, len(cfg.Durations))

	for typeKey, perReason := range cfg.Durations {
		normalized := make(map[string][]int64, len(perReason))

		for reason, minutes := range perReason {
			ladder := make([]int64, len(minutes))
			for i, m := range minutes {
				ladder[i] = minutesToMillis(m)
			}

			normalized[config.NormalizeKey(reason)] = ladder
		}

		ladders[config.NormalizeKey(typeKey)] = normalized
	}

	reasons := make(map[string][]string, len(cfg.Reasons))
	for typeKey, list := range cfg.Reasons {
		reasons[config.NormalizeKey(typeKey)] = list
	}

	return &DurationResolver{
		ladders:  ladders,
		reasons:  reasons,
		maxLevel: cfg.MaxLevel,
		fallback: minutesToMillis(cfg.DefaultDurationMinutes),
	}
}

// Resolve returns the duration in milliseconds for the given type, reason,
// and escalation level, or types.PermanentDuration. Levels above the
// configured maximum reuse the maximum's duration; the true level is still
// recorded on the punishment itself.
func (r *DurationResolver) Resolve(punishmentType enum.PunishmentType, reason string, level int) int64 {
	if level < 1 {
		level = 1
	}

	if level > r.maxLevel {
		level = r.maxLevel
	}

	perReason, ok := r.ladders[config.NormalizeKey(punishmentType.String())]
	if !ok {
		return r.fallback
	}

	ladder, ok := perReason[config.NormalizeKey(reason)]
	if !ok || len(ladder) == 0 {
		return r.fallback
	}

	if level > len(ladder) {
		level = len(ladder)
	}

	return ladder[level-1]
}

// KnownReasons returns the configured reason catalog for the type.
// Custom reasons outside the catalog are still accepted at issue time.
func (r *DurationResolver) KnownReasons(punishmentType enum.PunishmentType) []string {
	return r.reasons[config.NormalizeKey(punishmentType.String())]
}

func minutesToMillis(minutes int) int64 {
	if minutes < 0 {
		return types.PermanentDuration
	}

	return int64(minutes) * int64(time.Minute/time.Millisecond)
}
