package moderation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/storage"
)

// LevelTracker computes a player's next escalation level for a
// (type, reason) pair from their stored history.
type LevelTracker struct {
	store        storage.PunishmentStore
	countRevoked bool
}

// NewLevelTracker creates a tracker. When countRevoked is true, punishments
// that were later revoked still count toward escalation.
func NewLevelTracker(store storage.PunishmentStore, countRevoked bool) *LevelTracker {
	return &LevelTracker{
		store:        store,
		countRevoked: countRevoked,
	}
}

// NextLevel returns the 1-based level the player's next punishment of this
// (type, reason) would carry. The count-then-issue sequence is not atomic;
// callers must serialize issuance per player to keep levels consistent.
func (t *LevelTracker) NextLevel(
	ctx context.Context, playerID uuid.UUID, punishmentType enum.PunishmentType, reason string,
) (int, error) {
	count, err := t.store.CountHistory(ctx, playerID, punishmentType, reason, t.countRevoked)
	if err != nil {
		return 0, fmt.Errorf("failed to count punishment history: %w", err)
	}

	return count + 1, nil
}
