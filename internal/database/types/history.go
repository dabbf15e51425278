package types

import (
	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
)

// HistoryEntry is a row in the per-player punishment history index used for
// escalation level counting. The reason is stored lowercased so counts are
// case-insensitive regardless of how the reason was typed at issue time.
type HistoryEntry struct {
	ID           int64               `bun:",pk,autoincrement"`
	PlayerID     uuid.UUID           `bun:",notnull,type:uuid"`
	PunishmentID int64               `bun:",notnull"`
	Type         enum.PunishmentType `bun:",notnull"`
	Reason       string              `bun:",notnull"`
	Level        int                 `bun:",notnull"`
}
