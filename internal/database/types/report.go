package types

import (
	"time"

	"github.com/google/uuid"
)

// Report represents a player-submitted report against another player.
// Timestamps are unix milliseconds.
type Report struct {
	ID                 int64     `bun:",pk"                json:"id"`
	ReporterID         uuid.UUID `bun:",notnull,type:uuid" json:"reporterId"`
	ReporterName       string    `bun:",notnull"           json:"reporterName"`
	ReportedID         uuid.UUID `bun:",notnull,type:uuid" json:"reportedId"`
	ReportedName       string    `bun:",notnull"           json:"reportedName"`
	Reason             string    `bun:",notnull"           json:"reason"`
	CreatedAt          int64     `bun:",notnull"           json:"createdAt"`
	Processed          bool      `bun:",notnull"           json:"processed"`
	ProcessorID        uuid.UUID `bun:",nullzero,type:uuid" json:"processorId,omitempty"`
	ProcessorName      string    `bun:",nullzero"           json:"processorName,omitempty"`
	ProcessedAt        int64     `bun:",nullzero"           json:"processedAt,omitempty"`
	ResultPunishmentID int64     `bun:",nullzero"           json:"resultPunishmentId,omitempty"` // Punishment issued as a result, if any
}

// NewReport constructs an unprocessed report created at the given time.
func NewReport(
	id int64, reporterID uuid.UUID, reporterName string,
	reportedID uuid.UUID, reportedName, reason string, createdAt time.Time,
) *Report {
	return &Report{
		ID:           id,
		ReporterID:   reporterID,
		ReporterName: reporterName,
		ReportedID:   reportedID,
		ReportedName: reportedName,
		Reason:       reason,
		CreatedAt:    createdAt.UnixMilli(),
	}
}

// MarkProcessed stamps the processing fields. Processing is single-fire;
// callers must guard on Processed before mutating.
func (r *Report) MarkProcessed(processorID uuid.UUID, processorName string, resultPunishmentID int64, at time.Time) {
	r.Processed = true
	r.ProcessorID = processorID
	r.ProcessorName = processorName
	r.ProcessedAt = at.UnixMilli()
	r.ResultPunishmentID = resultPunishmentID
}
