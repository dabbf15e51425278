package moderation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types"
)

// ErrVetoed is returned when a pre-commit hook cancels an operation.
// It is a policy outcome, not a failure; callers present it differently
// from persistence errors.
var ErrVetoed = errors.New("operation vetoed by policy hook")

// Hook observes and can veto punishment lifecycle transitions. Pre hooks
// run before the durable write and may return ErrVetoed to cancel; post
// hooks run after the write and are informational only.
type Hook interface {
	// PrePunish runs before a punishment is persisted. Returning an error
	// aborts the issue; ErrVetoed marks it as a policy cancel.
	PrePunish(ctx context.Context, punishment *types.Punishment) error

	// PostPunish runs after a punishment has been persisted.
	PostPunish(ctx context.Context, punishment *types.Punishment)

	// PreRevoke runs before a revocation is persisted.
	PreRevoke(ctx context.Context, punishment *types.Punishment, revokerID uuid.UUID, revokerName string) error

	// PostRevoke runs after a revocation has been persisted. The record
	// carries the stamped revocation fields.
	PostRevoke(ctx context.Context, punishment *types.Punishment)
}

// NopHook implements Hook with no behavior. Embed it to implement only
// the transitions a subscriber cares about.
type NopHook struct{}

func (NopHook) PrePunish(context.Context, *types.Punishment) error { return nil }

func (NopHook) PostPunish(context.Context, *types.Punishment) {}

func (NopHook) PreRevoke(context.Context, *types.Punishment, uuid.UUID, string) error { return nil }

func (NopHook) PostRevoke(context.Context, *types.Punishment) {}
