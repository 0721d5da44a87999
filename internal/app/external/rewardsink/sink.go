// internal/app/external/rewardsink/sink.go

// Package rewardsink hands reward-due events to whatever consumes them.
// The engine never talks to mint or token services directly: settlement
// writes events to the outbox and the dispatch job pushes them through
// a Sink. Consumers dedupe on EventID, so delivery is at least once.
package rewardsink

import (
	"context"

	"github.com/nestforge/missionhub/internal/domain/models"
)

// Sink delivers one reward event to the external reward/mint pipeline.
type Sink interface {
	Emit(ctx context.Context, ev models.RewardEvent) error
}

// Discard drops events; used when no downstream is configured (the
// outbox still holds every event for a later backfill) and in tests.
type Discard struct{}

func (Discard) Emit(ctx context.Context, _ models.RewardEvent) error { return nil }
