// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/nestforge/missionhub/internal/app/engine"
	"github.com/nestforge/missionhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// BatchMatchingJob flushes pending joins for every auto-match mission
// whose formation deadline has passed. Idempotent: a mission with no
// pending entries is a no-op.
func BatchMatchingJob(svc *engine.Service, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "batch-matching",
		Interval: interval,
		Timeout:  timeouts.Batch(),
		Run: func(ctx context.Context) error {
			matched, err := svc.RunBatchMatching(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if matched > 0 {
				logger.Info("batch matching placed users", zap.Int("matched", matched))
			}
			return nil
		},
	}
}

// DeadlineCheckJob fails active groups whose mission end date has
// passed without the completion criterion being met.
func DeadlineCheckJob(svc *engine.Service, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "mission-deadline-check",
		Interval: interval,
		Timeout:  timeouts.Batch(),
		Run: func(ctx context.Context) error {
			failed, err := svc.CheckDeadlines(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if failed > 0 {
				logger.Info("groups failed at deadline", zap.Int("count", failed))
			}
			return nil
		},
	}
}

// RewardDispatchJob pushes undelivered reward events to the configured
// sink; at-least-once with the consumer deduping on event id.
func RewardDispatchJob(svc *engine.Service, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "reward-dispatch",
		Interval: interval,
		Timeout:  timeouts.Batch(),
		Run: func(ctx context.Context) error {
			sent, err := svc.DispatchRewards(ctx, 100)
			if err != nil {
				return err
			}
			if sent > 0 {
				logger.Info("dispatched reward events", zap.Int("count", sent))
			}
			return nil
		},
	}
}
