// internal/app/system/tasks/tasks.go

// Package tasks runs the engine's periodic jobs: the batch-matching
// sweep, the mission deadline check, and reward outbox dispatch.
package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one periodic unit of work. Every job must be idempotent: the
// scheduler guarantees only that it runs at least once per interval.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives jobs on their intervals using cron's @every spec.
type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		c:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log: logger,
	}
}

// Add registers a job. Overlapping runs of the same job are skipped,
// so a slow sweep never stacks on itself.
func (s *Scheduler) Add(job Job) error {
	timeout := job.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	_, err := s.c.AddFunc("@every "+job.Interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := job.Run(ctx); err != nil {
			s.log.Error("scheduled job failed",
				zap.String("job", job.Name),
				zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.log.Info("scheduled job registered",
		zap.String("job", job.Name),
		zap.Duration("interval", job.Interval))
	return nil
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() { s.c.Start() }

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
	s.log.Info("scheduler stopped")
}
