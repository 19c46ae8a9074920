package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// runTimeout bounds a single scheduled run.
const runTimeout = 30 * time.Minute

// Scheduler refreshes a set of targets on a cron schedule.
type Scheduler struct {
	pipeline *Pipeline
	targets  []Target
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewScheduler validates schedule, a standard five-field cron expression or
// descriptor such as "@daily", and returns a stopped scheduler.
func NewScheduler(p *Pipeline, schedule string, targets []Target, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("ingest: schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		pipeline: p,
		targets:  targets,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}, nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for a
// running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("ingest: add schedule: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler: started", slog.String("schedule", s.schedule))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler: stopped")
	return nil
}

// RunOnce refreshes every target, logging failures.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	for _, t := range s.targets {
		res, err := s.pipeline.Refresh(ctx, t)
		if err != nil {
			s.logger.Error("scheduler: reindex failed",
				slog.String("collection", t.Collection),
				slog.String("error", err.Error()))
			continue
		}
		if !res.Skipped {
			s.logger.Info("scheduler: reindexed",
				slog.String("collection", res.Collection),
				slog.Int("chunks", res.Chunks))
		}
	}
}
