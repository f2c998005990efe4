package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"BriefScanner/internal/ports"
)

// Entry binds a job to the driver that triggers it.
type Entry struct {
	Driver ports.Scheduler
	Job    Job
}

// Scheduler wires cron-like drivers with the pipeline use case.
type Scheduler struct {
	entries  []Entry
	pipeline *Pipeline
	loc      *time.Location
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs. Trigger times
// are converted to loc before they reach the pipeline.
func NewScheduler(pipeline *Pipeline, loc *time.Location, logger *slog.Logger, entries ...Entry) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{entries: entries, pipeline: pipeline, loc: loc, logger: logger}
}

// Start registers every entry with its driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.pipeline == nil {
		return nil
	}

	for _, entry := range s.entries {
		if entry.Driver == nil || entry.Job.Source == nil {
			continue
		}
		job := entry.Job
		run := func(trigger time.Time) {
			result, err := s.pipeline.Run(ctx, job, trigger.In(s.loc))
			if err != nil {
				s.logger.Error("scheduled run failed", "source", job.Source.Name(), "error", err)
				return
			}
			s.logger.Info("scheduled run done", "source", result.Source, "run_id", result.RunID, "status", result.Status)
		}
		if err := entry.Driver.Start(ctx, run); err != nil {
			return err
		}
		s.logger.Info("scheduled", "source", job.Source.Name())
	}
	return nil
}

// Stop gracefully tears down every driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	var errs []error
	for _, entry := range s.entries {
		if entry.Driver == nil {
			continue
		}
		if err := entry.Driver.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
