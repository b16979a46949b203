package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

// ErrCycleSkipped is returned by RunOnce when another replica holds the lock.
var ErrCycleSkipped = errors.New("cron cycle skipped: lock held elsewhere")

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval, on at most one replica at a time.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Lock == nil:
		return nil, fmt.Errorf("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes a cycle immediately and then waits a full interval after each one
// finishes, so a slow cycle never overlaps the next. It returns when ctx ends.
func (s *Service) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		switch err := s.RunOnce(ctx); {
		case errors.Is(err, ErrCycleSkipped):
			s.logg.Info(ctx, "cron.cycle_skipped")
		case err != nil && ctx.Err() == nil:
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		timer.Reset(s.interval)
	}
}

// RunOnce takes the lock, runs each job in registration order and releases the lock.
// Every job runs even when an earlier one fails; the failures are combined.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	jobs := s.registry.Jobs()
	if !locked {
		for _, job := range jobs {
			s.metrics.IncSkipped(job.Name())
		}
		return ErrCycleSkipped
	}
	defer func() {
		// Release even when shutdown cancelled ctx mid-cycle.
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	var errs error
	for _, job := range jobs {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		if err := s.runJob(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		elapsed := time.Since(start)
		s.metrics.ObserveDuration(name, elapsed)
		ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.metrics.IncFailure(name)
			s.logg.Error(ctx, "cron.job_failed", err)
			return
		}
		s.metrics.IncSuccess(name)
		s.logg.Info(ctx, "cron.job_done")
	}()
	return job.Run(ctx)
}
