package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const defaultInterval = 15 * time.Minute

// Runner executes one workflow with logging and metrics.
type Runner interface {
	Execute(ctx context.Context, wf workflows.Workflow) error
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Runner   Runner
	Registry *workflows.Registry
	Lock     Lock
	Interval time.Duration
}

// Service executes the registered workflows on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	runner   Runner
	registry *workflows.Registry
	lock     Lock
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("runner required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		runner:   params.Runner,
		registry: params.Registry,
		lock:     params.Lock,
		interval: interval,
	}, nil
}

// Run starts the cron loop until the context is canceled. The first cycle
// runs immediately.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunOnce runs one cycle under the lock. Every workflow runs even when an
// earlier one fails; the failures come back combined.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another sync is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	var errs error
	for _, wf := range s.registry.Workflows() {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		jobCtx := s.logg.WithField(ctx, "event", "cron.job")
		if err := s.runner.Execute(jobCtx, wf); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", wf.Name(), err))
		}
	}
	s.logg.Info(ctx, "scheduled run complete")
	return errs
}
