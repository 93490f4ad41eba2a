package workflows

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/metrics"
)

// Runner executes registered workflows with logging and metrics.
type Runner struct {
	logg     *logger.Logger
	registry *Registry
	metrics  *metrics.WorkflowMetrics
	now      func() time.Time
}

// RunnerParams configure a Runner.
type RunnerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Metrics  *metrics.WorkflowMetrics
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	return &Runner{
		logg:     params.Logger,
		registry: params.Registry,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

// Run executes the workflow registered under name.
func (r *Runner) Run(ctx context.Context, name string) error {
	wf, ok := r.registry.Lookup(name)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown workflow %q", name)).
			WithDetails(map[string]any{"available": r.registry.Names()})
	}
	return r.Execute(ctx, wf)
}

// Execute runs wf and records its outcome.
func (r *Runner) Execute(ctx context.Context, wf Workflow) error {
	ctx = r.logg.WithWorkflow(ctx, wf.Name())
	r.logg.Info(ctx, "workflow start")

	start := r.now()
	err := wf.Run(ctx)
	duration := r.now().Sub(start)

	r.metrics.ObserveDuration(wf.Name(), duration)
	ctx = r.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	if err != nil {
		r.logg.Error(ctx, "workflow failed", err)
		r.metrics.IncFailure(wf.Name())
		return err
	}
	r.logg.Info(ctx, "workflow completed")
	r.metrics.IncSuccess(wf.Name())
	return nil
}

// Registry exposes the registry the runner resolves names against.
func (r *Runner) Registry() *Registry {
	return r.registry
}
