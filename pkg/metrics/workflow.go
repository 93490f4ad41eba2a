package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics records outcomes of named workflow runs, whether started
// from the CLI or by the delta sync scheduler.
type WorkflowMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewWorkflowMetrics registers the workflow metrics on reg. A nil registerer
// yields a no-op recorder.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_duration_seconds",
		Help:    "Duration of workflow runs in seconds.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"workflow"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_success_total",
		Help: "Successful workflow runs.",
	}, []string{"workflow"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_failure_total",
		Help: "Failed workflow runs.",
	}, []string{"workflow"})
	reg.MustRegister(duration, success, failure)
	return &WorkflowMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

func (w *WorkflowMetrics) ObserveDuration(workflow string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(workflow)).Observe(duration.Seconds())
}

func (w *WorkflowMetrics) IncSuccess(workflow string) {
	if w == nil || w.success == nil {
		return
	}
	w.success.WithLabelValues(normalizeLabel(workflow)).Inc()
}

func (w *WorkflowMetrics) IncFailure(workflow string) {
	if w == nil || w.failure == nil {
		return
	}
	w.failure.WithLabelValues(normalizeLabel(workflow)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
