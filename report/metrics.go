package report

import (
	"context"
	"fmt"

	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace of run metrics.
	Namespace = "e2e"

	LabelProject     = "project"
	LabelStatus      = "status"
	LabelContentType = "content_type"
)

// Metrics counts results and attachments on its own registry so a run can
// export them to a node-exporter textfile when it ends.
type Metrics struct {
	registry *prometheus.Registry

	tests       *prometheus.CounterVec
	retries     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	attachments *prometheus.CounterVec
	lastRun     prometheus.Gauge
}

// NewMetrics creates a Metrics sink with a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		tests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tests_total",
				Help:      "Completed test attempts by project and status",
			},
			[]string{LabelProject, LabelStatus},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "retries_total",
				Help:      "Attempts beyond the first by project",
			},
			[]string{LabelProject},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "test_duration_seconds",
				Help:      "Duration of test attempts in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 240, 480},
			},
			[]string{LabelProject},
		),
		attachments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "attachments_total",
				Help:      "Attachments reported by content type",
			},
			[]string{LabelContentType},
		),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_completion_timestamp_seconds",
			Help:      "Unix time the last test attempt completed",
		}),
	}
}

func (m *Metrics) Name() string { return "metrics" }

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Annotate(ctx context.Context, ref testctx.Ref, annotations []testctx.Annotation) error {
	return nil
}

func (m *Metrics) Attach(ctx context.Context, ref testctx.Ref, a testctx.Attachment) error {
	m.attachments.WithLabelValues(a.ContentType).Inc()
	return nil
}

func (m *Metrics) Complete(ctx context.Context, result Result) error {
	project := result.Ref.Project
	m.tests.WithLabelValues(project, string(result.Status)).Inc()
	if result.Ref.Attempt > 1 {
		m.retries.WithLabelValues(project).Inc()
	}
	if d := result.Duration(); d > 0 {
		m.duration.WithLabelValues(project).Observe(d.Seconds())
	}
	if !result.CompletedAt.IsZero() {
		m.lastRun.Set(float64(result.CompletedAt.Unix()))
	}
	return nil
}

// WriteTextfile writes the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
