// Package report delivers annotations, attachments and results to the
// places runs are reported: the Xray report file, artifact storage, the
// run history database, the issue tracker and metrics. Delivery is best
// effort; a failing sink never fails a test.
package report

import (
	"context"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
)

// Result is the outcome of one execution.
type Result struct {
	Ref         testctx.Ref
	Status      testctx.Status
	Error       string
	Role        string
	StartedAt   time.Time
	CompletedAt time.Time
	Annotations []testctx.Annotation
	// Final is set when no further attempt of the case will run.
	Final bool
}

// Duration is how long the execution ran.
func (r Result) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Sink receives what a test reports.
type Sink interface {
	Annotate(ctx context.Context, ref testctx.Ref, annotations []testctx.Annotation) error
	Attach(ctx context.Context, ref testctx.Ref, attachment testctx.Attachment) error
	Complete(ctx context.Context, result Result) error
}

// Named is implemented by sinks that want a name in delivery logs.
type Named interface {
	Name() string
}

// Multi fans out to several sinks. Failures are logged and swallowed.
type Multi struct {
	sinks  []Sink
	logger logger.Logger
}

// NewMulti creates a fan-out sink.
func NewMulti(log logger.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: log}
}

// Add appends a sink.
func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

func (m *Multi) Annotate(ctx context.Context, ref testctx.Ref, annotations []testctx.Annotation) error {
	for _, s := range m.sinks {
		m.check(ctx, s, "annotate", ref, s.Annotate(ctx, ref, annotations))
	}
	return nil
}

func (m *Multi) Attach(ctx context.Context, ref testctx.Ref, attachment testctx.Attachment) error {
	for _, s := range m.sinks {
		m.check(ctx, s, "attach", ref, s.Attach(ctx, ref, attachment))
	}
	return nil
}

func (m *Multi) Complete(ctx context.Context, result Result) error {
	for _, s := range m.sinks {
		m.check(ctx, s, "complete", result.Ref, s.Complete(ctx, result))
	}
	return nil
}

func (m *Multi) check(ctx context.Context, s Sink, op string, ref testctx.Ref, err error) {
	if err == nil {
		return
	}
	name := "sink"
	if n, ok := s.(Named); ok {
		name = n.Name()
	}
	m.logger.Warn(ctx, "report delivery failed", logger.Fields{
		"sink":    name,
		"op":      op,
		"case_id": ref.CaseID,
		"project": ref.Project,
		"error":   err.Error(),
	})
}
