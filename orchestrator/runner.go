// Package orchestrator schedules cases across the browser matrix, one at a
// time, with a wall-clock bound and one retry per failed attempt.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/instrument"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/report"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
)

var (
	// ErrConcurrency is returned for any worker count other than one.
	ErrConcurrency = errors.New("only one worker is supported")

	ErrInvalidRetries = errors.New("retries must be 0 or 1")
)

// Result is the outcome of one attempt.
type Result = report.Result

// Config controls scheduling.
type Config struct {
	RunID       string        `mapstructure:"run_id"`
	Concurrency int           `mapstructure:"concurrency"`
	Retries     int           `mapstructure:"retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
	OutputDir   string        `mapstructure:"output_dir"`
	// KeepPassing keeps local artifacts of passing attempts.
	KeepPassing bool `mapstructure:"keep_passing"`
}

// DefaultConfig returns one worker, one retry and an eight minute bound.
func DefaultConfig() Config {
	return Config{
		Concurrency: 1,
		Retries:     1,
		Timeout:     8 * time.Minute,
		OutputDir:   "test-results",
	}
}

// Runner executes cases sequentially.
type Runner struct {
	launcher pagedriver.Launcher
	hook     *instrument.Hook
	sink     report.Sink
	config   Config
	logger   logger.Logger
}

// NewRunner creates a Runner. Zero values of Concurrency and Timeout take
// the defaults.
func NewRunner(launcher pagedriver.Launcher, hook *instrument.Hook, sink report.Sink, config Config, log logger.Logger) (*Runner, error) {
	if config.Concurrency == 0 {
		config.Concurrency = 1
	}
	if config.Concurrency != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrConcurrency, config.Concurrency)
	}
	if config.Retries < 0 || config.Retries > 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRetries, config.Retries)
	}
	if config.Timeout <= 0 {
		config.Timeout = 8 * time.Minute
	}
	if config.OutputDir == "" {
		config.OutputDir = "test-results"
	}
	return &Runner{
		launcher: launcher,
		hook:     hook,
		sink:     sink,
		config:   config,
		logger:   log.WithField("run_id", config.RunID),
	}, nil
}

// Summary collects the results of a run in execution order.
type Summary struct {
	Results []Result
}

// Counts tallies the final attempt of every case.
func (s *Summary) Counts() map[testctx.Status]int {
	counts := make(map[testctx.Status]int)
	for _, r := range s.Results {
		if r.Final {
			counts[r.Status]++
		}
	}
	return counts
}

// Failed reports whether any case failed on its final attempt.
func (s *Summary) Failed() bool {
	return s.Counts()[testctx.StatusFailed] > 0
}

// Flaky returns the final results that passed only after a retry.
func (s *Summary) Flaky() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Final && r.Status == testctx.StatusPassed && r.Ref.Attempt > 1 {
			out = append(out, r)
		}
	}
	return out
}

// Run executes every case on every project. A cancelled ctx stops the run
// after the attempt in flight has torn down.
func (r *Runner) Run(ctx context.Context, projects []Project, cases []Case) (*Summary, error) {
	for _, c := range cases {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	summary := &Summary{}
	r.logger.Info(ctx, "run started", logger.Fields{
		"projects": len(projects),
		"cases":    len(cases),
	})

	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r.runProject(ctx, p, cases, summary)
	}

	counts := summary.Counts()
	r.logger.Info(ctx, "run finished", logger.Fields{
		"passed":  counts[testctx.StatusPassed],
		"failed":  counts[testctx.StatusFailed],
		"skipped": counts[testctx.StatusSkipped],
		"flaky":   len(summary.Flaky()),
	})
	return summary, ctx.Err()
}

func (r *Runner) runProject(ctx context.Context, p Project, cases []Case, summary *Summary) {
	log := r.logger.WithField("project", p.Name)

	browser, err := r.launcher.Launch(ctx, p.Engine)
	if err != nil {
		log.Error(ctx, "browser launch failed", logger.Fields{"error": err.Error()})
		for _, c := range cases {
			now := time.Now()
			r.complete(ctx, summary, Result{
				Ref:         r.ref(p, c, 1),
				Status:      testctx.StatusFailed,
				Error:       err.Error(),
				Role:        c.Role,
				StartedAt:   now,
				CompletedAt: now,
				Final:       true,
			})
		}
		return
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Warn(ctx, "browser close failed", logger.Fields{"error": err.Error()})
		}
	}()

	for _, c := range cases {
		attempts := 1 + r.config.Retries
		for attempt := 1; attempt <= attempts; attempt++ {
			if ctx.Err() != nil {
				return
			}
			result := r.attempt(ctx, browser, p, c, attempt)
			result.Final = result.Status != testctx.StatusFailed || attempt == attempts || ctx.Err() != nil
			r.complete(ctx, summary, result)
			if result.Final {
				break
			}
			log.Info(ctx, "retrying case", logger.Fields{"case_id": c.ID(), "attempt": attempt + 1})
		}
	}
}

func (r *Runner) ref(p Project, c Case, attempt int) testctx.Ref {
	return testctx.Ref{
		RunID:   r.config.RunID,
		CaseID:  c.ID(),
		Title:   c.Title,
		Project: p.Name,
		Attempt: attempt,
	}
}

// attempt runs c once inside its own session and wall-clock bound.
func (r *Runner) attempt(ctx context.Context, browser pagedriver.Browser, p Project, c Case, attempt int) Result {
	ref := r.ref(p, c, attempt)
	log := r.logger.WithFields(logger.Fields{
		"case_id": ref.CaseID,
		"project": p.Name,
		"attempt": attempt,
	})
	started := time.Now()

	attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	session, err := browser.NewSession(attemptCtx, pagedriver.SessionOptions{
		Record:         r.hook.Records(p.Name),
		VideoDir:       testctx.ArtifactDir(r.config.OutputDir, ref),
		DefaultTimeout: p.Engine.ActionTimeout,
	})
	if err != nil {
		log.Error(ctx, "session not created", logger.Fields{"error": err.Error()})
		return Result{Ref: ref, Status: testctx.StatusFailed, Error: err.Error(), Role: c.Role, StartedAt: started, CompletedAt: time.Now()}
	}

	tc := testctx.New(ref, session, r.config.OutputDir, log)
	log.Info(ctx, "case started", logger.Fields{"title": c.Title})

	err = r.hook.Scope(attemptCtx, tc, func(ctx context.Context) error {
		summary := c.Summary
		if summary == "" {
			summary = c.Title
		}
		description := c.Description
		if description == "" {
			description = c.Title
		}
		r.hook.Tag(ctx, tc, ref.CaseID, summary, description)
		return c.Run(ctx, tc)
	})

	if relErr := tc.Release(context.WithoutCancel(ctx)); relErr != nil {
		log.Warn(ctx, "session release failed", logger.Fields{"error": relErr.Error()})
	}

	result := Result{
		Ref:         ref,
		Role:        c.Role,
		StartedAt:   started,
		CompletedAt: time.Now(),
		Annotations: tc.Annotations(),
	}
	switch {
	case err == nil:
		result.Status = testctx.StatusPassed
	case errors.Is(err, testctx.ErrSkipped):
		result.Status = testctx.StatusSkipped
		result.Error = err.Error()
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.Status = testctx.StatusFailed
		result.Error = fmt.Sprintf("test timed out after %s: %v", r.config.Timeout, err)
	default:
		result.Status = testctx.StatusFailed
		result.Error = err.Error()
	}

	log.Info(ctx, "case finished", logger.Fields{
		"status":   string(result.Status),
		"duration": result.Duration().String(),
	})

	if result.Status == testctx.StatusPassed && !r.config.KeepPassing {
		if err := os.RemoveAll(tc.OutputDir()); err != nil {
			log.Warn(ctx, "failed to prune passing artifacts", logger.Fields{"error": err.Error()})
		}
	}
	return result
}

func (r *Runner) complete(ctx context.Context, summary *Summary, result Result) {
	summary.Results = append(summary.Results, result)
	if err := r.sink.Complete(context.WithoutCancel(ctx), result); err != nil {
		r.logger.Warn(ctx, "report delivery failed", logger.Fields{
			"op":      "complete",
			"case_id": result.Ref.CaseID,
			"error":   err.Error(),
		})
	}
}
