package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/instrument"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/report"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	launcher *pagedriver.FakeLauncher
	sink     *report.Memory
	runner   *Runner
	projects []Project
	config   Config
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	projects := Projects(DefaultProjectDefaults())
	config := DefaultConfig()
	config.RunID = "run-1"
	config.OutputDir = t.TempDir()
	if mutate != nil {
		mutate(&config)
	}

	log := logger.NewTestLogger()
	sink := report.NewMemory()
	hookConfig := instrument.DefaultConfig()
	hookConfig.Record = RecordsFor(projects)
	hook := instrument.NewHook(sink, hookConfig, log)

	launcher := &pagedriver.FakeLauncher{}
	runner, err := NewRunner(launcher, hook, sink, config, log)
	require.NoError(t, err)
	return &harness{launcher: launcher, sink: sink, runner: runner, projects: projects, config: config}
}

func (h *harness) project(t *testing.T, name string) []Project {
	t.Helper()
	p, err := SelectProjects(h.projects, []string{name})
	require.NoError(t, err)
	return p
}

func TestNewRunner_PinsConcurrencyAndRetries(t *testing.T) {
	hook := instrument.NewHook(report.NewMemory(), instrument.DefaultConfig(), logger.NewTestLogger())

	_, err := NewRunner(&pagedriver.FakeLauncher{}, hook, report.NewMemory(), Config{Concurrency: 4}, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrConcurrency)

	_, err = NewRunner(&pagedriver.FakeLauncher{}, hook, report.NewMemory(), Config{Retries: 2}, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrInvalidRetries)

	r, err := NewRunner(&pagedriver.FakeLauncher{}, hook, report.NewMemory(), Config{}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, 8*time.Minute, r.config.Timeout)
	assert.Equal(t, 1, r.config.Concurrency)
}

func TestRun_PassingCase(t *testing.T) {
	h := newHarness(t, nil)
	c := Case{
		Title:   "@SB-1234 dashboard loads",
		Role:    "admin",
		Summary: "[Auto] Security - Dashboard - Dashboard loads successfully",
		Run: func(ctx context.Context, tc *testctx.TestContext) error {
			return tc.Screenshot(ctx, "dashboard-loaded")
		},
	}

	summary, err := h.runner.Run(context.Background(), h.project(t, "Chrome"), []Case{c})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.Equal(t, testctx.StatusPassed, result.Status)
	assert.True(t, result.Final)
	assert.Equal(t, "SB-1234", result.Ref.CaseID)
	assert.Equal(t, "admin", result.Role)
	assert.Equal(t, "[Auto] Security - Dashboard - Dashboard loads successfully", result.Annotations[3].Value)

	assert.Equal(t, []string{"annotate", "attach video/webm", "attach image/png", "complete"}, h.sink.Calls())
	assert.True(t, h.launcher.Sessions()[0].Closed())
	assert.Zero(t, h.launcher.OpenBrowsers())

	attemptDir := filepath.Join(h.config.OutputDir, "SB-1234-Chrome-1")
	assert.Equal(t, attemptDir, h.launcher.Sessions()[0].SessionOptions().VideoDir)
	_, statErr := os.Stat(attemptDir)
	assert.True(t, os.IsNotExist(statErr), "passing artifacts are pruned")
}

func TestRun_KeepPassingArtifacts(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.KeepPassing = true })
	c := Case{Title: "@SB-1 keep", Run: func(ctx context.Context, tc *testctx.TestContext) error {
		return tc.Screenshot(ctx, "kept")
	}}

	_, err := h.runner.Run(context.Background(), h.project(t, "Chrome"), []Case{c})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(h.config.OutputDir, "SB-1-Chrome-1", "01-kept.png"))
	assert.NoError(t, statErr)
}

func TestRun_RetriesOnceAfterFailure(t *testing.T) {
	h := newHarness(t, nil)
	var calls int32
	flaky := Case{Title: "@SB-2 flaky", Run: func(ctx context.Context, tc *testctx.TestContext) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("expected grid visible")
		}
		return nil
	}}

	summary, err := h.runner.Run(context.Background(), h.project(t, "Firefox"), []Case{flaky})
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, testctx.StatusFailed, summary.Results[0].Status)
	assert.False(t, summary.Results[0].Final)
	assert.Equal(t, testctx.StatusPassed, summary.Results[1].Status)
	assert.Equal(t, 2, summary.Results[1].Ref.Attempt)
	assert.True(t, summary.Results[1].Final)
	assert.False(t, summary.Failed())
	assert.Len(t, summary.Flaky(), 1)
	assert.Len(t, h.launcher.Sessions(), 2, "each attempt gets a fresh session")
}

func TestRun_FailsAfterRetry(t *testing.T) {
	h := newHarness(t, nil)
	broken := Case{Title: "@SB-3 broken", Run: func(ctx context.Context, tc *testctx.TestContext) error {
		return errors.New("expected company dialog visible")
	}}

	summary, err := h.runner.Run(context.Background(), h.project(t, "Chrome"), []Case{broken})
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.True(t, summary.Results[1].Final)
	assert.True(t, summary.Failed())
	assert.Equal(t, 1, summary.Counts()[testctx.StatusFailed])

	_, statErr := os.Stat(filepath.Join(h.config.OutputDir, "SB-3-Chrome-2", "01-failure.png"))
	assert.NoError(t, statErr, "failure screenshot is retained")
}

func TestRun_SkipIsNotRetried(t *testing.T) {
	h := newHarness(t, nil)
	c := Case{Title: "@SB-4 edit company", Run: func(ctx context.Context, tc *testctx.TestContext) error {
		return tc.Skip("no rows in grid to edit")
	}}

	summary, err := h.runner.Run(context.Background(), h.project(t, "Chrome"), []Case{c})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, testctx.StatusSkipped, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Error, "no rows in grid to edit")
	assert.Zero(t, h.launcher.Sessions()[0].Screenshots())
}

func TestRun_AttemptTimeout(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Timeout = 30 * time.Millisecond
		c.Retries = 0
	})
	c := Case{Title: "@SB-5 hangs", Run: func(ctx context.Context, tc *testctx.TestContext) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	summary, err := h.runner.Run(context.Background(), h.project(t, "Chrome"), []Case{c})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.Equal(t, testctx.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "timed out after 30ms")
	page := h.launcher.Sessions()[0]
	assert.Equal(t, 1, page.VideoStops())
	assert.True(t, page.Closed())
}

func TestRun_PanicIsAFailure(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Retries = 0 })
	c := Case{Title: "@SB-6 panics", Run: func(ctx context.Context, tc *testctx.TestContext) error {
		var grid map[string]int
		grid["rows"]++
		return nil
	}}

	summary, err := h.runner.Run(context.Background(), h.project(t, "Safari"), []Case{c})
	require.NoError(t, err)
	assert.Equal(t, testctx.StatusFailed, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Error, instrument.ErrPanicked.Error())
}

func TestRun_EdgeIsNotRecorded(t *testing.T) {
	h := newHarness(t, nil)
	c := Case{Title: "@SB-7 edge", Run: func(ctx context.Context, tc *testctx.TestContext) error { return nil }}

	_, err := h.runner.Run(context.Background(), h.project(t, "Edge"), []Case{c})
	require.NoError(t, err)

	engines := h.launcher.Launched()
	require.Len(t, engines, 1)
	assert.Equal(t, "msedge", engines[0].Channel)
	assert.Zero(t, h.launcher.Sessions()[0].VideoStops())
	assert.NotContains(t, h.sink.Calls(), "attach video/webm")
}

type brokenLauncher struct{}

func (brokenLauncher) Launch(ctx context.Context, engine pagedriver.Engine) (pagedriver.Browser, error) {
	return nil, errors.New("executable doesn't exist")
}

func TestRun_LaunchFailureFailsEveryCase(t *testing.T) {
	log := logger.NewTestLogger()
	sink := report.NewMemory()
	hook := instrument.NewHook(sink, instrument.DefaultConfig(), log)
	runner, err := NewRunner(brokenLauncher{}, hook, sink, Config{RunID: "r", OutputDir: t.TempDir()}, log)
	require.NoError(t, err)

	noop := func(ctx context.Context, tc *testctx.TestContext) error { return nil }
	cases := []Case{{Title: "@SB-1 a", Run: noop}, {Title: "@SB-2 b", Run: noop}}

	summary, err := runner.Run(context.Background(), Projects(DefaultProjectDefaults())[:1], cases)
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	for _, r := range summary.Results {
		assert.Equal(t, testctx.StatusFailed, r.Status)
		assert.True(t, r.Final)
		assert.Contains(t, r.Error, "executable doesn't exist")
	}
	assert.Len(t, sink.Results(), 2)
}

func TestRun_CancelStopsAfterCurrentAttempt(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := Case{Title: "@SB-1 first", Run: func(ctx context.Context, tc *testctx.TestContext) error {
		cancel()
		return nil
	}}
	second := Case{Title: "@SB-2 second", Run: func(ctx context.Context, tc *testctx.TestContext) error { return nil }}

	summary, err := h.runner.Run(ctx, h.projects, []Case{first, second})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "SB-1", summary.Results[0].Ref.CaseID)
	assert.Zero(t, h.launcher.OpenBrowsers())
}

func TestRun_RejectsInvalidCase(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.runner.Run(context.Background(), h.projects, []Case{{Title: "@SB-1 no body"}})
	assert.ErrorIs(t, err, ErrInvalidCase)
}

func TestRun_SequentialAcrossMatrix(t *testing.T) {
	h := newHarness(t, nil)
	var running, overlap int32
	c := Case{Title: "@SB-8 sequential", Run: func(ctx context.Context, tc *testctx.TestContext) error {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}}

	summary, err := h.runner.Run(context.Background(), h.projects, []Case{c, c})
	require.NoError(t, err)
	assert.Len(t, summary.Results, 8)
	assert.Zero(t, atomic.LoadInt32(&overlap))

	var order []string
	for _, e := range h.launcher.Launched() {
		order = append(order, e.Name)
	}
	assert.Equal(t, []string{"Chrome", "Firefox", "Safari", "Edge"}, order)
}
