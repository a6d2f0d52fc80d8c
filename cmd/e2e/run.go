package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/instrument"
	"github.com/hairizuanbinnoorazman/security-e2e/internal/uuidutil"
	"github.com/hairizuanbinnoorazman/security-e2e/issuetracker"
	_ "github.com/hairizuanbinnoorazman/security-e2e/issuetracker/github"
	_ "github.com/hairizuanbinnoorazman/security-e2e/issuetracker/jira"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/report"
	"github.com/hairizuanbinnoorazman/security-e2e/scenarios"
	"github.com/hairizuanbinnoorazman/security-e2e/storage"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/spf13/cobra"
)

type runOptions struct {
	projects      []string
	grep          string
	timeout       time.Duration
	expectTimeout time.Duration
	retries       int
	runID         string
	keepPassing   bool
	headed        bool
	install       bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the suites",
		Example: `  e2e run --project Chrome --project Firefox --grep login --timeout 8m --expect-timeout 60s
  E2E_CREDENTIALS_ADMIN_SECRET=... e2e run --grep '@SB-1004'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.projects, "project", "p", nil, "Projects to run (default: all)")
	cmd.Flags().StringVarP(&opts.grep, "grep", "g", "", "Only run cases whose title or suite matches this regexp")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Wall-clock bound per attempt (default run.timeout)")
	cmd.Flags().DurationVar(&opts.expectTimeout, "expect-timeout", 0, "Default bound of browser actions (default browser.action_timeout)")
	cmd.Flags().IntVar(&opts.retries, "retries", -1, "Retries after a failure, 0 or 1 (default run.retries)")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Identifier shared by every result of this run (default: generated)")
	cmd.Flags().BoolVar(&opts.keepPassing, "keep-passing", false, "Keep local artifacts of passing attempts")
	cmd.Flags().BoolVar(&opts.headed, "headed", false, "Show the browser windows")
	cmd.Flags().BoolVar(&opts.install, "install", false, "Install the playwright driver and browsers first")
	return cmd
}

// apply overlays command line flags on cfg.
func (o *runOptions) apply(cfg *Config) {
	if o.timeout > 0 {
		cfg.Run.Timeout = o.timeout
	}
	if o.expectTimeout > 0 {
		cfg.Browser.ActionTimeout = o.expectTimeout
	}
	if o.retries >= 0 {
		cfg.Run.Retries = o.retries
	}
	if o.runID != "" {
		cfg.Run.RunID = o.runID
	}
	if cfg.Run.RunID == "" {
		cfg.Run.RunID = time.Now().UTC().Format("20060102-150405") + "-" + uuidutil.Short(uuidutil.New())
	}
	if o.keepPassing {
		cfg.Run.KeepPassing = true
	}
	if o.headed {
		cfg.Browser.Headless = false
	}
}

func runSuites(cmd *cobra.Command, opts *runOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts.apply(cfg)

	log := newLogger(cfg).WithField("run_id", cfg.Run.RunID)
	log.Info(ctx, "starting run", logger.Fields{
		"version":  Version,
		"commit":   Commit,
		"base_url": cfg.App.BaseURL,
	})

	projects := orchestrator.Projects(cfg.Browser)
	if len(opts.projects) > 0 {
		if projects, err = orchestrator.SelectProjects(projects, opts.projects); err != nil {
			return err
		}
	}

	roles, err := loadRoles(ctx, cfg, log)
	if err != nil {
		return err
	}

	env := &scenarios.Env{
		Layout:   scenarios.DefaultLayout(),
		Auth:     cfg.App,
		Timeouts: cfg.Timeouts,
		Roles:    roles,
	}
	cases, err := orchestrator.Select(env.Cases(), opts.grep)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no cases match %q", opts.grep)
	}

	metrics := report.NewMetrics()
	sink, closeSinks, err := buildSinks(ctx, cfg, metrics, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	hookConfig := cfg.Instrument
	hookConfig.Record = orchestrator.RecordsFor(projects)
	hook := instrument.NewHook(sink, hookConfig, log)

	launcher, err := pagedriver.NewPlaywrightLauncher(opts.install, log)
	if err != nil {
		return err
	}
	defer launcher.Stop()

	runner, err := orchestrator.NewRunner(launcher, hook, sink, cfg.Run, log)
	if err != nil {
		return err
	}

	summary, runErr := runner.Run(ctx, projects, cases)
	if summary == nil {
		return runErr
	}

	if cfg.Report.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.Report.MetricsTextfile); err != nil {
			log.Warn(ctx, "metrics textfile not written", logger.Fields{"error": err.Error()})
		}
	}

	printSummary(summary)
	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	if summary.Failed() {
		counts := summary.Counts()
		return fmt.Errorf("%d of %d tests failed", counts[testctx.StatusFailed], len(cases)*len(projects))
	}
	return nil
}

// buildSinks assembles every configured report destination. The returned
// func releases what the sinks hold open.
func buildSinks(ctx context.Context, cfg *Config, metrics *report.Metrics, log logger.Logger) (report.Sink, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	multi := report.NewMulti(log,
		report.NewXrayFile(cfg.Report.XrayPath, cfg.Report.XraySummary, cfg.Report.MaxEvidence),
		metrics,
	)

	store, err := storage.New(ctx, cfg.Artifacts.Config)
	if err != nil {
		return nil, nil, err
	}
	multi.Add(report.NewArtifacts(store))

	h, err := openHistory(cfg, true, log)
	switch {
	case err == nil:
		closers = append(closers, func() { h.Close() })
		multi.Add(report.NewHistory(h.runs, h.assets))
	case errors.Is(err, ErrHistoryDisabled):
		log.Info(ctx, "run history disabled", nil)
	default:
		closeAll()
		return nil, nil, err
	}

	if cfg.Issues.Provider != "" {
		client, err := issuetracker.New(issuetracker.ProviderType(cfg.Issues.Provider), cfg.Issues.Settings)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create issue tracker client: %w", err)
		}
		if err := client.ValidateConnection(ctx); err != nil {
			log.Warn(ctx, "issue tracker unreachable, failures will not be filed", logger.Fields{
				"provider": cfg.Issues.Provider,
				"error":    err.Error(),
			})
		} else {
			multi.Add(report.NewIssues(client, cfg.Issues.IssuesConfig, log))
		}
	}

	return multi, closeAll, nil
}

func printSummary(summary *orchestrator.Summary) {
	if flagJSON {
		printJSON(summary.Results)
		return
	}

	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		rows = append(rows, []string{
			r.Ref.Project,
			r.Ref.CaseID,
			strconv.Itoa(r.Ref.Attempt),
			string(r.Status),
			r.Duration().Round(time.Millisecond).String(),
			truncate(r.Error, 80),
		})
	}
	printTable([]string{"PROJECT", "CASE", "ATTEMPT", "STATUS", "DURATION", "ERROR"}, rows)

	counts := summary.Counts()
	printMessage(fmt.Sprintf("\n%d passed, %d failed, %d skipped, %d flaky",
		counts[testctx.StatusPassed],
		counts[testctx.StatusFailed],
		counts[testctx.StatusSkipped],
		len(summary.Flaky()),
	))
}
