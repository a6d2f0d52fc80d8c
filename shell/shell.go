// Package shell covers the chrome shared by every page of the application:
// snackbar notices and the loading spinner.
package shell

import (
	"context"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
)

// Layout holds the selectors of the shared page chrome.
type Layout struct {
	SuccessNotice pagedriver.Selector
	ErrorNotice   pagedriver.Selector
	Spinner       pagedriver.Selector
}

// Shell reads notices and loading state off a page.
type Shell struct {
	page     pagedriver.Page
	layout   Layout
	waiter   *wait.Waiter
	timeouts wait.Timeouts
	logger   logger.Logger
}

// New creates a Shell over page.
func New(page pagedriver.Page, layout Layout, timeouts wait.Timeouts, log logger.Logger) *Shell {
	return &Shell{
		page:     page,
		layout:   layout,
		waiter:   wait.New(log),
		timeouts: timeouts,
		logger:   log,
	}
}

// SuccessMessage returns the success snackbar text, or "" if none shows.
func (s *Shell) SuccessMessage(ctx context.Context) string {
	return s.waiter.ProbeText(ctx, "success notice", s.page.Locate(s.layout.SuccessNotice).First(), s.timeouts.Notice)
}

// ErrorMessage returns the error snackbar text, or "" if none shows.
func (s *Shell) ErrorMessage(ctx context.Context) string {
	return s.waiter.ProbeText(ctx, "error notice", s.page.Locate(s.layout.ErrorNotice).First(), s.timeouts.Notice)
}

// WaitForLoading waits for the spinner to go away. A spinner that never
// clears is logged and tolerated.
func (s *Shell) WaitForLoading(ctx context.Context) bool {
	done := s.waiter.ProbeHidden(ctx, "loading spinner", s.page.Locate(s.layout.Spinner), s.timeouts.Spinner)
	if !done {
		s.logger.Warn(ctx, "loading spinner still visible", logger.Fields{"timeout": s.timeouts.Spinner.String()})
	}
	return done
}
