// Package wait holds the two wait primitives every page component uses.
// A probe is a bounded check that resolves to a default value when its
// bound expires; an assertion is a bounded check whose expiry fails the
// test with an *AssertionError.
package wait

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
)

// AssertionError is returned when a hard expectation is not met in time.
type AssertionError struct {
	Expectation string
	Bound       time.Duration
	Err         error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s within %s: %v", e.Expectation, e.Bound, e.Err)
}

func (e *AssertionError) Unwrap() error {
	return e.Err
}

// IsAssertion reports whether err carries an *AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// Waiter runs probes and assertions against page locators.
type Waiter struct {
	logger logger.Logger
}

// New creates a Waiter that logs probe fallbacks to log.
func New(log logger.Logger) *Waiter {
	return &Waiter{logger: log}
}

// Probe reports whether loc becomes visible within timeout.
func (w *Waiter) Probe(ctx context.Context, name string, loc pagedriver.Locator, timeout time.Duration) bool {
	return w.probeState(ctx, name, loc, pagedriver.StateVisible, timeout)
}

// ProbeHidden reports whether loc disappears within timeout.
func (w *Waiter) ProbeHidden(ctx context.Context, name string, loc pagedriver.Locator, timeout time.Duration) bool {
	return w.probeState(ctx, name, loc, pagedriver.StateHidden, timeout)
}

func (w *Waiter) probeState(ctx context.Context, name string, loc pagedriver.Locator, state pagedriver.ElementState, timeout time.Duration) bool {
	if err := loc.WaitFor(ctx, state, timeout); err != nil {
		w.fallback(ctx, name, timeout, err)
		return false
	}
	return true
}

// ProbeCount waits up to timeout for the first match of loc and then
// counts all matches. It returns 0 when nothing renders.
func (w *Waiter) ProbeCount(ctx context.Context, name string, loc pagedriver.Locator, timeout time.Duration) int {
	if !w.Probe(ctx, name, loc.First(), timeout) {
		return 0
	}
	n, err := loc.Count(ctx)
	if err != nil {
		w.fallback(ctx, name, timeout, err)
		return 0
	}
	return n
}

// ProbeText returns the text of loc once visible, or "" when it never is.
func (w *Waiter) ProbeText(ctx context.Context, name string, loc pagedriver.Locator, timeout time.Duration) string {
	if !w.Probe(ctx, name, loc, timeout) {
		return ""
	}
	text, err := loc.TextContent(ctx)
	if err != nil {
		w.fallback(ctx, name, timeout, err)
		return ""
	}
	return text
}

// Require fails unless loc becomes visible within timeout.
func (w *Waiter) Require(ctx context.Context, expectation string, loc pagedriver.Locator, timeout time.Duration) error {
	if err := loc.WaitFor(ctx, pagedriver.StateVisible, timeout); err != nil {
		return &AssertionError{Expectation: expectation, Bound: timeout, Err: err}
	}
	return nil
}

// RequireHidden fails unless loc disappears within timeout.
func (w *Waiter) RequireHidden(ctx context.Context, expectation string, loc pagedriver.Locator, timeout time.Duration) error {
	if err := loc.WaitFor(ctx, pagedriver.StateHidden, timeout); err != nil {
		return &AssertionError{Expectation: expectation, Bound: timeout, Err: err}
	}
	return nil
}

// RequireURL fails unless the page URL matches pattern within timeout.
func (w *Waiter) RequireURL(ctx context.Context, expectation string, page pagedriver.Page, pattern *regexp.Regexp, timeout time.Duration) error {
	if err := page.WaitForURL(ctx, pattern, timeout); err != nil {
		return &AssertionError{
			Expectation: expectation,
			Bound:       timeout,
			Err:         fmt.Errorf("%w (current url %s)", err, page.URL()),
		}
	}
	return nil
}

// PageSettle waits for network idle and then DOM content loaded.
func (w *Waiter) PageSettle(ctx context.Context, page pagedriver.Page) error {
	if err := page.WaitForLoadState(ctx, pagedriver.LoadNetworkIdle); err != nil {
		return fmt.Errorf("waiting for network idle: %w", err)
	}
	if err := page.WaitForLoadState(ctx, pagedriver.LoadDOMContentLoaded); err != nil {
		return fmt.Errorf("waiting for dom content: %w", err)
	}
	return nil
}

// Settle sleeps for d unless ctx ends first.
func (w *Waiter) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Waiter) fallback(ctx context.Context, name string, timeout time.Duration, err error) {
	w.logger.Debug(ctx, "probe fell back to default", logger.Fields{
		"probe":   name,
		"timeout": timeout.String(),
		"error":   err.Error(),
	})
}
