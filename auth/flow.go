// Package auth drives the identity-provider login in front of the
// application and classifies where a login attempt ended up.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
)

var (
	// ErrInvalidConfig is returned when the flow is built without a usable base URL.
	ErrInvalidConfig = errors.New("invalid auth configuration")
)

// Outcome is where a login attempt ended.
type Outcome string

const (
	Authenticated Outcome = "authenticated"
	Rejected      Outcome = "rejected"
	AccessDenied  Outcome = "access_denied"
)

// ParseOutcome converts a configured outcome name.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case Authenticated, Rejected, AccessDenied:
		return o, nil
	case "":
		return Authenticated, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}

// Credential is one identity the suite signs in with.
type Credential struct {
	Identity string
	Secret   string
	Expected Outcome
}

// Config locates the application and its identity provider.
type Config struct {
	BaseURL string `mapstructure:"base_url"`
	// IdPMarker is a substring present in every identity-provider URL.
	IdPMarker string `mapstructure:"idp_marker"`
}

// Flow signs a page in and out.
type Flow struct {
	page     pagedriver.Page
	layout   Layout
	config   Config
	origin   *regexp.Regexp
	waiter   *wait.Waiter
	timeouts wait.Timeouts
	logger   logger.Logger
}

// NewFlow builds a Flow for page.
func NewFlow(page pagedriver.Page, layout Layout, config Config, timeouts wait.Timeouts, log logger.Logger) (*Flow, error) {
	base := strings.TrimRight(config.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	origin, err := regexp.Compile("^" + regexp.QuoteMeta(base))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &Flow{
		page:     page,
		layout:   layout,
		config:   config,
		origin:   origin,
		waiter:   wait.New(log),
		timeouts: timeouts,
		logger:   log.WithField("component", "auth"),
	}, nil
}

// Login submits identity and secret through whichever form the provider
// serves. When expectSuccess is set, a missing redirect back to the
// application fails with an *wait.AssertionError; otherwise the page is
// classified and the outcome returned.
func (f *Flow) Login(ctx context.Context, identity, secret string, expectSuccess bool) (Outcome, error) {
	if err := f.page.Goto(ctx, f.config.BaseURL); err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.config.BaseURL, err)
	}
	if err := f.waiter.PageSettle(ctx, f.page); err != nil {
		return "", err
	}

	variant := f.Detect(ctx)
	fields := f.layout.Fields(variant)
	f.logger.Info(ctx, "login form resolved", logger.Fields{
		"variant":  variant.String(),
		"identity": identity,
	})

	if err := f.page.Locate(fields.Identity).Fill(ctx, identity); err != nil {
		return "", fmt.Errorf("failed to fill identity: %w", err)
	}
	if err := f.page.Locate(fields.Advance).Click(ctx); err != nil {
		return "", fmt.Errorf("failed to advance past identity: %w", err)
	}

	secretField := f.page.Locate(fields.Secret)
	if err := f.waiter.Require(ctx, "secret field visible", secretField, f.timeouts.SecretField); err != nil {
		return "", err
	}
	if err := secretField.Fill(ctx, secret); err != nil {
		return "", fmt.Errorf("failed to fill secret: %w", err)
	}
	if err := f.page.Locate(fields.Verify).Click(ctx); err != nil {
		return "", fmt.Errorf("failed to submit secret: %w", err)
	}
	if err := f.waiter.PageSettle(ctx, f.page); err != nil {
		return "", err
	}

	if expectSuccess {
		if err := f.waiter.RequireURL(ctx, "redirect to application", f.page, f.origin, f.timeouts.Redirect); err != nil {
			return "", err
		}
		f.logger.Info(ctx, "login succeeded", logger.Fields{"url": f.page.URL()})
		return Authenticated, nil
	}

	outcome := f.Classify(ctx)
	f.logger.Info(ctx, "login classified", logger.Fields{"outcome": string(outcome)})
	return outcome, nil
}

// Detect probes for the redirecting form and falls back to legacy.
func (f *Flow) Detect(ctx context.Context) Variant {
	if f.waiter.Probe(ctx, "redirecting identity field", f.page.Locate(f.layout.Redirecting.Identity), f.timeouts.VariantProbe) {
		return Redirecting
	}
	return Legacy
}

// Classify inspects the page after a login attempt. The error panel and the
// access-denied indicator are probed separately; a missing redirect alone
// decides nothing.
func (f *Flow) Classify(ctx context.Context) Outcome {
	if !f.IsAuthenticated() && f.waiter.Probe(ctx, "idp error panel", f.page.Locate(f.layout.ErrorPanel).First(), f.timeouts.Notice) {
		return Rejected
	}
	if f.waiter.Probe(ctx, "access denied", f.page.Locate(f.layout.AccessDenied).First(), f.timeouts.AccessDenied) {
		return AccessDenied
	}
	if f.IsAuthenticated() {
		return Authenticated
	}
	return Rejected
}

// ErrorText returns the provider's error panel text, or "" when absent.
func (f *Flow) ErrorText(ctx context.Context) string {
	return strings.TrimSpace(f.waiter.ProbeText(ctx, "idp error panel", f.page.Locate(f.layout.ErrorPanel).First(), f.timeouts.Notice))
}

// IsAccessDenied probes for the application's access-denied indicator.
func (f *Flow) IsAccessDenied(ctx context.Context) bool {
	return f.waiter.Probe(ctx, "access denied", f.page.Locate(f.layout.AccessDenied).First(), f.timeouts.AccessDenied)
}

// IsAuthenticated reports whether the page sits inside the application
// rather than on the identity provider.
func (f *Flow) IsAuthenticated() bool {
	url := f.page.URL()
	if !f.origin.MatchString(url) {
		return false
	}
	return f.config.IdPMarker == "" || !strings.Contains(url, f.config.IdPMarker)
}

// Logout opens the user menu when the layout has one and signs out.
func (f *Flow) Logout(ctx context.Context) error {
	if f.waiter.Probe(ctx, "user menu", f.page.Locate(f.layout.UserMenu), f.timeouts.UserMenu) {
		if err := f.page.Locate(f.layout.UserMenu).Click(ctx); err != nil {
			return fmt.Errorf("failed to open user menu: %w", err)
		}
	}
	if err := f.page.Locate(f.layout.Logout).Click(ctx); err != nil {
		return fmt.Errorf("failed to click logout: %w", err)
	}
	if err := f.waiter.PageSettle(ctx, f.page); err != nil {
		return err
	}
	f.logger.Info(ctx, "logged out", logger.Fields{"url": f.page.URL()})
	return nil
}
