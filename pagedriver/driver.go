// Package pagedriver is the browser capability the suite drives: pages,
// element locators, waits and screenshots. The playwright implementation
// talks to a real engine; Fake is a scripted in-memory page for tests.
package pagedriver

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var (
	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("timed out")

	// ErrNotFound is returned when an action targets an element that does not exist.
	ErrNotFound = errors.New("element not found")

	// ErrClosed is returned when a closed session or page is used.
	ErrClosed = errors.New("session closed")

	// ErrNotRecording is returned by Session.Recording when video capture was not enabled.
	ErrNotRecording = errors.New("session is not recording")

	// ErrStrictMode is returned when a wait on a single-element locator
	// resolves to several elements.
	ErrStrictMode = errors.New("locator resolved to more than one element")
)

// ElementState is the condition a Locator wait blocks on.
type ElementState string

const (
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
	StateAttached ElementState = "attached"
	StateDetached ElementState = "detached"
)

// LoadState is a page lifecycle milestone.
type LoadState string

const (
	LoadNetworkIdle      LoadState = "networkidle"
	LoadDOMContentLoaded LoadState = "domcontentloaded"
	LoadComplete         LoadState = "load"
)

// Page is one browser tab.
type Page interface {
	// Goto navigates to url and waits for the load event.
	Goto(ctx context.Context, url string) error

	// WaitForLoadState blocks until the page reaches state.
	WaitForLoadState(ctx context.Context, state LoadState) error

	// WaitForURL blocks until the page URL matches pattern or timeout passes.
	WaitForURL(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error

	// URL returns the current page URL.
	URL() string

	// Locate returns a lazy locator for sel; nothing is queried until an action runs.
	Locate(sel Selector) Locator

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Locator is a lazy handle to the elements matching a Selector.
type Locator interface {
	WaitFor(ctx context.Context, state ElementState, timeout time.Duration) error
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	TextContent(ctx context.Context) (string, error)
	First() Locator
	Nth(index int) Locator
	String() string
}

// Recording is an in-progress video capture bound to a session.
type Recording interface {
	// Stop finalizes the capture and returns the encoded video.
	// It closes the page the capture is bound to.
	Stop(ctx context.Context) (Video, error)
}

// Video is a finished capture.
type Video struct {
	Name        string
	ContentType string
	Data        []byte
}

// Session is one isolated browser context with a single page. A session
// is exclusively owned by the test that acquired it.
type Session interface {
	Page() Page
	// Recording returns the session's capture or ErrNotRecording.
	Recording() (Recording, error)
	// Close releases the page and context. Safe to call more than once.
	Close(ctx context.Context) error
}

// SessionOptions configures a new session.
type SessionOptions struct {
	Record         bool
	VideoDir       string
	DefaultTimeout time.Duration
}

// Browser is a launched browser engine.
type Browser interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
	Close() error
}

// Engine describes how to launch one browser project.
type Engine struct {
	Name              string // project name, e.g. "Chrome"
	BrowserName       string // chromium, firefox or webkit
	Channel           string // e.g. "msedge"
	Headless          bool
	SlowMo            time.Duration
	ViewportWidth     int
	ViewportHeight    int
	IgnoreHTTPSErrors bool
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
}

// Launcher starts browser engines.
type Launcher interface {
	Launch(ctx context.Context, engine Engine) (Browser, error)
}

// boundedTimeout clamps d to the time remaining in ctx. The result is never
// below a millisecond since playwright reads a zero timeout as unbounded.
func boundedTimeout(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
