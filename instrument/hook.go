// Package instrument wraps each test body with recording and tagging.
// Teardown runs on every exit path: a returned error, a failed assertion,
// a timeout or a panic.
package instrument

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/internal/uuidutil"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/report"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
)

var (
	// ErrPanicked wraps a panic recovered from a test body.
	ErrPanicked = errors.New("test body panicked")
)

// CaptureState is where a recording is in its lifecycle.
type CaptureState int

const (
	Recording CaptureState = iota
	Stopped
	Attached
)

func (s CaptureState) String() string {
	switch s {
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Attached:
		return "attached"
	default:
		return fmt.Sprintf("capture(%d)", int(s))
	}
}

// CaptureSession is the recording of one test context.
type CaptureSession struct {
	ID string

	recording pagedriver.Recording
	once      sync.Once

	mu      sync.Mutex
	state   CaptureState
	video   pagedriver.Video
	stopErr error
	stops   int
}

// State returns the current state.
func (c *CaptureSession) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attached reports whether the video reached the sink.
func (c *CaptureSession) Attached() bool {
	return c.State() == Attached
}

// Stops returns how many times the underlying recording was stopped.
func (c *CaptureSession) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// stop finalizes the recording. Only the first call reaches the driver.
func (c *CaptureSession) stop(ctx context.Context) (pagedriver.Video, bool, error) {
	first := false
	c.once.Do(func() {
		first = true
		video, err := c.recording.Stop(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.stops++
		c.state = Stopped
		c.video = video
		c.stopErr = err
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video, first, c.stopErr
}

func (c *CaptureSession) markAttached() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Attached
}

// Config controls tagging and recording.
type Config struct {
	// ProjectTag is the tracker project key added to every test.
	ProjectTag string `mapstructure:"project_tag"`
	// ExecutionType is the execution type tag, "Automated" by default.
	ExecutionType string `mapstructure:"execution_type"`
	// ScreenshotOnFailure captures the page before teardown when a body fails.
	ScreenshotOnFailure bool `mapstructure:"screenshot_on_failure"`
	// TeardownTimeout bounds teardown once the test's own context has ended.
	TeardownTimeout time.Duration `mapstructure:"teardown_timeout"`
	// Record decides per project whether a recorder runs. Nil records everywhere.
	Record func(project string) bool `mapstructure:"-" json:"-"`
}

// DefaultConfig returns the tagging used by the suite.
func DefaultConfig() Config {
	return Config{
		ProjectTag:          "SB",
		ExecutionType:       "Automated",
		ScreenshotOnFailure: true,
		TeardownTimeout:     30 * time.Second,
	}
}

// Hook starts and stops recordings and forwards what a test produced.
type Hook struct {
	sink   report.Sink
	config Config
	logger logger.Logger
}

// NewHook creates a Hook delivering to sink.
func NewHook(sink report.Sink, config Config, log logger.Logger) *Hook {
	if config.ExecutionType == "" {
		config.ExecutionType = "Automated"
	}
	if config.TeardownTimeout <= 0 {
		config.TeardownTimeout = 30 * time.Second
	}
	return &Hook{sink: sink, config: config, logger: log.WithField("component", "instrument")}
}

// Records reports whether project runs with a recorder.
func (h *Hook) Records(project string) bool {
	return h.config.Record == nil || h.config.Record(project)
}

// Start binds a capture session to tc. It returns nil without error when
// the project is configured not to record.
func (h *Hook) Start(ctx context.Context, tc *testctx.TestContext) (*CaptureSession, error) {
	if !h.Records(tc.Ref.Project) {
		h.logger.Debug(ctx, "recording disabled for project", logger.Fields{"project": tc.Ref.Project})
		return nil, nil
	}

	rec, err := tc.Session().Recording()
	if err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	cs := &CaptureSession{ID: uuidutil.New().String(), recording: rec, state: Recording}
	tc.SetCapture(cs)
	h.logger.Debug(ctx, "capture started", logger.Fields{"capture_id": cs.ID})
	return cs, nil
}

// Tag appends the identifying annotations of a test. They are delivered to
// the sink at teardown.
func (h *Hook) Tag(ctx context.Context, tc *testctx.TestContext, identifier, summary, description string) {
	tc.Annotate(testctx.Identifier, identifier)
	tc.Annotate(testctx.ExecutionType, h.config.ExecutionType)
	if h.config.ProjectTag != "" {
		tc.Annotate(testctx.ProjectTag, h.config.ProjectTag)
	}
	tc.Annotate(testctx.Summary, summary)
	tc.Annotate(testctx.Description, description)
}

// Stop finalizes cs and forwards the video, queued screenshots and
// annotations to the sink. cs may be nil. Calling Stop again only forwards
// what was queued since.
func (h *Hook) Stop(ctx context.Context, tc *testctx.TestContext, cs *CaptureSession) error {
	var stopErr error

	if annotations := tc.PendingAnnotations(); len(annotations) > 0 {
		h.deliver(ctx, "annotate", h.sink.Annotate(ctx, tc.Ref, annotations))
	}

	if cs != nil {
		video, first, err := cs.stop(ctx)
		switch {
		case err != nil:
			stopErr = fmt.Errorf("failed to stop capture %s: %w", cs.ID, err)
			h.logger.Error(ctx, "capture stop failed", logger.Fields{"capture_id": cs.ID, "error": err.Error()})
		case first:
			attachment := testctx.Attachment{Name: video.Name, ContentType: video.ContentType, Data: video.Data}
			if h.deliver(ctx, "attach video", h.sink.Attach(ctx, tc.Ref, attachment)) {
				cs.markAttached()
			}
		}
	}

	for _, a := range tc.Drain() {
		h.deliver(ctx, "attach "+a.Name, h.sink.Attach(ctx, tc.Ref, a))
	}
	return stopErr
}

func (h *Hook) deliver(ctx context.Context, op string, err error) bool {
	if err != nil {
		h.logger.Warn(ctx, "report delivery failed", logger.Fields{"op": op, "error": err.Error()})
		return false
	}
	return true
}

// Scope runs body between Start and Stop. Teardown runs on every exit
// path and captures a final screenshot when the body failed. The body's
// error, or its panic as ErrPanicked, is returned after teardown.
func (h *Hook) Scope(ctx context.Context, tc *testctx.TestContext, body func(ctx context.Context) error) (err error) {
	cs, err := h.Start(ctx, tc)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(ctx, "test body panicked", logger.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}

		teardownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.TeardownTimeout)
		defer cancel()

		if err != nil && !errors.Is(err, testctx.ErrSkipped) && h.config.ScreenshotOnFailure {
			if shotErr := tc.Screenshot(teardownCtx, "failure"); shotErr != nil {
				h.logger.Warn(ctx, "failure screenshot not captured", logger.Fields{"error": shotErr.Error()})
			}
		}

		// Stop logs its own failures; a recorder fault does not change the verdict.
		_ = h.Stop(teardownCtx, tc, cs)
	}()

	return body(ctx)
}
