package instrument

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/report"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordedContext(t *testing.T, project string, record bool) (*testctx.TestContext, *pagedriver.Fake) {
	t.Helper()
	launcher := &pagedriver.FakeLauncher{}
	browser, err := launcher.Launch(context.Background(), pagedriver.Engine{Name: project})
	require.NoError(t, err)
	session, err := browser.NewSession(context.Background(), pagedriver.SessionOptions{Record: record})
	require.NoError(t, err)

	ref := testctx.Ref{RunID: "run", CaseID: "SB-1", Title: "@SB-1 case", Project: project, Attempt: 1}
	return testctx.New(ref, session, t.TempDir(), logger.NewTestLogger()), launcher.Sessions()[0]
}

func edgeSkipsRecording() Config {
	cfg := DefaultConfig()
	cfg.Record = func(project string) bool { return project != "Edge" }
	return cfg
}

func TestScope_PassingBodyAttachesCapture(t *testing.T) {
	tc, page := newRecordedContext(t, "Chrome", true)
	sink := report.NewMemory()
	hook := NewHook(sink, edgeSkipsRecording(), logger.NewTestLogger())

	err := hook.Scope(context.Background(), tc, func(ctx context.Context) error {
		hook.Tag(ctx, tc, "SB-1", "summary", "description")
		return tc.Screenshot(ctx, "step")
	})

	require.NoError(t, err)
	cs, ok := tc.Capture().(*CaptureSession)
	require.True(t, ok)
	assert.Equal(t, Attached, cs.State())
	assert.Equal(t, 1, cs.Stops())
	assert.Equal(t, 1, page.VideoStops())
	assert.Equal(t, []string{"annotate", "attach video/webm", "attach image/png"}, sink.Calls())
}

func TestScope_FailingBodyStillTearsDown(t *testing.T) {
	tc, page := newRecordedContext(t, "Firefox", true)
	sink := report.NewMemory()
	hook := NewHook(sink, edgeSkipsRecording(), logger.NewTestLogger())
	boom := errors.New("expected dialog visible")

	err := hook.Scope(context.Background(), tc, func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.True(t, tc.Capture().Attached())
	assert.Equal(t, 1, page.VideoStops())

	attachments := sink.Attachments(tc.Ref)
	require.Len(t, attachments, 2)
	assert.Equal(t, "video/webm", attachments[0].ContentType)
	assert.Equal(t, "01-failure.png", attachments[1].Name)
}

func TestScope_PanicIsRecoveredAfterTeardown(t *testing.T) {
	tc, page := newRecordedContext(t, "Safari", true)
	sink := report.NewMemory()
	hook := NewHook(sink, edgeSkipsRecording(), logger.NewTestLogger())

	err := hook.Scope(context.Background(), tc, func(ctx context.Context) error {
		panic("nil grid")
	})

	assert.ErrorIs(t, err, ErrPanicked)
	assert.Contains(t, err.Error(), "nil grid")
	assert.True(t, tc.Capture().Attached())
	assert.Equal(t, 1, page.VideoStops())
}

func TestScope_TimeoutStillTearsDown(t *testing.T) {
	tc, page := newRecordedContext(t, "Chrome", true)
	sink := report.NewMemory()
	hook := NewHook(sink, edgeSkipsRecording(), logger.NewTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := hook.Scope(ctx, tc, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, tc.Capture().Attached())
	assert.Equal(t, 1, page.VideoStops())
	assert.Equal(t, 1, page.Screenshots())
}

func TestScope_SkipTakesNoFailureScreenshot(t *testing.T) {
	tc, page := newRecordedContext(t, "Chrome", true)
	hook := NewHook(report.NewMemory(), edgeSkipsRecording(), logger.NewTestLogger())

	err := hook.Scope(context.Background(), tc, func(ctx context.Context) error {
		return tc.Skip("no rows")
	})

	assert.ErrorIs(t, err, testctx.ErrSkipped)
	assert.Zero(t, page.Screenshots())
	assert.True(t, tc.Capture().Attached())
}

func TestScope_ProjectWithoutRecording(t *testing.T) {
	tc, page := newRecordedContext(t, "Edge", false)
	sink := report.NewMemory()
	hook := NewHook(sink, edgeSkipsRecording(), logger.NewTestLogger())

	err := hook.Scope(context.Background(), tc, func(ctx context.Context) error {
		return tc.Screenshot(ctx, "edge")
	})

	require.NoError(t, err)
	assert.Nil(t, tc.Capture())
	assert.Zero(t, page.VideoStops())
	assert.Equal(t, []string{"attach image/png"}, sink.Calls())
}

func TestStart_RecorderMissingIsAnError(t *testing.T) {
	tc, _ := newRecordedContext(t, "Chrome", false)
	hook := NewHook(report.NewMemory(), DefaultConfig(), logger.NewTestLogger())

	cs, err := hook.Start(context.Background(), tc)
	assert.Nil(t, cs)
	assert.ErrorIs(t, err, pagedriver.ErrNotRecording)
}

func TestStop_IsIdempotent(t *testing.T) {
	tc, page := newRecordedContext(t, "Chrome", true)
	sink := report.NewMemory()
	hook := NewHook(sink, DefaultConfig(), logger.NewTestLogger())

	cs, err := hook.Start(context.Background(), tc)
	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.Equal(t, Recording, cs.State())
	hook.Tag(context.Background(), tc, "SB-1", "summary", "description")

	require.NoError(t, hook.Stop(context.Background(), tc, cs))
	require.NoError(t, hook.Stop(context.Background(), tc, cs))

	assert.Equal(t, 1, cs.Stops())
	assert.Equal(t, 1, page.VideoStops())
	assert.Len(t, sink.Attachments(tc.Ref), 1)
	assert.Len(t, sink.Annotations(tc.Ref), 5)
	assert.Equal(t, []string{"annotate", "attach video/webm"}, sink.Calls())
}

func TestStop_ForwardsOnlyNewAnnotations(t *testing.T) {
	tc, _ := newRecordedContext(t, "Chrome", false)
	sink := report.NewMemory()
	hook := NewHook(sink, edgeSkipsRecording(), logger.NewTestLogger())
	ctx := context.Background()

	hook.Tag(ctx, tc, "SB-1", "summary", "description")
	require.NoError(t, hook.Stop(ctx, tc, nil))
	tc.Annotate(testctx.Summary, "late")
	require.NoError(t, hook.Stop(ctx, tc, nil))

	got := sink.Annotations(tc.Ref)
	require.Len(t, got, 6)
	assert.Equal(t, testctx.Annotation{Kind: testctx.Summary, Value: "late"}, got[5])
	assert.Len(t, tc.Annotations(), 6)
}

func TestStop_SinkFailureIsSwallowed(t *testing.T) {
	tc, _ := newRecordedContext(t, "Chrome", true)
	sink := report.NewMemory()
	sink.Err = errors.New("xray unavailable")
	log := logger.NewTestLogger()
	hook := NewHook(sink, DefaultConfig(), log)

	err := hook.Scope(context.Background(), tc, func(ctx context.Context) error {
		hook.Tag(ctx, tc, "SB-1", "s", "d")
		return nil
	})

	require.NoError(t, err)
	cs := tc.Capture().(*CaptureSession)
	assert.Equal(t, Stopped, cs.State())
	assert.Len(t, log.EntriesAt("warn"), 2)
}

func TestTag_AppendsInOrder(t *testing.T) {
	tc, _ := newRecordedContext(t, "Chrome", false)
	hook := NewHook(report.NewMemory(), DefaultConfig(), logger.NewTestLogger())

	hook.Tag(context.Background(), tc, "SB-1234", "[Auto] Login", "User logs in")

	assert.Equal(t, []testctx.Annotation{
		{Kind: testctx.Identifier, Value: "SB-1234"},
		{Kind: testctx.ExecutionType, Value: "Automated"},
		{Kind: testctx.ProjectTag, Value: "SB"},
		{Kind: testctx.Summary, Value: "[Auto] Login"},
		{Kind: testctx.Description, Value: "User logs in"},
	}, tc.Annotations())
}
