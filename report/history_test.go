package report

import (
	"context"
	"testing"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/hairizuanbinnoorazman/security-e2e/testrun"
	"github.com/hairizuanbinnoorazman/security-e2e/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistory(t *testing.T) (*History, testrun.Store, testrun.AssetStore) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &testrun.TestRun{}, &testrun.RunAsset{}, &testrun.RunAnnotation{})
	log := logger.NewTestLogger()
	runs := testrun.NewGormStore(db, log)
	assets := testrun.NewGormAssetStore(db, log)
	return NewHistory(runs, assets), runs, assets
}

func TestHistory_RecordsExecution(t *testing.T) {
	ctx := context.Background()
	sink, runs, assets := newHistory(t)

	require.NoError(t, sink.Annotate(ctx, testRef, []testctx.Annotation{
		{Kind: testctx.Identifier, Value: "SB-1234"},
		{Kind: testctx.Summary, Value: "[Auto] Login"},
	}))
	require.NoError(t, sink.Attach(ctx, testRef, testctx.Attachment{Name: "video.webm", ContentType: "video/webm", Data: []byte("webm")}))
	require.NoError(t, sink.Complete(ctx, Result{
		Ref:         testRef,
		Status:      testctx.StatusFailed,
		Error:       "redirect to application: timeout",
		Role:        "supportUser",
		CompletedAt: time.Now(),
	}))

	id, ok := sink.RunID(testRef)
	require.True(t, ok)

	tr, err := runs.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "run-1", tr.Batch)
	assert.Equal(t, "@SB-1234 login", tr.Title)
	assert.Equal(t, testrun.StatusFailed, tr.Status)
	assert.Equal(t, "supportUser", tr.Role)
	assert.Equal(t, "redirect to application: timeout", tr.Error)

	annotations, err := runs.ListAnnotations(ctx, id)
	require.NoError(t, err)
	require.Len(t, annotations, 2)
	assert.Equal(t, "identifier", annotations[0].Kind)

	list, err := assets.ListByTestRun(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, testrun.AssetTypeVideo, list[0].AssetType)
	assert.Equal(t, "runs/run-1/SB-1234/Chrome-1/video.webm", list[0].StorageKey)
	assert.EqualValues(t, 4, list[0].FileSize)
}

func TestHistory_AttemptsAreSeparateRuns(t *testing.T) {
	ctx := context.Background()
	sink, runs, _ := newHistory(t)

	retry := testRef
	retry.Attempt = 2
	require.NoError(t, sink.Complete(ctx, Result{Ref: testRef, Status: testctx.StatusFailed}))
	require.NoError(t, sink.Complete(ctx, Result{Ref: retry, Status: testctx.StatusPassed}))

	list, err := runs.List(ctx, testrun.Filter{Batch: "run-1"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	found, err := runs.FindAttempt(ctx, "run-1", "SB-1234", "Chrome", 2)
	require.NoError(t, err)
	assert.Equal(t, testrun.StatusPassed, found.Status)
}

func TestHistory_CompleteTwiceFails(t *testing.T) {
	ctx := context.Background()
	sink, _, _ := newHistory(t)

	require.NoError(t, sink.Complete(ctx, Result{Ref: testRef, Status: testctx.StatusPassed}))
	assert.ErrorIs(t, sink.Complete(ctx, Result{Ref: testRef, Status: testctx.StatusPassed}), testrun.ErrTestRunNotRunning)
}
