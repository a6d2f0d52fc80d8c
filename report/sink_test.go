package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRef = testctx.Ref{RunID: "run-1", CaseID: "SB-1234", Title: "@SB-1234 login", Project: "Chrome", Attempt: 1}

func TestMulti_FansOutAndSwallowsFailures(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()
	broken := NewMemory()
	broken.Err = errors.New("xray unavailable")
	healthy := NewMemory()

	multi := NewMulti(log, broken)
	multi.Add(healthy)

	require.NoError(t, multi.Annotate(ctx, testRef, []testctx.Annotation{{Kind: testctx.Identifier, Value: "SB-1234"}}))
	require.NoError(t, multi.Attach(ctx, testRef, testctx.Attachment{Name: "01-a.png", ContentType: "image/png"}))
	require.NoError(t, multi.Complete(ctx, Result{Ref: testRef, Status: testctx.StatusPassed}))

	assert.Equal(t, []string{"annotate", "attach image/png", "complete"}, healthy.Calls())
	assert.Equal(t, healthy.Calls(), broken.Calls())

	warnings := log.EntriesAt("warn")
	require.Len(t, warnings, 3)
	assert.Equal(t, "memory", warnings[0].Fields["sink"])
	assert.Equal(t, "annotate", warnings[0].Fields["op"])
	assert.Equal(t, "SB-1234", warnings[2].Fields["case_id"])
}

func TestResult_Duration(t *testing.T) {
	start := time.Now()
	assert.Zero(t, Result{StartedAt: start}.Duration())
	assert.Equal(t, 3*time.Second, Result{StartedAt: start, CompletedAt: start.Add(3 * time.Second)}.Duration())
}
