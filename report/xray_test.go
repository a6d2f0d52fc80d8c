package report

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readXray(t *testing.T, path string) XrayReport {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report XrayReport
	require.NoError(t, json.Unmarshal(data, &report))
	return report
}

func TestXrayFile_WritesAfterEachResult(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test-results", "xray-report.json")
	sink := NewXrayFile(path, "Security UI regression", 0)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Attach(ctx, testRef, testctx.Attachment{Name: "video.webm", ContentType: "video/webm", Data: []byte("webm")}))
	require.NoError(t, sink.Complete(ctx, Result{
		Ref:         testRef,
		Status:      testctx.StatusPassed,
		StartedAt:   start,
		CompletedAt: start.Add(time.Minute),
		Annotations: []testctx.Annotation{{Kind: testctx.Identifier, Value: "SB-1234"}},
	}))

	report := readXray(t, path)
	assert.Equal(t, "Security UI regression", report.Info.Summary)
	assert.Equal(t, []string{"Chrome"}, report.Info.TestEnvironments)
	require.Len(t, report.Tests, 1)
	test := report.Tests[0]
	assert.Equal(t, "SB-1234", test.TestKey)
	assert.Equal(t, XrayPassed, test.Status)
	assert.Equal(t, "2026-03-01T10:00:00Z", test.Start)
	assert.Equal(t, "2026-03-01T10:01:00Z", test.Finish)
	require.Len(t, test.Evidences, 1)
	assert.Equal(t, "video.webm", test.Evidences[0].Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("webm")), test.Evidences[0].Data)
}

func TestXrayFile_RetryReplacesAttempt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "xray.json")
	sink := NewXrayFile(path, "run", 0)

	first := testRef
	retry := testRef
	retry.Attempt = 2
	other := testRef
	other.Project = "Firefox"

	require.NoError(t, sink.Complete(ctx, Result{Ref: first, Status: testctx.StatusFailed, Error: "timeout"}))
	require.NoError(t, sink.Complete(ctx, Result{Ref: other, Status: testctx.StatusSkipped}))
	require.NoError(t, sink.Complete(ctx, Result{Ref: retry, Status: testctx.StatusPassed}))

	report := readXray(t, path)
	require.Len(t, report.Tests, 2)
	assert.Equal(t, XrayPassed, report.Tests[0].Status)
	assert.Equal(t, "Chrome, attempt 2", report.Tests[0].Comment)
	assert.Equal(t, XrayTodo, report.Tests[1].Status)
	assert.Equal(t, "SB-1234", report.Tests[1].TestKey, "falls back to the case id")
	assert.Equal(t, []string{"Chrome", "Firefox"}, report.Info.TestEnvironments)
}

func TestXrayFile_EvidenceLimit(t *testing.T) {
	ctx := context.Background()
	sink := NewXrayFile(filepath.Join(t.TempDir(), "x.json"), "run", 4)

	require.NoError(t, sink.Attach(ctx, testRef, testctx.Attachment{Name: "big.webm", ContentType: "video/webm", Data: []byte("too large")}))
	require.NoError(t, sink.Attach(ctx, testRef, testctx.Attachment{Name: "01-a.png", ContentType: "image/png", Data: []byte("png")}))
	require.NoError(t, sink.Complete(ctx, Result{Ref: testRef, Status: testctx.StatusFailed, Error: "expected grid visible"}))

	report := sink.Report()
	require.Len(t, report.Tests, 1)
	require.Len(t, report.Tests[0].Evidences, 1)
	assert.Equal(t, "01-a.png", report.Tests[0].Evidences[0].Filename)
	assert.Equal(t, XrayFailed, report.Tests[0].Status)
	assert.Equal(t, "Chrome, attempt 1: expected grid visible", report.Tests[0].Comment)
}
