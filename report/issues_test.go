package report

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/issuetracker"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	mu       sync.Mutex
	open     map[string]*issuetracker.Issue
	created  []issuetracker.CreateIssueInput
	comments map[string][]string
	attached []string
	noAttach bool
	nextID   int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{open: map[string]*issuetracker.Issue{}, comments: map[string][]string{}}
}

func (f *fakeTracker) FindOpen(ctx context.Context, label string) (*issuetracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if issue, ok := f.open[label]; ok {
		return issue, nil
	}
	return nil, issuetracker.ErrIssueNotFound
}

func (f *fakeTracker) CreateIssue(ctx context.Context, input issuetracker.CreateIssueInput) (*issuetracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	issue := &issuetracker.Issue{ExternalID: fmt.Sprintf("QA-%d", f.nextID), Title: input.Title}
	for _, l := range input.Labels {
		f.open[l] = issue
	}
	f.created = append(f.created, input)
	return issue, nil
}

func (f *fakeTracker) AddComment(ctx context.Context, externalID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[externalID] = append(f.comments[externalID], body)
	return nil
}

func (f *fakeTracker) Attach(ctx context.Context, externalID, name, contentType string, r io.Reader) error {
	if f.noAttach {
		return issuetracker.ErrAttachmentsUnsupported
	}
	if _, err := io.ReadAll(r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, externalID+"/"+name)
	return nil
}

func (f *fakeTracker) ValidateConnection(ctx context.Context) error { return nil }

func fastIssues(client issuetracker.Client, log logger.Logger) *Issues {
	return NewIssues(client, IssuesConfig{ProjectKey: "QA", Interval: time.Millisecond, Burst: 10, MaxAttachments: 2}, log)
}

func failedFinal(ref testctx.Ref) Result {
	return Result{
		Ref:         ref,
		Status:      testctx.StatusFailed,
		Error:       "expected company dialog visible",
		Role:        "supportUser",
		Final:       true,
		Annotations: []testctx.Annotation{{Kind: testctx.Identifier, Value: "SB-1234"}},
	}
}

func TestIssues_FilesOnFinalFailure(t *testing.T) {
	ctx := context.Background()
	tracker := newFakeTracker()
	log := logger.NewTestLogger()
	sink := fastIssues(tracker, log)

	for _, name := range []string{"01-a.png", "02-b.png", "03-failure.png"} {
		require.NoError(t, sink.Attach(ctx, testRef, testctx.Attachment{Name: name, ContentType: "image/png", Data: []byte("png")}))
	}
	require.NoError(t, sink.Attach(ctx, testRef, testctx.Attachment{Name: "video.webm", ContentType: "video/webm"}))
	require.NoError(t, sink.Complete(ctx, failedFinal(testRef)))

	require.Len(t, tracker.created, 1)
	input := tracker.created[0]
	assert.Equal(t, "[E2E] SB-1234 failed on Chrome", input.Title)
	assert.Equal(t, "QA", input.ProjectKey)
	assert.Equal(t, []string{"e2e", "e2e-SB-1234"}, input.Labels)
	assert.Contains(t, input.Description, "Role: supportUser")
	assert.Contains(t, input.Description, "Error: expected company dialog visible")

	assert.Equal(t, []string{"QA-1/02-b.png", "QA-1/03-failure.png"}, tracker.attached)

	id, ok := sink.Filed("SB-1234")
	require.True(t, ok)
	assert.Equal(t, "QA-1", id)
	assert.True(t, log.Contains("issue filed"))
}

func TestIssues_CommentsOnOpenIssue(t *testing.T) {
	ctx := context.Background()
	tracker := newFakeTracker()
	log := logger.NewTestLogger()
	sink := fastIssues(tracker, log)

	require.NoError(t, sink.Complete(ctx, failedFinal(testRef)))

	firefox := testRef
	firefox.Project = "Firefox"
	require.NoError(t, sink.Complete(ctx, failedFinal(firefox)))

	assert.Len(t, tracker.created, 1)
	require.Len(t, tracker.comments["QA-1"], 1)
	assert.Contains(t, tracker.comments["QA-1"][0], "Project: Firefox, attempt 1")
	assert.True(t, log.Contains("issue updated"))
}

func TestIssues_IgnoresPassesAndRetriableFailures(t *testing.T) {
	ctx := context.Background()
	tracker := newFakeTracker()
	sink := fastIssues(tracker, logger.NewTestLogger())

	retriable := failedFinal(testRef)
	retriable.Final = false
	passed := failedFinal(testRef)
	passed.Status = testctx.StatusPassed
	skipped := failedFinal(testRef)
	skipped.Status = testctx.StatusSkipped

	require.NoError(t, sink.Attach(ctx, testRef, testctx.Attachment{Name: "01-a.png", ContentType: "image/png"}))
	for _, r := range []Result{retriable, passed, skipped} {
		require.NoError(t, sink.Complete(ctx, r))
	}

	assert.Empty(t, tracker.created)
	assert.Empty(t, tracker.attached)
	_, ok := sink.Filed("SB-1234")
	assert.False(t, ok)
}

func TestIssues_ProviderWithoutAttachments(t *testing.T) {
	ctx := context.Background()
	tracker := newFakeTracker()
	tracker.noAttach = true
	sink := fastIssues(tracker, logger.NewTestLogger())

	require.NoError(t, sink.Attach(ctx, testRef, testctx.Attachment{Name: "01-failure.png", ContentType: "image/png"}))
	require.NoError(t, sink.Complete(ctx, failedFinal(testRef)))

	assert.Len(t, tracker.created, 1)
	assert.Empty(t, tracker.attached)
}

func TestIssues_CancelledContext(t *testing.T) {
	tracker := newFakeTracker()
	sink := NewIssues(tracker, IssuesConfig{Interval: time.Hour, Burst: 1}, logger.NewTestLogger())
	require.NoError(t, sink.Complete(context.Background(), failedFinal(testRef)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sink.Complete(ctx, failedFinal(testRef)))
	assert.Len(t, tracker.created, 1)
}
