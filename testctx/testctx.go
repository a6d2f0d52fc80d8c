// Package testctx holds the state of one test execution: its browser
// session, annotations, queued attachments and the dialog slot.
package testctx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
)

var (
	// ErrSkipped marks a test body that chose not to run to completion.
	ErrSkipped = errors.New("test skipped")

	// ErrDialogAlreadyOpen is returned when a second dialog opens while one is open.
	ErrDialogAlreadyOpen = errors.New("another dialog is already open")
)

// Status is the result of one execution.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// AnnotationKind classifies an annotation.
type AnnotationKind string

const (
	Identifier    AnnotationKind = "identifier"
	ExecutionType AnnotationKind = "execution_type"
	ProjectTag    AnnotationKind = "project_tag"
	Summary       AnnotationKind = "summary"
	Description   AnnotationKind = "description"
)

// Annotation is one piece of tagged metadata.
type Annotation struct {
	Kind  AnnotationKind `json:"kind"`
	Value string         `json:"value"`
}

// Attachment is a named binary artifact.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	// Path is where the artifact was written locally, if anywhere.
	Path string
}

// Ref identifies one execution to reporting sinks.
type Ref struct {
	RunID   string
	CaseID  string
	Title   string
	Project string
	Attempt int
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Project, r.CaseID, r.Attempt)
}

// Capture is the recording bound to a context.
type Capture interface {
	Attached() bool
}

// TestContext is created at test start and discarded at test end. It is
// never shared between tests.
type TestContext struct {
	Ref Ref

	session   pagedriver.Session
	outputDir string
	slot      *DialogSlot
	logger    logger.Logger
	startedAt time.Time

	mu          sync.Mutex
	capture     Capture
	annotations []Annotation
	delivered   int
	attachments []Attachment
	screenshots int
	released    bool
}

// New creates the context for one execution. Artifacts written locally go
// under outputDir.
func New(ref Ref, session pagedriver.Session, outputDir string, log logger.Logger) *TestContext {
	return &TestContext{
		Ref:       ref,
		session:   session,
		outputDir: ArtifactDir(outputDir, ref),
		slot:      &DialogSlot{},
		logger:    log,
		startedAt: time.Now(),
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactDir returns the directory under root that holds one attempt's
// local artifacts.
func ArtifactDir(root string, ref Ref) string {
	name := fmt.Sprintf("%s-%s-%d", ref.CaseID, ref.Project, ref.Attempt)
	return filepath.Join(root, strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-"))
}

// Page returns the context's page.
func (tc *TestContext) Page() pagedriver.Page {
	return tc.session.Page()
}

// Session returns the context's browser session.
func (tc *TestContext) Session() pagedriver.Session {
	return tc.session
}

// Logger returns a logger carrying the execution's identity.
func (tc *TestContext) Logger() logger.Logger {
	return tc.logger
}

// OutputDir returns the directory local artifacts are written to.
func (tc *TestContext) OutputDir() string {
	return tc.outputDir
}

// StartedAt returns when the context was created.
func (tc *TestContext) StartedAt() time.Time {
	return tc.startedAt
}

// DialogSlot returns the slot dialogs on this page share.
func (tc *TestContext) DialogSlot() *DialogSlot {
	return tc.slot
}

// SetCapture binds the recording started for this context.
func (tc *TestContext) SetCapture(c Capture) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.capture = c
}

// Capture returns the bound recording, or nil when none was started.
func (tc *TestContext) Capture() Capture {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.capture
}

// Annotate appends one annotation.
func (tc *TestContext) Annotate(kind AnnotationKind, value string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.annotations = append(tc.annotations, Annotation{Kind: kind, Value: value})
}

// Annotations returns the annotations in the order they were added.
func (tc *TestContext) Annotations() []Annotation {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]Annotation(nil), tc.annotations...)
}

// PendingAnnotations returns the annotations added since the last call and
// marks them delivered.
func (tc *TestContext) PendingAnnotations() []Annotation {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := append([]Annotation(nil), tc.annotations[tc.delivered:]...)
	tc.delivered = len(tc.annotations)
	return out
}

// Annotation returns the last value recorded for kind.
func (tc *TestContext) Annotation(kind AnnotationKind) (string, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for i := len(tc.annotations) - 1; i >= 0; i-- {
		if tc.annotations[i].Kind == kind {
			return tc.annotations[i].Value, true
		}
	}
	return "", false
}

// Queue holds an attachment until teardown forwards it.
func (tc *TestContext) Queue(a Attachment) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.attachments = append(tc.attachments, a)
}

// Drain returns the queued attachments and empties the queue.
func (tc *TestContext) Drain() []Attachment {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := tc.attachments
	tc.attachments = nil
	return out
}

// Screenshot captures the page, writes it under the output directory and
// queues it as an image/png attachment.
func (tc *TestContext) Screenshot(ctx context.Context, name string) error {
	data, err := tc.Page().Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture screenshot %s: %w", name, err)
	}

	tc.mu.Lock()
	tc.screenshots++
	seq := tc.screenshots
	tc.mu.Unlock()

	filename := name
	if !strings.HasSuffix(filename, ".png") {
		filename += ".png"
	}
	filename = fmt.Sprintf("%02d-%s", seq, unsafeChars.ReplaceAllString(filename, "-"))

	path := filepath.Join(tc.outputDir, filename)
	if err := os.MkdirAll(tc.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}

	tc.Queue(Attachment{Name: filename, ContentType: "image/png", Data: data, Path: path})
	tc.logger.Debug(ctx, "screenshot captured", logger.Fields{"name": filename})
	return nil
}

// Skip ends the test body early; the runner records it as skipped.
func (tc *TestContext) Skip(reason string) error {
	return fmt.Errorf("%w: %s", ErrSkipped, reason)
}

// Release closes the session. Safe to call more than once.
func (tc *TestContext) Release(ctx context.Context) error {
	tc.mu.Lock()
	if tc.released {
		tc.mu.Unlock()
		return nil
	}
	tc.released = true
	tc.mu.Unlock()

	if err := tc.session.Close(ctx); err != nil {
		return fmt.Errorf("failed to release session: %w", err)
	}
	return nil
}

// Released reports whether Release ran.
func (tc *TestContext) Released() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.released
}

// DialogSlot admits one open dialog at a time.
type DialogSlot struct {
	mu    sync.Mutex
	owner string
}

// Acquire claims the slot for owner.
func (s *DialogSlot) Acquire(owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != "" && s.owner != owner {
		return fmt.Errorf("%w: %s is open", ErrDialogAlreadyOpen, s.owner)
	}
	s.owner = owner
	return nil
}

// Release frees the slot if owner holds it.
func (s *DialogSlot) Release(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == owner {
		s.owner = ""
	}
}

// Owner returns the current holder, or "".
func (s *DialogSlot) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}
