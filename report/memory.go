package report

import (
	"context"
	"sync"

	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
)

// Memory is a Sink that keeps everything it receives. When Err is set every
// call records its input and then fails with Err.
type Memory struct {
	Err error

	mu          sync.Mutex
	annotations map[string][]testctx.Annotation
	attachments map[string][]testctx.Attachment
	results     []Result
	calls       []string
}

// NewMemory creates an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{
		annotations: make(map[string][]testctx.Annotation),
		attachments: make(map[string][]testctx.Attachment),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Annotate(ctx context.Context, ref testctx.Ref, annotations []testctx.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations[ref.String()] = append(m.annotations[ref.String()], annotations...)
	m.calls = append(m.calls, "annotate")
	return m.Err
}

func (m *Memory) Attach(ctx context.Context, ref testctx.Ref, attachment testctx.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments[ref.String()] = append(m.attachments[ref.String()], attachment)
	m.calls = append(m.calls, "attach "+attachment.ContentType)
	return m.Err
}

func (m *Memory) Complete(ctx context.Context, result Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	m.calls = append(m.calls, "complete")
	return m.Err
}

// Annotations returns what was annotated for ref.
func (m *Memory) Annotations(ref testctx.Ref) []testctx.Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]testctx.Annotation(nil), m.annotations[ref.String()]...)
}

// Attachments returns what was attached for ref.
func (m *Memory) Attachments(ref testctx.Ref) []testctx.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]testctx.Attachment(nil), m.attachments[ref.String()]...)
}

// Results returns completed results in order.
func (m *Memory) Results() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Result(nil), m.results...)
}

// Calls returns the sequence of calls received.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
