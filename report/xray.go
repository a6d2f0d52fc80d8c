package report

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
)

// Xray test statuses.
const (
	XrayPassed = "PASSED"
	XrayFailed = "FAILED"
	XrayTodo   = "TODO"
)

// XrayReport is the Xray JSON import format.
type XrayReport struct {
	Info  XrayInfo   `json:"info"`
	Tests []XrayTest `json:"tests"`
}

type XrayInfo struct {
	Summary          string   `json:"summary"`
	Description      string   `json:"description,omitempty"`
	StartDate        string   `json:"startDate"`
	FinishDate       string   `json:"finishDate"`
	TestEnvironments []string `json:"testEnvironments,omitempty"`
}

type XrayTest struct {
	TestKey   string         `json:"testKey"`
	Start     string         `json:"start"`
	Finish    string         `json:"finish"`
	Status    string         `json:"status"`
	Comment   string         `json:"comment,omitempty"`
	Evidences []XrayEvidence `json:"evidences,omitempty"`
}

type XrayEvidence struct {
	Data        string `json:"data"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// XrayFile writes an Xray execution report. The file is rewritten after
// every completed test so an interrupted run still leaves a report. Only
// the latest attempt of a case on a project is kept.
type XrayFile struct {
	path        string
	summary     string
	maxEvidence int

	mu       sync.Mutex
	started  time.Time
	pending  map[string][]XrayEvidence
	tests    map[string]XrayTest
	order    []string
	projects map[string]bool
}

// NewXrayFile creates a sink writing to path. Attachments larger than
// maxEvidence bytes are left out of the report; zero keeps everything.
func NewXrayFile(path, summary string, maxEvidence int) *XrayFile {
	return &XrayFile{
		path:        path,
		summary:     summary,
		maxEvidence: maxEvidence,
		started:     time.Now(),
		pending:     make(map[string][]XrayEvidence),
		tests:       make(map[string]XrayTest),
		projects:    make(map[string]bool),
	}
}

func (x *XrayFile) Name() string { return "xray" }

// Annotate is a no-op; the test key is taken from the result.
func (x *XrayFile) Annotate(ctx context.Context, ref testctx.Ref, annotations []testctx.Annotation) error {
	return nil
}

func (x *XrayFile) Attach(ctx context.Context, ref testctx.Ref, a testctx.Attachment) error {
	if x.maxEvidence > 0 && len(a.Data) > x.maxEvidence {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.pending[ref.String()] = append(x.pending[ref.String()], XrayEvidence{
		Data:        base64.StdEncoding.EncodeToString(a.Data),
		Filename:    a.Name,
		ContentType: a.ContentType,
	})
	return nil
}

func (x *XrayFile) Complete(ctx context.Context, result Result) error {
	x.mu.Lock()
	key := result.Ref.Project + "/" + result.Ref.CaseID
	if _, seen := x.tests[key]; !seen {
		x.order = append(x.order, key)
	}
	x.tests[key] = XrayTest{
		TestKey:   testKey(result),
		Start:     result.StartedAt.Format(time.RFC3339),
		Finish:    result.CompletedAt.Format(time.RFC3339),
		Status:    xrayStatus(result.Status),
		Comment:   comment(result),
		Evidences: x.pending[result.Ref.String()],
	}
	delete(x.pending, result.Ref.String())
	x.projects[result.Ref.Project] = true
	report := x.reportLocked()
	x.mu.Unlock()

	return writeJSON(x.path, report)
}

// Report returns the report as it would be written now.
func (x *XrayFile) Report() XrayReport {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.reportLocked()
}

func (x *XrayFile) reportLocked() XrayReport {
	envs := make([]string, 0, len(x.projects))
	for p := range x.projects {
		envs = append(envs, p)
	}
	sort.Strings(envs)

	tests := make([]XrayTest, 0, len(x.order))
	for _, key := range x.order {
		tests = append(tests, x.tests[key])
	}

	return XrayReport{
		Info: XrayInfo{
			Summary:          x.summary,
			StartDate:        x.started.Format(time.RFC3339),
			FinishDate:       time.Now().Format(time.RFC3339),
			TestEnvironments: envs,
		},
		Tests: tests,
	}
}

// testKey is the Identifier annotation when present, the case id otherwise.
func testKey(result Result) string {
	for i := len(result.Annotations) - 1; i >= 0; i-- {
		if result.Annotations[i].Kind == testctx.Identifier && result.Annotations[i].Value != "" {
			return result.Annotations[i].Value
		}
	}
	return result.Ref.CaseID
}

func xrayStatus(s testctx.Status) string {
	switch s {
	case testctx.StatusPassed:
		return XrayPassed
	case testctx.StatusFailed:
		return XrayFailed
	default:
		return XrayTodo
	}
}

func comment(result Result) string {
	c := fmt.Sprintf("%s, attempt %d", result.Ref.Project, result.Ref.Attempt)
	if result.Error != "" {
		c += ": " + result.Error
	}
	return c
}

// writeJSON replaces path with v, going through a temporary file so
// readers never see a partial report.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write report: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
