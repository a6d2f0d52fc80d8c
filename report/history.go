package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/security-e2e/storage"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/hairizuanbinnoorazman/security-e2e/testrun"
)

// History records executions in the run history database. Assets are
// recorded with the key the Artifacts sink stores them under.
type History struct {
	runs   testrun.Store
	assets testrun.AssetStore

	mu  sync.Mutex
	ids map[string]uuid.UUID
}

// NewHistory creates a sink recording into runs and assets.
func NewHistory(runs testrun.Store, assets testrun.AssetStore) *History {
	return &History{runs: runs, assets: assets, ids: make(map[string]uuid.UUID)}
}

func (h *History) Name() string { return "history" }

// RunID returns the stored id of ref's run, if one was recorded.
func (h *History) RunID(ref testctx.Ref) (uuid.UUID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.ids[ref.String()]
	return id, ok
}

// ensure returns the run row of ref, creating and starting it on first use.
func (h *History) ensure(ctx context.Context, ref testctx.Ref) (uuid.UUID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id, ok := h.ids[ref.String()]; ok {
		return id, nil
	}

	tr := &testrun.TestRun{
		Batch:   ref.RunID,
		CaseID:  ref.CaseID,
		Title:   ref.Title,
		Project: ref.Project,
		Attempt: ref.Attempt,
	}
	if err := h.runs.Create(ctx, tr); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record run: %w", err)
	}
	if err := h.runs.Start(ctx, tr.ID); err != nil {
		return uuid.Nil, fmt.Errorf("failed to start run: %w", err)
	}
	h.ids[ref.String()] = tr.ID
	return tr.ID, nil
}

func (h *History) Annotate(ctx context.Context, ref testctx.Ref, annotations []testctx.Annotation) error {
	id, err := h.ensure(ctx, ref)
	if err != nil {
		return err
	}
	rows := make([]testrun.RunAnnotation, len(annotations))
	for i, a := range annotations {
		rows[i] = testrun.RunAnnotation{Kind: string(a.Kind), Value: a.Value}
	}
	return h.runs.AddAnnotations(ctx, id, rows)
}

func (h *History) Attach(ctx context.Context, ref testctx.Ref, a testctx.Attachment) error {
	id, err := h.ensure(ctx, ref)
	if err != nil {
		return err
	}
	return h.assets.Create(ctx, &testrun.RunAsset{
		TestRunID:  id,
		AssetType:  testrun.AssetTypeFor(a.ContentType),
		StorageKey: storage.ArtifactKey(ref.RunID, ref.CaseID, ref.Project, ref.Attempt, a.Name),
		FileName:   a.Name,
		FileSize:   int64(len(a.Data)),
		MimeType:   a.ContentType,
	})
}

func (h *History) Complete(ctx context.Context, result Result) error {
	id, err := h.ensure(ctx, result.Ref)
	if err != nil {
		return err
	}
	if result.Role != "" {
		if err := h.runs.Update(ctx, id, testrun.SetRole(result.Role)); err != nil {
			return err
		}
	}
	return h.runs.Complete(ctx, id, testrun.Status(result.Status), result.Error)
}
