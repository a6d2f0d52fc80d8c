package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hairizuanbinnoorazman/security-e2e/storage"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
)

// Artifacts copies attachments into artifact storage under
// storage.ArtifactKey.
type Artifacts struct {
	store storage.Store
}

// NewArtifacts creates a sink writing to store.
func NewArtifacts(store storage.Store) *Artifacts {
	return &Artifacts{store: store}
}

func (a *Artifacts) Name() string { return "artifacts" }

func (a *Artifacts) Annotate(ctx context.Context, ref testctx.Ref, annotations []testctx.Annotation) error {
	return nil
}

// Attach stores the attachment's data, reading it from Path when the
// attachment carries no data.
func (a *Artifacts) Attach(ctx context.Context, ref testctx.Ref, att testctx.Attachment) error {
	var r io.Reader = bytes.NewReader(att.Data)
	if att.Data == nil && att.Path != "" {
		f, err := os.Open(att.Path)
		if err != nil {
			return fmt.Errorf("failed to open attachment %s: %w", att.Name, err)
		}
		defer f.Close()
		r = f
	}

	key := storage.ArtifactKey(ref.RunID, ref.CaseID, ref.Project, ref.Attempt, att.Name)
	if err := a.store.Put(ctx, key, att.ContentType, r); err != nil {
		return fmt.Errorf("failed to store attachment %s: %w", att.Name, err)
	}
	return nil
}

func (a *Artifacts) Complete(ctx context.Context, result Result) error {
	return nil
}
