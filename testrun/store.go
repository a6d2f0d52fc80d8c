package testrun

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Batch   string
	CaseID  string
	Project string
	Status  Status
	Limit   int
	Offset  int
}

// Store defines the interface for test run persistence operations.
type Store interface {
	// Create creates a new test run in the store.
	Create(ctx context.Context, testRun *TestRun) error

	// GetByID retrieves a test run by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*TestRun, error)

	// FindAttempt retrieves the run of one attempt of a case on a project.
	FindAttempt(ctx context.Context, batch, caseID, project string, attempt int) (*TestRun, error)

	// Update updates a test run with the given setters.
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error

	// List retrieves test runs matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]*TestRun, error)

	// Start marks a test run as started.
	Start(ctx context.Context, id uuid.UUID) error

	// Complete marks a test run as completed with a final status.
	Complete(ctx context.Context, id uuid.UUID, status Status, errMsg string) error

	// AddAnnotations appends annotations after the ones already recorded.
	AddAnnotations(ctx context.Context, id uuid.UUID, annotations []RunAnnotation) error

	// ListAnnotations returns a run's annotations in order.
	ListAnnotations(ctx context.Context, id uuid.UUID) ([]RunAnnotation, error)
}

// AssetStore defines the interface for run asset persistence operations.
type AssetStore interface {
	// Create creates a new asset in the store.
	Create(ctx context.Context, asset *RunAsset) error

	// GetByID retrieves an asset by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*RunAsset, error)

	// ListByTestRun retrieves all assets of a test run.
	ListByTestRun(ctx context.Context, testRunID uuid.UUID) ([]*RunAsset, error)

	// Delete deletes an asset by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

// UpdateSetter is a function that updates a test run field.
type UpdateSetter func(*TestRun) error
