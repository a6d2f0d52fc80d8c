// Package testrun records executions of end-to-end cases: one TestRun per
// attempt of a case on a project, with its assets and annotations.
package testrun

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrTestRunNotFound is returned when a test run is not found.
	ErrTestRunNotFound = errors.New("test run not found")

	// ErrInvalidCaseID is returned when case_id is not set.
	ErrInvalidCaseID = errors.New("case_id is required")

	// ErrInvalidProject is returned when project is not set.
	ErrInvalidProject = errors.New("project is required")

	// ErrInvalidAttempt is returned when attempt is below 1.
	ErrInvalidAttempt = errors.New("attempt must be at least 1")

	// ErrInvalidStatus is returned when status is invalid.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrTestRunNotRunning is returned when completing a test run that is not running.
	ErrTestRunNotRunning = errors.New("test run is not running")

	// ErrTestRunAlreadyStarted is returned when starting an already started test run.
	ErrTestRunAlreadyStarted = errors.New("test run already started")
)

// Status represents the status of a test run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsFinal checks if the status can no longer change.
func (s Status) IsFinal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// TestRun is one attempt of one case on one project. Runs started by the
// same invocation share a Batch.
type TestRun struct {
	ID          uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Batch       string     `json:"batch" gorm:"type:varchar(64);not null;index:idx_batch"`
	CaseID      string     `json:"case_id" gorm:"type:varchar(64);not null;index:idx_case_id"`
	Title       string     `json:"title" gorm:"type:varchar(512)"`
	Project     string     `json:"project" gorm:"type:varchar(64);not null;index:idx_project"`
	Attempt     int        `json:"attempt" gorm:"not null;default:1"`
	Role        string     `json:"role,omitempty" gorm:"type:varchar(64)"`
	Status      Status     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_status"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	StartedAt   *time.Time `json:"started_at,omitempty" gorm:"index:idx_started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating a new test run
func (tr *TestRun) BeforeCreate(tx *gorm.DB) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	return nil
}

// Validate checks if the test run has valid required fields.
func (tr *TestRun) Validate() error {
	if tr.CaseID == "" {
		return ErrInvalidCaseID
	}
	if tr.Project == "" {
		return ErrInvalidProject
	}
	if tr.Attempt < 1 {
		return ErrInvalidAttempt
	}
	if !tr.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Start sets started_at and moves the run to running.
func (tr *TestRun) Start() error {
	if tr.StartedAt != nil {
		return ErrTestRunAlreadyStarted
	}
	now := time.Now()
	tr.StartedAt = &now
	tr.Status = StatusRunning
	return nil
}

// Complete sets completed_at and the final status. errMsg is kept for
// failed runs and the skip reason of skipped ones.
func (tr *TestRun) Complete(status Status, errMsg string) error {
	if tr.Status != StatusRunning {
		return ErrTestRunNotRunning
	}
	if !status.IsFinal() {
		return ErrInvalidStatus
	}
	now := time.Now()
	tr.CompletedAt = &now
	tr.Status = status
	if errMsg != "" {
		tr.Error = errMsg
	}
	return nil
}

// Duration is how long the run took, zero while it is still running.
func (tr *TestRun) Duration() time.Duration {
	if tr.StartedAt == nil || tr.CompletedAt == nil {
		return 0
	}
	return tr.CompletedAt.Sub(*tr.StartedAt)
}
