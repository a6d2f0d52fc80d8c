package testrun

import (
	"testing"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and the run stores on it.
func setupTestStore(t *testing.T) (*gorm.DB, Store, AssetStore) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &TestRun{}, &RunAsset{}, &RunAnnotation{})

	log := logger.NewTestLogger()
	return db, NewGormStore(db, log), NewGormAssetStore(db, log)
}

// createTestRun creates a test run with default values.
func createTestRun(batch, caseID, project string, attempt int) *TestRun {
	return &TestRun{
		Batch:   batch,
		CaseID:  caseID,
		Title:   "@" + caseID + " scenario",
		Project: project,
		Attempt: attempt,
	}
}
