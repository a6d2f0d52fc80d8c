package testrun

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"gorm.io/gorm"
)

// GormStore implements Store on GORM. It runs on MySQL in deployments
// and on SQLite for local runs and tests.
type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormStore creates a GORM-backed test run store.
func NewGormStore(db *gorm.DB, log logger.Logger) *GormStore {
	return &GormStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new test run in the database.
func (s *GormStore) Create(ctx context.Context, testRun *TestRun) error {
	if testRun.Status == "" {
		testRun.Status = StatusPending
	}
	if testRun.Attempt == 0 {
		testRun.Attempt = 1
	}

	if err := testRun.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(testRun).Error; err != nil {
		s.logger.Error(ctx, "failed to create test run", logger.Fields{
			"error":   err.Error(),
			"case_id": testRun.CaseID,
			"project": testRun.Project,
		})
		return err
	}

	s.logger.Info(ctx, "test run created", logger.Fields{
		"test_run_id": testRun.ID,
		"case_id":     testRun.CaseID,
		"project":     testRun.Project,
		"attempt":     testRun.Attempt,
	})

	return nil
}

// GetByID retrieves a test run by its ID.
func (s *GormStore) GetByID(ctx context.Context, id uuid.UUID) (*TestRun, error) {
	var testRun TestRun
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&testRun).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestRunNotFound
		}
		s.logger.Error(ctx, "failed to get test run by ID", logger.Fields{
			"error":       err.Error(),
			"test_run_id": id,
		})
		return nil, err
	}

	return &testRun, nil
}

// FindAttempt retrieves the run of one attempt of a case on a project.
func (s *GormStore) FindAttempt(ctx context.Context, batch, caseID, project string, attempt int) (*TestRun, error) {
	var testRun TestRun
	err := s.db.WithContext(ctx).
		Where("batch = ? AND case_id = ? AND project = ? AND attempt = ?", batch, caseID, project, attempt).
		First(&testRun).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestRunNotFound
		}
		s.logger.Error(ctx, "failed to find test run attempt", logger.Fields{
			"error":   err.Error(),
			"batch":   batch,
			"case_id": caseID,
			"project": project,
			"attempt": attempt,
		})
		return nil, err
	}

	return &testRun, nil
}

// Update updates a test run with the given setters.
func (s *GormStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	testRun, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(testRun); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(testRun).Error; err != nil {
		s.logger.Error(ctx, "failed to update test run", logger.Fields{
			"error":       err.Error(),
			"test_run_id": id,
		})
		return err
	}

	s.logger.Debug(ctx, "test run updated", logger.Fields{
		"test_run_id": id,
	})

	return nil
}

// List retrieves test runs matching filter, newest first.
func (s *GormStore) List(ctx context.Context, filter Filter) ([]*TestRun, error) {
	query := s.db.WithContext(ctx).Model(&TestRun{})
	if filter.Batch != "" {
		query = query.Where("batch = ?", filter.Batch)
	}
	if filter.CaseID != "" {
		query = query.Where("case_id = ?", filter.CaseID)
	}
	if filter.Project != "" {
		query = query.Where("project = ?", filter.Project)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var testRuns []*TestRun
	if err := query.Order("created_at DESC").Find(&testRuns).Error; err != nil {
		s.logger.Error(ctx, "failed to list test runs", logger.Fields{
			"error":   err.Error(),
			"batch":   filter.Batch,
			"case_id": filter.CaseID,
			"limit":   filter.Limit,
			"offset":  filter.Offset,
		})
		return nil, err
	}

	return testRuns, nil
}

// Start marks a test run as started.
func (s *GormStore) Start(ctx context.Context, id uuid.UUID) error {
	testRun, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := testRun.Start(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Save(testRun).Error; err != nil {
		s.logger.Error(ctx, "failed to start test run", logger.Fields{
			"error":       err.Error(),
			"test_run_id": id,
		})
		return err
	}

	s.logger.Info(ctx, "test run started", logger.Fields{
		"test_run_id": id,
	})

	return nil
}

// Complete marks a test run as completed.
func (s *GormStore) Complete(ctx context.Context, id uuid.UUID, status Status, errMsg string) error {
	testRun, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := testRun.Complete(status, errMsg); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Save(testRun).Error; err != nil {
		s.logger.Error(ctx, "failed to complete test run", logger.Fields{
			"error":       err.Error(),
			"test_run_id": id,
		})
		return err
	}

	s.logger.Info(ctx, "test run completed", logger.Fields{
		"test_run_id": id,
		"status":      status,
	})

	return nil
}

// AddAnnotations appends annotations after the ones already recorded.
func (s *GormStore) AddAnnotations(ctx context.Context, id uuid.UUID, annotations []RunAnnotation) error {
	if len(annotations) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&RunAnnotation{}).Where("test_run_id = ?", id).Count(&count).Error; err != nil {
			return err
		}

		rows := make([]RunAnnotation, len(annotations))
		for i, a := range annotations {
			a.ID = 0
			a.TestRunID = id
			a.Seq = int(count) + i + 1
			rows[i] = a
		}

		if err := tx.Create(&rows).Error; err != nil {
			s.logger.Error(ctx, "failed to add annotations", logger.Fields{
				"error":       err.Error(),
				"test_run_id": id,
			})
			return err
		}
		return nil
	})
}

// ListAnnotations returns a run's annotations in order.
func (s *GormStore) ListAnnotations(ctx context.Context, id uuid.UUID) ([]RunAnnotation, error) {
	var annotations []RunAnnotation
	err := s.db.WithContext(ctx).
		Where("test_run_id = ?", id).
		Order("seq ASC").
		Find(&annotations).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list annotations", logger.Fields{
			"error":       err.Error(),
			"test_run_id": id,
		})
		return nil, err
	}

	return annotations, nil
}

// GormAssetStore implements AssetStore on GORM.
type GormAssetStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormAssetStore creates a GORM-backed asset store.
func NewGormAssetStore(db *gorm.DB, log logger.Logger) *GormAssetStore {
	return &GormAssetStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new asset in the database.
func (s *GormAssetStore) Create(ctx context.Context, asset *RunAsset) error {
	if err := asset.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
		s.logger.Error(ctx, "failed to create asset", logger.Fields{
			"error":       err.Error(),
			"test_run_id": asset.TestRunID,
			"file_name":   asset.FileName,
		})
		return err
	}

	s.logger.Info(ctx, "asset created", logger.Fields{
		"asset_id":    asset.ID,
		"test_run_id": asset.TestRunID,
		"file_name":   asset.FileName,
	})

	return nil
}

// GetByID retrieves an asset by its ID.
func (s *GormAssetStore) GetByID(ctx context.Context, id uuid.UUID) (*RunAsset, error) {
	var asset RunAsset
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&asset).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		s.logger.Error(ctx, "failed to get asset by ID", logger.Fields{
			"error":    err.Error(),
			"asset_id": id,
		})
		return nil, err
	}

	return &asset, nil
}

// ListByTestRun retrieves all assets of a test run in upload order.
func (s *GormAssetStore) ListByTestRun(ctx context.Context, testRunID uuid.UUID) ([]*RunAsset, error) {
	var assets []*RunAsset
	err := s.db.WithContext(ctx).
		Where("test_run_id = ?", testRunID).
		Order("uploaded_at ASC").
		Find(&assets).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list assets by test run", logger.Fields{
			"error":       err.Error(),
			"test_run_id": testRunID,
		})
		return nil, err
	}

	return assets, nil
}

// Delete deletes an asset by ID.
func (s *GormAssetStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&RunAsset{})
	if result.Error != nil {
		s.logger.Error(ctx, "failed to delete asset", logger.Fields{
			"error":    result.Error.Error(),
			"asset_id": id,
		})
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAssetNotFound
	}

	s.logger.Info(ctx, "asset deleted", logger.Fields{
		"asset_id": id,
	})

	return nil
}
