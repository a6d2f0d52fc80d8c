package testrun

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrAssetNotFound is returned when an asset is not found.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInvalidAssetType is returned when asset type is invalid.
	ErrInvalidAssetType = errors.New("invalid asset type")

	// ErrInvalidTestRunID is returned when test_run_id is not set.
	ErrInvalidTestRunID = errors.New("test_run_id is required")

	// ErrInvalidStorageKey is returned when storage_key is empty.
	ErrInvalidStorageKey = errors.New("storage_key is required")

	// ErrInvalidFileName is returned when file_name is empty.
	ErrInvalidFileName = errors.New("file_name is required")
)

// AssetType represents the type of asset.
type AssetType string

const (
	AssetTypeImage    AssetType = "image"
	AssetTypeVideo    AssetType = "video"
	AssetTypeDocument AssetType = "document"
)

// IsValid checks if the asset type is valid.
func (at AssetType) IsValid() bool {
	switch at {
	case AssetTypeImage, AssetTypeVideo, AssetTypeDocument:
		return true
	default:
		return false
	}
}

// AssetTypeFor maps a MIME type to the asset type it is recorded as.
func AssetTypeFor(mimeType string) AssetType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return AssetTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return AssetTypeVideo
	default:
		return AssetTypeDocument
	}
}

// RunAsset is an attachment produced by a test run, stored in artifact
// storage under StorageKey.
type RunAsset struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	TestRunID  uuid.UUID `json:"test_run_id" gorm:"type:char(36);not null;index:idx_asset_test_run_id"`
	AssetType  AssetType `json:"asset_type" gorm:"type:varchar(20);not null"`
	StorageKey string    `json:"storage_key" gorm:"type:varchar(512);not null"`
	FileName   string    `json:"file_name" gorm:"type:varchar(255);not null"`
	FileSize   int64     `json:"file_size" gorm:"not null"`
	MimeType   string    `json:"mime_type,omitempty" gorm:"type:varchar(128)"`
	UploadedAt time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}

// BeforeCreate hook to generate UUID before creating a new asset
func (a *RunAsset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Validate checks if the asset has valid required fields.
func (a *RunAsset) Validate() error {
	if a.TestRunID == uuid.Nil {
		return ErrInvalidTestRunID
	}
	if !a.AssetType.IsValid() {
		return ErrInvalidAssetType
	}
	if a.StorageKey == "" {
		return ErrInvalidStorageKey
	}
	if a.FileName == "" {
		return ErrInvalidFileName
	}
	return nil
}

// RunAnnotation is one annotation of a test run. Seq keeps the order in
// which the test appended them.
type RunAnnotation struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	TestRunID uuid.UUID `json:"test_run_id" gorm:"type:char(36);not null;index:idx_annotation_test_run_id"`
	Seq       int       `json:"seq" gorm:"not null"`
	Kind      string    `json:"kind" gorm:"type:varchar(32);not null"`
	Value     string    `json:"value" gorm:"type:text"`
}
