// Package storage keeps run artifacts (videos, screenshots, report files)
// on the local filesystem or in an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no artifact exists under a key.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("invalid artifact key")
)

// Store persists artifacts under slash-separated keys.
type Store interface {
	// Put writes the content of r under key.
	Put(ctx context.Context, key, contentType string, r io.Reader) error

	// Open returns the artifact stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Remove deletes the artifact stored under key.
	Remove(ctx context.Context, key string) error

	// Exists reports whether an artifact is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Link returns a location a reader can fetch the artifact from: a file
	// path for local storage, a presigned URL for S3.
	Link(ctx context.Context, key string) (string, error)
}

// Config selects and configures a Store.
type Config struct {
	Type    string `mapstructure:"type"`
	BaseDir string `mapstructure:"base_dir"`

	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// New creates the Store named by cfg.Type.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "local":
		if cfg.BaseDir == "" {
			return nil, fmt.Errorf("base_dir is required for local storage")
		}
		return NewLocal(cfg.BaseDir)

	case "s3":
		s3Store, err := NewS3(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return s3Store, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ArtifactKey builds the key of an artifact produced by one attempt of a
// case: runs/<run>/<case>/<project>-<attempt>/<name>.
func ArtifactKey(runID, caseID, project string, attempt int, name string) string {
	return path.Join("runs", segment(runID), segment(caseID), segment(project)+"-"+strconv.Itoa(attempt), segment(name))
}

func segment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "-", "\\", "-", " ", "-").Replace(s)
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}

// cleanKey validates key and returns it in canonical slash form.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: absolute keys not allowed", ErrInvalidKey)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: key escapes the store", ErrInvalidKey)
	}
	return cleaned, nil
}
