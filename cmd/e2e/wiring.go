package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hairizuanbinnoorazman/security-e2e/credentials"
	"github.com/hairizuanbinnoorazman/security-e2e/database"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/testrun"
	"gorm.io/gorm"
)

// ErrHistoryDisabled is returned by commands that need the run history
// when database.enabled is false.
var ErrHistoryDisabled = errors.New("run history is disabled (database.enabled=false)")

func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagDebug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *Config) logger.Logger {
	return logger.NewLogrusLoggerWithOptions(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// history is an open run history database.
type history struct {
	db     *gorm.DB
	runs   *testrun.GormStore
	assets *testrun.GormAssetStore
}

func (h *history) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// openHistory connects to the run history, applying pending migrations
// when migrate is set.
func openHistory(cfg *Config, migrate bool, log logger.Logger) (*history, error) {
	if !cfg.Database.Enabled {
		return nil, ErrHistoryDisabled
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path != "" {
		if err := ensureParent(cfg.Database.Path); err != nil {
			return nil, err
		}
	}

	db, err := database.Connect(cfg.Database.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	h := &history{
		db:     db,
		runs:   testrun.NewGormStore(db, log),
		assets: testrun.NewGormAssetStore(db, log),
	}

	if migrate {
		sqlDB, err := db.DB()
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to get database instance: %w", err)
		}
		if err := database.RunMigrations(sqlDB, cfg.Database.Driver); err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return h, nil
}

// loadRoles resolves role secrets from the environment first, then from
// the sealed secrets file when one is configured.
func loadRoles(ctx context.Context, cfg *Config, log logger.Logger) (*credentials.Registry, error) {
	sources := []credentials.SecretSource{credentials.NewEnv()}
	if cfg.Credentials.SealedFile != "" {
		passphrase := os.Getenv(PassphraseEnv)
		if passphrase == "" {
			return nil, fmt.Errorf("%s is required to read %s", PassphraseEnv, cfg.Credentials.SealedFile)
		}
		sealed, err := credentials.ReadSealed(cfg.Credentials.SealedFile, passphrase)
		if err != nil {
			return nil, err
		}
		sources = append(sources, sealed)
	}
	return credentials.Load(ctx, cfg.Credentials.Roles, sources, log)
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}
