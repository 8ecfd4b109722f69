package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caiotarifa/notion2sheets/internal/config"
	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// DatabaseFile is the state database file name inside data_dir.
const DatabaseFile = "notion2sheets.db"

// NewDatabaseFromConfig opens the state database selected by cfg.Type and
// brings its schema up to date.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (n2s.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return open(filepath.Join(cfg.DataDir, DatabaseFile))
	case "memory":
		return open(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// open avoids returning a typed nil inside the interface on error.
func open(path string) (n2s.Database, error) {
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}
