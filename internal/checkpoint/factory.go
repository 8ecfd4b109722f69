// Package checkpoint provides CheckpointStore backends other than the state
// database: a JSON file, an S3 object and an in-memory map.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/caiotarifa/notion2sheets/internal/config"
	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// NewStoreFromConfig creates the CheckpointStore selected by cfg.Type.
// The "database" type stores checkpoints in db alongside the run history.
func NewStoreFromConfig(ctx context.Context, cfg config.CheckpointConfig, db n2s.Database) (n2s.CheckpointStore, error) {
	switch cfg.Type {
	case "database", "":
		if db == nil {
			return nil, fmt.Errorf("database checkpoint store requires a state database")
		}
		return db, nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file checkpoint store requires path to be set")
		}
		return NewFileStore(cfg.Path), nil
	case "s3":
		store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint store type: %s", cfg.Type)
	}
}
