package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// FileStore keeps checkpoints in a JSON file. Every write replaces the file
// atomically through a temporary file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ n2s.CheckpointStore = (*FileStore)(nil)

// NewFileStore creates a FileStore at path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) GetCheckpoint(databaseID string) (*n2s.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	t, ok := doc[databaseID]
	if !ok {
		return nil, nil
	}
	return &n2s.Checkpoint{DatabaseID: databaseID, SyncedAt: t}, nil
}

func (f *FileStore) PutCheckpoint(databaseID string, syncedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[databaseID] = syncedAt.UTC()
	return f.save(doc)
}

func (f *FileStore) ListCheckpoints() ([]*n2s.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	return sortedCheckpoints(doc), nil
}

func (f *FileStore) DeleteCheckpoint(databaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc[databaseID]; !ok {
		return nil
	}
	delete(doc, databaseID)
	return f.save(doc)
}

func (f *FileStore) load() (map[string]time.Time, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]time.Time), nil
		}
		return nil, fmt.Errorf("opening checkpoint file: %w", err)
	}
	defer file.Close()

	doc, err := decodeDocument(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *FileStore) save(doc map[string]time.Time) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoints-*.json")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if err := encodeDocument(tmp, doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replacing checkpoint file: %w", err)
	}
	return nil
}
