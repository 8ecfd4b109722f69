package checkpoint

import (
	"sort"
	"sync"
	"time"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// MemoryStore keeps checkpoints in memory. It is safe for concurrent use and
// intended for tests and dry runs.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]time.Time
}

var _ n2s.CheckpointStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]time.Time)}
}

func (m *MemoryStore) GetCheckpoint(databaseID string) (*n2s.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.checkpoints[databaseID]
	if !ok {
		return nil, nil
	}
	return &n2s.Checkpoint{DatabaseID: databaseID, SyncedAt: t}, nil
}

func (m *MemoryStore) PutCheckpoint(databaseID string, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[databaseID] = syncedAt.UTC()
	return nil
}

func (m *MemoryStore) ListCheckpoints() ([]*n2s.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedCheckpoints(m.checkpoints), nil
}

func (m *MemoryStore) DeleteCheckpoint(databaseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkpoints, databaseID)
	return nil
}

// sortedCheckpoints returns the mapping as checkpoints ordered by database ID.
func sortedCheckpoints(m map[string]time.Time) []*n2s.Checkpoint {
	result := make([]*n2s.Checkpoint, 0, len(m))
	for id, t := range m {
		result = append(result, &n2s.Checkpoint{DatabaseID: id, SyncedAt: t})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DatabaseID < result[j].DatabaseID })
	return result
}
