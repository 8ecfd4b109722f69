package n2s

import "time"

// Checkpoint records when a Notion database was last synced successfully.
type Checkpoint struct {
	DatabaseID string
	SyncedAt   time.Time
}

// CheckpointStore persists checkpoints between runs.
type CheckpointStore interface {
	// GetCheckpoint returns nil, nil when the database has never been synced.
	GetCheckpoint(databaseID string) (*Checkpoint, error)
	PutCheckpoint(databaseID string, syncedAt time.Time) error
	ListCheckpoints() ([]*Checkpoint, error)
	DeleteCheckpoint(databaseID string) error
}

// Sync run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunSkipped = "skipped"
	RunFailed  = "failed"
	RunDryRun  = "dry-run"
)

// SyncRun is the history entry for one collection sync attempt.
type SyncRun struct {
	ID             string
	Collection     string
	DatabaseID     string
	SpreadsheetID  string
	TabName        string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         string
	RowsFetched    int
	RowsDeleted    int
	RowsAppended   int
	HeaderReplaced bool
	Error          string
}

// RunHistory records sync runs.
type RunHistory interface {
	CreateSyncRun(run *SyncRun) error
	FinishSyncRun(run *SyncRun) error
	ListSyncRuns(limit int) ([]*SyncRun, error)
}

// Database is the local state store: checkpoints plus run history.
type Database interface {
	CheckpointStore
	RunHistory

	// CheckMigrations returns an error if the schema is not current.
	CheckMigrations() error
	Close() error
}
