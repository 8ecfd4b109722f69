package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/caiotarifa/notion2sheets/internal/database/migrations"
	"github.com/caiotarifa/notion2sheets/internal/n2s"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase stores checkpoints and sync run history in SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock n2s.Clock
}

// Compile-time check that SQLiteDatabase implements n2s.Database
var _ n2s.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	s := NewSQLiteDatabaseFromDB(db)
	s.path = path
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection without migrating it.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db, clock: n2s.RealClock{}}
}

// SetClock overrides the clock used for updated_at timestamps.
func (s *SQLiteDatabase) SetClock(c n2s.Clock) { s.clock = c }

// OpenConnection opens and configures a SQLite connection.
// The pool is limited to one connection: SQLite serializes writers anyway and
// every connection to ":memory:" would otherwise see its own empty database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Checkpoint operations

func (s *SQLiteDatabase) GetCheckpoint(databaseID string) (*n2s.Checkpoint, error) {
	cp := &n2s.Checkpoint{DatabaseID: databaseID}
	err := s.db.QueryRow("SELECT synced_at FROM checkpoints WHERE database_id = ?", databaseID).Scan(&cp.SyncedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Never synced
		}
		return nil, fmt.Errorf("getting checkpoint for %s: %w", databaseID, err)
	}
	cp.SyncedAt = cp.SyncedAt.UTC()
	return cp, nil
}

func (s *SQLiteDatabase) PutCheckpoint(databaseID string, syncedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (database_id, synced_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (database_id) DO UPDATE SET synced_at = excluded.synced_at, updated_at = excluded.updated_at`,
		databaseID, syncedAt.UTC(), s.clock.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving checkpoint for %s: %w", databaseID, err)
	}
	return nil
}

func (s *SQLiteDatabase) ListCheckpoints() ([]*n2s.Checkpoint, error) {
	rows, err := s.db.Query("SELECT database_id, synced_at FROM checkpoints ORDER BY database_id")
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	defer rows.Close()

	var result []*n2s.Checkpoint
	for rows.Next() {
		cp := &n2s.Checkpoint{}
		if err := rows.Scan(&cp.DatabaseID, &cp.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning checkpoint: %w", err)
		}
		cp.SyncedAt = cp.SyncedAt.UTC()
		result = append(result, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) DeleteCheckpoint(databaseID string) error {
	if _, err := s.db.Exec("DELETE FROM checkpoints WHERE database_id = ?", databaseID); err != nil {
		return fmt.Errorf("deleting checkpoint for %s: %w", databaseID, err)
	}
	return nil
}

// Sync run operations

func (s *SQLiteDatabase) CreateSyncRun(run *n2s.SyncRun) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_runs (id, collection, database_id, spreadsheet_id, tab_name, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Collection, run.DatabaseID, run.SpreadsheetID, run.TabName, run.StartedAt.UTC(), run.Status,
	)
	if err != nil {
		return fmt.Errorf("creating sync run: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FinishSyncRun(run *n2s.SyncRun) error {
	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}

	res, err := s.db.Exec(`
		UPDATE sync_runs
		SET finished_at = ?, status = ?, rows_fetched = ?, rows_deleted = ?, rows_appended = ?,
		    header_replaced = ?, error = ?
		WHERE id = ?`,
		finishedAt, run.Status, run.RowsFetched, run.RowsDeleted, run.RowsAppended,
		run.HeaderReplaced, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing sync run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing sync run: run %s not found", run.ID)
	}
	return nil
}

func (s *SQLiteDatabase) ListSyncRuns(limit int) ([]*n2s.SyncRun, error) {
	rows, err := s.db.Query(`
		SELECT id, collection, database_id, spreadsheet_id, tab_name, started_at, finished_at, status,
		       rows_fetched, rows_deleted, rows_appended, header_replaced, error
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var result []*n2s.SyncRun
	for rows.Next() {
		run := &n2s.SyncRun{}
		var finishedAt sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.Collection, &run.DatabaseID, &run.SpreadsheetID, &run.TabName,
			&run.StartedAt, &finishedAt, &run.Status,
			&run.RowsFetched, &run.RowsDeleted, &run.RowsAppended, &run.HeaderReplaced, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		run.StartedAt = run.StartedAt.UTC()
		if finishedAt.Valid {
			t := finishedAt.Time.UTC()
			run.FinishedAt = &t
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return result, nil
}

// Path returns the database file path, or "" for wrapped connections.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	if err := migrations.MigrateUp(s.db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// CheckMigrations verifies the schema is clean and current.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
