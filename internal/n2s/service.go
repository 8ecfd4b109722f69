package n2s

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// SyncService runs incremental Notion to Google Sheets syncs.
type SyncService struct {
	source      Source
	dest        Destination
	checkpoints CheckpointStore
	history     RunHistory
	formatter   Formatter
	logger      Logger
	clock       Clock
	idgen       IDGenerator
	pageSize    int
}

// NewSyncService creates a SyncService. If logger, clock or idgen are nil,
// a NopLogger, RealClock and UUIDGenerator are used.
func NewSyncService(source Source, dest Destination, checkpoints CheckpointStore, history RunHistory, formatter Formatter, logger Logger, clock Clock, idgen IDGenerator) *SyncService {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	return &SyncService{
		source:      source,
		dest:        dest,
		checkpoints: checkpoints,
		history:     history,
		formatter:   formatter,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
		pageSize:    DefaultPageSize,
	}
}

// SetPageSize overrides the query page size.
func (s *SyncService) SetPageSize(n int) {
	if n > 0 && n <= DefaultPageSize {
		s.pageSize = n
	}
}

// SyncOptions controls a sync.
type SyncOptions struct {
	Full   bool     // ignore checkpoints and fetch everything
	DryRun bool     // plan edits without writing or checkpointing
	Only   []string // collection names or database IDs; empty means all
}

func (o SyncOptions) selects(c Collection) bool {
	if len(o.Only) == 0 {
		return true
	}
	return slices.Contains(o.Only, c.Name) || slices.Contains(o.Only, c.DatabaseID)
}

// CollectionResult is the outcome of syncing one collection.
type CollectionResult struct {
	Collection Collection
	Run        *SyncRun
	Rows       int
	Reconcile  *ReconcileResult // nil when skipped or failed
	Err        error
}

// SyncAll syncs every selected collection in order. A failing collection does
// not stop the others; all failures are joined into the returned error.
func (s *SyncService) SyncAll(ctx context.Context, collections []Collection, opts SyncOptions) ([]*CollectionResult, error) {
	var results []*CollectionResult
	var errs []error

	for _, c := range collections {
		if !opts.selects(c) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := s.SyncCollection(ctx, c, opts)
		results = append(results, result)
		if err != nil {
			s.logger.Error("collection sync failed", "collection", c.Label(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Label(), err))
		}
	}

	return results, errors.Join(errs...)
}

// SyncCollection fetches pages changed since the collection's checkpoint and
// upserts them into its tab. The checkpoint advances only when the tab was
// updated (or there was nothing to update).
func (s *SyncService) SyncCollection(ctx context.Context, c Collection, opts SyncOptions) (*CollectionResult, error) {
	result := &CollectionResult{Collection: c}

	if err := c.Validate(); err != nil {
		result.Err = err
		return result, err
	}

	run := &SyncRun{
		ID:            s.idgen.New(),
		Collection:    c.Name,
		DatabaseID:    c.DatabaseID,
		SpreadsheetID: c.SpreadsheetID,
		TabName:       c.TabName,
		StartedAt:     s.clock.Now().UTC(),
		Status:        RunRunning,
	}
	result.Run = run
	if err := s.history.CreateSyncRun(run); err != nil {
		result.Err = fmt.Errorf("recording sync run: %w", err)
		return result, result.Err
	}

	err := s.syncCollection(ctx, c, opts, result)
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		result.Err = err
	}

	finished := s.clock.Now().UTC()
	run.FinishedAt = &finished
	if ferr := s.history.FinishSyncRun(run); ferr != nil {
		s.logger.Warn("failed to finish sync run record", "run_id", run.ID, "error", ferr)
	}

	return result, err
}

func (s *SyncService) syncCollection(ctx context.Context, c Collection, opts SyncOptions, result *CollectionResult) error {
	run := result.Run
	log := []any{"collection", c.Label(), "database_id", c.DatabaseID, "run_id", run.ID}

	var since time.Time
	if !opts.Full {
		cp, err := s.checkpoints.GetCheckpoint(c.DatabaseID)
		if err != nil {
			return fmt.Errorf("loading checkpoint: %w", err)
		}
		if cp != nil {
			since = cp.SyncedAt
		}
	}
	if since.IsZero() {
		s.logger.Info("starting full sync", log...)
	} else {
		s.logger.Info("starting incremental sync", append(log, "since", FormatTimestamp(since))...)
	}

	// Pages edited while the fetch runs are picked up by the next sync.
	startedAt := s.clock.Now()

	extractor := NewExtractor(s.source, s.formatter, s.logger)
	fetcher := NewFetcher(s.source, extractor, s.logger, s.pageSize)
	rows, err := fetcher.Fetch(ctx, c.DatabaseID, since)
	if err != nil {
		return err
	}
	result.Rows = len(rows)
	run.RowsFetched = len(rows)

	if len(rows) == 0 {
		s.logger.Info("nothing to update", log...)
		run.Status = RunSkipped
		if opts.DryRun {
			run.Status = RunDryRun
			return nil
		}
		return s.advance(c, startedAt)
	}

	reconciler := NewReconciler(s.dest, s.logger)
	var rec *ReconcileResult
	if opts.DryRun {
		rec, err = reconciler.Preview(ctx, c.SpreadsheetID, c.TabName, rows)
	} else {
		rec, err = reconciler.Reconcile(ctx, c.SpreadsheetID, c.TabName, rows)
	}
	if err != nil {
		return err
	}
	result.Reconcile = rec
	run.RowsDeleted = rec.Deleted
	run.RowsAppended = rec.Appended
	run.HeaderReplaced = rec.HeaderReplaced

	if opts.DryRun {
		run.Status = RunDryRun
		return nil
	}

	run.Status = RunSuccess
	return s.advance(c, startedAt)
}

func (s *SyncService) advance(c Collection, syncedAt time.Time) error {
	if err := s.checkpoints.PutCheckpoint(c.DatabaseID, syncedAt.UTC()); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}
