package n2s

import (
	"context"
	"fmt"
	"slices"
)

// ReconcileResult summarizes the edits planned for one tab.
type ReconcileResult struct {
	TabID          int64
	HeaderReplaced bool
	Deleted        int
	Appended       int
	Edits          []Edit
}

// Reconciler upserts rows into a sheet tab by deleting every existing row
// whose key is incoming and appending all incoming rows, in one batch.
type Reconciler struct {
	dest   Destination
	logger Logger
}

// NewReconciler creates a Reconciler writing to dest.
func NewReconciler(dest Destination, logger Logger) *Reconciler {
	return &Reconciler{dest: dest, logger: logger}
}

// Reconcile plans and applies the edits for rows in a single BatchUpdate.
// It performs no retries; a failed batch is returned to the caller.
func (r *Reconciler) Reconcile(ctx context.Context, spreadsheetID, tabName string, rows []*Row) (*ReconcileResult, error) {
	result, err := r.Preview(ctx, spreadsheetID, tabName, rows)
	if err != nil {
		return nil, err
	}
	if len(result.Edits) == 0 {
		return result, nil
	}

	if err := r.dest.BatchUpdate(ctx, spreadsheetID, result.Edits); err != nil {
		return nil, fmt.Errorf("updating tab %q: %w", tabName, err)
	}

	r.logger.Info("tab updated",
		"spreadsheet_id", spreadsheetID,
		"tab", tabName,
		"header_replaced", result.HeaderReplaced,
		"deleted", result.Deleted,
		"appended", result.Appended,
	)
	return result, nil
}

// Preview reads the tab and plans the edits without writing anything.
func (r *Reconciler) Preview(ctx context.Context, spreadsheetID, tabName string, rows []*Row) (*ReconcileResult, error) {
	tab, err := r.resolveTab(ctx, spreadsheetID, tabName)
	if err != nil {
		return nil, err
	}

	current, err := r.dest.GetValues(ctx, spreadsheetID, tabName)
	if err != nil {
		return nil, fmt.Errorf("reading tab %q: %w", tabName, err)
	}

	edits := Plan(tab.ID, current, rows)
	result := &ReconcileResult{TabID: tab.ID, Edits: edits}
	for _, e := range edits {
		switch e.(type) {
		case ReplaceHeader:
			result.HeaderReplaced = true
		case DeleteRow:
			result.Deleted++
		case AppendRow:
			result.Appended++
		}
	}
	return result, nil
}

func (r *Reconciler) resolveTab(ctx context.Context, spreadsheetID, tabName string) (*Tab, error) {
	tabs, err := r.dest.ListTabs(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("listing tabs of %s: %w", spreadsheetID, err)
	}
	for i := range tabs {
		if tabs[i].Title == tabName {
			return &tabs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in spreadsheet %s", ErrTabNotFound, tabName, spreadsheetID)
}

// Plan computes the edits that upsert rows into a tab whose current values
// are current (header first). The header comes from the first row's columns
// and the join key is the first column.
//
// Edits are ordered: optional header replacement, deletions by strictly
// descending grid index, then one append per incoming row in input order.
func Plan(tabID int64, current [][]string, rows []*Row) []Edit {
	if len(rows) == 0 {
		return nil
	}

	header := rows[0].Columns()
	var edits []Edit

	var existingHeader []string
	if len(current) > 0 {
		existingHeader = current[0]
	}
	if !slices.Equal(header, existingHeader) {
		edits = append(edits, ReplaceHeader{TabID: tabID, Cells: StringCells(header)})
	}

	index := make(map[string][]int64)
	if len(current) > 1 {
		for i, values := range current[1:] {
			if len(values) == 0 || values[0] == "" {
				continue
			}
			index[values[0]] = append(index[values[0]], int64(i+1))
		}
	}

	var doomed []int64
	for _, row := range rows {
		key, _ := row.Get(header[0])
		if indices, ok := index[key]; ok {
			doomed = append(doomed, indices...)
			delete(index, key)
		}
	}
	slices.SortFunc(doomed, func(a, b int64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})
	for _, idx := range doomed {
		edits = append(edits, DeleteRow{TabID: tabID, Index: idx})
	}

	for _, row := range rows {
		cells := make([]Cell, len(header))
		for i, column := range header {
			cells[i], _ = row.GetCell(column)
		}
		edits = append(edits, AppendRow{TabID: tabID, Cells: cells})
	}

	return edits
}
