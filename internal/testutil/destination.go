package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// FakeDestination is an in-memory n2s.Destination. BatchUpdate applies the
// edits to per-tab grids so tests can assert on the resulting sheet.
type FakeDestination struct {
	mu    sync.Mutex
	tabs  map[string][]n2s.Tab
	grids map[int64][][]string

	ListErr   error
	GetErr    error
	UpdateErr error

	// Calls names every method invoked, in order.
	Calls   []string
	Batches [][]n2s.Edit
}

var _ n2s.Destination = (*FakeDestination)(nil)

func NewFakeDestination() *FakeDestination {
	return &FakeDestination{
		tabs:  make(map[string][]n2s.Tab),
		grids: make(map[int64][][]string),
	}
}

// AddTab creates a tab holding grid.
func (d *FakeDestination) AddTab(spreadsheetID string, tabID int64, title string, grid [][]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tabs[spreadsheetID] = append(d.tabs[spreadsheetID], n2s.Tab{ID: tabID, Title: title})
	d.grids[tabID] = cloneGrid(grid)
}

// Grid returns a copy of a tab's cells.
func (d *FakeDestination) Grid(tabID int64) [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneGrid(d.grids[tabID])
}

func (d *FakeDestination) ListTabs(_ context.Context, spreadsheetID string) ([]n2s.Tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = append(d.Calls, "ListTabs")
	if d.ListErr != nil {
		return nil, d.ListErr
	}
	return slices.Clone(d.tabs[spreadsheetID]), nil
}

func (d *FakeDestination) GetValues(_ context.Context, spreadsheetID, tabName string) ([][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = append(d.Calls, "GetValues")
	if d.GetErr != nil {
		return nil, d.GetErr
	}
	for _, tab := range d.tabs[spreadsheetID] {
		if tab.Title == tabName {
			return cloneGrid(d.grids[tab.ID]), nil
		}
	}
	return nil, nil
}

func (d *FakeDestination) BatchUpdate(_ context.Context, _ string, edits []n2s.Edit) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = append(d.Calls, "BatchUpdate")
	d.Batches = append(d.Batches, slices.Clone(edits))
	if d.UpdateErr != nil {
		return d.UpdateErr
	}

	for _, e := range edits {
		switch e := e.(type) {
		case n2s.ReplaceHeader:
			grid := d.grids[e.TabID]
			if len(grid) == 0 {
				grid = append(grid, nil)
			}
			grid[0] = cellStrings(e.Cells)
			d.grids[e.TabID] = grid
		case n2s.DeleteRow:
			grid := d.grids[e.TabID]
			if int(e.Index) < len(grid) {
				d.grids[e.TabID] = slices.Delete(grid, int(e.Index), int(e.Index)+1)
			}
		case n2s.AppendRow:
			d.grids[e.TabID] = append(d.grids[e.TabID], cellStrings(e.Cells))
		}
	}
	return nil
}

func cellStrings(cells []n2s.Cell) []string {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = c.Text()
	}
	return row
}

func cloneGrid(grid [][]string) [][]string {
	if grid == nil {
		return nil
	}
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = slices.Clone(row)
	}
	return out
}
