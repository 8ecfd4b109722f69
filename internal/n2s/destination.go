package n2s

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
)

// Destination reads and writes a Google Sheets spreadsheet.
type Destination interface {
	// ListTabs returns every tab of the spreadsheet.
	ListTabs(ctx context.Context, spreadsheetID string) ([]Tab, error)

	// GetValues returns the tab's cell values row by row, header first.
	GetValues(ctx context.Context, spreadsheetID, tabName string) ([][]string, error)

	// BatchUpdate applies edits in order as a single request.
	BatchUpdate(ctx context.Context, spreadsheetID string, edits []Edit) error
}

// Tab is one sheet within a spreadsheet.
type Tab struct {
	ID    int64
	Title string
}

// Edit is a structural change applied by BatchUpdate.
type Edit interface {
	edit()
}

// ReplaceHeader overwrites grid row 0 with Cells.
type ReplaceHeader struct {
	TabID int64
	Cells []Cell
}

// DeleteRow removes the grid row at Index (zero-based, header is 0).
type DeleteRow struct {
	TabID int64
	Index int64
}

// AppendRow adds Cells after the last non-empty row.
type AppendRow struct {
	TabID int64
	Cells []Cell
}

func (ReplaceHeader) edit() {}
func (DeleteRow) edit()     {}
func (AppendRow) edit()     {}

// CellKind is the type of value written to a cell.
type CellKind int

const (
	StringCell CellKind = iota
	NumberCell
)

// Cell is a typed cell value.
type Cell struct {
	Kind   CellKind
	String string
	Number float64
}

// Text returns the cell as it reads in the sheet.
func (c Cell) Text() string {
	if c.Kind == NumberCell {
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	}
	return c.String
}

// NewCell applies the cell typing rule: nil becomes an empty string cell,
// numeric kinds become number cells and everything else is stringified.
func NewCell(v any) Cell {
	if v == nil {
		return Cell{Kind: StringCell}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Cell{Kind: NumberCell, Number: float64(rv.Int())}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Cell{Kind: NumberCell, Number: float64(rv.Uint())}
	case reflect.Float32, reflect.Float64:
		return Cell{Kind: NumberCell, Number: rv.Float()}
	case reflect.Pointer:
		if rv.IsNil() {
			return Cell{Kind: StringCell}
		}
		return NewCell(rv.Elem().Interface())
	}
	return Cell{Kind: StringCell, String: fmt.Sprint(v)}
}

// StringCells converts values to string cells.
func StringCells(values []string) []Cell {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = NewCell(v)
	}
	return cells
}
