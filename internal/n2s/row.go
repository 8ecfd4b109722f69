package n2s

// Fixed column names. IDColumn leads every row and the rest follow the
// page properties in this order.
const (
	IDColumn           = "id"
	CreatedByColumn    = "Created By"
	CreatedAtColumn    = "Created At"
	LastEditedByColumn = "Last Edited By"
	LastEditedAtColumn = "Last Edited At"
	URLColumn          = "URL"
)

// MetadataColumns lists the fixed columns appended to every row.
var MetadataColumns = []string{
	CreatedByColumn,
	CreatedAtColumn,
	LastEditedByColumn,
	LastEditedAtColumn,
	URLColumn,
}

// Row is an ordered mapping from column name to cell value.
// Setting an existing column replaces its value in place.
type Row struct {
	columns []string
	values  map[string]Cell
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]Cell)}
}

// Set assigns a string value to column, appending the column if it is new.
func (r *Row) Set(column, value string) {
	r.SetCell(column, Cell{Kind: StringCell, String: value})
}

// SetCell assigns a typed value to column, appending the column if it is new.
func (r *Row) SetCell(column string, cell Cell) {
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = cell
}

// Get returns the text of column and whether it exists.
func (r *Row) Get(column string) (string, bool) {
	c, ok := r.values[column]
	return c.Text(), ok
}

// GetCell returns the typed value of column and whether it exists.
func (r *Row) GetCell(column string) (Cell, bool) {
	c, ok := r.values[column]
	return c, ok
}

// Columns returns the column names in insertion order.
func (r *Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Key returns the text of the first column, the join key.
func (r *Row) Key() string {
	if len(r.columns) == 0 {
		return ""
	}
	return r.values[r.columns[0]].Text()
}

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.columns) }
