package sheets

import (
	"fmt"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// Requests converts edits into batchUpdate requests, preserving order.
//
// Zero is a valid sheet and row index but also the JSON zero value, so
// those fields are always force-sent.
func Requests(edits []n2s.Edit) ([]*sheetsapi.Request, error) {
	requests := make([]*sheetsapi.Request, 0, len(edits))
	for _, e := range edits {
		switch e := e.(type) {
		case n2s.ReplaceHeader:
			requests = append(requests, &sheetsapi.Request{
				UpdateCells: &sheetsapi.UpdateCellsRequest{
					Range: &sheetsapi.GridRange{
						SheetId:         e.TabID,
						StartRowIndex:   0,
						EndRowIndex:     1,
						ForceSendFields: []string{"SheetId", "StartRowIndex"},
					},
					Fields: "*",
					Rows:   []*sheetsapi.RowData{rowData(e.Cells)},
				},
			})
		case n2s.DeleteRow:
			requests = append(requests, &sheetsapi.Request{
				DeleteDimension: &sheetsapi.DeleteDimensionRequest{
					Range: &sheetsapi.DimensionRange{
						SheetId:         e.TabID,
						Dimension:       "ROWS",
						StartIndex:      e.Index,
						EndIndex:        e.Index + 1,
						ForceSendFields: []string{"SheetId", "StartIndex"},
					},
				},
			})
		case n2s.AppendRow:
			requests = append(requests, &sheetsapi.Request{
				AppendCells: &sheetsapi.AppendCellsRequest{
					SheetId:         e.TabID,
					Fields:          "*",
					Rows:            []*sheetsapi.RowData{rowData(e.Cells)},
					ForceSendFields: []string{"SheetId"},
				},
			})
		default:
			return nil, fmt.Errorf("unsupported edit %T", e)
		}
	}
	return requests, nil
}

func rowData(cells []n2s.Cell) *sheetsapi.RowData {
	values := make([]*sheetsapi.CellData, len(cells))
	for i, cell := range cells {
		v := &sheetsapi.ExtendedValue{}
		switch cell.Kind {
		case n2s.NumberCell:
			number := cell.Number
			v.NumberValue = &number
		default:
			s := cell.String
			v.StringValue = &s
		}
		values[i] = &sheetsapi.CellData{UserEnteredValue: v}
	}
	return &sheetsapi.RowData{Values: values}
}
