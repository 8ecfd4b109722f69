package n2s

import (
	"context"
	"time"
)

// DefaultPageSize is the number of results requested per query page.
// Notion caps page_size at 100.
const DefaultPageSize = 100

// Source reads pages and users from Notion.
type Source interface {
	// QueryDatabase returns one page of query results.
	QueryDatabase(ctx context.Context, req QueryRequest) (*QueryResult, error)

	// GetPage retrieves a single page by ID.
	GetPage(ctx context.Context, id string) (*Page, error)

	// GetUser retrieves a workspace user by ID.
	GetUser(ctx context.Context, id string) (User, error)
}

// QueryRequest describes one database query call.
type QueryRequest struct {
	DatabaseID  string
	StartCursor string // empty for the first page
	PageSize    int
	Filter      *Filter // nil for an unfiltered query
}

// Filter restricts a query to pages whose timestamp is on or after a point in time.
type Filter struct {
	Timestamp string // "last_edited_time" or "created_time"
	OnOrAfter time.Time
}

// LastEditedSince builds the incremental sync filter.
func LastEditedSince(t time.Time) *Filter {
	return &Filter{Timestamp: "last_edited_time", OnOrAfter: t}
}

// QueryResult is one page of query results.
type QueryResult struct {
	Results    []*Page
	NextCursor string
	HasMore    bool
}

// Formatter renders scalar values for display in the sheet.
type Formatter interface {
	FormatBoolean(v bool) string
	FormatNumber(v float64) string
	FormatDate(iso string) string
	// Localized reports whether numbers are rendered for a locale. When it
	// is false numbers are written to the sheet as numeric cells.
	Localized() bool
}
