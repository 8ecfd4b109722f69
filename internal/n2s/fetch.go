package n2s

import (
	"context"
	"fmt"
	"time"
)

// Fetcher pulls changed pages from a Notion database and flattens them into rows.
type Fetcher struct {
	source    Source
	extractor *Extractor
	logger    Logger
	pageSize  int
}

// NewFetcher creates a Fetcher. The extractor's caches are shared by every
// page of the fetch; create both per run.
func NewFetcher(source Source, extractor *Extractor, logger Logger, pageSize int) *Fetcher {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	return &Fetcher{
		source:    source,
		extractor: extractor,
		logger:    logger,
		pageSize:  pageSize,
	}
}

// Fetch returns one row per page edited on or after since, in query order.
// A zero since fetches the whole database. An empty result is not an error.
func (f *Fetcher) Fetch(ctx context.Context, databaseID string, since time.Time) ([]*Row, error) {
	req := QueryRequest{
		DatabaseID: databaseID,
		PageSize:   f.pageSize,
	}
	if !since.IsZero() {
		req.Filter = LastEditedSince(since)
	}

	rows := make([]*Row, 0)
	for {
		result, err := f.source.QueryDatabase(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("querying database %s: %w", databaseID, err)
		}

		f.logger.Debug("fetched query page", "database_id", databaseID, "results", len(result.Results), "has_more", result.HasMore)

		for _, page := range result.Results {
			f.extractor.Remember(page)
		}
		for _, page := range result.Results {
			rows = append(rows, f.toRow(ctx, page))
		}

		if !result.HasMore || result.NextCursor == "" {
			break
		}
		req.StartCursor = result.NextCursor
	}

	return rows, nil
}

func (f *Fetcher) toRow(ctx context.Context, page *Page) *Row {
	row := NewRow()
	row.Set(IDColumn, page.ID)

	for _, prop := range page.Properties {
		if prop.Name == IDColumn {
			f.logger.Debug("skipping property shadowing the id column", "page_id", page.ID)
			continue
		}
		row.SetCell(prop.Name, f.extractor.ExtractCell(ctx, prop.Value))
	}

	row.Set(CreatedByColumn, f.extractor.ResolveUser(ctx, page.CreatedBy).Name)
	row.Set(CreatedAtColumn, f.formatTime(page.CreatedTime))
	row.Set(LastEditedByColumn, f.extractor.ResolveUser(ctx, page.LastEditedBy).Name)
	row.Set(LastEditedAtColumn, f.formatTime(page.LastEditedTime))
	row.Set(URLColumn, page.URL)
	return row
}

func (f *Fetcher) formatTime(iso string) string {
	if iso == "" {
		return ""
	}
	return f.extractor.formatter.FormatDate(iso)
}
