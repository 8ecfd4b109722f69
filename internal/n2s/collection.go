package n2s

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCollection reports a malformed collection entry.
	ErrInvalidCollection = errors.New("invalid collection")

	// ErrTabNotFound reports that no tab matched the configured name.
	ErrTabNotFound = errors.New("tab not found")
)

// Collection pairs a Notion database with a destination tab.
type Collection struct {
	Name          string
	DatabaseID    string
	SpreadsheetID string
	TabName       string
}

// Label returns the name used in logs, falling back to the database ID.
func (c Collection) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.DatabaseID
}

// Validate reports missing identifiers.
func (c Collection) Validate() error {
	switch {
	case c.DatabaseID == "":
		return fmt.Errorf("%w: notion_database_id is required", ErrInvalidCollection)
	case c.SpreadsheetID == "":
		return fmt.Errorf("%w: google_sheet_id is required", ErrInvalidCollection)
	case c.TabName == "":
		return fmt.Errorf("%w: google_sheet_name is required", ErrInvalidCollection)
	}
	return nil
}
