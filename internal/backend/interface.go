package backend

import (
	"context"

	"harvestdash/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the source instance and optional cleanup function
type Result struct {
	Source  sheets.SnapshotSource
	Cleanup CleanupFunc
}

// Factory creates snapshot sources based on configuration
type Factory interface {
	// CreateSource creates a source instance based on the provided config
	CreateSource(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for source creation
type Config struct {
	// Source type
	Type SourceType

	// Google Sheets API
	GoogleSpreadsheetID      string
	GoogleSheetTabs          []string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string
	GoogleAPIKey             string

	// Published CSV export
	PublishedBaseURL string
	PublishedSheets  []string

	// Local workbook
	XLSXPath string
}

// SourceType represents the kind of data source
type SourceType string

const (
	DemoSource      SourceType = "demo"
	SheetsSource    SourceType = "sheets"
	PublishedSource SourceType = "published"
	XLSXSource      SourceType = "xlsx"
)

// String implements fmt.Stringer
func (st SourceType) String() string {
	return string(st)
}

// IsValid returns true if the source type is valid
func (st SourceType) IsValid() bool {
	switch st {
	case DemoSource, SheetsSource, PublishedSource, XLSXSource:
		return true
	default:
		return false
	}
}
