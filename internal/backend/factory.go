package backend

import (
	"context"
	"fmt"
	"time"

	"harvestdash/internal/log"
	gsheet "harvestdash/internal/sheets/google"
	"harvestdash/internal/sheets/memory"
	"harvestdash/internal/sheets/published"
	"harvestdash/internal/sheets/xlsx"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	now    func() time.Time
}

// NewFactory creates a new source factory. A nil clock uses time.Now.
func NewFactory(logger *log.Logger, now func() time.Time) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	if now == nil {
		now = time.Now
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		now:    now,
	}
}

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsSource:
		return f.createSheetsSource(ctx, config)
	case PublishedSource:
		return f.createPublishedSource(config)
	case XLSXSource:
		return f.createXLSXSource(config)
	case DemoSource:
		return f.createDemoSource()
	default:
		return nil, fmt.Errorf("unsupported source type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsSource(ctx context.Context, config Config) (*Result, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		Tabs:               config.GoogleSheetTabs,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		OAuthClientJSON:    config.GoogleOAuthClientJSON,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenJSON:     config.GoogleOAuthTokenJSON,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
		APIKey:             config.GoogleAPIKey,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets source",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"tabs", len(config.GoogleSheetTabs))

	return &Result{Source: cli}, nil
}

func (f *DefaultFactory) createPublishedSource(config Config) (*Result, error) {
	cli, err := published.New(published.Config{
		BaseURL: config.PublishedBaseURL,
		Tabs:    config.PublishedSheets,
	}, published.WithLogger(f.logger), published.WithClock(f.now))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize published source: %w", err)
	}

	f.logger.Info("Initialized published CSV source", "tabs", len(config.PublishedSheets))

	return &Result{Source: cli}, nil
}

func (f *DefaultFactory) createXLSXSource(config Config) (*Result, error) {
	src, err := xlsx.New(config.XLSXPath, xlsx.WithLogger(f.logger), xlsx.WithClock(f.now))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workbook source: %w", err)
	}

	f.logger.Info("Initialized workbook source", "path", config.XLSXPath)

	return &Result{Source: src}, nil
}

func (f *DefaultFactory) createDemoSource() (*Result, error) {
	f.logger.Info("Initialized demo source")
	return &Result{Source: memory.New(f.now)}, nil
}
