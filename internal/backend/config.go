package backend

import (
	"errors"
	"fmt"

	"harvestdash/internal/config"
)

// FromAppConfig converts the application config to source config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	sourceType := SourceType(appConfig.DataSource)
	if !sourceType.IsValid() {
		return Config{}, fmt.Errorf("invalid data source in config: %s", appConfig.DataSource)
	}

	return Config{
		Type: sourceType,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetTabs:          appConfig.GoogleSheetTabs,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
		GoogleAPIKey:             appConfig.GoogleAPIKey,

		PublishedBaseURL: appConfig.PublishedBaseURL,
		PublishedSheets:  appConfig.PublishedSheets,

		XLSXPath: appConfig.XLSXPath,
	}, nil
}

// Validate validates the source configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid source type: %s", c.Type)
	}

	switch c.Type {
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets source")
		}
	case PublishedSource:
		if c.PublishedBaseURL == "" {
			return errors.New("published base URL is required for published source")
		}
		if len(c.PublishedSheets) == 0 {
			return errors.New("at least one tab name is required for published source")
		}
	case XLSXSource:
		if c.XLSXPath == "" {
			return errors.New("workbook path is required for xlsx source")
		}
	case DemoSource:
		// Demo source needs nothing
	}

	return nil
}

func sourceTypes() []SourceType {
	return []SourceType{DemoSource, SheetsSource, PublishedSource, XLSXSource}
}

// GetSourceTypeStrings returns all valid source type strings
func GetSourceTypeStrings() []string {
	types := sourceTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
