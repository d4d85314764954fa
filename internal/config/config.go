package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Data source names accepted by DATA_SOURCE.
const (
	SourceDemo      = "demo"
	SourceSheets    = "sheets"
	SourcePublished = "published"
	SourceXLSX      = "xlsx"
)

var validSources = []string{SourceDemo, SourceSheets, SourcePublished, SourceXLSX}

type Config struct {
	// HTTP Server
	Port string

	// Source selection
	DataSource string

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

	// Refresh loop
	RefreshInterval   time.Duration
	FetchTimeout      time.Duration
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	LastGoodTTL       time.Duration

	// Database (empty disables persistence)
	SQLiteDBPath string

	// AMQP (empty URL disables events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Presentation
	CurrencySymbol string
	PreviewRows    int

	// Manual refreshes per client per minute
	RefreshRateLimit int

	// Extra proxy networks (CIDR) whose forwarding headers are believed
	TrustedProxies []string

	LogLevel  string
	LogFormat string
}

var defaults = map[string]any{
	"PORT":                "8081",
	"DATA_SOURCE":         SourceDemo,
	"REFRESH_INTERVAL":    "30s",
	"FETCH_TIMEOUT":       "15s",
	"RETRY_MAX_ATTEMPTS":  3,
	"RETRY_INITIAL_DELAY": "1s",
	"RETRY_MAX_DELAY":     "30s",
	"LAST_GOOD_TTL":       "24h",
	"AMQP_EXCHANGE":       "harvestdash",
	"AMQP_QUEUE":          "refresh_requests",
	"CURRENCY_SYMBOL":     "₹",
	"PREVIEW_ROWS":        5,
	"REFRESH_RATE_LIMIT":  6,
	"LOG_LEVEL":           "info",
	"LOG_FORMAT":          "text",
}

// keys without a default still need registering so AutomaticEnv and config
// files can supply them.
var optionalKeys = []string{
	"GOOGLE_SPREADSHEET_ID", "GOOGLE_SHEET_TABS",
	"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
	"GOOGLE_OAUTH_CLIENT_FILE", "GOOGLE_OAUTH_TOKEN_FILE",
	"GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_API_KEY",
	"PUBLISHED_BASE_URL", "PUBLISHED_SHEETS", "XLSX_PATH",
	"SQLITE_DB_PATH", "AMQP_URL", "TRUSTED_PROXIES",
}

// Load reads configuration from the environment only.
func Load() *Config {
	cfg, _ := LoadFrom(viper.New(), "")
	return cfg
}

// LoadFrom reads configuration through v, layering an optional config
// file under the environment. Flags already bound to v take precedence.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range optionalKeys {
		v.SetDefault(k, "")
	}
	v.AutomaticEnv()

	var readErr error
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			readErr = fmt.Errorf("read config file: %w", err)
		}
	}

	saFile := v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE")
	if saFile == "" {
		saFile = v.GetString("GOOGLE_APPLICATION_CREDENTIALS")
	}

	cfg := &Config{
		Port:       v.GetString("PORT"),
		DataSource: strings.ToLower(strings.TrimSpace(v.GetString("DATA_SOURCE"))),

		GoogleSpreadsheetID:      v.GetString("GOOGLE_SPREADSHEET_ID"),
		GoogleSheetTabs:          SplitList(v.GetString("GOOGLE_SHEET_TABS")),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: saFile,
		GoogleOAuthClientFile:    v.GetString("GOOGLE_OAUTH_CLIENT_FILE"),
		GoogleOAuthTokenFile:     v.GetString("GOOGLE_OAUTH_TOKEN_FILE"),
		GoogleOAuthClientJSON:    v.GetString("GOOGLE_OAUTH_CLIENT_JSON"),
		GoogleOAuthTokenJSON:     v.GetString("GOOGLE_OAUTH_TOKEN_JSON"),
		GoogleAPIKey:             v.GetString("GOOGLE_API_KEY"),

		PublishedBaseURL: v.GetString("PUBLISHED_BASE_URL"),
		PublishedSheets:  SplitList(v.GetString("PUBLISHED_SHEETS")),

		XLSXPath: v.GetString("XLSX_PATH"),

		RefreshInterval:   v.GetDuration("REFRESH_INTERVAL"),
		FetchTimeout:      v.GetDuration("FETCH_TIMEOUT"),
		RetryMaxAttempts:  v.GetInt("RETRY_MAX_ATTEMPTS"),
		RetryInitialDelay: v.GetDuration("RETRY_INITIAL_DELAY"),
		RetryMaxDelay:     v.GetDuration("RETRY_MAX_DELAY"),
		LastGoodTTL:       v.GetDuration("LAST_GOOD_TTL"),

		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		CurrencySymbol:   v.GetString("CURRENCY_SYMBOL"),
		PreviewRows:      v.GetInt("PREVIEW_ROWS"),
		RefreshRateLimit: v.GetInt("REFRESH_RATE_LIMIT"),
		TrustedProxies:   SplitList(v.GetString("TRUSTED_PROXIES")),

		LogLevel:  strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}
	return cfg, readErr
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validSources, c.DataSource) {
		errs = append(errs, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}

	switch c.DataSource {
	case SourceSheets:
		if c.GoogleSpreadsheetID == "" {
			errs = append(errs, "GOOGLE_SPREADSHEET_ID is required when using the sheets source")
		}
		if !c.hasGoogleCredentials() {
			errs = append(errs, "sheets source needs credentials: a service account, an OAuth token or GOOGLE_API_KEY")
		}
		for _, f := range []string{c.GoogleServiceAccountFile, c.GoogleOAuthClientFile, c.GoogleOAuthTokenFile} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google credentials file does not exist: %s", f))
			}
		}
	case SourcePublished:
		if c.PublishedBaseURL == "" {
			errs = append(errs, "PUBLISHED_BASE_URL is required when using the published source")
		} else if u, err := url.Parse(c.PublishedBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("invalid PUBLISHED_BASE_URL '%s': must be an http(s) URL", c.PublishedBaseURL))
		}
		if len(c.PublishedSheets) == 0 {
			errs = append(errs, "PUBLISHED_SHEETS must list at least one tab when using the published source")
		}
	case SourceXLSX:
		if c.XLSXPath == "" {
			errs = append(errs, "XLSX_PATH is required when using the xlsx source")
		} else if _, err := os.Stat(c.XLSXPath); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("workbook does not exist: %s", c.XLSXPath))
		}
	}

	// Validate refresh loop
	if c.RefreshInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid fetch timeout %v: must be positive", c.FetchTimeout))
	}
	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > 10 {
		errs = append(errs, fmt.Sprintf("invalid retry attempts %d: must be between 1 and 10", c.RetryMaxAttempts))
	}
	if c.RetryInitialDelay <= 0 || c.RetryMaxDelay < c.RetryInitialDelay {
		errs = append(errs, fmt.Sprintf("invalid retry delays %v..%v: initial must be positive and not above max", c.RetryInitialDelay, c.RetryMaxDelay))
	}
	if c.LastGoodTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid last good TTL %v: must not be negative", c.LastGoodTTL))
	}

	// Check if the SQLite directory exists or can be created
	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.PreviewRows < 1 || c.PreviewRows > 100 {
		errs = append(errs, fmt.Sprintf("invalid preview rows %d: must be between 1 and 100", c.PreviewRows))
	}
	if c.RefreshRateLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid refresh rate limit %d: must be at least 1", c.RefreshRateLimit))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(errs, "\n- "))
	}

	return nil
}

func (c *Config) hasGoogleCredentials() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "" ||
		c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != "" ||
		c.GoogleAPIKey != ""
}
