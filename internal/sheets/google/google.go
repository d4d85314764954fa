package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"harvestdash/internal/core"
	"harvestdash/internal/log"
	"harvestdash/internal/refresh"
	ports "harvestdash/internal/sheets"
)

const SourceName = "sheets"

// Config selects the spreadsheet and how to authenticate. The first
// credential kind present wins: service account, OAuth token, API key.
type Config struct {
	SpreadsheetID string
	// Tabs restricts the fetch to these tab names, in this order.
	// Empty means every tab of the spreadsheet.
	Tabs []string

	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string

	APIKey string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabs          []string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.SnapshotSource = (*Client)(nil)

// New creates a read-only Sheets client. Extra client options replace the
// credential lookup entirely, which tests use to point at a fake server.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		auth, err := clientOptions(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = append(auth, goption.WithHTTPClient(newHTTPClientWithPooling()))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: id, tabs: cfg.Tabs, logger: logger}, nil
}

// clientOptions resolves credentials into client options.
func clientOptions(ctx context.Context, cfg Config, logger *log.Logger) ([]goption.ClientOption, error) {
	saJSON, err := inlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	if len(saJSON) > 0 {
		logger.InfoContext(ctx, "Using service account credentials", "credentials_size", len(saJSON))
		return []goption.ClientOption{
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		}, nil
	}

	tokJSON, err := inlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	if len(tokJSON) > 0 {
		clientJSON, err := inlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		ts, err := tokenSource(ctx, clientJSON, tokJSON)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "Using OAuth token credentials")
		return []goption.ClientOption{goption.WithTokenSource(ts)}, nil
	}

	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		logger.InfoContext(ctx, "Using API key, spreadsheet must be shared publicly")
		return []goption.ClientOption{goption.WithAPIKey(key)}, nil
	}

	return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_API_KEY)")
}

// tokenSource builds a refreshing token source from an OAuth client
// definition and a token saved by oauth-init.
func tokenSource(ctx context.Context, clientJSON, tokJSON []byte) (oauth2.TokenSource, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(tokJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if len(clientJSON) == 0 {
		return oauth2.StaticTokenSource(&tok), nil
	}
	oc, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return oc.TokenSource(ctx, &tok), nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and keep-alive. The per-fetch deadline comes from the
// request context.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport}
}

func (c *Client) Name() string { return SourceName }

// Fetch reads every configured tab with one batch request.
func (c *Client) Fetch(ctx context.Context) (core.Snapshot, error) {
	if c.svc == nil {
		return core.Snapshot{}, refresh.Permanent(errors.New("sheets service not initialized"))
	}

	tabs := c.tabs
	if len(tabs) == 0 {
		var err error
		if tabs, err = c.listTabs(ctx); err != nil {
			return core.Snapshot{}, err
		}
	}
	if len(tabs) == 0 {
		return core.Snapshot{Source: SourceName, FetchedAt: time.Now().UTC()}, nil
	}

	ranges := make([]string, len(tabs))
	for i, t := range tabs {
		ranges[i] = quoteTab(t)
	}

	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption("FORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return core.Snapshot{}, classify(fmt.Errorf("batch get values: %w", err))
	}
	if len(resp.ValueRanges) != len(tabs) {
		return core.Snapshot{}, fmt.Errorf("batch get values: got %d ranges for %d tabs", len(resp.ValueRanges), len(tabs))
	}

	snap := core.Snapshot{Source: SourceName, FetchedAt: time.Now().UTC()}
	for i, vr := range resp.ValueRanges {
		snap.Sheets = append(snap.Sheets, toSheet(tabs[i], vr.Values))
	}

	c.logger.DebugContext(ctx, "Fetched spreadsheet",
		log.NewFields().WithSnapshot(SourceName, len(snap.Sheets), snap.RecordCount()).ToSlice()...)
	return snap, nil
}

func (c *Client) listTabs(ctx context.Context) ([]string, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(fmt.Errorf("get spreadsheet: %w", err))
	}
	tabs := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			tabs = append(tabs, sh.Properties.Title)
		}
	}
	return tabs, nil
}

// classify marks client errors other than rate limiting as permanent.
// Everything else is reported as the source being unavailable.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests {
		return refresh.Permanent(err)
	}
	return fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
}

// quoteTab returns an A1 range covering a whole tab.
func quoteTab(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
