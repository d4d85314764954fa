// Package published reads a spreadsheet through its public CSV export. Each
// tab is a separate download; no credentials are needed but the tab names
// must be known up front.
package published

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"harvestdash/internal/core"
	"harvestdash/internal/log"
	"harvestdash/internal/refresh"
	ports "harvestdash/internal/sheets"
)

const (
	SourceName = "published"

	// DefaultConcurrency bounds parallel tab downloads.
	DefaultConcurrency = 4

	maxBodyBytes = 8 << 20
)

type Config struct {
	// BaseURL is the CSV export URL of the document, for example
	// https://docs.google.com/spreadsheets/d/<id>/gviz/tq?tqx=out:csv
	// The tab is selected with a "sheet" query parameter.
	BaseURL     string
	Tabs        []string
	Concurrency int
}

type Client struct {
	base   *url.URL
	tabs   []string
	limit  int
	http   *http.Client
	logger *log.Logger
	now    func() time.Time
}

var _ ports.SnapshotSource = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = l.WithComponent(log.ComponentSheets) }
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("missing PUBLISHED_BASE_URL")
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid PUBLISHED_BASE_URL %q", raw)
	}

	var tabs []string
	for _, t := range cfg.Tabs {
		if t = strings.TrimSpace(t); t != "" {
			tabs = append(tabs, t)
		}
	}
	if len(tabs) == 0 {
		return nil, errors.New("missing PUBLISHED_SHEETS")
	}

	c := &Client{
		base:   base,
		tabs:   tabs,
		limit:  cfg.Concurrency,
		http:   &http.Client{},
		logger: log.Discard(),
		now:    time.Now,
	}
	if c.limit <= 0 {
		c.limit = DefaultConcurrency
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return SourceName }

// Fetch downloads every tab concurrently. Any failed tab fails the whole
// snapshot; partial workbooks would skew the totals.
func (c *Client) Fetch(ctx context.Context) (core.Snapshot, error) {
	sheets := make([]core.Sheet, len(c.tabs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for i, tab := range c.tabs {
		g.Go(func() error {
			sh, err := c.fetchTab(gctx, tab)
			if err != nil {
				return fmt.Errorf("tab %q: %w", tab, err)
			}
			sheets[i] = sh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}

	snap := core.Snapshot{Sheets: sheets, Source: SourceName, FetchedAt: c.now().UTC()}
	c.logger.DebugContext(ctx, "Fetched published tabs",
		log.NewFields().WithSnapshot(SourceName, len(snap.Sheets), snap.RecordCount()).ToSlice()...)
	return snap, nil
}

func (c *Client) tabURL(tab string) string {
	u := *c.base
	q := u.Query()
	q.Set("sheet", tab)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetchTab(ctx context.Context, tab string) (core.Sheet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tabURL(tab), nil)
	if err != nil {
		return core.Sheet{}, refresh.Permanent(err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.Sheet{}, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return core.Sheet{}, refresh.Permanent(err)
		}
		return core.Sheet{}, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	// A private document redirects to a login page instead of failing.
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		return core.Sheet{}, refresh.Permanent(errors.New("document is not published (got html)"))
	}

	return ParseCSV(tab, io.LimitReader(resp.Body, maxBodyBytes))
}

// ParseCSV reads a CSV export into a sheet. The first record is the header.
// Ragged rows are accepted.
func ParseCSV(name string, r io.Reader) (core.Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.NewSheet(name, []string{}, nil), nil
	}
	if err != nil {
		return core.Sheet{}, fmt.Errorf("read csv header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Sheet{}, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, row)
	}
	return core.NewSheet(name, headers, rows), nil
}
