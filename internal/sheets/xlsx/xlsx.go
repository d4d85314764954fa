// Package xlsx reads a local workbook. The file is reopened on every fetch so
// edits saved between refreshes show up.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"harvestdash/internal/core"
	"harvestdash/internal/log"
	"harvestdash/internal/refresh"
	ports "harvestdash/internal/sheets"
)

const SourceName = "xlsx"

type Source struct {
	path   string
	logger *log.Logger
	now    func() time.Time
}

var _ ports.SnapshotSource = (*Source)(nil)

type Option func(*Source)

func WithLogger(l *log.Logger) Option {
	return func(s *Source) { s.logger = l.WithComponent(log.ComponentSheets) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

func New(path string, opts ...Option) (*Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("missing XLSX_PATH")
	}
	s := &Source{path: path, logger: log.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Source) Name() string { return SourceName }

// Fetch reads every visible worksheet in workbook order. Cell values are
// returned as formatted in the workbook.
func (s *Source) Fetch(ctx context.Context) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}

	wb, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Snapshot{}, refresh.Permanent(fmt.Errorf("open workbook: %w", err))
		}
		return core.Snapshot{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := wb.Close(); cerr != nil {
			s.logger.Warn("Failed to close workbook", "path", s.path, "error", cerr)
		}
	}()

	snap := core.Snapshot{Source: SourceName, FetchedAt: s.now().UTC()}
	for _, name := range wb.GetSheetList() {
		if visible, err := wb.GetSheetVisible(name); err == nil && !visible {
			continue
		}
		rows, err := wb.GetRows(name)
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("read sheet %q: %w", name, err)
		}
		snap.Sheets = append(snap.Sheets, toSheet(name, rows))
	}

	s.logger.DebugContext(ctx, "Read workbook",
		log.NewFields().WithSnapshot(SourceName, len(snap.Sheets), snap.RecordCount()).ToSlice()...)
	return snap, nil
}

func toSheet(name string, rows [][]string) core.Sheet {
	if len(rows) == 0 {
		return core.NewSheet(name, []string{}, nil)
	}
	return core.NewSheet(name, rows[0], rows[1:])
}

