// Package dashboard assembles a snapshot into the single object handed to
// renderers: metadata, metrics, summary cards and per-sheet descriptors.
package dashboard

import (
	"time"

	"harvestdash/internal/classify"
	"harvestdash/internal/core"
	"harvestdash/internal/metrics"
	"harvestdash/internal/present"
	"harvestdash/internal/quality"
)

const DefaultPreviewRows = 5

type (
	Metadata struct {
		SheetCount  int                   `json:"sheetCount"`
		RecordCount int                   `json:"recordCount"`
		LastUpdated time.Time             `json:"lastUpdated"`
		FetchedAt   time.Time             `json:"fetchedAt"`
		Status      core.ConnectionStatus `json:"status"`
		StatusStyle present.Style         `json:"statusStyle"`
		Source      string                `json:"source"`
	}

	// SheetInfo describes one tab for display.
	SheetInfo struct {
		Name             string                  `json:"name"`
		Classification   classify.Classification `json:"classification"`
		Style            present.Style           `json:"style"`
		Headers          []string                `json:"headers"`
		RecordCount      int                     `json:"recordCount"`
		SubstantiveCount int                     `json:"substantiveCount"`
		LastRecord       core.Record             `json:"lastRecord"`
		Preview          []core.Record           `json:"preview"`
	}

	// Dashboard is always fully populated: empty input gives zeros and empty
	// slices, never nil fields.
	Dashboard struct {
		Metadata   Metadata           `json:"metadata"`
		Production metrics.Production `json:"production"`
		Quality    metrics.Quality    `json:"quality"`
		Financial  metrics.Financial  `json:"financial"`
		Cards      []present.Card     `json:"cards"`
		Sheets     []SheetInfo        `json:"sheets"`
	}

	Options struct {
		Now         time.Time
		Status      core.ConnectionStatus
		Formatter   present.Formatter
		PreviewRows int
	}
)

// Assemble computes every metric family over snap and merges the results
// with sheet descriptors and summary cards. The output depends only on snap
// and opts.
func Assemble(snap core.Snapshot, opts Options) Dashboard {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.Status == "" {
		opts.Status = core.StatusConnected
	}
	if opts.Formatter == (present.Formatter{}) {
		opts.Formatter = present.DefaultFormatter()
	}

	m := metrics.Compute(snap, opts.Now)
	sheets := make([]SheetInfo, 0, len(snap.Sheets))
	for _, sh := range snap.Sheets {
		sheets = append(sheets, Describe(sh, opts.PreviewRows))
	}
	totals := present.Totals{Sheets: len(snap.Sheets), Records: snap.RecordCount()}

	return Dashboard{
		Metadata: Metadata{
			SheetCount:  totals.Sheets,
			RecordCount: totals.Records,
			LastUpdated: opts.Now,
			FetchedAt:   snap.FetchedAt,
			Status:      opts.Status,
			StatusStyle: present.StatusStyle(opts.Status),
			Source:      snap.Source,
		},
		Production: m.Production,
		Quality:    m.Quality,
		Financial:  m.Financial,
		Cards:      present.Cards(m, totals, opts.Formatter),
		Sheets:     sheets,
	}
}

// Describe builds the descriptor of a single sheet. Preview holds the most
// complete substantive rows, at most previewRows of them.
func Describe(sh core.Sheet, previewRows int) SheetInfo {
	c := classify.Sheet(sh)
	ranked := quality.Rank(sh.Rows)

	preview := ranked
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	last := core.Record{}
	if n := len(sh.Rows); n > 0 {
		last = sh.Rows[n-1]
	}
	headers := sh.Headers
	if headers == nil {
		headers = []string{}
	}

	return SheetInfo{
		Name:             sh.Name,
		Classification:   c,
		Style:            present.SheetStyle(c),
		Headers:          headers,
		RecordCount:      len(sh.Rows),
		SubstantiveCount: len(ranked),
		LastRecord:       last,
		Preview:          preview,
	}
}

// Empty is the dashboard shown before any snapshot has been assembled.
func Empty(now time.Time) Dashboard {
	return Assemble(core.Snapshot{}, Options{Now: now, Status: core.StatusDisconnected})
}

// Detail is a sheet descriptor plus every substantive row in ranked order.
type Detail struct {
	SheetInfo
	Records []core.Record `json:"records"`
}

// SheetDetail looks up one sheet of snap by name.
func SheetDetail(snap core.Snapshot, name string, previewRows int) (Detail, error) {
	sh, err := snap.Sheet(name)
	if err != nil {
		return Detail{}, err
	}
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return Detail{SheetInfo: Describe(sh, previewRows), Records: quality.Rank(sh.Rows)}, nil
}
