package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Record is one spreadsheet row keyed by (normalized) header.
	Record map[string]string

	// Sheet is a single spreadsheet tab: ordered headers plus untyped rows.
	Sheet struct {
		Name    string
		Headers []string
		Rows    []Record
	}

	// Snapshot is one complete fetch of every tab, in tab order.
	// It is treated as immutable once built; a refresh replaces it wholesale.
	Snapshot struct {
		Sheets    []Sheet
		FetchedAt time.Time
		Source    string
	}
)

var (
	ErrNoSnapshot        = errors.New("no snapshot available")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSheetNotFound     = errors.New("sheet not found")
)

// NewSheet builds a Sheet from a header row and raw value rows.
// Blank headers get a positional name ("Column 3") and repeated headers
// are suffixed ("Amount_2") so every cell keeps a distinct key.
// Short rows are padded with empty strings; extra cells are dropped.
func NewSheet(name string, headers []string, rows [][]string) Sheet {
	hs := NormalizeHeaders(headers)
	out := Sheet{Name: name, Headers: hs, Rows: make([]Record, 0, len(rows))}
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		rec := make(Record, len(hs))
		for i, h := range hs {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			rec[h] = v
		}
		out.Rows = append(out.Rows, rec)
	}
	return out
}

// NormalizeHeaders trims headers, names blanks by position and
// de-duplicates repeats. A suffixed name never takes a name that appears
// verbatim elsewhere in the row, so every output is unique.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	reserved := make(map[string]bool, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		out[i] = h
		reserved[h] = true
	}

	used := make(map[string]bool, len(headers))
	next := make(map[string]int)
	for i, h := range out {
		if !used[h] {
			used[h] = true
			continue
		}
		n := max(next[h], 2)
		cand := fmt.Sprintf("%s_%d", h, n)
		for used[cand] || reserved[cand] {
			n++
			cand = fmt.Sprintf("%s_%d", h, n)
		}
		next[h] = n + 1
		used[cand] = true
		out[i] = cand
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Sheet returns the tab with the given name.
func (s Snapshot) Sheet(name string) (Sheet, error) {
	for _, sh := range s.Sheets {
		if sh.Name == name {
			return sh, nil
		}
	}
	return Sheet{}, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
}

// RecordCount returns the number of rows across all tabs.
func (s Snapshot) RecordCount() int {
	n := 0
	for _, sh := range s.Sheets {
		n += len(sh.Rows)
	}
	return n
}

// IsZero reports whether the snapshot carries no tabs at all.
func (s Snapshot) IsZero() bool {
	return len(s.Sheets) == 0
}
