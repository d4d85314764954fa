// Package render draws a dashboard for the terminal: a status line, the
// summary cards in a grid and one table row per sheet.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"harvestdash/internal/dashboard"
	"harvestdash/internal/present"
)

const (
	cardWidth       = 24
	defaultPerRow   = 4
	maxHeaderColumn = 48
)

// Renderer writes styled output to one writer. Colors are dropped
// automatically when the writer is not a terminal.
type Renderer struct {
	w      io.Writer
	lr     *lipgloss.Renderer
	styles styles
	perRow int
	now    func() time.Time
}

type Option func(*Renderer)

// WithCardsPerRow sets how many cards share a row.
func WithCardsPerRow(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.perRow = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

func New(w io.Writer, opts ...Option) *Renderer {
	lr := lipgloss.NewRenderer(w)
	r := &Renderer{
		w:      w,
		lr:     lr,
		styles: newStyles(lr),
		perRow: defaultPerRow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dashboard writes the status line, the card grid and the sheet table.
func (r *Renderer) Dashboard(d dashboard.Dashboard) error {
	sections := []string{
		r.statusLine(d.Metadata),
		r.cards(d.Cards),
	}
	if _, err := fmt.Fprintln(r.w, lipgloss.JoinVertical(lipgloss.Left, sections...)); err != nil {
		return err
	}
	return r.Sheets(d.Sheets)
}

func (r *Renderer) statusLine(md dashboard.Metadata) string {
	badge := r.styles.title.Foreground(colorOf(md.StatusStyle.Color)).Render("● " + md.StatusStyle.Label)

	parts := []string{fmt.Sprintf("%s sheets, %s records",
		humanize.Comma(int64(md.SheetCount)), humanize.Comma(int64(md.RecordCount)))}
	if md.Source != "" {
		parts = append(parts, "source "+md.Source)
	}
	if !md.FetchedAt.IsZero() {
		parts = append(parts, "fetched "+humanize.RelTime(md.FetchedAt, r.now(), "ago", "from now"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, badge, "  ", r.styles.subtle.Render(strings.Join(parts, " · ")))
}

func (r *Renderer) cards(cards []present.Card) string {
	if len(cards) == 0 {
		return ""
	}
	var rows []string
	for start := 0; start < len(cards); start += r.perRow {
		end := min(start+r.perRow, len(cards))
		tiles := make([]string, 0, end-start)
		for _, c := range cards[start:end] {
			tiles = append(tiles, r.card(c))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (r *Renderer) card(c present.Card) string {
	accent := colorOf(c.Color)
	body := lipgloss.JoinVertical(lipgloss.Left,
		r.styles.cardTitle.Render(c.Title),
		r.styles.cardValue.Foreground(accent).Render(c.Value+" "+trendMarks[c.Trend]),
		r.styles.subtle.Render(c.Subtitle),
	)
	return r.styles.card.BorderForeground(accent).Render(body)
}

// Sheets writes one aligned row per sheet with its classification and
// row counts.
func (r *Renderer) Sheets(sheets []dashboard.SheetInfo) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	h := r.styles.tableHeader
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		h.Render("Sheet"), h.Render("Type"), h.Render("Records"), h.Render("Complete"), h.Render("Columns"))

	for _, sh := range sheets {
		label := r.lr.NewStyle().Foreground(colorOf(sh.Style.Color)).Render(sh.Style.Label)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			sh.Name,
			label,
			humanize.Comma(int64(sh.RecordCount)),
			humanize.Comma(int64(sh.SubstantiveCount)),
			truncate(strings.Join(sh.Headers, ", "), maxHeaderColumn))
	}
	if len(sheets) == 0 {
		fmt.Fprintln(tw, r.styles.subtle.Render("(no sheets)"))
	}
	return tw.Flush()
}

// Classification writes the sheet name and its classification, one per
// line.
func (r *Renderer) Classification(sheets []dashboard.SheetInfo) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	for _, sh := range sheets {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", sh.Name, sh.Classification, r.styles.subtle.Render(sh.Style.Label))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
