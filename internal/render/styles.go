package render

import (
	"github.com/charmbracelet/lipgloss"

	"harvestdash/internal/present"
)

// palette maps the color names used by the presentation layer to terminal
// colors.
var palette = map[string]lipgloss.Color{
	"green":  lipgloss.Color("#4ECDC4"),
	"red":    lipgloss.Color("#FF6B6B"),
	"amber":  lipgloss.Color("#FFB347"),
	"orange": lipgloss.Color("#FF8C42"),
	"blue":   lipgloss.Color("#5DADE2"),
	"purple": lipgloss.Color("#B39DDB"),
	"indigo": lipgloss.Color("#7986CB"),
	"teal":   lipgloss.Color("#26A69A"),
	"slate":  lipgloss.Color("#90A4AE"),
	"gray":   lipgloss.Color("#888888"),
}

var subtleColor = lipgloss.Color("#666666")

func colorOf(name string) lipgloss.Color {
	if c, ok := palette[name]; ok {
		return c
	}
	return palette["gray"]
}

var trendMarks = map[present.Trend]string{
	present.TrendPositive: "▲",
	present.TrendNegative: "▼",
	present.TrendNeutral:  "•",
}

type styles struct {
	title       lipgloss.Style
	subtle      lipgloss.Style
	card        lipgloss.Style
	cardTitle   lipgloss.Style
	cardValue   lipgloss.Style
	tableHeader lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:  r.NewStyle().Bold(true).MarginBottom(1),
		subtle: r.NewStyle().Foreground(subtleColor),
		card: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333333")).
			Padding(0, 1).
			Width(cardWidth),
		cardTitle: r.NewStyle().Foreground(subtleColor),
		cardValue: r.NewStyle().Bold(true),
		tableHeader: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")),
	}
}
