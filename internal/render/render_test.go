package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestdash/internal/core"
	"harvestdash/internal/dashboard"
	"harvestdash/internal/present"
	"harvestdash/internal/sheets/memory"
)

var now = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func demoDashboard(status core.ConnectionStatus) dashboard.Dashboard {
	snap := memory.Demo(now)
	snap.FetchedAt = now.Add(-5 * time.Minute)
	return dashboard.Assemble(snap, dashboard.Options{Now: now, Status: status})
}

func TestDashboard(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithClock(func() time.Time { return now }))

	require.NoError(t, r.Dashboard(demoDashboard(core.StatusConnected)))
	out := buf.String()

	assert.NotContains(t, out, "\x1b[", "no color codes when writing to a buffer")
	for _, want := range []string{
		"● Live",
		"6 sheets",
		"source demo",
		"5 minutes ago",
		present.TitleRevenue,
		"₹633,500 ▲",
		present.TitleOnTime,
		"Production Batches",
		"Post-Harvest Logistics",
	} {
		assert.Contains(t, out, want)
	}
}

func TestDashboard_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf).Dashboard(dashboard.Empty(now)))

	out := buf.String()
	assert.Contains(t, out, "Disconnected")
	assert.Contains(t, out, "(no sheets)")
	assert.NotContains(t, out, "fetched")
}

func TestCardsPerRow(t *testing.T) {
	d := demoDashboard(core.StatusDemo)
	var wide, narrow bytes.Buffer
	require.NoError(t, New(&wide, WithCardsPerRow(4)).Dashboard(d))
	require.NoError(t, New(&narrow, WithCardsPerRow(1)).Dashboard(d))

	assert.Greater(t, strings.Count(narrow.String(), "\n"), strings.Count(wide.String(), "\n"))
}

func TestClassification(t *testing.T) {
	var buf bytes.Buffer
	d := demoDashboard(core.StatusDemo)
	require.NoError(t, New(&buf).Classification(d.Sheets))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "Revenue")
	assert.Contains(t, lines[0], "financial-revenue")
	assert.Contains(t, lines[3], "general")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "₹₹₹₹…", truncate("₹₹₹₹₹₹", 5))
}
