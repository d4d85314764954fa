package fields

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestdash/internal/core"
)

func TestLookup_PriorityOrder(t *testing.T) {
	rec := core.Record{"ExpectedYield": "100", "Expected Yield": "200"}

	v, ok := Lookup(rec, ExpectedYield)
	require.True(t, ok)
	assert.Equal(t, "200", v, "earlier synonym must win")

	_, ok = Lookup(rec, QCScore)
	assert.False(t, ok)
}

func TestLookup_BlankCellIsPresent(t *testing.T) {
	rec := core.Record{"Harvested": "", "HarvestedQty": "50"}

	v, ok := Lookup(rec, Harvested)
	require.True(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, 0.0, Amount(rec, Harvested))
}

func TestAmount(t *testing.T) {
	rec := core.Record{"Rejected Qty": "1,200 kg"}
	assert.Equal(t, 1200.0, Amount(rec, Rejected))
	assert.Equal(t, 0.0, Amount(rec, Accepted))
}

func TestDate(t *testing.T) {
	rec := core.Record{"Expected Harvest Date": "45901"}
	d, ok := Date(rec, ExpectedHarvestDate)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), d)

	_, ok = Date(core.Record{}, ExpectedHarvestDate)
	assert.False(t, ok)
}

func TestText_SkipsPlaceholders(t *testing.T) {
	rec := core.Record{"Category": "n/a", "Type": "  ", "Source": " Retail "}
	assert.Equal(t, "Retail", Text(rec, Category))
	assert.Equal(t, "", Text(core.Record{"Notes": "x"}, Category))
}

func TestYield_RevisedOverridesExpected(t *testing.T) {
	tests := []struct {
		name string
		rec  core.Record
		want float64
	}{
		{"revised wins", core.Record{"Revised Yield": "80", "Expected Yield": "100"}, 80},
		{"zero revised falls back", core.Record{"Revised Yield": "0", "Expected Yield": "100"}, 100},
		{"blank revised falls back", core.Record{"RevisedYield": "", "ExpectedYield": "1,000"}, 1000},
		{"only expected", core.Record{"Planned Yield": "42"}, 42},
		{"neither", core.Record{"Crop": "Tomato"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Yield(tt.rec))
		})
	}
}
