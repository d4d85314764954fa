package present

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestdash/internal/classify"
	"harvestdash/internal/core"
	"harvestdash/internal/metrics"
)

func titles(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Title
	}
	return out
}

func TestCards_NoDeliveriesOmitsOnTime(t *testing.T) {
	cards := Cards(metrics.Set{}, Totals{Sheets: 2, Records: 10}, DefaultFormatter())

	assert.Equal(t, []string{
		TitleRevenue, TitleExpenses, TitleNetProfit, TitleActive,
		TitleHarvested, TitleQuality, TitleRecordCount,
	}, titles(cards))
}

func TestCards_OnTimeFollowsQuality(t *testing.T) {
	m := metrics.Set{Quality: metrics.Quality{
		TotalDeliveries:  4,
		OnTimeDeliveries: 3,
		OnTimePercentage: 75,
	}}
	cards := Cards(m, Totals{}, DefaultFormatter())

	require.Len(t, cards, 8)
	assert.Equal(t, TitleQuality, cards[5].Title)
	assert.Equal(t, TitleOnTime, cards[6].Title)
	assert.Equal(t, TitleRecordCount, cards[7].Title)
	assert.Equal(t, "75.0%", cards[6].Value)
	assert.Equal(t, "3 of 4 deliveries", cards[6].Subtitle)
	assert.Equal(t, TrendNeutral, cards[6].Trend)
}

func TestCards_ValuesAndTrends(t *testing.T) {
	m := metrics.Set{
		Financial: metrics.Financial{
			Revenue: 125000, Expenses: 150000, Profit: -25000, ProfitMargin: -20,
			RevenueStreams: 1, ExpenseCategories: 3,
		},
		Production: metrics.Production{
			ActiveBatches: 2, TotalExpectedYield: 1650, TotalHarvested: 1400, HarvestEfficiency: 84.8,
		},
		Quality: metrics.Quality{AvgQualityScore: 6.5, RejectionRate: 10},
	}
	cards := Cards(m, Totals{Sheets: 1, Records: 1234}, DefaultFormatter())

	byTitle := map[string]Card{}
	for _, c := range cards {
		byTitle[c.Title] = c
	}

	assert.Equal(t, "₹125,000", byTitle[TitleRevenue].Value)
	assert.Equal(t, "1 revenue stream", byTitle[TitleRevenue].Subtitle)
	assert.Equal(t, TrendPositive, byTitle[TitleRevenue].Trend)

	assert.Equal(t, TrendNegative, byTitle[TitleExpenses].Trend)
	assert.Equal(t, "3 expense categories", byTitle[TitleExpenses].Subtitle)

	assert.Equal(t, "-₹25,000", byTitle[TitleNetProfit].Value)
	assert.Equal(t, TrendNegative, byTitle[TitleNetProfit].Trend)
	assert.Equal(t, "red", byTitle[TitleNetProfit].Color)

	assert.Equal(t, "2", byTitle[TitleActive].Value)
	assert.Equal(t, TrendPositive, byTitle[TitleActive].Trend)

	assert.Equal(t, "1,400 kg", byTitle[TitleHarvested].Value)
	assert.Equal(t, TrendPositive, byTitle[TitleHarvested].Trend)

	assert.Equal(t, "6.5/10", byTitle[TitleQuality].Value)
	assert.Equal(t, TrendNegative, byTitle[TitleQuality].Trend)

	assert.Equal(t, "1,234", byTitle[TitleRecordCount].Value)
	assert.Equal(t, "across 1 sheet", byTitle[TitleRecordCount].Subtitle)
}

func TestTrendThresholds(t *testing.T) {
	assert.Equal(t, TrendNeutral, revenueTrend(0))
	assert.Equal(t, TrendNeutral, expenseTrend(0, 500))
	assert.Equal(t, TrendNeutral, expenseTrend(500, 500))
	assert.Equal(t, TrendPositive, profitTrend(0))

	assert.Equal(t, TrendPositive, efficiencyTrend(80))
	assert.Equal(t, TrendNegative, efficiencyTrend(79.9))
	assert.Equal(t, TrendNeutral, efficiencyTrend(0))

	assert.Equal(t, TrendPositive, qualityTrend(7))
	assert.Equal(t, TrendNeutral, qualityTrend(0))

	assert.Equal(t, TrendPositive, onTimeTrend(90))
	assert.Equal(t, TrendNeutral, onTimeTrend(70))
	assert.Equal(t, TrendNegative, onTimeTrend(69.9))
}

func TestFormatter(t *testing.T) {
	f := Formatter{Currency: "$"}
	assert.Equal(t, "$0", f.Money(0))
	assert.Equal(t, "$1,001", f.Money(1000.6))
	assert.Equal(t, "2,500.5", f.Quantity(2500.5))
	assert.Equal(t, "12.3%", f.Percent(12.345))
}

func TestStyles(t *testing.T) {
	assert.Equal(t, "purple", SheetStyle(classify.ProductionBatches).Color)
	assert.Equal(t, "gray", SheetStyle("unknown").Color)
	assert.Equal(t, "Demo data", StatusStyle(core.StatusDemo).Label)
	assert.Equal(t, "red", StatusStyle("").Color)
}
