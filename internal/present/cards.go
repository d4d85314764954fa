// Package present maps typed metrics onto display-ready summary cards.
// Nothing here computes business figures; it only formats them and derives
// trend, color and icon from fixed thresholds.
package present

import (
	"fmt"

	"harvestdash/internal/metrics"
)

type Trend string

const (
	TrendPositive Trend = "positive"
	TrendNeutral  Trend = "neutral"
	TrendNegative Trend = "negative"
)

// Card titles, in display order.
const (
	TitleRevenue     = "Revenue"
	TitleExpenses    = "Expenses"
	TitleNetProfit   = "Net Profit"
	TitleActive      = "Active Batches"
	TitleHarvested   = "Harvested"
	TitleQuality     = "Quality Score"
	TitleOnTime      = "On-Time Delivery"
	TitleRecordCount = "Total Records"
)

// Card is a single KPI tile.
type Card struct {
	Title    string `json:"title"`
	Value    string `json:"value"`
	Subtitle string `json:"subtitle"`
	Trend    Trend  `json:"trend"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
}

// Totals are the snapshot-level counts shown on the last card.
type Totals struct {
	Sheets  int
	Records int
}

// Cards builds the summary cards in their fixed order. The on-time card is
// present only when at least one delivery was recorded.
func Cards(m metrics.Set, t Totals, f Formatter) []Card {
	fin, prod, q := m.Financial, m.Production, m.Quality

	cards := []Card{
		{
			Title:    TitleRevenue,
			Value:    f.Money(fin.Revenue),
			Subtitle: plural(fin.RevenueStreams, "revenue stream", "revenue streams"),
			Trend:    revenueTrend(fin.Revenue),
			Color:    "green",
			Icon:     "trending-up",
		},
		{
			Title:    TitleExpenses,
			Value:    f.Money(fin.Expenses),
			Subtitle: plural(fin.ExpenseCategories, "expense category", "expense categories"),
			Trend:    expenseTrend(fin.Revenue, fin.Expenses),
			Color:    "red",
			Icon:     "receipt",
		},
		{
			Title:    TitleNetProfit,
			Value:    f.Money(fin.Profit),
			Subtitle: f.Percent(fin.ProfitMargin) + " margin",
			Trend:    profitTrend(fin.Profit),
			Color:    profitColor(fin.Profit),
			Icon:     "wallet",
		},
		{
			Title:    TitleActive,
			Value:    f.Count(prod.ActiveBatches),
			Subtitle: f.Quantity(prod.TotalExpectedYield) + " expected",
			Trend:    activeTrend(prod.ActiveBatches),
			Color:    "purple",
			Icon:     "sprout",
		},
		{
			Title:    TitleHarvested,
			Value:    f.Quantity(prod.TotalHarvested),
			Subtitle: f.Percent(prod.HarvestEfficiency) + " efficiency",
			Trend:    efficiencyTrend(prod.HarvestEfficiency),
			Color:    "amber",
			Icon:     "wheat",
		},
		{
			Title:    TitleQuality,
			Value:    fmt.Sprintf("%.1f/10", q.AvgQualityScore),
			Subtitle: f.Percent(q.RejectionRate) + " rejection rate",
			Trend:    qualityTrend(q.AvgQualityScore),
			Color:    "teal",
			Icon:     "award",
		},
	}

	if q.TotalDeliveries > 0 {
		cards = append(cards, Card{
			Title:    TitleOnTime,
			Value:    f.Percent(q.OnTimePercentage),
			Subtitle: fmt.Sprintf("%d of %d deliveries", q.OnTimeDeliveries, q.TotalDeliveries),
			Trend:    onTimeTrend(q.OnTimePercentage),
			Color:    "indigo",
			Icon:     "truck",
		})
	}

	return append(cards, Card{
		Title:    TitleRecordCount,
		Value:    f.Count(t.Records),
		Subtitle: "across " + plural(t.Sheets, "sheet", "sheets"),
		Trend:    TrendNeutral,
		Color:    "gray",
		Icon:     "database",
	})
}

func revenueTrend(revenue float64) Trend {
	if revenue > 0 {
		return TrendPositive
	}
	return TrendNeutral
}

func expenseTrend(revenue, expenses float64) Trend {
	if revenue > 0 && expenses > revenue {
		return TrendNegative
	}
	return TrendNeutral
}

func profitTrend(profit float64) Trend {
	if profit >= 0 {
		return TrendPositive
	}
	return TrendNegative
}

func profitColor(profit float64) string {
	if profit >= 0 {
		return "blue"
	}
	return "red"
}

func activeTrend(n int) Trend {
	if n > 0 {
		return TrendPositive
	}
	return TrendNeutral
}

func efficiencyTrend(pct float64) Trend {
	switch {
	case pct >= 80:
		return TrendPositive
	case pct == 0:
		return TrendNeutral
	default:
		return TrendNegative
	}
}

func qualityTrend(score float64) Trend {
	switch {
	case score >= 7:
		return TrendPositive
	case score == 0:
		return TrendNeutral
	default:
		return TrendNegative
	}
}

func onTimeTrend(pct float64) Trend {
	switch {
	case pct >= 90:
		return TrendPositive
	case pct >= 70:
		return TrendNeutral
	default:
		return TrendNegative
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
