// Package metrics derives production, quality and financial figures from a
// snapshot. All functions are pure: the same snapshot and clock value always
// give the same result, and missing sheets or columns yield zeros.
package metrics

import (
	"time"

	"harvestdash/internal/classify"
	"harvestdash/internal/core"
)

type (
	Production struct {
		ActiveBatches      int     `json:"activeBatches"`
		TotalExpectedYield float64 `json:"totalExpectedYield"`
		TotalHarvested     float64 `json:"totalHarvested"`
		HarvestEfficiency  float64 `json:"harvestEfficiency"`
	}

	Quality struct {
		RejectionRate    float64 `json:"rejectionRate"`
		AvgQualityScore  float64 `json:"avgQualityScore"`
		OnTimePercentage float64 `json:"onTimePercentage"`
		TotalDeliveries  int     `json:"totalDeliveries"`
		OnTimeDeliveries int     `json:"onTimeDeliveries"`
		TotalHarvested   float64 `json:"totalHarvested"`
	}

	// CashFlow is one side of the ledger: the summed amount, the
	// sheet/column pairs that contributed to it and the distinct categories
	// seen on contributing rows, in first-seen order.
	CashFlow struct {
		Total      float64  `json:"total"`
		Sources    []string `json:"sources"`
		Categories []string `json:"categories"`
	}

	Financial struct {
		Revenue           float64  `json:"revenue"`
		Expenses          float64  `json:"expenses"`
		Profit            float64  `json:"profit"`
		ProfitMargin      float64  `json:"profitMargin"`
		RevenueStreams    int      `json:"revenueStreams"`
		ExpenseCategories int      `json:"expenseCategories"`
		RevenueBreakdown  CashFlow `json:"revenueBreakdown"`
		ExpenseBreakdown  CashFlow `json:"expenseBreakdown"`
	}

	// Set bundles every metric family for one snapshot.
	Set struct {
		Production Production `json:"production"`
		Quality    Quality    `json:"quality"`
		Financial  Financial  `json:"financial"`
	}
)

// Compute runs every aggregator over snap. now only affects
// Production.ActiveBatches.
func Compute(snap core.Snapshot, now time.Time) Set {
	return Set{
		Production: ComputeProduction(snap, now),
		Quality:    ComputeQuality(snap),
		Financial:  ComputeFinancial(snap),
	}
}

func percent(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den * 100
}

// rowsOf yields the rows of every sheet whose classification is in classes.
func rowsOf(snap core.Snapshot, classes ...classify.Classification) []core.Record {
	var out []core.Record
	for _, sh := range snap.Sheets {
		c := classify.Sheet(sh)
		for _, want := range classes {
			if c == want {
				out = append(out, sh.Rows...)
				break
			}
		}
	}
	return out
}
