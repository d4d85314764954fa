package metrics

import (
	"strings"

	"harvestdash/internal/core"
	"harvestdash/internal/fields"
	"harvestdash/internal/normalize"
)

// Column keyword tables, matched against lowercased headers.
var (
	RevenueKeywords = []string{"revenue", "income", "sales"}
	ExpenseKeywords = []string{"expense", "cost", "amount", "outstanding"}
	CurrencySymbols = []string{"₹", "$", "€", "£", "¥"}
)

// IsRevenueColumn reports whether a header names an inflow.
func IsRevenueColumn(header string) bool {
	return containsAny(strings.ToLower(header), RevenueKeywords)
}

// IsExpenseColumn reports whether a header names an outflow. Revenue columns
// are never expense columns; a bare currency header counts as an expense.
func IsExpenseColumn(header string) bool {
	if IsRevenueColumn(header) {
		return false
	}
	lower := strings.ToLower(header)
	return containsAny(lower, ExpenseKeywords) || containsAny(header, CurrencySymbols)
}

// Revenue sums every revenue column across all sheets regardless of how the
// sheet is classified.
func Revenue(snap core.Snapshot) CashFlow {
	return scan(snap, IsRevenueColumn)
}

// Expenses sums every expense column across all sheets.
func Expenses(snap core.Snapshot) CashFlow {
	return scan(snap, IsExpenseColumn)
}

// ComputeFinancial combines both sides of the ledger.
func ComputeFinancial(snap core.Snapshot) Financial {
	rev := Revenue(snap)
	exp := Expenses(snap)
	f := Financial{
		Revenue:           rev.Total,
		Expenses:          exp.Total,
		Profit:            rev.Total - exp.Total,
		RevenueStreams:    len(rev.Categories),
		ExpenseCategories: len(exp.Categories),
		RevenueBreakdown:  rev,
		ExpenseBreakdown:  exp,
	}
	if f.Revenue > 0 {
		f.ProfitMargin = f.Profit / f.Revenue * 100
	}
	return f
}

func scan(snap core.Snapshot, match func(string) bool) CashFlow {
	cf := CashFlow{Sources: []string{}, Categories: []string{}}
	seenSource := map[string]bool{}
	seenCategory := map[string]bool{}

	for _, sh := range snap.Sheets {
		var cols []string
		for _, h := range sh.Headers {
			if match(h) {
				cols = append(cols, h)
			}
		}
		if len(cols) == 0 {
			continue
		}

		for _, rec := range sh.Rows {
			rowTotal := 0.0
			for _, col := range cols {
				v := normalize.Amount(rec[col])
				if v == 0 {
					continue
				}
				rowTotal += v
				src := sh.Name + ": " + col
				if !seenSource[src] {
					seenSource[src] = true
					cf.Sources = append(cf.Sources, src)
				}
			}
			if rowTotal == 0 {
				continue
			}
			cf.Total += rowTotal
			if cat := fields.Text(rec, fields.Category); cat != "" && !seenCategory[cat] {
				seenCategory[cat] = true
				cf.Categories = append(cf.Categories, cat)
			}
		}
	}
	return cf
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
