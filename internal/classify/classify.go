// Package classify infers the business purpose of a spreadsheet tab from its
// name and header row.
package classify

import (
	"strings"

	"harvestdash/internal/core"
)

// Classification is the semantic category of a sheet.
type Classification string

const (
	ProductionBatches    Classification = "production-batches"
	HarvestTracking      Classification = "harvest-tracking"
	SourcingProcurement  Classification = "sourcing-procurement"
	PostHarvestLogistics Classification = "post-harvest-logistics"
	FinancialRevenue     Classification = "financial-revenue"
	FinancialExpense     Classification = "financial-expense"
	ProductionSettings   Classification = "production-settings"
	General              Classification = "general"
)

func (c Classification) String() string { return string(c) }

// Rule matches a sheet either by a keyword in its uppercased name or by a
// case-sensitive substring of any header.
type Rule struct {
	Class    Classification
	Keywords []string
	Headers  []string
}

// Rules is the ordered classification table. The first matching rule wins,
// so a sheet named "Batch_Revenue" is production-batches, not revenue.
var Rules = []Rule{
	{
		Class:    ProductionBatches,
		Keywords: []string{"BATCH", "PRODUCTION", "CULTIVATION"},
		Headers:  []string{"BatchID", "Batch ID", "Batch_ID", "Expected Yield", "ExpectedYield", "Planting Date"},
	},
	{
		Class:    HarvestTracking,
		Keywords: []string{"HARVEST"},
		Headers:  []string{"Harvested", "HarvestDate", "Harvest Date", "QC Score", "QCScore"},
	},
	{
		Class:    SourcingProcurement,
		Keywords: []string{"SOURCING", "PROCUREMENT", "SUPPLIER", "PURCHASE"},
		Headers:  []string{"Supplier", "Vendor", "PO Number", "PONumber"},
	},
	{
		Class:    PostHarvestLogistics,
		Keywords: []string{"LOGISTICS", "DELIVERY", "SHIPMENT", "DISPATCH", "POST-HARVEST", "POST HARVEST"},
		Headers:  []string{"OnTime", "On Time", "Delivery Date", "DeliveryDate", "Shipment", "Transporter"},
	},
	{
		Class:    FinancialRevenue,
		Keywords: []string{"REVENUE", "SALES", "INCOME"},
		Headers:  []string{"Revenue", "Sales", "Income"},
	},
	{
		Class:    FinancialExpense,
		Keywords: []string{"EXPENSE", "COST", "SPEND"},
		Headers:  []string{"Expense", "Cost"},
	},
	{
		Class:    ProductionSettings,
		Keywords: []string{"SETTINGS", "CONFIG", "PARAMETER", "MASTER"},
		Headers:  []string{"Setting", "Parameter"},
	},
}

// Classify assigns a classification using the default rule table.
func Classify(sheetName string, headers []string) Classification {
	return ClassifyWith(Rules, sheetName, headers)
}

// ClassifyWith evaluates rules in order and returns the first match, or
// General when none matches.
func ClassifyWith(rules []Rule, sheetName string, headers []string) Classification {
	upper := strings.ToUpper(sheetName)
	for _, r := range rules {
		if r.matchesName(upper) || r.matchesHeaders(headers) {
			return r.Class
		}
	}
	return General
}

// Sheet classifies a core sheet.
func Sheet(sh core.Sheet) Classification {
	return Classify(sh.Name, sh.Headers)
}

func (r Rule) matchesName(upper string) bool {
	for _, k := range r.Keywords {
		if strings.Contains(upper, k) {
			return true
		}
	}
	return false
}

func (r Rule) matchesHeaders(headers []string) bool {
	for _, h := range headers {
		for _, want := range r.Headers {
			if strings.Contains(h, want) {
				return true
			}
		}
	}
	return false
}

// All lists every classification in table order, General last.
func All() []Classification {
	out := make([]Classification, 0, len(Rules)+1)
	for _, r := range Rules {
		out = append(out, r.Class)
	}
	return append(out, General)
}
