// Package fields resolves logical fields from records whose column names vary
// between spreadsheets. Each logical field is an ordered list of synonyms;
// the first synonym present in a record wins.
package fields

import (
	"strings"
	"time"

	"harvestdash/internal/core"
	"harvestdash/internal/normalize"
)

// Candidates is an ordered list of column-name synonyms, highest priority first.
type Candidates []string

// Synonym tables. Order encodes precedence.
var (
	RevisedYield = Candidates{
		"Revised Yield", "RevisedYield", "Revised_Yield", "Revised Yield (kg)",
		"Revised Estimate", "Estimated Yield", "EstimatedYield",
	}
	ExpectedYield = Candidates{
		"Expected Yield", "ExpectedYield", "Expected_Yield", "Expected Yield (kg)",
		"Planned Yield", "PlannedYield", "Target Yield", "TargetYield",
	}
	ExpectedHarvestDate = Candidates{
		"Expected Harvest Date", "ExpectedHarvestDate", "Expected_Harvest_Date",
		"Expected Harvest", "Harvest Due", "Harvest Date", "HarvestDate",
	}
	Harvested = Candidates{
		"Harvested", "Harvested Qty", "HarvestedQty", "Harvested Quantity",
		"Harvested (kg)", "Quantity Harvested", "Actual Yield", "ActualYield",
	}
	Rejected = Candidates{
		"Rejected", "Rejected Qty", "RejectedQty", "Rejected Quantity", "Rejected (kg)",
	}
	Accepted = Candidates{
		"Accepted", "Accepted Qty", "AcceptedQty", "Accepted Quantity", "Accepted (kg)",
	}
	QCScore = Candidates{
		"QC Score", "QCScore", "QC_Score", "Quality Score", "QualityScore", "Grade Score",
	}
	OnTime = Candidates{
		"OnTime", "On Time", "On-Time", "On_Time", "OnTimeDelivery", "On Time Delivery",
	}
	// descriptive fields used to name revenue streams and expense categories
	Category = Candidates{
		"Category", "Type", "Source", "Stream", "Description", "Item", "Product",
		"Crop", "Customer", "Vendor", "Supplier", "Name",
	}
)

// Lookup returns the raw value of the first candidate present in rec.
// A present but blank cell still counts as present.
func Lookup(rec core.Record, c Candidates) (string, bool) {
	for _, name := range c {
		if v, ok := rec[name]; ok {
			return v, true
		}
	}
	return "", false
}

// Amount resolves c in rec and normalizes it to a number, 0 when absent.
func Amount(rec core.Record, c Candidates) float64 {
	v, ok := Lookup(rec, c)
	if !ok {
		return 0
	}
	return normalize.Amount(v)
}

// Date resolves c in rec and parses it as a date.
func Date(rec core.Record, c Candidates) (time.Time, bool) {
	v, ok := Lookup(rec, c)
	if !ok {
		return time.Time{}, false
	}
	return normalize.Date(v)
}

// Text returns the first candidate holding a non-empty value, trimmed.
// Unlike Lookup it skips blank and placeholder cells.
func Text(rec core.Record, c Candidates) string {
	for _, name := range c {
		v, ok := rec[name]
		if !ok || normalize.IsEmpty(v) {
			continue
		}
		return strings.TrimSpace(v)
	}
	return ""
}

// Yield is the revised yield estimate when it resolves to a nonzero value,
// otherwise the expected yield.
func Yield(rec core.Record) float64 {
	if r := Amount(rec, RevisedYield); r != 0 {
		return r
	}
	return Amount(rec, ExpectedYield)
}
