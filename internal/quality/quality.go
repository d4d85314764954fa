// Package quality decides which rows carry real business information and
// orders them for display. It never drops rows from aggregation input.
package quality

import (
	"slices"
	"strings"

	"harvestdash/internal/core"
	"harvestdash/internal/normalize"
)

const minMeaningfulFields = 2

var (
	junkTokens = map[string]struct{}{
		"tbd":     {},
		"tbc":     {},
		"pending": {},
		"temp":    {},
		"test":    {},
		"na":      {},
		"n/a":     {},
	}

	// substrings of a lowercased field name that mark it as important
	importantKeywords = []string{"id", "name", "amount", "qty", "price", "cost"}

	// ImportantFields are matched exactly and also drive ranking.
	ImportantFields = []string{
		"BatchID", "Batch ID", "Date", "Category", "Crop", "Product", "Item",
		"Supplier", "Customer", "Quantity", "Revenue", "Expense", "Status",
	}
)

// Meaningful reports whether a cell holds real data: not empty, not a
// placeholder, not a junk token such as "TBD".
func Meaningful(v string) bool {
	v = strings.TrimSpace(v)
	if normalize.IsEmpty(v) {
		return false
	}
	_, junk := junkTokens[strings.ToLower(v)]
	return !junk
}

// IsImportantField reports whether a column name denotes an identifying or
// monetary field.
func IsImportantField(name string) bool {
	if slices.Contains(ImportantFields, name) {
		return true
	}
	lower := strings.ToLower(name)
	for _, k := range importantKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IsSubstantive requires both at least two meaningful fields and at least
// one meaningful important field.
func IsSubstantive(rec core.Record) bool {
	meaningful := 0
	important := false
	for k, v := range rec {
		if !Meaningful(v) {
			continue
		}
		meaningful++
		if !important && IsImportantField(k) {
			important = true
		}
	}
	return meaningful >= minMeaningfulFields && important
}

// Completeness counts the fixed important fields present with meaningful values.
func Completeness(rec core.Record) int {
	n := 0
	for _, f := range ImportantFields {
		if v, ok := rec[f]; ok && Meaningful(v) {
			n++
		}
	}
	return n
}

// Rank returns the substantive records sorted by Completeness, most complete
// first. Ties keep their input order.
func Rank(records []core.Record) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if IsSubstantive(r) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Record) int {
		return Completeness(b) - Completeness(a)
	})
	return out
}
