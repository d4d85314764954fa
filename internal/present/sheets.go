package present

import (
	"harvestdash/internal/classify"
	"harvestdash/internal/core"
)

// Style is the color and icon a sheet is drawn with.
type Style struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var sheetStyles = map[classify.Classification]Style{
	classify.ProductionBatches:    {"Production Batches", "purple", "sprout"},
	classify.HarvestTracking:      {"Harvest Tracking", "amber", "wheat"},
	classify.SourcingProcurement:  {"Sourcing & Procurement", "orange", "shopping-cart"},
	classify.PostHarvestLogistics: {"Post-Harvest Logistics", "indigo", "truck"},
	classify.FinancialRevenue:     {"Revenue", "green", "trending-up"},
	classify.FinancialExpense:     {"Expenses", "red", "receipt"},
	classify.ProductionSettings:   {"Settings", "slate", "settings"},
	classify.General:              {"General", "gray", "table"},
}

// SheetStyle returns the display style for a classification.
func SheetStyle(c classify.Classification) Style {
	if s, ok := sheetStyles[c]; ok {
		return s
	}
	return sheetStyles[classify.General]
}

var statusStyles = map[core.ConnectionStatus]Style{
	core.StatusConnected:    {"Live", "green", "wifi"},
	core.StatusCached:       {"Cached", "amber", "clock"},
	core.StatusDemo:         {"Demo data", "blue", "flask"},
	core.StatusDisconnected: {"Disconnected", "red", "wifi-off"},
}

// StatusStyle returns the indicator shown for a connection status.
func StatusStyle(s core.ConnectionStatus) Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return statusStyles[core.StatusDisconnected]
}
