// Package memory serves the built-in demo workbook. It is the data source of
// last resort and the default when no spreadsheet is configured.
package memory

import (
	"context"
	"time"

	"harvestdash/internal/core"
	ports "harvestdash/internal/sheets"
)

const SourceName = "demo"

const dateLayout = "2006-01-02"

// Source returns the demo workbook on every fetch.
type Source struct {
	now func() time.Time
}

var _ ports.SnapshotSource = (*Source)(nil)

// New creates a demo source. A nil clock uses time.Now.
func New(now func() time.Time) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{now: now}
}

func (s *Source) Name() string { return SourceName }

func (s *Source) Fetch(ctx context.Context) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	return Demo(s.now()), nil
}

// Demo builds the demo workbook. Harvest and delivery dates are placed
// relative to now so some batches are always still growing.
func Demo(now time.Time) core.Snapshot {
	day := func(offset int) string {
		return now.AddDate(0, 0, offset).Format(dateLayout)
	}

	return core.Snapshot{
		Source:    SourceName,
		FetchedAt: now,
		Sheets: []core.Sheet{
			core.NewSheet("Revenue",
				[]string{"Date", "Category", "Customer", "Quantity (kg)", "Revenue (₹)"},
				[][]string{
					{day(-28), "Fresh Produce", "Green Mart", "1,200", "₹96,000"},
					{day(-21), "Wholesale", "Agro Traders", "3,500", "₹1,75,000"},
					{day(-14), "Fresh Produce", "City Grocers", "800", "₹64,000"},
					{day(-9), "Export", "Global Foods", "2,000", "₹2,40,000"},
					{day(-3), "Processed Goods", "Spice Co", "450", "₹58,500"},
				}),
			core.NewSheet("Expenses",
				[]string{"Date", "Category", "Paid To", "Description", "Amount (₹)"},
				[][]string{
					{day(-30), "Seeds", "Seed House", "Hybrid tomato seed", "₹42,000"},
					{day(-26), "Fertilizer", "Agri Inputs", "NPK 19:19:19", "₹38,500"},
					{day(-20), "Labour", "Field crew", "Weeding and staking", "₹65,000"},
					{day(-12), "Irrigation", "Water Board", "Drip maintenance", "₹18,000"},
					{day(-5), "Equipment", "Tool Depot", "Harvest crates", "₹22,500"},
				}),
			core.NewSheet("Production Batches",
				[]string{"BatchID", "Crop", "Field", "Planting Date", "Expected Yield (kg)", "Revised Yield (kg)", "Expected Harvest Date", "Status"},
				[][]string{
					{"B-101", "Tomato", "North 1", day(-95), "4,000", "3,600", day(-5), "Harvested"},
					{"B-102", "Chilli", "North 2", day(-80), "1,500", "", day(-2), "Harvested"},
					{"B-103", "Okra", "South 1", day(-40), "2,200", "2,400", day(12), "Growing"},
					{"B-104", "Turmeric", "East 1", day(-120), "3,000", "", day(45), "Growing"},
					{"B-105", "Onion", "West 2", day(-20), "5,000", "", day(70), "Planted"},
				}),
			core.NewSheet("Inventory",
				[]string{"Item", "Category", "Stock (kg)", "Unit Price", "Location"},
				[][]string{
					{"Tomato", "Fresh Produce", "650", "80", "Cold Store A"},
					{"Chilli", "Fresh Produce", "220", "120", "Cold Store A"},
					{"Turmeric Powder", "Processed Goods", "180", "130", "Warehouse"},
					{"Onion Seed", "Inputs", "25", "1,800", "Warehouse"},
				}),
			core.NewSheet("Harvest Log",
				[]string{"BatchID", "Harvest Date", "Harvested (kg)", "Accepted (kg)", "Rejected (kg)", "QC Score"},
				[][]string{
					{"B-101", day(-5), "2,100", "1,950", "150", "8.5"},
					{"B-101", day(-3), "1,300", "1,210", "90", "8"},
					{"B-102", day(-2), "1,250", "1,100", "150", "7"},
				}),
			core.NewSheet("Logistics",
				[]string{"Shipment", "Dispatch Date", "Destination", "Transporter", "OnTime", "Freight Cost (₹)"},
				[][]string{
					{"SH-01", day(-20), "Mumbai", "Fast Freight", "1", "₹6,000"},
					{"SH-02", day(-13), "Pune", "Fast Freight", "1", "₹3,500"},
					{"SH-03", day(-8), "Dubai", "Sea Cargo", "0", "₹18,000"},
					{"SH-04", day(-2), "Nashik", "Local Trucks", "1", "₹2,000"},
				}),
		},
	}
}
