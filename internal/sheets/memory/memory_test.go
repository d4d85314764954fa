package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"harvestdash/internal/classify"
	"harvestdash/internal/metrics"
)

var fixedNow = time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC)

func TestDemoClassifications(t *testing.T) {
	snap := Demo(fixedNow)

	want := map[string]classify.Classification{
		"Revenue":            classify.FinancialRevenue,
		"Expenses":           classify.FinancialExpense,
		"Production Batches": classify.ProductionBatches,
		"Inventory":          classify.General,
		"Harvest Log":        classify.ProductionBatches,
		"Logistics":          classify.PostHarvestLogistics,
	}
	if len(snap.Sheets) != len(want) {
		t.Fatalf("sheets = %d, want %d", len(snap.Sheets), len(want))
	}
	for _, sh := range snap.Sheets {
		if got := classify.Sheet(sh); got != want[sh.Name] {
			t.Errorf("%s classified as %s, want %s", sh.Name, got, want[sh.Name])
		}
	}
}

func TestDemoMetrics(t *testing.T) {
	m := metrics.Compute(Demo(fixedNow), fixedNow)

	if m.Production.ActiveBatches != 3 {
		t.Errorf("ActiveBatches = %d, want 3", m.Production.ActiveBatches)
	}
	if m.Production.TotalExpectedYield != 15500 {
		t.Errorf("TotalExpectedYield = %v, want 15500", m.Production.TotalExpectedYield)
	}
	if m.Production.TotalHarvested != 4650 {
		t.Errorf("TotalHarvested = %v, want 4650", m.Production.TotalHarvested)
	}
	if m.Financial.Revenue != 633500 {
		t.Errorf("Revenue = %v, want 633500", m.Financial.Revenue)
	}
	if m.Financial.Expenses != 215500 {
		t.Errorf("Expenses = %v, want 215500", m.Financial.Expenses)
	}
	if m.Financial.RevenueStreams != 4 || m.Financial.ExpenseCategories != 5 {
		t.Errorf("streams = %d, categories = %d", m.Financial.RevenueStreams, m.Financial.ExpenseCategories)
	}
	if m.Quality.TotalDeliveries != 4 || m.Quality.OnTimeDeliveries != 3 {
		t.Errorf("deliveries = %d/%d", m.Quality.OnTimeDeliveries, m.Quality.TotalDeliveries)
	}
	if math.Abs(m.Quality.AvgQualityScore-7.8333) > 0.001 {
		t.Errorf("AvgQualityScore = %v", m.Quality.AvgQualityScore)
	}
}

func TestDemoDatesFollowClock(t *testing.T) {
	later := fixedNow.AddDate(0, 6, 0)
	m := metrics.Compute(Demo(later), later)
	if m.Production.ActiveBatches != 3 {
		t.Errorf("ActiveBatches = %d, want 3 regardless of clock", m.Production.ActiveBatches)
	}
}

func TestSourceFetch(t *testing.T) {
	s := New(func() time.Time { return fixedNow })
	if s.Name() != SourceName {
		t.Errorf("Name = %q", s.Name())
	}

	snap, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !snap.FetchedAt.Equal(fixedNow) || snap.Source != SourceName {
		t.Errorf("unexpected snapshot meta: %v %q", snap.FetchedAt, snap.Source)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Fetch(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
