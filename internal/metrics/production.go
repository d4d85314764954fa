package metrics

import (
	"time"

	"harvestdash/internal/classify"
	"harvestdash/internal/core"
	"harvestdash/internal/fields"
)

// ComputeProduction aggregates production-batch and harvest-tracking rows.
// A batch is active while its expected harvest date is not before now.
func ComputeProduction(snap core.Snapshot, now time.Time) Production {
	var p Production
	for _, rec := range rowsOf(snap, classify.ProductionBatches, classify.HarvestTracking) {
		if d, ok := fields.Date(rec, fields.ExpectedHarvestDate); ok && !d.Before(now) {
			p.ActiveBatches++
		}
		p.TotalExpectedYield += fields.Yield(rec)
		p.TotalHarvested += fields.Amount(rec, fields.Harvested)
	}
	p.HarvestEfficiency = percent(p.TotalHarvested, p.TotalExpectedYield)
	return p
}
