package metrics

import (
	"strings"

	"harvestdash/internal/classify"
	"harvestdash/internal/core"
	"harvestdash/internal/fields"
	"harvestdash/internal/normalize"
)

const onTimeFlag = "1"

// ComputeQuality aggregates harvest rows for rejection and QC figures and
// logistics rows for delivery punctuality. Harvest logs that carry a batch
// column classify as production-batches, so both classes are read.
func ComputeQuality(snap core.Snapshot) Quality {
	var (
		q                  Quality
		rejected, accepted float64
		qcSum              float64
		qcRows             int
	)

	for _, rec := range rowsOf(snap, classify.ProductionBatches, classify.HarvestTracking) {
		q.TotalHarvested += fields.Amount(rec, fields.Harvested)
		rejected += fields.Amount(rec, fields.Rejected)
		accepted += fields.Amount(rec, fields.Accepted)
		if v, ok := fields.Lookup(rec, fields.QCScore); ok && !normalize.IsEmpty(v) {
			qcSum += normalize.Amount(v)
			qcRows++
		}
	}

	den := q.TotalHarvested
	if den <= 0 {
		den = accepted + rejected
	}
	q.RejectionRate = percent(rejected, den)
	if qcRows > 0 {
		q.AvgQualityScore = qcSum / float64(qcRows)
	}

	for _, rec := range rowsOf(snap, classify.PostHarvestLogistics) {
		v, ok := fields.Lookup(rec, fields.OnTime)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			continue
		}
		q.TotalDeliveries++
		if v == onTimeFlag {
			q.OnTimeDeliveries++
		}
	}
	q.OnTimePercentage = percent(float64(q.OnTimeDeliveries), float64(q.TotalDeliveries))
	return q
}
