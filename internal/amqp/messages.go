package amqp

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"harvestdash/internal/core"
	"harvestdash/internal/dashboard"
)

// RoutingKeyRefreshed is the routing key of refresh events.
const RoutingKeyRefreshed = "dashboard.refreshed"

// RefreshedEvent announces a newly published dashboard. It carries the
// headline figures only; consumers fetch the full dashboard over HTTP.
type RefreshedEvent struct {
	ID          string                `json:"id"`
	Timestamp   time.Time             `json:"timestamp"`
	Status      core.ConnectionStatus `json:"status"`
	Source      string                `json:"source"`
	SheetCount  int                   `json:"sheetCount"`
	RecordCount int                   `json:"recordCount"`
	Revenue     float64               `json:"revenue"`
	Expenses    float64               `json:"expenses"`
	Profit      float64               `json:"profit"`
}

// NewRefreshedEvent summarizes d.
func NewRefreshedEvent(d dashboard.Dashboard) *RefreshedEvent {
	return &RefreshedEvent{
		ID:          uuid.NewString(),
		Timestamp:   d.Metadata.LastUpdated,
		Status:      d.Metadata.Status,
		Source:      d.Metadata.Source,
		SheetCount:  d.Metadata.SheetCount,
		RecordCount: d.Metadata.RecordCount,
		Revenue:     d.Financial.Revenue,
		Expenses:    d.Financial.Expenses,
		Profit:      d.Financial.Profit,
	}
}

// ToJSON converts the event to JSON bytes
func (e *RefreshedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RefreshRequest asks the service to refresh now. Every field is optional.
type RefreshRequest struct {
	ID          string    `json:"id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requestedAt,omitempty"`
}

// RefreshRequestFromJSON parses a request. An empty body is a valid request.
func RefreshRequestFromJSON(data []byte) (*RefreshRequest, error) {
	var req RefreshRequest
	if len(bytes.TrimSpace(data)) == 0 {
		return &req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
