package amqp

import (
	"context"
	"errors"

	"harvestdash/internal/log"
	"harvestdash/internal/refresh"
)

// Publisher sends refresh events.
type Publisher interface {
	PublishRefreshed(ctx context.Context, ev *RefreshedEvent) error
}

// Refresher triggers a manual refresh; it reports false when the request
// was merged into one already pending.
type Refresher interface {
	Refresh() bool
}

// RefreshListener publishes an event for every live dashboard. Fallback
// publications (cached, demo, disconnected) are not announced. Publish
// failures are logged and never reach the refresh loop.
func RefreshListener(p Publisher, logger *log.Logger) refresh.Listener {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentAMQP)
	return func(ctx context.Context, v *refresh.View) {
		if !v.Dashboard.Metadata.Status.IsLive() {
			return
		}
		ev := NewRefreshedEvent(v.Dashboard)
		if err := p.PublishRefreshed(ctx, ev); err != nil {
			level := logger.WarnContext
			if errors.Is(err, ErrCircuitOpen) {
				level = logger.DebugContext
			}
			level(ctx, "Failed to publish refresh event",
				log.NewFields().WithOperation(log.OpPublish).WithError(err).ToSlice()...)
		}
	}
}

// RefreshHandler turns refresh requests into manual refreshes.
func RefreshHandler(r Refresher, logger *log.Logger) func(context.Context, *RefreshRequest) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentAMQP)
	return func(ctx context.Context, req *RefreshRequest) error {
		queued := r.Refresh()
		logger.InfoContext(ctx, "Refresh requested over AMQP",
			"id", req.ID,
			"reason", req.Reason,
			"coalesced", !queued)
		return nil
	}
}
