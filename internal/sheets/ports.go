package sheets

import (
	"context"

	"harvestdash/internal/core"
)

// Ports for outbound adapters.
type (
	// SnapshotSource fetches every tab of a workbook in one call. A returned
	// snapshot is complete; partial reads are reported as errors.
	SnapshotSource interface {
		Fetch(ctx context.Context) (core.Snapshot, error)
		// Name identifies the source in logs and in the last-good cache.
		Name() string
	}

	// SnapshotStore persists the latest good snapshot across restarts.
	SnapshotStore interface {
		SaveLatest(ctx context.Context, snap core.Snapshot) error
		LoadLatest(ctx context.Context, source string) (core.Snapshot, error)
	}
)
