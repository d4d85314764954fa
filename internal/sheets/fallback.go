package sheets

import (
	"context"
	"errors"
	"time"

	"harvestdash/internal/cache"
	"harvestdash/internal/core"
	"harvestdash/internal/log"
)

const DefaultLastGoodTTL = 24 * time.Hour

// DemoFunc builds the fixed demo workbook; dates inside are relative to now.
type DemoFunc func(now time.Time) core.Snapshot

// Fallback decides what to show once every fetch attempt failed: the last
// good snapshot of the same source while it is younger than the TTL, then
// the demo workbook.
type Fallback struct {
	lastGood *cache.LRUCache[core.Snapshot]
	demo     DemoFunc
	store    SnapshotStore
	now      func() time.Time
	logger   *log.Logger
}

type FallbackOption func(*Fallback)

// WithStore persists every remembered snapshot and lets Restore seed the
// cache after a restart.
func WithStore(s SnapshotStore) FallbackOption {
	return func(f *Fallback) { f.store = s }
}

func WithClock(now func() time.Time) FallbackOption {
	return func(f *Fallback) { f.now = now }
}

func WithLogger(l *log.Logger) FallbackOption {
	return func(f *Fallback) { f.logger = l.WithComponent(log.ComponentSheets) }
}

// NewFallback returns a policy keeping last-good snapshots for ttl. A nil
// demo disables the demo stage.
func NewFallback(ttl time.Duration, demo DemoFunc, opts ...FallbackOption) *Fallback {
	if ttl <= 0 {
		ttl = DefaultLastGoodTTL
	}
	f := &Fallback{
		demo:   demo,
		now:    time.Now,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.lastGood = cache.NewLRUCache[core.Snapshot](8, ttl).WithClock(f.now)
	return f
}

// Cache exposes the last-good cache so it can be registered for cleanup.
func (f *Fallback) Cache() *cache.LRUCache[core.Snapshot] {
	return f.lastGood
}

// Remember records snap as the last good snapshot of its source.
func (f *Fallback) Remember(ctx context.Context, snap core.Snapshot) {
	f.lastGood.SetFrom(snap.Source, snap, f.born(snap))
	if f.store == nil {
		return
	}
	if err := f.store.SaveLatest(ctx, snap); err != nil {
		f.logger.WarnContext(ctx, "Failed to persist snapshot",
			log.NewFields().WithOperation(log.OpPersist).WithError(err).ToSlice()...)
	}
}

// Restore loads the persisted snapshot of source into the cache. A missing
// snapshot is not an error.
func (f *Fallback) Restore(ctx context.Context, source string) error {
	if f.store == nil {
		return nil
	}
	snap, err := f.store.LoadLatest(ctx, source)
	if errors.Is(err, core.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}
	f.lastGood.SetFrom(source, snap, f.born(snap))
	f.logger.InfoContext(ctx, "Restored last good snapshot",
		log.NewFields().WithSnapshot(source, len(snap.Sheets), snap.RecordCount()).ToSlice()...)
	return nil
}

// Recover returns the best available replacement for a failed fetch of
// source, with the status it should be shown under. ok is false when
// neither a fresh cached snapshot nor demo data is available.
func (f *Fallback) Recover(source string) (snap core.Snapshot, status core.ConnectionStatus, ok bool) {
	if s, hit := f.lastGood.Get(source); hit {
		return s, core.StatusCached, true
	}
	if f.demo != nil {
		return f.demo(f.now()), core.StatusDemo, true
	}
	return core.Snapshot{}, core.StatusDisconnected, false
}

func (f *Fallback) born(snap core.Snapshot) time.Time {
	if snap.FetchedAt.IsZero() {
		return f.now()
	}
	return snap.FetchedAt
}
