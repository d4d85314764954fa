package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestdash/internal/core"
	"harvestdash/internal/sheets"
)

var frozen = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type fakeSource struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int) (core.Snapshot, error)
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context) (core.Snapshot, error) {
	n := int(f.calls.Add(1))
	return f.fn(ctx, n)
}

func liveSnapshot() core.Snapshot {
	return core.Snapshot{Sheets: []core.Sheet{
		core.NewSheet("Sales", []string{"Category", "Revenue"}, [][]string{{"Retail", "₹1,000"}}),
	}}
}

func demoSnapshot(now time.Time) core.Snapshot {
	return core.Snapshot{Source: "demo", FetchedAt: now, Sheets: []core.Sheet{
		core.NewSheet("Revenue", []string{"Category", "Revenue"}, [][]string{{"Demo", "50"}}),
	}}
}

func fastConfig() Config {
	return Config{
		Interval:     time.Hour,
		Timeout:      time.Second,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func clock() time.Time { return frozen }

func TestDriver_CurrentBeforeFirstSuccessIsEmpty(t *testing.T) {
	d := New(&fakeSource{}, nil, fastConfig(), WithClock(clock))
	v := d.Current()
	require.NotNil(t, v)
	assert.Equal(t, core.StatusDisconnected, v.Dashboard.Metadata.Status)
	assert.NotNil(t, v.Dashboard.Sheets)
	assert.Equal(t, PhaseIdle, d.Status().State.Phase)
}

func TestDriver_RunOnceSuccess(t *testing.T) {
	src := &fakeSource{fn: func(context.Context, int) (core.Snapshot, error) { return liveSnapshot(), nil }}
	fb := sheets.NewFallback(time.Hour, demoSnapshot, sheets.WithClock(clock))

	var published []*View
	d := New(src, fb, fastConfig(), WithClock(clock), WithListener(func(_ context.Context, v *View) {
		published = append(published, v)
	}))

	v, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.StatusConnected, v.Dashboard.Metadata.Status)
	assert.Equal(t, 1000.0, v.Dashboard.Financial.Revenue)
	assert.Equal(t, "fake", v.Snapshot.Source)
	assert.Equal(t, frozen, v.Snapshot.FetchedAt)
	assert.Same(t, v, d.Current())
	assert.Len(t, published, 1)
	assert.Equal(t, PhaseSucceeded, d.Status().State.Phase)
	assert.Equal(t, core.StatusConnected, d.Status().Connection)

	// the live snapshot is now the last good one
	_, status, ok := fb.Recover("fake")
	assert.True(t, ok)
	assert.Equal(t, core.StatusCached, status)
}

func TestDriver_RunOnceRetriesThenSucceeds(t *testing.T) {
	src := &fakeSource{fn: func(_ context.Context, call int) (core.Snapshot, error) {
		if call < 3 {
			return core.Snapshot{}, errors.New("503 service unavailable")
		}
		return liveSnapshot(), nil
	}}
	d := New(src, nil, fastConfig(), WithClock(clock))

	v, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())
	assert.Equal(t, core.StatusConnected, v.Dashboard.Metadata.Status)
	assert.Equal(t, 3, d.Status().State.Attempt)
}

func TestDriver_RunOnceFallsBackToDemo(t *testing.T) {
	src := &fakeSource{fn: func(context.Context, int) (core.Snapshot, error) {
		return core.Snapshot{}, errors.New("network down")
	}}
	fb := sheets.NewFallback(time.Hour, demoSnapshot, sheets.WithClock(clock))
	d := New(src, fb, fastConfig(), WithClock(clock))

	v, err := d.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), src.calls.Load())
	assert.Equal(t, core.StatusDemo, v.Dashboard.Metadata.Status)
	assert.Equal(t, 50.0, v.Dashboard.Financial.Revenue)

	st := d.Status()
	assert.Equal(t, PhaseFailed, st.State.Phase)
	assert.Equal(t, 1, st.Failures)
	assert.Contains(t, st.LastError, "network down")
}

func TestDriver_FallsBackToLastGoodBeforeDemo(t *testing.T) {
	var fail atomic.Bool
	src := &fakeSource{fn: func(context.Context, int) (core.Snapshot, error) {
		if fail.Load() {
			return core.Snapshot{}, errors.New("down")
		}
		return liveSnapshot(), nil
	}}
	fb := sheets.NewFallback(time.Hour, demoSnapshot, sheets.WithClock(clock))
	d := New(src, fb, fastConfig(), WithClock(clock))

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	v, err := d.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.StatusCached, v.Dashboard.Metadata.Status)
	assert.Equal(t, 1000.0, v.Dashboard.Financial.Revenue)
}

func TestDriver_PermanentErrorIsNotRetried(t *testing.T) {
	src := &fakeSource{fn: func(context.Context, int) (core.Snapshot, error) {
		return core.Snapshot{}, Permanent(errors.New("403 forbidden"))
	}}
	d := New(src, nil, fastConfig(), WithClock(clock))

	v, err := d.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
	// nothing to fall back to: previous (empty) dashboard, disconnected
	assert.Equal(t, core.StatusDisconnected, v.Dashboard.Metadata.Status)
}

func TestDriver_TimeoutCountsAsFailure(t *testing.T) {
	src := &fakeSource{fn: func(ctx context.Context, _ int) (core.Snapshot, error) {
		<-ctx.Done()
		return core.Snapshot{}, ctx.Err()
	}}
	cfg := fastConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.MaxAttempts = 2
	d := New(src, nil, cfg, WithClock(clock))

	_, err := d.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int32(2), src.calls.Load())
}

// stuckSource never returns until released and never looks at its context.
func stuckSource(t *testing.T) *fakeSource {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	return &fakeSource{fn: func(context.Context, int) (core.Snapshot, error) {
		<-release
		return liveSnapshot(), nil
	}}
}

func TestDriver_TimeoutAbandonsSourceIgnoringContext(t *testing.T) {
	src := stuckSource(t)
	cfg := fastConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxAttempts = 2
	fb := sheets.NewFallback(time.Hour, demoSnapshot, sheets.WithClock(clock))
	d := New(src, fb, cfg, WithClock(clock))

	type outcome struct {
		v   *View
		err error
	}
	out := make(chan outcome, 1)
	go func() {
		v, err := d.RunOnce(context.Background())
		out <- outcome{v, err}
	}()

	select {
	case o := <-out:
		require.Error(t, o.err)
		assert.True(t, errors.Is(o.err, context.DeadlineExceeded))
		assert.Equal(t, core.StatusDemo, o.v.Dashboard.Metadata.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnce blocked on a source that ignores its deadline")
	}
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, PhaseFailed, d.Status().State.Phase)
}

func TestDriver_LoopGivesUpOnSourceIgnoringContext(t *testing.T) {
	src := stuckSource(t)
	cfg := fastConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxAttempts = 2
	d := New(src, nil, cfg, WithClock(clock))

	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return d.Status().Failures >= 1 },
		2*time.Second, 5*time.Millisecond, "loop never gave up")

	st := d.Status()
	assert.Equal(t, PhaseFailed, st.State.Phase)
	assert.Contains(t, st.LastError, context.DeadlineExceeded.Error())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDriver_ConcurrentStop(t *testing.T) {
	src := &fakeSource{fn: func(context.Context, int) (core.Snapshot, error) { return liveSnapshot(), nil }}
	d := New(src, nil, fastConfig(), WithClock(clock))
	require.NoError(t, d.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- d.Stop(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.False(t, d.IsRunning())

	// the driver can be started again after a stop
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(ctx))
}

func TestDriver_LoopPublishesOnStart(t *testing.T) {
	src := &fakeSource{fn: func(context.Context, int) (core.Snapshot, error) { return liveSnapshot(), nil }}
	got := make(chan *View, 4)
	d := New(src, nil, fastConfig(), WithClock(clock), WithListener(func(_ context.Context, v *View) {
		got <- v
	}))

	require.NoError(t, d.Start(context.Background()))
	assert.Error(t, d.Start(context.Background()), "second start must fail")

	select {
	case v := <-got:
		assert.Equal(t, core.StatusConnected, v.Dashboard.Metadata.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no publication after start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.False(t, d.IsRunning())
}

func TestDriver_ManualRefreshCancelsInFlightFetch(t *testing.T) {
	firstStarted := make(chan struct{})
	firstCancelled := make(chan struct{})

	src := &fakeSource{fn: func(ctx context.Context, call int) (core.Snapshot, error) {
		if call == 1 {
			close(firstStarted)
			<-ctx.Done()
			close(firstCancelled)
			return core.Snapshot{}, ctx.Err()
		}
		return liveSnapshot(), nil
	}}

	var mu sync.Mutex
	var views []*View
	published := make(chan struct{}, 4)
	cfg := fastConfig()
	cfg.Timeout = 10 * time.Second
	d := New(src, nil, cfg, WithClock(clock), WithListener(func(_ context.Context, v *View) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
		published <- struct{}{}
	}))

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop(context.Background())

	<-firstStarted
	assert.True(t, d.Refresh())

	select {
	case <-firstCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight fetch was not cancelled")
	}
	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("manual refresh did not publish")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, views, 1, "the cancelled fetch must not publish")
	assert.Equal(t, core.StatusConnected, views[0].Dashboard.Metadata.Status)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestDriver_RefreshCoalesces(t *testing.T) {
	d := New(&fakeSource{}, nil, fastConfig())

	assert.True(t, d.Refresh())
	assert.False(t, d.Refresh())
	assert.False(t, d.Refresh())

	st := d.Status()
	assert.Equal(t, int64(3), st.ManualRequests)
	assert.Equal(t, int64(2), st.CoalescedManuals)
}
