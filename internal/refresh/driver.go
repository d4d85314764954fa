// Package refresh keeps the current dashboard up to date. A single loop
// goroutine owns the state machine: it fetches on a fixed interval and on
// demand, bounds each fetch with a timeout, retries with exponential
// backoff and swaps the assembled dashboard atomically.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"harvestdash/internal/core"
	"harvestdash/internal/dashboard"
	"harvestdash/internal/log"
	"harvestdash/internal/present"
	"harvestdash/internal/sheets"
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultTimeout      = 15 * time.Second
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// Config holds configuration for the driver
type Config struct {
	// Interval between automatic refreshes (default: 30s)
	Interval time.Duration

	// Timeout bounds a single fetch attempt (default: 15s)
	Timeout time.Duration

	// MaxAttempts per refresh cycle including the first (default: 3)
	MaxAttempts int

	// InitialDelay before the first retry, doubled per retry up to MaxDelay
	InitialDelay time.Duration
	MaxDelay     time.Duration

	PreviewRows int
	Formatter   present.Formatter
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:     DefaultInterval,
		Timeout:      DefaultTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		PreviewRows:  dashboard.DefaultPreviewRows,
		Formatter:    present.DefaultFormatter(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.PreviewRows <= 0 {
		c.PreviewRows = d.PreviewRows
	}
	if c.Formatter == (present.Formatter{}) {
		c.Formatter = d.Formatter
	}
	return c
}

// View is what the driver publishes: the assembled dashboard and the raw
// snapshot it was built from. A View is never modified after publication.
type View struct {
	Dashboard dashboard.Dashboard
	Snapshot  core.Snapshot
}

// Status reports the loop's progress for diagnostics.
type Status struct {
	State            State                 `json:"state"`
	Connection       core.ConnectionStatus `json:"connection"`
	Source           string                `json:"source"`
	LastAttemptAt    time.Time             `json:"lastAttemptAt"`
	LastSuccessAt    time.Time             `json:"lastSuccessAt"`
	LastError        string                `json:"lastError,omitempty"`
	Refreshes        int                   `json:"refreshes"`
	Failures         int                   `json:"failures"`
	Interval         string                `json:"interval"`
	ManualRequests   int64                 `json:"manualRequests"`
	CoalescedManuals int64                 `json:"coalescedManuals"`
}

// Listener is called from the loop goroutine after every publication.
type Listener func(ctx context.Context, v *View)

// Recoverer supplies a replacement snapshot after all attempts failed.
type Recoverer interface {
	Remember(ctx context.Context, snap core.Snapshot)
	Recover(source string) (core.Snapshot, core.ConnectionStatus, bool)
}

type Option func(*Driver)

func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(d *Driver) { d.logger = l.WithComponent(log.ComponentRefresh) }
}

func WithListener(l Listener) Option {
	return func(d *Driver) { d.listeners = append(d.listeners, l) }
}

type fetchResult struct {
	gen  uint64
	snap core.Snapshot
	err  error
}

// Driver runs the refresh loop
type Driver struct {
	cfg      Config
	source   sheets.SnapshotSource
	recovery Recoverer
	machine  Machine
	now      func() time.Time
	logger   *log.Logger

	current   atomic.Pointer[View]
	manual    chan struct{}
	listeners []Listener

	manualRequests   atomic.Int64
	coalescedManuals atomic.Int64

	statusMu sync.RWMutex
	status   Status

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce *sync.Once
	doneCh   chan struct{}

	// owned by the loop goroutine
	gen         uint64
	cancelFetch context.CancelFunc
	retryTimer  *time.Timer
	results     chan fetchResult
}

// New creates a driver. A nil recovery disables fallback entirely.
func New(source sheets.SnapshotSource, recovery Recoverer, cfg Config, opts ...Option) *Driver {
	cfg = cfg.withDefaults()
	d := &Driver{
		cfg:      cfg,
		source:   source,
		recovery: recovery,
		machine:  Machine{MaxAttempts: cfg.MaxAttempts},
		now:      time.Now,
		logger:   log.Discard(),
		manual:   make(chan struct{}, 1),
		results:  make(chan fetchResult),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.current.Store(&View{Dashboard: dashboard.Empty(d.now())})
	d.status = Status{
		State:      State{Phase: PhaseIdle},
		Connection: core.StatusDisconnected,
		Source:     source.Name(),
		Interval:   cfg.Interval.String(),
	}
	return d
}

// Current returns the latest published view. Before the first success it
// is the empty dashboard.
func (d *Driver) Current() *View {
	return d.current.Load()
}

// Status returns a copy of the loop's diagnostics.
func (d *Driver) Status() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	s := d.status
	s.ManualRequests = d.manualRequests.Load()
	s.CoalescedManuals = d.coalescedManuals.Load()
	return s
}

// Refresh requests an immediate fetch. It never blocks. Requests made
// while one is already queued are merged into it; the return value is
// false in that case.
func (d *Driver) Refresh() bool {
	d.manualRequests.Add(1)
	select {
	case d.manual <- struct{}{}:
		return true
	default:
		d.coalescedManuals.Add(1)
		return false
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("refresh driver is already running")
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.stopOnce = new(sync.Once)
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.runLoop(ctx)

	d.logger.InfoContext(ctx, "Refresh driver started",
		"interval", d.cfg.Interval,
		"timeout", d.cfg.Timeout,
		"max_attempts", d.cfg.MaxAttempts,
		log.FieldSource, d.source.Name())
	return nil
}

// Stop gracefully stops the loop and waits for it to exit.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.stopOnce.Do(func() { close(d.stopCh) })
	done := d.doneCh
	d.mu.Unlock()

	select {
	case <-done:
		d.logger.InfoContext(ctx, "Refresh driver stopped gracefully")
	case <-ctx.Done():
		d.logger.WarnContext(ctx, "Refresh driver stop timed out")
		return ctx.Err()
	}

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return nil
}

// IsRunning returns whether the loop is currently running
func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Driver) runLoop(ctx context.Context) {
	defer close(d.doneCh)
	defer d.stopRetry()
	defer d.cancelInFlight()

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	// Fetch immediately on startup
	d.handle(ctx, Event{Kind: EventTick})

	for {
		var retryC <-chan time.Time
		if d.retryTimer != nil {
			retryC = d.retryTimer.C
		}

		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.handle(ctx, Event{Kind: EventTick})
		case <-d.manual:
			d.handle(ctx, Event{Kind: EventManualRefresh})
		case <-retryC:
			d.retryTimer = nil
			d.handle(ctx, Event{Kind: EventRetryDue})
		case r := <-d.results:
			if r.gen != d.gen {
				// superseded by a manual refresh
				continue
			}
			d.cancelInFlight()
			if r.err != nil {
				d.handle(ctx, Event{Kind: EventFetchFailed, Err: r.err})
			} else {
				d.handle(ctx, Event{Kind: EventFetchCompleted, Snapshot: r.snap})
			}
		}
	}
}

func (d *Driver) handle(ctx context.Context, e Event) {
	prev := d.Status().State
	next, action := d.machine.Next(prev, e)
	d.setState(next)

	if next != prev {
		d.logger.DebugContext(ctx, "Refresh state changed",
			"event", e.Kind.String(),
			"from", string(prev.Phase),
			log.FieldState, string(next.Phase),
			log.FieldAttempt, next.Attempt)
	}

	switch action {
	case ActionRestartFetch:
		d.logger.InfoContext(ctx, "Manual refresh supersedes pending fetch",
			"previous_state", string(prev.Phase))
		d.startFetch(ctx)
	case ActionStartFetch:
		d.startFetch(ctx)
	case ActionScheduleRetry:
		delay := Backoff(next.Attempt-1, d.cfg.InitialDelay, d.cfg.MaxDelay)
		d.logger.WarnContext(ctx, "Fetch failed, retrying",
			log.NewFields().
				WithAttempt(next.Attempt-1, delay).
				WithError(e.Err).
				WithOperation(log.OpFetch).
				ToSlice()...)
		d.stopRetry()
		d.retryTimer = time.NewTimer(delay)
	case ActionPublish:
		d.publishLive(ctx, e.Snapshot)
	case ActionGiveUp:
		d.giveUp(ctx, e.Err)
	}
}

func (d *Driver) startFetch(ctx context.Context) {
	d.cancelInFlight()
	d.stopRetry()

	d.gen++
	gen := d.gen
	fctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	d.cancelFetch = cancel
	done := d.doneCh

	d.statusMu.Lock()
	d.status.LastAttemptAt = d.now()
	d.statusMu.Unlock()

	go func() {
		snap, err := d.fetch(fctx)
		select {
		case d.results <- fetchResult{gen: gen, snap: snap, err: err}:
		case <-done:
		}
	}()
}

type sourceResult struct {
	snap core.Snapshot
	err  error
}

// fetch runs one bounded attempt. A result that arrives after the deadline
// counts as a timeout, and a source that ignores its context is abandoned
// once the deadline passes.
func (d *Driver) fetch(ctx context.Context) (core.Snapshot, error) {
	ch := make(chan sourceResult, 1)
	go func() {
		snap, err := d.source.Fetch(ctx)
		ch <- sourceResult{snap: snap, err: err}
	}()

	var snap core.Snapshot
	var err error
	select {
	case r := <-ch:
		snap, err = r.snap, r.err
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("fetch from %s: %w", d.source.Name(), err)
	}
	if snap.Source == "" {
		snap.Source = d.source.Name()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = d.now()
	}
	return snap, nil
}

func (d *Driver) cancelInFlight() {
	if d.cancelFetch != nil {
		d.cancelFetch()
		d.cancelFetch = nil
	}
}

func (d *Driver) stopRetry() {
	if d.retryTimer != nil {
		d.retryTimer.Stop()
		d.retryTimer = nil
	}
}

func (d *Driver) setState(s State) {
	d.statusMu.Lock()
	d.status.State = s
	d.statusMu.Unlock()
}

func (d *Driver) publishLive(ctx context.Context, snap core.Snapshot) *View {
	if d.recovery != nil {
		d.recovery.Remember(ctx, snap)
	}
	d.statusMu.Lock()
	d.status.LastSuccessAt = d.now()
	d.status.LastError = ""
	d.status.Refreshes++
	d.statusMu.Unlock()
	return d.publish(ctx, snap, core.StatusConnected)
}

// giveUp publishes the fallback snapshot, or re-publishes the previous
// dashboard marked disconnected when there is none.
func (d *Driver) giveUp(ctx context.Context, cause error) *View {
	d.statusMu.Lock()
	d.status.Failures++
	if cause != nil {
		d.status.LastError = cause.Error()
	}
	d.statusMu.Unlock()

	d.logger.ErrorContext(ctx, "All fetch attempts failed",
		log.NewFields().WithOperation(log.OpFetch).WithError(cause).ToSlice()...)

	if d.recovery != nil {
		if snap, status, ok := d.recovery.Recover(d.source.Name()); ok {
			return d.publish(ctx, snap, status)
		}
	}

	prev := d.Current()
	v := &View{Dashboard: prev.Dashboard, Snapshot: prev.Snapshot}
	v.Dashboard.Metadata.Status = core.StatusDisconnected
	v.Dashboard.Metadata.StatusStyle = present.StatusStyle(core.StatusDisconnected)
	d.store(ctx, v)
	return v
}

func (d *Driver) publish(ctx context.Context, snap core.Snapshot, status core.ConnectionStatus) *View {
	start := time.Now()
	dash := dashboard.Assemble(snap, dashboard.Options{
		Now:         d.now(),
		Status:      status,
		Formatter:   d.cfg.Formatter,
		PreviewRows: d.cfg.PreviewRows,
	})
	// Rows that fail the quality filter are usually placeholders or
	// unparseable cells; they only ever show up here.
	for _, sh := range dash.Sheets {
		fields := log.NewFields().WithSheet(sh.Name, sh.Classification.String()).
			WithSnapshot(snap.Source, 1, sh.RecordCount).ToSlice()
		d.logger.DebugContext(ctx, "Sheet classified",
			append(fields, "incomplete_records", sh.RecordCount-sh.SubstantiveCount)...)
	}

	v := &View{Dashboard: dash, Snapshot: snap}
	d.store(ctx, v)

	d.logger.InfoContext(ctx, "Dashboard refreshed",
		log.NewFields().
			WithSnapshot(snap.Source, dash.Metadata.SheetCount, dash.Metadata.RecordCount).
			WithDuration(time.Since(start)).
			ToSlice()...)
	return v
}

func (d *Driver) store(ctx context.Context, v *View) {
	d.current.Store(v)
	d.statusMu.Lock()
	d.status.Connection = v.Dashboard.Metadata.Status
	d.statusMu.Unlock()
	for _, l := range d.listeners {
		l(ctx, v)
	}
}

// RunOnce performs a single refresh cycle synchronously, retries and
// fallback included, without starting the loop. The returned error is the
// last fetch failure; the view is valid either way.
func (d *Driver) RunOnce(ctx context.Context) (*View, error) {
	state, _ := d.machine.Next(State{Phase: PhaseIdle}, Event{Kind: EventManualRefresh})
	d.setState(state)

	for {
		fctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		d.statusMu.Lock()
		d.status.LastAttemptAt = d.now()
		d.statusMu.Unlock()
		snap, err := d.fetch(fctx)
		cancel()

		if err == nil {
			state, _ = d.machine.Next(state, Event{Kind: EventFetchCompleted, Snapshot: snap})
			d.setState(state)
			return d.publishLive(ctx, snap), nil
		}

		var action Action
		state, action = d.machine.Next(state, Event{Kind: EventFetchFailed, Err: err})
		d.setState(state)
		if action == ActionGiveUp {
			return d.giveUp(ctx, err), err
		}

		delay := Backoff(state.Attempt-1, d.cfg.InitialDelay, d.cfg.MaxDelay)
		d.logger.WarnContext(ctx, "Fetch failed, retrying",
			log.NewFields().WithAttempt(state.Attempt-1, delay).WithError(err).ToSlice()...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return d.giveUp(ctx, ctx.Err()), ctx.Err()
		case <-timer.C:
		}
		state, _ = d.machine.Next(state, Event{Kind: EventRetryDue})
		d.setState(state)
	}
}
