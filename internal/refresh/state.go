package refresh

import (
	"context"
	"errors"
	"time"

	"harvestdash/internal/core"
)

// Phase is the coarse state of the refresh cycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFetching  Phase = "fetching"
	PhaseRetrying  Phase = "retrying"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// State is the machine state. Attempt is the 1-based attempt in flight
// (fetching), the next attempt (retrying) or the last attempt made
// (succeeded, failed).
type State struct {
	Phase   Phase `json:"phase"`
	Attempt int   `json:"attempt"`
}

// Busy reports whether a fetch is in flight or a retry is pending.
func (s State) Busy() bool {
	return s.Phase == PhaseFetching || s.Phase == PhaseRetrying
}

type EventKind int

const (
	EventTick EventKind = iota
	EventManualRefresh
	EventRetryDue
	EventFetchCompleted
	EventFetchFailed
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventManualRefresh:
		return "manual_refresh"
	case EventRetryDue:
		return "retry_due"
	case EventFetchCompleted:
		return "fetch_completed"
	case EventFetchFailed:
		return "fetch_failed"
	}
	return "unknown"
}

// Event drives a transition. Err is set for EventFetchFailed and Snapshot
// for EventFetchCompleted.
type Event struct {
	Kind     EventKind
	Err      error
	Snapshot core.Snapshot
}

// Action is the side effect the driver performs after a transition.
type Action int

const (
	ActionNone Action = iota
	ActionStartFetch
	// ActionRestartFetch cancels the in-flight fetch or pending retry first.
	ActionRestartFetch
	ActionScheduleRetry
	ActionPublish
	ActionGiveUp
)

// Machine holds the transition rules. It has no side effects.
type Machine struct {
	MaxAttempts int
}

// Next returns the state after e and the action the driver must take.
//
//	idle|succeeded|failed + tick|manual  -> fetching(1), start
//	fetching|retrying     + tick         -> unchanged (coalesced)
//	fetching|retrying     + manual       -> fetching(1), restart
//	retrying(n)           + retry due    -> fetching(n), start
//	fetching(n)           + completed    -> succeeded(n), publish
//	fetching(n)           + failed       -> retrying(n+1), schedule retry
//	                                        or failed(n), give up
//
// Completion and failure events outside fetching are stale and ignored.
func (m Machine) Next(s State, e Event) (State, Action) {
	switch e.Kind {
	case EventTick:
		if s.Busy() {
			return s, ActionNone
		}
		return State{Phase: PhaseFetching, Attempt: 1}, ActionStartFetch

	case EventManualRefresh:
		if s.Busy() {
			return State{Phase: PhaseFetching, Attempt: 1}, ActionRestartFetch
		}
		return State{Phase: PhaseFetching, Attempt: 1}, ActionStartFetch

	case EventRetryDue:
		if s.Phase != PhaseRetrying {
			return s, ActionNone
		}
		return State{Phase: PhaseFetching, Attempt: s.Attempt}, ActionStartFetch

	case EventFetchCompleted:
		if s.Phase != PhaseFetching {
			return s, ActionNone
		}
		return State{Phase: PhaseSucceeded, Attempt: s.Attempt}, ActionPublish

	case EventFetchFailed:
		if s.Phase != PhaseFetching {
			return s, ActionNone
		}
		if !IsRetryable(e.Err) || s.Attempt >= m.maxAttempts() {
			return State{Phase: PhaseFailed, Attempt: s.Attempt}, ActionGiveUp
		}
		return State{Phase: PhaseRetrying, Attempt: s.Attempt + 1}, ActionScheduleRetry
	}
	return s, ActionNone
}

func (m Machine) maxAttempts() int {
	if m.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return m.MaxAttempts
}

// RetryableError marks a fetch failure as worth retrying or not.
// Configuration and authorization problems are wrapped with Retryable false
// so the driver falls back immediately.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so it is never retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, Retryable: false}
}

// IsRetryable reports whether a failed fetch should be attempted again.
// Timeouts and unclassified errors are retried; cancellations and
// permanent errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return !errors.Is(err, context.Canceled)
}

// Backoff returns the delay before retry number n (1-based): initial
// doubled n-1 times, capped at ceiling.
func Backoff(n int, initial, ceiling time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}
	d := initial
	for i := 1; i < n && d < ceiling; i++ {
		d *= 2
	}
	return min(d, ceiling)
}
