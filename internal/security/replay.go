package security

import (
	"fmt"
	"time"
)

// DefaultFutureGrace bounds how far in the future an event timestamp may
// sit before it is treated as clock skew or forgery rather than delay.
const DefaultFutureGrace = 60 * time.Second

// ReplayGuard rejects stale or future-dated events by their signed or
// header-derived timestamp.
type ReplayGuard struct {
	now         func() time.Time
	futureGrace time.Duration
}

// NewReplayGuard creates a guard using the wall clock.
func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{now: time.Now, futureGrace: DefaultFutureGrace}
}

// NewReplayGuardWithClock creates a guard with an injected clock.
func NewReplayGuardWithClock(now func() time.Time, futureGrace time.Duration) *ReplayGuard {
	if futureGrace <= 0 {
		futureGrace = DefaultFutureGrace
	}
	return &ReplayGuard{now: now, futureGrace: futureGrace}
}

// Check validates ts (unix seconds) against the provider tolerance.
// An event timestamped exactly at now-tolerance passes; one second older is
// rejected.
func (g *ReplayGuard) Check(ts int64, tolerance time.Duration) error {
	if ts <= 0 {
		return fmt.Errorf("%w: missing event timestamp", ErrReplayDetected)
	}
	now := g.now()
	eventAt := time.Unix(ts, 0)

	if age := now.Sub(eventAt); age > tolerance {
		return fmt.Errorf("%w: event is %s old, tolerance %s", ErrReplayDetected, age.Truncate(time.Second), tolerance)
	}
	if ahead := eventAt.Sub(now); ahead > g.futureGrace {
		return fmt.Errorf("%w: event timestamp %s in the future", ErrReplayDetected, ahead.Truncate(time.Second))
	}
	return nil
}
