// Package debounce tracks how long a route has kept qualifying so that only
// opportunities that persist through a hold window are acted on.
package debounce

import (
	"context"
	"time"
)

// Decision is the cache's verdict for one observation of a route.
type Decision struct {
	// Ready is true when the route has qualified continuously for at least
	// the hold window and has not fired since it last appeared.
	Ready bool
	// FirstSeen is when the current run of sightings began.
	FirstSeen time.Time
	// Fired is true when the route already executed during this run.
	Fired bool
}

// Cache records route sightings. Implementations must be safe for
// concurrent use; each Observe is an atomic read-modify-write per route.
type Cache interface {
	// Observe records a sighting of route at now.
	Observe(ctx context.Context, route string, now time.Time) (Decision, error)
	// MarkFired disarms route until it stops qualifying for longer than the TTL.
	MarkFired(ctx context.Context, route string, now time.Time) error
	// Sweep drops routes not seen within the TTL and returns how many were dropped.
	Sweep(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// decide applies the hold window to a run that started at first.
func decide(first, now time.Time, fired bool, hold time.Duration) Decision {
	d := Decision{FirstSeen: first, Fired: fired}
	if !fired && now.Sub(first) >= hold {
		d.Ready = true
	}
	return d
}
