// internal/service/geo/tracker.go

package geo

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"tadamon/internal/domain/geo"
)

// ErrSuperseded is returned when a newer location choice was made while a
// resolution was in flight. The stale result is not stored.
var ErrSuperseded = errors.New("location request superseded")

// IntentResolver resolves location intents
type IntentResolver interface {
	Resolve(ctx context.Context, intent Intent) (geo.CanonicalLocation, error)
}

// Tracker holds a viewer's current location and location mode. Every new
// choice bumps an epoch; a resolution that completes under an older epoch
// is discarded.
type Tracker struct {
	mu      sync.Mutex
	epoch   uint64
	mode    geo.Source
	current *geo.CanonicalLocation
}

// NewTracker creates an empty tracker in GPS mode
func NewTracker() *Tracker {
	return &Tracker{mode: geo.SourceGPS}
}

// Set switches the mode to the intent's source and resolves it. On failure
// the previously held location is kept.
func (t *Tracker) Set(ctx context.Context, resolver IntentResolver, intent Intent) (geo.CanonicalLocation, error) {
	t.mu.Lock()
	t.epoch++
	epoch := t.epoch
	t.mode = intent.Source()
	t.mu.Unlock()

	loc, err := resolver.Resolve(ctx, intent)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.epoch != epoch {
		log.Debug().
			Str("source", string(intent.Source())).
			Uint64("epoch", epoch).
			Uint64("current_epoch", t.epoch).
			Msg("Discarding stale location result")
		return geo.CanonicalLocation{}, ErrSuperseded
	}
	if err != nil {
		return geo.CanonicalLocation{}, err
	}

	t.current = &loc
	return loc, nil
}

// Seed replaces the current location without resolving, e.g. from a stored profile
func (t *Tracker) Seed(loc geo.CanonicalLocation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.epoch++
	t.mode = loc.Source
	t.current = &loc
}

// Current returns the held location and mode
func (t *Tracker) Current() (geo.CanonicalLocation, geo.Source, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return geo.CanonicalLocation{}, t.mode, false
	}
	return *t.current, t.mode, true
}

// TrackerRegistry keeps one tracker per viewer
type TrackerRegistry struct {
	trackers sync.Map
}

// NewTrackerRegistry creates an empty registry
func NewTrackerRegistry() *TrackerRegistry {
	return &TrackerRegistry{}
}

// For returns the tracker of viewerID, creating it on first use
func (r *TrackerRegistry) For(viewerID string) *Tracker {
	if t, ok := r.trackers.Load(viewerID); ok {
		return t.(*Tracker)
	}
	t, _ := r.trackers.LoadOrStore(viewerID, NewTracker())
	return t.(*Tracker)
}
