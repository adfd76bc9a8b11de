// internal/service/geo/proximity.go

package geo

import (
	"sort"

	"tadamon/internal/domain/geo"
)

// Entry is an item to be placed relative to an origin. Location is nil when
// the item has no known position.
type Entry[T any] struct {
	Item     T
	Location *geo.GeoPoint
}

// Ranked is an item that passed the radius filter
type Ranked[T any] struct {
	Item       T
	DistanceKm float64
}

// FilterByRadius keeps the entries within radiusKm of origin, nearest first.
// Entries without a location are always dropped. Ties keep input order.
// A non-positive radius yields no results.
func FilterByRadius[T any](origin geo.GeoPoint, radiusKm float64, entries []Entry[T]) []Ranked[T] {
	out := make([]Ranked[T], 0, len(entries))
	if radiusKm <= 0 {
		return out
	}

	for _, e := range entries {
		if e.Location == nil {
			continue
		}

		d := DistanceKm(origin, *e.Location)
		if d <= radiusKm {
			out = append(out, Ranked[T]{Item: e.Item, DistanceKm: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})

	return out
}
