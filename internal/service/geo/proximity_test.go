package geo

import (
	"testing"

	"tadamon/internal/domain/geo"
)

func point(lat, lng float64) *geo.GeoPoint {
	return &geo.GeoPoint{Latitude: lat, Longitude: lng}
}

func TestFilterByRadius(t *testing.T) {
	entries := []Entry[string]{
		{Item: "far", Location: point(34.0, -6.8)},
		{Item: "no-location", Location: nil},
		{Item: "close", Location: point(33.5750, -7.5910)},
		{Item: "origin", Location: point(33.5731, -7.5898)},
		{Item: "mid", Location: point(33.5900, -7.6000)},
	}

	got := FilterByRadius(casablanca, 5, entries)

	want := []string{"origin", "close", "mid"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(got), len(want), got)
	}
	for i, name := range want {
		if got[i].Item != name {
			t.Errorf("result[%d] = %q, want %q", i, got[i].Item, name)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].DistanceKm > got[i].DistanceKm {
			t.Errorf("results not sorted at %d: %v > %v", i, got[i-1].DistanceKm, got[i].DistanceKm)
		}
	}
}

func TestFilterByRadiusMatchesDefinition(t *testing.T) {
	entries := []Entry[int]{
		{Item: 0, Location: point(33.5731, -7.5898)},
		{Item: 1, Location: point(33.6, -7.6)},
		{Item: 2, Location: point(33.7, -7.7)},
		{Item: 3, Location: nil},
		{Item: 4, Location: point(33.4, -7.4)},
		{Item: 5, Location: point(0, 0)},
	}

	for _, radius := range []float64{0.001, 1, 5, 25, 50, 20000} {
		got := FilterByRadius(casablanca, radius, entries)

		included := make(map[int]bool, len(got))
		for _, r := range got {
			included[r.Item] = true
		}

		for _, e := range entries {
			want := e.Location != nil && DistanceKm(casablanca, *e.Location) <= radius
			if included[e.Item] != want {
				t.Errorf("radius %v: entry %d included=%v, want %v", radius, e.Item, included[e.Item], want)
			}
		}
	}
}

func TestFilterByRadiusExcludesNilLocation(t *testing.T) {
	entries := []Entry[string]{{Item: "ghost", Location: nil}}

	for _, radius := range []float64{1, 1000, 40000} {
		if got := FilterByRadius(casablanca, radius, entries); len(got) != 0 {
			t.Errorf("radius %v: expected no results, got %+v", radius, got)
		}
	}
}

func TestFilterByRadiusStableTies(t *testing.T) {
	entries := []Entry[string]{
		{Item: "a", Location: point(33.5750, -7.5910)},
		{Item: "b", Location: point(33.5750, -7.5910)},
		{Item: "c", Location: point(33.5750, -7.5910)},
	}

	got := FilterByRadius(casablanca, 1, entries)
	if len(got) != 3 || got[0].Item != "a" || got[1].Item != "b" || got[2].Item != "c" {
		t.Fatalf("ties did not keep input order: %+v", got)
	}
}

func TestFilterByRadiusNonPositiveRadius(t *testing.T) {
	entries := []Entry[string]{{Item: "here", Location: point(33.5731, -7.5898)}}

	if got := FilterByRadius(casablanca, 0, entries); len(got) != 0 {
		t.Errorf("expected no results for zero radius, got %+v", got)
	}
}

func TestEndToEndRadiusScenario(t *testing.T) {
	entries := []Entry[string]{
		{Item: "couscous", Location: point(33.5750, -7.5910)},
		{Item: "jacket", Location: point(34.0, -6.8)},
	}

	got := FilterByRadius(casablanca, 5, entries)
	if len(got) != 1 || got[0].Item != "couscous" {
		t.Fatalf("expected only the nearby posting, got %+v", got)
	}
	if label := FormatDistance(got[0].DistanceKm); label != "239m" {
		t.Errorf("distance label = %q, want 239m", label)
	}
}
