package geo

import (
	"math"
	"testing"

	"tadamon/internal/domain/geo"
)

var (
	casablanca = geo.GeoPoint{Latitude: 33.5731, Longitude: -7.5898}
	nearby     = geo.GeoPoint{Latitude: 33.5750, Longitude: -7.5910}
	rabat      = geo.GeoPoint{Latitude: 34.0, Longitude: -6.8}
)

func TestDistanceKmSymmetryAndIdentity(t *testing.T) {
	points := []geo.GeoPoint{
		casablanca,
		nearby,
		rabat,
		{Latitude: 0, Longitude: 0},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 90, Longitude: 0},
		{Latitude: -90, Longitude: 180},
	}

	for _, a := range points {
		if d := DistanceKm(a, a); d != 0 {
			t.Errorf("DistanceKm(%v, %v) = %v, want 0", a, a, d)
		}
		for _, b := range points {
			ab, ba := DistanceKm(a, b), DistanceKm(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("asymmetric distance between %v and %v: %v vs %v", a, b, ab, ba)
			}
			if ab < 0 {
				t.Errorf("negative distance between %v and %v: %v", a, b, ab)
			}
		}
	}
}

func TestDistanceKmKnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b geo.GeoPoint
		want float64
		tol  float64
	}{
		{"one degree of longitude at the equator", geo.GeoPoint{}, geo.GeoPoint{Longitude: 1}, 111.19, 0.01},
		{"casablanca neighbourhood", casablanca, nearby, 0.2387, 0.001},
		{"antipodes", geo.GeoPoint{}, geo.GeoPoint{Longitude: 180}, math.Pi * earthRadiusKm, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DistanceKm(tt.a, tt.b); math.Abs(got-tt.want) > tt.tol {
				t.Errorf("DistanceKm = %v, want %v ± %v", got, tt.want, tt.tol)
			}
		})
	}
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		km   float64
		want string
	}{
		{0, "0m"},
		{0.3, "300m"},
		{0.2387, "239m"},
		{0.9994, "999m"},
		{1.0, "1.0km"},
		{1.2, "1.2km"},
		{12.34, "12.3km"},
	}

	for _, tt := range tests {
		if got := FormatDistance(tt.km); got != tt.want {
			t.Errorf("FormatDistance(%v) = %q, want %q", tt.km, got, tt.want)
		}
	}
}

func TestFormatDistanceBoundary(t *testing.T) {
	if got := FormatDistance(0.9999); got[len(got)-2:] == "km" {
		t.Errorf("FormatDistance(0.9999) = %q, want meters form", got)
	}
	if got := FormatDistance(1.0); got[len(got)-2:] != "km" {
		t.Errorf("FormatDistance(1.0) = %q, want kilometers form", got)
	}
}

func TestIsWithinRadius(t *testing.T) {
	if !IsWithinRadius(nearby, casablanca, 5) {
		t.Error("expected nearby point to be within 5km")
	}
	if IsWithinRadius(rabat, casablanca, 5) {
		t.Error("expected rabat to be outside 5km")
	}
}
