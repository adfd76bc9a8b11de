// internal/domain/geo/service.go

package geo

import (
	"context"
	"fmt"
)

// GeoPoint is a WGS84 coordinate pair
type GeoPoint struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the point lies inside the latitude/longitude ranges
func (p GeoPoint) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// Source records how a CanonicalLocation was obtained
type Source string

const (
	SourceGPS            Source = "GPS"
	SourceManualCity     Source = "MANUAL_CITY"
	SourceMapLink        Source = "MAP_LINK"
	SourceRawCoordinates Source = "RAW_COORDINATES"
)

// Known reports whether s is one of the defined sources
func (s Source) Known() bool {
	switch s {
	case SourceGPS, SourceManualCity, SourceMapLink, SourceRawCoordinates:
		return true
	}
	return false
}

// Default labels per source
const (
	LabelCurrentLocation = "Current Location"
	LabelSharedLocation  = "Shared Location"
	LabelCustomLocation  = "Custom Location"
)

// CanonicalLocation is the resolved form of any location intent. It is a
// value: copies are shared, never references.
type CanonicalLocation struct {
	GeoPoint
	Label  string `json:"label"`
	Source Source `json:"source"`
}

// MapURL returns a link that opens the location in a maps application
func (l CanonicalLocation) MapURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", l.Latitude, l.Longitude)
}

// City is an entry of the static city registry
type City struct {
	ID   string   `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
	At   GeoPoint `json:"at" yaml:",inline"`
}

// Positioner provides the device's current position
type Positioner interface {
	// GetCurrentPosition fails when positioning is unsupported or denied
	GetCurrentPosition(ctx context.Context) (GeoPoint, error)
}

// PositionFunc adapts a function to the Positioner interface
type PositionFunc func(ctx context.Context) (GeoPoint, error)

func (f PositionFunc) GetCurrentPosition(ctx context.Context) (GeoPoint, error) {
	return f(ctx)
}

// LinkResolver follows a shared map link to its final URL
type LinkResolver interface {
	ResolveMapLink(ctx context.Context, url string) (string, error)
}

// CityRegistry is a read-only table of known cities
type CityRegistry interface {
	LookupCity(id string) (City, bool)
}
