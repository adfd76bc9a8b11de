// internal/service/geo/resolver.go

package geo

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"tadamon/internal/domain/fault"
	"tadamon/internal/domain/geo"
)

// Intent is a request to obtain a location. It is one of LiveGPS,
// ManualCity, MapLink or RawCoordinates.
type Intent interface {
	Source() geo.Source
}

// LiveGPS asks the positioning service for the current fix
type LiveGPS struct {
	Label string
}

// ManualCity picks a city from the registry
type ManualCity struct {
	CityID string
	Label  string
}

// MapLink is a shared maps URL, possibly shortened
type MapLink struct {
	URL   string
	Label string
}

// RawCoordinates is pasted text containing "<lat>, <lng>"
type RawCoordinates struct {
	Text  string
	Label string
}

func (LiveGPS) Source() geo.Source        { return geo.SourceGPS }
func (ManualCity) Source() geo.Source     { return geo.SourceManualCity }
func (MapLink) Source() geo.Source        { return geo.SourceMapLink }
func (RawCoordinates) Source() geo.Source { return geo.SourceRawCoordinates }

var mapLinkHosts = []string{"google.com/maps", "maps.app.goo.gl", "goo.gl"}

// ClassifyPasted turns pasted text into a MapLink intent when it looks like a
// maps URL, and into a RawCoordinates intent otherwise
func ClassifyPasted(text, label string) Intent {
	text = strings.TrimSpace(text)
	for _, host := range mapLinkHosts {
		if strings.Contains(text, host) {
			return MapLink{URL: text, Label: label}
		}
	}
	return RawCoordinates{Text: text, Label: label}
}

// Resolver turns location intents into canonical locations
type Resolver struct {
	positioner geo.Positioner
	links      geo.LinkResolver
	cities     geo.CityRegistry
}

// NewResolver creates a resolver. A nil positioner means the platform has no
// positioning capability.
func NewResolver(positioner geo.Positioner, links geo.LinkResolver, cities geo.CityRegistry) *Resolver {
	return &Resolver{
		positioner: positioner,
		links:      links,
		cities:     cities,
	}
}

// WithPositioner returns a copy of the resolver using p for LiveGPS intents
func (r *Resolver) WithPositioner(p geo.Positioner) *Resolver {
	cp := *r
	cp.positioner = p
	return &cp
}

// Resolve resolves intent into a CanonicalLocation tagged with its source
func (r *Resolver) Resolve(ctx context.Context, intent Intent) (geo.CanonicalLocation, error) {
	switch in := intent.(type) {
	case LiveGPS:
		return r.resolveGPS(ctx, in)
	case ManualCity:
		return r.resolveCity(in)
	case MapLink:
		return r.resolveMapLink(ctx, in)
	case RawCoordinates:
		return r.resolveRaw(in)
	default:
		return geo.CanonicalLocation{}, errors.New("unsupported location intent")
	}
}

func (r *Resolver) resolveGPS(ctx context.Context, in LiveGPS) (geo.CanonicalLocation, error) {
	const op = "resolve gps"

	if r.positioner == nil {
		return geo.CanonicalLocation{}, fault.Newf(fault.LocationUnavailable, op, "positioning is not supported")
	}

	p, err := r.positioner.GetCurrentPosition(ctx)
	if err != nil {
		return geo.CanonicalLocation{}, fault.New(fault.LocationUnavailable, op, err)
	}
	if !p.Valid() {
		return geo.CanonicalLocation{}, fault.Newf(fault.LocationUnavailable, op, "invalid position %s", p)
	}

	return canonical(p, in.Label, geo.LabelCurrentLocation, geo.SourceGPS), nil
}

func (r *Resolver) resolveCity(in ManualCity) (geo.CanonicalLocation, error) {
	if r.cities == nil {
		return geo.CanonicalLocation{}, fault.Newf(fault.UnknownCity, "resolve city", "no city registry")
	}

	city, ok := r.cities.LookupCity(in.CityID)
	if !ok {
		return geo.CanonicalLocation{}, fault.Newf(fault.UnknownCity, "resolve city", "city %q is not registered", in.CityID)
	}

	return canonical(city.At, in.Label, city.Name, geo.SourceManualCity), nil
}

func (r *Resolver) resolveMapLink(ctx context.Context, in MapLink) (geo.CanonicalLocation, error) {
	const op = "resolve map link"

	if r.links == nil {
		return geo.CanonicalLocation{}, fault.Newf(fault.LinkFetchFailed, op, "link resolution is not configured")
	}

	finalURL, err := r.links.ResolveMapLink(ctx, in.URL)
	if err != nil {
		return geo.CanonicalLocation{}, fault.New(fault.LinkFetchFailed, op, err)
	}

	p, ok := ExtractFromMapURL(finalURL)
	if !ok {
		return geo.CanonicalLocation{}, fault.Newf(fault.UnresolvableLink, op, "could not extract coordinates from this link")
	}

	log.Debug().Str("url", finalURL).Stringer("point", p).Msg("Map link resolved")

	return canonical(p, in.Label, geo.LabelSharedLocation, geo.SourceMapLink), nil
}

func (r *Resolver) resolveRaw(in RawCoordinates) (geo.CanonicalLocation, error) {
	p, ok := ExtractRawCoordinates(in.Text)
	if !ok {
		return geo.CanonicalLocation{}, fault.Newf(fault.NoCoordinatesFound, "resolve coordinates", "no coordinate pair in input")
	}

	return canonical(p, in.Label, geo.LabelCustomLocation, geo.SourceRawCoordinates), nil
}

func canonical(p geo.GeoPoint, label, fallback string, source geo.Source) geo.CanonicalLocation {
	if strings.TrimSpace(label) == "" {
		label = fallback
	}
	return geo.CanonicalLocation{GeoPoint: p, Label: label, Source: source}
}
