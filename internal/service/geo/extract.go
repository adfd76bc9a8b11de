// internal/service/geo/extract.go

package geo

import (
	"regexp"
	"strconv"

	"tadamon/internal/domain/geo"
)

// extractor pulls a coordinate pair out of a map URL
type extractor struct {
	name    string
	pattern *regexp.Regexp
}

// linkExtractors are tried in order; the first match wins
var linkExtractors = []extractor{
	// .../@33.5731,-7.5898,15z/...
	{name: "at", pattern: regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)},
	// ...?q=33.5731,-7.5898
	{name: "query", pattern: regexp.MustCompile(`[?&]q=(-?\d+\.\d+),(-?\d+\.\d+)`)},
	// ...!3d33.5731!4d-7.5898
	{name: "data", pattern: regexp.MustCompile(`!3d(-?\d+\.\d+)!4d(-?\d+\.\d+)`)},
}

// rawCoordinates accepts "<float>, <float>" anywhere in free text
var rawCoordinates = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)`)

func (e extractor) extract(s string) (geo.GeoPoint, bool) {
	m := e.pattern.FindStringSubmatch(s)
	if m == nil {
		return geo.GeoPoint{}, false
	}
	return parsePair(m[1], m[2])
}

// parsePair parses two numbers into a point; zero is a valid coordinate
func parsePair(latStr, lngStr string) (geo.GeoPoint, bool) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.GeoPoint{}, false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return geo.GeoPoint{}, false
	}

	p := geo.GeoPoint{Latitude: lat, Longitude: lng}
	if !p.Valid() {
		return geo.GeoPoint{}, false
	}
	return p, true
}

// ExtractFromMapURL returns the coordinates of the first pattern that matches
func ExtractFromMapURL(url string) (geo.GeoPoint, bool) {
	for _, e := range linkExtractors {
		if p, ok := e.extract(url); ok {
			return p, true
		}
	}
	return geo.GeoPoint{}, false
}

// ExtractRawCoordinates finds the first coordinate pair in free text
func ExtractRawCoordinates(text string) (geo.GeoPoint, bool) {
	for _, m := range rawCoordinates.FindAllStringSubmatch(text, -1) {
		if p, ok := parsePair(m[1], m[2]); ok {
			return p, true
		}
	}
	return geo.GeoPoint{}, false
}
