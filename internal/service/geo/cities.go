// internal/service/geo/cities.go

package geo

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tadamon/internal/domain/geo"
)

// Casablanca is the fixed position used by the MANUAL location mode
var Casablanca = geo.GeoPoint{Latitude: 33.5731, Longitude: -7.5898}

var defaultCities = []geo.City{
	{ID: "casablanca", Name: "Casablanca", At: Casablanca},
	{ID: "rabat", Name: "Rabat", At: geo.GeoPoint{Latitude: 34.0209, Longitude: -6.8416}},
	{ID: "marrakech", Name: "Marrakech", At: geo.GeoPoint{Latitude: 31.6295, Longitude: -7.9811}},
	{ID: "fes", Name: "Fes", At: geo.GeoPoint{Latitude: 34.0181, Longitude: -5.0078}},
	{ID: "tangier", Name: "Tangier", At: geo.GeoPoint{Latitude: 35.7595, Longitude: -5.8340}},
	{ID: "agadir", Name: "Agadir", At: geo.GeoPoint{Latitude: 30.4278, Longitude: -9.5981}},
	{ID: "meknes", Name: "Meknes", At: geo.GeoPoint{Latitude: 33.8935, Longitude: -5.5473}},
	{ID: "oujda", Name: "Oujda", At: geo.GeoPoint{Latitude: 34.6814, Longitude: -1.9086}},
	{ID: "kenitra", Name: "Kenitra", At: geo.GeoPoint{Latitude: 34.2610, Longitude: -6.5802}},
	{ID: "tetouan", Name: "Tetouan", At: geo.GeoPoint{Latitude: 35.5889, Longitude: -5.3626}},
}

// CityRegistry is a fixed lookup table of city coordinates. It is built once
// and only read afterwards.
type CityRegistry struct {
	cities map[string]geo.City
}

// NewCityRegistry creates a registry with the built-in cities plus extra.
// Extra entries override built-ins with the same id.
func NewCityRegistry(extra ...geo.City) *CityRegistry {
	r := &CityRegistry{cities: make(map[string]geo.City, len(defaultCities)+len(extra))}
	for _, c := range defaultCities {
		r.cities[normalizeCityID(c.ID)] = c
	}
	for _, c := range extra {
		r.cities[normalizeCityID(c.ID)] = c
	}
	return r
}

// LookupCity returns the city registered under id, ignoring case and spaces
func (r *CityRegistry) LookupCity(id string) (geo.City, bool) {
	c, ok := r.cities[normalizeCityID(id)]
	return c, ok
}

// Cities returns a copy of all registered cities
func (r *CityRegistry) Cities() []geo.City {
	out := make([]geo.City, 0, len(r.cities))
	for _, c := range r.cities {
		out = append(out, c)
	}
	return out
}

type cityFile struct {
	Cities []geo.City `yaml:"cities"`
}

// LoadCityFile reads additional cities from a YAML file
func LoadCityFile(path string) ([]geo.City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read city file: %w", err)
	}

	var f cityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse city file: %w", err)
	}

	for i, c := range f.Cities {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("city %d: missing id", i)
		}
		if !c.At.Valid() {
			return nil, fmt.Errorf("city %q: coordinates out of range", c.ID)
		}
		if c.Name == "" {
			f.Cities[i].Name = c.ID
		}
	}

	return f.Cities, nil
}

func normalizeCityID(id string) string {
	return strings.ToLower(strings.Join(strings.Fields(id), "-"))
}
