// internal/server/handlers/geo.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tadamon/internal/domain/geo"
	geoService "tadamon/internal/service/geo"
)

// errPermissionDenied is reported for a device that refused to share its position
var errPermissionDenied = errors.New("location permission denied")

// GeoHandler handles location-related HTTP requests
type GeoHandler struct {
	resolver *geoService.Resolver
	trackers *geoService.TrackerRegistry
	cities   *geoService.CityRegistry
}

// NewGeoHandler creates a new geo handler
func NewGeoHandler(
	resolver *geoService.Resolver,
	trackers *geoService.TrackerRegistry,
	cities *geoService.CityRegistry,
) *GeoHandler {
	return &GeoHandler{
		resolver: resolver,
		trackers: trackers,
		cities:   cities,
	}
}

// locationRequest describes one location intent. Type is one of gps, manual,
// city, link, raw or pasted. For gps the client forwards its device reading.
type locationRequest struct {
	Type   string   `json:"type"`
	CityID string   `json:"cityId"`
	URL    string   `json:"url"`
	Text   string   `json:"text"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
	Denied bool     `json:"denied"`
	Label  string   `json:"label"`
}

// locationResponse is a resolved location with its map link
type locationResponse struct {
	Lat    float64    `json:"lat"`
	Lng    float64    `json:"lng"`
	Label  string     `json:"label"`
	Source geo.Source `json:"source"`
	MapURL string     `json:"mapUrl"`
}

func newLocationResponse(loc geo.CanonicalLocation) locationResponse {
	return locationResponse{
		Lat:    loc.Latitude,
		Lng:    loc.Longitude,
		Label:  loc.Label,
		Source: loc.Source,
		MapURL: loc.MapURL(),
	}
}

// intent converts the request into a location intent and the resolver to use for it
func (h *GeoHandler) intent(req locationRequest) (geoService.Intent, *geoService.Resolver, error) {
	switch req.Type {
	case "gps":
		reading := req
		positioner := geo.PositionFunc(func(ctx context.Context) (geo.GeoPoint, error) {
			if reading.Denied {
				return geo.GeoPoint{}, errPermissionDenied
			}
			if reading.Lat == nil || reading.Lng == nil {
				return geo.GeoPoint{}, errors.New("no device reading")
			}
			return geo.GeoPoint{Latitude: *reading.Lat, Longitude: *reading.Lng}, nil
		})
		return geoService.LiveGPS{Label: req.Label}, h.resolver.WithPositioner(positioner), nil
	case "manual":
		return geoService.ManualCity{CityID: "casablanca", Label: req.Label}, h.resolver, nil
	case "city":
		return geoService.ManualCity{CityID: req.CityID, Label: req.Label}, h.resolver, nil
	case "link":
		return geoService.MapLink{URL: req.URL, Label: req.Label}, h.resolver, nil
	case "raw":
		return geoService.RawCoordinates{Text: req.Text, Label: req.Label}, h.resolver, nil
	case "pasted":
		return geoService.ClassifyPasted(req.Text, req.Label), h.resolver, nil
	}
	return nil, nil, errors.New("unknown location type " + strconv.Quote(req.Type))
}

// ParseLocation extracts coordinates from a shared maps link
func (h *GeoHandler) ParseLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		respondWithError(w, http.StatusBadRequest, "URL is required", err)
		return
	}

	loc, err := h.resolver.Resolve(r.Context(), geoService.MapLink{URL: req.URL})
	if err != nil {
		respondWithFault(w, "Failed to parse location", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"lat":   loc.Latitude,
		"lng":   loc.Longitude,
		"label": loc.Label,
	})
}

// ResolveLocation resolves any location intent without storing it
func (h *GeoHandler) ResolveLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	intent, resolver, err := h.intent(req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	loc, err := resolver.Resolve(r.Context(), intent)
	if err != nil {
		respondWithFault(w, "Failed to resolve location", err)
		return
	}

	respondWithJSON(w, http.StatusOK, newLocationResponse(loc))
}

// ListCities returns the cities available for the CITY location mode
func (h *GeoHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities := h.cities.Cities()
	sort.Slice(cities, func(i, j int) bool {
		return cities[i].Name < cities[j].Name
	})

	respondWithJSON(w, http.StatusOK, cities)
}

// GetDistance returns the distance between two points
func (h *GeoHandler) GetDistance(w http.ResponseWriter, r *http.Request) {
	from, err := parsePoint(r, "fromLat", "fromLng")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	to, err := parsePoint(r, "toLat", "toLng")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	km := geoService.DistanceKm(from, to)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"distanceKm":    km,
		"distanceLabel": geoService.FormatDistance(km),
	})
}

// SetViewerLocation switches the viewer's location mode and resolves the new location
func (h *GeoHandler) SetViewerLocation(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "id")

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	intent, resolver, err := h.intent(req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	loc, err := h.trackers.For(viewerID).Set(r.Context(), resolver, intent)
	if err != nil {
		respondWithFault(w, "Failed to update location", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"mode":     intent.Source(),
		"location": newLocationResponse(loc),
	})
}

// GetViewerLocation returns the viewer's current location and mode
func (h *GeoHandler) GetViewerLocation(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "id")

	loc, mode, ok := h.trackers.For(viewerID).Current()
	if !ok {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"mode":     mode,
			"location": nil,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"mode":     mode,
		"location": newLocationResponse(loc),
	})
}

// parsePoint reads a coordinate pair from the query string. Zero is a valid value.
func parsePoint(r *http.Request, latKey, lngKey string) (geo.GeoPoint, error) {
	latStr := r.URL.Query().Get(latKey)
	lngStr := r.URL.Query().Get(lngKey)

	if latStr == "" || lngStr == "" {
		return geo.GeoPoint{}, errors.New("missing " + latKey + " or " + lngKey)
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.GeoPoint{}, errors.New("invalid " + latKey)
	}

	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return geo.GeoPoint{}, errors.New("invalid " + lngKey)
	}

	p := geo.GeoPoint{Latitude: lat, Longitude: lng}
	if !p.Valid() {
		return geo.GeoPoint{}, errors.New("coordinates out of range")
	}
	return p, nil
}
