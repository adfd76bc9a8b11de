// internal/server/handlers/feed.go

package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"tadamon/internal/domain/fault"
	"tadamon/internal/domain/geo"
	"tadamon/internal/domain/listing"
	geoService "tadamon/internal/service/geo"
	listingService "tadamon/internal/service/listing"
)

// FeedHandler handles the nearby postings and neighbors feed
type FeedHandler struct {
	feed     *listingService.Feed
	trackers *geoService.TrackerRegistry
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feed *listingService.Feed, trackers *geoService.TrackerRegistry) *FeedHandler {
	return &FeedHandler{
		feed:     feed,
		trackers: trackers,
	}
}

type feedResponse struct {
	Origin    geo.GeoPoint                  `json:"origin"`
	RadiusKm  float64                       `json:"radiusKm"`
	Postings  []listingService.PostingItem  `json:"postings"`
	Neighbors []listingService.NeighborItem `json:"neighbors"`
	Errors    map[string]string             `json:"errors,omitempty"`
}

// GetFeed returns postings, neighbors or both around the viewer. The origin
// is taken from lat/lng when given, otherwise from the viewer's tracked location.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "id")
	query := r.URL.Query()

	var origin geo.GeoPoint
	var err error
	if query.Get("lat") != "" || query.Get("lng") != "" {
		origin, err = parsePoint(r, "lat", "lng")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	} else {
		loc, _, ok := h.trackers.For(viewerID).Current()
		if !ok {
			err = fault.Newf(fault.LocationUnavailable, "feed origin", "viewer has no location yet")
			respondWithFault(w, "No location for viewer", err)
			return
		}
		origin = loc.GeoPoint
	}

	var radius float64
	if radiusStr := query.Get("radius"); radiusStr != "" {
		radius, err = strconv.ParseFloat(radiusStr, 64)
		if err == nil && (math.IsNaN(radius) || math.IsInf(radius, 0)) {
			err = fmt.Errorf("radius must be finite, got %q", radiusStr)
		}
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid radius", err)
			return
		}
	}

	q := listingService.Query{
		Origin:   origin,
		RadiusKm: h.feed.ClampRadius(radius),
		Role:     listing.Role(strings.ToUpper(query.Get("role"))),
		Kind:     listing.Kind(strings.ToUpper(query.Get("kind"))),
		Category: listing.Category(strings.ToUpper(query.Get("category"))),
	}

	resp := feedResponse{Origin: origin, RadiusKm: q.RadiusKm}

	switch view := query.Get("view"); view {
	case "", "postings":
		resp.Postings, err = h.feed.Postings(r.Context(), q)
		if err != nil {
			respondWithFault(w, "Failed to load postings", err)
			return
		}

	case "neighbors":
		resp.Neighbors, err = h.feed.Neighbors(r.Context(), q)
		if err != nil {
			respondWithFault(w, "Failed to load neighbors", err)
			return
		}

	case "all":
		h.loadAll(r.Context(), q, &resp)

	default:
		respondWithError(w, http.StatusBadRequest, "Unknown view "+strconv.Quote(view), nil)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// loadAll fetches both sections independently; a failed section is reported
// in Errors and never hides the other one
func (h *FeedHandler) loadAll(ctx context.Context, q listingService.Query, resp *feedResponse) {
	var wg sync.WaitGroup
	var postingsErr, neighborsErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		resp.Postings, postingsErr = h.feed.Postings(ctx, q)
	}()
	go func() {
		defer wg.Done()
		resp.Neighbors, neighborsErr = h.feed.Neighbors(ctx, q)
	}()
	wg.Wait()

	resp.Errors = map[string]string{}
	if postingsErr != nil {
		resp.Errors["postings"] = string(fault.KindOf(postingsErr))
		resp.Postings = []listingService.PostingItem{}
	}
	if neighborsErr != nil {
		resp.Errors["neighbors"] = string(fault.KindOf(neighborsErr))
		resp.Neighbors = []listingService.NeighborItem{}
	}
	if len(resp.Errors) == 0 {
		resp.Errors = nil
	}
}
