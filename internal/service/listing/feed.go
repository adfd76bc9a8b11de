// internal/service/listing/feed.go

package listing

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"tadamon/internal/domain/fault"
	"tadamon/internal/domain/geo"
	"tadamon/internal/domain/listing"
	geoService "tadamon/internal/service/geo"
)

// FeedConfig contains configuration for the feed
type FeedConfig struct {
	DefaultRadiusKm float64
	MinRadiusKm     float64
	MaxRadiusKm     float64
}

// Query selects what a viewer sees around their location
type Query struct {
	Origin   geo.GeoPoint
	RadiusKm float64
	Role     listing.Role
	Kind     listing.Kind
	Category listing.Category
}

// PostingItem is a posting placed relative to the viewer
type PostingItem struct {
	listing.Posting
	OwnerDisplayName string  `json:"ownerName"`
	DistanceKm       float64 `json:"distanceKm"`
	DistanceLabel    string  `json:"distanceLabel"`
}

// NeighborItem is a neighbor placed relative to the viewer
type NeighborItem struct {
	listing.NeighborProfile
	DistanceKm    float64 `json:"distanceKm"`
	DistanceLabel string  `json:"distanceLabel"`
}

// Feed lists postings and neighbors within a radius of the viewer
type Feed struct {
	store  listing.Store
	config FeedConfig
}

// NewFeed creates a new feed
func NewFeed(store listing.Store, config FeedConfig) *Feed {
	if config.DefaultRadiusKm <= 0 {
		config.DefaultRadiusKm = 5
	}
	if config.MinRadiusKm <= 0 {
		config.MinRadiusKm = 1
	}
	if config.MaxRadiusKm < config.MinRadiusKm {
		config.MaxRadiusKm = 50
	}

	return &Feed{
		store:  store,
		config: config,
	}
}

// ClampRadius returns the radius to use for a requested value. Zero and NaN
// mean the default.
func (f *Feed) ClampRadius(radiusKm float64) float64 {
	switch {
	case math.IsNaN(radiusKm) || radiusKm <= 0:
		return f.config.DefaultRadiusKm
	case radiusKm < f.config.MinRadiusKm:
		return f.config.MinRadiusKm
	case radiusKm > f.config.MaxRadiusKm:
		return f.config.MaxRadiusKm
	}
	return radiusKm
}

// DefaultKind returns the posting kind a viewer with role sees by default:
// givers look for requests, receivers look for offers
func DefaultKind(role listing.Role) listing.Kind {
	if role == listing.RoleGiver {
		return listing.KindRequest
	}
	return listing.KindOffer
}

// Postings returns matching postings within the radius, nearest first
func (f *Feed) Postings(ctx context.Context, q Query) ([]PostingItem, error) {
	postings, err := f.store.FetchPostings(ctx)
	if err != nil {
		return nil, fault.New(fault.FetchFailed, "fetch postings", err)
	}

	kind := q.Kind
	if kind == "" {
		kind = DefaultKind(q.Role)
	}

	entries := make([]geoService.Entry[listing.Posting], 0, len(postings))
	for _, p := range postings {
		if p.Kind != kind {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		entries = append(entries, geoService.Entry[listing.Posting]{Item: p, Location: p.Origin})
	}

	ranked := geoService.FilterByRadius(q.Origin, f.ClampRadius(q.RadiusKm), entries)

	items := make([]PostingItem, len(ranked))
	for i, r := range ranked {
		items[i] = PostingItem{
			Posting:          r.Item,
			OwnerDisplayName: r.Item.DisplayName(),
			DistanceKm:       r.DistanceKm,
			DistanceLabel:    geoService.FormatDistance(r.DistanceKm),
		}
	}

	log.Debug().
		Int("fetched", len(postings)).
		Int("matched", len(items)).
		Str("kind", string(kind)).
		Msg("Postings feed built")

	return items, nil
}

// Neighbors returns neighbors within the radius, nearest first. A category
// restricts the result to neighbors tagged with it.
func (f *Feed) Neighbors(ctx context.Context, q Query) ([]NeighborItem, error) {
	neighbors, err := f.store.FetchNeighbors(ctx, q.Origin)
	if err != nil {
		return nil, fault.New(fault.FetchFailed, "fetch neighbors", err)
	}

	entries := make([]geoService.Entry[listing.NeighborProfile], 0, len(neighbors))
	for _, n := range neighbors {
		if q.Category != "" && !n.HasTag(q.Category) {
			continue
		}
		entries = append(entries, geoService.Entry[listing.NeighborProfile]{Item: n, Location: n.Origin})
	}

	ranked := geoService.FilterByRadius(q.Origin, f.ClampRadius(q.RadiusKm), entries)

	items := make([]NeighborItem, len(ranked))
	for i, r := range ranked {
		items[i] = NeighborItem{
			NeighborProfile: r.Item,
			DistanceKm:      r.DistanceKm,
			DistanceLabel:   geoService.FormatDistance(r.DistanceKm),
		}
		if r.Item.IsAnonymous {
			items[i].DisplayName = listing.AnonymousName
		}
	}

	return items, nil
}
