// internal/adapter/storage/listing_store.go

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"tadamon/internal/domain/geo"
	"tadamon/internal/domain/listing"
)

// ListingStore implements listing.Store on Postgres
type ListingStore struct {
	db            *pgxpool.Pool
	neighborLimit int
}

// NewListingStore creates a new listing store. neighborLimit caps how many
// of the closest located users FetchNeighbors returns.
func NewListingStore(db *pgxpool.Pool, neighborLimit int) *ListingStore {
	if neighborLimit <= 0 {
		neighborLimit = 200
	}

	return &ListingStore{
		db:            db,
		neighborLimit: neighborLimit,
	}
}

// FetchPostings returns all postings, newest first
func (s *ListingStore) FetchPostings(ctx context.Context) ([]listing.Posting, error) {
	query := `
		SELECT
			i.id::text, i.type, i.category, i.title, COALESCE(i.quantity, ''), COALESCE(i.description, ''),
			i.latitude, i.longitude, i.is_anonymous,
			i.user_id::text, COALESCE(u.name, ''), i.created_at, COALESCE(i.status, 'AVAILABLE')
		FROM items i
		LEFT JOIN users u ON u.id = i.user_id
		ORDER BY i.created_at DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying items: %w", err)
	}
	defer rows.Close()

	postings := []listing.Posting{}
	for rows.Next() {
		var p listing.Posting
		var kind, category, status string
		var lat, lng *float64

		if err := rows.Scan(
			&p.ID,
			&kind,
			&category,
			&p.Title,
			&p.QuantityLabel,
			&p.Description,
			&lat,
			&lng,
			&p.IsAnonymous,
			&p.OwnerID,
			&p.OwnerName,
			&p.CreatedAt,
			&status,
		); err != nil {
			return nil, fmt.Errorf("error scanning item: %w", err)
		}

		p.Kind = listing.Kind(kind)
		p.Category = listing.Category(category)
		p.Status = listing.Status(status)
		p.Origin = pointOf(lat, lng)

		postings = append(postings, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return postings, nil
}

// FetchNeighbors returns located users, closest to origin first
func (s *ListingStore) FetchNeighbors(ctx context.Context, origin geo.GeoPoint) ([]listing.NeighborProfile, error) {
	query := `
		SELECT
			id::text, COALESCE(name, ''), is_anonymous, COALESCE(bio, ''),
			latitude, longitude, COALESCE(tags, '{}')
		FROM users
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY (latitude - $1) * (latitude - $1) + (longitude - $2) * (longitude - $2)
		LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, origin.Latitude, origin.Longitude, s.neighborLimit)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	neighbors := []listing.NeighborProfile{}
	for rows.Next() {
		var n listing.NeighborProfile
		var lat, lng *float64
		var tags []string

		if err := rows.Scan(
			&n.ID,
			&n.DisplayName,
			&n.IsAnonymous,
			&n.Bio,
			&lat,
			&lng,
			&tags,
		); err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}

		n.Origin = pointOf(lat, lng)
		n.Tags = make(map[listing.Category]bool, len(tags))
		for _, t := range tags {
			n.Tags[listing.Category(t)] = true
		}

		neighbors = append(neighbors, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return neighbors, nil
}

func pointOf(lat, lng *float64) *geo.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &geo.GeoPoint{Latitude: *lat, Longitude: *lng}
}
