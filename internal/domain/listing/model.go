// internal/domain/listing/model.go

package listing

import (
	"context"
	"time"

	"tadamon/internal/domain/geo"
)

// Kind distinguishes offers from requests
type Kind string

const (
	KindOffer   Kind = "OFFER"
	KindRequest Kind = "REQUEST"
)

// Category is the kind of goods a posting or neighbor is about
type Category string

const (
	CategoryFood    Category = "FOOD"
	CategoryClothes Category = "CLOTHES"
	CategoryOthers  Category = "OTHERS"
)

// Status is driven externally; the core only reads it
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusTaken     Status = "TAKEN"
	StatusClaimed   Status = "CLAIMED"
	StatusCompleted Status = "COMPLETED"
)

// Role is the viewer's role chosen at onboarding
type Role string

const (
	RoleGiver    Role = "GIVER"
	RoleReceiver Role = "RECEIVER"
)

// AnonymousName is displayed in place of the owner of an anonymous posting
const AnonymousName = "Anonymous Neighbor"

// Posting is a donation offer or a help request
type Posting struct {
	ID            string        `json:"id"`
	Kind          Kind          `json:"kind"`
	Category      Category      `json:"category"`
	Title         string        `json:"title"`
	QuantityLabel string        `json:"quantity"`
	Description   string        `json:"description"`
	Origin        *geo.GeoPoint `json:"origin,omitempty"`
	IsAnonymous   bool          `json:"isAnonymous"`
	OwnerID       string        `json:"ownerId"`
	OwnerName     string        `json:"-"`
	CreatedAt     time.Time     `json:"createdAt"`
	Status        Status        `json:"status"`
}

// DisplayName returns the name to show for the posting's owner
func (p Posting) DisplayName() string {
	if p.IsAnonymous {
		return AnonymousName
	}
	if p.OwnerName == "" {
		return "Unknown"
	}
	return p.OwnerName
}

// NeighborProfile is a person visible for direct contact
type NeighborProfile struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"displayName"`
	IsAnonymous bool              `json:"isAnonymous"`
	Origin      *geo.GeoPoint     `json:"origin,omitempty"`
	Tags        map[Category]bool `json:"-"`
	Bio         string            `json:"bio"`
}

// HasTag reports whether the neighbor is tagged with category c
func (n NeighborProfile) HasTag(c Category) bool {
	return n.Tags[c]
}

// Store is the read side of the hosted backend for postings and neighbors
type Store interface {
	// FetchPostings returns all postings, newest first
	FetchPostings(ctx context.Context) ([]Posting, error)

	// FetchNeighbors returns people near origin that can be contacted
	FetchNeighbors(ctx context.Context, origin geo.GeoPoint) ([]NeighborProfile, error)
}
