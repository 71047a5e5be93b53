package repository

import (
	"context"
	"errors"
	"strings"

	"mira/internal/model"
)

// ErrNotFound is returned when a listing id does not exist
var ErrNotFound = errors.New("not found")

// ListingStore is read access to the listing pool. The query path never writes listings.
type ListingStore interface {
	// FindAll returns every listing, ordered by id, embeddings included
	FindAll(ctx context.Context) ([]model.Listing, error)
	FindByID(ctx context.Context, id int64) (*model.Listing, error)
	// FindByIDs returns the listings that exist among ids, ordered by id
	FindByIDs(ctx context.Context, ids []int64) ([]model.Listing, error)
}

// ListingWriter replaces the whole pool; used only by the offline seeder
type ListingWriter interface {
	ReplaceAll(ctx context.Context, listings []model.Listing) error
}

// SearchLogger persists processed queries and user feedback for analytics
type SearchLogger interface {
	LogSearch(ctx context.Context, entry model.SearchLog) error
	LogFeedback(ctx context.Context, searchID string, listingID int64, action string) error
}

// Store is implemented by both database backends
type Store interface {
	ListingStore
	ListingWriter
	SearchLogger
	Close() error
}

var (
	_ Store = (*PostgresRepository)(nil)
	_ Store = (*SQLiteRepository)(nil)
)

// listingColumns is shared by both backends
var listingColumns = strings.Join([]string{
	"id", "title", "price", "location", "bedrooms", "bathrooms", "size_sqft",
	"amenities", "property_type", "image_url", "description", "embedding",
}, ", ")

// insertListingSQL uses '?' placeholders; rebind for postgres
var insertListingSQL = `INSERT INTO listings (` + listingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
