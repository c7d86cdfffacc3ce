// Package store persists cached search results and listings. It is the only
// component that touches the database: the orchestrator, verification engine,
// and sweeper all mutate state exclusively through the Store interface.
package store

import (
	"context"
	"time"

	"github.com/jobscout/jobscout/internal/model"
)

// DefaultRetention is how long cached searches and listings stay readable.
// Expiry is evaluated lazily at read time; the sweeper deletes the rows.
const DefaultRetention = 20 * 24 * time.Hour

// Store defines the persistence interface for the listing cache.
type Store interface {
	// Search cache
	GetSearch(ctx context.Context, fingerprint string) (*model.CachedSearchResult, error)
	PutSearch(ctx context.Context, params model.SearchParams, listingIDs []string, totalCount, totalPages int) error

	// Listings
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	GetListings(ctx context.Context, ids []string) ([]model.Listing, error)
	PutListing(ctx context.Context, listing model.Listing) error

	// PutListings commits a batch of listings as one unit. The orchestrator
	// writes the listing batch before the search row, so a reader that finds
	// a cached search never finds its listings missing.
	PutListings(ctx context.Context, listings []model.Listing) error

	// Verification state
	SetListingValidity(ctx context.Context, id string, isValid bool) (bool, error)

	// Expiry
	DeleteExpiredListings(ctx context.Context, batchSize int) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Option configures a store backend.
type Option func(*options)

type options struct {
	retention time.Duration
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		retention: DefaultRetention,
		now:       time.Now,
	}
}

// WithRetention overrides the retention window.
func WithRetention(d time.Duration) Option {
	return func(o *options) { o.retention = d }
}

// WithClock injects the clock used for cache timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// expired reports whether a record cached at t is past the retention window.
func (o options) expired(t time.Time) bool {
	return o.now().After(t.Add(o.retention))
}
