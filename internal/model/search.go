package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// SearchParams are the user-facing search inputs. The normalized tuple
// (title, location, job type, page) is the identity of a cached search.
type SearchParams struct {
	Title    string `json:"title"`
	Location string `json:"location"`
	JobType  string `json:"job_type,omitempty"` // contract type filter, e.g. "permanent"
	Page     int    `json:"page"`
}

// Normalize lowercases and trims the free-text fields and clamps the page to
// at least 1. Two searches that normalize equal must hit the same cache entry.
func (p SearchParams) Normalize() SearchParams {
	n := SearchParams{
		Title:    strings.ToLower(strings.TrimSpace(p.Title)),
		Location: strings.ToLower(strings.TrimSpace(p.Location)),
		JobType:  strings.ToLower(strings.TrimSpace(p.JobType)),
		Page:     p.Page,
	}
	if n.Page < 1 {
		n.Page = 1
	}
	return n
}

// Fingerprint returns SHA-256 hex of the normalized parameter tuple. Two
// searches with identical normalized parameters collide on the same
// fingerprint, which is what makes the cache at-most-one-entry per search.
func (p SearchParams) Fingerprint() string {
	n := p.Normalize()
	key := fmt.Sprintf("%s|%s|%s|%d", n.Title, n.Location, n.JobType, n.Page)
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}

// CachedSearchResult is one memoized provider search: the ordered listing ids
// for a page plus the pagination metadata needed to rebuild the envelope.
type CachedSearchResult struct {
	Fingerprint string       `json:"fingerprint"`
	Params      SearchParams `json:"params"`
	ListingIDs  []string     `json:"listing_ids"`
	TotalCount  int          `json:"total_count"`
	TotalPages  int          `json:"total_pages"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SearchResult is the envelope returned to the presentation layer for one
// search request.
type SearchResult struct {
	Listings   []Listing `json:"listings"`
	TotalCount int       `json:"total_count"`
	TotalPages int       `json:"total_pages"`
	Page       int       `json:"page"`
	FromCache  bool      `json:"from_cache"`
}
