// Package model defines the domain types shared across the cache, search,
// and verification subsystems.
package model

import "time"

// Validity is the verification state of a cached listing.
type Validity string

const (
	// ValidityUnverified means the listing has never been probed. Unverified
	// listings are treated as live by every read path.
	ValidityUnverified Validity = "unverified"
	// ValidityValid means the last probe confirmed the listing is live.
	ValidityValid Validity = "valid"
	// ValidityInvalid means the last probe found the listing closed or gone.
	ValidityInvalid Validity = "invalid"
)

// Listing is a cached job listing. The ID is provider-assigned and globally
// unique; CachedAt drives both retention expiry and verification age gates.
type Listing struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      string         `json:"company"`
	Location     string         `json:"location"`
	SalaryMin    float64        `json:"salary_min,omitempty"`
	SalaryMax    float64        `json:"salary_max,omitempty"`
	ContractType string         `json:"contract_type,omitempty"`
	ContractTime string         `json:"contract_time,omitempty"`
	Category     string         `json:"category,omitempty"`
	RedirectURL  string         `json:"redirect_url"`
	Created      time.Time      `json:"created"`
	CachedAt     time.Time      `json:"cached_at"`
	Validity     Validity       `json:"validity"`
	VerifiedAt   *time.Time     `json:"verified_at,omitempty"`
	Attempts     int            `json:"attempts"`
	Raw          map[string]any `json:"raw,omitempty"`
}

// Age returns how long the listing has been cached as of now.
func (l *Listing) Age(now time.Time) time.Duration {
	return now.Sub(l.CachedAt)
}

// Visible reports whether the listing may appear in search results.
// Unverified listings are assumed live; only confirmed-dead ones are hidden.
func (l *Listing) Visible() bool {
	return l.Validity != ValidityInvalid
}

// VerificationStatus is the envelope the presentation layer reads for
// freshness badges. These are the only verification fields the UI may use.
type VerificationStatus struct {
	IsValid    bool       `json:"is_valid"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Attempts   int        `json:"attempts"`
}

// Status projects the listing's verification state into the UI envelope.
func (l *Listing) Status() VerificationStatus {
	return VerificationStatus{
		IsValid:    l.Validity != ValidityInvalid,
		VerifiedAt: l.VerifiedAt,
		Attempts:   l.Attempts,
	}
}
