// Package adzuna provides a client for the Adzuna job search API.
package adzuna

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production Adzuna API endpoint.
const DefaultBaseURL = "https://api.adzuna.com/v1/api/jobs"

// Client defines the Adzuna search operation.
type Client interface {
	// Search performs a paginated keyword/location search. A non-success
	// HTTP status is an error; success with zero results is not.
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest holds the provider search inputs.
type SearchRequest struct {
	What         string // keyword query
	Where        string // free-text location
	Page         int    // 1-based
	PageSize     int
	ContractType string // "permanent", "contract", "full_time", "part_time"
	Country      string // ISO country code, e.g. "us", "gb"
}

// SearchResponse is the parsed provider response.
type SearchResponse struct {
	Results []Job
	Count   int
}

// Job mirrors a single Adzuna listing. Raw retains the untouched payload so
// the store layer can apply its own field filtering.
type Job struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      Company        `json:"company"`
	Location     Location       `json:"location"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	ContractType string         `json:"contract_type"`
	ContractTime string         `json:"contract_time"`
	Category     Category       `json:"category"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	Raw          map[string]any `json:"-"`
}

// Company holds the display name of the hiring company.
type Company struct {
	DisplayName string `json:"display_name"`
}

// Location holds the display name of the listing location.
type Location struct {
	DisplayName string `json:"display_name"`
}

// Category holds the provider's category tag.
type Category struct {
	Label string `json:"label"`
	Tag   string `json:"tag"`
}

// Option configures the Adzuna client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.hc = hc }
}

// WithRateLimit paces outbound calls to at most rps requests per second.
// This is burst protection inside the daily budget, not a replacement for it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	appID   string
	appKey  string
	baseURL string
	hc      *http.Client
	limiter *rate.Limiter
}

// New creates an Adzuna client. Credentials are not validated here; the
// caller decides whether missing credentials are an error.
func New(appID, appKey string, opts ...Option) Client {
	c := &httpClient{
		appID:   appID,
		appKey:  appKey,
		baseURL: DefaultBaseURL,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, fn := range opts {
		fn(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "adzuna: rate limit wait")
		}
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	endpoint := fmt.Sprintf("%s/%s/search/%d", c.baseURL, req.Country, page)

	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("results_per_page", strconv.Itoa(pageSize))
	params.Set("what", req.What)
	if req.Where != "" {
		params.Set("where", req.Where)
	}
	switch req.ContractType {
	case "permanent", "contract", "full_time", "part_time":
		params.Set(req.ContractType, "1")
	}
	params.Set("content-type", "application/json")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "adzuna: create request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "adzuna: search")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "adzuna: read body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("adzuna: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed struct {
		Results []Job `json:"results"`
		Count   int   `json:"count"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "adzuna: unmarshal response")
	}

	// Second pass keeps the untouched payload alongside each typed result.
	var raw struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err == nil {
		for i := range parsed.Results {
			if i < len(raw.Results) {
				parsed.Results[i].Raw = raw.Results[i]
			}
		}
	}

	return &SearchResponse{Results: parsed.Results, Count: parsed.Count}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
