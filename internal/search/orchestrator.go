// Package search runs the cached search flow: fingerprint the request, serve
// from the store when a fresh result exists, otherwise fetch from the provider
// and memoize the response.
package search

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobscout/jobscout/internal/model"
	"github.com/jobscout/jobscout/internal/optimizer"
	"github.com/jobscout/jobscout/internal/store"
	"github.com/jobscout/jobscout/internal/sweep"
	"github.com/jobscout/jobscout/pkg/adzuna"
)

var (
	// ErrMissingCredentials is returned on a cache miss when no provider
	// credentials are configured. Cache hits are still served without them.
	ErrMissingCredentials = eris.New("search: provider credentials not configured")

	// ErrBudgetExhausted is returned when the daily provider request budget
	// has been spent. It resets at local midnight.
	ErrBudgetExhausted = eris.New("search: daily provider budget exhausted")
)

// Options carries the orchestrator knobs that come from configuration.
type Options struct {
	DefaultCountry string
	PageSize       int
	HasCredentials bool
}

// Orchestrator coordinates the store, the query optimizer, the provider
// client, and the background sweeper for a single search request.
type Orchestrator struct {
	store    store.Store
	provider adzuna.Client
	opt      *optimizer.Optimizer
	budget   *Budget
	sweeper  *sweep.Sweeper
	opts     Options
	now      func() time.Time
}

func NewOrchestrator(st store.Store, provider adzuna.Client, opt *optimizer.Optimizer, budget *Budget, sweeper *sweep.Sweeper, opts Options) *Orchestrator {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.DefaultCountry == "" {
		opts.DefaultCountry = "us"
	}
	return &Orchestrator{
		store:    st,
		provider: provider,
		opt:      opt,
		budget:   budget,
		sweeper:  sweeper,
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests use this to pin cache timestamps.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Search serves a result from the cache when one is fresh, otherwise fetches
// from the provider, memoizes the response, and kicks off an asynchronous
// expiry sweep. Store read errors degrade to a cache miss rather than failing
// the request.
func (o *Orchestrator) Search(ctx context.Context, params model.SearchParams) (*model.SearchResult, error) {
	params = params.Normalize()
	fp := params.Fingerprint()
	log := zap.L().With(zap.String("fingerprint", fp), zap.String("title", params.Title))

	if res := o.fromCache(ctx, log, fp); res != nil {
		return res, nil
	}

	if !o.opts.HasCredentials {
		return nil, ErrMissingCredentials
	}
	if !o.budget.Allow() {
		return nil, ErrBudgetExhausted
	}

	country := regionFor(params.Location, o.opts.DefaultCountry)
	what := o.opt.Optimize(params.Title)
	if what != params.Title {
		log.Debug("query optimized", zap.String("optimized", what))
	}

	resp, err := o.provider.Search(ctx, adzuna.SearchRequest{
		What:         what,
		Where:        params.Location,
		Page:         params.Page,
		PageSize:     o.opts.PageSize,
		ContractType: params.JobType,
		Country:      country,
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: provider fetch")
	}

	now := o.now()
	listings := make([]model.Listing, 0, len(resp.Results))
	for _, job := range resp.Results {
		listings = append(listings, toListing(job, now))
	}
	totalCount := resp.Count
	totalPages := pageCount(totalCount, o.opts.PageSize)

	// The listing batch is the source of truth for everything downstream
	// (verification, expiry), so a failed batch write fails the search.
	if err := o.store.PutListings(ctx, listings); err != nil {
		return nil, eris.Wrap(err, "search: cache listings")
	}

	// The search row is pure memoization. Losing it costs one repeat fetch,
	// so a write failure is logged and the fetched results still go out.
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	if err := o.store.PutSearch(ctx, params, ids, totalCount, totalPages); err != nil {
		log.Warn("search cache write failed", zap.Error(err))
	}

	if o.sweeper != nil {
		o.sweeper.Background(context.WithoutCancel(ctx))
	}

	return &model.SearchResult{
		Listings:   listings,
		TotalCount: totalCount,
		TotalPages: totalPages,
		Page:       params.Page,
		FromCache:  false,
	}, nil
}

// fromCache returns a populated result on a fresh hit and nil on any miss,
// including store errors, which only get logged.
func (o *Orchestrator) fromCache(ctx context.Context, log *zap.Logger, fp string) *model.SearchResult {
	cached, err := o.store.GetSearch(ctx, fp)
	if err != nil {
		log.Warn("search cache read failed", zap.Error(err))
		return nil
	}
	if cached == nil {
		return nil
	}

	listings, err := o.store.GetListings(ctx, cached.ListingIDs)
	if err != nil {
		log.Warn("cached listings read failed", zap.Error(err))
		return nil
	}
	log.Debug("search cache hit", zap.Int("listings", len(listings)))

	return &model.SearchResult{
		Listings:   listings,
		TotalCount: cached.TotalCount,
		TotalPages: cached.TotalPages,
		Page:       cached.Params.Page,
		FromCache:  true,
	}
}

// toListing maps a provider job onto the cached listing shape. Unparseable
// created timestamps are left zero rather than rejecting the listing.
func toListing(job adzuna.Job, now time.Time) model.Listing {
	created, _ := time.Parse(time.RFC3339, job.Created)
	return model.Listing{
		ID:           job.ID,
		Title:        job.Title,
		Description:  job.Description,
		Company:      job.Company.DisplayName,
		Location:     job.Location.DisplayName,
		SalaryMin:    job.SalaryMin,
		SalaryMax:    job.SalaryMax,
		ContractType: job.ContractType,
		ContractTime: job.ContractTime,
		Category:     job.Category.Label,
		RedirectURL:  job.RedirectURL,
		Created:      created,
		CachedAt:     now,
		Validity:     model.ValidityUnverified,
		Raw:          job.Raw,
	}
}

func pageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
