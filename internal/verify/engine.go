// Package verify decides whether aged listings are still live. Checks are
// tiered by listing age and strictly best-effort: a probe that cannot reach a
// definite answer leaves the stored validity untouched.
package verify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobscout/jobscout/internal/model"
	"github.com/jobscout/jobscout/internal/store"
)

const maxBodyBytes = 512 << 10

// Config carries the engine's age gates and timeouts.
type Config struct {
	BasicAge        time.Duration // below this, listings are assumed valid
	AdvancedAge     time.Duration // at or above this, passing listings get a body scan
	BasicTimeout    time.Duration
	AdvancedTimeout time.Duration
	MaxConcurrent   int
}

// DefaultConfig matches the production gates: probe after 10 days, escalate
// to a body scan after 15.
func DefaultConfig() Config {
	return Config{
		BasicAge:        10 * 24 * time.Hour,
		AdvancedAge:     15 * 24 * time.Hour,
		BasicTimeout:    5 * time.Second,
		AdvancedTimeout: 10 * time.Second,
		MaxConcurrent:   8,
	}
}

// Engine runs liveness checks against listing redirect URLs and records
// definite outcomes through the store.
type Engine struct {
	store store.Store
	cfg   Config
	probe *http.Client
	fetch *http.Client
	now   func() time.Time
}

func NewEngine(st store.Store, cfg Config) *Engine {
	if cfg.BasicAge <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		store: st,
		cfg:   cfg,
		// The basic probe treats any 2xx/3xx as alive, so redirects must be
		// observed rather than followed.
		probe: &http.Client{
			Timeout: cfg.BasicTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		fetch: &http.Client{Timeout: cfg.AdvancedTimeout},
		now:   time.Now,
	}
}

// WithClock overrides the time source used for age gates.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithTransport swaps the HTTP transport on both clients. Tests point it at
// a local server.
func (e *Engine) WithTransport(rt http.RoundTripper) *Engine {
	e.probe.Transport = rt
	e.fetch.Transport = rt
	return e
}

// Check runs the tiered liveness check for a listing and returns its
// verification state afterwards. Listings younger than the basic age gate are
// skipped. Check never returns an error: an inconclusive probe simply leaves
// the previous state in place.
func (e *Engine) Check(ctx context.Context, l model.Listing) model.VerificationStatus {
	if l.Age(e.now()) < e.cfg.BasicAge {
		return l.Status()
	}
	return e.run(ctx, l)
}

// CheckNow runs the check on user request. It skips the basic age gate but
// keeps the advanced gate, so a fresh listing still gets only the cheap probe.
func (e *Engine) CheckNow(ctx context.Context, l model.Listing) model.VerificationStatus {
	return e.run(ctx, l)
}

// CheckAll verifies independent listings concurrently and returns statuses in
// input order. Used by list views where each row wants a freshness badge.
func (e *Engine) CheckAll(ctx context.Context, listings []model.Listing) []model.VerificationStatus {
	out := make([]model.VerificationStatus, len(listings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)
	for i, l := range listings {
		g.Go(func() error {
			out[i] = e.Check(gctx, l)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) run(ctx context.Context, l model.Listing) model.VerificationStatus {
	log := zap.L().With(zap.String("listing", l.ID))

	// Nothing to probe. Treated as live without touching stored state.
	if strings.TrimSpace(l.RedirectURL) == "" {
		return l.Status()
	}

	alive, ok := e.basicProbe(ctx, log, l.RedirectURL)
	if !ok {
		return l.Status()
	}
	if alive && l.Age(e.now()) >= e.cfg.AdvancedAge {
		alive, ok = e.advancedScan(ctx, log, l.RedirectURL)
		if !ok {
			return l.Status()
		}
	}

	return e.record(ctx, log, l, alive)
}

// basicProbe issues the lightweight existence check. The second return is
// false when the probe was inconclusive (transport error or timeout).
func (e *Engine) basicProbe(ctx context.Context, log *zap.Logger, url string) (alive, ok bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Debug("probe request build failed", zap.Error(err))
		return false, false
	}
	resp, err := e.probe.Do(req)
	if err != nil {
		log.Debug("probe inconclusive", zap.Error(err))
		return false, false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	return resp.StatusCode < 400, true
}

// advancedScan fetches the page body and looks for closing language. With no
// closing phrase and no application prompt either, the posting is treated as
// closed.
func (e *Engine) advancedScan(ctx context.Context, log *zap.Logger, url string) (alive, ok bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Debug("scan request build failed", zap.Error(err))
		return false, false
	}
	resp, err := e.fetch.Do(req)
	if err != nil {
		log.Debug("scan inconclusive", zap.Error(err))
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Debug("scan body read failed", zap.Error(err))
		return false, false
	}
	page := strings.ToLower(string(body))

	for _, phrase := range closedPhrases {
		if strings.Contains(page, phrase) {
			return false, true
		}
	}
	for _, phrase := range openIndicators {
		if strings.Contains(page, phrase) {
			return true, true
		}
	}
	return false, true
}

// record persists a definite outcome and returns the updated status. A store
// failure is logged and the pre-check state returned; verification never
// propagates errors.
func (e *Engine) record(ctx context.Context, log *zap.Logger, l model.Listing, alive bool) model.VerificationStatus {
	updated, err := e.store.SetListingValidity(ctx, l.ID, alive)
	if err != nil {
		log.Warn("validity write failed", zap.Error(err))
		return l.Status()
	}
	if !updated {
		// Listing was swept between read and write.
		return l.Status()
	}

	now := e.now()
	if alive {
		l.Validity = model.ValidityValid
	} else {
		l.Validity = model.ValidityInvalid
	}
	l.VerifiedAt = &now
	l.Attempts++
	log.Debug("listing verified", zap.Bool("alive", alive), zap.Int("attempts", l.Attempts))
	return l.Status()
}
