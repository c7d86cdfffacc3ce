package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobscout/jobscout/internal/optimizer"
	"github.com/jobscout/jobscout/internal/search"
	"github.com/jobscout/jobscout/internal/store"
	"github.com/jobscout/jobscout/internal/sweep"
	"github.com/jobscout/jobscout/internal/verify"
	"github.com/jobscout/jobscout/pkg/adzuna"
)

// appEnv holds the initialized store and the engines the commands share.
type appEnv struct {
	Store        store.Store
	Orchestrator *search.Orchestrator
	Verifier     *verify.Engine
	Sweeper      *sweep.Sweeper
	Optimizer    *optimizer.Optimizer
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, loads the taxonomy, and wires the search,
// verification, and sweep engines. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	opt := optimizer.New()
	if cfg.Search.TaxonomyPath != "" {
		tax, err := optimizer.LoadTaxonomy(cfg.Search.TaxonomyPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		opt = optimizer.NewWithTaxonomy(tax)
		zap.L().Info("taxonomy overrides loaded", zap.String("path", cfg.Search.TaxonomyPath))
	}

	provider := adzuna.New(cfg.Provider.AppID, cfg.Provider.AppKey,
		adzuna.WithBaseURL(cfg.Provider.BaseURL),
		adzuna.WithRateLimit(cfg.Provider.RatePerSec),
	)

	sweeper := sweep.New(st, cfg.Cache.SweepBatchSize)
	budget := search.NewBudget(cfg.Search.DailyBudget, time.Now)
	orch := search.NewOrchestrator(st, provider, opt, budget, sweeper, search.Options{
		DefaultCountry: cfg.Provider.DefaultCountry,
		PageSize:       cfg.Search.PageSize,
		HasCredentials: cfg.Provider.AppID != "" && cfg.Provider.AppKey != "",
	})

	verifier := verify.NewEngine(st, verify.Config{
		BasicAge:        time.Duration(cfg.Verify.BasicAgeDays) * 24 * time.Hour,
		AdvancedAge:     time.Duration(cfg.Verify.AdvancedAgeDays) * 24 * time.Hour,
		BasicTimeout:    time.Duration(cfg.Verify.BasicTimeoutSecs) * time.Second,
		AdvancedTimeout: time.Duration(cfg.Verify.AdvancedTimeoutSecs) * time.Second,
		MaxConcurrent:   cfg.Verify.MaxConcurrentProbes,
	})

	return &appEnv{
		Store:        st,
		Orchestrator: orch,
		Verifier:     verifier,
		Sweeper:      sweeper,
		Optimizer:    opt,
	}, nil
}

// initStore picks the backend from config. SQLite is the default and needs
// no external services.
func initStore(ctx context.Context) (store.Store, error) {
	retention := store.WithRetention(time.Duration(cfg.Cache.RetentionDays) * 24 * time.Hour)

	switch cfg.Store.Driver {
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.Path, retention)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store: JOBSCOUT_STORE_DATABASE_URL required for postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, retention)
	case "redis":
		if cfg.Store.RedisURL == "" {
			return nil, eris.New("store: JOBSCOUT_STORE_REDIS_URL required for redis driver")
		}
		return store.NewRedis(ctx, cfg.Store.RedisURL, retention)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}
