package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobscout/jobscout/internal/model"
	"github.com/jobscout/jobscout/internal/search"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the search API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Periodic sweeps run alongside the per-search opportunistic ones.
		cronRunner, err := env.Sweeper.Schedule(ctx, fmt.Sprintf("@every %dh", cfg.Sweep.IntervalHours))
		if err != nil {
			return err
		}
		defer cronRunner.Stop()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/search", func(w http.ResponseWriter, req *http.Request) {
			handleSearch(env, w, req)
		})

		r.Get("/api/suggest", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query().Get("q")
			writeJSON(w, http.StatusOK, map[string]any{
				"query":       q,
				"suggestions": env.Optimizer.Suggest(q),
			})
		})

		r.Get("/api/listings/{id}", func(w http.ResponseWriter, req *http.Request) {
			handleListing(env, w, req, false)
		})

		r.Post("/api/listings/{id}/verify", func(w http.ResponseWriter, req *http.Request) {
			handleListing(env, w, req, true)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		shutdownWhenDone(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func handleSearch(env *appEnv, w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	title := q.Get("title")
	if title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))

	result, err := env.Orchestrator.Search(req.Context(), model.SearchParams{
		Title:    title,
		Location: q.Get("location"),
		JobType:  q.Get("type"),
		Page:     page,
	})
	switch {
	case errors.Is(err, search.ErrMissingCredentials):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "provider credentials not configured"})
		return
	case errors.Is(err, search.ErrBudgetExhausted):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "daily provider budget exhausted"})
		return
	case err != nil:
		zap.L().Error("search failed", zap.String("title", title), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "search failed"})
		return
	}

	// Confirmed-dead listings stay cached for audit but never reach clients.
	visible := make([]model.Listing, 0, len(result.Listings))
	for _, l := range result.Listings {
		if l.Visible() {
			visible = append(visible, l)
		}
	}
	result.Listings = visible

	writeJSON(w, http.StatusOK, result)
}

// handleListing serves the detail view. The age-gated check runs inline so
// the response carries a current freshness badge; forced checks skip the gate.
func handleListing(env *appEnv, w http.ResponseWriter, req *http.Request, force bool) {
	id := chi.URLParam(req, "id")
	listing, err := env.Store.GetListing(req.Context(), id)
	if err != nil {
		zap.L().Error("listing read failed", zap.String("listing", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing read failed"})
		return
	}
	if listing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "listing not found"})
		return
	}

	var status model.VerificationStatus
	if force {
		status = env.Verifier.CheckNow(req.Context(), *listing)
	} else {
		status = env.Verifier.Check(req.Context(), *listing)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"listing": listing,
		"status":  status,
	})
}

// drainTimeout bounds graceful shutdown once the stop signal arrives.
const drainTimeout = 10 * time.Second

// shutdownWhenDone drains srv after ctx is cancelled. The drain gets its own
// deadline because ctx is already dead by the time Shutdown runs.
func shutdownWhenDone(ctx context.Context, srv *http.Server) {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			zap.L().Warn("server shutdown incomplete", zap.Error(err))
		}
	}()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
