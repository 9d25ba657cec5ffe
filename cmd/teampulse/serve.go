package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teampulse/teampulse/internal/api"
	"github.com/teampulse/teampulse/internal/api/handler"
	mw "github.com/teampulse/teampulse/internal/api/middleware"
	"github.com/teampulse/teampulse/internal/api/response"
	"github.com/teampulse/teampulse/internal/cache"
	"github.com/teampulse/teampulse/internal/runner"
	"github.com/teampulse/teampulse/internal/store"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, closer, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer closer()

		trigger := runner.NewService(a.store, a.registry, a.execs, a.cfg.Runner.OrgConcurrency)

		deps := api.Dependencies{
			Auth:      mw.NewAuth(a.store),
			RateLimit: mw.NewRateLimit(a.cache, a.cfg.Runner.RateLimitPerMin),

			HealthHandler:         healthHandler(a.store, a.cache),
			RunHandler:            handler.NewRunHandler(trigger),
			ListJobsHandler:       handler.NewListJobsHandler(a.registry),
			ListExecutionsHandler: handler.NewListExecutionsHandler(a.execs),
			ExecutionStatsHandler: handler.NewExecutionStatsHandler(a.execs),
		}

		router := api.NewRouter(deps)

		addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			slog.Info("shutdown signal received, draining connections...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		slog.Info("server stopped gracefully")
		return nil
	},
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
