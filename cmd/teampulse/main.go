// Package main is the entrypoint for the TeamPulse job runner CLI and server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/teampulse/teampulse/internal/cache"
	"github.com/teampulse/teampulse/internal/config"
	"github.com/teampulse/teampulse/internal/engine"
	"github.com/teampulse/teampulse/internal/engine/jobs"
	"github.com/teampulse/teampulse/internal/executions"
	"github.com/teampulse/teampulse/internal/store"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "teampulse",
	Short: "TeamPulse scheduled job runner",
	Long: `TeamPulse runs the scheduled jobs behind a people-management app:
birthday reminders, inactivity alerts, overdue-task nudges, and record
cleanup. Jobs are idempotent; re-running a batch never duplicates
notifications.

Examples:
  teampulse run                          # run all jobs for all organizations
  teampulse run --job birthday-reminder  # run one job
  teampulse run --dry-run --verbose      # report without writing
  teampulse serve                        # start the HTTP trigger API`,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// app holds the wired dependencies shared by the run and serve commands.
type app struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	store    store.Store
	cache    cache.Cache
	registry *engine.Registry
	execs    *executions.Service
}

// bootstrap loads config, connects to Postgres and Redis, applies migrations,
// and registers the job catalog. The returned closer releases connections.
func bootstrap(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, cfg.Runner.MigrationsDir); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	pgStore := store.NewPostgresStore(pool)
	execs := executions.NewService(pgStore)

	registry := engine.NewRegistry()
	notifier := engine.NewNotifier(pgStore, redisCache)
	for _, job := range []engine.Job{
		jobs.NewBirthdayReminder(pgStore, notifier),
		jobs.NewInactivityMonitor(pgStore, notifier),
		jobs.NewOverdueTasks(pgStore, notifier),
		jobs.NewExecutionCleanup(execs),
	} {
		if err := registry.Register(job); err != nil {
			redisCache.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("register job: %w", err)
		}
	}

	a := &app{
		cfg:      cfg,
		pool:     pool,
		store:    pgStore,
		cache:    redisCache,
		registry: registry,
		execs:    execs,
	}
	closer := func() {
		redisCache.Close()
		pool.Close()
	}
	return a, closer, nil
}
