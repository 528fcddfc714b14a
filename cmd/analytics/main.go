// Command analytics runs the standalone analytics service.
//
// It consumes search events that searchers publish to Kafka, aggregates them
// across all replicas, persists a snapshot to PostgreSQL every
// analytics.snapshotInterval and serves GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/showsearch/showsearch/internal/analytics"
	"github.com/showsearch/showsearch/internal/analytics/aggregator"
	"github.com/showsearch/showsearch/pkg/config"
	"github.com/showsearch/showsearch/pkg/health"
	"github.com/showsearch/showsearch/pkg/kafka"
	"github.com/showsearch/showsearch/pkg/logger"
	"github.com/showsearch/showsearch/pkg/metrics"
	"github.com/showsearch/showsearch/pkg/middleware"
	"github.com/showsearch/showsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.AnalyticsEvents)

	if err := run(cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	var saved <-chan struct{}
	checker := health.NewChecker(5 * time.Second)

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if last, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not read last snapshot", "error", err)
		} else if last != nil {
			slog.Info("previous snapshot found",
				"captured_at", last.CapturedAt,
				"total_searches", last.TotalSearches,
			)
		}
		saved = store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}

	events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "analytics", analytics.HandleEvent(agg))
	go func() {
		if err := events.Start(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		admin := metrics.NewAdminServer(cfg.Metrics.Port)
		admin.Handle("GET /health/ready", checker.ReadyHandler())
		admin.Start()
		defer admin.Shutdown(context.Background())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if saved != nil {
		<-saved
	}
	return nil
}
