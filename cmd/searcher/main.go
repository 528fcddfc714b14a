// Command searcher serves the show search HTTP API.
//
// It loads the corpus once at startup, builds the inverted index and
// answers queries from the in-memory snapshot. Reloads are triggered with
// POST /api/v1/index/reload or, when Kafka is enabled, by events on the
// corpus-reload topic. Redis caching and Kafka analytics are optional.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"github.com/showsearch/showsearch/internal/corpus"
	"github.com/showsearch/showsearch/internal/indexer"
	"github.com/showsearch/showsearch/internal/indexer/consumer"
	"github.com/showsearch/showsearch/internal/indexer/stemmer"
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
	"github.com/showsearch/showsearch/internal/searcher/cache"
	"github.com/showsearch/showsearch/internal/searcher/executor"
	"github.com/showsearch/showsearch/internal/searcher/handler"
	"github.com/showsearch/showsearch/pkg/config"
	"github.com/showsearch/showsearch/pkg/health"
	"github.com/showsearch/showsearch/pkg/kafka"
	"github.com/showsearch/showsearch/pkg/logger"
	"github.com/showsearch/showsearch/pkg/metrics"
	"github.com/showsearch/showsearch/pkg/middleware"
	pkgredis "github.com/showsearch/showsearch/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus_driver", cfg.Corpus.Driver)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	provider, err := stemmer.New(cfg.Stemmer.Language, cfg.Stemmer.ExtraStopwords)
	if err != nil {
		return err
	}
	source, err := corpus.New(ctx, cfg)
	if err != nil {
		return err
	}
	engine := indexer.NewEngine(source, tokenizer.NewAnalyzer(provider), cfg.Corpus, m)
	defer engine.Close()
	if _, err := engine.Load(ctx); err != nil {
		return fmt.Errorf("initial index build: %w", err)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			engine.OnReload(func(ctx context.Context, snap *indexer.Snapshot) {
				if snap.Generation > 1 {
					queryCache.DropGeneration(ctx, snap.Generation-1)
				}
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer

		replica, _ := os.Hostname()
		reloads := consumer.New(cfg.Kafka, engine, replica)
		go func() {
			if err := reloads.Start(ctx); err != nil {
				slog.Error("reload consumer stopped", "error", err)
			}
		}()
		slog.Info("kafka enabled",
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
			"reload_topic", cfg.Kafka.Topics.CorpusReload,
		)
	}
	collector := analytics.NewCollector(aggregator, publisher, analytics.CollectorConfig{
		BufferSize:    cfg.Analytics.BufferSize,
		BatchSize:     cfg.Analytics.BatchSize,
		FlushInterval: cfg.Analytics.FlushInterval,
	}, m)
	collector.Start(ctx)
	defer collector.Close()

	checker := health.NewChecker(5 * time.Second)
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap, err := engine.Current()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d docs", snap.Generation, snap.Records.Len()),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, false))
	}

	searchCfg := cfg.Search
	h := handler.New(engine, executor.New(engine, searchCfg), queryCache, collector, m, searchCfg)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	if cfg.Metrics.Enabled {
		admin := metrics.NewAdminServer(cfg.Metrics.Port)
		admin.Handle("GET /health/live", checker.LiveHandler())
		admin.Handle("GET /health/ready", checker.ReadyHandler())
		admin.Start()
		defer admin.Shutdown(context.Background())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
		go limiter.RunCleanup(ctx, cfg.RateLimit.Window)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Handlers cut off by Timeout can still Track after this; the closed
	// collector drops those events.
	<-drained
	return nil
}
