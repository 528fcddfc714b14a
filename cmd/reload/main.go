// Command reload asks every running searcher to re-read the corpus.
//
// It publishes one reload event to the Kafka corpus-reload topic; each
// searcher replica consumes it and swaps in a freshly built index. Without
// Kafka, pass -url to call a single searcher's reload endpoint instead.
//
// Usage:
//
//	go run ./cmd/reload [-config configs/development.yaml] [-reason "csv refreshed"]
//	go run ./cmd/reload -url http://localhost:8080
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/showsearch/showsearch/internal/indexer/consumer"
	"github.com/showsearch/showsearch/pkg/config"
	"github.com/showsearch/showsearch/pkg/kafka"
	"github.com/showsearch/showsearch/pkg/logger"
	"github.com/showsearch/showsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	reason := flag.String("reason", "manual", "reason recorded with the reload")
	baseURL := flag.String("url", "", "call this searcher's reload endpoint instead of publishing to Kafka")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *baseURL != "" {
		err = reloadHTTP(ctx, *baseURL)
	} else {
		err = publish(ctx, cfg, *reason)
	}
	if err != nil {
		slog.Error("reload request failed", "error", err)
		os.Exit(1)
	}
}

func publish(ctx context.Context, cfg *config.Config, reason string) error {
	host, _ := os.Hostname()
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusReload)
	defer producer.Close()

	event := consumer.NewReloadEvent(reason, "cmd/reload@"+host)
	err := resilience.Retry(ctx, "publish-reload", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		return producer.Publish(ctx, event)
	})
	if err != nil {
		return err
	}
	slog.Info("reload requested", "topic", cfg.Kafka.Topics.CorpusReload, "reason", reason)
	return nil
}

func reloadHTTP(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/index/reload", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding reload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reload rejected with %d: %v", resp.StatusCode, body["error"])
	}
	slog.Info("index reloaded", "generation", body["generation"], "docs", body["docs"])
	return nil
}
