//go:build integration

// Package integration runs the search service with real handler and
// middleware wiring. PostgreSQL and Redis tests skip when those services
// are not reachable.
//
// Run with:
//
//	go test -v -tags=integration ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/showsearch/showsearch/internal/analytics"
	"github.com/showsearch/showsearch/internal/analytics/aggregator"
	"github.com/showsearch/showsearch/internal/catalog"
	"github.com/showsearch/showsearch/internal/corpus"
	"github.com/showsearch/showsearch/internal/indexer"
	"github.com/showsearch/showsearch/internal/indexer/stemmer"
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
	"github.com/showsearch/showsearch/internal/searcher/cache"
	"github.com/showsearch/showsearch/internal/searcher/executor"
	"github.com/showsearch/showsearch/internal/searcher/handler"
	"github.com/showsearch/showsearch/pkg/config"
	"github.com/showsearch/showsearch/pkg/health"
	"github.com/showsearch/showsearch/pkg/metrics"
	"github.com/showsearch/showsearch/pkg/middleware"
	"github.com/showsearch/showsearch/pkg/postgres"
	pkgredis "github.com/showsearch/showsearch/pkg/redis"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func shows() []catalog.Record {
	return []catalog.Record{
		{
			ID:          "s1",
			Type:        catalog.NewField("TV Show"),
			Title:       catalog.NewField("Breaking Bad"),
			Cast:        catalog.NewField("Bryan Cranston, Aaron Paul"),
			Description: catalog.NewField("A high school chemistry teacher turns to making meth"),
			ReleaseYear: catalog.Year{Value: 2008, Valid: true},
		},
		{
			ID:          "s2",
			Type:        catalog.NewField("TV Show"),
			Title:       catalog.NewField("Better Call Saul"),
			Description: catalog.NewField("The trials of a small-time lawyer"),
			ReleaseYear: catalog.Year{Value: 2015, Valid: true},
		},
		{
			ID:          "s3",
			Type:        catalog.NewField("Movie"),
			Title:       catalog.NewField("The Chemistry Club"),
			Description: catalog.NewField("Students and their teacher enter a science fair"),
		},
	}
}

type server struct {
	*httptest.Server
	engine *indexer.Engine
	cache  *cache.QueryCache
}

type options struct {
	store     cache.Store
	rateLimit int
}

// newSearchServer wires source into the same handler and middleware chain
// cmd/searcher builds.
func newSearchServer(t *testing.T, source corpus.Source, opts options) *server {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	engine := indexer.NewEngine(source, tokenizer.NewAnalyzer(stemmer.NewEnglish()),
		config.CorpusConfig{LoadTimeout: 10 * time.Second, LoadAttempts: 2}, m)
	if _, err := engine.Load(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	var qc *cache.QueryCache
	if opts.store != nil {
		qc = cache.New(opts.store, time.Minute, m)
		engine.OnReload(func(ctx context.Context, snap *indexer.Snapshot) {
			if snap.Generation > 1 {
				qc.DropGeneration(ctx, snap.Generation-1)
			}
		})
	}

	agg := analytics.NewAggregator()
	collector := analytics.NewCollector(agg, nil, analytics.CollectorConfig{}, m)
	collector.Start(context.Background())

	searchCfg := config.SearchConfig{DefaultLimit: 10, MaxResults: 100, UnmatchedTerms: config.UnmatchedStrict}
	mux := http.NewServeMux()
	handler.New(engine, executor.New(engine, searchCfg), qc, collector, m, searchCfg).Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)

	checker := health.NewChecker(time.Second)
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if _, err := engine.Current(); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(5 * time.Second)(chain)
	if opts.rateLimit > 0 {
		chain = middleware.RateLimit(middleware.NewLimiter(opts.rateLimit, time.Minute))(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	srv := httptest.NewServer(chain)
	t.Cleanup(func() {
		srv.Close()
		collector.Close()
		engine.Close()
	})
	return &server{Server: srv, engine: engine, cache: qc}
}

func (s *server) search(t *testing.T, q string) executor.SearchResult {
	t.Helper()
	resp, err := http.Get(s.URL + "/api/v1/search?q=" + q)
	if err != nil {
		t.Fatalf("search request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search %q: status %d", q, resp.StatusCode)
	}
	var result executor.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding search response: %v", err)
	}
	return result
}

func resultIDs(r executor.SearchResult) []string {
	ids := make([]string, len(r.Results))
	for i, rec := range r.Results {
		ids[i] = rec.ID
	}
	return ids
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(context.Background(), config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "showsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "showsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	return db
}

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) *pkgredis.Client {
	t.Helper()
	client, err := pkgredis.NewClient(config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 15),
		PoolSize: 5,
	})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoints(t *testing.T) {
	srv := newSearchServer(t, &corpus.StaticSource{Records: shows()}, options{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
	}
}

func TestSearchThroughMiddleware(t *testing.T) {
	srv := newSearchServer(t, &corpus.StaticSource{Records: shows()}, options{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/search?q=chemistry+teacher", nil)
	req.Header.Set(middleware.HeaderRequestID, "it-req-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("search request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get(middleware.HeaderRequestID); got != "it-req-1" {
		t.Errorf("request id header = %q", got)
	}

	var result executor.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if result.TotalHits != 2 {
		t.Errorf("total_hits = %d, want 2 (ids %v)", result.TotalHits, resultIDs(result))
	}

	if r := srv.search(t, "the+and+of"); r.Outcome != executor.OutcomeNoTerms {
		t.Errorf("stopword query outcome = %q", r.Outcome)
	}
	if r := srv.search(t, "chemistry+lawyer"); r.TotalHits != 0 {
		t.Errorf("disjoint terms matched %v", resultIDs(r))
	}
}

func TestRateLimiting(t *testing.T) {
	srv := newSearchServer(t, &corpus.StaticSource{Records: shows()}, options{rateLimit: 3})

	var limited bool
	for i := range 5 {
		resp, err := http.Get(srv.URL + "/api/v1/search?q=chemistry")
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			if i < 3 {
				t.Errorf("request %d limited before the quota was used", i)
			}
		}
	}
	if !limited {
		t.Error("expected a 429 after three requests")
	}

	resp, err := http.Get(srv.URL + "/health/live")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check limited: %d", resp.StatusCode)
	}
}

func TestPostgresCorpus(t *testing.T) {
	db := skipIfNoPostgres(t)
	table := fmt.Sprintf("shows_it_%d", time.Now().UnixNano())
	source, err := corpus.NewSQLSource("postgres", db.DB, table)
	if err != nil {
		t.Fatalf("NewSQLSource: %v", err)
	}
	t.Cleanup(func() {
		db.DB.Exec(`DROP TABLE IF EXISTS ` + table)
		source.Close()
	})

	ctx := context.Background()
	if err := source.Import(ctx, shows()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	srv := newSearchServer(t, source, options{})

	r := srv.search(t, "lawyer")
	if ids := resultIDs(r); len(ids) != 1 || ids[0] != "s2" {
		t.Fatalf("lawyer matched %v", ids)
	}
	if got := r.Results[0].Cast; got.Valid {
		t.Errorf("NULL cast loaded as %q", got.Value)
	}

	// A reload picks up rows written after startup.
	records := append(shows(), catalog.Record{
		ID:          "s4",
		Title:       catalog.NewField("Lawyer Up"),
		ReleaseYear: catalog.Year{Value: 2021, Valid: true},
	})
	if err := source.Import(ctx, records); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	resp, err := http.Post(srv.URL+"/api/v1/index/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reload status %d", resp.StatusCode)
	}
	if r := srv.search(t, "lawyer"); r.TotalHits != 2 || r.Generation != 2 {
		t.Errorf("after reload: hits=%d generation=%d", r.TotalHits, r.Generation)
	}
}

func TestRedisQueryCache(t *testing.T) {
	client := skipIfNoRedis(t)
	srv := newSearchServer(t, &corpus.StaticSource{Records: shows()}, options{store: client})
	ctx := context.Background()
	if _, err := srv.cache.Invalidate(ctx); err != nil {
		t.Fatalf("clearing cache: %v", err)
	}

	first := srv.search(t, "teacher")
	second := srv.search(t, "teacher")
	if first.TotalHits != second.TotalHits {
		t.Fatalf("cached result differs: %d vs %d", first.TotalHits, second.TotalHits)
	}
	if st := srv.cache.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("cache stats = %+v, want 1 hit 1 miss", st)
	}

	if _, err := srv.engine.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	// The previous generation's entries are dropped by the reload listener.
	deleted, err := srv.cache.DropGeneration(ctx, 1)
	if err != nil {
		t.Fatalf("DropGeneration: %v", err)
	}
	if deleted != 0 {
		t.Errorf("generation 1 still had %d keys after reload", deleted)
	}
	if r := srv.search(t, "teacher"); r.Generation != 2 {
		t.Errorf("served generation %d after reload", r.Generation)
	}
}

func TestAnalyticsSnapshotStore(t *testing.T) {
	db := skipIfNoPostgres(t)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	store := aggregator.NewStore(db.DB)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	// Idempotent.
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	start := time.Now().UTC().Add(-time.Second)
	t.Cleanup(func() {
		db.DB.Exec(`DELETE FROM search_analytics_snapshots WHERE captured_at >= $1`, start)
	})

	agg := analytics.NewAggregator()
	marker := fmt.Sprintf("it-query-%d", time.Now().UnixNano())
	for range 3 {
		agg.Record(analytics.SearchEvent{Query: marker, Terms: []string{"chemistri"}, Outcome: "matched", TotalHits: 2, LatencyMs: 4})
	}
	agg.Record(analytics.SearchEvent{Query: "the", Outcome: "no_terms", CacheHit: true})

	saved := agg.Stats()
	if err := store.SaveSnapshot(ctx, saved); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	last, err := store.LatestSnapshot(ctx)
	if err != nil || last == nil {
		t.Fatalf("LatestSnapshot = %v, %v", last, err)
	}
	if last.TotalSearches != 4 || last.NoTermsCount != 1 || last.CacheHits != 1 {
		t.Errorf("restored stats = %+v", last)
	}
	if len(last.TopQueries) == 0 || last.TopQueries[0].Query != marker || last.TopQueries[0].Count != 3 {
		t.Errorf("top queries = %+v", last.TopQueries)
	}
	if !last.CapturedAt.Equal(saved.CapturedAt) {
		t.Errorf("captured_at = %v, want %v", last.CapturedAt, saved.CapturedAt)
	}

	// The periodic saver writes a final snapshot when its context ends.
	agg.Record(analytics.SearchEvent{Query: marker, Outcome: "matched", TotalHits: 1})
	saveCtx, cancel := context.WithCancel(ctx)
	done := store.StartPeriodicSave(saveCtx, agg, time.Hour)
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("periodic save did not finish after cancel")
	}
	last, err = store.LatestSnapshot(ctx)
	if err != nil || last == nil || last.TotalSearches != 5 {
		t.Errorf("final snapshot = %+v, %v", last, err)
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
