// Package handler serves the search HTTP API: queries, record lookup,
// index administration and the release-year report.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/showsearch/showsearch/internal/analytics"
	"github.com/showsearch/showsearch/internal/indexer"
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
	"github.com/showsearch/showsearch/internal/report"
	"github.com/showsearch/showsearch/internal/searcher/cache"
	"github.com/showsearch/showsearch/internal/searcher/executor"
	"github.com/showsearch/showsearch/internal/searcher/parser"
	"github.com/showsearch/showsearch/pkg/config"
	apperrors "github.com/showsearch/showsearch/pkg/errors"
	"github.com/showsearch/showsearch/pkg/logger"
	"github.com/showsearch/showsearch/pkg/metrics"
	"github.com/showsearch/showsearch/pkg/tracing"
)

// IndexEngine is the part of *indexer.Engine the handler uses.
type IndexEngine interface {
	Current() (*indexer.Snapshot, error)
	Reload(ctx context.Context) (*indexer.Snapshot, error)
	Analyzer() *tokenizer.Analyzer
}

// SearchExecutor runs a plan against a given snapshot. The handler pins one
// snapshot per request so the cache key and the result share a generation.
type SearchExecutor interface {
	ExecuteOn(ctx context.Context, snap *indexer.Snapshot, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

// IndexStats is the body of the index stats and reload endpoints.
type IndexStats struct {
	Generation  uint64    `json:"generation"`
	Docs        int       `json:"docs"`
	IndexedDocs int       `json:"indexed_docs"`
	Terms       int       `json:"terms"`
	Postings    int       `json:"postings"`
	BuiltAt     time.Time `json:"built_at"`
}

type Handler struct {
	engine    IndexEngine
	executor  SearchExecutor
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	cfg       config.SearchConfig
	logger    *slog.Logger
}

// New wires the search API. queryCache, collector and m may be nil.
func New(
	engine IndexEngine,
	exec SearchExecutor,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	return &Handler{
		engine:    engine,
		executor:  exec,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register adds the search routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/shows/{id}", h.Show)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/report/years", h.ReportYears)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=...&limit=N. An empty q is a valid
// query with no terms; a missing q is rejected.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := r.URL.Query()
	if !params.Has("q") {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	query := params.Get("q")

	limit := h.cfg.DefaultLimit
	if raw := params.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, h.cfg.MaxResults)
	}

	ctx, span := tracing.StartSpan(r.Context(), "search", logger.RequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(log)
	}()

	snap, err := h.engine.Current()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	plan := parser.Parse(query, h.engine.Analyzer())

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, snap.Generation, plan, limit, func() (*executor.SearchResult, error) {
			return h.executor.ExecuteOn(ctx, snap, plan, limit)
		})
	} else {
		result, err = h.executor.ExecuteOn(ctx, snap, plan, limit)
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, r, err)
		return
	}

	latency := time.Since(start)
	span.SetAttr("cache_hit", cacheHit)
	h.observe(result, cacheHit, latency)
	log.Info("search completed",
		"query", query,
		"outcome", result.Outcome,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Query:      query,
			Terms:      plan.Terms,
			Outcome:    string(result.Outcome),
			TotalHits:  result.TotalHits,
			Returned:   len(result.Results),
			LatencyMs:  latency.Milliseconds(),
			CacheHit:   cacheHit,
			Generation: result.Generation,
			Timestamp:  time.Now().UTC(),
			RequestID:  logger.RequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Show serves GET /api/v1/shows/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Current()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	record, ok := snap.Records.ByID(id)
	if !ok {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrRecordNotFound, http.StatusNotFound, "show %q not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// Reload serves POST /api/v1/index/reload. A failed reload leaves the
// current index serving and reports the error.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Reload(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("explicit reload failed", "error", err)
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statsOf(snap))
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Current()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statsOf(snap))
}

// ReportYears serves GET /api/v1/report/years.
func (h *Handler) ReportYears(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Current()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation,
		"years":      report.CountByReleaseYear(snap.Records.All()),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	st := h.cache.Stats()
	var hitRate float64
	if total := st.Hits + st.Misses; total > 0 {
		hitRate = float64(st.Hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "enabled",
		"stats":    st,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) observe(result *executor.SearchResult, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(string(result.Outcome)).Inc()
	h.metrics.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(result.TotalHits))
}

func statsOf(snap *indexer.Snapshot) IndexStats {
	st := snap.Index.Stats()
	return IndexStats{
		Generation:  snap.Generation,
		Docs:        st.Docs,
		IndexedDocs: st.IndexedDocs,
		Terms:       st.Terms,
		Postings:    st.Postings,
		BuiltAt:     snap.BuiltAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Only AppError messages reach the
// client; other errors are reported by their sentinel.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case errors.Is(err, apperrors.ErrIndexUnavailable):
		message = apperrors.ErrIndexUnavailable.Error()
	case errors.Is(err, apperrors.ErrCorpusUnavailable):
		message = apperrors.ErrCorpusUnavailable.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Warn("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
