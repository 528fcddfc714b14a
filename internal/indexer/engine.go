// Package indexer owns the lifecycle of the show index: it pulls records from
// the corpus source, builds the inverted index once per load, and publishes
// the result as an immutable snapshot that readers use without locking.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/showsearch/showsearch/internal/catalog"
	"github.com/showsearch/showsearch/internal/corpus"
	"github.com/showsearch/showsearch/internal/indexer/index"
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
	"github.com/showsearch/showsearch/pkg/config"
	apperrors "github.com/showsearch/showsearch/pkg/errors"
	"github.com/showsearch/showsearch/pkg/metrics"
	"github.com/showsearch/showsearch/pkg/resilience"
)

// Snapshot is one built generation of the corpus and its index. Nothing in
// a Snapshot is modified after it is published.
type Snapshot struct {
	Index      *index.MemoryIndex
	Records    *catalog.Records
	Generation uint64
	BuiltAt    time.Time
}

// ReloadListener is called after a new snapshot has been published.
type ReloadListener func(ctx context.Context, snap *Snapshot)

type Engine struct {
	source    corpus.Source
	analyzer  *tokenizer.Analyzer
	cfg       config.CorpusConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
	current   atomic.Pointer[Snapshot]
	reloadMu  sync.Mutex
	listeners []ReloadListener
	lmu       sync.RWMutex
}

// NewEngine returns an engine with no index. Call Load before serving.
// m may be nil.
func NewEngine(source corpus.Source, analyzer *tokenizer.Analyzer, cfg config.CorpusConfig, m *metrics.Metrics) *Engine {
	return &Engine{
		source:   source,
		analyzer: analyzer,
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "indexer", "source", source.Name()),
	}
}

// BuildSnapshot validates records and indexes them.
func BuildSnapshot(records []catalog.Record, analyzer *tokenizer.Analyzer, generation uint64) (*Snapshot, error) {
	rs, err := catalog.NewRecords(records)
	if err != nil {
		return nil, fmt.Errorf("validating corpus: %w", err)
	}
	return &Snapshot{
		Index:      index.Build(rs.All(), analyzer),
		Records:    rs,
		Generation: generation,
		BuiltAt:    time.Now().UTC(),
	}, nil
}

// OnReload registers fn to run after every successful Load or Reload.
func (e *Engine) OnReload(fn ReloadListener) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Load performs the initial corpus load. It is Reload under another name so
// startup logs read naturally.
func (e *Engine) Load(ctx context.Context) (*Snapshot, error) {
	return e.Reload(ctx)
}

// Reload reads the corpus again, builds a fresh index and swaps it in. On
// failure the previously published snapshot keeps serving.
func (e *Engine) Reload(ctx context.Context) (*Snapshot, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	var records []catalog.Record
	err := resilience.Retry(ctx, "corpus-load", resilience.RetryConfig{
		MaxAttempts:  e.cfg.LoadAttempts,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}, func() error {
		return resilience.WithTimeout(ctx, e.cfg.LoadTimeout, "corpus-load", func(ctx context.Context) error {
			recs, err := e.source.Load(ctx)
			if err != nil {
				return err
			}
			records = recs
			return nil
		})
	})
	if err != nil {
		e.recordReload("error")
		e.logger.Error("corpus load failed", "error", err)
		return nil, fmt.Errorf("loading corpus from %s: %w", e.source.Name(), err)
	}

	var generation uint64 = 1
	if prev := e.current.Load(); prev != nil {
		generation = prev.Generation + 1
	}
	snap, err := BuildSnapshot(records, e.analyzer, generation)
	if err != nil {
		e.recordReload("error")
		e.logger.Error("index build failed", "error", err)
		return nil, err
	}
	e.current.Store(snap)
	e.recordReload("success")

	stats := snap.Index.Stats()
	if e.metrics != nil {
		e.metrics.IndexGeneration.Set(float64(generation))
		e.metrics.IndexedDocs.Set(float64(stats.Docs))
		e.metrics.IndexTerms.Set(float64(stats.Terms))
	}
	e.logger.Info("index built",
		"generation", generation,
		"docs", stats.Docs,
		"indexed_docs", stats.IndexedDocs,
		"terms", stats.Terms,
		"postings", stats.Postings,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	e.lmu.RLock()
	listeners := make([]ReloadListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.lmu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, snap)
	}
	return snap, nil
}

// Current returns the published snapshot, or ErrIndexUnavailable if no load
// has succeeded yet.
func (e *Engine) Current() (*Snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, apperrors.ErrIndexUnavailable
	}
	return snap, nil
}

func (e *Engine) Analyzer() *tokenizer.Analyzer {
	return e.analyzer
}

// Close releases the corpus source.
func (e *Engine) Close() error {
	return e.source.Close()
}

func (e *Engine) recordReload(status string) {
	if e.metrics != nil {
		e.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}
