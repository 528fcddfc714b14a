// Package corpus loads show records from the configured data source: the
// Netflix titles CSV export, a PostgreSQL table, or a SQLite table. Missing
// values are reported as absent fields, never as errors.
package corpus

import (
	"context"
	"fmt"

	"github.com/showsearch/showsearch/internal/catalog"
	"github.com/showsearch/showsearch/pkg/config"
	"github.com/showsearch/showsearch/pkg/postgres"
)

// Source supplies the full record set. Load may be called again to pick up
// a changed corpus.
type Source interface {
	Load(ctx context.Context) ([]catalog.Record, error)
	Close() error
	Name() string
}

// New opens the source selected by cfg.Corpus.Driver.
func New(ctx context.Context, cfg *config.Config) (Source, error) {
	switch cfg.Corpus.Driver {
	case config.DriverCSV:
		return NewCSVSource(cfg.Corpus.Path), nil
	case config.DriverPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("opening postgres corpus: %w", err)
		}
		src, err := NewSQLSource("postgres", client.DB, cfg.Corpus.Table)
		if err != nil {
			client.Close()
			return nil, err
		}
		return src, nil
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLite.Path, cfg.Corpus.Table)
	default:
		return nil, fmt.Errorf("unknown corpus driver %q", cfg.Corpus.Driver)
	}
}

// StaticSource serves a fixed record slice.
type StaticSource struct {
	Records []catalog.Record
}

func (s *StaticSource) Load(ctx context.Context) ([]catalog.Record, error) {
	out := make([]catalog.Record, len(s.Records))
	copy(out, s.Records)
	return out, nil
}

func (s *StaticSource) Close() error { return nil }

func (s *StaticSource) Name() string { return "static" }
