package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/showsearch/showsearch/internal/catalog"
	apperrors "github.com/showsearch/showsearch/pkg/errors"
	"github.com/showsearch/showsearch/pkg/resilience"
)

// Column names of the netflix_titles.csv export.
const (
	colShowID      = "show_id"
	colType        = "type"
	colTitle       = "title"
	colDirector    = "director"
	colCast        = "cast"
	colCountry     = "country"
	colDateAdded   = "date_added"
	colReleaseYear = "release_year"
	colRating      = "rating"
	colDuration    = "duration"
	colListedIn    = "listed_in"
	colDescription = "description"
)

// CSVSource reads records from a CSV file with a header row. Columns are
// located by header name, so extra or reordered columns are tolerated; only
// show_id is required.
type CSVSource struct {
	path   string
	logger *slog.Logger
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{
		path:   path,
		logger: slog.Default().With("component", "corpus-csv", "path", path),
	}
}

func (s *CSVSource) Name() string { return "csv:" + s.path }

func (s *CSVSource) Close() error { return nil }

func (s *CSVSource) Load(ctx context.Context) ([]catalog.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w: %v", apperrors.ErrCorpusUnavailable, err)
	}
	defer f.Close()
	records, err := s.read(ctx, f)
	if err != nil {
		return nil, err
	}
	s.logger.Info("corpus file read", "records", len(records))
	return records, nil
}

func (s *CSVSource) read(ctx context.Context, r io.Reader) ([]catalog.Record, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading corpus header: %w: %v", apperrors.ErrCorpusUnavailable, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := cols[colShowID]; !ok {
		return nil, resilience.Permanent(fmt.Errorf("corpus header has no %q column: %w", colShowID, apperrors.ErrCorpusUnavailable))
	}

	var records []catalog.Record
	for line := 2; ; line++ {
		if line%1000 == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("reading corpus: %w", ctx.Err())
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading corpus line %d: %w: %v", line, apperrors.ErrCorpusUnavailable, err)
		}
		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		id := strings.TrimSpace(get(colShowID))
		if id == "" {
			s.logger.Warn("skipping row without show_id", "line", line)
			continue
		}
		records = append(records, catalog.Record{
			ID:          id,
			Type:        catalog.NewField(get(colType)),
			Title:       catalog.NewField(get(colTitle)),
			Director:    catalog.NewField(get(colDirector)),
			Cast:        catalog.NewField(get(colCast)),
			Country:     catalog.NewField(get(colCountry)),
			DateAdded:   catalog.NewField(strings.TrimSpace(get(colDateAdded))),
			ReleaseYear: parseYear(get(colReleaseYear)),
			Rating:      catalog.NewField(get(colRating)),
			Duration:    catalog.NewField(get(colDuration)),
			ListedIn:    catalog.NewField(get(colListedIn)),
			Description: catalog.NewField(get(colDescription)),
		})
	}
	return records, nil
}

// parseYear treats blank or malformed years as absent.
func parseYear(s string) catalog.Year {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return catalog.Year{}
	}
	return catalog.Year{Value: y, Valid: true}
}
