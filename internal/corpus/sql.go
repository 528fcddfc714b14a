package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/showsearch/showsearch/internal/catalog"
	apperrors "github.com/showsearch/showsearch/pkg/errors"

	_ "modernc.org/sqlite"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads records from a table shaped like the CSV export:
//
//	CREATE TABLE shows (
//	    show_id      TEXT PRIMARY KEY,
//	    type         TEXT,
//	    title        TEXT,
//	    director     TEXT,
//	    "cast"       TEXT,
//	    country      TEXT,
//	    date_added   TEXT,
//	    release_year INTEGER,
//	    rating       TEXT,
//	    duration     TEXT,
//	    listed_in    TEXT,
//	    description  TEXT
//	);
//
// NULL columns become absent fields.
type SQLSource struct {
	driver string
	db     *sql.DB
	table  string
	query  string
	logger *slog.Logger
}

// NewSQLSource wraps an open database. The source owns db and closes it.
func NewSQLSource(driver string, db *sql.DB, table string) (*SQLSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid corpus table name %q: %w", table, apperrors.ErrInvalidInput)
	}
	return &SQLSource{
		driver: driver,
		db:     db,
		table:  table,
		query: `SELECT show_id, type, title, director, "cast", country, date_added,
		release_year, rating, duration, listed_in, description
		FROM ` + table + ` ORDER BY show_id`,
		logger: slog.Default().With("component", "corpus-sql", "driver", driver, "table", table),
	}, nil
}

// OpenSQLite opens a SQLite database file with the pure-Go driver.
func OpenSQLite(path, table string) (*SQLSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite corpus: %w", err)
	}
	db.SetMaxOpenConns(1)
	src, err := NewSQLSource("sqlite", db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return src, nil
}

func (s *SQLSource) Name() string { return s.driver + ":" + s.table }

// DB exposes the underlying handle for health checks.
func (s *SQLSource) DB() *sql.DB { return s.db }

func (s *SQLSource) Close() error {
	return s.db.Close()
}

func (s *SQLSource) Load(ctx context.Context) ([]catalog.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus table: %w: %v", apperrors.ErrCorpusUnavailable, err)
	}
	defer rows.Close()

	var records []catalog.Record
	for rows.Next() {
		var id string
		var typ, title, director, cast, country, dateAdded sql.NullString
		var rating, duration, listedIn, description sql.NullString
		var releaseYear sql.NullInt64
		if err := rows.Scan(&id, &typ, &title, &director, &cast, &country, &dateAdded,
			&releaseYear, &rating, &duration, &listedIn, &description); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		rec := catalog.Record{
			ID:          id,
			Type:        catalog.FieldFromNullString(typ),
			Title:       catalog.FieldFromNullString(title),
			Director:    catalog.FieldFromNullString(director),
			Cast:        catalog.FieldFromNullString(cast),
			Country:     catalog.FieldFromNullString(country),
			DateAdded:   catalog.FieldFromNullString(dateAdded),
			Rating:      catalog.FieldFromNullString(rating),
			Duration:    catalog.FieldFromNullString(duration),
			ListedIn:    catalog.FieldFromNullString(listedIn),
			Description: catalog.FieldFromNullString(description),
		}
		if releaseYear.Valid {
			rec.ReleaseYear = catalog.Year{Value: int(releaseYear.Int64), Valid: true}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	s.logger.Info("corpus table read", "records", len(records))
	return records, nil
}
