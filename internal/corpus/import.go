package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/showsearch/showsearch/internal/catalog"
)

// Import creates the shows table if needed and replaces its contents with
// records in a single transaction. It is how a CSV export is moved into a
// SQL-backed corpus.
func (s *SQLSource) Import(ctx context.Context, records []catalog.Record) (err error) {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		show_id      TEXT PRIMARY KEY,
		type         TEXT,
		title        TEXT,
		director     TEXT,
		"cast"       TEXT,
		country      TEXT,
		date_added   TEXT,
		release_year INTEGER,
		rating       TEXT,
		duration     TEXT,
		listed_in    TEXT,
		description  TEXT
	)`); err != nil {
		return fmt.Errorf("creating corpus table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning import transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("import rollback failed", "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM `+s.table); err != nil {
		return fmt.Errorf("clearing corpus table: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.table+` (show_id, type, title, director, "cast",
		country, date_added, release_year, rating, duration, listed_in, description)
		VALUES (`+s.placeholders(12)+`)`)
	if err != nil {
		return fmt.Errorf("preparing corpus insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err = stmt.ExecContext(ctx, r.ID, nullable(r.Type), nullable(r.Title), nullable(r.Director),
			nullable(r.Cast), nullable(r.Country), nullable(r.DateAdded), nullableYear(r.ReleaseYear),
			nullable(r.Rating), nullable(r.Duration), nullable(r.ListedIn), nullable(r.Description)); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	s.logger.Info("corpus imported", "records", len(records))
	return nil
}

// placeholders returns n bind parameters in the driver's syntax.
func (s *SQLSource) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if s.driver == "postgres" {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func nullable(f catalog.Field) sql.NullString {
	return sql.NullString{String: f.Value, Valid: f.Valid}
}

func nullableYear(y catalog.Year) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(y.Value), Valid: y.Valid}
}
