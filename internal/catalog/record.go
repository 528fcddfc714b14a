// Package catalog defines the show records the search engine indexes. Records
// are built once by a corpus source and never mutated afterwards.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/showsearch/showsearch/pkg/errors"
)

// Field is an optional text value. An absent field renders as no value but
// indexes as empty text.
type Field struct {
	Value string
	Valid bool
}

// NewField returns a present field. Whitespace-only input counts as absent,
// matching how an empty CSV cell or NULL column is reported.
func NewField(s string) Field {
	if strings.TrimSpace(s) == "" {
		return Field{}
	}
	return Field{Value: s, Valid: true}
}

// FieldFromNullString converts a nullable SQL column.
func FieldFromNullString(ns sql.NullString) Field {
	if !ns.Valid {
		return Field{}
	}
	return NewField(ns.String)
}

// Text returns the value, or "" when absent.
func (f Field) Text() string {
	if !f.Valid {
		return ""
	}
	return f.Value
}

func (f Field) String() string {
	if !f.Valid {
		return "<none>"
	}
	return f.Value
}

// MarshalJSON renders absent fields as null.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON accepts a string or null.
func (f *Field) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Field{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding field: %w", err)
	}
	*f = NewField(s)
	return nil
}

// Year is an optional release year.
type Year struct {
	Value int
	Valid bool
}

func (y Year) MarshalJSON() ([]byte, error) {
	if !y.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(y.Value)
}

func (y *Year) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*y = Year{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decoding year %s: %w", data, err)
	}
	*y = Year{Value: v, Valid: true}
	return nil
}

// Record is one show in the catalog.
type Record struct {
	ID          string `json:"id"`
	Type        Field  `json:"type"`
	Title       Field  `json:"title"`
	Director    Field  `json:"director"`
	Cast        Field  `json:"cast"`
	Country     Field  `json:"country"`
	DateAdded   Field  `json:"date_added"`
	ReleaseYear Year   `json:"release_year"`
	Rating      Field  `json:"rating"`
	Duration    Field  `json:"duration"`
	ListedIn    Field  `json:"listed_in"`
	Description Field  `json:"description"`
}

// SearchableText is the text a record is indexed on: title, cast and
// description joined by single spaces. Director and type are not indexed.
func (r Record) SearchableText() string {
	return r.Title.Text() + " " + r.Cast.Text() + " " + r.Description.Text()
}

// Records is an ordered, id-addressable collection of records.
type Records struct {
	list []Record
	byID map[string]int
}

// NewRecords takes ownership of list. Ids must be non-empty and unique.
func NewRecords(list []Record) (*Records, error) {
	byID := make(map[string]int, len(list))
	for i, r := range list {
		if r.ID == "" {
			return nil, fmt.Errorf("record at position %d: %w", i, apperrors.ErrInvalidInput)
		}
		if prev, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("record %q at positions %d and %d: %w", r.ID, prev, i, apperrors.ErrDuplicateRecord)
		}
		byID[r.ID] = i
	}
	return &Records{list: list, byID: byID}, nil
}

// ByID looks up a record by identifier.
func (rs *Records) ByID(id string) (Record, bool) {
	i, ok := rs.byID[id]
	if !ok {
		return Record{}, false
	}
	return rs.list[i], true
}

func (rs *Records) Len() int {
	return len(rs.list)
}

// All returns the records in load order. Callers must not modify the slice.
func (rs *Records) All() []Record {
	return rs.list
}
