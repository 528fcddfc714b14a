package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/showsearch/showsearch/pkg/errors"
)

func TestSearchableText(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "all fields",
			rec: Record{
				ID:          "s1",
				Title:       NewField("Breaking Bad"),
				Director:    NewField("Vince Gilligan"),
				Cast:        NewField("Bryan Cranston"),
				Description: NewField("A chemistry teacher turns to crime"),
			},
			want: "Breaking Bad Bryan Cranston A chemistry teacher turns to crime",
		},
		{
			name: "absent cast and description",
			rec:  Record{ID: "s3", Title: NewField("X")},
			want: "X  ",
		},
		{
			name: "nothing indexable",
			rec:  Record{ID: "s4", Director: NewField("Someone")},
			want: "  ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.SearchableText(); got != tt.want {
				t.Errorf("SearchableText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFieldAbsence(t *testing.T) {
	if f := NewField("   "); f.Valid {
		t.Error("whitespace-only field should be absent")
	}
	if f := FieldFromNullString(sql.NullString{}); f.Valid || f.Text() != "" {
		t.Errorf("NULL field = %+v", f)
	}
	if f := FieldFromNullString(sql.NullString{String: "TV-MA", Valid: true}); f.Text() != "TV-MA" {
		t.Errorf("present field = %+v", f)
	}
	if got := (Field{}).String(); got != "<none>" {
		t.Errorf("absent String() = %q", got)
	}
}

func TestRecordJSON(t *testing.T) {
	in := Record{
		ID:          "s1",
		Title:       NewField("Breaking Bad"),
		ReleaseYear: Year{Value: 2008, Valid: true},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Record
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["cast"] != nil {
		t.Errorf("absent cast should encode as null, got %v", raw["cast"])
	}
}

func TestNewRecords(t *testing.T) {
	rs, err := NewRecords([]Record{{ID: "s1"}, {ID: "s2"}})
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 2 {
		t.Errorf("Len() = %d", rs.Len())
	}
	if _, ok := rs.ByID("s2"); !ok {
		t.Error("s2 not found")
	}
	if _, ok := rs.ByID("s9"); ok {
		t.Error("s9 should not exist")
	}

	_, err = NewRecords([]Record{{ID: "s1"}, {ID: "s1"}})
	if !errors.Is(err, apperrors.ErrDuplicateRecord) {
		t.Errorf("duplicate ids: err = %v", err)
	}
	_, err = NewRecords([]Record{{ID: ""}})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty id: err = %v", err)
	}
}
