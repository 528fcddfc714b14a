package report

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/showsearch/showsearch/internal/catalog"
)

func rec(id string, year int) catalog.Record {
	r := catalog.Record{ID: id}
	if year > 0 {
		r.ReleaseYear = catalog.Year{Value: year, Valid: true}
	}
	return r
}

func TestCountByReleaseYear(t *testing.T) {
	records := []catalog.Record{
		rec("s1", 2019), rec("s2", 2008), rec("s3", 0), rec("s4", 2019), rec("s5", 2021),
	}
	got := CountByReleaseYear(records)
	want := []YearCount{
		{Year: "2008", Count: 1},
		{Year: "2019", Count: 2},
		{Year: "2021", Count: 1},
		{Year: UnknownYear, Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CountByReleaseYear = %v, want %v", got, want)
	}

	if got := CountByReleaseYear(nil); len(got) != 0 {
		t.Errorf("empty corpus gave %v", got)
	}
}

func TestRenderBars(t *testing.T) {
	var buf bytes.Buffer
	counts := []YearCount{{Year: "2008", Count: 1}, {Year: "2019", Count: 100}, {Year: UnknownYear, Count: 0}}
	if err := RenderBars(&buf, counts, 10); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "2008    | # 1" {
		t.Errorf("small count line = %q", lines[0])
	}
	if lines[1] != "2019    | ########## 100" {
		t.Errorf("max count line = %q", lines[1])
	}
	if lines[2] != "Unknown |  0" {
		t.Errorf("zero count line = %q", lines[2])
	}
}
