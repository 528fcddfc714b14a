package index

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/showsearch/showsearch/internal/catalog"
	"github.com/showsearch/showsearch/internal/indexer/stemmer"
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
)

func testCorpus() []catalog.Record {
	return []catalog.Record{
		{
			ID:          "s1",
			Title:       catalog.NewField("Breaking Bad"),
			Cast:        catalog.NewField("Bryan Cranston"),
			Description: catalog.NewField("A chemistry teacher turns to crime"),
		},
		{
			ID:          "s2",
			Title:       catalog.NewField("Better Call Saul"),
			Cast:        catalog.NewField("Bob Odenkirk"),
			Description: catalog.NewField("A lawyer's backstory"),
		},
		{
			ID:       "s3",
			Title:    catalog.NewField("X"),
			Director: catalog.NewField("Nobody Indexed"),
		},
		{
			ID:   "s4",
			Type: catalog.NewField("Movie"),
		},
	}
}

func englishAnalyzer() *tokenizer.Analyzer {
	return tokenizer.NewAnalyzer(stemmer.NewEnglish())
}

func TestBuildDeduplicatesWithinRecord(t *testing.T) {
	recs := []catalog.Record{{
		ID:          "s1",
		Title:       catalog.NewField("Run Run Run"),
		Description: catalog.NewField("running runs"),
	}}
	idx := Build(recs, englishAnalyzer())
	postings := idx.Search("run")
	if !reflect.DeepEqual(postings, PostingList{"s1"}) {
		t.Fatalf("postings(run) = %v, want [s1]", postings)
	}
	for _, entry := range idx.Snapshot() {
		seen := make(map[string]bool)
		for _, id := range entry.Postings {
			if seen[id] {
				t.Errorf("term %q has duplicate id %q", entry.Term, id)
			}
			seen[id] = true
		}
	}
}

func TestBuildSkipsUnindexableRecords(t *testing.T) {
	idx := Build(testCorpus(), englishAnalyzer())
	if idx.DocCount() != 4 {
		t.Errorf("DocCount() = %d, want 4", idx.DocCount())
	}
	if idx.IndexedDocs() != 3 {
		t.Errorf("IndexedDocs() = %d, want 3", idx.IndexedDocs())
	}
	if !reflect.DeepEqual(idx.Search("x"), PostingList{"s3"}) {
		t.Errorf("postings(x) = %v, want [s3]", idx.Search("x"))
	}
	// Director is not part of the searchable text.
	if idx.Contains("nobodi") || idx.Contains("nobody") {
		t.Error("director text should not be indexed")
	}
	for _, entry := range idx.Snapshot() {
		if entry.Postings.Contains("s4") {
			t.Errorf("s4 has no searchable text but appears under %q", entry.Term)
		}
	}
}

func TestPostingsMatchRecordRoots(t *testing.T) {
	a := englishAnalyzer()
	recs := testCorpus()
	byID := make(map[string]catalog.Record)
	for _, r := range recs {
		byID[r.ID] = r
	}
	idx := Build(recs, a)
	for _, entry := range idx.Snapshot() {
		for _, id := range entry.Postings {
			if _, ok := a.RootSet(byID[id].SearchableText())[entry.Term]; !ok {
				t.Errorf("(%q, %q) in index but record text has no such root", entry.Term, id)
			}
		}
	}
}

func TestBuildDeterministicAcrossOrder(t *testing.T) {
	a := englishAnalyzer()
	recs := testCorpus()
	want := Build(recs, a).Snapshot()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]catalog.Record(nil), recs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if got := Build(shuffled, a).Snapshot(); !reflect.DeepEqual(got, want) {
			t.Fatalf("snapshot differs for order %v", ids(shuffled))
		}
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	recs := testCorpus()
	before := append([]catalog.Record(nil), recs...)
	Build(recs, englishAnalyzer())
	if !reflect.DeepEqual(recs, before) {
		t.Error("Build modified its input")
	}
}

func TestStatsAndMissingTerm(t *testing.T) {
	idx := Build(testCorpus(), englishAnalyzer())
	if idx.Search("zzzz") != nil {
		t.Error("unknown root should have nil postings")
	}
	st := idx.Stats()
	if st.Terms != idx.Terms() || st.Docs != 4 || st.Postings < st.Terms {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestPostingListContains(t *testing.T) {
	p := PostingList{"s1", "s3", "s7"}
	for _, id := range []string{"s1", "s3", "s7"} {
		if !p.Contains(id) {
			t.Errorf("Contains(%q) = false", id)
		}
	}
	for _, id := range []string{"s0", "s2", "s9", ""} {
		if p.Contains(id) {
			t.Errorf("Contains(%q) = true", id)
		}
	}
}

func ids(recs []catalog.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
