// Package index holds the inverted index from roots to record ids. An Index
// is immutable once built and may be read from many goroutines without
// locking.
package index

import (
	"sort"

	"github.com/showsearch/showsearch/internal/catalog"
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
)

type MemoryIndex struct {
	postings    map[string]PostingList
	docCount    int
	indexedDocs int
	postingsLen int
}

// Build indexes every record's searchable text. Each record contributes its
// distinct roots once, so no postings list ever holds an id twice. Records
// with no derivable roots are counted but not indexed.
func Build(records []catalog.Record, analyzer *tokenizer.Analyzer) *MemoryIndex {
	sets := make(map[string]map[string]struct{})
	m := &MemoryIndex{docCount: len(records)}

	for _, rec := range records {
		roots := analyzer.RootSet(rec.SearchableText())
		if len(roots) == 0 {
			continue
		}
		m.indexedDocs++
		for root := range roots {
			ids, exists := sets[root]
			if !exists {
				ids = make(map[string]struct{})
				sets[root] = ids
			}
			ids[rec.ID] = struct{}{}
		}
	}

	m.postings = make(map[string]PostingList, len(sets))
	for root, ids := range sets {
		list := make(PostingList, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Strings(list)
		m.postings[root] = list
		m.postingsLen += len(list)
	}
	return m
}

// Search returns the postings for root, or nil if the root is not indexed.
// The returned slice is shared; callers must not modify it.
func (m *MemoryIndex) Search(root string) PostingList {
	return m.postings[root]
}

func (m *MemoryIndex) Contains(root string) bool {
	_, ok := m.postings[root]
	return ok
}

// Snapshot returns every term with its postings, ordered by term.
func (m *MemoryIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(m.postings))
	for term, postings := range m.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (m *MemoryIndex) Terms() int {
	return len(m.postings)
}

func (m *MemoryIndex) DocCount() int {
	return m.docCount
}

// IndexedDocs is the number of records that contributed at least one root.
func (m *MemoryIndex) IndexedDocs() int {
	return m.indexedDocs
}

func (m *MemoryIndex) Stats() Stats {
	return Stats{
		Docs:        m.docCount,
		IndexedDocs: m.indexedDocs,
		Terms:       len(m.postings),
		Postings:    m.postingsLen,
	}
}
