package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/showsearch/showsearch/internal/catalog"
	"github.com/showsearch/showsearch/internal/indexer"
	"github.com/showsearch/showsearch/internal/indexer/index"
	"github.com/showsearch/showsearch/internal/searcher/parser"
	"github.com/showsearch/showsearch/pkg/config"
	"github.com/showsearch/showsearch/pkg/tracing"
)

// Outcome distinguishes a query that had terms to match from one that had
// none left after stopword removal.
type Outcome string

const (
	OutcomeMatched Outcome = "matched"
	OutcomeNoTerms Outcome = "no_terms"
)

const (
	msgNoTerms = "no searchable terms: the query was empty or contained only stopwords"
	msgNoMatch = "no shows contain every query term"
	msgIgnored = "some terms were not found in any show and were ignored"
)

type SearchResult struct {
	Query          string           `json:"query"`
	Outcome        Outcome          `json:"outcome"`
	Message        string           `json:"message,omitempty"`
	TotalHits      int              `json:"total_hits"`
	Results        []catalog.Record `json:"results"`
	TermStats      map[string]int   `json:"term_stats"`
	UnmatchedTerms []string         `json:"unmatched_terms,omitempty"`
	Stopwords      []string         `json:"stopwords,omitempty"`
	Generation     uint64           `json:"generation"`
}

// SnapshotSource yields the index snapshot to search. *indexer.Engine
// satisfies it.
type SnapshotSource interface {
	Current() (*indexer.Snapshot, error)
}

type Executor struct {
	snapshots SnapshotSource
	policy    string
	logger    *slog.Logger
}

// New returns an executor applying cfg.UnmatchedTerms to terms that have no
// postings.
func New(snapshots SnapshotSource, cfg config.SearchConfig) *Executor {
	policy := cfg.UnmatchedTerms
	if policy == "" {
		policy = config.UnmatchedStrict
	}
	return &Executor{
		snapshots: snapshots,
		policy:    policy,
		logger:    slog.Default().With("component", "query-executor"),
	}
}

// Execute runs plan against the current snapshot. limit > 0 caps the number
// of records returned; TotalHits always reports the full match count.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	snap, err := e.snapshots.Current()
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return e.ExecuteOn(ctx, snap, plan, limit)
}

// ExecuteOn runs plan against snap. Callers that key other state by
// generation use it to pin one snapshot for the whole request.
func (e *Executor) ExecuteOn(ctx context.Context, snap *indexer.Snapshot, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	_, span := tracing.StartChildSpan(ctx, "execute")
	defer span.End()

	result := Match(snap, plan, e.policy)
	span.SetAttr("terms", len(plan.Terms))
	span.SetAttr("total_hits", result.TotalHits)
	if limit > 0 && len(result.Results) > limit {
		result.Results = result.Results[:limit]
	}
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"outcome", result.Outcome,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"generation", snap.Generation,
	)
	return result, nil
}

// Match resolves plan against snap without paging. Each term's postings
// form one required set and the result is their intersection, ordered by
// record id. Terms with no postings either force an empty result (strict)
// or are dropped (ignore); when nothing is left to intersect the outcome
// is OutcomeNoTerms.
func Match(snap *indexer.Snapshot, plan *parser.QueryPlan, policy string) *SearchResult {
	result := &SearchResult{
		Query:      plan.RawQuery,
		Outcome:    OutcomeMatched,
		Results:    []catalog.Record{},
		TermStats:  make(map[string]int, len(plan.Terms)),
		Stopwords:  plan.Stopwords,
		Generation: snap.Generation,
	}

	postingsPerTerm := make(map[string]index.PostingList, len(plan.Terms))
	for _, term := range plan.Terms {
		postings := snap.Index.Search(term)
		result.TermStats[term] = len(postings)
		if len(postings) == 0 {
			result.UnmatchedTerms = append(result.UnmatchedTerms, term)
			continue
		}
		postingsPerTerm[term] = postings
	}

	if len(result.UnmatchedTerms) > 0 && policy != config.UnmatchedIgnore {
		result.Message = msgNoMatch
		return result
	}
	if len(postingsPerTerm) == 0 {
		result.Outcome = OutcomeNoTerms
		result.Message = msgNoTerms
		return result
	}

	ids := intersectPostings(postingsPerTerm)
	for _, id := range ids {
		if rec, ok := snap.Records.ByID(id); ok {
			result.Results = append(result.Results, rec)
		}
	}
	result.TotalHits = len(result.Results)
	switch {
	case result.TotalHits == 0:
		result.Message = msgNoMatch
	case len(result.UnmatchedTerms) > 0:
		result.Message = msgIgnored
	}
	return result
}

// intersectPostings walks the shortest list and keeps ids present in every
// other list. Postings are sorted, so the output is sorted too.
func intersectPostings(postingsPerTerm map[string]index.PostingList) []string {
	lists := make([]index.PostingList, 0, len(postingsPerTerm))
	for _, postings := range postingsPerTerm {
		lists = append(lists, postings)
	}
	sort.Slice(lists, func(i, j int) bool {
		return len(lists[i]) < len(lists[j])
	})

	candidates := make([]string, 0, len(lists[0]))
	for _, id := range lists[0] {
		inAll := true
		for _, other := range lists[1:] {
			if !other.Contains(id) {
				inAll = false
				break
			}
		}
		if inAll {
			candidates = append(candidates, id)
		}
	}
	return candidates
}
