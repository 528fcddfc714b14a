package parser

import (
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
)

// QueryPlan is the analysed form of a free-text query. Every query term is
// required; there is no OR or NOT syntax.
type QueryPlan struct {
	RawQuery  string
	Terms     []string
	Stopwords []string
}

// Empty reports whether no searchable term survived analysis.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Parse normalizes and roots query, then drops roots that are stopwords.
// The stopword test runs on the rooted form. Repeated roots are kept once,
// in first-seen order.
func Parse(query string, analyzer *tokenizer.Analyzer) *QueryPlan {
	plan := &QueryPlan{
		RawQuery:  query,
		Terms:     make([]string, 0),
		Stopwords: make([]string, 0),
	}
	seen := make(map[string]struct{})
	for _, root := range analyzer.Roots(query) {
		if _, dup := seen[root]; dup {
			continue
		}
		seen[root] = struct{}{}
		if analyzer.IsStopword(root) {
			plan.Stopwords = append(plan.Stopwords, root)
			continue
		}
		plan.Terms = append(plan.Terms, root)
	}
	return plan
}
