// Package tokenizer provides text normalisation for the search engine.
// It lower-cases input, blanks out a fixed punctuation set, splits on
// whitespace, and maps the resulting tokens to roots through a stemmer.
package tokenizer

import (
	"strings"

	"github.com/showsearch/showsearch/internal/indexer/stemmer"
)

// punctuation replaces each stripped character with a single space. Anything
// not listed (digits, hyphens, '?', '&', ...) passes through untouched.
var punctuation = strings.NewReplacer(
	",", " ",
	";", " ",
	":", " ",
	".", " ",
	"!", " ",
	"(", " ",
	")", " ",
	"\"", " ",
	"'", " ",
	"\\", " ",
	"/", " ",
	"[", " ",
	"]", " ",
)

// Normalize lowercases text, replaces the stripped punctuation with spaces
// and returns the whitespace-separated tokens. Apostrophes are stripped like
// any other listed mark, so "lawyer's" yields "lawyer" and "s".
func Normalize(text string) []string {
	return strings.Fields(punctuation.Replace(strings.ToLower(text)))
}

// Analyzer turns text into roots using a stemmer.Provider.
type Analyzer struct {
	provider stemmer.Provider
}

func NewAnalyzer(provider stemmer.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Provider returns the underlying lexical root provider.
func (a *Analyzer) Provider() stemmer.Provider {
	return a.provider
}

// Roots returns the root of every token in text, in order, duplicates kept.
func (a *Analyzer) Roots(text string) []string {
	tokens := Normalize(text)
	roots := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		root := a.provider.Stem(tok)
		if root == "" {
			continue
		}
		roots = append(roots, root)
	}
	return roots
}

// RootSet returns the distinct roots of text.
func (a *Analyzer) RootSet(text string) map[string]struct{} {
	roots := a.Roots(text)
	set := make(map[string]struct{}, len(roots))
	for _, r := range roots {
		set[r] = struct{}{}
	}
	return set
}

// IsStopword reports whether root is in the provider's stopword set.
func (a *Analyzer) IsStopword(root string) bool {
	return a.provider.IsStopword(root)
}
