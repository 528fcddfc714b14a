// Package stemmer provides the lexical root providers used by the tokenizer:
// a token-to-root function and a fixed stopword set.
package stemmer

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball/english"
)

// Provider maps tokens to roots and recognises stopwords. Implementations
// must be pure and safe for concurrent use.
type Provider interface {
	Stem(token string) string
	IsStopword(word string) bool
}

// English stems with the Snowball (Porter2) English algorithm and uses the
// Snowball English stopword list, optionally extended.
type English struct {
	extra map[string]struct{}
}

// NewEnglish returns an English provider. Extra stopwords are lowercased and
// trimmed; empty entries are ignored.
func NewEnglish(extraStopwords ...string) *English {
	extra := make(map[string]struct{}, len(extraStopwords))
	for _, w := range extraStopwords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			extra[w] = struct{}{}
		}
	}
	return &English{extra: extra}
}

// Stem returns the Snowball root of token. Stopwords are stemmed too, so the
// stopword test downstream sees the same form the index does.
func (e *English) Stem(token string) string {
	return english.Stem(token, true)
}

func (e *English) IsStopword(word string) bool {
	if _, ok := e.extra[word]; ok {
		return true
	}
	return english.IsStopWord(word)
}

// New returns the provider for a configured language.
func New(language string, extraStopwords []string) (Provider, error) {
	switch strings.ToLower(language) {
	case "", "english", "en":
		return NewEnglish(extraStopwords...), nil
	default:
		return nil, fmt.Errorf("unsupported stemmer language %q", language)
	}
}

// Static is a table-driven provider. Tokens missing from the table stem to
// themselves.
type Static struct {
	Roots     map[string]string
	Stopwords map[string]struct{}
}

func (s Static) Stem(token string) string {
	if root, ok := s.Roots[token]; ok {
		return root
	}
	return token
}

func (s Static) IsStopword(word string) bool {
	_, ok := s.Stopwords[word]
	return ok
}

// StopwordSet builds a set from a word list.
func StopwordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
