package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/showsearch/showsearch/internal/catalog"
	"github.com/showsearch/showsearch/internal/searcher/executor"
)

func printResult(w io.Writer, result *executor.SearchResult) {
	switch {
	case result.Outcome == executor.OutcomeNoTerms:
		fmt.Fprintf(w, "%q has no searchable words (empty or only stopwords).\n\n", result.Query)
		return
	case result.TotalHits == 0:
		fmt.Fprintf(w, "No shows match %q.\n", result.Query)
		if len(result.UnmatchedTerms) > 0 {
			fmt.Fprintf(w, "Not found anywhere: %s\n", strings.Join(result.UnmatchedTerms, ", "))
		}
		fmt.Fprintln(w)
		return
	}
	for _, r := range result.Results {
		fmt.Fprintln(w)
		printRecord(w, r)
	}
	if len(result.Results) < result.TotalHits {
		fmt.Fprintf(w, "\n... %d more\n", result.TotalHits-len(result.Results))
	}
	fmt.Fprintf(w, "\n%d show(s) found.\n\n", result.TotalHits)
}

func printRecord(w io.Writer, r catalog.Record) {
	year := "?"
	if r.ReleaseYear.Valid {
		year = fmt.Sprint(r.ReleaseYear.Value)
	}
	fmt.Fprintf(w, "[%s] %s (%s, %s)\n", r.ID, r.Title, r.Type, year)
	if r.Director.Valid {
		fmt.Fprintf(w, "  director: %s\n", r.Director.Value)
	}
	if r.Cast.Valid {
		fmt.Fprintf(w, "  cast:     %s\n", r.Cast.Value)
	}
	if r.ListedIn.Valid {
		fmt.Fprintf(w, "  genres:   %s\n", r.ListedIn.Value)
	}
	fmt.Fprintf(w, "  %s\n", r.Description)
}
