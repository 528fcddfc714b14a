package benchmark

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/showsearch/showsearch/internal/catalog"
	"github.com/showsearch/showsearch/internal/indexer/stemmer"
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
)

var vocabulary = strings.Fields(`
	teacher lawyer chemistry crime family murder detective comedy romance war
	school kingdom dragon journey survival island city secret mission friendship
	documentary music chef competition heist spy zombie vampire ghost teenager
	the a of and in to with for on their his her from after
`)

// syntheticCorpus returns n records with titles and descriptions drawn from
// vocabulary. The seed is fixed so runs are comparable.
func syntheticCorpus(n int) []catalog.Record {
	rng := rand.New(rand.NewPCG(1, 2))
	words := func(k int) string {
		out := make([]string, k)
		for i := range out {
			out[i] = vocabulary[rng.IntN(len(vocabulary))]
		}
		return strings.Join(out, " ")
	}
	records := make([]catalog.Record, n)
	for i := range records {
		records[i] = catalog.Record{
			ID:          fmt.Sprintf("s%d", i+1),
			Title:       catalog.NewField(words(3)),
			Cast:        catalog.NewField(words(4)),
			Description: catalog.NewField(words(20)),
			ReleaseYear: catalog.Year{Value: 1990 + i%35, Valid: true},
		}
	}
	return records
}

func englishAnalyzer() *tokenizer.Analyzer {
	return tokenizer.NewAnalyzer(stemmer.NewEnglish())
}
