// Package report summarises the catalog by release year, as JSON for the
// HTTP service and as text bars for the CLI.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/showsearch/showsearch/internal/catalog"
)

// UnknownYear labels records without a release year.
const UnknownYear = "Unknown"

type YearCount struct {
	Year  string `json:"year"`
	Count int    `json:"count"`
}

// CountByReleaseYear counts records per release year in ascending year
// order. Records with no year are counted last under UnknownYear.
func CountByReleaseYear(records []catalog.Record) []YearCount {
	byYear := make(map[int]int)
	unknown := 0
	for _, r := range records {
		if !r.ReleaseYear.Valid {
			unknown++
			continue
		}
		byYear[r.ReleaseYear.Value]++
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	counts := make([]YearCount, 0, len(years)+1)
	for _, y := range years {
		counts = append(counts, YearCount{Year: strconv.Itoa(y), Count: byYear[y]})
	}
	if unknown > 0 {
		counts = append(counts, YearCount{Year: UnknownYear, Count: unknown})
	}
	return counts
}

// RenderBars writes one line per year with a bar scaled so the largest
// count spans width characters. Non-zero counts always get at least one
// character.
func RenderBars(w io.Writer, counts []YearCount, width int) error {
	if width < 1 {
		width = 50
	}
	maxCount, labelWidth := 0, 0
	for _, c := range counts {
		maxCount = max(maxCount, c.Count)
		labelWidth = max(labelWidth, len(c.Year))
	}
	for _, c := range counts {
		n := 0
		if maxCount > 0 {
			n = c.Count * width / maxCount
		}
		if n == 0 && c.Count > 0 {
			n = 1
		}
		if _, err := fmt.Fprintf(w, "%-*s | %s %d\n", labelWidth, c.Year, strings.Repeat("#", n), c.Count); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
	}
	return nil
}
