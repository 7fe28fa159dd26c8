// locsearch-fuzzy - Score a query against every catalog name.
// Usage: locsearch-fuzzy [options] <query>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"locsearch/internal/catalog"
	"locsearch/internal/index"
	"locsearch/internal/normalizer"
	"locsearch/internal/similarity"
)

type match struct {
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Path     string            `json:"path"`
	Term     string            `json:"term"`
	Phonetic bool              `json:"phonetic"`
	Scores   similarity.Scores `json:"scores"`
}

func main() {
	// Flags
	dataDir := pflag.StringP("data-dir", "d", "", "Catalog directory (default: embedded catalog)")
	minScore := pflag.Float64P("min", "m", similarity.FuzzyThreshold, "Minimum combined score")
	limit := pflag.IntP("limit", "l", 10, "Maximum results to show")
	jsonOutput := pflag.BoolP("json", "j", false, "Output as JSON")

	pflag.Parse()

	if pflag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: locsearch-fuzzy [options] <query>")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		pflag.PrintDefaults()
		os.Exit(1)
	}

	query := normalizer.Normalize(pflag.Arg(0))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Error: query is empty after normalization")
		os.Exit(1)
	}

	source, filenames, err := catalog.OpenDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	x, _, err := index.Build(context.Background(), catalog.NewLoader(source, catalog.WithFilenames(filenames)), index.DefaultBuildConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	results := score(x, query, *minScore)

	// Limit results
	if *limit > 0 && len(results) > *limit {
		results = results[:*limit]
	}

	// Output
	if *jsonOutput {
		output := struct {
			Query    string  `json:"query"`
			Phonetic string  `json:"phonetic_key"`
			MinScore float64 `json:"min_score"`
			Count    int     `json:"count"`
			Results  []match `json:"results"`
		}{
			Query:    query,
			Phonetic: normalizer.PhoneticKey(query),
			MinScore: *minScore,
			Count:    len(results),
			Results:  results,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(output)
		return
	}

	if len(results) == 0 {
		fmt.Printf("No names score above %.2f for %q\n", *minScore, query)
		return
	}

	fmt.Printf("Similarity for %q (phonetic key %q):\n\n", query, normalizer.PhoneticKey(query))
	fmt.Printf("  %-28s %-10s %6s %6s %6s %8s\n", "name", "kind", "jaro", "lev", "lcs", "combined")
	for _, r := range results {
		marker := ""
		if r.Phonetic {
			marker = " ~"
		}
		fmt.Printf("  %-28s %-10s %6.3f %6.3f %6.3f %8.3f%s\n",
			r.Name, r.Kind, r.Scores.Jaro, r.Scores.Levenshtein, r.Scores.LCS, r.Scores.Combined, marker)
	}
	fmt.Printf("\n%d result(s) found (~ = same phonetic key)\n", len(results))
}

// score compares query with every search term of every location and keeps
// each location's best term.
func score(x *index.Index, query string, minScore float64) []match {
	phonetic := normalizer.PhoneticKey(query)

	var results []match
	for _, loc := range x.All() {
		best := match{Scores: similarity.Scores{Combined: -1}}
		for _, term := range loc.SearchTerms {
			s := similarity.Compare(query, term)
			if s.Combined > best.Scores.Combined {
				best.Term, best.Scores = term, s
			}
		}
		if best.Scores.Combined < minScore {
			continue
		}
		best.Name = loc.Name
		best.Kind = loc.Kind.String()
		best.Path = loc.FullPath()
		best.Phonetic = phonetic != "" && loc.PhoneticKey == phonetic
		results = append(results, best)
	}

	// Sort by score, then alphabetically
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Scores.Combined != results[j].Scores.Combined {
			return results[i].Scores.Combined > results[j].Scores.Combined
		}
		return results[i].Path < results[j].Path
	})
	return results
}
