// locsearch-consolidate - Flatten the location catalog to CSV and JSON files.
// Usage: locsearch-consolidate [-d data-dir] [-o output/consolidated]
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"locsearch/internal/catalog"
	"locsearch/internal/index"
	"locsearch/internal/schema"
)

type Row struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	ParentID    string   `json:"parent_id,omitempty"`
	RegionID    string   `json:"region_id"`
	SubRegionID string   `json:"subregion_id,omitempty"`
	FullPath    string   `json:"full_path"`
	SearchTerms []string `json:"search_terms,omitempty"`
	PhoneticKey string   `json:"phonetic_key,omitempty"`
}

type ConsolidatedOutput struct {
	Kind      string `json:"kind"`
	Count     int    `json:"count"`
	Locations []Row  `json:"locations"`
}

func main() {
	dataDir := pflag.StringP("data-dir", "d", "", "Catalog directory (default: embedded catalog)")
	outputDir := pflag.StringP("output", "o", "output/consolidated", "Output directory")
	withMeta := pflag.BoolP("metadata", "m", false, "Include search terms and phonetic keys")
	workers := pflag.IntP("workers", "w", 0, "Parallel shard loads (0 = default)")
	pflag.Parse()

	source, filenames, err := catalog.OpenDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening catalog: %v\n", err)
		os.Exit(1)
	}

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	config := index.DefaultBuildConfig()
	if *workers > 0 {
		config.Workers = *workers
	}
	loader := catalog.NewLoader(source, catalog.WithFilenames(filenames))
	x, stats, err := index.Build(context.Background(), loader, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		os.Exit(1)
	}
	if failed := loader.Stats().FailedLoads; failed > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d shard(s) could not be loaded\n", failed)
	}

	byKind := make(map[schema.Kind][]Row)
	var all []Row
	for _, loc := range x.All() {
		row := Row{
			ID:          loc.ID,
			Name:        loc.Name,
			Kind:        loc.Kind.String(),
			ParentID:    loc.ParentID,
			RegionID:    loc.RegionID,
			SubRegionID: loc.SubRegionID,
			FullPath:    loc.FullPath(),
		}
		if *withMeta {
			row.SearchTerms = loc.SearchTerms
			row.PhoneticKey = loc.PhoneticKey
		}
		byKind[loc.Kind] = append(byKind[loc.Kind], row)
		all = append(all, row)
	}

	fmt.Printf("Consolidating catalog (%d shards)\n\n", stats.Shards)

	for _, kind := range []schema.Kind{schema.Region, schema.SubRegion, schema.Locality} {
		rows := byKind[kind]
		name := kind.String()
		if err := writeFiles(*outputDir, name, rows, *withMeta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("  %s: %d locations\n", name, len(rows))
	}

	if err := writeFiles(*outputDir, "all_locations", all, *withMeta); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing all_locations: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n  Total: %d locations\n", len(all))
	fmt.Printf("\nOutput: %s/\n", *outputDir)
}

// writeFiles writes <name>.json and <name>.csv.
func writeFiles(dir, name string, rows []Row, withMeta bool) error {
	if rows == nil {
		rows = []Row{}
	}

	jsonData, err := json.MarshalIndent(ConsolidatedOutput{Kind: name, Count: len(rows), Locations: rows}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), jsonData, 0644); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(dir, name+".csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	writer := csv.NewWriter(csvFile)
	header := []string{"id", "name", "kind", "parent_id", "region_id", "subregion_id", "full_path"}
	if withMeta {
		header = append(header, "search_terms", "phonetic_key")
	}
	writer.Write(header)
	for _, r := range rows {
		record := []string{r.ID, r.Name, r.Kind, r.ParentID, r.RegionID, r.SubRegionID, r.FullPath}
		if withMeta {
			record = append(record, strings.Join(r.SearchTerms, ";"), r.PhoneticKey)
		}
		writer.Write(record)
	}
	writer.Flush()
	return writer.Error()
}
