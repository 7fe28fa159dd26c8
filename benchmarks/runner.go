// Benchmark runner for locsearch: index build and query latency per worker count.
// Run with: go run ./benchmarks [options]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"locsearch/internal/catalog"
	"locsearch/internal/index"
	"locsearch/internal/search"
)

type Config struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Workers int    `json:"workers"`
}

type Group struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Queries     []string `json:"queries"`
	Configs     []Config `json:"configs"`
}

type ConfigFile struct {
	Groups []Group `json:"groups"`
}

type BenchmarkResult struct {
	ConfigID     string  `json:"config_id"`
	Group        string  `json:"group"`
	Workers      int     `json:"workers"`
	BuildMs      float64 `json:"build_ms"`
	Locations    int     `json:"locations"`
	Shards       int     `json:"shards"`
	Queries      int     `json:"queries"`
	QueryUs      float64 `json:"query_us"`
	QueryResults int     `json:"query_results"`
}

// fallbackConfig is used when no config file is given.
var fallbackConfig = ConfigFile{Groups: []Group{{
	Name:        "workers",
	Description: "index build by shard loader parallelism",
	Queries:     []string{"ktm", "kath", "pokhara", "pur", "bhaktpur", "nagar", "dhulikhel", "jhpa"},
	Configs: []Config{
		{ID: "seq", Name: "sequential", Workers: 1},
		{ID: "w2", Name: "2 workers", Workers: 2},
		{ID: "w4", Name: "4 workers", Workers: 4},
		{ID: "w8", Name: "8 workers", Workers: 8},
	},
}}}

func main() {
	configPath := pflag.String("config", "", "Path to benchmark configs (default: built-in)")
	dataDir := pflag.StringP("data-dir", "d", "", "Catalog directory (default: embedded catalog)")
	outputDir := pflag.String("output", "results", "Output directory for results")
	group := pflag.String("group", "", "Run only this group (empty = all)")
	iterations := pflag.Int("iterations", 5, "Number of iterations per config")
	pflag.Parse()

	cfg := fallbackConfig
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
			os.Exit(1)
		}
	}

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

	// Run benchmarks
	var results []BenchmarkResult
	total := countConfigs(cfg.Groups, *group)
	current := 0

	for _, g := range cfg.Groups {
		if *group != "" && g.Name != *group {
			continue
		}

		fmt.Printf("\n=== Group: %s (%s) ===\n", g.Name, g.Description)
		fmt.Printf("Queries: %s\n", strings.Join(g.Queries, ", "))

		for _, c := range g.Configs {
			current++
			fmt.Printf("\n[%d/%d] Running: %s\n", current, total, c.Name)

			var runs []BenchmarkResult
			for i := 0; i < *iterations; i++ {
				// a fresh loader per run so every build reads every shard
				loader := catalog.NewLoader(source, catalog.WithFilenames(filenames))
				result, err := runBenchmark(loader, g, c)
				if err != nil {
					fmt.Printf("  ERROR: %v\n", err)
					continue
				}
				runs = append(runs, result)
			}

			if len(runs) > 0 {
				avg := average(runs)
				fmt.Printf("  Build: %.2fms, Locations: %d, Query: %.1fus\n",
					avg.BuildMs, avg.Locations, avg.QueryUs)
				results = append(results, avg)
			}
		}
	}

	// Write results
	resultsFile := filepath.Join(*outputDir, fmt.Sprintf("benchmark_%s.json",
		time.Now().Format("2006-01-02_15-04-05")))

	output := map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"iterations": *iterations,
		"results":    results,
	}

	data, _ := json.MarshalIndent(output, "", "  ")
	if err := os.WriteFile(resultsFile, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
	} else {
		fmt.Printf("\nResults written to: %s\n", resultsFile)
	}

	// Print summary table
	printSummary(results)
}

func countConfigs(groups []Group, filter string) int {
	count := 0
	for _, g := range groups {
		if filter != "" && g.Name != filter {
			continue
		}
		count += len(g.Configs)
	}
	return count
}

func runBenchmark(loader *catalog.Loader, g Group, c Config) (BenchmarkResult, error) {
	config := index.DefaultBuildConfig()
	if c.Workers > 0 {
		config.Workers = c.Workers
	}

	start := time.Now()
	x, stats, err := index.Build(context.Background(), loader, config)
	if err != nil {
		return BenchmarkResult{}, fmt.Errorf("build failed: %w", err)
	}
	build := time.Since(start)

	engine := search.NewEngine(search.DefaultConfig())
	hits := 0
	start = time.Now()
	for _, q := range g.Queries {
		hits += len(engine.Search(x, q))
	}
	queries := time.Since(start)

	result := BenchmarkResult{
		ConfigID:     c.ID,
		Group:        g.Name,
		Workers:      config.Workers,
		BuildMs:      float64(build.Microseconds()) / 1000,
		Locations:    x.Len(),
		Shards:       stats.Shards,
		Queries:      len(g.Queries),
		QueryResults: hits,
	}
	if len(g.Queries) > 0 {
		result.QueryUs = float64(queries.Nanoseconds()) / 1000 / float64(len(g.Queries))
	}
	return result, nil
}

func average(runs []BenchmarkResult) BenchmarkResult {
	avg := runs[len(runs)-1]
	var build, query float64
	for _, r := range runs {
		build += r.BuildMs
		query += r.QueryUs
	}
	avg.BuildMs = build / float64(len(runs))
	avg.QueryUs = query / float64(len(runs))
	return avg
}

func printSummary(results []BenchmarkResult) {
	if len(results) == 0 {
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("%-24s %12s %12s %10s\n", "Config", "Build", "Query", "Speedup")
	fmt.Println(strings.Repeat("-", 70))

	// Group results by group name, keeping run order
	var order []string
	groups := make(map[string][]BenchmarkResult)
	for _, r := range results {
		if _, ok := groups[r.Group]; !ok {
			order = append(order, r.Group)
		}
		groups[r.Group] = append(groups[r.Group], r)
	}

	for _, groupName := range order {
		groupResults := groups[groupName]
		fmt.Printf("\n[%s]\n", groupName)

		// Find baseline (sequential)
		var baseline float64
		for _, r := range groupResults {
			if r.Workers == 1 {
				baseline = r.BuildMs
				break
			}
		}

		for _, r := range groupResults {
			speedup := "-"
			if baseline > 0 && r.BuildMs > 0 {
				speedup = fmt.Sprintf("%.2fx", baseline/r.BuildMs)
			}

			name := r.ConfigID
			if len(name) > 24 {
				name = name[:21] + "..."
			}

			fmt.Printf("%-24s %10.2fms %10.1fus %10s\n",
				name, r.BuildMs, r.QueryUs, speedup)
		}
	}

	fmt.Println(strings.Repeat("=", 70))
}
