// locsearch CLI - search, suggest and browse the location hierarchy.
// Usage: locsearch [options] [query]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"locsearch/internal/catalog"
	"locsearch/internal/config"
	"locsearch/internal/locations"
	"locsearch/internal/logger"
	"locsearch/internal/metrics"
	"locsearch/internal/schema"
	"locsearch/internal/search"
	"locsearch/internal/shardcache"
	"locsearch/internal/suggest"
	"locsearch/internal/ui"
)

func main() {
	// Flags
	configPath := pflag.StringP("config", "c", "", "Path to config.toml (default: search near cwd and executable)")
	dataDir := pflag.StringP("data-dir", "d", "", "Catalog directory (default: embedded catalog)")
	suggestMode := pflag.BoolP("suggest", "s", false, "Return suggestions instead of search results")
	region := pflag.StringP("region", "r", "", "Selected region id, used as suggestion context and for --list")
	subRegion := pflag.String("subregion", "", "Sub-region id for --list")
	list := pflag.BoolP("list", "L", false, "List regions, or the children of --region / --subregion")
	stats := pflag.Bool("stats", false, "Build the index and print performance statistics")
	limit := pflag.IntP("limit", "n", 0, "Maximum results (default from config)")
	jsonOutput := pflag.BoolP("json", "j", false, "Output as JSON")
	writeMetrics := pflag.Bool("metrics", false, "Record index build metrics to the output directory")
	clearCache := pflag.Bool("clear-cache", false, "Invalidate the shared Redis shard cache before loading")
	quiet := pflag.BoolP("quiet", "q", false, "Suppress progress output")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose logging")

	pflag.Parse()

	_ = godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("data-dir") {
		cfg.DataDir = *dataDir
	}
	if pflag.CommandLine.Changed("metrics") {
		cfg.Metrics = *writeMetrics
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if *limit > 0 {
		cfg.MaxResults = *limit
		cfg.MaxSuggestions = *limit
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	term := ui.New(*quiet || *jsonOutput, *verbose)

	source, filenames, err := catalog.OpenDir(cfg.DataDir)
	if err != nil {
		log.Fatal("failed to open catalog", zap.String("data_dir", cfg.DataDir), zap.Error(err))
	}

	var shards catalog.ShardSource = source
	if cfg.RedisAddr != "" {
		client, err := shardcache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("shard cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			defer client.Close()
			cache := shardcache.New(source, client,
				shardcache.WithTTL(cfg.RedisTTL),
				shardcache.WithLogger(log),
			)
			if *clearCache {
				if _, err := cache.Invalidate(ctx); err != nil {
					log.Warn("failed to invalidate shard cache", zap.Error(err))
				}
			}
			shards = cache
			log.Debug("shard cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	suggestConfig := suggest.DefaultConfig()
	suggestConfig.MaxSuggestions = cfg.MaxSuggestions

	svc, err := locations.New(ctx, locations.Options{
		Loader: catalog.NewLoader(shards,
			catalog.WithLogger(log),
			catalog.WithFilenames(filenames),
		),
		Search: search.Config{
			MaxResults:     cfg.MaxResults,
			MinQueryLength: cfg.MinQueryLength,
		},
		Suggest:        suggestConfig,
		Workers:        cfg.Workers,
		Logger:         log,
		CollectMetrics: cfg.Metrics,
	})
	if err != nil {
		log.Fatal("failed to start location service", zap.Error(err))
	}

	if *stats && !*jsonOutput {
		term.Banner()
		from := cfg.Source
		if from == "" {
			from = "built-in defaults"
		}
		catalogDir := cfg.DataDir
		if catalogDir == "" {
			catalogDir = "embedded"
		}
		cacheAddr := cfg.RedisAddr
		if cacheAddr == "" {
			cacheAddr = "disabled"
		}
		term.Config([][]string{
			{"Config", from},
			{"Catalog", catalogDir},
			{"Shard cache", cacheAddr},
			{"Max results", fmt.Sprintf("%d", cfg.MaxResults)},
			{"Max suggestions", fmt.Sprintf("%d", cfg.MaxSuggestions)},
		})
	}

	if cfg.WarmOnStart || *stats {
		spinner := term.Spinner("Building location index...")
		err := svc.Warm(ctx)
		spinner.Stop()
		if err != nil {
			log.Fatal("failed to build index", zap.Error(err))
		}
	}

	switch {
	case *list:
		runList(ctx, svc, term, *region, *subRegion, *jsonOutput)
	case pflag.NArg() > 0:
		query := pflag.Arg(0)
		var results []schema.MatchResult
		if *suggestMode {
			var sc *suggest.Context
			if *region != "" {
				sc = &suggest.Context{RegionID: *region}
			}
			results = svc.GetSmartSuggestions(ctx, query, sc)
		} else {
			results = svc.Search(ctx, query)
		}
		if *jsonOutput {
			printJSON(results)
		} else {
			term.Results(query, results)
		}
	case *suggestMode:
		results := svc.GetSmartSuggestions(ctx, "", nil)
		if *jsonOutput {
			printJSON(results)
		} else {
			term.Results("", results)
		}
	case !*stats:
		fmt.Fprintln(os.Stderr, "Usage: locsearch [options] [query]")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		pflag.PrintDefaults()
		os.Exit(1)
	}

	perf := svc.GetPerformanceStats()
	if *stats {
		if *jsonOutput {
			printJSON(perf)
		} else {
			term.Stats("Catalog", map[string]interface{}{
				"cached shards":   perf.Catalog.CachedShards,
				"loads":           perf.Catalog.Loads,
				"failed loads":    perf.Catalog.FailedLoads,
				"coalesced waits": perf.Catalog.CoalescedWaits,
				"index loaded":    perf.IsLoaded,
				"index builds":    perf.Builds,
			})
			term.IndexSizes(perf.Indexes)
			term.FinalReport(perf.LastReport)
		}
	}

	if cfg.Metrics && perf.LastReport != nil {
		reportMetrics(term, cfg.OutputDir, perf.LastReport)
	}
}

func runList(ctx context.Context, svc *locations.Service, term *ui.UI, region, subRegion string, jsonOutput bool) {
	var (
		title   string
		options []schema.Option
	)
	switch {
	case subRegion != "":
		title = "Localities of " + subRegion
		options = svc.ListLocalitiesBySubRegion(ctx, subRegion)
	case region != "":
		title = "Sub-regions of " + region
		options = svc.ListSubRegionsByRegion(ctx, region)
	default:
		title = "Regions"
		regions, err := svc.ListRegions(ctx)
		if err != nil {
			term.Error(err.Error())
			os.Exit(1)
		}
		options = regions
	}

	if jsonOutput {
		printJSON(options)
		return
	}
	term.Options(title, options)
}

func reportMetrics(term *ui.UI, outputDir string, report *metrics.BuildReport) {
	reporter, err := metrics.NewReporter(outputDir)
	if err != nil {
		term.Warning(fmt.Sprintf("Failed to create metrics directory: %v", err))
		return
	}

	previous, _ := reporter.GetLastRun()
	if err := reporter.Write(report); err != nil {
		term.Warning(fmt.Sprintf("Failed to write metrics: %v", err))
		return
	}
	term.Debug(fmt.Sprintf("Metrics written: %s", report.RunID))

	if previous != nil {
		term.Info(metrics.FormatComparison(metrics.CompareRuns(report, previous)))
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
