package index

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"locsearch/internal/metrics"
	"locsearch/internal/normalizer"
	"locsearch/internal/schema"
)

// Catalog is the part of the catalog loader the build walks.
type Catalog interface {
	ListRegions(ctx context.Context) ([]schema.LocationNode, error)
	ListSubRegions(ctx context.Context, regionID string) []schema.LocationNode
	ListLocalities(ctx context.Context, subRegionID string) []schema.LocationNode
}

// BuildConfig configures a build.
type BuildConfig struct {
	Workers int // region sub-trees fetched concurrently
	Aliases *normalizer.AliasTable
	Logger  *zap.Logger
	Metrics *metrics.Collector // optional
}

// DefaultBuildConfig returns sensible defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Workers: 4,
		Aliases: normalizer.DefaultAliases(),
	}
}

// BuildStats summarizes a build.
type BuildStats struct {
	Regions    int           `json:"regions"`
	SubRegions int           `json:"subregions"`
	Localities int           `json:"localities"`
	Shards     int           `json:"shards"`
	Duplicates int           `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
}

type subTree struct {
	node       schema.LocationNode
	localities []schema.LocationNode
}

type regionTree struct {
	node schema.LocationNode
	subs []subTree
}

// Build walks the whole catalog depth-first and returns the resulting
// index. Region sub-trees are fetched concurrently and inserted in catalog
// order, so the result does not depend on scheduling. Shards the catalog
// fails to load contribute nothing. Build fails only if the region list is
// unavailable or ctx ends first.
func Build(ctx context.Context, cat Catalog, config BuildConfig) (*Index, BuildStats, error) {
	start := time.Now()
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := config.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	collector.SetConfig("workers", workers)

	var stats BuildStats

	collector.StartStage(metrics.StageRegions)
	regions, err := cat.ListRegions(ctx)
	collector.SetCounter("regions", int64(len(regions)))
	collector.EndStage(metrics.StageRegions)
	if err != nil {
		return nil, stats, err
	}
	stats.Shards = 1

	collector.StartStage(metrics.StageShards)
	trees := make([]regionTree, len(regions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, region := range regions {
		i, region := i, region
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tree := regionTree{node: region}
			for _, sub := range cat.ListSubRegions(gctx, region.ID) {
				tree.subs = append(tree.subs, subTree{
					node:       sub,
					localities: cat.ListLocalities(gctx, sub.ID),
				})
				collector.IncrementCounter("shards", 1)
			}
			collector.IncrementCounter("shards", 1)
			trees[i] = tree
			return gctx.Err()
		})
	}
	err = g.Wait()
	collector.EndStage(metrics.StageShards)
	if err != nil {
		return nil, stats, fmt.Errorf("index build interrupted: %w", err)
	}

	collector.StartStage(metrics.StageIndex)
	b := NewBuilder(config.Aliases)
	add := func(node schema.LocationNode, lineage Lineage) {
		if !b.Add(node, lineage) {
			stats.Duplicates++
			logger.Warn("duplicate location skipped",
				zap.Stringer("kind", node.Kind),
				zap.String("id", node.ID),
				zap.String("parent", node.ParentID))
		}
	}
	for _, tree := range trees {
		stats.Regions++
		stats.Shards++
		add(tree.node, Lineage{})
		for _, sub := range tree.subs {
			stats.SubRegions++
			stats.Shards++
			add(sub.node, Lineage{Region: tree.node})
			for _, loc := range sub.localities {
				stats.Localities++
				add(loc, Lineage{Region: tree.node, SubRegion: sub.node})
			}
		}
	}
	x := b.Snapshot()
	sizes := x.Sizes()
	collector.SetCounter("locations", int64(sizes.Locations))
	collector.SetCounter("terms", int64(sizes.Terms))
	collector.SetCounter("phonetic_keys", int64(sizes.Phonetic))
	collector.SetCounter("keywords", int64(sizes.Keywords))
	collector.SetCounter("duplicates", int64(stats.Duplicates))
	collector.EndStage(metrics.StageIndex)

	stats.Duration = time.Since(start)
	logger.Info("index built",
		zap.Int("locations", sizes.Locations),
		zap.Int("terms", sizes.Terms),
		zap.Int("phonetic_keys", sizes.Phonetic),
		zap.Int("keywords", sizes.Keywords),
		zap.Int("shards", stats.Shards),
		zap.Duration("duration", stats.Duration))

	return x, stats, nil
}
