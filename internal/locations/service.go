// Package locations is the entry point for callers: listing the hierarchy,
// searching it and suggesting locations.
package locations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"locsearch/internal/catalog"
	"locsearch/internal/index"
	"locsearch/internal/metrics"
	"locsearch/internal/normalizer"
	"locsearch/internal/schema"
	"locsearch/internal/search"
	"locsearch/internal/suggest"
)

// Options configures a Service.
type Options struct {
	Loader  *catalog.Loader // required
	Aliases *normalizer.AliasTable
	Search  search.Config
	Suggest suggest.Config
	Workers int
	Logger  *zap.Logger

	// CollectMetrics records a BuildReport for every index build.
	CollectMetrics bool
}

// Service answers listing, search and suggestion requests. The index is
// built on first use and replaced atomically, so a query always sees one
// consistent snapshot. It is safe for concurrent use.
type Service struct {
	loader  *catalog.Loader
	search  *search.Engine
	suggest *suggest.Engine
	build   index.BuildConfig
	metrics bool
	logger  *zap.Logger

	idx    atomic.Pointer[index.Index]
	loaded atomic.Bool
	gen    atomic.Uint64
	group  singleflight.Group
	builds atomic.Int64

	mu         sync.Mutex
	lastBuild  index.BuildStats
	lastReport *metrics.BuildReport
}

// Stats is the introspection snapshot returned by GetPerformanceStats.
type Stats struct {
	TotalIndexed int                  `json:"total_indexed"`
	Indexes      index.Sizes          `json:"indexes"`
	IsLoaded     bool                 `json:"is_loaded"`
	Builds       int64                `json:"builds"`
	Catalog      catalog.Stats        `json:"catalog"`
	LastBuild    index.BuildStats     `json:"last_build"`
	LastReport   *metrics.BuildReport `json:"last_report,omitempty"`
}

// New creates the service and loads the region list. It fails only when
// the region list is unavailable, since nothing can be served without it.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Loader == nil {
		return nil, errors.New("locations: nil loader")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	build := index.DefaultBuildConfig()
	if opts.Aliases != nil {
		build.Aliases = opts.Aliases
	}
	if opts.Workers > 0 {
		build.Workers = opts.Workers
	}
	build.Logger = logger

	se := search.NewEngine(opts.Search)
	s := &Service{
		loader:  opts.Loader,
		search:  se,
		suggest: suggest.NewEngine(se, opts.Suggest),
		build:   build,
		metrics: opts.CollectMetrics,
		logger:  logger,
	}
	s.idx.Store(index.Empty())

	if _, err := s.loader.ListRegions(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ListRegions returns every region as picker options.
func (s *Service) ListRegions(ctx context.Context) ([]schema.Option, error) {
	nodes, err := s.loader.ListRegions(ctx)
	if err != nil {
		return nil, err
	}
	return schema.OptionsFromNodes(nodes), nil
}

// ListSubRegionsByRegion returns the sub-regions of a region as picker
// options. Unknown or unloadable regions yield an empty list.
func (s *Service) ListSubRegionsByRegion(ctx context.Context, regionID string) []schema.Option {
	return schema.OptionsFromNodes(s.loader.ListSubRegions(ctx, regionID))
}

// ListLocalitiesBySubRegion returns the localities of a sub-region as
// picker options. Unknown or unloadable sub-regions yield an empty list.
func (s *Service) ListLocalitiesBySubRegion(ctx context.Context, subRegionID string) []schema.Option {
	return schema.OptionsFromNodes(s.loader.ListLocalities(ctx, subRegionID))
}

// Search returns ranked matches for query. "No results" is an empty slice,
// never an error; if the index cannot be built the query runs against
// whatever is loaded.
func (s *Service) Search(ctx context.Context, query string) []schema.MatchResult {
	return s.search.Search(s.index(ctx), query)
}

// GetSmartSuggestions returns suggestions for a partially typed query.
// sc may be nil.
func (s *Service) GetSmartSuggestions(ctx context.Context, query string, sc *suggest.Context) []schema.MatchResult {
	return s.suggest.Suggest(s.index(ctx), query, sc)
}

// Warm builds the index now instead of on the first query. Concurrent
// callers share one build; a caller whose ctx ends stops waiting without
// cancelling the build for the others.
func (s *Service) Warm(ctx context.Context) error {
	if s.loaded.Load() {
		return nil
	}

	gen := s.gen.Load()
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(fmt.Sprintf("build:%d", gen), func() (any, error) {
		// a build of this generation may have finished since the check above
		if s.loaded.Load() && s.gen.Load() == gen {
			return nil, nil
		}
		return nil, s.rebuild(buildCtx, gen)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// ClearCache drops the index and every cached shard. The next query or
// Warm rebuilds from scratch. A build still running when the cache is
// cleared is discarded.
func (s *Service) ClearCache() {
	s.mu.Lock()
	s.gen.Add(1)
	s.loader.Clear()
	s.loaded.Store(false)
	s.idx.Store(index.Empty())
	s.lastBuild, s.lastReport = index.BuildStats{}, nil
	s.mu.Unlock()

	s.logger.Info("location cache cleared")
}

// GetPerformanceStats reports index sizes, load state and shard cache counters.
func (s *Service) GetPerformanceStats() Stats {
	x := s.idx.Load()
	sizes := x.Sizes()

	s.mu.Lock()
	lastBuild, lastReport := s.lastBuild, s.lastReport
	s.mu.Unlock()

	return Stats{
		TotalIndexed: sizes.Locations,
		Indexes:      sizes,
		IsLoaded:     s.loaded.Load(),
		Builds:       s.builds.Load(),
		Catalog:      s.loader.Stats(),
		LastBuild:    lastBuild,
		LastReport:   lastReport,
	}
}

func (s *Service) index(ctx context.Context) *index.Index {
	if err := s.Warm(ctx); err != nil {
		s.logger.Warn("serving from partial index", zap.Error(err))
	}
	return s.idx.Load()
}

func (s *Service) rebuild(ctx context.Context, gen uint64) error {
	config := s.build
	if s.metrics {
		config.Metrics = metrics.NewCollector()
	}

	start := time.Now()
	x, stats, err := index.Build(ctx, s.loader, config)
	s.builds.Add(1)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	var report *metrics.BuildReport
	if config.Metrics != nil {
		report = config.Metrics.Finalize(int64(x.Len()), stats.Shards)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen.Load() != gen {
		s.logger.Debug("discarding index built before cache clear", zap.Duration("duration", time.Since(start)))
		return nil
	}
	s.idx.Store(x)
	s.loaded.Store(true)
	s.lastBuild = stats
	s.lastReport = report
	return nil
}
