// Package catalog lazily loads the location hierarchy from shard documents.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"locsearch/internal/normalizer"
	"locsearch/internal/schema"
)

type shardKey struct {
	kind ShardKind
	id   string
}

// Loader serves region, sub-region and locality lists, loading each shard
// at most once until Clear. It is safe for concurrent use.
type Loader struct {
	source    ShardSource
	filenames *FilenameTable
	logger    *zap.Logger

	mu     sync.RWMutex
	gen    uint64
	shards map[shardKey][]schema.LocationNode

	group     singleflight.Group
	loads     atomic.Int64
	failures  atomic.Int64
	coalesced atomic.Int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFilenames sets the table that maps sub-region ids to shard names.
func WithFilenames(t *FilenameTable) Option {
	return func(l *Loader) {
		l.filenames = t
	}
}

// NewLoader creates a loader over source.
func NewLoader(source ShardSource, opts ...Option) *Loader {
	l := &Loader{
		source: source,
		logger: zap.NewNop(),
		shards: make(map[shardKey][]schema.LocationNode),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stats is a snapshot of loader counters.
type Stats struct {
	CachedShards   int    `json:"cached_shards"`
	Loads          int64  `json:"loads"`
	FailedLoads    int64  `json:"failed_loads"`
	CoalescedWaits int64  `json:"coalesced_waits"`
	Generation     uint64 `json:"generation"`
}

// ListRegions returns every region. A failure here means nothing can be
// served and is reported as ErrDataUnavailable.
func (l *Loader) ListRegions(ctx context.Context) ([]schema.LocationNode, error) {
	nodes, err := l.children(ctx, RootShard, "")
	if err != nil {
		l.failures.Add(1)
		l.logger.Error("failed to load regions", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	return nodes, nil
}

// ListSubRegions returns the sub-regions of a region, or an empty list if
// its shard cannot be loaded.
func (l *Loader) ListSubRegions(ctx context.Context, regionID string) []schema.LocationNode {
	return l.childrenOrEmpty(ctx, RegionShard, regionID)
}

// ListLocalities returns the localities of a sub-region, or an empty list
// if its shard cannot be loaded.
func (l *Loader) ListLocalities(ctx context.Context, subRegionID string) []schema.LocationNode {
	return l.childrenOrEmpty(ctx, SubRegionShard, subRegionID)
}

// Clear drops every cached shard. Loads already in flight finish for their
// waiting callers but are not cached.
func (l *Loader) Clear() {
	l.mu.Lock()
	l.gen++
	l.shards = make(map[shardKey][]schema.LocationNode)
	l.mu.Unlock()
}

// Stats returns the current counters.
func (l *Loader) Stats() Stats {
	l.mu.RLock()
	cached, gen := len(l.shards), l.gen
	l.mu.RUnlock()

	return Stats{
		CachedShards:   cached,
		Loads:          l.loads.Load(),
		FailedLoads:    l.failures.Load(),
		CoalescedWaits: l.coalesced.Load(),
		Generation:     gen,
	}
}

func (l *Loader) childrenOrEmpty(ctx context.Context, kind ShardKind, id string) []schema.LocationNode {
	nodes, err := l.children(ctx, kind, id)
	if err != nil {
		l.failures.Add(1)
		l.logger.Warn("shard load failed",
			zap.Stringer("kind", kind),
			zap.String("id", id),
			zap.Error(err))
		return []schema.LocationNode{}
	}
	return nodes
}

func (l *Loader) children(ctx context.Context, kind ShardKind, id string) ([]schema.LocationNode, error) {
	key := shardKey{kind: kind, id: id}

	l.mu.RLock()
	gen := l.gen
	nodes, ok := l.shards[key]
	l.mu.RUnlock()
	if ok {
		return slices.Clone(nodes), nil
	}

	// The load runs detached from ctx so that one caller giving up does not
	// fail the others waiting on it.
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(fmt.Sprintf("%d:%s:%s", gen, kind, id), func() (any, error) {
		return l.load(loadCtx, gen, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			l.coalesced.Add(1)
			l.logger.Debug("coalesced shard load", zap.Stringer("kind", kind), zap.String("id", id))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]schema.LocationNode)), nil
	}
}

func (l *Loader) load(ctx context.Context, gen uint64, key shardKey) ([]schema.LocationNode, error) {
	l.loads.Add(1)

	file := key.id
	if key.kind == SubRegionShard {
		file = l.filenames.ShardFileName(key.id)
	}

	doc, err := l.source.LoadShard(ctx, key.kind, file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", ErrShardLoadFailed, key.kind, file, err)
	}

	nodes := l.toNodes(key, doc)

	l.mu.Lock()
	if l.gen == gen {
		l.shards[key] = nodes
	}
	l.mu.Unlock()

	return nodes, nil
}

func (l *Loader) toNodes(key shardKey, doc Document) []schema.LocationNode {
	kind := schema.Region
	switch key.kind {
	case RegionShard:
		kind = schema.SubRegion
	case SubRegionShard:
		kind = schema.Locality
	}

	nodes := make([]schema.LocationNode, 0, len(doc.Items))
	seen := make(map[string]bool, len(doc.Items))
	for _, item := range doc.Items {
		name := cleanName(item.Name)
		if name != item.Name {
			l.logger.Warn("trimmed location name",
				zap.Stringer("shard", key.kind),
				zap.String("parent", key.id),
				zap.String("raw", item.Name),
				zap.String("name", name))
		}
		if name == "" {
			l.logger.Warn("skipping entry without name", zap.Stringer("shard", key.kind), zap.String("parent", key.id))
			continue
		}

		id := strings.TrimSpace(item.ID)
		if id == "" {
			id = normalizer.Slug(name)
		}
		if id == "" || seen[id] {
			l.logger.Warn("skipping entry with empty or duplicate id",
				zap.Stringer("shard", key.kind),
				zap.String("parent", key.id),
				zap.String("id", id),
				zap.String("name", name))
			continue
		}
		seen[id] = true

		nodes = append(nodes, schema.LocationNode{
			ID:       id,
			Name:     name,
			Kind:     kind,
			ParentID: key.id,
		})
	}
	return nodes
}

// cleanName trims a display name and collapses internal whitespace runs.
func cleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
