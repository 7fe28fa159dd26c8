// Package suggest builds as-you-type suggestions on top of the search engine.
package suggest

import (
	"locsearch/internal/index"
	"locsearch/internal/normalizer"
	"locsearch/internal/schema"
	"locsearch/internal/search"
)

// Scores given to suggestion sources.
const (
	PopularScore      = 60
	ContextualScore   = 80
	AutocompleteScore = 40
)

// DefaultPopular lists the locations offered before the user has typed
// enough to search, most popular first.
var DefaultPopular = []string{
	"Kathmandu",
	"Pokhara",
	"Lalitpur",
	"Bharatpur",
	"Biratnagar",
	"Birgunj",
	"Butwal",
	"Dharan",
	"Bhaktapur",
	"Janakpur",
}

// DefaultSuffixes are common locality name endings tried for autocomplete.
var DefaultSuffixes = []string{"pur", "nagar", "ganj", "bazar", "gadhi", "kot", "tar"}

// Context carries what the caller already knows about the user's choice.
type Context struct {
	RegionID string // previously selected region, if any
}

// Config configures an Engine.
type Config struct {
	MaxSuggestions int
	MinQueryLength int // shorter queries get the popular list
	Popular        []string
	Suffixes       []string
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		MaxSuggestions: 10,
		MinQueryLength: 2,
		Popular:        DefaultPopular,
		Suffixes:       DefaultSuffixes,
	}
}

// Engine layers popular, contextual and autocomplete suggestions over search results.
type Engine struct {
	search *search.Engine
	config Config
}

// NewEngine creates a suggestion engine. Zero fields of config take their
// defaults, so a zero Config behaves like DefaultConfig. An empty non-nil
// list disables the corresponding source.
func NewEngine(se *search.Engine, config Config) *Engine {
	def := DefaultConfig()
	if config.MaxSuggestions <= 0 {
		config.MaxSuggestions = def.MaxSuggestions
	}
	if config.MinQueryLength <= 0 {
		config.MinQueryLength = def.MinQueryLength
	}
	if config.Popular == nil {
		config.Popular = def.Popular
	}
	if config.Suffixes == nil {
		config.Suffixes = def.Suffixes
	}
	return &Engine{search: se, config: config}
}

// Suggest returns at most MaxSuggestions results for query. sc may be nil.
func (e *Engine) Suggest(x *index.Index, query string, sc *Context) []schema.MatchResult {
	if x == nil {
		return []schema.MatchResult{}
	}

	q := normalizer.Normalize(query)
	if len(q) < e.config.MinQueryLength {
		return e.popular(x)
	}

	m := newMerger()
	m.add(e.search.Search(x, query))

	if sc != nil && sc.RegionID != "" {
		inRegion := func(l *schema.IndexedLocation) bool {
			return l.Kind == schema.SubRegion && l.RegionID == sc.RegionID
		}
		for _, r := range e.search.SearchWhere(x, query, inRegion) {
			m.put(search.NewResult(r.Location, ContextualScore, schema.MatchContextual, query))
		}
	}

	for _, suffix := range e.config.Suffixes {
		for _, loc := range x.LookupKeyword(q + suffix) {
			m.put(search.NewResult(loc, AutocompleteScore, schema.MatchAutocomplete, query))
		}
	}

	results := m.results()
	search.Rank(results)
	if len(results) > e.config.MaxSuggestions {
		results = results[:e.config.MaxSuggestions]
	}
	return results
}

// popular resolves the popular names against the index in list order.
// Names not in the index are skipped; for a name shared by several kinds
// the most specific location wins.
func (e *Engine) popular(x *index.Index) []schema.MatchResult {
	out := make([]schema.MatchResult, 0, len(e.config.Popular))
	seen := make(map[schema.Key]bool)
	for _, name := range e.config.Popular {
		if len(out) == e.config.MaxSuggestions {
			break
		}
		var best *schema.IndexedLocation
		for _, loc := range x.LookupTerm(normalizer.Normalize(name)) {
			if seen[loc.Key()] {
				continue
			}
			if best == nil || loc.Kind.Priority() > best.Kind.Priority() {
				best = loc
			}
		}
		if best == nil {
			continue
		}
		seen[best.Key()] = true
		out = append(out, search.NewResult(best, PopularScore, schema.MatchPopular, ""))
	}
	return out
}

// merger deduplicates results by key, keeping the higher score. On equal
// scores the first result seen is kept.
type merger struct {
	order []schema.Key
	best  map[schema.Key]schema.MatchResult
}

func newMerger() *merger {
	return &merger{best: make(map[schema.Key]schema.MatchResult)}
}

func (m *merger) add(results []schema.MatchResult) {
	for _, r := range results {
		m.put(r)
	}
}

func (m *merger) put(r schema.MatchResult) {
	key := r.Key()
	cur, ok := m.best[key]
	if !ok {
		m.order = append(m.order, key)
	}
	if !ok || r.Score > cur.Score {
		m.best[key] = r
	}
}

func (m *merger) results() []schema.MatchResult {
	out := make([]schema.MatchResult, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.best[k])
	}
	return out
}
