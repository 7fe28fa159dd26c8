// Package search scores a query against an index and ranks the results.
//
// Matching runs in stages of decreasing priority: exact, prefix, contains,
// phonetic, fuzzy and keyword. A location matched by one stage is not
// considered again by a later one, so each result carries the score and
// match type of the strongest stage that found it.
package search

import (
	"sort"
	"strings"

	"locsearch/internal/index"
	"locsearch/internal/normalizer"
	"locsearch/internal/schema"
	"locsearch/internal/similarity"
)

// Stage scores.
const (
	ExactScore    = 100
	PrefixScore   = 85
	ContainsScore = 70
	PhoneticScore = 50
	FuzzyScale    = 45
	KeywordScore  = 35

	// Each character of length difference (prefix) or offset (contains)
	// costs this many points.
	positionPenalty = 2
)

// Config controls query limits.
type Config struct {
	MaxResults     int // results returned per query
	MinQueryLength int // normalized characters required to search at all

	FuzzyMinLength   int // fuzzy stage query length bounds
	FuzzyMaxLength   int
	FuzzyResultLimit int // fuzzy runs only while fewer results than this were found
	FuzzyLengthDelta int // max length difference between query and term
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxResults:       12,
		MinQueryLength:   1,
		FuzzyMinLength:   2,
		FuzzyMaxLength:   6,
		FuzzyResultLimit: 5,
		FuzzyLengthDelta: 2,
	}
}

// Engine runs queries. It holds no per-query state and is safe for
// concurrent use.
type Engine struct {
	config Config
}

// NewEngine creates an engine. Zero fields of config take their defaults.
func NewEngine(config Config) *Engine {
	def := DefaultConfig()
	if config.MaxResults <= 0 {
		config.MaxResults = def.MaxResults
	}
	if config.MinQueryLength <= 0 {
		config.MinQueryLength = def.MinQueryLength
	}
	if config.FuzzyMinLength <= 0 {
		config.FuzzyMinLength = def.FuzzyMinLength
	}
	if config.FuzzyMaxLength <= 0 {
		config.FuzzyMaxLength = def.FuzzyMaxLength
	}
	if config.FuzzyResultLimit <= 0 {
		config.FuzzyResultLimit = def.FuzzyResultLimit
	}
	if config.FuzzyLengthDelta <= 0 {
		config.FuzzyLengthDelta = def.FuzzyLengthDelta
	}
	return &Engine{config: config}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Search returns the ranked matches for query, at most MaxResults. It
// returns an empty slice, never nil, when nothing matches.
func (e *Engine) Search(x *index.Index, query string) []schema.MatchResult {
	return e.SearchWhere(x, query, nil)
}

// SearchWhere is Search restricted to locations accepted by keep.
func (e *Engine) SearchWhere(x *index.Index, query string, keep func(*schema.IndexedLocation) bool) []schema.MatchResult {
	results := e.match(x, query, keep)
	Rank(results)
	if len(results) > e.config.MaxResults {
		results = results[:e.config.MaxResults]
	}
	return results
}

// Match runs every stage and returns the unranked, uncapped results.
func (e *Engine) Match(x *index.Index, query string) []schema.MatchResult {
	return e.match(x, query, nil)
}

func (e *Engine) match(x *index.Index, query string, keep func(*schema.IndexedLocation) bool) []schema.MatchResult {
	q := normalizer.Normalize(query)
	if len(q) == 0 || len(q) < e.config.MinQueryLength || x == nil {
		return []schema.MatchResult{}
	}

	m := newMatcher(keep)

	for _, loc := range x.LookupTerm(q) {
		m.offer(loc, ExactScore, schema.MatchExact)
	}
	m.commit()

	terms := x.Terms()
	start := sort.SearchStrings(terms, q)
	for _, term := range terms[start:] {
		if !strings.HasPrefix(term, q) {
			break
		}
		if term == q {
			continue
		}
		score := float64(PrefixScore - positionPenalty*(len(term)-len(q)))
		for _, loc := range x.LookupTerm(term) {
			m.offer(loc, score, schema.MatchPrefix)
		}
	}
	m.commit()

	for _, term := range terms {
		idx := strings.Index(term, q)
		if idx <= 0 {
			continue
		}
		score := float64(ContainsScore - positionPenalty*idx)
		for _, loc := range x.LookupTerm(term) {
			m.offer(loc, score, schema.MatchContains)
		}
	}
	m.commit()

	for _, loc := range x.LookupPhonetic(normalizer.PhoneticKey(q)) {
		m.offer(loc, PhoneticScore, schema.MatchPhonetic)
	}
	m.commit()

	if e.fuzzyEligible(q, m.found()) {
		for _, term := range terms {
			if abs(len(term)-len(q)) > e.config.FuzzyLengthDelta {
				continue
			}
			sim := similarity.Combined(q, term)
			if sim <= similarity.FuzzyThreshold {
				continue
			}
			for _, loc := range x.LookupTerm(term) {
				m.offer(loc, sim*FuzzyScale, schema.MatchFuzzy)
			}
		}
		m.commit()
	}

	for _, kw := range normalizer.Keywords(q) {
		for _, loc := range x.LookupKeyword(kw) {
			m.offer(loc, KeywordScore, schema.MatchKeyword)
		}
	}
	m.commit()

	return m.results(query)
}

func (e *Engine) fuzzyEligible(q string, found int) bool {
	return len(q) >= e.config.FuzzyMinLength &&
		len(q) <= e.config.FuzzyMaxLength &&
		found < e.config.FuzzyResultLimit
}

type candidate struct {
	loc   *schema.IndexedLocation
	score float64
	match schema.MatchType
}

// matcher collects candidates stage by stage. Keys committed by an earlier
// stage are owned by it; within a stage the best score wins.
type matcher struct {
	keep  func(*schema.IndexedLocation) bool
	owned map[schema.Key]candidate
	stage map[schema.Key]candidate
}

func newMatcher(keep func(*schema.IndexedLocation) bool) *matcher {
	return &matcher{
		keep:  keep,
		owned: make(map[schema.Key]candidate),
		stage: make(map[schema.Key]candidate),
	}
}

func (m *matcher) offer(loc *schema.IndexedLocation, score float64, match schema.MatchType) {
	if m.keep != nil && !m.keep(loc) {
		return
	}
	key := loc.Key()
	if _, ok := m.owned[key]; ok {
		return
	}
	if cur, ok := m.stage[key]; ok && cur.score >= score {
		return
	}
	m.stage[key] = candidate{loc: loc, score: score, match: match}
}

func (m *matcher) commit() {
	for k, c := range m.stage {
		m.owned[k] = c
	}
	clear(m.stage)
}

func (m *matcher) found() int {
	return len(m.owned)
}

func (m *matcher) results(query string) []schema.MatchResult {
	out := make([]schema.MatchResult, 0, len(m.owned))
	for _, c := range m.owned {
		out = append(out, NewResult(c.loc, c.score, c.match, query))
	}
	return out
}

// NewResult builds a result with its full path and highlight filled in.
func NewResult(loc *schema.IndexedLocation, score float64, match schema.MatchType, query string) schema.MatchResult {
	return schema.MatchResult{
		Location:  loc,
		Score:     score,
		MatchType: match,
		FullPath:  loc.FullPath(),
		Highlight: Highlight(loc.Name, query),
	}
}

// Rank sorts results by score, then kind priority, then display name and
// finally id, so equal inputs always rank identically.
func Rank(results []schema.MatchResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pa, pb := a.Location.Kind.Priority(), b.Location.Kind.Priority(); pa != pb {
			return pa > pb
		}
		if na, nb := strings.ToLower(a.Location.Name), strings.ToLower(b.Location.Name); na != nb {
			return na < nb
		}
		return a.Location.ID < b.Location.ID
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
