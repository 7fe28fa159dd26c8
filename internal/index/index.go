// Package index holds the term, phonetic and keyword indexes over the
// location catalog.
//
// An Index is immutable once returned by Builder.Snapshot or Build and may
// be shared by any number of readers. Slices returned by its lookup methods
// must not be modified.
package index

import (
	"slices"
	"sort"

	"locsearch/internal/normalizer"
	"locsearch/internal/schema"
)

// Index is a published, read-only set of indexed locations.
type Index struct {
	byKey    map[schema.Key]*schema.IndexedLocation
	all      []*schema.IndexedLocation
	terms    map[string][]*schema.IndexedLocation
	phonetic map[string][]*schema.IndexedLocation
	keywords map[string][]*schema.IndexedLocation
	termKeys []string
}

// Sizes reports the number of keys in each index.
type Sizes struct {
	Locations int `json:"locations"`
	Terms     int `json:"terms"`
	Phonetic  int `json:"phonetic"`
	Keywords  int `json:"keywords"`
}

var empty = &Index{
	byKey:    map[schema.Key]*schema.IndexedLocation{},
	terms:    map[string][]*schema.IndexedLocation{},
	phonetic: map[string][]*schema.IndexedLocation{},
	keywords: map[string][]*schema.IndexedLocation{},
}

// Empty returns the index with no entries.
func Empty() *Index {
	return empty
}

// Len returns the number of indexed locations.
func (x *Index) Len() int {
	return len(x.all)
}

// All returns every location in insertion order.
func (x *Index) All() []*schema.IndexedLocation {
	return slices.Clone(x.all)
}

// Get returns the location with the given key, or nil.
func (x *Index) Get(key schema.Key) *schema.IndexedLocation {
	return x.byKey[key]
}

// Terms returns every search term in lexical order.
func (x *Index) Terms() []string {
	return x.termKeys
}

// LookupTerm returns the locations indexed under a normalized search term.
func (x *Index) LookupTerm(term string) []*schema.IndexedLocation {
	return x.terms[term]
}

// LookupPhonetic returns the locations sharing a phonetic key.
func (x *Index) LookupPhonetic(key string) []*schema.IndexedLocation {
	if key == "" {
		return nil
	}
	return x.phonetic[key]
}

// LookupKeyword returns the locations with a word or word prefix equal to kw.
func (x *Index) LookupKeyword(kw string) []*schema.IndexedLocation {
	return x.keywords[kw]
}

// Sizes returns the size of each index.
func (x *Index) Sizes() Sizes {
	return Sizes{
		Locations: len(x.all),
		Terms:     len(x.terms),
		Phonetic:  len(x.phonetic),
		Keywords:  len(x.keywords),
	}
}

// Lineage carries the ancestors of a node being indexed. Fields that do
// not apply to the node's kind are ignored.
type Lineage struct {
	Region    schema.LocationNode
	SubRegion schema.LocationNode
}

// Builder accumulates locations. It is not safe for concurrent use.
type Builder struct {
	aliases *normalizer.AliasTable
	x       *Index
}

// NewBuilder creates an empty builder. A nil alias table disables alias expansion.
func NewBuilder(aliases *normalizer.AliasTable) *Builder {
	return &Builder{
		aliases: aliases,
		x: &Index{
			byKey:    make(map[schema.Key]*schema.IndexedLocation),
			terms:    make(map[string][]*schema.IndexedLocation),
			phonetic: make(map[string][]*schema.IndexedLocation),
			keywords: make(map[string][]*schema.IndexedLocation),
		},
	}
}

// Add indexes node. It reports false and changes nothing if a location
// with the same id and kind was already added.
func (b *Builder) Add(node schema.LocationNode, lineage Lineage) bool {
	key := node.Key()
	if _, dup := b.x.byKey[key]; dup {
		return false
	}

	loc := &schema.IndexedLocation{
		LocationNode: node,
		SearchTerms:  normalizer.SearchTerms(node.Name, b.aliases),
		PhoneticKey:  normalizer.PhoneticKey(node.Name),
		Keywords:     normalizer.Keywords(node.Name),
	}

	switch node.Kind {
	case schema.Region:
		loc.RegionID, loc.Region = node.ID, node.Name
	case schema.SubRegion:
		loc.RegionID, loc.Region = lineage.Region.ID, lineage.Region.Name
		loc.SubRegionID, loc.SubRegion = node.ID, node.Name
	case schema.Locality:
		loc.RegionID, loc.Region = lineage.Region.ID, lineage.Region.Name
		loc.SubRegionID, loc.SubRegion = lineage.SubRegion.ID, lineage.SubRegion.Name
	}

	b.x.byKey[key] = loc
	b.x.all = append(b.x.all, loc)
	for _, term := range loc.SearchTerms {
		b.x.terms[term] = append(b.x.terms[term], loc)
	}
	if loc.PhoneticKey != "" {
		b.x.phonetic[loc.PhoneticKey] = append(b.x.phonetic[loc.PhoneticKey], loc)
	}
	for _, kw := range loc.Keywords {
		b.x.keywords[kw] = append(b.x.keywords[kw], loc)
	}
	return true
}

// Len returns the number of locations added so far.
func (b *Builder) Len() int {
	return len(b.x.all)
}

// Snapshot returns an immutable copy of the current state. The builder
// may keep adding afterwards without affecting the snapshot.
func (b *Builder) Snapshot() *Index {
	x := &Index{
		byKey:    make(map[schema.Key]*schema.IndexedLocation, len(b.x.byKey)),
		all:      slices.Clone(b.x.all),
		terms:    cloneBuckets(b.x.terms),
		phonetic: cloneBuckets(b.x.phonetic),
		keywords: cloneBuckets(b.x.keywords),
	}
	for k, v := range b.x.byKey {
		x.byKey[k] = v
	}

	x.termKeys = make([]string, 0, len(x.terms))
	for term := range x.terms {
		x.termKeys = append(x.termKeys, term)
	}
	sort.Strings(x.termKeys)
	return x
}

func cloneBuckets(m map[string][]*schema.IndexedLocation) map[string][]*schema.IndexedLocation {
	out := make(map[string][]*schema.IndexedLocation, len(m))
	for k, v := range m {
		out[k] = slices.Clip(slices.Clone(v))
	}
	return out
}
