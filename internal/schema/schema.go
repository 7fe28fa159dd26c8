// Package schema defines location, index and match data structures for locsearch.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the hierarchy level of a location.
type Kind int

const (
	Region Kind = iota + 1
	SubRegion
	Locality
)

// String returns the lowercase kind name used in keys and JSON.
func (k Kind) String() string {
	switch k {
	case Region:
		return "region"
	case SubRegion:
		return "subregion"
	case Locality:
		return "locality"
	}
	return "unknown"
}

// Priority ranks kinds for tie-breaking: Locality > SubRegion > Region.
func (k Kind) Priority() int {
	switch k {
	case Locality:
		return 3
	case SubRegion:
		return 2
	case Region:
		return 1
	}
	return 0
}

// MarshalJSON encodes the kind as its name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "region":
		return Region, nil
	case "subregion", "sub-region", "sub_region":
		return SubRegion, nil
	case "locality":
		return Locality, nil
	}
	return 0, fmt.Errorf("unknown location kind: %q", s)
}

// Key identifies a location. Ids are only unique within a kind.
type Key struct {
	ID   string
	Kind Kind
}

// String renders the key as "kind:id".
func (k Key) String() string {
	return k.Kind.String() + ":" + k.ID
}

// LocationNode is one entry of the catalog.
type LocationNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	ParentID string `json:"parent_id,omitempty"`
}

// Key returns the node's identity key.
func (n LocationNode) Key() Key {
	return Key{ID: n.ID, Kind: n.Kind}
}

// IndexedLocation is a read-only projection of a node with precomputed search data.
type IndexedLocation struct {
	LocationNode
	SearchTerms []string `json:"search_terms"`
	PhoneticKey string   `json:"phonetic_key"`
	Keywords    []string `json:"-"`
	RegionID    string   `json:"region_id,omitempty"`
	Region      string   `json:"region,omitempty"`
	SubRegionID string   `json:"subregion_id,omitempty"`
	SubRegion   string   `json:"subregion,omitempty"`
}

// FullPath returns "Locality, SubRegion, Region", "SubRegion, Region" or "Region".
func (l *IndexedLocation) FullPath() string {
	switch l.Kind {
	case Locality:
		return joinPath(l.Name, l.SubRegion, l.Region)
	case SubRegion:
		return joinPath(l.Name, l.Region)
	}
	return l.Name
}

func joinPath(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// MatchType records which strategy produced a result.
type MatchType string

const (
	MatchExact        MatchType = "exact"
	MatchPrefix       MatchType = "prefix"
	MatchContains     MatchType = "contains"
	MatchPhonetic     MatchType = "phonetic"
	MatchFuzzy        MatchType = "fuzzy"
	MatchKeyword      MatchType = "keyword"
	MatchPopular      MatchType = "popular"
	MatchContextual   MatchType = "contextual"
	MatchAutocomplete MatchType = "autocomplete"
)

// Highlight splits a display name around the matched text.
type Highlight struct {
	Before string `json:"before"`
	Match  string `json:"match"`
	After  string `json:"after"`
}

// MatchResult is one ranked search hit.
type MatchResult struct {
	Location  *IndexedLocation `json:"location"`
	Score     float64          `json:"score"`
	MatchType MatchType        `json:"match_type"`
	FullPath  string           `json:"full_path"`
	Highlight *Highlight       `json:"highlight,omitempty"`
}

// Key returns the identity key of the matched location.
func (r MatchResult) Key() Key {
	return r.Location.Key()
}

// Option is the {id, displayName, value} tuple consumed by form pickers.
type Option struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Value       string `json:"value"`
}

// OptionsFromNodes converts catalog nodes into picker options.
func OptionsFromNodes(nodes []LocationNode) []Option {
	options := make([]Option, len(nodes))
	for i, n := range nodes {
		options[i] = Option{ID: n.ID, DisplayName: n.Name, Value: n.ID}
	}
	return options
}
