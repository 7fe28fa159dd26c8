package normalizer

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

// ErrInvalidAlias is returned when an alias table is not bidirectionally consistent.
var ErrInvalidAlias = errors.New("invalid alias table")

//go:embed aliases.toml
var defaultAliasesTOML []byte

// AliasTable maps canonical names to their aliases and back.
// Keys and values are stored normalized. A nil table expands nothing.
type AliasTable struct {
	aliases   map[string][]string // canonical -> sorted aliases
	canonical map[string]string   // alias -> canonical
}

type aliasFile struct {
	Aliases map[string][]string `toml:"aliases"`
}

// NewAliasTable validates entries and builds the table.
// Each alias may belong to exactly one canonical name, may not equal its
// canonical name and may not itself be a canonical name.
func NewAliasTable(entries map[string][]string) (*AliasTable, error) {
	t := &AliasTable{
		aliases:   make(map[string][]string, len(entries)),
		canonical: make(map[string]string),
	}

	canonicals := make([]string, 0, len(entries))
	for raw := range entries {
		canonicals = append(canonicals, raw)
	}
	sort.Strings(canonicals)

	for _, raw := range canonicals {
		name := Normalize(raw)
		if name == "" {
			return nil, fmt.Errorf("%w: empty canonical name %q", ErrInvalidAlias, raw)
		}
		if _, dup := t.aliases[name]; dup {
			return nil, fmt.Errorf("%w: canonical %q listed twice", ErrInvalidAlias, name)
		}

		seen := make(map[string]bool)
		for _, rawAlias := range entries[raw] {
			alias := Normalize(rawAlias)
			switch {
			case alias == "":
				return nil, fmt.Errorf("%w: empty alias for %q", ErrInvalidAlias, name)
			case alias == name:
				return nil, fmt.Errorf("%w: %q is an alias of itself", ErrInvalidAlias, name)
			case seen[alias]:
				continue
			}
			if owner, taken := t.canonical[alias]; taken {
				return nil, fmt.Errorf("%w: alias %q belongs to both %q and %q", ErrInvalidAlias, alias, owner, name)
			}
			seen[alias] = true
			t.canonical[alias] = name
			t.aliases[name] = append(t.aliases[name], alias)
		}
		sort.Strings(t.aliases[name])
	}

	for alias, owner := range t.canonical {
		if _, isCanonical := t.aliases[alias]; isCanonical {
			return nil, fmt.Errorf("%w: %q is both a canonical name and an alias of %q", ErrInvalidAlias, alias, owner)
		}
	}

	return t, nil
}

// LoadAliasTable decodes a TOML alias table with an [aliases] section.
func LoadAliasTable(r io.Reader) (*AliasTable, error) {
	var file aliasFile
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode alias table: %w", err)
	}
	return NewAliasTable(file.Aliases)
}

var loadDefaultAliases = sync.OnceValues(func() (*AliasTable, error) {
	var file aliasFile
	if err := toml.Unmarshal(defaultAliasesTOML, &file); err != nil {
		return nil, fmt.Errorf("failed to decode embedded alias table: %w", err)
	}
	return NewAliasTable(file.Aliases)
})

// DefaultAliases returns the embedded alias table. It panics if the
// embedded table is invalid, which the package tests guard against.
func DefaultAliases() *AliasTable {
	t, err := loadDefaultAliases()
	if err != nil {
		panic(err)
	}
	return t
}

// Expand returns the names linked to term: its aliases if term is
// canonical, or its canonical name and sibling aliases if term is an alias.
func (t *AliasTable) Expand(term string) []string {
	if t == nil {
		return nil
	}
	if aliases, ok := t.aliases[term]; ok {
		return aliases
	}
	owner, ok := t.canonical[term]
	if !ok {
		return nil
	}
	linked := []string{owner}
	for _, alias := range t.aliases[owner] {
		if alias != term {
			linked = append(linked, alias)
		}
	}
	return linked
}

// Canonical returns the canonical name for an alias, or term itself.
func (t *AliasTable) Canonical(term string) string {
	if t == nil {
		return term
	}
	if owner, ok := t.canonical[term]; ok {
		return owner
	}
	return term
}

// Len returns the number of canonical entries.
func (t *AliasTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.aliases)
}
