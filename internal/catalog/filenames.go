package catalog

import (
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FilenameTable maps sub-region ids to the physical name of their
// locality shard when the two differ. Ids without an entry use the id.
type FilenameTable struct {
	names map[string]string
}

type filenameFile struct {
	Localities map[string]string `toml:"localities"`
}

// NewFilenameTable validates entries: ids and names must be non-empty and
// no two ids may share one file.
func NewFilenameTable(entries map[string]string) (*FilenameTable, error) {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := &FilenameTable{names: make(map[string]string, len(entries))}
	owners := make(map[string]string, len(entries))
	for _, rawID := range ids {
		id := strings.TrimSpace(rawID)
		name := strings.TrimSpace(entries[rawID])
		if id == "" || name == "" {
			return nil, fmt.Errorf("%w: empty entry %q = %q", ErrInvalidFilenameTable, rawID, entries[rawID])
		}
		if _, err := ShardPath(SubRegionShard, name); err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid file name", ErrInvalidFilenameTable, name)
		}
		if owner, taken := owners[name]; taken {
			return nil, fmt.Errorf("%w: %q and %q both map to %q", ErrInvalidFilenameTable, owner, id, name)
		}
		owners[name] = id
		t.names[id] = name
	}
	return t, nil
}

// LoadFilenameTable decodes a TOML table with a [localities] section.
func LoadFilenameTable(r io.Reader) (*FilenameTable, error) {
	var file filenameFile
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode filename table: %w", err)
	}
	return NewFilenameTable(file.Localities)
}

// LoadFilenameTableFS reads filenames.toml from the root of fsys.
func LoadFilenameTableFS(fsys fs.FS) (*FilenameTable, error) {
	f, err := fsys.Open("filenames.toml")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFilenameTable(f)
}

// DefaultFilenames returns the table embedded next to the shard data.
func DefaultFilenames() (*FilenameTable, error) {
	f, err := dataFS.Open("data/filenames.toml")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFilenameTable(f)
}

// ShardFileName returns the locality shard name for a sub-region id.
func (t *FilenameTable) ShardFileName(subRegionID string) string {
	if t != nil {
		if name, ok := t.names[subRegionID]; ok {
			return name
		}
	}
	return subRegionID
}

// Len returns the number of explicit mappings.
func (t *FilenameTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}
