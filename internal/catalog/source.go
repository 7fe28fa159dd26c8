package catalog

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"time"
)

//go:embed data
var dataFS embed.FS

// ShardKind selects which level of the hierarchy a shard document lists.
type ShardKind int

const (
	// RootShard lists every region. Its key is empty.
	RootShard ShardKind = iota
	// RegionShard lists the sub-regions of one region, keyed by region id.
	RegionShard
	// SubRegionShard lists the localities of one sub-region, keyed by shard file name.
	SubRegionShard
)

func (k ShardKind) String() string {
	switch k {
	case RootShard:
		return "root"
	case RegionShard:
		return "region"
	case SubRegionShard:
		return "subregion"
	}
	return "unknown"
}

// Entry is one item of a shard document. In JSON it is either a bare
// display name or an object with an explicit id.
type Entry struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts "Name" as well as {"id": "...", "name": "..."}.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		e.ID = ""
		return json.Unmarshal(data, &e.Name)
	}

	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Document is a decoded shard: the children of one node.
type Document struct {
	Items []Entry `json:"items"`
}

// DecodeDocument decodes a JSON shard document.
func DecodeDocument(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedShard, err)
	}
	return doc, nil
}

// ShardSource loads raw shard documents. Implementations must be safe for
// concurrent use.
type ShardSource interface {
	LoadShard(ctx context.Context, kind ShardKind, key string) (Document, error)
}

// FSSource reads shards from a file system laid out as
//
//	regions.json
//	subregions/<region-id>.json
//	localities/<shard-name>.json
type FSSource struct {
	fsys fs.FS
}

// NewFSSource creates a source over fsys.
func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

// EmbeddedSource returns the source over the data set compiled into the binary.
func EmbeddedSource() *FSSource {
	sub, err := fs.Sub(dataFS, "data")
	if err != nil {
		panic(err) // "data" is a valid static path
	}
	return NewFSSource(sub)
}

// OpenDir returns the source and filename table for a catalog directory.
// An empty dir selects the embedded catalog. filenames.toml is optional in
// a directory.
func OpenDir(dir string) (*FSSource, *FilenameTable, error) {
	if dir == "" {
		filenames, err := DefaultFilenames()
		if err != nil {
			return nil, nil, err
		}
		return EmbeddedSource(), filenames, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrDataUnavailable, dir)
	}

	fsys := os.DirFS(dir)
	filenames, err := LoadFilenameTableFS(fsys)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}
	return NewFSSource(fsys), filenames, nil
}

// ShardPath returns the file path of a shard within an FSSource layout.
func ShardPath(kind ShardKind, key string) (string, error) {
	if kind != RootShard && (key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == "..") {
		return "", fmt.Errorf("%w: invalid %s shard key %q", ErrShardNotFound, kind, key)
	}

	switch kind {
	case RootShard:
		return "regions.json", nil
	case RegionShard:
		return path.Join("subregions", key+".json"), nil
	case SubRegionShard:
		return path.Join("localities", key+".json"), nil
	}
	return "", fmt.Errorf("%w: unknown shard kind %d", ErrShardNotFound, kind)
}

// LoadShard implements ShardSource.
func (s *FSSource) LoadShard(ctx context.Context, kind ShardKind, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	p, err := ShardPath(kind, key)
	if err != nil {
		return Document{}, err
	}

	f, err := s.fsys.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrShardNotFound, p)
		}
		return Document{}, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()

	doc, err := DecodeDocument(f)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", p, err)
	}
	return doc, nil
}

// MapSource is an in-memory ShardSource for tests and programmatically
// assembled catalogs. It counts loads per shard and can inject failures
// and latency.
type MapSource struct {
	// Delay is slept (honouring ctx) before every load.
	Delay time.Duration

	mu    sync.Mutex
	docs  map[ShardKind]map[string]Document
	fail  map[ShardKind]map[string]error
	calls map[ShardKind]map[string]int
}

// NewMapSource creates an empty in-memory source.
func NewMapSource() *MapSource {
	return &MapSource{
		docs:  make(map[ShardKind]map[string]Document),
		fail:  make(map[ShardKind]map[string]error),
		calls: make(map[ShardKind]map[string]int),
	}
}

// Set stores the document for a shard from plain display names.
func (s *MapSource) Set(kind ShardKind, key string, names ...string) *MapSource {
	entries := make([]Entry, len(names))
	for i, name := range names {
		entries[i] = Entry{Name: name}
	}
	return s.SetEntries(kind, key, entries...)
}

// SetEntries stores the document for a shard.
func (s *MapSource) SetEntries(kind ShardKind, key string, entries ...Entry) *MapSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[kind] == nil {
		s.docs[kind] = make(map[string]Document)
	}
	s.docs[kind][key] = Document{Items: entries}
	return s
}

// Fail makes every load of the shard return err.
func (s *MapSource) Fail(kind ShardKind, key string, err error) *MapSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[kind] == nil {
		s.fail[kind] = make(map[string]error)
	}
	s.fail[kind][key] = err
	return s
}

// Calls returns how many times the shard was loaded.
func (s *MapSource) Calls(kind ShardKind, key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind][key]
}

// LoadShard implements ShardSource.
func (s *MapSource) LoadShard(ctx context.Context, kind ShardKind, key string) (Document, error) {
	s.mu.Lock()
	if s.calls[kind] == nil {
		s.calls[kind] = make(map[string]int)
	}
	s.calls[kind][key]++
	delay := s.Delay
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Document{}, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[kind][key]; err != nil {
		return Document{}, err
	}
	doc, ok := s.docs[kind][key]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrShardNotFound, kind, key)
	}
	items := make([]Entry, len(doc.Items))
	copy(items, doc.Items)
	return Document{Items: items}, nil
}
