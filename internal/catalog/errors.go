package catalog

import "errors"

// Sentinel errors for catalog loading failures.

var (
	// ErrDataUnavailable is returned when the root region shard cannot be
	// loaded. Nothing can be served without it.
	ErrDataUnavailable = errors.New("location data unavailable")

	// ErrShardLoadFailed wraps any failure to load a region or sub-region
	// shard. The loader logs it and serves an empty list instead.
	ErrShardLoadFailed = errors.New("shard load failed")

	// ErrShardNotFound is returned by a ShardSource that has no document for a key.
	ErrShardNotFound = errors.New("shard not found")

	// ErrMalformedShard is returned when a shard document cannot be decoded.
	ErrMalformedShard = errors.New("malformed shard")

	// ErrInvalidFilenameTable is returned when the shard filename table is inconsistent.
	ErrInvalidFilenameTable = errors.New("invalid shard filename table")
)
