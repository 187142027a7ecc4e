// Package cache stores upstream payloads and rendered trees between runs.
//
// The CLI uses [FileCache] under the user cache directory, the HTTP server
// can share a [RedisCache] between replicas, and [NullCache] disables caching
// (for --refresh and tests). Keys come from a [Keyer] so that every layer
// agrees on naming.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of zero means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Default time-to-live values for the cached layers.
const (
	// PayloadTTL bounds how stale an upstream tree payload may be.
	PayloadTTL = 10 * time.Minute
	// ArtifactTTL applies to rendered outputs. Artifacts are keyed by tree
	// hash and never go stale; the TTL only bounds disk usage.
	ArtifactTTL = 7 * 24 * time.Hour
)
