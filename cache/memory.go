// Package cache provides grant-snapshot caches for request-scoped
// authorization.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xraph/charter"
	"github.com/xraph/charter/principal"
)

// Compile-time interface check.
var _ charter.Cache = (*Memory)(nil)

// Memory is a size-bounded LRU cache with TTL-based expiration.
type Memory struct {
	entries *lru.LRU[principal.Ref, *charter.Grants]
	ttl     time.Duration
	maxSize int
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache. Attach it to a request with
// charter.WithCache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		ttl:     time.Minute,
		maxSize: 1024,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.entries = lru.NewLRU[principal.Ref, *charter.Grants](m.maxSize, nil, m.ttl)
	return m
}

// Get returns cached grants for a principal.
func (m *Memory) Get(_ context.Context, ref principal.Ref) (*charter.Grants, bool) {
	return m.entries.Get(ref)
}

// Set stores grants for a principal, evicting the least recently used
// entry when full.
func (m *Memory) Set(_ context.Context, ref principal.Ref, g *charter.Grants) {
	m.entries.Add(ref, g)
}

// InvalidatePrincipal removes the entry for one principal.
func (m *Memory) InvalidatePrincipal(_ context.Context, ref principal.Ref) {
	m.entries.Remove(ref)
}

// Purge removes every entry.
func (m *Memory) Purge(_ context.Context) {
	m.entries.Purge()
}

// Len returns the number of live entries.
func (m *Memory) Len() int { return m.entries.Len() }
