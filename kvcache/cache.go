// Package kvcache is the bounded working-set KV-cache (C3): a
// fixed-byte-budget store of per-memory tensors injected into an agent's
// active context, evicted by usage count then recency once the budget is
// exceeded. It follows agent/memory's WorkingMemory, which does the
// same linear-scan eviction under a single write lock — scaled here to
// byte accounting instead of a slot count.
package kvcache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentmem/agentmem/errs"
)

// Entry is one cached tensor keyed by memory id.
type Entry struct {
	MemoryID   string
	Tensor     []float32
	SizeBytes  int64
	UsageCount int64
	CachedAt   time.Time
	ExpiresAt  time.Time
}

// Stats reports the cache's current accounting. SizeBytes always equals
// the sum of every live entry's SizeBytes — the single invariant this
// package must hold under its one write lock (property 8).
type Stats struct {
	EntryCount int
	SizeBytes  int64
	Hits       int64
	Misses     int64
	Evictions  int64
}

// Options bounds the cache, matching §4.3's documented defaults.
type Options struct {
	MaxSizeBytes int64
	TTL          time.Duration
}

// DefaultOptions is 512MB with a one-hour entry TTL.
func DefaultOptions() Options {
	return Options{
		MaxSizeBytes: 512 * 1024 * 1024,
		TTL:          time.Hour,
	}
}

// Cache is the bounded KV-cache. All mutation goes through one
// sync.Mutex; there is no separate read lock because every Get hit also
// bumps UsageCount, making every access a write.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string // insertion order, for deterministic eviction tie-break
	opts    Options
	stats   Stats
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a cache bounded by opts.
func New(opts Options, logger *zap.Logger) *Cache {
	if opts.MaxSizeBytes <= 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]*Entry),
		opts:    opts,
		logger:  logger.With(zap.String("component", "kvcache")),
		now:     time.Now,
	}
}

// InjectMemory stores tensor under memoryID, evicting entries by
// (usage_count ASC, cached_at ASC) until the new entry fits within
// MaxSizeBytes. An entry larger than the entire budget is rejected.
func (c *Cache) InjectMemory(memoryID string, tensor []float32) error {
	size := int64(len(tensor)) * 4 // float32

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.opts.MaxSizeBytes {
		return errs.New(errs.CodeInvalidInput, "tensor exceeds cache capacity").
			WithOperation("InjectMemory").
			WithDetail("memory_id", memoryID).
			WithDetail("size_bytes", size)
	}

	now := c.now()
	if existing, ok := c.entries[memoryID]; ok {
		c.stats.SizeBytes -= existing.SizeBytes
		c.removeFromOrder(memoryID)
	}

	for c.stats.SizeBytes+size > c.opts.MaxSizeBytes && len(c.entries) > 0 {
		c.evictOne()
	}

	entry := &Entry{
		MemoryID:   memoryID,
		Tensor:     tensor,
		SizeBytes:  size,
		UsageCount: 0,
		CachedAt:   now,
		ExpiresAt:  now.Add(c.opts.TTL),
	}
	c.entries[memoryID] = entry
	c.order = append(c.order, memoryID)
	c.stats.SizeBytes += size
	c.stats.EntryCount = len(c.entries)

	return nil
}

// Get returns the cached tensor for memoryID, bumping its usage count on
// every hit. Expired entries are treated as misses and evicted lazily.
func (c *Cache) Get(memoryID string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[memoryID]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if c.now().After(entry.ExpiresAt) {
		c.removeEntry(memoryID)
		c.stats.Misses++
		return nil, false
	}

	entry.UsageCount++
	c.stats.Hits++
	return entry.Tensor, true
}

// Clear empties the cache, resetting SizeBytes to zero alongside it.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.order = nil
	c.stats.SizeBytes = 0
	c.stats.EntryCount = 0
}

// EvictExpired removes every entry past its TTL, as a periodic sweep
// would between InjectMemory calls.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			c.removeEntry(id)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache's current accounting.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// evictOne removes the entry with the lowest (UsageCount, CachedAt),
// the §4.3 eviction order, breaking remaining ties by insertion order.
func (c *Cache) evictOne() {
	if len(c.order) == 0 {
		return
	}
	victimIdx := 0
	victim := c.entries[c.order[0]]
	for i, id := range c.order {
		cand := c.entries[id]
		if cand.UsageCount < victim.UsageCount ||
			(cand.UsageCount == victim.UsageCount && cand.CachedAt.Before(victim.CachedAt)) {
			victim = cand
			victimIdx = i
		}
	}
	id := c.order[victimIdx]
	c.stats.SizeBytes -= c.entries[id].SizeBytes
	delete(c.entries, id)
	c.order = append(c.order[:victimIdx], c.order[victimIdx+1:]...)
	c.stats.Evictions++
	c.stats.EntryCount = len(c.entries)
}

// removeEntry removes id unconditionally, for expiry-driven removal
// (not counted as an eviction — the entry simply aged out).
func (c *Cache) removeEntry(id string) {
	entry, ok := c.entries[id]
	if !ok {
		return
	}
	c.stats.SizeBytes -= entry.SizeBytes
	delete(c.entries, id)
	c.removeFromOrder(id)
	c.stats.EntryCount = len(c.entries)
}

func (c *Cache) removeFromOrder(id string) {
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
