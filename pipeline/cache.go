package pipeline

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// CacheCreateInfo describes a pipeline cache. InitialData optionally primes
// the cache from a previously serialized blob; InitialDataSize must agree
// with it (a nonzero size with nil data is a caller contract error).
type CacheCreateInfo struct {
	Tag             uint32
	InitialData     []byte
	InitialDataSize int
}

// cacheMagic identifies a serialized cache blob.
var cacheMagic = [4]byte{'s', 'w', 'P', 'C'}

// cacheVersion is the serialized blob layout version.
const cacheVersion uint32 = 1

// cacheEntry is one cached compiled artifact: the refcounted implementation
// plus the layout metadata a hit needs to rebuild a Pipeline.
type cacheEntry struct {
	impl   *implementation
	layout VertexLayout
}

// Cache memoizes compiled pipeline implementations keyed by a hash of the
// normalized pipeline description. Hits share the implementation by
// reference, so two handles created from the same description never alias
// as handles but may share compiled code.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]*cacheEntry

	// primed holds keys loaded from a serialized blob. The compiled
	// artifacts themselves are native code and do not serialize; primed
	// keys only witness what a previous run compiled.
	primed map[uint64]struct{}

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a pipeline cache, optionally primed from serialized
// data. A wrong structure tag or an inconsistent (data, size) pair is
// rejected before any state is built.
func NewCache(info *CacheCreateInfo) (*Cache, error) {
	if info == nil || info.Tag != TagCacheCreateInfo {
		return nil, fmt.Errorf("pipeline: cache structure tag: %w", ErrBadCreateInfo)
	}
	if info.InitialDataSize != 0 && info.InitialData == nil {
		return nil, fmt.Errorf("pipeline: cache initial data size %d with nil data: %w",
			info.InitialDataSize, ErrBadCreateInfo)
	}
	if info.InitialData != nil && info.InitialDataSize != len(info.InitialData) {
		return nil, fmt.Errorf("pipeline: cache initial data size %d does not match %d bytes: %w",
			info.InitialDataSize, len(info.InitialData), ErrBadCreateInfo)
	}
	c := &Cache{
		entries: make(map[uint64]*cacheEntry),
		primed:  make(map[uint64]struct{}),
	}
	if len(info.InitialData) > 0 {
		if err := c.load(info.InitialData); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// get returns the cached entry for key, counting the outcome.
func (c *Cache) get(key uint64) (*cacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return entry, true
	}
	c.misses.Add(1)
	return nil, false
}

// put stores an entry, retaining the implementation on behalf of the cache.
// A concurrent duplicate insert keeps the first entry.
func (c *Cache) put(key uint64, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	entry.impl.retain()
	c.entries[key] = entry
}

// CacheStats is a snapshot of cache effectiveness counters.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
	Primed  int
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: len(c.entries),
		Primed:  len(c.primed),
	}
}

// Destroy releases every cached implementation. The cache must not be used
// afterwards.
func (c *Cache) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		entry.impl.release()
		delete(c.entries, key)
	}
}

// Serialize writes the cache to a blob: magic, version, entry count, then
// one 8-byte key per entry. Compiled artifacts are live native code and are
// not persisted; a later run primed with this blob recompiles on first use.
func (c *Cache) Serialize() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	buf := make([]byte, 0, 12+8*len(c.entries))
	buf = append(buf, cacheMagic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, cacheVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.entries)))
	for key := range c.entries {
		buf = binary.LittleEndian.AppendUint64(buf, key)
	}
	return buf
}

// load parses a serialized blob into the primed key set.
func (c *Cache) load(data []byte) error {
	if len(data) < 12 || [4]byte(data[:4]) != cacheMagic {
		return fmt.Errorf("pipeline: cache data header: %w", ErrBadCreateInfo)
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != cacheVersion {
		return fmt.Errorf("pipeline: cache data version %d: %w", v, ErrBadCreateInfo)
	}
	count := binary.LittleEndian.Uint32(data[8:])
	if uint64(len(data)) < 12+8*uint64(count) {
		return fmt.Errorf("pipeline: cache data truncated: %w", ErrBadCreateInfo)
	}
	for i := uint32(0); i < count; i++ {
		key := binary.LittleEndian.Uint64(data[12+8*i:])
		c.primed[key] = struct{}{}
	}
	return nil
}

// hashCreateInfo derives the cache key: an FNV-1a hash of the normalized
// pipeline description, covering the shader words, entry points, vertex
// bindings, fixed viewport/scissor state and the target format.
func hashCreateInfo(info *CreateInfo) uint64 {
	h := fnv.New64a()
	var scratch [8]byte

	w32 := func(v uint32) {
		binary.LittleEndian.PutUint32(scratch[:4], v)
		h.Write(scratch[:4])
	}
	wstr := func(s string) {
		w32(uint32(len(s)))
		h.Write([]byte(s))
	}

	w32(info.Tag)
	w32(uint32(info.ColorFormat))

	w32(uint32(len(info.Stages)))
	for i := range info.Stages {
		s := &info.Stages[i]
		w32(uint32(s.Stage))
		wstr(s.EntryPoint)
		words := s.Module.Words()
		w32(uint32(len(words)))
		for _, word := range words {
			w32(word)
		}
	}

	w32(uint32(len(info.VertexBindings)))
	for _, b := range info.VertexBindings {
		w32(b.Binding)
		w32(b.Stride)
	}

	for _, f := range []float32{
		info.Viewport.X, info.Viewport.Y,
		info.Viewport.Width, info.Viewport.Height,
		info.Viewport.MinDepth, info.Viewport.MaxDepth,
	} {
		w32(floatBits(f))
	}
	w32(uint32(info.Scissor.X))
	w32(uint32(info.Scissor.Y))
	w32(info.Scissor.Width)
	w32(info.Scissor.Height)

	return h.Sum64()
}
