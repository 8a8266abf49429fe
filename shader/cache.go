package shader

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// moduleCacheShards is the number of cache shards. A power of 2, so shard
// selection is a bitwise AND.
const moduleCacheShards = 16

// ModuleCache memoizes compiled modules by source text. Compiling the same
// WGSL repeatedly is common when callers mint one module handle per
// pipeline; the cache makes repeat compiles a map lookup.
//
// ModuleCache is safe for concurrent use.
type ModuleCache struct {
	shards [moduleCacheShards]moduleCacheShard

	hits   atomic.Uint64
	misses atomic.Uint64
}

type moduleCacheShard struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewModuleCache creates an empty module cache.
func NewModuleCache() *ModuleCache {
	c := &ModuleCache{}
	for i := range c.shards {
		c.shards[i].modules = make(map[string]*Module)
	}
	return c
}

func (c *ModuleCache) shard(source string) *moduleCacheShard {
	h := fnv.New64a()
	_, _ = h.Write([]byte(source)) // fnv.Write never returns an error
	return &c.shards[h.Sum64()&(moduleCacheShards-1)]
}

// Compile returns the compiled module for source, reusing an earlier
// compilation when one exists. Modules are immutable, so sharing one
// between callers is safe. Failed compilations are not cached.
func (c *ModuleCache) Compile(source string) (*Module, error) {
	s := c.shard(source)

	s.mu.RLock()
	m, ok := s.modules[source]
	s.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return m, nil
	}

	c.misses.Add(1)
	m, err := NewModule(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent compile of the same source may have won; keep the first.
	if prior, ok := s.modules[source]; ok {
		return prior, nil
	}
	s.modules[source] = m
	return m, nil
}

// Stats returns the hit and miss counters.
func (c *ModuleCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.modules)
		s.mu.RUnlock()
	}
	return n
}
