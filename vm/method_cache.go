package vm

import (
	"sync"
	"sync/atomic"
)

// defaultMethodCacheLimit is the number of (class, name) keys after which
// the cache starts over.
const defaultMethodCacheLimit = 1 << 14

// MethodCache is the runtime-wide lookup cache megamorphic call sites fall
// back to. It memoises plain resolutions (no visibility applied) keyed by
// receiver class and name, validated against the registry version like
// inline cache tuples.
//
// Stale entries are dropped when a lookup finds them, and the whole cache
// is cleared once it holds more than its limit, so keys for classes that
// are no longer sent to do not accumulate.
type MethodCache struct {
	entries sync.Map // methodCacheKey -> *methodCacheValue
	size    atomic.Int64
	limit   int64 // 0 means defaultMethodCacheLimit
}

type methodCacheKey struct {
	class *Module
	name  string
}

type methodCacheValue struct {
	entry   *MethodEntry
	version uint64
}

// Lookup returns the cached entry for (class, name) if it was stored at
// version. An entry stored at an older version is removed.
func (c *MethodCache) Lookup(class *Module, name string, version uint64) *MethodEntry {
	key := methodCacheKey{class, name}
	v, ok := c.entries.Load(key)
	if !ok {
		return nil
	}
	cv := v.(*methodCacheValue)
	if cv.version == version {
		return cv.entry
	}
	if cv.version < version && c.entries.CompareAndDelete(key, v) {
		c.size.Add(-1)
	}
	return nil
}

// Store records a resolution.
func (c *MethodCache) Store(class *Module, name string, e *MethodEntry, version uint64) {
	_, loaded := c.entries.Swap(methodCacheKey{class, name}, &methodCacheValue{entry: e, version: version})
	if loaded {
		return
	}
	limit := c.limit
	if limit == 0 {
		limit = defaultMethodCacheLimit
	}
	if c.size.Add(1) > limit {
		log.Debugf("method cache over %d keys, clearing", limit)
		c.Clear()
	}
}

// Len returns the approximate number of cached keys.
func (c *MethodCache) Len() int {
	return int(c.size.Load())
}

// Clear drops every cached resolution.
func (c *MethodCache) Clear() {
	c.entries.Clear()
	c.size.Store(0)
}
