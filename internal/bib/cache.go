package bib

import "sync"

// ResultCache provides thread-safe storage of detection results keyed by
// (tenant, photo).
//
// The cache is owned by whoever constructs it and injected into the
// detector; it is scoped to one processing session and is not a substitute
// for durable storage - the surrounding job service stays authoritative
// across restarts. The tenant component of the key prevents results
// leaking between tenants that share a detector process.
//
// ResultCache is safe for concurrent use by multiple goroutines.
type ResultCache struct {
	mu      sync.RWMutex
	results map[cacheKey]Result
}

type cacheKey struct {
	tenant string
	photo  string
}

// NewResultCache creates an empty result cache ready for immediate use.
func NewResultCache() *ResultCache {
	return &ResultCache{
		results: make(map[cacheKey]Result),
	}
}

// Get returns the cached result for a photo, if present.
func (c *ResultCache) Get(tenant, photoID string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[cacheKey{tenant: tenant, photo: photoID}]
	return result, ok
}

// Put stores a result for a photo, overwriting any previous entry.
// Detection writes exactly once per call; reprocessing and manual
// overrides replace the entry wholesale.
func (c *ResultCache) Put(tenant, photoID string, result Result) {
	c.mu.Lock()
	c.results[cacheKey{tenant: tenant, photo: photoID}] = result
	c.mu.Unlock()
}

// Evict removes a single photo's result. Missing entries are a no-op.
func (c *ResultCache) Evict(tenant, photoID string) {
	c.mu.Lock()
	delete(c.results, cacheKey{tenant: tenant, photo: photoID})
	c.mu.Unlock()
}

// Clear discards all entries, ending the processing session the cache
// represents.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	c.results = make(map[cacheKey]Result)
	c.mu.Unlock()
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
