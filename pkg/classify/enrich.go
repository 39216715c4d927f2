package classify

import (
	"sync"
)

// Enrichment lookups feed external scalar scores (CVSS-like vulnerability
// scores, technique impact scores) into the classifier. Lookups are the
// only place the engine may touch I/O, so they sit behind a memoizing
// cache: at most one fetch per technique per process lifetime, misses
// included. The cache is an explicit capability handed to the classifier
// at construction, never ambient state.

// ScoreFunc fetches an external score for a technique.
// ok=false means the score is unavailable; unavailability is memoized too,
// so a flaky upstream is asked about each technique only once.
type ScoreFunc func(techniqueID string) (float64, bool)

type scoreResult struct {
	value float64
	ok    bool
}

// LookupCache memoizes a ScoreFunc for the process lifetime. It is safe
// for concurrent use. There is no eviction: the technique id space is
// small and bounded by the signature catalog.
type LookupCache struct {
	mu      sync.Mutex
	fn      ScoreFunc
	results map[string]scoreResult

	hits   uint64
	misses uint64
}

// NewLookupCache wraps fn with memoization. A nil fn yields a cache that
// always reports "unavailable".
func NewLookupCache(fn ScoreFunc) *LookupCache {
	return &LookupCache{
		fn:      fn,
		results: make(map[string]scoreResult),
	}
}

// Score returns the memoized score for a technique, fetching on first use.
func (c *LookupCache) Score(techniqueID string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.results[techniqueID]; ok {
		c.hits++
		return r.value, r.ok
	}

	c.misses++
	var r scoreResult
	if c.fn != nil {
		r.value, r.ok = c.fn(techniqueID)
	}
	c.results[techniqueID] = r
	return r.value, r.ok
}

// Stats returns cache hit/miss counters.
func (c *LookupCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of memoized techniques.
func (c *LookupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}
