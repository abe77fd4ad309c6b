package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
	"sync"
	"time"

	"docrag/internal/domain"
)

// QueryCache is a small LRU of search results with a TTL. Invalidate bumps a
// generation counter so entries computed against an older corpus are never
// served.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	results   []domain.ScoredCandidate
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(req domain.SearchRequest) string {
	data := []byte(req.Query)
	data = binary.BigEndian.AppendUint32(data, uint32(req.TopK))
	if req.UseReranker {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(req domain.SearchRequest) ([]domain.ScoredCandidate, bool) {
	key := cacheKey(req)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses++
		return nil, false
	}

	c.moveToEnd(key)
	c.hits++
	return slices.Clone(entry.results), true
}

func (c *QueryCache) Put(req domain.SearchRequest, results []domain.ScoredCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(req, results)
}

// generation returns the current invalidation counter.
func (c *QueryCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexGen
}

// putAt stores results only if no invalidation happened since gen was read.
func (c *QueryCache) putAt(req domain.SearchRequest, results []domain.ScoredCandidate, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.indexGen {
		return
	}
	c.put(req, results)
}

func (c *QueryCache) put(req domain.SearchRequest, results []domain.ScoredCandidate) {
	key := cacheKey(req)
	entry := &cacheEntry{
		results:   slices.Clone(results),
		timestamp: time.Now(),
		indexGen:  c.indexGen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counters since creation.
func (c *QueryCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.ScoredCandidate, error)
}

// CachedSearcher serves repeated queries from a QueryCache. Failed searches
// are not cached, and neither are reranked requests that fell back to the
// similarity order.
type CachedSearcher struct {
	searcher Searcher
	cache    *QueryCache
}

func NewCachedSearcher(searcher Searcher, cache *QueryCache) *CachedSearcher {
	return &CachedSearcher{
		searcher: searcher,
		cache:    cache,
	}
}

func (s *CachedSearcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.ScoredCandidate, error) {
	if results, hit := s.cache.Get(req); hit {
		return results, nil
	}

	gen := s.cache.generation()
	results, err := s.searcher.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.UseReranker && !anyReranked(results) {
		return results, nil
	}
	s.cache.putAt(req, results, gen)
	return results, nil
}

func anyReranked(results []domain.ScoredCandidate) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if r.WasReranked {
			return true
		}
	}
	return false
}

func (s *CachedSearcher) Cache() *QueryCache {
	return s.cache
}
