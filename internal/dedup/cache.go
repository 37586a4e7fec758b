package dedup

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/filecrate/dedup-service/internal/models"
)

// QueryCache is a read-through LRU over filtered-query results, built on
// hashicorp/golang-lru/v2/expirable. Entries expire on a TTL and the whole
// cache is purged by the engine's mutation hook, so a stale record set can
// never satisfy a search after a create, increment, release or tag update.
type QueryCache struct {
	cache *expirable.LRU[string, []models.FileRecord]
}

// NewQueryCache creates a cache holding at most maxSize filter result sets.
func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		cache: expirable.NewLRU[string, []models.FileRecord](maxSize, nil, ttl),
	}
}

func (c *QueryCache) Get(key string) ([]models.FileRecord, bool) {
	return c.cache.Get(key)
}

func (c *QueryCache) Set(key string, records []models.FileRecord) {
	c.cache.Add(key, records)
}

// InvalidateAll drops every cached result. Wired to Engine.OnMutation.
func (c *QueryCache) InvalidateAll() {
	c.cache.Purge()
}
