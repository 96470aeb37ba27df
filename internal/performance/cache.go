package performance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/2beens/fitcoach/internal/telemetry/metrics"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const megabyte = 1024 * 1024

// Cache keeps the latest evaluation per user for a short time. Measurement and goal
// writes invalidate the user's entry.
type Cache struct {
	cache   *freecache.Cache
	ttl     time.Duration
	metrics *metrics.Manager
}

func NewCache(sizeMB int, ttl time.Duration, metrics *metrics.Manager) *Cache {
	if sizeMB <= 0 {
		sizeMB = 10
	}
	return &Cache{
		cache:   freecache.NewCache(sizeMB * megabyte),
		ttl:     ttl,
		metrics: metrics,
	}
}

func cacheKey(userID int64) []byte {
	return []byte(fmt.Sprintf("performance::%d", userID))
}

func (c *Cache) Get(userID int64) ([]Record, bool) {
	recordsBytes, err := c.cache.Get(cacheKey(userID))
	if err != nil {
		c.metrics.CounterPerformanceCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	var records []Record
	if err := json.Unmarshal(recordsBytes, &records); err != nil {
		log.Errorf("performance cache, unmarshal records for user %d: %s", userID, err)
		c.Invalidate(userID)
		c.metrics.CounterPerformanceCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	c.metrics.CounterPerformanceCache.WithLabelValues("hit").Inc()
	return records, true
}

func (c *Cache) Set(userID int64, records []Record) {
	recordsBytes, err := json.Marshal(records)
	if err != nil {
		log.Errorf("performance cache, marshal records for user %d: %s", userID, err)
		return
	}
	if err := c.cache.Set(cacheKey(userID), recordsBytes, int(c.ttl.Seconds())); err != nil {
		log.Errorf("performance cache, set for user %d: %s", userID, err)
	}
}

func (c *Cache) Invalidate(userID int64) {
	c.cache.Del(cacheKey(userID))
}
