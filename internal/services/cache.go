package services

import (
	"sync"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"go.uber.org/zap"
)

type CacheItem struct {
	Data      *models.Dashboard
	ExpiresAt time.Time
}

type rangeKey struct {
	version string
	start   int64
	end     int64
}

// DashboardCache memoizes dashboards per dataset version and date range.
type DashboardCache struct {
	mu              sync.RWMutex
	items           map[rangeKey]CacheItem
	logger          *zap.Logger
	defaultDuration time.Duration
	maxSize         int
	hits            int
	misses          int
}

func NewDashboardCache(defaultDuration time.Duration, maxSize int, logger *zap.Logger) *DashboardCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &DashboardCache{
		items:           make(map[rangeKey]CacheItem),
		logger:          logger,
		defaultDuration: defaultDuration,
		maxSize:         maxSize,
	}
}

func keyFor(version string, start, end time.Time) rangeKey {
	return rangeKey{version: version, start: start.UnixNano(), end: end.UnixNano()}
}

func (c *DashboardCache) Set(version string, start, end time.Time, dashboard *models.Dashboard) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := keyFor(version, start, end)
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	expiresAt := time.Now().Add(c.defaultDuration)
	c.items[key] = CacheItem{
		Data:      dashboard,
		ExpiresAt: expiresAt,
	}

	c.logger.Debug("Dashboard cached",
		zap.String("version", version),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Time("expires_at", expiresAt))
}

func (c *DashboardCache) Get(version string, start, end time.Time) (*models.Dashboard, bool) {
	key := keyFor(version, start, end)

	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if time.Now().After(item.ExpiresAt) {
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.hits++
	return item.Data, true
}

func (c *DashboardCache) evictOldest() {
	var oldestKey rangeKey
	var oldestTime time.Time
	found := false

	for key, item := range c.items {
		if !found || item.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.ExpiresAt
			found = true
		}
	}

	if found {
		delete(c.items, oldestKey)
		c.logger.Debug("Evicted oldest dashboard from cache",
			zap.String("version", oldestKey.version))
	}
}

// Cleanup drops expired entries and returns how many were removed.
func (c *DashboardCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiredCount := 0
	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.Debug("Cleaned expired cache items",
			zap.Int("count", expiredCount))
	}
	return expiredCount
}

// Purge drops every entry, e.g. after the dataset was replaced.
func (c *DashboardCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[rangeKey]CacheItem)
}

func (c *DashboardCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *DashboardCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"items":            len(c.items),
		"hits":             c.hits,
		"misses":           c.misses,
		"max_size":         c.maxSize,
		"default_duration": c.defaultDuration.String(),
	}
}
