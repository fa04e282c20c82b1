package analytics

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/folio/internal/models"
)

// CacheKey identifies one cached report. Any ledger write bumps
// LedgerVersion and any fresher quote moves PriceStamp, so a stale
// report can never be looked up again.
type CacheKey struct {
	PortfolioID   string
	LedgerVersion int64
	PriceStamp    time.Time
	Range         string
	Benchmark     string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|v%d|%d|%s|%s", k.PortfolioID, k.LedgerVersion, k.PriceStamp.UnixNano(), k.Range, k.Benchmark)
}

// ReportCache is a bounded LRU of analytics reports. Concurrent misses on
// the same key share one computation. Cached reports must not be mutated.
type ReportCache struct {
	mu          sync.Mutex
	lru         *lru.Cache
	byPortfolio map[string]map[string]struct{}
	group       singleflight.Group
}

// NewReportCache creates a cache holding at most maxEntries reports (0 means unbounded).
func NewReportCache(maxEntries int) *ReportCache {
	c := &ReportCache{
		lru:         lru.New(maxEntries),
		byPortfolio: make(map[string]map[string]struct{}),
	}
	c.lru.OnEvicted = c.onEvicted
	return c
}

// onEvicted runs with c.mu held (every lru call happens under the lock).
func (c *ReportCache) onEvicted(key lru.Key, value interface{}) {
	entry, ok := value.(cacheEntry)
	if !ok {
		return
	}
	if keys := c.byPortfolio[entry.portfolioID]; keys != nil {
		delete(keys, key.(string))
		if len(keys) == 0 {
			delete(c.byPortfolio, entry.portfolioID)
		}
	}
}

type cacheEntry struct {
	portfolioID string
	report      *models.AnalyticsReport
}

// Get returns a cached report.
func (c *ReportCache) Get(key CacheKey) (*models.AnalyticsReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key.String())
	if !ok {
		return nil, false
	}
	return v.(cacheEntry).report, true
}

func (c *ReportCache) add(key CacheKey, report *models.AnalyticsReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	c.lru.Add(k, cacheEntry{portfolioID: key.PortfolioID, report: report})
	keys := c.byPortfolio[key.PortfolioID]
	if keys == nil {
		keys = make(map[string]struct{})
		c.byPortfolio[key.PortfolioID] = keys
	}
	keys[k] = struct{}{}
}

// GetOrCompute serves key from cache, or runs compute once for all
// concurrent callers asking for the same key. Errors are not cached.
func (c *ReportCache) GetOrCompute(key CacheKey, compute func() (*models.AnalyticsReport, error)) (*models.AnalyticsReport, bool, error) {
	if r, ok := c.Get(key); ok {
		return r, true, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		r, err := compute()
		if err != nil {
			return nil, err
		}
		c.add(key, r)
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*models.AnalyticsReport), false, nil
}

// InvalidatePortfolio drops every report cached for portfolioID.
func (c *ReportCache) InvalidatePortfolio(portfolioID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.byPortfolio[portfolioID]
	n := len(keys)
	for k := range keys {
		c.lru.Remove(k)
	}
	delete(c.byPortfolio, portfolioID)
	return n
}

// Len reports the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
