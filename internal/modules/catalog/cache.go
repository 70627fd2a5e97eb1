package catalog

import (
	"strings"
	"sync"

	"github.com/aristath/folio/internal/domain"
)

// Cache is a process-lifetime ticker -> Stock lookup cache. It is a pure
// performance optimization: a read may be stale relative to a concurrent
// writer until that writer's invalidation lands.
type Cache struct {
	mu     sync.RWMutex
	stocks map[string]domain.Stock
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{stocks: make(map[string]domain.Stock)}
}

func cacheKey(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Get returns the cached stock for a ticker
func (c *Cache) Get(ticker string) (domain.Stock, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stock, ok := c.stocks[cacheKey(ticker)]
	return stock, ok
}

// Put stores a stock under its upper-cased ticker
func (c *Cache) Put(stock domain.Stock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stocks[cacheKey(stock.Ticker)] = stock
}

// Invalidate drops one entry
func (c *Cache) Invalidate(ticker string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stocks, cacheKey(ticker))
}

// Clear drops all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stocks = make(map[string]domain.Stock)
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stocks)
}
