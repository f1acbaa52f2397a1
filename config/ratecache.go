package config

import (
	"sync"
	"time"
)

// RateValidity is how long a cached rate stays usable before a fresh lookup
// against the (out-of-scope) exchange-rate oracle is required.
const RateValidity = 10 * time.Minute

type ratePair struct {
	base, quote string
}

type rateEntry struct {
	Rate      float64   `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}

// ExchangeRateCache is a ((base, quote) -> (rate, timestamp)) cache with a
// fixed validity window, per spec §3. The rate lookup itself is out of
// scope (an external oracle call); this only memoizes its result.
type ExchangeRateCache struct {
	mu      sync.RWMutex
	entries map[ratePair]rateEntry
}

// NewExchangeRateCache returns an empty cache.
func NewExchangeRateCache() *ExchangeRateCache {
	return &ExchangeRateCache{entries: make(map[ratePair]rateEntry)}
}

// Get returns the cached rate for base/quote and whether it is still valid.
// A present-but-expired entry returns ok=false rather than the stale value.
func (c *ExchangeRateCache) Get(base, quote string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[ratePair{base, quote}]
	if !ok || time.Since(entry.Timestamp) > RateValidity {
		return 0, false
	}
	return entry.Rate, true
}

// Put records a freshly fetched rate, timestamped now.
func (c *ExchangeRateCache) Put(base, quote string, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ratePair{base, quote}] = rateEntry{Rate: rate, Timestamp: time.Now()}
}

// snapshotEntry is the serializable form of one cache row (ratePair isn't a
// valid JSON object key as a struct, so it flattens to base/quote fields).
type snapshotEntry struct {
	Base      string    `json:"base"`
	Quote     string    `json:"quote"`
	Rate      float64   `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}

// Dump captures every cached row for persistence.
func (c *ExchangeRateCache) Dump() []snapshotEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]snapshotEntry, 0, len(c.entries))
	for k, v := range c.entries {
		out = append(out, snapshotEntry{Base: k.base, Quote: k.quote, Rate: v.Rate, Timestamp: v.Timestamp})
	}
	return out
}

// Restore replaces the cache's contents with rows from a prior Dump. Rows
// already past RateValidity are kept as-is; Get will simply report them
// invalid, the same as if they had expired in place.
func (c *ExchangeRateCache) Restore(rows []snapshotEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[ratePair]rateEntry, len(rows))
	for _, row := range rows {
		c.entries[ratePair{row.Base, row.Quote}] = rateEntry{Rate: row.Rate, Timestamp: row.Timestamp}
	}
}
