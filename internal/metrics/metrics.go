// Package metrics collects request-path and prewarm counters for the cache.
// Counters are cheap mutex-guarded int64s; readers take a consistent
// point-in-time Snapshot.
package metrics

import (
	"sync"
	"time"
)

// Collector accumulates cache counters. Safe for concurrent use.
type Collector struct {
	mu            sync.Mutex
	hits          int64
	misses        int64
	bypassed      int64
	staleServed   int64
	prewarmed     int64
	prewarmFailed int64
	startTime     time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordHit records a request served from the cache.
func (c *Collector) RecordHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits++
}

// RecordMiss records a cacheable request that fell through to the network.
func (c *Collector) RecordMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
}

// RecordBypass records a request that the policy excluded from caching.
func (c *Collector) RecordBypass() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bypassed++
}

// RecordStale records a stale cached copy served after a network failure.
func (c *Collector) RecordStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staleServed++
}

// RecordPrewarm records the outcome of a single prewarm fetch.
func (c *Collector) RecordPrewarm(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.prewarmed++
	} else {
		c.prewarmFailed++
	}
}

// Snapshot is a point-in-time view of the collected counters.
type Snapshot struct {
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	Bypassed      int64         `json:"bypassed"`
	StaleServed   int64         `json:"stale_served"`
	Prewarmed     int64         `json:"prewarmed"`
	PrewarmFailed int64         `json:"prewarm_failed"`
	HitRate       float64       `json:"hit_rate"`
	Uptime        time.Duration `json:"uptime"`
}

// GetSnapshot returns a consistent snapshot of all counters.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Snapshot{
		Hits:          c.hits,
		Misses:        c.misses,
		Bypassed:      c.bypassed,
		StaleServed:   c.staleServed,
		Prewarmed:     c.prewarmed,
		PrewarmFailed: c.prewarmFailed,
		HitRate:       hitRate,
		Uptime:        time.Since(c.startTime),
	}
}

// Reset clears all counters and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
	c.bypassed = 0
	c.staleServed = 0
	c.prewarmed = 0
	c.prewarmFailed = 0
	c.startTime = time.Now()
}
