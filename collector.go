// Package assetcache provides transparent HTTP resource caching for desktop
// clients of remote web applications.
// This file exposes cache statistics as Prometheus metrics.
package assetcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exposes a Client's statistics as Prometheus metrics.
// Register it with a prometheus.Registerer:
//
//	prometheus.MustRegister(assetcache.NewPrometheusCollector(client))
type PrometheusCollector struct {
	client *Client

	cachedCount      *prometheus.Desc
	cacheBytes       *prometheus.Desc
	cacheMaxBytes    *prometheus.Desc
	hits             *prometheus.Desc
	misses           *prometheus.Desc
	bypassed         *prometheus.Desc
	evictions        *prometheus.Desc
	staleServed      *prometheus.Desc
	prewarmed        *prometheus.Desc
	prewarmFailed    *prometheus.Desc
	hitRate          *prometheus.Desc
	prewarmRunning   *prometheus.Desc
	discoveredAssets *prometheus.Desc
}

// NewPrometheusCollector creates a collector reading from the given client.
func NewPrometheusCollector(c *Client) *PrometheusCollector {
	return &PrometheusCollector{
		client: c,
		cachedCount: prometheus.NewDesc("assetcache_cached_resources",
			"Number of resources currently held in the cache.", nil, nil),
		cacheBytes: prometheus.NewDesc("assetcache_cache_bytes",
			"Total bytes currently held in the cache.", nil, nil),
		cacheMaxBytes: prometheus.NewDesc("assetcache_cache_max_bytes",
			"Configured cache budget in bytes.", nil, nil),
		hits: prometheus.NewDesc("assetcache_hits_total",
			"Requests served from the cache.", nil, nil),
		misses: prometheus.NewDesc("assetcache_misses_total",
			"Cacheable requests that fell through to the network.", nil, nil),
		bypassed: prometheus.NewDesc("assetcache_bypassed_total",
			"Requests excluded from caching by policy.", nil, nil),
		evictions: prometheus.NewDesc("assetcache_evictions_total",
			"Resources evicted to stay within the cache budget.", nil, nil),
		staleServed: prometheus.NewDesc("assetcache_stale_served_total",
			"Stale cached copies served after network failures.", nil, nil),
		prewarmed: prometheus.NewDesc("assetcache_prewarmed_total",
			"Resources fetched successfully by the prewarmer.", nil, nil),
		prewarmFailed: prometheus.NewDesc("assetcache_prewarm_failed_total",
			"Prewarm fetches that failed.", nil, nil),
		hitRate: prometheus.NewDesc("assetcache_hit_rate",
			"Hits divided by hits plus misses.", nil, nil),
		prewarmRunning: prometheus.NewDesc("assetcache_prewarm_running",
			"Whether a prewarm run is in progress.", nil, nil),
		discoveredAssets: prometheus.NewDesc("assetcache_discovered_assets",
			"Entries in the persisted discovered-asset list.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (pc *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.cachedCount
	ch <- pc.cacheBytes
	ch <- pc.cacheMaxBytes
	ch <- pc.hits
	ch <- pc.misses
	ch <- pc.bypassed
	ch <- pc.evictions
	ch <- pc.staleServed
	ch <- pc.prewarmed
	ch <- pc.prewarmFailed
	ch <- pc.hitRate
	ch <- pc.prewarmRunning
	ch <- pc.discoveredAssets
}

// Collect implements prometheus.Collector.
func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := pc.client.Stats()

	ch <- prometheus.MustNewConstMetric(pc.cachedCount, prometheus.GaugeValue, float64(s.CachedCount))
	ch <- prometheus.MustNewConstMetric(pc.cacheBytes, prometheus.GaugeValue, float64(s.TotalBytes))
	ch <- prometheus.MustNewConstMetric(pc.cacheMaxBytes, prometheus.GaugeValue, float64(s.MaxBytes))
	ch <- prometheus.MustNewConstMetric(pc.hits, prometheus.CounterValue, float64(s.HitCount))
	ch <- prometheus.MustNewConstMetric(pc.misses, prometheus.CounterValue, float64(s.MissCount))
	ch <- prometheus.MustNewConstMetric(pc.bypassed, prometheus.CounterValue, float64(s.BypassedCount))
	ch <- prometheus.MustNewConstMetric(pc.evictions, prometheus.CounterValue, float64(s.EvictionCount))
	ch <- prometheus.MustNewConstMetric(pc.staleServed, prometheus.CounterValue, float64(s.StaleServedCount))
	ch <- prometheus.MustNewConstMetric(pc.prewarmed, prometheus.CounterValue, float64(s.PrewarmedCount))
	ch <- prometheus.MustNewConstMetric(pc.prewarmFailed, prometheus.CounterValue, float64(s.PrewarmFailedCount))
	ch <- prometheus.MustNewConstMetric(pc.hitRate, prometheus.GaugeValue, s.HitRate)

	running := 0.0
	if s.IsPrewarming {
		running = 1.0
	}
	ch <- prometheus.MustNewConstMetric(pc.prewarmRunning, prometheus.GaugeValue, running)
	ch <- prometheus.MustNewConstMetric(pc.discoveredAssets, prometheus.GaugeValue, float64(s.DiscoveredAssetCount))
}
