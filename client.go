// Package assetcache provides transparent HTTP resource caching for desktop
// clients of remote web applications.
// This file contains the main client interface and implementation.
package assetcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/jmgilman/go/fs/billy"

	"github.com/gameshell/assetcache/internal/discovery"
	"github.com/gameshell/assetcache/internal/intercept"
	"github.com/gameshell/assetcache/internal/logging"
	"github.com/gameshell/assetcache/internal/metrics"
	"github.com/gameshell/assetcache/internal/persist"
	"github.com/gameshell/assetcache/internal/prewarm"
	"github.com/gameshell/assetcache/internal/store"
	"github.com/gameshell/assetcache/internal/version"
)

// PrewarmProgress reports batch-granular prewarm progress.
type PrewarmProgress = prewarm.Progress

// PrewarmResult summarizes a finished prewarm run.
type PrewarmResult = prewarm.Result

// Client is the resource cache for a remote web application. It owns the
// in-memory store, the intercepting transport, the prewarmer, and the
// persisted discovery state. The client is safe for concurrent use.
type Client struct {
	options   *ClientOptions
	logger    *logging.Logger
	kv        *persist.Store
	cache     *store.Store
	collector *metrics.Collector
	transport *intercept.Transport
	prewarmer *prewarm.Prewarmer
	recorder  *discovery.Recorder
	guard     *version.Guard

	// mu protects the lifecycle flags below
	mu          sync.Mutex
	initialized bool
	closed      bool
}

// New creates a new Client with default configuration.
func New() (*Client, error) {
	return NewWithOptions()
}

// NewWithOptions creates a new Client with custom configuration.
// It accepts functional options to customize the cache budget, prewarm
// behavior, persistence location, and transport.
//
// Example usage:
//
//	client, err := NewWithOptions(
//	    WithBuildID("1.4.2"),
//	    WithMaxSizeBytes(64<<20),
//	)
//	if err != nil {
//	    return err
//	}
func NewWithOptions(opts ...ClientOption) (*Client, error) {
	options := DefaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}

	if err := validateClientOptions(options); err != nil {
		return nil, err
	}

	if options.FS == nil {
		options.FS = billy.NewLocal()
	}

	logger := logging.FromSlog(options.Logger)

	kv, err := persist.New(options.FS, options.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state directory %s: %w", options.StatePath, err)
	}

	cache := store.New(options.MaxSizeBytes)
	collector := metrics.NewCollector()
	transport := intercept.New(options.Base, cache, collector, logger)

	c := &Client{
		options:   options,
		logger:    logger.WithComponent("client"),
		kv:        kv,
		cache:     cache,
		collector: collector,
		transport: transport,
		guard:     version.NewGuard(kv, logger),
		recorder:  discovery.NewRecorder(kv, cache.Keys, options.MaxDiscovered, logger),
	}
	c.prewarmer = prewarm.New(cache, transport.Base(), collector, logger, prewarm.Config{
		IdleWait:     options.IdleWait,
		FetchTimeout: options.FetchTimeout,
	})
	return c, nil
}

// validateClientOptions checks option values for correctness.
func validateClientOptions(opts *ClientOptions) error {
	if opts.MaxSizeBytes < 0 {
		return fmt.Errorf("%w: max size must not be negative, got %d", ErrInvalidOptions, opts.MaxSizeBytes)
	}
	if opts.PrewarmConcurrency < 0 {
		return fmt.Errorf("%w: prewarm concurrency must not be negative, got %d", ErrInvalidOptions, opts.PrewarmConcurrency)
	}
	if opts.MaxDiscovered < 0 {
		return fmt.Errorf("%w: max discovered must not be negative, got %d", ErrInvalidOptions, opts.MaxDiscovered)
	}
	return nil
}

// Init prepares the client for use: it runs the build version guard and,
// when enabled, starts a background prewarm of previously discovered assets.
// Init is idempotent; repeated calls after the first are no-ops.
//
// Auto-prewarm is skipped when the build identifier changed since the last
// run, because the persisted discovery list described the previous build's
// assets and was just invalidated.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.initialized {
		c.logger.Warn(ctx, "client already initialized, ignoring repeated Init")
		return nil
	}
	c.initialized = true

	changed := false
	if c.options.BuildID != "" {
		changed = c.guard.Check(ctx, c.options.BuildID)
	}

	if c.options.AutoPrewarm && !changed {
		if urls := c.recorder.Load(ctx); len(urls) > 0 {
			c.logger.Info(ctx, "starting background prewarm of discovered assets", "count", len(urls))
			go func() {
				_, err := c.prewarmer.Run(context.WithoutCancel(ctx), urls, c.options.PrewarmConcurrency, nil)
				if err != nil {
					c.logger.Warn(context.WithoutCancel(ctx), "background prewarm did not run", "error", err)
				}
			}()
		}
	}
	return nil
}

// HTTPClient returns an http.Client whose transport serves cacheable GET
// requests from the cache.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: c.transport}
}

// Transport returns the caching http.RoundTripper for callers that manage
// their own http.Client.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// Prewarm fetches the given URLs into the cache using the configured
// concurrency, invoking onProgress after each batch. Non-cacheable and
// already-cached URLs are skipped. Returns ErrPrewarmRunning if a run is
// already in progress.
func (c *Client) Prewarm(ctx context.Context, urls []string, onProgress func(PrewarmProgress)) (PrewarmResult, error) {
	return c.prewarmer.Run(ctx, urls, c.options.PrewarmConcurrency, onProgress)
}

// StopPrewarm prevents further prewarm batches from being scheduled. The
// in-flight batch runs to completion.
func (c *Client) StopPrewarm() {
	c.prewarmer.Stop()
}

// IsPrewarming reports whether a prewarm run is in progress.
func (c *Client) IsPrewarming() bool {
	return c.prewarmer.Running()
}

// DiscoverFromHTML extracts prewarmable resource URLs from an HTML document,
// resolving relative references against base. The result is not persisted;
// pass it to RecordDiscovered to make it survive restarts.
func (c *Client) DiscoverFromHTML(r io.Reader, base *url.URL) []string {
	return discovery.FromHTML(r, base)
}

// RecordDiscovered merges urls with the currently cached keys and persists
// the combined discovered-asset list for the next session's auto-prewarm.
// Returns the number of entries persisted.
func (c *Client) RecordDiscovered(ctx context.Context, urls []string) int {
	return c.recorder.Record(ctx, urls)
}

// Stats is a point-in-time view of cache state and counters.
type Stats struct {
	CachedCount          int     `json:"cached_count"`
	TotalBytes           int64   `json:"total_bytes"`
	MaxBytes             int64   `json:"max_bytes"`
	HitCount             int64   `json:"hit_count"`
	MissCount            int64   `json:"miss_count"`
	BypassedCount        int64   `json:"bypassed_count"`
	EvictionCount        int64   `json:"eviction_count"`
	HitRate              float64 `json:"hit_rate"`
	StaleServedCount     int64   `json:"stale_served_count"`
	PrewarmedCount       int64   `json:"prewarmed_count"`
	PrewarmFailedCount   int64   `json:"prewarm_failed_count"`
	IsPrewarming         bool    `json:"is_prewarming"`
	DiscoveredAssetCount int     `json:"discovered_asset_count"`
}

// Stats assembles the current cache statistics.
func (c *Client) Stats() Stats {
	snap := c.collector.GetSnapshot()
	return Stats{
		CachedCount:          c.cache.Len(),
		TotalBytes:           c.cache.SizeBytes(),
		MaxBytes:             c.cache.MaxBytes(),
		HitCount:             snap.Hits,
		MissCount:            snap.Misses,
		BypassedCount:        snap.Bypassed,
		EvictionCount:        c.cache.Evictions(),
		HitRate:              snap.HitRate,
		StaleServedCount:     snap.StaleServed,
		PrewarmedCount:       snap.Prewarmed,
		PrewarmFailedCount:   snap.PrewarmFailed,
		IsPrewarming:         c.prewarmer.Running(),
		DiscoveredAssetCount: c.recorder.Count(),
	}
}

// Clear drops every in-memory entry. When includePersisted is true, the
// persisted discovered-asset list and stats snapshot are removed as well, so
// the next session starts cold.
func (c *Client) Clear(ctx context.Context, includePersisted bool) error {
	c.cache.Clear()
	if !includePersisted {
		return nil
	}
	if err := c.kv.Delete(ctx, persist.KeyDiscoveredAssets); err != nil {
		return fmt.Errorf("failed to clear discovered assets: %w", err)
	}
	if err := c.kv.Delete(ctx, persist.KeyStats); err != nil {
		return fmt.Errorf("failed to clear persisted stats: %w", err)
	}
	return nil
}

// Close stops any running prewarm and persists a final stats snapshot.
// The snapshot write is best-effort; a failure is logged, not returned.
// Close is idempotent.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.prewarmer.Stop()

	data, err := json.Marshal(c.Stats())
	if err == nil {
		err = c.kv.Put(ctx, persist.KeyStats, data)
	}
	if err != nil {
		c.logger.Warn(ctx, "failed to persist final stats snapshot", "error", err)
	}
	return nil
}
