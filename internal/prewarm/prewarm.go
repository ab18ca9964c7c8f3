// Package prewarm populates the cache in the background before resources are
// requested. Candidate URLs are filtered down to cacheable, not-yet-cached
// entries, then fetched in sequential batches of bounded concurrency. Batches
// are spaced out by an idle wait so prewarming never competes with the
// application's own traffic for long stretches, and every fetch goes through
// the original non-intercepted transport so prewarm traffic never skews the
// interception counters.
package prewarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gameshell/assetcache/internal/intercept"
	"github.com/gameshell/assetcache/internal/logging"
	"github.com/gameshell/assetcache/internal/metrics"
	"github.com/gameshell/assetcache/internal/policy"
	"github.com/gameshell/assetcache/internal/store"
)

// ErrAlreadyRunning is returned when a prewarm run is requested while one is
// in progress. Runs are rejected, not queued.
var ErrAlreadyRunning = errors.New("prewarm run already in progress")

// Default tuning values.
const (
	// DefaultConcurrency bounds in-flight prewarm fetches per batch.
	DefaultConcurrency = 2
	// DefaultIdleWait spaces out batches to yield bandwidth to real traffic.
	DefaultIdleWait = 150 * time.Millisecond
	// DefaultFetchTimeout bounds a single prewarm fetch; a timeout counts as
	// an ordinary failure.
	DefaultFetchTimeout = 30 * time.Second
)

// Progress reports batch-granular prewarm progress.
type Progress struct {
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// Result summarizes a finished prewarm run.
type Result struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Config tunes a Prewarmer. Zero values pick the package defaults.
type Config struct {
	IdleWait     time.Duration
	FetchTimeout time.Duration
}

// Prewarmer fetches candidate URLs into the cache. A single Prewarmer allows
// one run at a time.
type Prewarmer struct {
	cache    *store.Store
	base     http.RoundTripper
	metrics  *metrics.Collector
	logger   *logging.Logger
	config   Config
	running  atomic.Bool
	stopFlag atomic.Bool
}

// New creates a prewarmer that fetches through base, which must be the
// original non-intercepted transport.
func New(cache *store.Store, base http.RoundTripper, collector *metrics.Collector, logger *logging.Logger, config Config) *Prewarmer {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.IdleWait <= 0 {
		config.IdleWait = DefaultIdleWait
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	return &Prewarmer{
		cache:   cache,
		base:    base,
		metrics: collector,
		logger:  logger.WithComponent("prewarm"),
		config:  config,
	}
}

// Running reports whether a prewarm run is in progress.
func (p *Prewarmer) Running() bool {
	return p.running.Load()
}

// Stop prevents further batches from being scheduled. The in-flight batch
// runs to completion.
func (p *Prewarmer) Stop() {
	p.stopFlag.Store(true)
}

// Run prewarms urls with the given per-batch concurrency, invoking
// onProgress after each batch. Candidates that are non-cacheable or already
// cached are skipped. Individual fetch failures are counted and never abort
// the run; context cancellation stops scheduling further batches and returns
// the partial result alongside the context error.
func (p *Prewarmer) Run(ctx context.Context, urls []string, concurrency int, onProgress func(Progress)) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)
	p.stopFlag.Store(false)

	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	eligible := p.filter(urls)
	skipped := len(urls) - len(eligible)
	total := len(eligible)

	p.logger.Info(ctx, "prewarm run starting",
		"candidates", len(urls), "eligible", total, "skipped", skipped, "concurrency", concurrency)

	var completed, failed atomic.Int64
	var runErr error

	for start := 0; start < total; start += concurrency {
		if p.stopFlag.Load() {
			p.logger.Info(ctx, "prewarm stopped, skipping remaining batches",
				"remaining", total-start)
			break
		}
		if err := p.waitIdle(ctx); err != nil {
			runErr = err
			break
		}

		end := min(start+concurrency, total)
		batch := eligible[start:end]

		g := new(errgroup.Group)
		g.SetLimit(concurrency)
		for _, rawURL := range batch {
			g.Go(func() error {
				if err := p.fetchAndStore(ctx, rawURL); err != nil {
					failed.Add(1)
					p.metrics.RecordPrewarm(false)
					p.logger.WithKey(rawURL).Debug(ctx, "prewarm fetch failed", "error", err)
				} else {
					completed.Add(1)
					p.metrics.RecordPrewarm(true)
				}
				return nil
			})
		}
		_ = g.Wait()

		if onProgress != nil {
			done := int(completed.Load())
			fail := int(failed.Load())
			onProgress(Progress{
				Completed: done,
				Failed:    fail,
				Total:     total,
				Percent:   float64(done+fail) / float64(total) * 100,
			})
		}
	}

	result := Result{
		Success: int(completed.Load()),
		Failed:  int(failed.Load()),
		Skipped: skipped,
	}
	p.logger.Info(ctx, "prewarm run finished",
		"success", result.Success, "failed", result.Failed, "skipped", result.Skipped)
	return result, runErr
}

// filter keeps URLs that are cacheable and not already cached.
func (p *Prewarmer) filter(urls []string) []string {
	var eligible []string
	for _, u := range urls {
		if !policy.ShouldCache(u, http.MethodGet) {
			continue
		}
		if p.cache.Contains(u) {
			continue
		}
		eligible = append(eligible, u)
	}
	return eligible
}

// waitIdle spaces batches apart, yielding bandwidth to interactive traffic.
func (p *Prewarmer) waitIdle(ctx context.Context) error {
	timer := time.NewTimer(p.config.IdleWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchAndStore fetches one URL through the base transport and stores it via
// the same set path as normal caching, so prewarmed entries are ordinary LRU
// members.
func (p *Prewarmer) fetchAndStore(ctx context.Context, rawURL string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid prewarm url: %w", err)
	}

	resp, err := p.base.RoundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	res := &store.Resource{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}
	if !p.cache.Set(intercept.Key(req.URL), res, res.Size()) {
		return fmt.Errorf("resource exceeds cache budget (%d bytes)", res.Size())
	}
	return nil
}
