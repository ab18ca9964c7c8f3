// Package intercept wraps an http.RoundTripper with the caching layer. The
// wrapper is the only component that sits on the request path; everything
// else (prewarm included) fetches through the captured base transport so it
// never re-enters its own interception or skews the hit/miss counters meant
// for real application traffic.
package intercept

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gameshell/assetcache/internal/logging"
	"github.com/gameshell/assetcache/internal/metrics"
	"github.com/gameshell/assetcache/internal/policy"
	"github.com/gameshell/assetcache/internal/store"
)

// Transport is a caching http.RoundTripper. Response bodies are single-read
// streams, so on a miss the body is buffered once and two independent copies
// come out of it: one for the store and one for the caller. On a hit the
// caller gets a clone of the stored copy, leaving the original reusable for
// future hits.
type Transport struct {
	base    http.RoundTripper
	cache   *store.Store
	metrics *metrics.Collector
	logger  *logging.Logger
}

// New creates a caching transport over base. A nil base falls back to
// http.DefaultTransport.
func New(base http.RoundTripper, cache *store.Store, collector *metrics.Collector, logger *logging.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transport{
		base:    base,
		cache:   cache,
		metrics: collector,
		logger:  logger.WithComponent("intercept"),
	}
}

// Base returns the captured non-intercepted transport.
func (t *Transport) Base() http.RoundTripper {
	return t.base
}

// Key returns the canonical cache key for a request URL: the URL string with
// any fragment dropped.
func Key(u *url.URL) string {
	if u.Fragment == "" {
		return u.String()
	}
	c := *u
	c.Fragment = ""
	return c.String()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !policy.ShouldCache(req.URL.String(), req.Method) {
		t.metrics.RecordBypass()
		return t.base.RoundTrip(req)
	}

	key := Key(req.URL)
	if res, ok := t.cache.Get(key); ok {
		t.metrics.RecordHit()
		return synthesize(req, res), nil
	}

	t.metrics.RecordMiss()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		// Serve-stale-on-error: a previously cached copy beats a failure.
		if res, ok := t.cache.Get(key); ok {
			t.metrics.RecordStale()
			t.logger.WithKey(key).Warn(req.Context(), "network failure, serving stale cached copy", "error", err)
			return synthesize(req, res), nil
		}
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if err != nil || closeErr != nil {
		if err == nil {
			err = closeErr
		}
		if res, ok := t.cache.Get(key); ok {
			t.metrics.RecordStale()
			t.logger.WithKey(key).Warn(req.Context(), "body read failed, serving stale cached copy", "error", err)
			return synthesize(req, res), nil
		}
		return nil, fmt.Errorf("failed to read response body for %s: %w", key, err)
	}

	res := &store.Resource{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}
	if !t.cache.Set(key, res, res.Size()) {
		t.logger.WithKey(key).WithSize(res.Size()).Debug(req.Context(), "resource exceeds cache budget, not cached")
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

// synthesize builds an independent http.Response from a cached resource.
// The resource is already a clone handed out by the store, so the body
// reader and headers are not shared with the stored entry.
func synthesize(req *http.Request, res *store.Resource) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", res.Status, http.StatusText(res.Status)),
		StatusCode:    res.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        res.Header,
		Body:          io.NopCloser(bytes.NewReader(res.Body)),
		ContentLength: int64(len(res.Body)),
		Request:       req,
	}
}
