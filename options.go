// Package assetcache provides transparent HTTP resource caching for desktop
// clients of remote web applications.
// This file contains functional options for configuration.
package assetcache

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmgilman/go/fs/core"

	"github.com/gameshell/assetcache/internal/discovery"
	"github.com/gameshell/assetcache/internal/prewarm"
	"github.com/gameshell/assetcache/internal/store"
)

// ClientOptions contains configuration options for the Client.
type ClientOptions struct {
	// BuildID identifies the client build. When it differs from the
	// persisted value at Init time, stale discovery and stats state is
	// cleared. Empty disables the version guard.
	BuildID string

	// MaxSizeBytes is the in-memory cache budget in bytes.
	// Defaults to 150MB if not specified.
	MaxSizeBytes int64

	// AutoPrewarm starts a background prewarm of previously discovered
	// assets during Init. Skipped when BuildID changed since the last run.
	AutoPrewarm bool

	// PrewarmConcurrency bounds in-flight prewarm fetches per batch.
	// Defaults to 2 if not specified.
	PrewarmConcurrency int

	// IdleWait is the pause between prewarm batches.
	// Defaults to 150ms if not specified.
	IdleWait time.Duration

	// FetchTimeout bounds a single prewarm fetch.
	// Defaults to 30s if not specified.
	FetchTimeout time.Duration

	// MaxDiscovered caps the persisted discovered-asset list.
	// Defaults to 500 if not specified.
	MaxDiscovered int

	// FS provides filesystem operations for persisted state.
	// If nil, a default OS-backed filesystem will be used.
	FS core.FS

	// StatePath is the directory for persisted state (build version,
	// discovered assets, stats snapshots).
	// Defaults to ".assetcache" if not specified.
	StatePath string

	// Base is the transport that performs real network fetches.
	// If nil, http.DefaultTransport will be used.
	Base http.RoundTripper

	// Logger receives structured log output. If nil, logging is disabled.
	Logger *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*ClientOptions)

// DefaultClientOptions returns the default client options.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		MaxSizeBytes:       store.DefaultMaxBytes,
		AutoPrewarm:        true,
		PrewarmConcurrency: prewarm.DefaultConcurrency,
		IdleWait:           prewarm.DefaultIdleWait,
		FetchTimeout:       prewarm.DefaultFetchTimeout,
		MaxDiscovered:      discovery.DefaultMaxEntries,
		StatePath:          ".assetcache",
	}
}

// WithBuildID sets the build identifier used by the version guard.
func WithBuildID(id string) ClientOption {
	return func(opts *ClientOptions) {
		opts.BuildID = id
	}
}

// WithMaxSizeBytes sets the in-memory cache budget in bytes.
func WithMaxSizeBytes(n int64) ClientOption {
	return func(opts *ClientOptions) {
		opts.MaxSizeBytes = n
	}
}

// WithAutoPrewarm controls whether Init starts a background prewarm of
// previously discovered assets.
func WithAutoPrewarm(enabled bool) ClientOption {
	return func(opts *ClientOptions) {
		opts.AutoPrewarm = enabled
	}
}

// WithPrewarmConcurrency bounds in-flight prewarm fetches per batch.
func WithPrewarmConcurrency(n int) ClientOption {
	return func(opts *ClientOptions) {
		opts.PrewarmConcurrency = n
	}
}

// WithIdleWait sets the pause between prewarm batches.
func WithIdleWait(d time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.IdleWait = d
	}
}

// WithFetchTimeout bounds a single prewarm fetch.
func WithFetchTimeout(d time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.FetchTimeout = d
	}
}

// WithMaxDiscovered caps the persisted discovered-asset list.
func WithMaxDiscovered(n int) ClientOption {
	return func(opts *ClientOptions) {
		opts.MaxDiscovered = n
	}
}

// WithFilesystem injects a custom filesystem implementation for persisted
// state. This is primarily used for testing with in-memory filesystems.
func WithFilesystem(fsys core.FS) ClientOption {
	return func(opts *ClientOptions) {
		opts.FS = fsys
	}
}

// WithStatePath sets the directory for persisted state.
func WithStatePath(path string) ClientOption {
	return func(opts *ClientOptions) {
		opts.StatePath = path
	}
}

// WithBaseTransport sets the transport that performs real network fetches.
// The caching layer wraps this transport; prewarm fetches also go through it.
func WithBaseTransport(rt http.RoundTripper) ClientOption {
	return func(opts *ClientOptions) {
		opts.Base = rt
	}
}

// WithLogger sets the structured logger for cache operations.
func WithLogger(l *slog.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}
