// Package discovery records resource URLs for future sessions. URLs arrive
// from two sources: a best-effort scan of the rendered page (image, audio,
// and inline background-image references) and runtime traffic already in the
// cache. The merged, deduplicated list is persisted with a hard cap so
// storage never grows without bound.
package discovery

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/gameshell/assetcache/internal/logging"
	"github.com/gameshell/assetcache/internal/persist"
)

// DefaultMaxEntries caps the persisted discovered-asset list.
const DefaultMaxEntries = 500

// cssURLPattern matches url(...) references in inline style attributes.
var cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

// FromHTML extracts resource URLs referenced by a rendered page: img and
// source src attributes, audio sources, link preloads, and background-image
// declarations in inline styles. Relative references are resolved against
// base. The scan is lossy by design; resources not yet rendered are missed.
func FromHTML(r io.Reader, base *url.URL) []string {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var urls []string
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(ref, "data:") {
			return
		}
		resolved := ref
		if base != nil {
			u, err := base.Parse(ref)
			if err != nil {
				return
			}
			resolved = u.String()
		}
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		urls = append(urls, resolved)
	}

	for node := range doc.Descendants() {
		if node.Type != html.ElementNode {
			continue
		}
		for _, attr := range node.Attr {
			switch {
			case attr.Key == "src" && (node.Data == "img" || node.Data == "audio" || node.Data == "source"):
				add(attr.Val)
			case attr.Key == "href" && node.Data == "link":
				add(attr.Val)
			case attr.Key == "style":
				for _, m := range cssURLPattern.FindAllStringSubmatch(attr.Val, -1) {
					add(m[1])
				}
			}
		}
	}
	return urls
}

// Recorder persists discovered URLs merged with the currently cached keys.
type Recorder struct {
	kv         *persist.Store
	cachedKeys func() []string
	maxEntries int
	logger     *logging.Logger
	lastCount  atomic.Int64
}

// NewRecorder creates a recorder. cachedKeys supplies the cache's current
// key set at record time; maxEntries caps the persisted list
// (DefaultMaxEntries when non-positive).
func NewRecorder(kv *persist.Store, cachedKeys func() []string, maxEntries int, logger *logging.Logger) *Recorder {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cachedKeys == nil {
		cachedKeys = func() []string { return nil }
	}
	return &Recorder{
		kv:         kv,
		cachedKeys: cachedKeys,
		maxEntries: maxEntries,
		logger:     logger.WithComponent("discovery"),
	}
}

// Record merges the currently cached keys with urls, deduplicates,
// truncates to the cap, and persists the result. Returns the number of URLs
// persisted. Storage failures are logged and swallowed; the in-memory count
// still reflects the merge so diagnostics stay useful.
func (r *Recorder) Record(ctx context.Context, urls []string) int {
	seen := make(map[string]struct{})
	var merged []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		merged = append(merged, u)
	}

	for _, key := range r.cachedKeys() {
		add(key)
	}
	for _, u := range urls {
		add(u)
	}
	if len(merged) > r.maxEntries {
		merged = merged[:r.maxEntries]
	}
	r.lastCount.Store(int64(len(merged)))

	data, err := json.Marshal(merged)
	if err != nil {
		r.logger.Warn(ctx, "failed to encode discovered assets", "error", err)
		return len(merged)
	}
	if err := r.kv.Put(ctx, persist.KeyDiscoveredAssets, data); err != nil {
		r.logger.Warn(ctx, "failed to persist discovered assets", "error", err)
		return len(merged)
	}
	r.logger.Debug(ctx, "recorded discovered assets", "count", len(merged))
	return len(merged)
}

// Load reads the persisted discovered-asset list. Absence or corruption
// yields an empty list, never an error.
func (r *Recorder) Load(ctx context.Context) []string {
	data, err := r.kv.Get(ctx, persist.KeyDiscoveredAssets)
	if err != nil {
		r.lastCount.Store(0)
		return nil
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		r.logger.Warn(ctx, "discarding unreadable discovered-asset list", "error", err)
		r.lastCount.Store(0)
		return nil
	}
	r.lastCount.Store(int64(len(urls)))
	return urls
}

// Count returns the size of the discovered-asset list as of the last Record
// or Load call.
func (r *Recorder) Count() int {
	return int(r.lastCount.Load())
}
