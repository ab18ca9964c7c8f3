// Package assetcache provides transparent HTTP resource caching for desktop
// clients that display a remote web application.
//
// The cache sits in the HTTP transport: wrap your client's transport and
// cacheable GET responses (images, audio, fonts, static JSON) are served
// from memory on repeat requests. Key features:
//   - LRU eviction under a strict byte budget with O(1) operations
//   - Policy-driven cacheability (never caches API, auth, or realtime traffic)
//   - Stale-copy fallback when the network fails mid-session
//   - Background prewarming of previously discovered assets
//   - Build version guard that invalidates stale discovery state
//   - Filesystem abstraction for persisted state, in-memory for tests
//
// Basic usage:
//
//	client, err := assetcache.NewWithOptions(
//	    assetcache.WithBuildID("1.4.2"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Init(ctx); err != nil {
//	    return err
//	}
//
//	// All requests through this http.Client hit the cache first.
//	httpClient := client.HTTPClient()
//
//	// Record discovered assets so the next session can prewarm them.
//	urls := client.DiscoverFromHTML(pageBody, pageURL)
//	client.RecordDiscovered(ctx, urls)
//
// See the README for detailed documentation and examples.
package assetcache
