// Package policy classifies outbound requests as cacheable or not from URL
// shape and HTTP method alone. Exclusion rules run before inclusion rules, so
// a static-looking asset under an excluded endpoint is still never cached.
//
// Matching is deliberately substring-based and conservative, mirroring the
// behavior of the client this cache fronts. A resource whose path happens to
// contain an excluded fragment (an image literally named "...api...png") is
// misclassified as uncacheable; the excluded categories are cheap to miss and
// expensive to cache wrongly, so the imprecision is accepted.
package policy

import (
	"net/http"
	"path"
	"strings"
)

// neverCacheFragments marks URLs that must never be cached: API endpoints,
// authentication and identity providers, realtime game-server and socket
// traffic, and dev-server hot-reload artifacts.
var neverCacheFragments = []string{
	"/api/",
	"/auth/",
	"oauth",
	"accounts.google.com",
	"firebaseapp.com",
	"identitytoolkit",
	"socket.io",
	"sockjs",
	"/ws/",
	"colyseus",
	"/matchmake/",
	"hot-update",
	"__webpack_hmr",
	"@vite",
}

// staticExtensions lists file extensions accepted as static resources:
// images, audio, fonts, and structured data.
var staticExtensions = map[string]struct{}{
	".png":         {},
	".jpg":         {},
	".jpeg":        {},
	".gif":         {},
	".webp":        {},
	".avif":        {},
	".svg":         {},
	".ico":         {},
	".mp3":         {},
	".ogg":         {},
	".wav":         {},
	".m4a":         {},
	".woff":        {},
	".woff2":       {},
	".ttf":         {},
	".otf":         {},
	".eot":         {},
	".json":        {},
	".webmanifest": {},
}

// staticPathFragments accepts resources under conventional static-asset
// directories regardless of extension.
var staticPathFragments = []string{
	"/assets/",
	"/static/",
	"/images/",
	"/img/",
	"/sounds/",
	"/music/",
	"/fonts/",
}

// ShouldCache reports whether a request for rawURL with the given method is
// safe to cache. Only GET requests are ever considered; a query string is
// treated as a signal of dynamic content and rejected.
func ShouldCache(rawURL, method string) bool {
	if !strings.EqualFold(method, http.MethodGet) {
		return false
	}

	lower := strings.ToLower(rawURL)

	// Exclusions win over inclusions.
	if strings.Contains(lower, "?") {
		return false
	}
	for _, fragment := range neverCacheFragments {
		if strings.Contains(lower, fragment) {
			return false
		}
	}

	if _, ok := staticExtensions[path.Ext(lower)]; ok {
		return true
	}
	for _, fragment := range staticPathFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
