// Package version compares the current build identifier against the
// persisted one and invalidates persisted discovery metadata on a mismatch.
// In-memory entries are never touched: a new build identifier only arrives
// with a fresh process, so the in-memory cache is already empty.
package version

import (
	"bytes"
	"context"
	"errors"

	"github.com/gameshell/assetcache/internal/logging"
	"github.com/gameshell/assetcache/internal/persist"
)

// Guard checks the build identifier once at startup.
type Guard struct {
	kv     *persist.Store
	logger *logging.Logger
}

// NewGuard creates a guard over the given durable store.
func NewGuard(kv *persist.Store, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Guard{kv: kv, logger: logger.WithComponent("version")}
}

// Check compares current against the persisted build identifier and returns
// whether the build changed.
//
// No persisted identifier (fresh install) persists current and reports no
// change. A mismatch clears the persisted discovered-asset list and stats
// snapshot, persists the new identifier, and reports a change; callers use
// that to skip auto-prewarm from stale discovery data. Storage failures are
// never surfaced: a read failure counts as no persisted data, a write
// failure is logged and skipped.
func (g *Guard) Check(ctx context.Context, current string) bool {
	previous, err := g.kv.Get(ctx, persist.KeyBuildVersion)
	if err != nil {
		if !errors.Is(err, persist.ErrNotFound) {
			g.logger.Warn(ctx, "failed to read persisted build version, treating as fresh install", "error", err)
		}
		g.persistVersion(ctx, current)
		return false
	}

	if bytes.Equal(previous, []byte(current)) {
		g.logger.Debug(ctx, "build version unchanged", "version", current)
		return false
	}

	g.logger.Info(ctx, "build version changed, invalidating persisted metadata",
		"previous", string(previous), "current", current)

	if err := g.kv.Delete(ctx, persist.KeyDiscoveredAssets); err != nil {
		g.logger.Warn(ctx, "failed to clear discovered assets", "error", err)
	}
	if err := g.kv.Delete(ctx, persist.KeyStats); err != nil {
		g.logger.Warn(ctx, "failed to clear persisted stats", "error", err)
	}
	g.persistVersion(ctx, current)
	return true
}

func (g *Guard) persistVersion(ctx context.Context, current string) {
	if err := g.kv.Put(ctx, persist.KeyBuildVersion, []byte(current)); err != nil {
		g.logger.Warn(ctx, "failed to persist build version", "error", err)
	}
}
