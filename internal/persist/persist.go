// Package persist provides the durable key/value storage behind the cache:
// the persisted build identifier, the discovered-asset list, and the
// best-effort stats snapshot. Values are written atomically (temp file plus
// rename) with a checksum line so a torn write reads back as corruption, not
// as garbage data.
//
// The filesystem is abstracted behind core.FS so tests run against an
// in-memory filesystem and production against the local disk.
package persist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/jmgilman/go/fs/core"
)

// Logical keys used by the cache. Each key is a single file under the
// storage root.
const (
	// KeyBuildVersion holds the persisted build identifier string.
	KeyBuildVersion = "build_version"
	// KeyDiscoveredAssets holds the discovered-asset URL list as a JSON array.
	KeyDiscoveredAssets = "discovered_assets.json"
	// KeyStats holds the best-effort persisted stats snapshot.
	KeyStats = "stats.json"
)

// ErrNotFound is returned when a key has no persisted value.
var ErrNotFound = errors.New("persisted value not found")

// ErrCorrupted is returned when a persisted value fails its checksum.
var ErrCorrupted = errors.New("persisted value is corrupted")

// Store is a small durable key/value store rooted at a directory.
type Store struct {
	fs   core.FS
	root string
}

// New creates a store rooted at root, creating the directory if needed.
func New(fsys core.FS, root string) (*Store, error) {
	if fsys == nil {
		return nil, fmt.Errorf("filesystem cannot be nil")
	}
	if root == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{fs: fsys, root: root}, nil
}

// Get reads the value stored under key. Returns ErrNotFound when the key has
// never been written and ErrCorrupted when the stored value fails its
// checksum.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := s.path(key)
	exists, err := s.fs.Exists(p)
	if err != nil {
		return nil, fmt.Errorf("failed to check %q: %w", key, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	raw, err := s.fs.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return decode(raw)
}

// Put stores value under key, replacing any previous value. The write goes
// to a temp file first and is renamed into place.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	final := s.path(key)
	tmp := final + ".tmp"
	if err := s.fs.WriteFile(tmp, encode(value), 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to commit %q: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key. Deleting an absent key is not
// an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := s.path(key)
	exists, err := s.fs.Exists(p)
	if err != nil {
		return fmt.Errorf("failed to check %q: %w", key, err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Remove(p); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) path(key string) string {
	return path.Join(s.root, key)
}

// encode prefixes the value with a checksum line.
func encode(value []byte) []byte {
	sum := sha256.Sum256(value)
	out := make([]byte, 0, hex.EncodedLen(len(sum))+1+len(value))
	out = append(out, []byte(hex.EncodeToString(sum[:]))...)
	out = append(out, '\n')
	return append(out, value...)
}

// decode verifies the checksum line and returns the value.
func decode(raw []byte) ([]byte, error) {
	parts := strings.SplitN(string(raw), "\n", 2)
	if len(parts) != 2 {
		return nil, ErrCorrupted
	}
	value := []byte(parts[1])
	sum := sha256.Sum256(value)
	if parts[0] != hex.EncodeToString(sum[:]) {
		return nil, ErrCorrupted
	}
	return value, nil
}
