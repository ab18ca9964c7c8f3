// Package assetcache provides transparent HTTP resource caching for desktop
// clients of remote web applications.
// This file contains domain-specific error values.
package assetcache

import (
	"errors"

	"github.com/gameshell/assetcache/internal/prewarm"
)

// Sentinel errors for different failure modes.
// They can be checked using errors.Is() for error handling and testing.
var (
	// ErrPrewarmRunning indicates that a prewarm run was requested while one
	// is already in progress. Concurrent runs are rejected, not queued.
	ErrPrewarmRunning = prewarm.ErrAlreadyRunning

	// ErrClosed indicates that an operation was attempted on a closed client.
	ErrClosed = errors.New("client is closed")

	// ErrInvalidOptions indicates that the client was constructed with an
	// invalid option combination.
	ErrInvalidOptions = errors.New("invalid client options")
)
