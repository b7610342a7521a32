// Package limiter locks out bridge peers that keep presenting invalid tokens.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter tracks failed authentication attempts per peer and temporary lockouts.
type Limiter interface {
	// Allow reports whether the peer may attempt authentication and an optional retry-after.
	Allow(ctx context.Context, peerHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful authentication.
	Success(ctx context.Context, peerHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, peerHash []byte) (bool, time.Duration, error)
}

// Policy bounds failures within a window before a peer is blocked.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// DefaultPolicy blocks a peer for 15 minutes after 5 failures within 15 minutes.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// HashPeer returns a stable hash for a peer address to avoid storing raw addresses.
func HashPeer(addr string) []byte {
	h := sha256.Sum256([]byte(addr))
	return h[:]
}
