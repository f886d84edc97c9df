package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys that have already been claimed, such as
// checkout idempotency keys and payment provider event IDs
type IdempotencyStore interface {
	// MarkProcessed claims a key for ttl.
	// Returns true if the key was newly claimed, false if it was already taken
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been claimed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release frees a claimed key so the operation can be retried
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a claimed key is remembered
	TTL time.Duration
	// KeyPrefix namespaces keys in shared stores
	KeyPrefix string
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:       24 * time.Hour,
		KeyPrefix: "shop:idem:",
	}
}
