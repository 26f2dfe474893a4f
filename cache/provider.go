package cache

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Implementations must be safe for
// concurrent use and return exactly the bytes previously stored.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// Transport or backend failures return a non-nil error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. Providers that cannot expire single keys
	// may ignore ttl; the tagged cache enforces it on read.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
