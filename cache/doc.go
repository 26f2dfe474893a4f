// Package cache provides the tagged query cache used by repository facades.
//
// # Overview
//
// A Tagged cache stores encoded values under opaque string keys. Every entry
// carries one or more tags; Flush(tag) makes every entry carrying that tag
// unreadable at once. Entries also carry a TTL and read as misses once it has
// elapsed.
//
// Storage is delegated to a Provider: the in-process sturdyc store by default,
// or a Valkey server when entries should live outside the process heap. Entries
// are only served to the Tagged instance that wrote them.
//
// # Keys
//
// Keys are derived by a KeyDeriver from a connection identifier, the table the
// plan reads and the canonical form of the plan:
//
//	deriver := cache.NewDefaultKeyDeriver()
//	key := deriver.DeriveKey("default", "tickets", plan)
//
// The default deriver hashes with SHA-256, so keys are 64 hex characters and
// identical across processes for identical plans.
//
// # Read-through usage
//
//	c, err := cache.NewTaggedCache(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	users, err := cache.GetOrFetch(ctx, c, key, cache.StoreOptions{Tags: []string{"users"}},
//		func(ctx context.Context) ([]User, error) {
//			return db.ListUsers(ctx)
//		})
//
// # Consistency
//
// Tags are versioned with epochs. GetOrFetch captures the epochs of its tags
// before calling the fetch function and stores the result against them. A
// Flush that completes while the fetch is still running advances the epoch, so
// the late store can never be read. Flush returns only after the epochs have
// advanced; physical deletion of indexed keys follows and is best effort.
//
// # Error Handling
//
// Provider failures surface as *UnavailableError (matching ErrCacheUnavailable).
// GetOrFetch logs them and falls through to the fetch function; the caller only
// ever sees errors returned by the fetch itself.
//
// # Configuration
//
// LoadConfig reads the "cache" section from a viper instance and applies
// REPOSITORY_CACHE_* environment overrides:
//
//	REPOSITORY_CACHE_BACKEND=valkey
//	REPOSITORY_CACHE_VALKEY_ADDRESS=127.0.0.1:6379
//	REPOSITORY_CACHE_TTL=10m
package cache
