// Package repositorycache provides repositories that answer finder signatures
// with cached reads.
//
// # Overview
//
// A Repository parses a signature such as "getLatest3ByStatus", resolves the
// qualifier into a filter, builds a query plan and looks the plan up in a tagged
// cache. On a miss the plan is handed to an Executor, the store facing
// collaborator, and the result is cached. Writes go straight to the executor and
// flush the repository's tag when they succeed.
//
// # Basic Usage
//
//	c, err := cache.NewTaggedCache(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	tickets := repositorycache.New[Ticket](exec, c, nil, repositorycache.Options{Tag: "tickets"})
//
//	open, err := tickets.Get(ctx, "getLatest3ByStatus", "open")
//	first, err := tickets.Find(ctx, "findByEmail", "ada@example.com")
//	total, err := tickets.Count(ctx)
//
// Dispatch accepts either kind of signature and reports which one ran.
//
// # Cached vs Pass-through Operations
//
// Cached:
//   - Dispatch, Find, Get, GetAll, Count
//
// Flush the repository tag on success:
//   - Save, Insert, Delete, DeleteRecord, Relate
//
// Pass-through, never cached:
//   - Make, FirstOrMake
//
// # Tags
//
// Every cached read carries the repository tag and RepositoriesTag; counts also
// carry CountTag. A repository created without a tag uses UntaggedTag, which is
// shared by every untagged repository in the process: a write through one of
// them flushes the cached reads of all of them.
//
// WithCacheTags adds tags to the reads made with a context:
//
//	ctx = repositorycache.WithCacheTags(ctx, "dashboard")
//	_, _ = tickets.Count(ctx)
//	_ = c.Flush(ctx, "dashboard")
//
// # Missing Qualifiers
//
// A finder call whose qualifier is nil, an empty string or an empty slice
// returns an empty result: Find returns ErrNotFound, Get and GetAll an empty
// slice, Dispatch a Result with Found false. The executor is not called.
//
// # Error Handling
//
// Unrecognized signatures return an error matching finder.ErrUnrecognizedSignature.
// Executor errors are returned unchanged and a failed write leaves the cache
// untouched. Cache backend failures are logged and never returned.
package repositorycache
