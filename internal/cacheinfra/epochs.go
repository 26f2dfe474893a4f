package cacheinfra

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// EpochTable holds one monotonically increasing counter per tag.
// An entry stores the epochs of its tags observed before the value was
// fetched; it is valid only while every one of them is still current.
// Bumping a tag therefore invalidates all entries carrying it in O(1),
// including entries whose store is still in flight.
type EpochTable struct {
	counters *xsync.MapOf[string, *atomic.Uint64]
}

// NewEpochTable creates an empty table. Unknown tags are at epoch zero.
func NewEpochTable() *EpochTable {
	return &EpochTable{counters: xsync.NewMapOf[string, *atomic.Uint64]()}
}

// Current returns the current epoch of tag.
func (t *EpochTable) Current(tag string) uint64 {
	if c, ok := t.counters.Load(tag); ok {
		return c.Load()
	}
	return 0
}

// Bump advances tag to a new epoch and returns it.
func (t *EpochTable) Bump(tag string) uint64 {
	c, _ := t.counters.LoadOrCompute(tag, func() *atomic.Uint64 {
		return new(atomic.Uint64)
	})
	return c.Add(1)
}

// Snapshot returns the current epochs of tags, in order.
func (t *EpochTable) Snapshot(tags []string) []uint64 {
	epochs := make([]uint64, len(tags))
	for i, tag := range tags {
		epochs[i] = t.Current(tag)
	}
	return epochs
}

// Valid reports whether every tag is still at the recorded epoch.
func (t *EpochTable) Valid(tags []string, epochs []uint64) bool {
	if len(tags) != len(epochs) {
		return false
	}
	for i, tag := range tags {
		if t.Current(tag) != epochs[i] {
			return false
		}
	}
	return true
}

// TagIndex tracks which keys were stored under which tags so a flush can
// physically delete them. It is bookkeeping only: a stale index never makes a
// flushed entry readable, because reads are validated against the EpochTable.
//
// Every Add stamps the key with a new version. Release only drops a key while
// it still carries the version the caller saw, so a store that races a flush
// keeps its index entry.
type TagIndex struct {
	seq   atomic.Uint64
	byTag *xsync.MapOf[string, *xsync.MapOf[string, uint64]]
	byKey *xsync.MapOf[string, indexedKey]
}

type indexedKey struct {
	tags    []string
	version uint64
}

// Indexed is a key recorded under a tag and the version it was recorded with.
type Indexed struct {
	Key     string
	Version uint64
}

// NewTagIndex creates an empty index.
func NewTagIndex() *TagIndex {
	return &TagIndex{
		byTag: xsync.NewMapOf[string, *xsync.MapOf[string, uint64]](),
		byKey: xsync.NewMapOf[string, indexedKey](),
	}
}

// Add records key under each tag and returns the version it was stamped with.
func (i *TagIndex) Add(key string, tags []string) uint64 {
	version := i.seq.Add(1)
	i.byKey.Store(key, indexedKey{tags: append([]string(nil), tags...), version: version})
	for _, tag := range tags {
		keys, _ := i.byTag.LoadOrCompute(tag, func() *xsync.MapOf[string, uint64] {
			return xsync.NewMapOf[string, uint64]()
		})
		keys.Store(key, version)
	}
	return version
}

// Take removes tag from the index and returns the keys recorded under it.
func (i *TagIndex) Take(tag string) []Indexed {
	keys, ok := i.byTag.LoadAndDelete(tag)
	if !ok {
		return nil
	}
	out := make([]Indexed, 0, keys.Size())
	keys.Range(func(key string, version uint64) bool {
		out = append(out, Indexed{Key: key, Version: version})
		return true
	})
	return out
}

// Release drops key from every tag it was recorded under, unless it has been
// added again since version.
func (i *TagIndex) Release(key string, version uint64) {
	var tags []string
	i.byKey.Compute(key, func(old indexedKey, loaded bool) (indexedKey, bool) {
		if !loaded || old.version != version {
			return old, !loaded
		}
		tags = old.tags
		return old, true
	})
	for _, tag := range tags {
		if keys, ok := i.byTag.Load(tag); ok {
			keys.Compute(key, func(old uint64, loaded bool) (uint64, bool) {
				return old, !loaded || old == version
			})
		}
	}
}

// Forget drops key from every tag it was recorded under.
func (i *TagIndex) Forget(key string) {
	entry, ok := i.byKey.LoadAndDelete(key)
	if !ok {
		return
	}
	for _, tag := range entry.tags {
		if keys, ok := i.byTag.Load(tag); ok {
			keys.Delete(key)
		}
	}
}

// Len returns the number of indexed keys.
func (i *TagIndex) Len() int {
	return i.byKey.Size()
}
