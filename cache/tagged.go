package cache

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-repository-finder/internal/cacheinfra"
)

// UntaggedTag is shared by every repository created without a tag. Flushing it
// flushes the cached reads of all untagged repositories in the process at once.
const UntaggedTag = "untagged"

// Value is what a tagged cache entry holds: an encoded payload, or the marker
// that the read found no record.
type Value struct {
	Payload []byte
	Missing bool
}

// Snapshot records tag epochs at a point in time. Taking it before calling the
// source of truth and storing against it guarantees that a flush which happens
// while the fetch is in flight wins over the late store.
type Snapshot struct {
	tags   []string
	epochs []uint64
}

// Tags returns the normalized tags of the snapshot.
func (s Snapshot) Tags() []string {
	return append([]string(nil), s.tags...)
}

// Stats are cumulative counters since the cache was created.
type Stats struct {
	Hits           int64
	Misses         int64
	Stores         int64
	Flushes        int64
	ProviderErrors int64
}

// entry is the envelope persisted in the provider. Epochs only mean something
// to the Tagged instance that recorded them, so entries carry its generation.
type entry struct {
	Payload    []byte   `msgpack:"p"`
	Missing    bool     `msgpack:"m,omitempty"`
	Tags       []string `msgpack:"t"`
	Epochs     []uint64 `msgpack:"e"`
	ExpiresAt  int64    `msgpack:"x"`
	Generation string   `msgpack:"g"`
}

// Tagged is a key/value cache with group invalidation by tag and per entry TTL.
//
// Every entry carries the epochs of its tags. Flush advances a tag's epoch, so
// from that instant no read observes an entry stored under the old epoch; the
// flush then deletes the indexed keys to keep the provider bounded. Expired and
// stale entries read as misses and are left for the provider to evict.
//
// Epochs live in process memory. Entries written by another instance, such as
// one that ran before a restart against the same Valkey database, belong to a
// different generation and always read as misses.
type Tagged struct {
	provider     Provider
	epochs       *cacheinfra.EpochTable
	index        *cacheinfra.TagIndex
	generation   string
	ttl          time.Duration
	maxTTL       time.Duration
	storeMissing bool
	now          func() time.Time
	logger       logrus.FieldLogger
	closer       func() error

	hits    *xsync.Counter
	misses  *xsync.Counter
	stores  *xsync.Counter
	flushes *xsync.Counter
	errs    *xsync.Counter
}

// Option configures a Tagged cache.
type Option func(*Tagged)

// WithTTL sets the TTL used when a store does not specify one.
func WithTTL(ttl time.Duration) Option {
	return func(c *Tagged) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxTTL bounds every store's TTL, for providers that cannot hold entries
// longer than a fixed duration. Zero means unbounded.
func WithMaxTTL(ttl time.Duration) Option {
	return func(c *Tagged) {
		if ttl > 0 {
			c.maxTTL = ttl
		}
	}
}

// WithMissingRecordStorage enables caching of ErrMissingRecord results.
func WithMissingRecordStorage(enabled bool) Option {
	return func(c *Tagged) {
		c.storeMissing = enabled
	}
}

// WithLogger sets the logger used for provider failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Tagged) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Tagged) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a tagged cache over provider.
func New(provider Provider, opts ...Option) *Tagged {
	c := &Tagged{
		provider:   provider,
		epochs:     cacheinfra.NewEpochTable(),
		index:      cacheinfra.NewTagIndex(),
		generation: uuid.NewString(),
		ttl:        cacheinfra.DefaultSturdycConfig().TTL,
		now:        time.Now,
		logger:     logrus.StandardLogger(),
		hits:       xsync.NewCounter(),
		misses:     xsync.NewCounter(),
		stores:     xsync.NewCounter(),
		flushes:    xsync.NewCounter(),
		errs:       xsync.NewCounter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot captures the current epochs of tags.
func (c *Tagged) Snapshot(tags ...string) Snapshot {
	normalized := normalizeTags(tags)
	return Snapshot{tags: normalized, epochs: c.epochs.Snapshot(normalized)}
}

// Get returns the value stored under key. Absent, expired and flushed entries
// are misses. A provider failure is returned as an *UnavailableError.
func (c *Tagged) Get(ctx context.Context, key string) (Value, bool, error) {
	raw, ok, err := c.provider.Get(ctx, key)
	if err != nil {
		c.errs.Inc()
		return Value{}, false, &UnavailableError{Op: "get", Err: err}
	}
	if !ok {
		c.misses.Inc()
		return Value{}, false, nil
	}

	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		c.logger.WithField("key", key).WithError(err).Warn("discarding undecodable cache entry")
		c.misses.Inc()
		return Value{}, false, nil
	}

	if e.Generation != c.generation {
		c.misses.Inc()
		return Value{}, false, nil
	}

	if e.ExpiresAt > 0 && !c.now().Before(time.Unix(0, e.ExpiresAt)) {
		c.misses.Inc()
		return Value{}, false, nil
	}

	if !c.epochs.Valid(e.Tags, e.Epochs) {
		c.misses.Inc()
		return Value{}, false, nil
	}

	c.hits.Inc()
	return Value{Payload: e.Payload, Missing: e.Missing}, true, nil
}

// Put stores payload under key with the current epochs of tags.
// A zero ttl uses the cache default. Put is idempotent.
func (c *Tagged) Put(ctx context.Context, key string, payload []byte, tags []string, ttl time.Duration) error {
	return c.PutSnapshot(ctx, key, Value{Payload: payload}, c.Snapshot(tags...), ttl)
}

// PutSnapshot stores value under key against a snapshot taken earlier.
// If any tag of the snapshot has been flushed since, the entry is written but
// can never be read.
func (c *Tagged) PutSnapshot(ctx context.Context, key string, value Value, snap Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if c.maxTTL > 0 && ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	e := entry{
		Payload:    value.Payload,
		Missing:    value.Missing,
		Tags:       snap.tags,
		Epochs:     snap.epochs,
		ExpiresAt:  c.now().Add(ttl).UnixNano(),
		Generation: c.generation,
	}

	raw, err := msgpack.Marshal(&e)
	if err != nil {
		return err
	}

	if err := c.provider.Set(ctx, key, raw, ttl); err != nil {
		c.errs.Inc()
		return &UnavailableError{Op: "set", Err: err}
	}

	c.index.Add(key, snap.tags)
	c.stores.Inc()
	return nil
}

// Flush invalidates every entry carrying any of tags. Invalidation is complete
// when the epochs have advanced, before Flush returns; deleting the indexed keys
// afterwards is best effort and its failures are reported but harmless.
func (c *Tagged) Flush(ctx context.Context, tags ...string) error {
	normalized := normalizeTags(tags)
	for _, tag := range normalized {
		c.epochs.Bump(tag)
		c.flushes.Inc()
	}

	var errs []error
	for _, tag := range normalized {
		for _, indexed := range c.index.Take(tag) {
			if err := c.provider.Delete(ctx, indexed.Key); err != nil {
				c.errs.Inc()
				errs = append(errs, err)
				continue
			}
			c.index.Release(indexed.Key, indexed.Version)
		}
	}

	if len(errs) > 0 {
		return &UnavailableError{Op: "flush", Err: errors.Join(errs...)}
	}
	return nil
}

// Forget removes a single entry regardless of its tags.
func (c *Tagged) Forget(ctx context.Context, key string) error {
	if err := c.provider.Delete(ctx, key); err != nil {
		c.errs.Inc()
		return &UnavailableError{Op: "forget", Err: err}
	}
	c.index.Forget(key)
	return nil
}

// Stats returns the cumulative counters.
func (c *Tagged) Stats() Stats {
	return Stats{
		Hits:           c.hits.Value(),
		Misses:         c.misses.Value(),
		Stores:         c.stores.Value(),
		Flushes:        c.flushes.Value(),
		ProviderErrors: c.errs.Value(),
	}
}

// Close releases the provider when the cache created it.
func (c *Tagged) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

func (c *Tagged) warn(op, key string, err error) {
	c.logger.WithFields(logrus.Fields{"op": op, "key": key}).WithError(err).Warn("cache unavailable, continuing without it")
}

// normalizeTags sorts and de-duplicates tags, dropping empty ones.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag != "" {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	n := 0
	for i, tag := range out {
		if i > 0 && tag == out[n-1] {
			continue
		}
		out[n] = tag
		n++
	}
	return out[:n]
}
