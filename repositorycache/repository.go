package repositorycache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-repository-finder/cache"
	"github.com/goliatone/go-repository-finder/finder"
	"github.com/goliatone/go-repository-finder/internal/naming"
	"github.com/goliatone/go-repository-finder/query"
)

const (
	// UntaggedTag is used by every repository created without a tag. It is
	// shared process wide: a write through any untagged repository flushes the
	// cached reads of all of them.
	UntaggedTag = cache.UntaggedTag

	// RepositoriesTag is carried by every cached read.
	RepositoriesTag = "repositories"

	// CountTag is carried by cached counts.
	CountTag = "count"

	// DefaultConnection identifies the store when Options.Connection is empty.
	DefaultConnection = "default"
)

// ErrOperationMismatch is returned by Find for a get signature and by Get for a
// find signature.
var ErrOperationMismatch = errors.New("repositorycache: signature operation does not match call")

// tableNamer is implemented by executors bound to a single table.
type tableNamer interface {
	Table() string
}

// Options configure a Repository.
type Options struct {
	// Tag groups the repository's cached reads. Empty uses UntaggedTag.
	Tag string
	// Connection is mixed into every cache key so identical plans against
	// different stores never share entries.
	Connection string
	// Table identifies what the executor reads and is mixed into every cache
	// key next to Connection. Empty uses the executor's Table method when it
	// has one, else the plural snake case name of T.
	Table string
	// CreatedField is the column Latest and Oldest order by.
	CreatedField string
	// TTL of cached reads. Zero uses the cache default. The cache clamps it
	// to the longest TTL its backend can hold, see cache.WithMaxTTL.
	TTL    time.Duration
	Logger logrus.FieldLogger
}

// ReadOptions are the optional ordering and projection arguments of a read.
type ReadOptions struct {
	// OrderBy overrides the ordering implied by the signature.
	OrderBy *query.Ordering
	// Columns restricts the projected columns.
	Columns []string
}

// Result is the outcome of a dynamic finder call. Single reads fill Record and
// Found; multi reads fill Records, which is never nil.
type Result[T any] struct {
	Operation finder.Operation
	Record    T
	Found     bool
	Records   []T
}

// Repository answers finder signatures with cached reads and flushes its tag
// after every successful write.
type Repository[T any] struct {
	exec         Executor[T]
	cache        *cache.Tagged
	keys         cache.KeyDeriver
	tag          string
	connection   string
	table        string
	createdField string
	ttl          time.Duration
	logger       logrus.FieldLogger
}

// New creates a repository over exec that caches reads in c.
// A nil keys uses cache.NewDefaultKeyDeriver.
func New[T any](exec Executor[T], c *cache.Tagged, keys cache.KeyDeriver, opts Options) *Repository[T] {
	if keys == nil {
		keys = cache.NewDefaultKeyDeriver()
	}

	r := &Repository[T]{
		exec:         exec,
		cache:        c,
		keys:         keys,
		tag:          opts.Tag,
		connection:   opts.Connection,
		table:        opts.Table,
		createdField: opts.CreatedField,
		ttl:          opts.TTL,
		logger:       opts.Logger,
	}

	if r.tag == "" {
		r.tag = UntaggedTag
	}
	if r.connection == "" {
		r.connection = DefaultConnection
	}
	if r.table == "" {
		if named, ok := exec.(tableNamer); ok {
			r.table = named.Table()
		}
	}
	if r.table == "" {
		r.table = naming.TableName(reflect.TypeOf((*T)(nil)).Elem())
	}
	if r.createdField == "" {
		r.createdField = query.DefaultCreatedField
	}
	if r.logger == nil {
		r.logger = logrus.StandardLogger()
	}
	r.logger = r.logger.WithField("repository", r.tag)

	return r
}

// Table returns the table identity mixed into the repository's cache keys.
func (r *Repository[T]) Table() string {
	return r.table
}

// Tag returns the tag the repository's reads are stored under.
func (r *Repository[T]) Tag() string {
	return r.tag
}

// Dispatch runs the finder call named by signature, e.g.
// Dispatch(ctx, "getLatest3ByStatus", "open").
//
// An unrecognized signature returns an error matching finder.ErrUnrecognizedSignature.
// A missing qualifier returns an empty Result without contacting the store.
func (r *Repository[T]) Dispatch(ctx context.Context, signature string, qualifier any, opts ...ReadOptions) (Result[T], error) {
	intent, err := finder.Parse(signature)
	if err != nil {
		return Result[T]{}, err
	}
	return r.dispatch(ctx, signature, intent, qualifier, opts)
}

// Find runs a single result signature such as "findByEmail". It returns
// ErrNotFound when nothing matches or the qualifier is missing.
func (r *Repository[T]) Find(ctx context.Context, signature string, qualifier any, opts ...ReadOptions) (T, error) {
	var zero T

	intent, err := finder.Parse(signature)
	if err != nil {
		return zero, err
	}
	if intent.Operation != finder.SingleResult {
		return zero, fmt.Errorf("%w: %s is a %s signature", ErrOperationMismatch, signature, intent.Operation)
	}

	res, err := r.dispatch(ctx, signature, intent, qualifier, opts)
	if err != nil {
		return zero, err
	}
	if !res.Found {
		return zero, ErrNotFound
	}
	return res.Record, nil
}

// Get runs a multi result signature such as "getLatest3ByStatus". The result
// is empty, never nil, when nothing matches or the qualifier is missing.
func (r *Repository[T]) Get(ctx context.Context, signature string, qualifier any, opts ...ReadOptions) ([]T, error) {
	intent, err := finder.Parse(signature)
	if err != nil {
		return nil, err
	}
	if intent.Operation != finder.MultiResult {
		return nil, fmt.Errorf("%w: %s is a %s signature", ErrOperationMismatch, signature, intent.Operation)
	}

	res, err := r.dispatch(ctx, signature, intent, qualifier, opts)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// GetAll returns every row, optionally ordered and projected.
func (r *Repository[T]) GetAll(ctx context.Context, opts ...ReadOptions) ([]T, error) {
	plan := query.BuildAll(r.queryOptions(opts))
	return r.readMultiple(ctx, plan)
}

// Count returns the number of rows.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	plan := query.BuildCount()
	key := r.keys.DeriveKey(r.connection, r.table, plan)

	return cache.GetOrFetch(ctx, r.cache, key, r.storeOptions(ctx, CountTag), func(ctx context.Context) (int, error) {
		return r.exec.ExecuteCount(ctx, plan)
	})
}

// Save persists record.
func (r *Repository[T]) Save(ctx context.Context, record T) error {
	if err := r.exec.Persist(ctx, record); err != nil {
		return err
	}
	r.Flush(ctx)
	return nil
}

// Insert writes rows of raw column values.
func (r *Repository[T]) Insert(ctx context.Context, rows ...Attributes) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.exec.Insert(ctx, rows); err != nil {
		return err
	}
	r.Flush(ctx)
	return nil
}

// Delete removes the rows with the given primary keys and returns how many
// were deleted.
func (r *Repository[T]) Delete(ctx context.Context, ids ...any) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.exec.DeleteByIDs(ctx, ids)
	if err != nil {
		return n, err
	}
	r.Flush(ctx)
	return n, nil
}

// DeleteRecord removes record.
func (r *Repository[T]) DeleteRecord(ctx context.Context, record T) error {
	if err := r.exec.DeleteRecord(ctx, record); err != nil {
		return err
	}
	r.Flush(ctx)
	return nil
}

// Relate associates record with related records keyed by relation name and
// persists it.
func (r *Repository[T]) Relate(ctx context.Context, record T, relations map[string]any) error {
	if err := r.exec.AssociateAndPersist(ctx, record, relations); err != nil {
		return err
	}
	r.Flush(ctx)
	return nil
}

// Make builds a record from attributes. Nothing is read or written.
func (r *Repository[T]) Make(attrs Attributes) (T, error) {
	return r.exec.Make(attrs)
}

// FirstOrMake returns the first row whose columns equal attrs, or a record
// made from attrs when none does. The read bypasses the cache. Attributes
// without a value are not used as filters.
func (r *Repository[T]) FirstOrMake(ctx context.Context, attrs Attributes) (T, error) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	filters := make([]query.Filter, 0, len(names))
	for _, name := range names {
		filter, err := query.Resolve(name, attrs[name])
		if errors.Is(err, query.ErrMissingQualifier) {
			continue
		}
		if err != nil {
			var zero T
			return zero, err
		}
		filters = append(filters, filter)
	}

	if len(filters) == 0 {
		return r.exec.Make(attrs)
	}

	record, err := r.exec.ExecuteSingle(ctx, query.BuildFirst(filters, query.Options{CreatedField: r.createdField}))
	if errors.Is(err, ErrNotFound) {
		return r.exec.Make(attrs)
	}
	return record, err
}

// Flush invalidates every cached read of the repository. With UntaggedTag
// that includes the reads of every other untagged repository.
func (r *Repository[T]) Flush(ctx context.Context) {
	if err := r.cache.Flush(ctx, r.tag); err != nil {
		r.logger.WithError(err).Warn("cache entries not deleted after flush")
		return
	}
	r.logger.Debug("cache flushed")
}

func (r *Repository[T]) dispatch(ctx context.Context, signature string, intent finder.Intent, qualifier any, opts []ReadOptions) (Result[T], error) {
	res := Result[T]{Operation: intent.Operation, Records: []T{}}

	filter, err := query.Resolve(intent.Field, qualifier)
	if errors.Is(err, query.ErrMissingQualifier) {
		r.logger.WithField("signature", signature).Debug("missing qualifier, returning empty result")
		return res, nil
	}
	if err != nil {
		return res, err
	}

	plan := query.Build(intent, filter, r.queryOptions(opts))

	if intent.Operation == finder.SingleResult {
		record, err := r.readSingle(ctx, plan)
		if errors.Is(err, ErrNotFound) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Record = record
		res.Found = true
		return res, nil
	}

	records, err := r.readMultiple(ctx, plan)
	if err != nil {
		return res, err
	}
	res.Records = records
	return res, nil
}

func (r *Repository[T]) readSingle(ctx context.Context, plan query.Plan) (T, error) {
	key := r.keys.DeriveKey(r.connection, r.table, plan)
	return cache.GetOrFetch(ctx, r.cache, key, r.storeOptions(ctx), func(ctx context.Context) (T, error) {
		r.logger.WithField("key", key).Debug("cache miss, executing single read")
		return r.exec.ExecuteSingle(ctx, plan)
	})
}

func (r *Repository[T]) readMultiple(ctx context.Context, plan query.Plan) ([]T, error) {
	key := r.keys.DeriveKey(r.connection, r.table, plan)
	records, err := cache.GetOrFetch(ctx, r.cache, key, r.storeOptions(ctx), func(ctx context.Context) ([]T, error) {
		r.logger.WithField("key", key).Debug("cache miss, executing multi read")
		return r.exec.ExecuteMultiple(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

func (r *Repository[T]) storeOptions(ctx context.Context, extra ...string) cache.StoreOptions {
	tags := append([]string{r.tag, RepositoriesTag}, extra...)
	tags = append(tags, cacheTagsFromContext(ctx)...)
	return cache.StoreOptions{Tags: tags, TTL: r.ttl}
}

func (r *Repository[T]) queryOptions(opts []ReadOptions) query.Options {
	out := query.Options{CreatedField: r.createdField}
	if len(opts) > 0 {
		out.Order = opts[0].OrderBy
		out.Columns = opts[0].Columns
	}
	return out
}
