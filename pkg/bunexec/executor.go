package bunexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-repository-finder/internal/naming"
	"github.com/goliatone/go-repository-finder/query"
	"github.com/goliatone/go-repository-finder/repositorycache"
)

// ErrRelationsUnsupported is returned by AssociateAndPersist for records that
// do not implement Relatable.
var ErrRelationsUnsupported = errors.New("bunexec: record does not support relations")

// Store is the subset of repository.Repository the executor reads and persists
// records through. Any go-repository-bun repository satisfies it.
type Store[T any] interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
	Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error)
	Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

// Relatable records accept related records by relation name.
type Relatable interface {
	SetRelation(name string, related any) error
}

// Option configures an Executor.
type Option func(*options)

type options struct {
	table      string
	primaryKey string
}

// WithTable sets the table used by Insert and DeleteByIDs.
func WithTable(table string) Option {
	return func(o *options) {
		if table != "" {
			o.table = table
		}
	}
}

// WithPrimaryKey sets the primary key column used by DeleteByIDs.
func WithPrimaryKey(column string) Option {
	return func(o *options) {
		if column != "" {
			o.primaryKey = column
		}
	}
}

// Executor runs query plans through a go-repository-bun store. Raw column
// writes (Insert, DeleteByIDs) go through db directly.
type Executor[T any] struct {
	store      Store[T]
	db         bun.IDB
	table      string
	primaryKey string
}

var _ repositorycache.Executor[any] = (*Executor[any])(nil)

// New creates an executor. The table defaults to the plural snake case name of T
// and the primary key to "id".
func New[T any](store Store[T], db bun.IDB, opts ...Option) *Executor[T] {
	o := options{
		table:      naming.TableName(reflect.TypeOf((*T)(nil)).Elem()),
		primaryKey: "id",
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Executor[T]{
		store:      store,
		db:         db,
		table:      o.table,
		primaryKey: o.primaryKey,
	}
}

// Table returns the table used for raw writes.
func (e *Executor[T]) Table() string {
	return e.table
}

// ExecuteSingle returns the first row of plan, or repositorycache.ErrNotFound.
func (e *Executor[T]) ExecuteSingle(ctx context.Context, plan query.Plan) (T, error) {
	var zero T

	plan.Limit = 1
	records, _, err := e.store.List(ctx, Criteria(plan)...)
	if err != nil {
		return zero, err
	}
	if len(records) == 0 {
		return zero, repositorycache.ErrNotFound
	}
	return records[0], nil
}

// ExecuteMultiple returns every row of plan.
func (e *Executor[T]) ExecuteMultiple(ctx context.Context, plan query.Plan) ([]T, error) {
	records, _, err := e.store.List(ctx, Criteria(plan)...)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ExecuteCount counts the rows matching the filters of plan.
func (e *Executor[T]) ExecuteCount(ctx context.Context, plan query.Plan) (int, error) {
	plan.Order = nil
	plan.Columns = nil
	plan.Limit = 0
	return e.store.Count(ctx, Criteria(plan)...)
}

// Persist upserts record through the store.
func (e *Executor[T]) Persist(ctx context.Context, record T) error {
	_, err := e.store.Upsert(ctx, record)
	return err
}

// Insert writes each row as a map model into the executor table.
func (e *Executor[T]) Insert(ctx context.Context, rows []repositorycache.Attributes) error {
	for i := range rows {
		row := rows[i]
		if _, err := e.db.NewInsert().Model(&row).TableExpr(e.table).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByIDs deletes the rows whose primary key is in ids and reports how many went.
func (e *Executor[T]) DeleteByIDs(ctx context.Context, ids []any) (int, error) {
	res, err := e.db.NewDelete().
		TableExpr(e.table).
		Where("? IN (?)", bun.Ident(e.primaryKey), bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// DeleteRecord deletes record through the store.
func (e *Executor[T]) DeleteRecord(ctx context.Context, record T) error {
	return e.store.Delete(ctx, record)
}

// AssociateAndPersist applies relations in name order and persists record.
func (e *Executor[T]) AssociateAndPersist(ctx context.Context, record T, relations map[string]any) error {
	rel, ok := any(record).(Relatable)
	if !ok {
		return fmt.Errorf("%w: %T", ErrRelationsUnsupported, record)
	}

	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := rel.SetRelation(name, relations[name]); err != nil {
			return fmt.Errorf("bunexec: relation %s: %w", name, err)
		}
	}

	return e.Persist(ctx, record)
}

// Make decodes attrs into a new T, matching keys against json field tags.
func (e *Executor[T]) Make(attrs repositorycache.Attributes) (T, error) {
	var out T

	raw, err := msgpack.Marshal(attrs)
	if err != nil {
		return out, fmt.Errorf("bunexec: encode attributes: %w", err)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("bunexec: make %T: %w", out, err)
	}
	return out, nil
}
