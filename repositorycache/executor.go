package repositorycache

import (
	"context"

	"github.com/goliatone/go-repository-finder/cache"
	"github.com/goliatone/go-repository-finder/query"
)

// ErrNotFound is returned by ExecuteSingle when no row matches the plan.
// It is the cache's missing record signal, so NotFound results can be cached.
var ErrNotFound = cache.ErrMissingRecord

// Attributes are column values keyed by column name.
type Attributes = map[string]any

// Executor runs plans and writes against the persistent store.
// Errors other than ErrNotFound are returned to the caller unchanged.
type Executor[T any] interface {
	// ExecuteSingle returns the first row of plan or ErrNotFound.
	ExecuteSingle(ctx context.Context, plan query.Plan) (T, error)
	// ExecuteMultiple returns the rows of plan in plan order.
	ExecuteMultiple(ctx context.Context, plan query.Plan) ([]T, error)
	// ExecuteCount returns the number of rows matching plan.
	ExecuteCount(ctx context.Context, plan query.Plan) (int, error)

	Persist(ctx context.Context, record T) error
	Insert(ctx context.Context, rows []Attributes) error
	DeleteByIDs(ctx context.Context, ids []any) (int, error)
	DeleteRecord(ctx context.Context, record T) error
	AssociateAndPersist(ctx context.Context, record T, relations map[string]any) error

	// Make builds a record from attributes without touching the store.
	Make(attrs Attributes) (T, error)
}
