package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// StoreOptions describe how a fetched value is stored.
type StoreOptions struct {
	Tags []string
	TTL  time.Duration
}

// GetOrFetch returns the value cached under key, or calls fetchFn and caches
// its result under opts.Tags.
//
// The tag epochs are captured before the lookup, so a flush of any of the tags
// that lands between the fetch and the store leaves the stored value unreadable.
// Cache failures are logged and bypassed; only fetchFn errors reach the caller.
// Errors are never cached, except ErrMissingRecord when missing record storage
// is enabled.
func GetOrFetch[T any](ctx context.Context, c *Tagged, key string, opts StoreOptions, fetchFn FetchFn[T]) (T, error) {
	var zero T

	snap := c.Snapshot(opts.Tags...)

	value, ok, err := c.Get(ctx, key)
	if err != nil {
		c.warn("get", key, err)
	}
	if ok {
		if value.Missing {
			return zero, ErrMissingRecord
		}
		var out T
		derr := decodePayload(value.Payload, &out)
		if derr == nil {
			return out, nil
		}
		c.logger.WithField("key", key).WithError(derr).Warn("cached payload does not decode, fetching")
	}

	result, err := fetchFn(ctx)
	if err != nil {
		if c.storeMissing && errors.Is(err, ErrMissingRecord) {
			if serr := c.PutSnapshot(ctx, key, Value{Missing: true}, snap, opts.TTL); serr != nil {
				c.warn("set", key, serr)
			}
		}
		return zero, err
	}

	payload, err := msgpack.Marshal(result)
	if err != nil {
		c.logger.WithField("key", key).WithError(err).Warn("result is not cacheable")
		return result, nil
	}

	if err := c.PutSnapshot(ctx, key, Value{Payload: payload}, snap, opts.TTL); err != nil {
		c.warn("set", key, err)
	}

	return result, nil
}

func decodePayload(payload []byte, out any) error {
	if err := msgpack.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResultType, err)
	}
	return nil
}
