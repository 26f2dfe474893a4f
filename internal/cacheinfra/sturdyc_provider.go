package cacheinfra

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// SturdycConfig holds the configuration for the in-memory sturdyc provider.
type SturdycConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the lifetime sturdyc enforces for every entry. Per entry TTLs are
	// enforced by the tagged cache on read and cannot extend past this value.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	// Default: 10 (evict 10% of entries)
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultSturdycConfig returns a SturdycConfig with sensible defaults for most use cases.
func DefaultSturdycConfig() SturdycConfig {
	return SturdycConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EvictionInterval:   0, // Use default
	}
}

// Validate checks if the configuration values are valid.
// Field errors are returned as validation.Errors keyed by field name.
func (c SturdycConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
}

// ToSturdycOptions converts the optional parts of the config to sturdyc options.
// Capacity, NumShards, TTL, and EvictionPercentage are passed directly to sturdyc.New.
func (c SturdycConfig) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// SturdycProvider is an in-process byte store backed by a sharded sturdyc client.
type SturdycProvider struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycProvider validates the configuration and initializes a sturdyc client.
//
// Version compatibility note: This implementation assumes sturdyc v1.x API.
func NewSturdycProvider(cfg SturdycConfig) (*SturdycProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycProvider{client: client}, nil
}

// Get returns the stored bytes for key. The in-memory store never fails.
func (p *SturdycProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := p.client.Get(key)
	return value, ok, nil
}

// Set stores value under key for the client TTL. The ttl argument is ignored,
// callers bound their TTLs to SturdycConfig.TTL.
func (p *SturdycProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	p.client.Set(key, value)
	return nil
}

// Delete removes a single entry.
func (p *SturdycProvider) Delete(_ context.Context, key string) error {
	p.client.Delete(key)
	return nil
}

// Size returns the number of entries currently held by the client.
func (p *SturdycProvider) Size() int {
	return p.client.Size()
}
