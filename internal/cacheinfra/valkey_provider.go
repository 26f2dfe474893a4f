package cacheinfra

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	valkeylib "github.com/valkey-io/valkey-go"
)

// DefaultConnectTimeout is the maximum time to wait for the initial ping.
const DefaultConnectTimeout = 5 * time.Second

// ValkeyConfig holds the configuration for the Valkey provider.
type ValkeyConfig struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration // Optional, defaults to DefaultConnectTimeout
}

// Validate checks if the configuration values are valid.
func (c ValkeyConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Address, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.ConnectTimeout, validation.Min(time.Duration(0))),
	)
}

// ValkeyProvider stores cache entries in Valkey (or any RESP compatible server).
// Keys are namespaced with the configured prefix.
type ValkeyProvider struct {
	client valkeylib.Client
	prefix string
}

// NewValkeyProvider connects to Valkey and verifies the connection with a ping.
// The caller is responsible for calling Close when done.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}

	return NewValkeyProviderFromClient(client, cfg.KeyPrefix), nil
}

// NewValkeyProviderFromClient wraps an existing client. Close closes it.
func NewValkeyProviderFromClient(client valkeylib.Client, keyPrefix string) *ValkeyProvider {
	prefix := keyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &ValkeyProvider{client: client, prefix: prefix}
}

func (p *ValkeyProvider) fullKey(key string) string {
	return p.prefix + key
}

// Get returns the stored bytes for key; a NIL reply is a miss.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cmd := p.client.B().Get().Key(p.fullKey(key)).Build()

	data, err := p.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return data, true, nil
}

// Set stores value with an expiry when ttl is positive.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		cmd := p.client.B().Set().Key(p.fullKey(key)).Value(string(value)).Px(ttl).Build()
		err = p.client.Do(ctx, cmd).Error()
	} else {
		cmd := p.client.B().Set().Key(p.fullKey(key)).Value(string(value)).Build()
		err = p.client.Do(ctx, cmd).Error()
	}
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Delete removes a single entry.
func (p *ValkeyProvider) Delete(ctx context.Context, key string) error {
	cmd := p.client.B().Del().Key(p.fullKey(key)).Build()
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Close closes the Valkey connection.
func (p *ValkeyProvider) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
