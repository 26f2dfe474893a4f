package cache

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/goliatone/go-repository-finder/internal/cacheinfra"
)

// Backends understood by NewTaggedCache.
const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
)

// EnvPrefix is the prefix LoadConfig uses for environment overrides,
// e.g. REPOSITORY_CACHE_TTL or REPOSITORY_CACHE_VALKEY_ADDRESS.
const EnvPrefix = "repository"

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// Backend selects the provider: "memory" (default) or "valkey".
	Backend              string        `mapstructure:"backend"`
	Capacity             int           `mapstructure:"capacity"`
	NumShards            int           `mapstructure:"num_shards"`
	TTL                  time.Duration `mapstructure:"ttl"`
	EvictionPercentage   int           `mapstructure:"eviction_percentage"`
	EvictionInterval     time.Duration `mapstructure:"eviction_interval"`
	MissingRecordStorage bool          `mapstructure:"missing_record_storage"`
	Valkey               ValkeyConfig  `mapstructure:"valkey"`
}

// ValkeyConfig configures the remote provider.
type ValkeyConfig struct {
	Address        string        `mapstructure:"address"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	KeyPrefix      string        `mapstructure:"key_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	mem := cacheinfra.DefaultSturdycConfig()
	return Config{
		Backend:            BackendMemory,
		Capacity:           mem.Capacity,
		NumShards:          mem.NumShards,
		TTL:                mem.TTL,
		EvictionPercentage: mem.EvictionPercentage,
		EvictionInterval:   mem.EvictionInterval,
		Valkey: ValkeyConfig{
			KeyPrefix:      "repository",
			ConnectTimeout: cacheinfra.DefaultConnectTimeout,
		},
	}
}

// Validate checks whether the configuration values are valid for the selected backend.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendValkey)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
	); err != nil {
		return err
	}

	if c.Backend == BackendValkey {
		return c.valkeyConfig().Validate()
	}
	return c.sturdycConfig().Validate()
}

// LoadConfig reads the "cache" section of v on top of DefaultConfig.
// Environment variables prefixed with REPOSITORY_CACHE_ override file values.
func LoadConfig(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	def := DefaultConfig()
	v.SetDefault("cache.backend", def.Backend)
	v.SetDefault("cache.capacity", def.Capacity)
	v.SetDefault("cache.num_shards", def.NumShards)
	v.SetDefault("cache.ttl", def.TTL)
	v.SetDefault("cache.eviction_percentage", def.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", def.EvictionInterval)
	v.SetDefault("cache.missing_record_storage", def.MissingRecordStorage)
	v.SetDefault("cache.valkey.address", def.Valkey.Address)
	v.SetDefault("cache.valkey.password", def.Valkey.Password)
	v.SetDefault("cache.valkey.db", def.Valkey.DB)
	v.SetDefault("cache.valkey.key_prefix", def.Valkey.KeyPrefix)
	v.SetDefault("cache.valkey.connect_timeout", def.Valkey.ConnectTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal goes through AllSettings, which is what applies env overrides
	// to nested keys.
	var doc struct {
		Cache Config `mapstructure:"cache"`
	}
	if err := v.Unmarshal(&doc); err != nil {
		return Config{}, fmt.Errorf("cache: decode config: %w", err)
	}
	cfg := doc.Cache

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewTaggedCache validates cfg and builds a tagged cache over the configured
// provider. The returned cache owns the provider and releases it on Close.
func NewTaggedCache(cfg Config, opts ...Option) (*Tagged, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := []Option{WithTTL(cfg.TTL), WithMissingRecordStorage(cfg.MissingRecordStorage)}
	opts = append(base, opts...)

	switch cfg.Backend {
	case BackendValkey:
		provider, err := cacheinfra.NewValkeyProvider(cfg.valkeyConfig())
		if err != nil {
			return nil, &UnavailableError{Op: "connect", Err: err}
		}
		c := New(provider, opts...)
		c.closer = provider.Close
		return c, nil
	default:
		provider, err := cacheinfra.NewSturdycProvider(cfg.sturdycConfig())
		if err != nil {
			return nil, err
		}
		// sturdyc holds every entry for its client TTL at most.
		opts = append([]Option{WithMaxTTL(cfg.TTL)}, opts...)
		return New(provider, opts...), nil
	}
}

func (c Config) sturdycConfig() cacheinfra.SturdycConfig {
	return cacheinfra.SturdycConfig{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func (c Config) valkeyConfig() cacheinfra.ValkeyConfig {
	return cacheinfra.ValkeyConfig{
		Address:        c.Valkey.Address,
		Password:       c.Valkey.Password,
		DB:             c.Valkey.DB,
		KeyPrefix:      c.Valkey.KeyPrefix,
		ConnectTimeout: c.Valkey.ConnectTimeout,
	}
}
