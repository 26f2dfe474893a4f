package di

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/goliatone/go-repository-finder/cache"
	"github.com/goliatone/go-repository-finder/repositorycache"
)

// Container provides dependency injection for cache related components.
// It owns a single tagged cache and key deriver shared by every repository it
// creates, so tags and the untagged fallback behave the same across them.
type Container struct {
	cache  *cache.Tagged
	keys   cache.KeyDeriver
	config cache.Config
	logger logrus.FieldLogger
}

// ContainerOption configures a Container.
type ContainerOption func(*Container)

// WithLogger sets the logger handed to the cache and to repositories that do
// not bring their own.
func WithLogger(logger logrus.FieldLogger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKeyDeriver replaces the SHA-256 key deriver.
func WithKeyDeriver(keys cache.KeyDeriver) ContainerOption {
	return func(c *Container) {
		if keys != nil {
			c.keys = keys
		}
	}
}

// NewContainer creates a new DI container with the provided cache configuration.
func NewContainer(config cache.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		keys:   cache.NewDefaultKeyDeriver(),
		config: config,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	tagged, err := cache.NewTaggedCache(config, cache.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	c.cache = tagged

	return c, nil
}

// NewContainerWithDefaults creates a new DI container using default configuration.
func NewContainerWithDefaults(opts ...ContainerOption) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// NewContainerFromViper loads the cache section of v, environment overrides
// included, and creates a container from it.
func NewContainerFromViper(v *viper.Viper, opts ...ContainerOption) (*Container, error) {
	config, err := cache.LoadConfig(v)
	if err != nil {
		return nil, err
	}
	return NewContainer(config, opts...)
}

// Cache returns the shared tagged cache.
func (c *Container) Cache() *cache.Tagged {
	return c.cache
}

// KeyDeriver returns the shared key deriver.
func (c *Container) KeyDeriver() cache.KeyDeriver {
	return c.keys
}

// Config returns a copy of the cache configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Close releases the cache backend.
func (c *Container) Close() error {
	return c.cache.Close()
}

// NewRepository creates a repository over exec backed by the container's cache.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewRepository[Ticket](container, exec, repositorycache.Options{Tag: "tickets"})
func NewRepository[T any](container *Container, exec repositorycache.Executor[T], opts repositorycache.Options) *repositorycache.Repository[T] {
	if opts.Logger == nil {
		opts.Logger = container.logger
	}
	return repositorycache.New(exec, container.cache, container.keys, opts)
}
