// Package cache memoizes computed comparison results so repeated API requests
// for the same loan skip the simulation.
package cache

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/iwvelando/loan-simulator/pkg/constants"
)

// Backend names accepted in the server configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Cache stores opaque result payloads by key.
type Cache interface {
	// Get returns the stored value and whether it was found. A miss is not an
	// error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A ttl of zero keeps the value until it is
	// evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config selects and tunes a cache backend.
type Config struct {
	Backend    string        `yaml:"backend"`
	Address    string        `yaml:"address"`
	Prefix     string        `yaml:"prefix"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.TTL <= 0 {
		c.TTL = constants.DefaultCacheTTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = constants.DefaultCacheMaxEntries
	}
	if c.Prefix == "" {
		c.Prefix = "loan-simulator:"
	}
}

// New builds the backend named in cfg.
func New(cfg Config) (Cache, error) {
	cfg.Normalize()
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(cfg.MaxEntries), nil
	case BackendRedis:
		if strings.TrimSpace(cfg.Address) == "" {
			return nil, fmt.Errorf("redis cache requires an address")
		}
		return NewRedis(cfg.Address, cfg.Prefix), nil
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

// Close releases c when the backend holds connections. Backends without
// resources are left alone.
func Close(c Cache) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Key derives a cache key from a namespace and the canonical request bytes.
func Key(namespace string, payload []byte) string {
	return fmt.Sprintf("%s:%016x", namespace, xxhash.Sum64(payload))
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
