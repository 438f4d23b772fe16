// Package credentials resolves the AYON API key from the configured source.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ynput/ayonfixt/internal/cache"
	"github.com/ynput/ayonfixt/internal/config"
)

// Request carries what a source needs to look a key up
type Request struct {
	ServerURL string
	// Config holds the source specific settings from api_key_source
	Config map[string]any
	// Inline is the key from the config file, dotenv or environment
	Inline string
}

// Source is the interface that all API key sources must implement
type Source interface {
	// Kind returns the api_key_source kind this source serves
	Kind() string

	// APIKey returns the key or an error explaining what is missing
	APIKey(ctx context.Context, req Request) (string, error)
}

// Remote sources are worth caching in the keyring
type Remote interface {
	Remote() bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Source)
)

// Register registers a source factory function
func Register(kind string, factory func() Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// New creates a new source instance by kind
func New(kind string) (Source, error) {
	registryMu.RLock()
	factory, exists := registry[kind]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown api key source kind: %s", kind)
	}
	return factory(), nil
}

// List returns all registered source kinds, sorted
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

func init() {
	Register(config.SourceEnv, func() Source { return &EnvSource{} })
	Register(config.SourceKeyring, func() Source { return &KeyringSource{} })
	Register(config.SourceVault, func() Source { return &VaultSource{} })
	Register(config.SourceAWSSecretsManager, func() Source { return &SecretsManagerSource{} })
}

// Resolver resolves API keys, optionally caching remote lookups
type Resolver struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// Option configures the Resolver
type Option func(*Resolver)

// WithCache caches keys from remote sources
func WithCache(c *cache.Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "credentials")
	return r
}

// Resolve returns the API key for cfg. A key set inline (config file,
// dotenv or AYON_API_KEY) always wins over the configured source.
func (r *Resolver) Resolve(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.APIKey != "" {
		r.logger.Debug("using inline API key")
		return cfg.APIKey, nil
	}

	kind := cfg.APIKeySource.Kind
	src, err := New(kind)
	if err != nil {
		return "", err
	}

	req := Request{ServerURL: cfg.ServerURL, Config: cfg.APIKeySource.Config, Inline: cfg.APIKey}

	remote, _ := src.(Remote)
	useCache := r.cache != nil && remote != nil && remote.Remote()
	cacheKey := ""
	if useCache {
		cacheKey = cache.Key(kind, cfg.ServerURL, req.Config)
		if key, ok := r.cache.Get(cacheKey); ok {
			r.logger.Debug("using cached API key", "source", kind)
			return key, nil
		}
	}

	key, err := src.APIKey(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get API key from %s: %w", kind, err)
	}
	if key == "" {
		return "", fmt.Errorf("api key source %s returned an empty key", kind)
	}
	r.logger.Debug("resolved API key", "source", kind)

	if useCache {
		if err := r.cache.Set(cacheKey, key); err != nil {
			r.logger.Warn("failed to cache API key", "source", kind, "error", err)
		}
	}
	return key, nil
}

// Resolve is a shorthand for NewResolver().Resolve
func Resolve(ctx context.Context, cfg *config.Config) (string, error) {
	return NewResolver().Resolve(ctx, cfg)
}

// decode converts the free-form source settings to a typed struct
func decode[T any](m map[string]any) (*T, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var cfg T
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// stringValue renders a secret field as a string
func stringValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case nil:
		return "", nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
