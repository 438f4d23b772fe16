// Package cache keeps API keys fetched from remote sources in the system
// keyring for a limited time, so repeated test runs do not hit Vault or
// AWS on every start.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name used for keyring storage
	KeyringService = "ayonfixt-cache"
	// DefaultTTL is the default cache TTL
	DefaultTTL = 15 * time.Minute

	storeUser = "api-keys"
)

// Entry is one cached API key
type Entry struct {
	APIKey    string    `json:"api_key"`
	ExpiresAt time.Time `json:"expires_at"`
	CachedAt  time.Time `json:"cached_at"`
}

type store struct {
	Entries map[string]*Entry `json:"entries"`
}

// Cache stores API keys with a TTL
type Cache struct {
	ttl             time.Duration
	now             func() time.Time
	keyringDisabled bool
	keyringOnce     sync.Once
	mu              sync.Mutex
}

// Option is a functional option for configuring the Cache
type Option func(*Cache)

// WithTTL sets a custom TTL for the cache
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a new Cache instance
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives a deterministic cache key from the source kind, the server
// and the source settings.
func Key(kind, serverURL string, config map[string]any) string {
	keys := slices.Sorted(maps.Keys(config))
	ordered := make([][2]any, 0, len(keys))
	for _, k := range keys {
		if k == "token" || k == "cache_ttl" {
			continue
		}
		ordered = append(ordered, [2]any{k, config[k]})
	}

	data, err := json.Marshal(map[string]any{
		"kind":   kind,
		"server": serverURL,
		"config": ordered,
	})
	if err != nil {
		return kind + "|" + serverURL
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns a cached API key that has not expired
func (c *Cache) Get(key string) (string, bool) {
	if !c.IsAvailable() {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.load()
	if s == nil {
		return "", false
	}
	entry, ok := s.Entries[key]
	if !ok || entry == nil {
		return "", false
	}
	if c.now().After(entry.ExpiresAt) {
		delete(s.Entries, key)
		_ = c.save(s)
		return "", false
	}
	return entry.APIKey, true
}

// Set stores an API key. Without a keyring this is a no-op.
func (c *Cache) Set(key, apiKey string) error {
	if !c.IsAvailable() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.load()
	if s == nil || s.Entries == nil {
		s = &store{Entries: make(map[string]*Entry)}
	}
	now := c.now()
	s.Entries[key] = &Entry{APIKey: apiKey, CachedAt: now, ExpiresAt: now.Add(c.ttl)}
	return c.save(s)
}

// Clear removes all cached keys
func (c *Cache) Clear() error {
	if !c.IsAvailable() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := keyring.Delete(KeyringService, storeUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove cache from keyring: %w", err)
	}
	return nil
}

// Stats returns the number of valid and expired entries
func (c *Cache) Stats() (valid int, expired int) {
	if !c.IsAvailable() {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.load()
	if s == nil {
		return 0, 0
	}
	now := c.now()
	for _, e := range s.Entries {
		if e == nil {
			continue
		}
		if now.After(e.ExpiresAt) {
			expired++
		} else {
			valid++
		}
	}
	return valid, expired
}

// TTL returns the configured TTL
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// IsAvailable reports whether the keyring can be used on this system
func (c *Cache) IsAvailable() bool {
	c.keyringOnce.Do(func() {
		_, err := keyring.Get(KeyringService, "test-availability")
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			c.keyringDisabled = true
		}
	})
	return !c.keyringDisabled
}

func (c *Cache) load() *store {
	data, err := keyring.Get(KeyringService, storeUser)
	if err != nil {
		return nil
	}
	var s store
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		_ = keyring.Delete(KeyringService, storeUser)
		return nil
	}
	return &s
}

func (c *Cache) save(s *store) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal cache store: %w", err)
	}
	if err := keyring.Set(KeyringService, storeUser, string(data)); err != nil {
		return fmt.Errorf("failed to save cache to keyring: %w", err)
	}
	return nil
}
