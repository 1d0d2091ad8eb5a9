package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Config holds cache configuration.
type Config struct {
	// TTL is how long a response stays valid in either layer.
	TTL time.Duration

	// MemorySize is the number of entries kept in process (0 disables the memory layer).
	MemorySize int
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:        24 * time.Hour,
		MemorySize: 256,
	}
}

// Manager handles caching operations with a memory layer in front of Redis.
type Manager struct {
	redis  *redis.Client
	memory *expirable.LRU[string, *CacheEntry]
	config Config
}

// NewManager creates a new cache manager. redisClient may be nil.
func NewManager(redisClient *redis.Client, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	m := &Manager{
		redis:  redisClient,
		config: cfg,
	}
	if cfg.MemorySize > 0 {
		m.memory = expirable.NewLRU[string, *CacheEntry](cfg.MemorySize, nil, cfg.TTL)
	}
	return m
}

// Get retrieves a cached body for rawURL.
// Returns ErrCacheMiss if no layer holds a live entry.
func (m *Manager) Get(ctx context.Context, rawURL string) (string, error) {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return "", err
	}
	cacheKey := key.String()

	if m.memory != nil {
		if entry, ok := m.memory.Get(cacheKey); ok && !entry.IsExpired() {
			CacheHits.WithLabelValues("memory").Inc()
			return entry.Body, nil
		}
	}

	if m.redis == nil {
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return "", ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return "", fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return "", fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, rawURL)
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	if m.memory != nil {
		m.memory.Add(cacheKey, &entry)
	}

	return entry.Body, nil
}

// Set stores body for rawURL in every enabled layer.
func (m *Manager) Set(ctx context.Context, rawURL, body string) error {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}
	cacheKey := key.String()

	now := time.Now()
	entry := &CacheEntry{
		Body:     body,
		URL:      key.URL(),
		Expires:  now.Add(m.config.TTL),
		CachedAt: now,
	}

	if m.memory != nil {
		m.memory.Add(cacheKey, entry)
	}

	if m.redis == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, cacheKey, data, m.config.TTL).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(data)))

	return nil
}

// Delete removes the entry for rawURL from every layer.
func (m *Manager) Delete(ctx context.Context, rawURL string) error {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	cacheKey := key.String()

	if m.memory != nil {
		m.memory.Remove(cacheKey)
	}

	if m.redis == nil {
		return nil
	}

	if err := m.redis.Del(ctx, cacheKey).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}
