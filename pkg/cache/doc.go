// Package cache stores successful search API responses so repeated crawls
// and repeated URLs within one crawl do not hit the network again.
//
// Two layers are consulted in order:
//
//   - an in-process expirable LRU (bounded by Config.MemorySize)
//   - Redis, shared across runs, with entries expiring after Config.TTL
//
// Either layer may be disabled: pass a nil Redis client for memory-only
// operation, or set MemorySize to 0 to go straight to Redis.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, cache.DefaultConfig())
//
//	body, err := manager.Get(ctx, pageURL)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then
//		_ = manager.Set(ctx, pageURL, body)
//	}
//
// # Keys
//
// Keys are derived from the request URL with credential parameters
// (api_key) removed and the remaining query parameters sorted, so the same
// logical page maps to the same key regardless of parameter order or which
// API key fetched it.
//
// # Metrics
//
//   - plos_cache_hits_total{layer="memory|redis"} - Cache hits
//   - plos_cache_misses_total - Cache misses
//   - plos_cache_size_bytes{layer="redis"} - Bytes written to Redis
//   - plos_cache_errors_total{operation} - Cache operation errors
package cache
