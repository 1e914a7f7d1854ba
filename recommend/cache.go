package recommend

import "time"

// RulesCache caches the active rule list between mutations.
type RulesCache interface {
	// Get retrieves cached rules, returns nil if cache miss or expired
	Get() []*Rule

	// Set stores rules in cache
	Set(rules []*Rule)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means no expiry; mutations through the Engine still invalidate.
	TTL time.Duration
}

// DefaultCacheConfig disables expiry.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
