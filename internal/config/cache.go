package config

import "time"

// CacheConfig tunes the Redis response cache applied to public catalog
// and listing endpoints.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration // how long cached responses live
	Prefix  string        // redis key prefix
}

// LoadCacheConfig reads response-cache settings from the environment.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 30*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "respcache"),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return cfg
}
