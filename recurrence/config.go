package recurrence

import (
	"time"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxExpansionOccurrences caps Expand when the call leaves
	// ExpansionOptions.MaxOccurrences at 0, and bounds how many in-range
	// candidates HasOccurrenceInRange inspects before giving up.
	MaxExpansionOccurrences int
	// Expand windows longer than LargeRangeThreshold are cut down to
	// LargeRangeLimit from their start.
	LargeRangeThreshold time.Duration
	LargeRangeLimit     time.Duration
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxExpansionOccurrences: 100,
	LargeRangeThreshold:     2 * 365 * 24 * time.Hour,
	LargeRangeLimit:         2 * 365 * 24 * time.Hour,
}

// HighPerformanceConfig is optimized for high-traffic scenarios
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:        30 * time.Minute,
		MaxEntries: 5000,
	},

	MaxExpansionOccurrences: 50,
	LargeRangeThreshold:     90 * 24 * time.Hour,
	LargeRangeLimit:         90 * 24 * time.Hour,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:        5 * time.Minute,
		MaxEntries: 100,
	},

	MaxExpansionOccurrences: 200,
	LargeRangeThreshold:     180 * 24 * time.Hour,
	LargeRangeLimit:         180 * 24 * time.Hour,
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,

	MaxExpansionOccurrences: 1000,
	LargeRangeThreshold:     5 * 365 * 24 * time.Hour,
	LargeRangeLimit:         5 * 365 * 24 * time.Hour,
}

// Preset returns one of the named configurations: "default",
// "high-performance", "low-memory" or "no-cache".
func Preset(name string) (EngineConfig, bool) {
	switch name {
	case "", "default":
		return DefaultEngineConfig, true
	case "high-performance":
		return HighPerformanceConfig, true
	case "low-memory":
		return LowMemoryConfig, true
	case "no-cache":
		return DisabledCacheConfig, true
	}
	return EngineConfig{}, false
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig) *Engine {
	return NewEngine(WithConfig(config))
}
