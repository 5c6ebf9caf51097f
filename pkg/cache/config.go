package cache

import "time"

// CacheConfig holds the freshness, retry and bounding policy of a Cache.
type CacheConfig struct {
	StaleTime    time.Duration `json:"staleTime"`    // data younger than this is served without refetch
	FetchTimeout time.Duration `json:"fetchTimeout"` // bound on a single fetch attempt
	MaxEntries   int           `json:"maxEntries"`   // LRU bound
	Retry        int           `json:"retry"`        // extra attempts for transient failures
	RetryBackoff time.Duration `json:"retryBackoff"` // base delay, doubled each attempt
	GCTime       time.Duration `json:"gcTime"`       // idle unobserved entries older than this are swept
	SurfaceAfter int           `json:"surfaceAfter"` // consecutive failures before an error shows next to data
	KeyPrefix    string        `json:"keyPrefix"`    // prefix for shared tier keys
	TagPrefix    string        `json:"tagPrefix"`    // prefix for shared tier tag sets
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		StaleTime:    30 * time.Second,
		FetchTimeout: 10 * time.Second,
		MaxEntries:   1000,
		Retry:        3,
		RetryBackoff: 500 * time.Millisecond,
		GCTime:       5 * time.Minute,
		SurfaceAfter: 3,
		KeyPrefix:    "logitrack:",
		TagPrefix:    "logitrack-tag:",
	}
}

// Options tune a single query. Zero values fall back to the CacheConfig.
type Options struct {
	// StaleTime overrides CacheConfig.StaleTime when positive.
	StaleTime time.Duration
	// RefetchInterval refreshes observed entries on a fixed period.
	RefetchInterval time.Duration
	// Retry overrides CacheConfig.Retry when positive; negative disables retries.
	Retry int

	// decode turns a shared tier value back into the fetched type.
	decode func([]byte) (interface{}, error)
}

func (c CacheConfig) staleTime(o Options) time.Duration {
	if o.StaleTime > 0 {
		return o.StaleTime
	}
	return c.StaleTime
}

func (c CacheConfig) retries(o Options) int {
	switch {
	case o.Retry < 0:
		return 0
	case o.Retry > 0:
		return o.Retry
	default:
		return c.Retry
	}
}
