package batch

import (
	"os"
	"strconv"
	"time"
)

// DefaultBatchConfig returns the default configuration for invalidation coalescing
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:  100,
		BatchInterval: 250 * time.Millisecond,
		QueueSize:     1024,
	}
}

// LoadBatchConfigFromEnv loads coalescing configuration from environment variables
func LoadBatchConfigFromEnv() BatchConfig {
	config := DefaultBatchConfig()

	if val := os.Getenv("INVALIDATION_MAX_BATCH"); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			config.MaxBatchSize = size
		}
	}

	if val := os.Getenv("INVALIDATION_WINDOW"); val != "" {
		if interval, err := time.ParseDuration(val); err == nil {
			config.BatchInterval = interval
		}
	}

	if val := os.Getenv("INVALIDATION_QUEUE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			config.QueueSize = size
		}
	}

	return config
}

// ValidateConfig validates the coalescing configuration
func ValidateConfig(config BatchConfig) error {
	if config.MaxBatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if config.BatchInterval <= 0 {
		return ErrInvalidBatchInterval
	}
	if config.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}
	return nil
}
