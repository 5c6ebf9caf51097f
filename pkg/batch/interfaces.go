package batch

import (
	"fmt"
	"time"

	"logitrack/pkg/cache"
)

// Invalidator receives coalesced invalidations. *cache.Cache satisfies it.
type Invalidator interface {
	Invalidate(prefix cache.Key) int
}

// BatchStats provides statistics about coalescing
type BatchStats struct {
	BatchesProcessed int           `json:"batchesProcessed"`
	AverageSize      float64       `json:"averageSize"`
	ProcessingTime   time.Duration `json:"processingTime"`
	TotalReceived    int64         `json:"totalReceived"`
	TotalForwarded   int64         `json:"totalForwarded"`
	DedupeRate       float64       `json:"dedupeRate"`
	Overflowed       int64         `json:"overflowed"`
	LastProcessedAt  time.Time     `json:"lastProcessedAt"`
}

// BatchConfig holds configuration for invalidation coalescing
type BatchConfig struct {
	MaxBatchSize  int           `json:"maxBatchSize"`  // distinct pending keys that force an early flush
	BatchInterval time.Duration `json:"batchInterval"` // coalescing window
	QueueSize     int           `json:"queueSize"`     // buffered keys before senders bypass the window
}

var (
	ErrInvalidBatchSize     = fmt.Errorf("invalid batch size: must be greater than 0")
	ErrInvalidBatchInterval = fmt.Errorf("invalid batch interval: must be greater than 0")
	ErrInvalidQueueSize     = fmt.Errorf("invalid queue size: must be greater than 0")
)
