package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"logitrack/pkg/cache"
	"logitrack/pkg/log"
)

// Coalescer collects invalidations for a short window and forwards each
// distinct key once. A key already covered by a pending prefix is dropped, so
// a burst of row changes on one table costs one refetch per cached query.
type Coalescer struct {
	config BatchConfig
	target Invalidator
	logger zerolog.Logger

	pending    map[string]cache.Key
	pendingMux sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	workerWg sync.WaitGroup

	stats    BatchStats
	statsMux sync.RWMutex

	updateChan chan cache.Key
}

func NewCoalescer(config BatchConfig, target Invalidator) *Coalescer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer{
		config:     config,
		target:     target,
		logger:     log.WithComponent("coalescer"),
		pending:    make(map[string]cache.Key),
		ctx:        ctx,
		cancel:     cancel,
		updateChan: make(chan cache.Key, config.QueueSize),
	}
}

// Invalidate queues key for the next flush. When the queue is full or the
// coalescer is stopped the key goes straight to the target, so an
// invalidation is never lost. The return value is always 0 for queued keys.
func (bp *Coalescer) Invalidate(key cache.Key) int {
	bp.statsMux.Lock()
	bp.stats.TotalReceived++
	bp.statsMux.Unlock()

	if bp.ctx.Err() == nil {
		select {
		case bp.updateChan <- key:
			return 0
		default:
		}
	}

	bp.statsMux.Lock()
	bp.stats.Overflowed++
	bp.stats.TotalForwarded++
	bp.statsMux.Unlock()
	bp.logger.Debug().Str("key", key.String()).Msg("Queue full, invalidating directly")
	return bp.target.Invalidate(key)
}

// Flush forwards every pending key and returns how many were sent.
func (bp *Coalescer) Flush() int {
	bp.pendingMux.Lock()
	current := bp.pending
	bp.pending = make(map[string]cache.Key)
	bp.pendingMux.Unlock()

	if len(current) == 0 {
		return 0
	}

	start := time.Now()
	keys := collapse(current)
	for _, k := range keys {
		bp.target.Invalidate(k)
	}
	bp.updateStats(len(keys), time.Since(start))
	return len(keys)
}

// collapse drops keys covered by a shorter pending prefix and orders the rest
// for deterministic delivery.
func collapse(pending map[string]cache.Key) []cache.Key {
	keys := make([]cache.Key, 0, len(pending))
	for _, k := range pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i].String() < keys[j].String()
	})

	out := keys[:0]
	for _, k := range keys {
		covered := false
		for _, kept := range out {
			if k.HasPrefix(kept) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, k)
		}
	}
	return out
}

func (bp *Coalescer) Start() error {
	bp.workerWg.Add(1)
	go bp.worker()
	bp.logger.Info().Dur("window", bp.config.BatchInterval).Msg("Invalidation coalescer started")
	return nil
}

// Stop flushes what is pending and stops the worker.
func (bp *Coalescer) Stop() error {
	bp.cancel()
	bp.workerWg.Wait()
	bp.logger.Info().Msg("Invalidation coalescer stopped")
	return nil
}

func (bp *Coalescer) worker() {
	defer bp.workerWg.Done()

	ticker := time.NewTicker(bp.config.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case key := <-bp.updateChan:
			if bp.add(key) >= bp.config.MaxBatchSize {
				bp.Flush()
			}

		case <-ticker.C:
			bp.Flush()

		case <-bp.ctx.Done():
			bp.drain()
			bp.Flush()
			return
		}
	}
}

func (bp *Coalescer) drain() {
	for {
		select {
		case key := <-bp.updateChan:
			bp.add(key)
		default:
			return
		}
	}
}

func (bp *Coalescer) add(key cache.Key) int {
	bp.pendingMux.Lock()
	defer bp.pendingMux.Unlock()
	bp.pending[key.String()] = key
	return len(bp.pending)
}

// Pending returns the number of distinct keys waiting for the next flush.
func (bp *Coalescer) Pending() int {
	bp.pendingMux.Lock()
	defer bp.pendingMux.Unlock()
	return len(bp.pending)
}

// GetBatchStats returns current coalescing statistics
func (bp *Coalescer) GetBatchStats() BatchStats {
	bp.statsMux.RLock()
	defer bp.statsMux.RUnlock()
	return bp.stats
}

func (bp *Coalescer) updateStats(forwarded int, processingTime time.Duration) {
	bp.statsMux.Lock()
	defer bp.statsMux.Unlock()

	bp.stats.BatchesProcessed++
	bp.stats.TotalForwarded += int64(forwarded)
	bp.stats.LastProcessedAt = time.Now()
	bp.stats.ProcessingTime = processingTime

	if bp.stats.BatchesProcessed > 0 {
		bp.stats.AverageSize = float64(bp.stats.TotalForwarded-bp.stats.Overflowed) / float64(bp.stats.BatchesProcessed)
	}
	if bp.stats.TotalReceived > 0 {
		bp.stats.DedupeRate = 1 - float64(bp.stats.TotalForwarded)/float64(bp.stats.TotalReceived)
	}
}
