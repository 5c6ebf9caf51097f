package batch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"logitrack/pkg/cache"
)

// MockInvalidator is a mock implementation of Invalidator
type MockInvalidator struct {
	mock.Mock
	mu sync.Mutex
}

func (m *MockInvalidator) Invalidate(prefix cache.Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(prefix.String())
	return args.Int(0)
}

func (m *MockInvalidator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func TestNewCoalescer(t *testing.T) {
	config := BatchConfig{MaxBatchSize: 10, BatchInterval: time.Second, QueueSize: 8}
	c := NewCoalescer(config, &MockInvalidator{})

	assert.NotNil(t, c)
	assert.Equal(t, 10, c.config.MaxBatchSize)
	assert.Equal(t, 8, cap(c.updateChan))
	assert.Zero(t, c.Pending())
}

func TestCoalescer_DedupesWithinWindow(t *testing.T) {
	target := &MockInvalidator{}
	target.On("Invalidate", "alerts").Return(1).Once()
	target.On("Invalidate", "dashboard-kpis").Return(1).Once()

	c := NewCoalescer(BatchConfig{MaxBatchSize: 100, BatchInterval: time.Hour, QueueSize: 64}, target)
	for i := 0; i < 10; i++ {
		c.Invalidate(cache.K("alerts"))
		c.Invalidate(cache.K("dashboard-kpis"))
	}
	c.drain()
	assert.Equal(t, 2, c.Pending())
	assert.Equal(t, 2, c.Flush())
	target.AssertExpectations(t)

	stats := c.GetBatchStats()
	assert.Equal(t, int64(20), stats.TotalReceived)
	assert.Equal(t, int64(2), stats.TotalForwarded)
	assert.InDelta(t, 0.9, stats.DedupeRate, 0.001)
}

func TestCoalescer_PrefixSubsumesLongerKeys(t *testing.T) {
	target := &MockInvalidator{}
	target.On("Invalidate", "telemetry:V").Return(2).Once()
	target.On("Invalidate", "telemetry:latest").Return(1).Once()

	c := NewCoalescer(DefaultBatchConfig(), target)
	c.add(cache.K("telemetry", "V", "history", "24"))
	c.add(cache.K("telemetry", "V"))
	c.add(cache.K("telemetry", "latest"))

	assert.Equal(t, 2, c.Flush())
	assert.Zero(t, c.Flush())
	target.AssertExpectations(t)
}

func TestCoalescer_FlushesWhenBatchIsFull(t *testing.T) {
	target := &MockInvalidator{}
	target.On("Invalidate", mock.Anything).Return(1)

	c := NewCoalescer(BatchConfig{MaxBatchSize: 2, BatchInterval: time.Hour, QueueSize: 8}, target)
	require.NoError(t, c.Start())
	defer c.Stop()

	c.Invalidate(cache.K("vehicles"))
	c.Invalidate(cache.K("drivers"))

	require.Eventually(t, func() bool { return target.calls() == 2 }, time.Second, 5*time.Millisecond)
}

func TestCoalescer_OverflowBypassesWindow(t *testing.T) {
	target := &MockInvalidator{}
	target.On("Invalidate", "routes").Return(3)

	// not started, so the single queue slot stays occupied
	c := NewCoalescer(BatchConfig{MaxBatchSize: 10, BatchInterval: time.Hour, QueueSize: 1}, target)
	assert.Equal(t, 0, c.Invalidate(cache.K("routes")))
	assert.Equal(t, 3, c.Invalidate(cache.K("routes")))
	assert.Equal(t, int64(1), c.GetBatchStats().Overflowed)
}

func TestCoalescer_StopFlushesPending(t *testing.T) {
	target := &MockInvalidator{}
	target.On("Invalidate", "fuel-stats").Return(1).Once()

	c := NewCoalescer(BatchConfig{MaxBatchSize: 10, BatchInterval: time.Hour, QueueSize: 8}, target)
	require.NoError(t, c.Start())
	c.Invalidate(cache.K("fuel-stats"))
	require.NoError(t, c.Stop())

	target.AssertExpectations(t)

	// after Stop keys go straight through
	target.On("Invalidate", "vehicles").Return(1).Once()
	assert.Equal(t, 1, c.Invalidate(cache.K("vehicles")))
}

func TestCoalescer_ForwardsToCache(t *testing.T) {
	qc := cache.New(cache.DefaultCacheConfig())
	defer qc.Close()

	c := NewCoalescer(DefaultBatchConfig(), qc)
	c.add(cache.K("vehicles"))
	assert.Equal(t, 1, c.Flush())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		config BatchConfig
		want   error
	}{
		{"valid", DefaultBatchConfig(), nil},
		{"zero batch", BatchConfig{MaxBatchSize: 0, BatchInterval: time.Second, QueueSize: 1}, ErrInvalidBatchSize},
		{"zero window", BatchConfig{MaxBatchSize: 1, BatchInterval: 0, QueueSize: 1}, ErrInvalidBatchInterval},
		{"zero queue", BatchConfig{MaxBatchSize: 1, BatchInterval: time.Second, QueueSize: 0}, ErrInvalidQueueSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateConfig(tt.config))
		})
	}
}

func TestLoadBatchConfigFromEnv(t *testing.T) {
	t.Setenv("INVALIDATION_WINDOW", "2s")
	t.Setenv("INVALIDATION_MAX_BATCH", "7")
	t.Setenv("INVALIDATION_QUEUE_SIZE", "not-a-number")

	config := LoadBatchConfigFromEnv()
	assert.Equal(t, 2*time.Second, config.BatchInterval)
	assert.Equal(t, 7, config.MaxBatchSize)
	assert.Equal(t, DefaultBatchConfig().QueueSize, config.QueueSize)
}
