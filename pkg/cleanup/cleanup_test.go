package cleanup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/pkg/cache"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep(now time.Time) int {
	c.calls.Add(1)
	return 1
}

func TestCleanupService_SweepsOnInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	svc := NewCleanupService(sweeper, 5*time.Millisecond)
	go svc.Start()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, time.Millisecond)
	svc.Stop()
	svc.Stop()

	after := sweeper.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, sweeper.calls.Load())
}

func TestCleanupService_RunOnceAgainstCache(t *testing.T) {
	cfg := cache.DefaultCacheConfig()
	cfg.GCTime = time.Minute
	qc := cache.New(cfg)
	defer qc.Close()

	cache.Query(t.Context(), qc, cache.K("vehicles"), func(ctx context.Context) (int, error) { return 1, nil }, cache.Options{})
	require.Equal(t, 1, qc.Len())

	svc := NewCleanupService(qc, time.Hour)
	assert.Zero(t, svc.RunOnce())

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, svc.RunOnce())
	assert.Zero(t, qc.Len())
}
