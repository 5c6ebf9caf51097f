package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisClient "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/internal/models"
	"logitrack/internal/store"
	"logitrack/internal/store/memstore"
	"logitrack/pkg/redis"
)

func newRedisFeed(t *testing.T) *RedisFeed {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisClient.NewClient(&redisClient.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisFeed(redis.Wrap(rdb))
}

func TestRedisFeed_PublishReachesMatchingSubscribers(t *testing.T) {
	feed := newRedisFeed(t)
	ctx := context.Background()

	v, w := &recorder{}, &recorder{}
	cancelV, err := feed.Subscribe(ctx, telemetryScope("V"), v.handle)
	require.NoError(t, err)
	defer cancelV()
	cancelW, err := feed.Subscribe(ctx, telemetryScope("W"), w.handle)
	require.NoError(t, err)
	defer cancelW()

	require.NoError(t, feed.Publish(ctx, store.Change{
		Table: models.TableTelemetry,
		Type:  store.EventInsert,
		ID:    "t1",
		Row:   map[string]interface{}{"vehicle_id": "V"},
		At:    time.Now(),
	}))

	require.Eventually(t, func() bool { return v.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, w.count())
}

func TestRedisFeed_CancelStopsDelivery(t *testing.T) {
	feed := newRedisFeed(t)
	ctx := context.Background()

	rec := &recorder{}
	cancel, err := feed.Subscribe(ctx, store.Scope{Table: models.TableAlerts}, rec.handle)
	require.NoError(t, err)
	cancel()
	cancel()

	require.NoError(t, feed.Publish(ctx, store.Change{Table: models.TableAlerts, Type: store.EventInsert, ID: "a1"}))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestRedisFeed_AnnouncingStoreDrivesBus(t *testing.T) {
	feed := newRedisFeed(t)
	writer := store.NewAnnouncing(memstore.New(), feed, zerologNop())

	bus := NewBus(feed)
	defer bus.Close()
	rec := &recorder{}
	_, err := bus.Subscribe(context.Background(), telemetryScope("V"), rec.handle)
	require.NoError(t, err)

	insertTelemetry(t, writer, "t1", "V")
	insertTelemetry(t, writer, "t2", "W")

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

// Subscribers come and go on one scope while changes keep arriving. Every
// cycle closes the shared pub/sub connection with messages in flight.
func TestRedisFeed_BusChurnDuringPublishBurst(t *testing.T) {
	feed := newRedisFeed(t)
	bus := NewBus(feed)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var publisher sync.WaitGroup
	publisher.Add(1)
	go func() {
		defer publisher.Done()
		for i := 0; ctx.Err() == nil; i++ {
			_ = feed.Publish(ctx, store.Change{Table: models.TableAlerts, Type: store.EventInsert, ID: fmt.Sprintf("a%d", i)})
		}
	}()

	scope := store.Scope{Table: models.TableAlerts}
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 200; i++ {
			sub, err := bus.Subscribe(ctx, scope, func(store.Change) {})
			if err != nil {
				done <- err
				return
			}
			sub.Unsubscribe()
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("subscribe/unsubscribe cycles stalled under a publish burst")
	}
	cancel()
	publisher.Wait()
	assert.Zero(t, bus.Connections())
}
