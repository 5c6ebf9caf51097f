package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/internal/models"
	"logitrack/internal/store"
	"logitrack/internal/store/memstore"
	"logitrack/pkg/cache"
)

type recorder struct {
	mu      sync.Mutex
	changes []store.Change
}

func (r *recorder) handle(c store.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func telemetryScope(vehicleID string) store.Scope {
	return store.Scope{
		Table:  models.TableTelemetry,
		Events: []store.EventType{store.EventInsert},
		Field:  "vehicle_id",
		Value:  vehicleID,
	}
}

func insertTelemetry(t *testing.T, s store.Store, id, vehicleID string) {
	t.Helper()
	require.NoError(t, s.Insert(context.Background(), models.TableTelemetry, models.TelemetryData{
		ID:         id,
		VehicleID:  vehicleID,
		Latitude:   -23.55,
		Longitude:  -46.63,
		RecordedAt: time.Now().UTC(),
	}))
}

func TestBus_ReferenceCountsFeedConnections(t *testing.T) {
	ms := memstore.New()
	bus := NewBus(ms)
	defer bus.Close()

	first, err := bus.Subscribe(context.Background(), telemetryScope("V"), func(store.Change) {})
	require.NoError(t, err)
	second, err := bus.Subscribe(context.Background(), telemetryScope("V"), func(store.Change) {})
	require.NoError(t, err)

	assert.Equal(t, 1, bus.Connections())
	assert.Equal(t, 1, ms.Subscribers())

	first.Unsubscribe()
	first.Unsubscribe()
	assert.Equal(t, 1, ms.Subscribers(), "connection stays open while one subscriber remains")

	second.Unsubscribe()
	assert.Zero(t, bus.Connections())
	assert.Zero(t, ms.Subscribers())
}

func TestBus_DeliversOnlyMatchingScopes(t *testing.T) {
	ms := memstore.New()
	bus := NewBus(ms)
	defer bus.Close()

	v, w := &recorder{}, &recorder{}
	_, err := bus.Subscribe(context.Background(), telemetryScope("V"), v.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), telemetryScope("W"), w.handle)
	require.NoError(t, err)

	insertTelemetry(t, ms, "t1", "V")

	assert.Equal(t, 1, v.count())
	assert.Zero(t, w.count())
}

func TestBus_FeedChangeReachesEachSubscriberOnce(t *testing.T) {
	ms := memstore.New()
	bus := NewBus(ms)
	defer bus.Close()

	all := store.Scope{Table: models.TableTelemetry}
	narrow := &recorder{}
	wide := &recorder{}
	_, err := bus.Subscribe(context.Background(), telemetryScope("V"), narrow.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), all, wide.handle)
	require.NoError(t, err)

	insertTelemetry(t, ms, "t1", "V")

	assert.Equal(t, 1, narrow.count())
	assert.Equal(t, 1, wide.count())
}

func TestBus_EmitWithoutFeed(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	rec := &recorder{}
	sub, err := bus.Subscribe(context.Background(), store.Scope{Table: models.TableAlerts}, rec.handle)
	require.NoError(t, err)

	bus.Emit(store.Change{Table: models.TableAlerts, Type: store.EventUpdate, ID: "a1"})
	bus.Emit(store.Change{Table: models.TableRoutes, Type: store.EventUpdate, ID: "r1"})
	assert.Equal(t, 1, rec.count())

	sub.Unsubscribe()
	bus.Emit(store.Change{Table: models.TableAlerts, Type: store.EventUpdate, ID: "a2"})
	assert.Equal(t, 1, rec.count())
}

func fetchValue(c *cache.Cache, key cache.Key, v string) {
	c.Fetch(context.Background(), key, func(context.Context) (interface{}, error) { return v, nil }, cache.Options{})
}

func TestHub_TelemetryInvalidationIsScopedToVehicle(t *testing.T) {
	ms := memstore.New()
	qc := cache.New(cache.DefaultCacheConfig())
	defer qc.Close()
	hub := NewHub(NewBus(ms), qc)

	keyV := cache.K("telemetry", "V")
	keyW := cache.K("telemetry", "W")
	latest := cache.K("telemetry", "latest")
	fetchValue(qc, keyV, "v")
	fetchValue(qc, keyW, "w")
	fetchValue(qc, latest, "latest")

	releaseV, err := hub.Acquire(context.Background(), Channel{
		Name:   "telemetry:V",
		Scopes: []store.Scope{telemetryScope("V")},
		Keys:   []cache.Key{keyV, latest},
	})
	require.NoError(t, err)
	defer releaseV()
	releaseW, err := hub.Acquire(context.Background(), Channel{
		Name:   "telemetry:W",
		Scopes: []store.Scope{telemetryScope("W")},
		Keys:   []cache.Key{keyW, latest},
	})
	require.NoError(t, err)
	defer releaseW()

	insertTelemetry(t, ms, "t1", "V")

	assert.Equal(t, cache.StateStale, qc.State(keyV))
	assert.Equal(t, cache.StateStale, qc.State(latest))
	assert.Equal(t, cache.StateFresh, qc.State(keyW))
}

func TestHub_AcquireReleaseLifecycle(t *testing.T) {
	ms := memstore.New()
	qc := cache.New(cache.DefaultCacheConfig())
	defer qc.Close()
	hub := NewHub(NewBus(ms), qc)

	ch := Channel{
		Name:   "alerts",
		Scopes: []store.Scope{{Table: models.TableAlerts}},
		Keys:   []cache.Key{cache.K("alerts")},
	}

	release1, err := hub.Acquire(context.Background(), ch)
	require.NoError(t, err)
	release2, err := hub.Acquire(context.Background(), ch)
	require.NoError(t, err)

	assert.Equal(t, 2, hub.Refs("alerts"))
	assert.Equal(t, []string{"alerts"}, hub.Active())
	assert.Equal(t, 1, ms.Subscribers())

	release1()
	release1()
	assert.Equal(t, 1, hub.Refs("alerts"))
	assert.Equal(t, 1, ms.Subscribers())

	release2()
	assert.Zero(t, hub.Refs("alerts"))
	assert.Empty(t, hub.Active())
	assert.Zero(t, ms.Subscribers(), "last release closes the feed connection")
}

type failingFeed struct {
	calls int
}

func (f *failingFeed) Subscribe(ctx context.Context, scope store.Scope, fn func(store.Change)) (func(), error) {
	f.calls++
	if f.calls > 1 {
		return nil, store.Errorf(store.KindTransient, "subscribe", scope.Table, "feed down")
	}
	return func() {}, nil
}

func TestHub_PartialAcquireRollsBack(t *testing.T) {
	bus := NewBus(&failingFeed{})
	hub := NewHub(bus, cache.New(cache.DefaultCacheConfig()))

	_, err := hub.Acquire(context.Background(), Channel{
		Name:   "messages:u1",
		Scopes: []store.Scope{{Table: models.TableMessages, Field: "sender_id", Value: "u1"}, {Table: models.TableMessages, Field: "receiver_id", Value: "u1"}},
	})
	require.Error(t, err)
	assert.True(t, store.IsTransient(err))
	assert.Zero(t, bus.Connections())
	assert.Empty(t, hub.Active())
}

// drainingFeed delivers one last change while its cancel is in progress and
// only then lets cancel return, the way a pub/sub reader finishes the message
// it is holding before it exits.
type drainingFeed struct {
	opened chan struct{}
}

func (f *drainingFeed) Subscribe(ctx context.Context, scope store.Scope, fn func(store.Change)) (func(), error) {
	stopping := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-stopping
		fn(store.Change{Table: scope.Table, Type: store.EventInsert, ID: "last"})
	}()
	if f.opened != nil {
		<-f.opened
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopping)
			<-done
		})
	}, nil
}

func TestBus_UnsubscribeWhileFeedDelivers(t *testing.T) {
	bus := NewBus(&drainingFeed{})
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), store.Scope{Table: models.TableAlerts}, func(store.Change) {})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Unsubscribe did not return while the feed was delivering")
	}
	assert.Zero(t, bus.Connections())
}

func TestBus_CloseWhileFeedDelivers(t *testing.T) {
	bus := NewBus(&drainingFeed{})

	for _, table := range []string{models.TableAlerts, models.TableRoutes} {
		_, err := bus.Subscribe(context.Background(), store.Scope{Table: table}, func(store.Change) {})
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		bus.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while the feed was delivering")
	}
	_, err := bus.Subscribe(context.Background(), store.Scope{Table: models.TableAlerts}, func(store.Change) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}

// The bus lock is free while a feed opens; a second subscriber of the same
// scope waits for that open rather than starting its own.
func TestBus_SubscribersWaitForSlowOpen(t *testing.T) {
	slow := &drainingFeed{opened: make(chan struct{})}
	bus := NewBus(slow)
	defer bus.Close()

	opening := make(chan error, 1)
	go func() {
		_, err := bus.Subscribe(context.Background(), store.Scope{Table: models.TableAlerts}, func(store.Change) {})
		opening <- err
	}()

	require.Eventually(t, func() bool { return bus.Connections() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := bus.Subscribe(ctx, store.Scope{Table: models.TableAlerts}, func(store.Change) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a second subscriber waits for the open")

	close(slow.opened)
	require.NoError(t, <-opening)
	assert.Equal(t, 1, bus.Connections())
}
