package main

import (
	"context"
	"fmt"
	"time"

	"logitrack/internal/config"
	"logitrack/internal/models"
	"logitrack/internal/realtime"
	"logitrack/internal/repository"
	"logitrack/internal/services"
	"logitrack/internal/store"
	"logitrack/internal/store/memstore"
	"logitrack/internal/store/mongostore"
	"logitrack/internal/store/sqlitestore"
	"logitrack/pkg/batch"
	"logitrack/pkg/cache"
	"logitrack/pkg/cleanup"
	"logitrack/pkg/database"
	"logitrack/pkg/log"
	"logitrack/pkg/redis"
)

const (
	storeTimeout    = 10 * time.Second
	janitorInterval = time.Minute
)

// app owns every long-lived component. close releases them in reverse
// start order.
type app struct {
	cfg       *config.Config
	db        store.Store
	redis     *redis.Client
	cache     *cache.Cache
	coalescer *batch.Coalescer
	janitor   *cleanup.CleanupService
	bus       *realtime.Bus
	svc       *services.Service

	closers []func()
}

// storeFeed is a backend that also reports its own writes.
type storeFeed interface {
	store.Store
	store.ChangeFeed
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := log.WithComponent("app")
	a := &app{cfg: cfg}

	backend, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(cfg.Redis)
		a.onClose(func() { a.redis.Close() })
		if status := a.redis.HealthCheck(); status.IsConnected {
			logger.Info().Str("redis", status.ConnectionInfo).Msg("Redis connected")
		} else {
			logger.Warn().Str("error", status.Error).Msg("Redis connection failed, will retry automatically")
		}
	}

	var feed store.ChangeFeed = backend
	a.db = backend
	switch cfg.ChangeFeed {
	case config.FeedRedis:
		rf := realtime.NewRedisFeed(a.redis)
		feed = rf
		a.db = store.NewAnnouncing(backend, rf, log.WithComponent("announce"))
	case config.FeedMQTT:
		mf, err := realtime.DialMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		a.onClose(mf.Close)
		feed = mf
		a.db = store.NewAnnouncing(backend, mf, log.WithComponent("announce"))
	}
	logger.Info().Str("store", cfg.StoreDriver).Str("feed", cfg.ChangeFeed).Msg("Storage ready")

	a.cache = a.newCache()
	a.onClose(func() { a.cache.Close() })

	a.janitor = cleanup.NewCleanupService(a.cache, janitorInterval)
	go a.janitor.Start()
	a.onClose(a.janitor.Stop)

	// the coalescer only sits behind the hub; service writes invalidate the
	// cache directly
	var target realtime.Invalidator = a.cache
	if cfg.InvalidationWindow > 0 {
		bc := batch.LoadBatchConfigFromEnv()
		bc.BatchInterval = cfg.InvalidationWindow
		if err := batch.ValidateConfig(bc); err != nil {
			a.close()
			return nil, fmt.Errorf("invalid invalidation coalescing config: %w", err)
		}
		a.coalescer = batch.NewCoalescer(bc, a.cache)
		if err := a.coalescer.Start(); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to start coalescer: %w", err)
		}
		a.onClose(func() { a.coalescer.Stop() })
		target = a.coalescer
	}

	a.bus = realtime.NewBus(feed)
	a.onClose(a.bus.Close)
	hub := realtime.NewHub(a.bus, target)

	repos := repository.New(a.db)
	a.svc = services.NewService(repos, a.cache)
	a.svc.SetRealtime(a.bus, hub)
	a.svc.SetLocation(cfg.Timezone)
	a.svc.SetOnTimeDefault(cfg.OnTimeDefaultRate)

	return a, nil
}

func (a *app) openStore(ctx context.Context) (storeFeed, error) {
	switch a.cfg.StoreDriver {
	case config.DriverMongo:
		db, err := database.Connect(a.cfg.MongoURI, a.cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.onClose(func() { database.Disconnect(db.Client()) })
		s := mongostore.New(db, storeTimeout)
		if err := s.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return s, nil

	case config.DriverSQLite:
		s, err := sqlitestore.Open(a.cfg.SQLitePath, sqlitestore.WithUnique(models.TableVehicles, "plate"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.onClose(func() { s.Close(context.Background()) })
		return s, nil

	default:
		return memstore.New(memstore.WithUnique(models.TableVehicles, "plate")), nil
	}
}

func (a *app) newCache() *cache.Cache {
	cc := cache.DefaultCacheConfig()
	cc.StaleTime = a.cfg.Cache.StaleTime
	cc.FetchTimeout = a.cfg.Cache.FetchTimeout
	cc.MaxEntries = a.cfg.Cache.MaxEntries
	cc.Retry = a.cfg.Cache.Retry
	cc.RetryBackoff = a.cfg.Cache.RetryBackoff
	cc.GCTime = a.cfg.Cache.GCTime
	cc.SurfaceAfter = a.cfg.Cache.SurfaceAfter

	opts := []cache.Option{cache.WithLogger(log.WithComponent("cache"))}
	if a.cfg.Cache.Shared && a.redis != nil {
		opts = append(opts, cache.WithShared(cache.NewRedisCacheManager(a.redis, cc)))
	}
	return cache.New(cc, opts...)
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
