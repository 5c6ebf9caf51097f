// Package services is the query facade used by the HTTP and CLI surfaces.
// Reads go through the query cache under stable keys; writes go to the
// repositories and then invalidate the keys the change can make stale.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"logitrack/internal/aggregate"
	"logitrack/internal/realtime"
	"logitrack/internal/repository"
	"logitrack/internal/store"
	"logitrack/pkg/cache"
	"logitrack/pkg/log"
)

var ErrRealtimeDisabled = errors.New("realtime is not configured")

var (
	kpiOptions  = cache.Options{StaleTime: 30 * time.Second, RefetchInterval: 30 * time.Second}
	liveOptions = cache.Options{StaleTime: 10 * time.Second, RefetchInterval: 10 * time.Second}
	defaults    = cache.Options{}
)

type Service struct {
	repos  *repository.Repositories
	cache  *cache.Cache
	bus    *realtime.Bus
	hub    *realtime.Hub
	logger zerolog.Logger

	loc           *time.Location
	onTimeDefault int
	now           func() time.Time
}

func NewService(repos *repository.Repositories, qc *cache.Cache) *Service {
	return &Service{
		repos:         repos,
		cache:         qc,
		logger:        log.WithComponent("services"),
		loc:           time.Local,
		onTimeDefault: aggregate.DefaultOnTimeRate,
		now:           time.Now,
	}
}

// SetRealtime enables Watch and local change delivery. The hub may invalidate
// through a coalescer; writes made here always invalidate the cache directly.
func (s *Service) SetRealtime(bus *realtime.Bus, hub *realtime.Hub) {
	s.bus = bus
	s.hub = hub
}

// SetLocation sets the zone that defines "today" for the dashboard.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) SetOnTimeDefault(rate int) {
	s.onTimeDefault = rate
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Watch acquires the hub channel for topic on behalf of userID. The dashboard
// topic also keeps the KPI query refetching on its interval while held.
func (s *Service) Watch(ctx context.Context, topic, userID string) (func(), error) {
	if s.hub == nil {
		return nil, ErrRealtimeDisabled
	}
	ch, err := Resolve(topic, userID)
	if err != nil {
		return nil, err
	}
	release, err := s.hub.Acquire(ctx, ch)
	if err != nil {
		return nil, err
	}
	if topic != TopicDashboard {
		return release, nil
	}

	obs := cache.Watch(s.cache, cache.K(QueryDashboardKPIs), s.fetchKPIs, kpiOptions)
	return func() {
		obs.Close()
		release()
	}, nil
}

// changed invalidates what a successful write can make stale before the write
// returns, so the caller's next read refetches. Subscribers only get the
// change from here when the bus has no feed; otherwise the feed carries it.
func (s *Service) changed(table string, typ store.EventType, id string, entity interface{}) {
	c := store.Change{Table: table, Type: typ, ID: id, At: s.now()}
	switch row := entity.(type) {
	case nil:
	case map[string]interface{}:
		c.Row = row
	default:
		if doc, err := store.ToDoc(entity); err == nil {
			c.Row = doc
		} else {
			s.logger.Debug().Err(err).Str("table", table).Msg("Change row not encodable")
		}
	}

	keys := KeysFor(c)
	for _, k := range keys {
		s.cache.Invalidate(k)
	}
	s.logger.Debug().Str("table", table).Str("type", string(typ)).Int("keys", len(keys)).Msg("Invalidated after write")

	if s.bus != nil && !s.bus.HasFeed() {
		s.bus.Emit(c)
	}
}

func (s *Service) midnight() time.Time {
	return aggregate.LocalMidnight(s.now(), s.loc)
}

// TopicKeys returns the cache keys a watch on topic keeps fresh.
func (s *Service) TopicKeys(topic, userID string) ([]cache.Key, error) {
	ch, err := Resolve(topic, userID)
	if err != nil {
		return nil, err
	}
	return ch.Keys, nil
}
