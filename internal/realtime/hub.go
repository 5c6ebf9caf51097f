package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"logitrack/internal/store"
	"logitrack/pkg/cache"
	"logitrack/pkg/log"
	"logitrack/pkg/metrics"
)

// Invalidator is the cache side of a channel. Both *cache.Cache and
// *batch.Coalescer satisfy it.
type Invalidator interface {
	Invalidate(prefix cache.Key) int
}

// Channel binds change scopes to the cache keys they make stale.
type Channel struct {
	Name   string
	Scopes []store.Scope
	Keys   []cache.Key
}

type hubChannel struct {
	channel Channel
	refs    int
	subs    []*Subscription
}

type Hub struct {
	bus    *Bus
	target Invalidator
	logger zerolog.Logger

	mu       sync.Mutex
	channels map[string]*hubChannel
}

func NewHub(bus *Bus, target Invalidator) *Hub {
	return &Hub{
		bus:      bus,
		target:   target,
		logger:   log.WithComponent("hub"),
		channels: make(map[string]*hubChannel),
	}
}

// Acquire registers interest in ch. The first acquisition of a name opens its
// subscriptions; the returned release func drops the reference and the last
// release closes them. Release is idempotent.
func (h *Hub) Acquire(ctx context.Context, ch Channel) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hc, ok := h.channels[ch.Name]
	if !ok {
		hc = &hubChannel{channel: ch}
		keys := ch.Keys
		handler := func(c store.Change) {
			for _, k := range keys {
				h.target.Invalidate(k)
			}
		}
		for _, scope := range ch.Scopes {
			sub, err := h.bus.Subscribe(ctx, scope, handler)
			if err != nil {
				for _, s := range hc.subs {
					s.Unsubscribe()
				}
				return nil, err
			}
			hc.subs = append(hc.subs, sub)
		}
		h.channels[ch.Name] = hc
		metrics.HubChannels.Set(float64(len(h.channels)))
		h.logger.Debug().Str("channel", ch.Name).Int("scopes", len(ch.Scopes)).Msg("Channel opened")
	}
	hc.refs++

	var once sync.Once
	return func() { once.Do(func() { h.release(ch.Name) }) }, nil
}

// release unsubscribes after dropping the lock: closing a feed can wait on a
// delivery in progress.
func (h *Hub) release(name string) {
	h.mu.Lock()
	hc, ok := h.channels[name]
	if !ok {
		h.mu.Unlock()
		return
	}
	hc.refs--
	if hc.refs > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.channels, name)
	metrics.HubChannels.Set(float64(len(h.channels)))
	h.mu.Unlock()

	for _, s := range hc.subs {
		s.Unsubscribe()
	}
	h.logger.Debug().Str("channel", name).Msg("Channel closed")
}

// Refs returns the reference count held on a channel name.
func (h *Hub) Refs(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if hc, ok := h.channels[name]; ok {
		return hc.refs
	}
	return 0
}

// Active lists open channel names in order.
func (h *Hub) Active() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.channels))
	for name := range h.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
