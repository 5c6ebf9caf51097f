// Package realtime turns row change notifications into cache invalidations.
//
// A Bus fans changes out to scoped subscribers and keeps at most one feed
// connection per distinct scope, opened by the first subscriber and closed by
// the last. A Hub groups scopes and cache keys into named channels that
// consumers acquire and release.
package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"logitrack/internal/store"
	"logitrack/pkg/log"
	"logitrack/pkg/metrics"
)

type Handler func(store.Change)

// ErrBusClosed is returned by Subscribe after Close.
var ErrBusClosed = errors.New("realtime: bus closed")

type subscriber struct {
	scope store.Scope
	conn  *feedConn
	fn    Handler
}

// feedConn is one feed subscription shared by every subscriber of a scope.
// ready is closed once the feed has answered; cancel and err are set then.
// Feed calls never run under Bus.mu: a feed cancel may wait for a delivery
// that itself needs the lock.
type feedConn struct {
	key    string
	refs   int
	ready  chan struct{}
	err    error
	cancel func()
	closed bool
}

type Bus struct {
	feed   store.ChangeFeed
	logger zerolog.Logger

	mu    sync.Mutex
	subs  map[string]subscriber
	conns map[string]*feedConn

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBus creates a bus over feed. A nil feed gives a bus that only carries
// changes passed to Emit.
func NewBus(feed store.ChangeFeed) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		feed:   feed,
		logger: log.WithComponent("bus"),
		subs:   make(map[string]subscriber),
		conns:  make(map[string]*feedConn),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscription is the cancellation handle returned by Subscribe.
type Subscription struct {
	bus   *Bus
	id    string
	scope store.Scope
	once  sync.Once
}

func (s *Subscription) Scope() store.Scope {
	return s.scope
}

// Unsubscribe is idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.unsubscribe(s.id) })
}

// Subscribe registers fn for changes inside scope. The first subscriber of a
// scope opens the feed; later ones wait for that open to finish.
func (b *Bus) Subscribe(ctx context.Context, scope store.Scope, fn Handler) (*Subscription, error) {
	key := scope.Key()

	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	conn, ok := b.conns[key]
	opener := !ok
	if opener {
		conn = &feedConn{key: key, ready: make(chan struct{})}
		b.conns[key] = conn
		metrics.FeedSubscriptions.Set(float64(len(b.conns)))
	}
	conn.refs++
	id := uuid.NewString()
	b.subs[id] = subscriber{scope: scope, conn: conn, fn: fn}
	b.mu.Unlock()

	sub := &Subscription{bus: b, id: id, scope: scope}

	if opener {
		b.open(conn, scope)
	} else {
		select {
		case <-conn.ready:
		case <-ctx.Done():
			sub.Unsubscribe()
			return nil, ctx.Err()
		}
	}

	if conn.err != nil {
		sub.Unsubscribe()
		return nil, conn.err
	}
	if b.ctx.Err() != nil {
		sub.Unsubscribe()
		return nil, ErrBusClosed
	}
	return sub, nil
}

func (b *Bus) open(conn *feedConn, scope store.Scope) {
	var (
		cancel func()
		err    error
	)
	if b.feed != nil {
		cancel, err = b.feed.Subscribe(b.ctx, scope, func(c store.Change) { b.deliverFeed(conn, c) })
	}

	b.mu.Lock()
	conn.err = err
	conn.cancel = cancel
	closed := conn.closed
	if err != nil {
		closed = true
		conn.closed = true
		if b.conns[conn.key] == conn {
			delete(b.conns, conn.key)
			metrics.FeedSubscriptions.Set(float64(len(b.conns)))
		}
	}
	close(conn.ready)
	b.mu.Unlock()

	switch {
	case err != nil:
		b.logger.Warn().Err(err).Str("scope", conn.key).Msg("Failed to open change feed")
	case closed:
		// every subscriber left while the feed was opening
		if cancel != nil {
			cancel()
		}
	default:
		b.logger.Debug().Str("scope", conn.key).Msg("Opened change feed")
	}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, id)

	conn := sub.conn
	conn.refs--
	if conn.refs > 0 || conn.closed {
		b.mu.Unlock()
		return
	}
	conn.closed = true
	if b.conns[conn.key] == conn {
		delete(b.conns, conn.key)
	}
	metrics.FeedSubscriptions.Set(float64(len(b.conns)))
	// nil while the feed is still opening; open cancels it then
	cancel := conn.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		b.logger.Debug().Str("scope", conn.key).Msg("Closed change feed")
	}
}

// Emit delivers c to every subscriber whose scope matches, regardless of the
// feed. Writes made through this process use it to invalidate without waiting
// for the round trip.
func (b *Bus) Emit(c store.Change) {
	b.dispatch(c, func(s subscriber) bool { return s.scope.Matches(c) })
}

func (b *Bus) deliverFeed(conn *feedConn, c store.Change) {
	metrics.ChangesReceivedTotal.WithLabelValues(c.Table, string(c.Type)).Inc()
	b.dispatch(c, func(s subscriber) bool { return s.conn == conn && s.scope.Matches(c) })
}

func (b *Bus) dispatch(c store.Change, match func(subscriber) bool) {
	b.mu.Lock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if match(s) {
			targets = append(targets, s.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(c)
	}
}

// HasFeed reports whether changes reach the bus from a feed rather than only
// through Emit.
func (b *Bus) HasFeed() bool {
	return b.feed != nil
}

// Connections returns the number of open feed connections.
func (b *Bus) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Close cancels every feed connection. Subscribe fails afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	cancels := make([]func(), 0, len(b.conns))
	for key, conn := range b.conns {
		conn.closed = true
		if conn.cancel != nil {
			cancels = append(cancels, conn.cancel)
		}
		delete(b.conns, key)
	}
	b.subs = make(map[string]subscriber)
	b.cancel()
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	metrics.FeedSubscriptions.Set(0)
}
