package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"logitrack/pkg/log"
	"logitrack/pkg/metrics"
)

// State is the lifecycle position of a cache entry.
type State int

const (
	StateStale State = iota
	StateFetching
	StateFresh
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateFresh:
		return "fresh"
	default:
		return "stale"
	}
}

// FetchFunc loads the value for one key. It must honor ctx cancellation.
type FetchFunc func(ctx context.Context) (interface{}, error)

var (
	ErrFetchTimeout = errors.New("cache: fetch timed out")
	ErrClosed       = errors.New("cache: closed")
)

// Snapshot is what a reader sees for a key at one point in time.
type Snapshot struct {
	Data         interface{}
	HasData      bool
	Err          error
	IsLoading    bool
	IsStale      bool
	UpdatedAt    time.Time
	FailureCount int
}

type Stats struct {
	Entries       int   `json:"entries"`
	Hits          int64 `json:"hits"`
	StaleHits     int64 `json:"staleHits"`
	Misses        int64 `json:"misses"`
	Fetches       int64 `json:"fetches"`
	FetchErrors   int64 `json:"fetchErrors"`
	Discarded     int64 `json:"discarded"`
	Invalidations int64 `json:"invalidations"`
	Evictions     int64 `json:"evictions"`
}

type entry struct {
	key  Key
	elem *list.Element

	data      interface{}
	hasData   bool
	updatedAt time.Time
	err       error
	failures  int

	// invalidated forces the next read to block on a refetch.
	invalidated bool
	// seq advances on every invalidation; a flight started under an older
	// seq never applies its result.
	seq    uint64
	flight *flight

	fetch      FetchFunc
	opts       Options
	observers  int
	lastAccess time.Time
}

type flight struct {
	id     string
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
	fn     FetchFunc
	opts   Options

	waiters    int
	observed   bool
	skipShared bool
	superseded bool
	abandoned  bool
}

// Cache is a process-wide keyed query cache with stale-while-revalidate reads,
// per-key single flight, prefix invalidation and an LRU bound.
type Cache struct {
	mu        sync.Mutex
	config    CacheConfig
	entries   map[string]*entry
	lru       *list.List
	group     singleflight.Group
	shared    SharedStore
	listeners map[int]func(Key)
	nextID    int
	flights   uint64
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
	logger zerolog.Logger

	hits          atomic.Int64
	staleHits     atomic.Int64
	misses        atomic.Int64
	fetches       atomic.Int64
	fetchErrors   atomic.Int64
	discarded     atomic.Int64
	invalidations atomic.Int64
	evictions     atomic.Int64
}

type Option func(*Cache)

// WithClock replaces time.Now for freshness decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithShared adds a second tier consulted on cold reads and written on every
// successful fetch.
func WithShared(s SharedStore) Option {
	return func(c *Cache) { c.shared = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func New(config CacheConfig, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		config:    config,
		entries:   make(map[string]*entry),
		lru:       list.New(),
		listeners: make(map[int]func(Key)),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		logger:    log.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the value for key, calling fn only when needed. Fresh data is
// returned as is. Expired data is returned immediately while a background
// refresh runs. A key with no data, or one that was invalidated, blocks until
// its refetch completes or ctx is done.
func (c *Cache) Fetch(ctx context.Context, key Key, fn FetchFunc, opts Options) Snapshot {
	name := key.Name()
	missed := false
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return Snapshot{Err: ErrClosed}
		}
		e := c.touchLocked(key)
		e.fetch, e.opts = fn, opts
		now := c.now()
		stale := c.config.staleTime(opts)

		if e.hasData && !e.invalidated {
			fresh := now.Sub(e.updatedAt) < stale
			if !fresh && e.flight == nil {
				c.startLocked(e, false)
			}
			snap := c.snapshotLocked(e, now)
			c.mu.Unlock()
			if fresh {
				c.hits.Add(1)
				metrics.CacheRequestsTotal.WithLabelValues(name, "hit").Inc()
			} else {
				c.staleHits.Add(1)
				metrics.CacheRequestsTotal.WithLabelValues(name, "stale").Inc()
			}
			return snap
		}

		f := e.flight
		if f == nil {
			f = c.startLocked(e, false)
		}
		f.waiters++
		ch := c.group.DoChan(f.id, c.runner(e, f))
		c.mu.Unlock()

		if !missed {
			missed = true
			c.misses.Add(1)
			metrics.CacheRequestsTotal.WithLabelValues(name, "miss").Inc()
		}

		select {
		case <-ch:
		case <-ctx.Done():
			c.abandon(e, f)
			c.mu.Lock()
			snap := c.snapshotLocked(e, c.now())
			c.mu.Unlock()
			snap.Err = ctx.Err()
			return snap
		}

		c.mu.Lock()
		f.waiters--
		if f.superseded {
			c.mu.Unlock()
			continue
		}
		snap := c.snapshotLocked(e, c.now())
		closed := c.closed
		c.mu.Unlock()
		if closed {
			snap.Err = ErrClosed
		}
		return snap
	}
}

// Peek returns the current snapshot without fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshotLocked(e, c.now()), true
}

func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return StateStale
	}
	return c.stateLocked(e, c.now())
}

func (c *Cache) stateLocked(e *entry, now time.Time) State {
	switch {
	case e.flight != nil:
		return StateFetching
	case e.hasData && !e.invalidated && now.Sub(e.updatedAt) < c.config.staleTime(e.opts):
		return StateFresh
	default:
		return StateStale
	}
}

// Invalidate marks every entry whose key starts with prefix stale. In-flight
// fetches for those entries are cancelled and their results discarded. Observed
// entries refetch immediately; others refetch on their next read.
func (c *Cache) Invalidate(prefix Key) int {
	return c.invalidate(prefix, func(k Key) bool { return k.HasPrefix(prefix) })
}

// InvalidateExact invalidates key alone, leaving longer keys under it untouched.
func (c *Cache) InvalidateExact(key Key) int {
	return c.invalidate(key, func(k Key) bool { return k.Equal(key) })
}

func (c *Cache) invalidate(tag Key, match func(Key) bool) int {
	if c.shared != nil {
		c.invalidateShared(tag)
	}

	c.mu.Lock()
	var keys []Key
	for _, e := range c.entries {
		if !match(e.key) {
			continue
		}
		c.invalidateLocked(e)
		keys = append(keys, e.key)
	}
	listeners := make([]func(Key), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, k := range keys {
		for _, l := range listeners {
			l(k)
		}
	}
	return len(keys)
}

func (c *Cache) invalidateLocked(e *entry) {
	e.invalidated = true
	e.seq++
	if f := e.flight; f != nil {
		f.superseded = true
		f.cancel()
		e.flight = nil
	}
	c.invalidations.Add(1)
	metrics.CacheInvalidationsTotal.WithLabelValues(e.key.Name()).Inc()

	if e.observers > 0 && e.fetch != nil {
		c.startLocked(e, true)
	}
}

func (c *Cache) invalidateShared(tag Key) {
	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout())
	defer cancel()
	if _, err := c.shared.InvalidateByTag(ctx, tag.String()); err != nil {
		c.logger.Warn().Err(err).Str("key", tag.String()).Msg("Shared tier invalidation failed")
	}
}

// OnInvalidate registers fn to be called with every invalidated key. The
// returned func removes the listener.
func (c *Cache) OnInvalidate(fn func(Key)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Refresh starts a background refetch for key if one is not already running.
func (c *Cache) Refresh(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || c.closed || e.flight != nil || e.fetch == nil {
		return false
	}
	c.startLocked(e, e.observers > 0)
	return true
}

// Observer keeps interest in a key alive. While at least one observer exists
// the entry is pinned against eviction, refetched on invalidation and, when
// RefetchInterval is set, refreshed on that period.
type Observer struct {
	cache *Cache
	key   Key
	stop  chan struct{}
	once  sync.Once
}

func (c *Cache) Observe(key Key, fn FetchFunc, opts Options) *Observer {
	o := &Observer{cache: c, key: key, stop: make(chan struct{})}

	c.mu.Lock()
	e := c.touchLocked(key)
	e.fetch, e.opts = fn, opts
	e.observers++
	if !c.closed && e.flight == nil && (!e.hasData || e.invalidated) {
		c.startLocked(e, true)
	}
	c.mu.Unlock()

	if opts.RefetchInterval > 0 {
		go o.loop(opts.RefetchInterval)
	}
	return o
}

func (o *Observer) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-o.cache.ctx.Done():
			return
		case <-ticker.C:
			o.cache.Refresh(o.key)
		}
	}
}

func (o *Observer) Key() Key {
	return o.key
}

// Close releases interest. The last observer leaving cancels a refetch that
// only it was waiting for.
func (o *Observer) Close() {
	o.once.Do(func() {
		close(o.stop)
		o.cache.release(o.key)
	})
}

func (c *Cache) release(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || e.observers == 0 {
		return
	}
	e.observers--
	if e.observers == 0 {
		if f := e.flight; f != nil && f.observed && f.waiters == 0 {
			c.abandonLocked(e, f)
		}
		e.lastAccess = c.now()
	}
}

// Sweep removes entries with no observers and no flight that were last read
// before now minus GCTime.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if c.pinned(e) || now.Sub(e.lastAccess) < c.config.GCTime {
			continue
		}
		c.removeLocked(id, e)
		removed++
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Entries:       n,
		Hits:          c.hits.Load(),
		StaleHits:     c.staleHits.Load(),
		Misses:        c.misses.Load(),
		Fetches:       c.fetches.Load(),
		FetchErrors:   c.fetchErrors.Load(),
		Discarded:     c.discarded.Load(),
		Invalidations: c.invalidations.Load(),
		Evictions:     c.evictions.Load(),
	}
}

// Close cancels every in-flight fetch and observer loop.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	if c.shared != nil {
		return c.shared.Close()
	}
	return nil
}

func (c *Cache) touchLocked(key Key) *entry {
	id := key.String()
	now := c.now()
	if e, ok := c.entries[id]; ok {
		e.lastAccess = now
		c.lru.MoveToFront(e.elem)
		return e
	}
	e := &entry{key: append(Key(nil), key...), lastAccess: now}
	e.elem = c.lru.PushFront(id)
	c.entries[id] = e
	c.evictLocked()
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return e
}

func (c *Cache) pinned(e *entry) bool {
	return e.observers > 0 || e.flight != nil
}

func (c *Cache) evictLocked() {
	if c.config.MaxEntries <= 0 {
		return
	}
	for len(c.entries) > c.config.MaxEntries {
		evicted := false
		for el := c.lru.Back(); el != nil; el = el.Prev() {
			id := el.Value.(string)
			e := c.entries[id]
			// the entry being created sits at the front and is never a candidate
			if el == c.lru.Front() || c.pinned(e) {
				continue
			}
			c.removeLocked(id, e)
			c.evictions.Add(1)
			metrics.CacheEvictionsTotal.Inc()
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

func (c *Cache) removeLocked(id string, e *entry) {
	c.lru.Remove(e.elem)
	delete(c.entries, id)
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

func (c *Cache) snapshotLocked(e *entry, now time.Time) Snapshot {
	s := Snapshot{
		Data:         e.data,
		HasData:      e.hasData,
		UpdatedAt:    e.updatedAt,
		FailureCount: e.failures,
		IsLoading:    !e.hasData && e.flight != nil,
		IsStale:      e.hasData && (e.invalidated || now.Sub(e.updatedAt) >= c.config.staleTime(e.opts)),
	}
	if e.err != nil && (!e.hasData || (c.config.SurfaceAfter > 0 && e.failures >= c.config.SurfaceAfter)) {
		s.Err = e.err
	}
	return s
}

func (c *Cache) startLocked(e *entry, observed bool) *flight {
	c.flights++
	ctx, cancel := context.WithCancel(c.ctx)
	f := &flight{
		id:         fmt.Sprintf("%s#%d", e.key, c.flights),
		seq:        e.seq,
		ctx:        ctx,
		cancel:     cancel,
		fn:         e.fetch,
		opts:       e.opts,
		observed:   observed,
		skipShared: e.invalidated,
	}
	e.flight = f
	c.fetches.Add(1)
	c.group.DoChan(f.id, c.runner(e, f))
	return f
}

func (c *Cache) runner(e *entry, f *flight) func() (interface{}, error) {
	return func() (interface{}, error) {
		start := time.Now()
		v, at, fromShared, err := c.load(e.key, f)
		metrics.CacheFetchDuration.WithLabelValues(e.key.Name()).Observe(time.Since(start).Seconds())

		if applied := c.complete(e, f, v, at, err); applied && err == nil && !fromShared && c.shared != nil {
			c.writeShared(e.key, f.opts, v, at)
		}
		return v, err
	}
}

// load returns the value with the time it was fetched at the source. A value
// from the shared tier keeps the time its writer fetched it.
func (c *Cache) load(key Key, f *flight) (interface{}, time.Time, bool, error) {
	if c.shared != nil && f.opts.decode != nil && !f.skipShared {
		if v, at, ok := c.readShared(f.ctx, key, f.opts); ok {
			return v, at, true, nil
		}
	}
	v, err := c.attempt(f.ctx, f.fn, c.config.retries(f.opts))
	return v, c.now(), false, err
}

// attempt runs fn with a per-attempt timeout, retrying transient failures with
// exponential backoff.
func (c *Cache) attempt(ctx context.Context, fn FetchFunc, retries int) (interface{}, error) {
	for attempt := 1; ; attempt++ {
		v, err := c.once(ctx, fn)
		if err == nil {
			return v, nil
		}
		if attempt > retries || !Retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.config.RetryBackoff
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(backoff):
		}
	}
}

func (c *Cache) once(ctx context.Context, fn FetchFunc) (interface{}, error) {
	timeout := c.fetchTimeout()
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   interface{}
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(actx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrFetchTimeout, timeout, r.err)
		}
		return r.v, r.err
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %s", ErrFetchTimeout, timeout)
	}
}

func (c *Cache) fetchTimeout() time.Duration {
	if c.config.FetchTimeout > 0 {
		return c.config.FetchTimeout
	}
	return 10 * time.Second
}

// complete applies a flight's outcome unless the flight was superseded or
// abandoned. It reports whether the outcome was applied.
func (c *Cache) complete(e *entry, f *flight, v interface{}, at time.Time, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.cancel()
	if e.flight == f {
		e.flight = nil
	}

	name := e.key.Name()
	switch {
	case c.closed:
		return false
	case f.superseded || f.seq != e.seq:
		c.discarded.Add(1)
		metrics.CacheDiscardedTotal.WithLabelValues(name, "superseded").Inc()
		return false
	case f.abandoned:
		c.discarded.Add(1)
		metrics.CacheDiscardedTotal.WithLabelValues(name, "abandoned").Inc()
		return false
	}

	if err != nil {
		e.err = err
		e.failures++
		c.fetchErrors.Add(1)
		metrics.CacheFetchErrorsTotal.WithLabelValues(name, errorKind(err)).Inc()
		ev := c.logger.Debug()
		if e.hasData {
			ev = c.logger.Warn()
		}
		ev.Err(err).Str("key", e.key.String()).Int("failures", e.failures).Msg("Fetch failed")
		return true
	}

	e.data = v
	e.hasData = true
	e.updatedAt = at
	e.err = nil
	e.failures = 0
	e.invalidated = false
	c.logger.Debug().Str("key", e.key.String()).Msg("Fetched")
	return true
}

func (c *Cache) abandon(e *entry, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters == 0 && e.observers == 0 && !f.superseded {
		c.abandonLocked(e, f)
	}
}

func (c *Cache) abandonLocked(e *entry, f *flight) {
	if f.abandoned {
		return
	}
	f.abandoned = true
	f.cancel()
	if e.flight == f {
		e.flight = nil
	}
}

// sharedValue is the shared tier encoding: the data plus when its writer
// fetched it.
type sharedValue struct {
	FetchedAt time.Time       `json:"fetchedAt"`
	Data      json.RawMessage `json:"data"`
}

// readShared misses on values that are already stale by the writer's clock.
func (c *Cache) readShared(ctx context.Context, key Key, opts Options) (interface{}, time.Time, bool) {
	raw, ok, err := c.shared.Get(ctx, key.String())
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key.String()).Msg("Shared tier read failed")
		return nil, time.Time{}, false
	}
	if !ok {
		return nil, time.Time{}, false
	}
	var sv sharedValue
	if err := json.Unmarshal(raw, &sv); err != nil || sv.FetchedAt.IsZero() {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Shared tier value undecodable")
		return nil, time.Time{}, false
	}

	now := c.now()
	at := sv.FetchedAt
	if at.After(now) {
		at = now
	}
	if now.Sub(at) >= c.config.staleTime(opts) {
		return nil, time.Time{}, false
	}

	v, err := opts.decode(sv.Data)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Shared tier value undecodable")
		return nil, time.Time{}, false
	}
	return v, at, true
}

func (c *Cache) writeShared(key Key, opts Options, v interface{}, at time.Time) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Shared tier encode failed")
		return
	}
	raw, err := json.Marshal(sharedValue{FetchedAt: at, Data: data})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Shared tier encode failed")
		return
	}
	prefixes := key.Prefixes()
	tags := make([]string, len(prefixes))
	for i, p := range prefixes {
		tags[i] = p.String()
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout())
	defer cancel()
	if err := c.shared.Set(ctx, key.String(), raw, c.config.staleTime(opts), tags...); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Shared tier write failed")
	}
}

type transient interface {
	Transient() bool
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if errors.Is(err, ErrFetchTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t transient
	return errors.As(err, &t) && t.Transient()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case Retryable(err):
		return "transient"
	default:
		return "other"
	}
}
