// Package query coordinates data requests for dashboard views.
//
// A Cache owns one entry per Key. The first subscriber to a key dispatches its
// query function; later subscribers share the in-flight request and the settled
// result. Subscribers are told about every state transition through their
// onChange callback and read the current state with Subscription.State.
package query

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aure/fpdash/internal/logging"
)

const (
	DefaultCapacity   = 64
	DefaultRetryDelay = 500 * time.Millisecond
)

var (
	ErrClosed  = errors.New("query cache closed")
	ErrNoQuery = errors.New("query function is nil")
)

// Func fetches the data for one key.
type Func[T any] func(ctx context.Context) (T, error)

type fetchFunc func(ctx context.Context) (any, error)

type entry struct {
	key    Key
	snap   snapshot
	fetch  fetchFunc
	subs   map[uint64]func()
	gen    uint64
	cancel context.CancelFunc
	idle   *list.Element
}

type Option func(*Cache)

// WithCapacity bounds how many settled entries without subscribers are kept.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.capacity = n
		}
	}
}

// WithRetry retries a failed query function up to n extra times inside one
// dispatch, doubling delay after every attempt.
func WithRetry(n int, delay time.Duration) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.retries = n
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

type Cache struct {
	mu         sync.Mutex
	entries    map[Key]*entry
	idle       *list.List
	capacity   int
	retries    int
	retryDelay time.Duration
	nextSub    uint64
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *Metrics
	logger  *slog.Logger
}

func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:    make(map[Key]*entry),
		idle:       list.New(),
		capacity:   DefaultCapacity,
		retryDelay: DefaultRetryDelay,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscription is one subscriber's handle on a key.
type Subscription[T any] struct {
	cache *Cache
	key   Key
	id    uint64
	once  sync.Once
}

// Subscribe registers interest in key. If no entry exists the query function
// is dispatched; otherwise the existing entry, loading or settled, is shared.
// onChange may be nil and is invoked after every transition of the entry,
// outside the cache lock.
func Subscribe[T any](c *Cache, key Key, fn Func[T], onChange func()) (*Subscription[T], error) {
	if fn == nil {
		return nil, ErrNoQuery
	}
	fetch := func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
	if onChange == nil {
		onChange = func() {}
	}

	id, err := c.subscribe(key, fetch, onChange)
	if err != nil {
		return nil, err
	}
	return &Subscription[T]{cache: c, key: key, id: id}, nil
}

func (s *Subscription[T]) Key() Key {
	return s.key
}

// State returns the entry state for the current render pass.
func (s *Subscription[T]) State() State[T] {
	snap, _ := s.cache.read(s.key)
	return typed[T](snap)
}

// Refetch dispatches the key again unless a request is already in flight.
func (s *Subscription[T]) Refetch() {
	s.cache.refetch(s.key, s.id)
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.cache.unsubscribe(s.key, s.id)
	})
}

// Peek returns the state of key without subscribing to it.
func Peek[T any](c *Cache, key Key) (State[T], bool) {
	snap, ok := c.read(key)
	return typed[T](snap), ok
}

// Len reports the number of entries, including idle ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close cancels in-flight requests and waits for them to return. It must not
// be called from a subscriber callback.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	for key, e := range c.entries {
		c.metrics.subscribed(key, -float64(len(e.subs)))
	}
	c.entries = make(map[Key]*entry)
	c.idle.Init()
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Cache) subscribe(key Key, fetch fetchFunc, onChange func()) (uint64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}

	c.nextSub++
	id := c.nextSub

	e, ok := c.entries[key]
	if !ok {
		e = &entry{
			key:  key,
			snap: snapshot{status: StatusIdle},
			subs: make(map[uint64]func()),
		}
		c.entries[key] = e
	}
	if e.idle != nil {
		c.idle.Remove(e.idle)
		e.idle = nil
	}
	e.fetch = fetch
	e.subs[id] = onChange
	c.metrics.subscribed(key, 1)

	var start func()
	if e.snap.status == StatusIdle {
		start = c.dispatchLocked(e)
	}
	c.mu.Unlock()

	if start != nil {
		start()
	}
	return id, nil
}

func (c *Cache) unsubscribe(key Key, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	if _, ok := e.subs[id]; !ok {
		return
	}
	delete(e.subs, id)
	c.metrics.subscribed(key, -1)

	if len(e.subs) > 0 {
		return
	}

	switch e.snap.status {
	case StatusSuccess, StatusError:
		e.idle = c.idle.PushFront(e)
		c.evictLocked()
	default:
		// Nobody is left to observe the result.
		if e.cancel != nil {
			e.cancel()
		}
		delete(c.entries, key)
		c.logger.Debug("dropped loading query without subscribers", "key", key)
	}
}

func (c *Cache) refetch(key Key, id uint64) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	if _, ok := e.subs[id]; !ok || e.snap.status == StatusLoading {
		c.mu.Unlock()
		return
	}
	start := c.dispatchLocked(e)
	callbacks := subscribersLocked(e)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	start()
}

func (c *Cache) read(key Key) (snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return snapshot{status: StatusIdle}, false
	}
	return e.snap, true
}

// dispatchLocked moves e to Loading and returns the function that starts the
// request. The caller runs it after releasing the lock.
func (c *Cache) dispatchLocked(e *entry) func() {
	e.gen++
	gen := e.gen
	ctx, cancel := context.WithCancel(c.ctx)
	e.cancel = cancel
	e.snap = snapshot{status: StatusLoading, updatedAt: time.Now()}
	fetch := e.fetch

	c.metrics.dispatched(e.key)
	c.logger.Debug("dispatching query", "key", e.key, "generation", gen)

	c.wg.Add(1)
	return func() {
		go c.run(ctx, cancel, e, gen, fetch)
	}
}

func (c *Cache) run(ctx context.Context, cancel context.CancelFunc, e *entry, gen uint64, fetch fetchFunc) {
	defer c.wg.Done()
	defer cancel()

	start := time.Now()
	data, err := c.attempt(ctx, e.key, fetch)
	c.metrics.observe(e.key, time.Since(start))
	c.settle(e, gen, data, err)
}

func (c *Cache) attempt(ctx context.Context, key Key, fetch fetchFunc) (any, error) {
	delay := c.retryDelay
	for i := 0; ; i++ {
		data, err := safeFetch(ctx, fetch)
		if err == nil || i >= c.retries || ctx.Err() != nil {
			return data, err
		}

		c.logger.Debug("retrying query", "key", key, "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func safeFetch(ctx context.Context, fetch fetchFunc) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query function panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func (c *Cache) settle(e *entry, gen uint64, data any, err error) {
	c.mu.Lock()
	if c.closed || c.entries[e.key] != e || e.gen != gen || len(e.subs) == 0 {
		c.mu.Unlock()
		c.metrics.settled(e.key, outcomeDiscarded)
		c.logger.Warn("discarding query result", "key", e.key, "generation", gen)
		return
	}

	now := time.Now()
	if err != nil {
		e.snap = snapshot{status: StatusError, err: err, updatedAt: now}
		c.metrics.settled(e.key, outcomeError)
		c.logger.Debug("query failed", "key", e.key, "error", err)
	} else {
		e.snap = snapshot{status: StatusSuccess, data: data, updatedAt: now}
		c.metrics.settled(e.key, outcomeSuccess)
		c.logger.Debug("query succeeded", "key", e.key)
	}
	e.cancel = nil
	callbacks := subscribersLocked(e)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

func (c *Cache) evictLocked() {
	for c.idle.Len() > c.capacity {
		back := c.idle.Back()
		e := back.Value.(*entry)
		c.idle.Remove(back)
		e.idle = nil
		delete(c.entries, e.key)
		c.logger.Debug("evicted query", "key", e.key)
	}
}

// subscribersLocked returns callbacks in subscription order.
func subscribersLocked(e *entry) []func() {
	ids := make([]uint64, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]func(), len(ids))
	for i, id := range ids {
		out[i] = e.subs[id]
	}
	return out
}
