// Package queue serializes calls to a rate limited API.
//
// Operations are dispatched in strict FIFO order. Consecutive dispatch
// starts are at least MinInterval apart across the whole queue, and no
// more than MaxConcurrency operations run at once.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/HendryAvila/workboard-mcp/internal/metrics"
)

// Defaults used when Config fields are zero.
const (
	DefaultMinInterval    = 500 * time.Millisecond
	DefaultMaxConcurrency = 1
)

// ErrClosed is returned for operations submitted after Close.
var ErrClosed = errors.New("queue: closed")

// Config holds the dispatch limits.
type Config struct {
	MinInterval    time.Duration
	MaxConcurrency int
}

// Stats is a point in time view of the queue.
type Stats struct {
	Pending    int    `json:"pending"`
	Active     int    `json:"active"`
	Dispatched uint64 `json:"dispatched"`
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces the wall clock used for dispatch spacing.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithMetrics records queue depth and wait times on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

type request struct {
	ctx        context.Context
	exec       func(ctx context.Context)
	enqueuedAt time.Time
}

// Queue is a FIFO worker pool with a minimum spacing between dispatches.
type Queue struct {
	cfg     Config
	clock   clock.Clock
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	mu         sync.Mutex
	cond       *sync.Cond
	pending    []*request
	active     int
	dispatched uint64
	closed     bool

	// gate is held by the worker that is choosing the next request and
	// waiting for its dispatch slot. Holding it across both steps keeps
	// dispatch order equal to submission order.
	gate         sync.Mutex
	lastDispatch time.Time

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts a queue with cfg.MaxConcurrency workers.
func New(cfg Config, opts ...Option) *Queue {
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	q := &Queue{
		cfg:    cfg,
		clock:  clock.RealClock{},
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.cond = sync.NewCond(&q.mu)

	q.wg.Add(cfg.MaxConcurrency)
	for i := 0; i < cfg.MaxConcurrency; i++ {
		go q.worker()
	}
	return q
}

// enqueue appends r and wakes a worker. It reports false once the queue is
// closed.
func (q *Queue) enqueue(r *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	r.enqueuedAt = q.clock.Now()
	q.pending = append(q.pending, r)
	q.metrics.QueuePending(len(q.pending))
	q.cond.Signal()
	return true
}

// next blocks until a request is available. It returns false when the queue
// is closed and drained.
func (q *Queue) next() (*request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	r := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.active++
	q.dispatched++
	q.metrics.QueuePending(len(q.pending))
	return r, true
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		q.gate.Lock()
		r, ok := q.next()
		if !ok {
			q.gate.Unlock()
			return
		}
		q.waitForSlot()
		now := q.clock.Now()
		q.lastDispatch = now
		q.gate.Unlock()

		q.metrics.QueueDispatched(now.Sub(r.enqueuedAt))
		r.exec(r.ctx)

		q.mu.Lock()
		q.active--
		q.mu.Unlock()
	}
}

// waitForSlot sleeps until MinInterval has passed since the last dispatch.
// The caller holds the gate.
func (q *Queue) waitForSlot() {
	if q.lastDispatch.IsZero() || q.cfg.MinInterval == 0 {
		return
	}
	for {
		wait := q.lastDispatch.Add(q.cfg.MinInterval).Sub(q.clock.Now())
		if wait <= 0 {
			return
		}
		<-q.clock.After(wait)
	}
}

// Stats returns current queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Pending: len(q.pending), Active: q.active, Dispatched: q.dispatched}
}

// Close stops accepting new operations, lets pending ones run, and waits
// for the workers to exit. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	q.wg.Wait()
}

// Submit enqueues op and returns a future for its result. op receives a
// context carrying ctx's values but not its cancellation: once submitted,
// an operation runs to settlement.
func Submit[T any](ctx context.Context, q *Queue, op func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	r := &request{
		ctx: context.WithoutCancel(ctx),
		exec: func(ctx context.Context) {
			v, err := invoke(ctx, op)
			q.metrics.QueueSettled(err)
			if err != nil {
				q.logger.Debugw("queued operation failed", "error", err)
			}
			f.settle(v, err)
		},
	}
	if !q.enqueue(r) {
		var zero T
		f.settle(zero, ErrClosed)
	}
	return f
}

func invoke[T any](ctx context.Context, op func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("queue: operation panicked: %v", p)
		}
	}()
	return op(ctx)
}
