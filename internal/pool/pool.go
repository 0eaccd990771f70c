// Package pool provides a fixed-size worker pool draining a single shared
// unbounded job queue.
//
// Workers are spawned once at construction and live for the life of the
// process; there is no shutdown path, no cancellation, and no backpressure.
// [Pool.Submit] is fire-and-forget: the caller gets no completion signal and
// no error propagation from the handler. A handler that blocks forever
// occupies its worker permanently, shrinking effective capacity by one.
package pool

import (
	"log/slog"
	"sync/atomic"
)

// Pool owns a fixed set of workers and the producer side of the shared queue.
// The payload type T is fixed per pool instance.
type Pool[T any] struct {
	queue   *queue[job[T]]
	workers int
	respawn bool
	log     *slog.Logger

	submitted atomic.Int64
	executed  atomic.Int64
	active    atomic.Int64
	panics    atomic.Int64
}

type options struct {
	log     *slog.Logger
	respawn bool
}

// Option configures a Pool at construction time.
type Option func(*options)

// WithLogger sets the logger used by workers. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRespawn makes a worker survive handler panics: the worker recovers,
// logs the panic, and continues its consume loop. When disabled (the
// default) a panicking handler permanently stops its worker, and pool
// capacity shrinks by one with no replacement.
func WithRespawn(respawn bool) Option {
	return func(o *options) { o.respawn = respawn }
}

// New creates a Pool and immediately spawns workers goroutines, all draining
// one shared queue.
//
// workers must be at least 1 for the pool to make progress. A pool of size 0
// accepts submissions without error but never executes them; the backlog
// grows without bound. This is documented misuse, not a runtime error;
// validate the count at the configuration layer.
func New[T any](workers int, opts ...Option) *Pool[T] {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	p := &Pool[T]{
		queue:   newQueue[job[T]](),
		workers: workers,
		respawn: o.respawn,
		log:     o.log,
	}
	for id := 0; id < workers; id++ {
		go p.runWorker(id)
	}
	return p
}

// Submit enqueues a job and returns immediately, regardless of pool
// saturation. The handler runs on exactly one worker, exactly once, in
// submission order relative to other jobs submitted from the same goroutine.
// Completion is not observable by the caller.
func (p *Pool[T]) Submit(h Handler[T], payload T) {
	p.submitted.Add(1)
	p.queue.enqueue(job[T]{handler: h, payload: payload})
}

// Shutdown is a deliberate no-op retained for interface symmetry. It does
// not stop workers and does not drain the queue; workers run until the
// process exits. Draining would make completion observable to submitters,
// which Submit's contract rules out.
func (p *Pool[T]) Shutdown() {}

// runWorker is the consume loop: dequeue one job, invoke its handler, repeat.
// The loop has no exit condition. It ends only if a handler panics and
// respawn is disabled.
func (p *Pool[T]) runWorker(id int) {
	p.log.Debug("worker started", "worker", id)
	for {
		j := p.queue.dequeue()
		p.log.Debug("executing job", "worker", id)
		if !p.invoke(id, j) {
			if p.respawn {
				p.log.Warn("worker resuming after handler panic", "worker", id)
				continue
			}
			p.log.Error("worker stopped after handler panic", "worker", id)
			return
		}
	}
}

// invoke runs j's handler and reports whether it completed without
// panicking. The recover here exists only to keep a handler fault from
// taking down the whole process; the worker's fate is decided by the caller.
func (p *Pool[T]) invoke(id int, j job[T]) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.active.Add(-1)
			p.log.Error("handler panic", "worker", id, "panic", r)
		}
	}()
	p.active.Add(1)
	j.handler.Invoke(j.payload)
	p.active.Add(-1)
	p.executed.Add(1)
	return true
}

// Workers returns the worker count the pool was constructed with. It does
// not account for workers lost to handler panics.
func (p *Pool[T]) Workers() int { return p.workers }

// QueueDepth returns the number of jobs waiting to be dequeued.
func (p *Pool[T]) QueueDepth() int { return p.queue.len() }

// Submitted returns the total number of jobs accepted by Submit.
func (p *Pool[T]) Submitted() int64 { return p.submitted.Load() }

// Executed returns the total number of handler invocations that completed.
func (p *Pool[T]) Executed() int64 { return p.executed.Load() }

// Active returns the number of handlers executing right now.
func (p *Pool[T]) Active() int64 { return p.active.Load() }

// Panics returns the total number of handler panics observed.
func (p *Pool[T]) Panics() int64 { return p.panics.Load() }
