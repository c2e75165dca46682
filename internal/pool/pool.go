package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClosed is returned by Submit after Close has started.
var ErrClosed = errors.New("pool: closed")

// Pool is a fixed set of goroutines draining one bounded queue.
//
// Closing the queue is the per-worker stop signal: every item accepted by
// Submit before Close is handled before the workers exit. Join waits for the
// queue to go idle without stopping the workers.
type Pool[T any] struct {
	name   string
	queue  chan T
	handle func(T)
	log    *zap.Logger

	mu      sync.Mutex // guards closed and senders.Add
	closed  bool
	closing chan struct{}
	senders sync.WaitGroup
	workers sync.WaitGroup

	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	pending     int

	processed atomic.Uint64
	panics    atomic.Uint64
}

// New starts size workers reading from a queue of the given depth.
func New[T any](name string, size, depth int, handle func(T), log *zap.Logger) *Pool[T] {
	if size < 1 {
		size = 1
	}
	if depth < 0 {
		depth = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool[T]{
		name:    name,
		queue:   make(chan T, depth),
		closing: make(chan struct{}),
		handle:  handle,
		log:     log,
	}
	p.pendingCond = sync.NewCond(&p.pendingMu)

	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool[T]) worker(id int) {
	defer p.workers.Done()
	for item := range p.queue {
		p.run(id, item)
		p.processed.Add(1)
		p.addPending(-1)
	}
}

// run isolates a handler panic so it never takes down the worker.
func (p *Pool[T]) run(id int, item T) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.log.Error("worker recovered from panic",
				zap.String("pool", p.name),
				zap.Int("worker", id),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	p.handle(item)
}

// Submit enqueues item, blocking while the queue is full. It returns ctx.Err()
// if ctx ends first and ErrClosed once Close has been called.
func (p *Pool[T]) Submit(ctx context.Context, item T) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.senders.Add(1)
	p.mu.Unlock()
	defer p.senders.Done()

	p.addPending(1)
	select {
	case p.queue <- item:
		return nil
	case <-ctx.Done():
		p.addPending(-1)
		return ctx.Err()
	case <-p.closing:
		p.addPending(-1)
		return ErrClosed
	}
}

func (p *Pool[T]) addPending(delta int) {
	p.pendingMu.Lock()
	p.pending += delta
	if p.pending == 0 {
		p.pendingCond.Broadcast()
	}
	p.pendingMu.Unlock()
}

// Join blocks until every submitted item has been handled.
func (p *Pool[T]) Join() {
	p.pendingMu.Lock()
	for p.pending > 0 {
		p.pendingCond.Wait()
	}
	p.pendingMu.Unlock()
}

// Close stops accepting items, lets the workers drain the queue and waits
// for them to exit. Safe to call more than once.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.workers.Wait()
		return
	}
	p.closed = true
	close(p.closing)
	p.mu.Unlock()

	// No sender can still be mid-send once this returns, so closing the
	// queue cannot race a send.
	p.senders.Wait()
	close(p.queue)
	p.workers.Wait()
}

// Len is the number of items waiting in the queue.
func (p *Pool[T]) Len() int { return len(p.queue) }

// Processed is the number of items handled so far.
func (p *Pool[T]) Processed() uint64 { return p.processed.Load() }

// Panics is the number of handler panics recovered.
func (p *Pool[T]) Panics() uint64 { return p.panics.Load() }
