// Package loader performs asynchronous, cancellable loading and decoding of
// tile pixel data off the render thread.
//
// Two scheduling domains meet here: the render thread issues requests and
// drains completions once per tick; a fixed pool of workers fetches and
// decodes. The bounded request queue is the backpressure mechanism between
// them: the render thread blocks when the pool is saturated, which caps
// memory held by in-flight tiles regardless of source throughput.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eak1mov/go-libwall/tile"
)

var ErrClosed = errors.New("libwall: loader closed")

// Source fetches and decodes one tile's pixel data. The factory passed to
// New is invoked once per worker so each worker owns its Source instance;
// a Source may therefore hold decoder scratch state without locking.
type Source interface {
	Fetch(ctx context.Context, id tile.ID) ([]byte, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, id tile.ID) ([]byte, error)

func (f SourceFunc) Fetch(ctx context.Context, id tile.ID) ([]byte, error) {
	return f(ctx, id)
}

// Result is one completed load, delivered to the render thread via Drain.
// Err is set on decode failure; the tile then stays without pixel data and
// renders blank.
type Result struct {
	Index  tile.Index
	ID     tile.ID
	Pixels []byte
	Err    error
}

type request struct {
	index     tile.Index
	id        tile.ID
	cancelled atomic.Bool
}

// Loader runs the worker pool. Request/Cancel/Drain are called from the
// render thread; CancelAll and Close may be called from a teardown thread.
type Loader struct {
	logger    *slog.Logger
	newSource func() Source
	queueCap  int
	workers   int

	requests chan *request
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu       sync.Mutex
	idle     *sync.Cond
	pending  map[tile.Index]*request
	done     []Result
	closed   bool
	failures uint64
}

type Option func(*Loader)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithWorkers sets the worker pool size. Default: GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(l *Loader) { l.workers = n }
}

// WithQueueCapacity bounds the request queue. Default: 2x workers.
func WithQueueCapacity(n int) Option {
	return func(l *Loader) { l.queueCap = n }
}

// New starts a loader. newSource is called once per worker.
func New(newSource func() Source, opts ...Option) *Loader {
	l := &Loader{
		logger:    slog.New(slog.DiscardHandler),
		newSource: newSource,
		workers:   runtime.GOMAXPROCS(0),
		pending:   make(map[tile.Index]*request),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.queueCap <= 0 {
		l.queueCap = 2 * l.workers
	}
	l.idle = sync.NewCond(&l.mu)
	l.requests = make(chan *request, l.queueCap)
	l.ctx, l.cancel = context.WithCancel(context.Background())

	for range l.workers {
		l.wg.Add(1)
		go l.worker()
	}
	return l
}

// Request schedules a load for a tile. At most one load per index is
// outstanding: a request for a tile already pending is a no-op, not a
// duplicate fetch. Blocks when the request queue is full.
func (l *Loader) Request(index tile.Index, id tile.ID) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if _, ok := l.pending[index]; ok {
		l.mu.Unlock()
		return nil
	}
	req := &request{index: index, id: id}
	l.pending[index] = req
	l.mu.Unlock()

	l.requests <- req
	return nil
}

// Cancel abandons an outstanding load, best-effort: a load already in
// progress runs to completion and its result is discarded.
func (l *Loader) Cancel(index tile.Index) {
	l.mu.Lock()
	if req, ok := l.pending[index]; ok {
		req.cancelled.Store(true)
	}
	l.mu.Unlock()
}

// CancelAll abandons every outstanding load and blocks until all in-flight
// work has observably finished. Only after it returns is it safe to destroy
// the sources the workers hold.
func (l *Loader) CancelAll() {
	l.mu.Lock()
	for _, req := range l.pending {
		req.cancelled.Store(true)
	}
	for len(l.pending) > 0 {
		l.idle.Wait()
	}
	l.mu.Unlock()
}

// Drain returns the results completed since the last call. The render
// thread calls it at the start of each tick.
func (l *Loader) Drain() []Result {
	l.mu.Lock()
	done := l.done
	l.done = nil
	l.mu.Unlock()
	return done
}

// Pending returns the number of outstanding loads.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Failures returns the lifetime count of failed loads.
func (l *Loader) Failures() uint64 {
	return atomic.LoadUint64(&l.failures)
}

// Close cancels outstanding work, stops the workers and waits for them to
// exit. No Request may be issued concurrently with or after Close.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.wg.Wait()
		return
	}
	l.closed = true
	for _, req := range l.pending {
		req.cancelled.Store(true)
	}
	l.mu.Unlock()

	l.cancel()
	close(l.requests)
	l.wg.Wait()
}

func (l *Loader) worker() {
	defer l.wg.Done()
	src := l.newSource()

	for req := range l.requests {
		if req.cancelled.Load() {
			l.finish(req, Result{}, false)
			continue
		}

		pixels, err := src.Fetch(l.ctx, req.id)
		if err != nil {
			atomic.AddUint64(&l.failures, 1)
			l.logger.Warn("libwall: tile load failed", "tile", req.id, "error", err)
		}
		l.finish(req, Result{Index: req.index, ID: req.id, Pixels: pixels, Err: err}, true)
	}
}

func (l *Loader) finish(req *request, res Result, deliver bool) {
	l.mu.Lock()
	delete(l.pending, req.index)
	if deliver && !req.cancelled.Load() && !l.closed {
		l.done = append(l.done, res)
	}
	l.idle.Broadcast()
	l.mu.Unlock()
}
