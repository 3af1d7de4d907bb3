package resource

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gogpu/stage"
)

// Option configures a Loader.
type Option func(*options)

type options struct {
	workers        int
	maxTextureSize int
	queueSize      int
	registry       *Registry
}

func defaultOptions() options {
	return options{
		workers:        runtime.NumCPU(),
		maxTextureSize: 4096,
		queueSize:      256,
	}
}

// WithWorkers bounds the number of concurrent decodes.
// Default: runtime.NumCPU()
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMaxTextureSize downscales images whose width or height exceeds n.
// Zero disables downscaling.
// Default: 4096
func WithMaxTextureSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxTextureSize = n
		}
	}
}

// WithQueueSize sets the capacity of the completion channel.
// Default: 256
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithRegistry makes the loader publish handles into r.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

type completion struct {
	h *Handle
	r result
}

type watchEntry struct {
	id   ID
	kind Kind
	gen  uint32
}

// Loader decodes assets on a bounded worker pool.
//
// Load, Watch and Close may be called from any goroutine. Drain must only
// be called by the single consumer, normally the engine's tick.
type Loader struct {
	opts     options
	registry *Registry
	sem      *semaphore.Weighted
	group    errgroup.Group
	results  chan completion

	ctx    context.Context
	cancel context.CancelFunc

	// abandoned is closed when Close stops waiting; workers still running
	// drop their results.
	abandoned chan struct{}
	inflight  atomic.Int64

	mu      sync.Mutex
	closed  bool
	watched map[string]*watchEntry
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		opts:      o,
		registry:  o.registry,
		sem:       semaphore.NewWeighted(int64(o.workers)),
		results:   make(chan completion, o.queueSize),
		ctx:       ctx,
		cancel:    cancel,
		abandoned: make(chan struct{}),
		watched:   make(map[string]*watchEntry),
	}
}

// Registry returns the registry handles are published to.
func (l *Loader) Registry() *Registry { return l.registry }

// InFlight returns the number of loads not yet drained.
func (l *Loader) InFlight() int { return int(l.inflight.Load()) }

// Load starts loading src and returns its Pending handle. The handle is
// registered under a fresh id immediately. After Close, Load returns a
// handle that has already Failed with ErrClosed.
func (l *Loader) Load(src Source, kind Kind) *Handle {
	h := newHandle(stage.NextTextureID(), 0, kind, src.Name())

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		h.complete(result{err: &LoadError{Source: h.source, Kind: kind, Err: ErrClosed}})
		return h
	}
	if _, ok := src.(fileSource); ok {
		l.watched[h.source] = &watchEntry{id: h.id, kind: kind}
	}
	l.registry.add(h)
	l.start(h, src)
	l.mu.Unlock()

	stage.Logger().Debug("resource: load", "source", h.source, "kind", kind, "id", h.id)
	return h
}

// start runs the load of h. It must be called with l.mu held and the
// loader open, so Close never misses a started worker.
func (l *Loader) start(h *Handle, src Source) {
	l.inflight.Add(1)
	l.group.Go(func() error {
		c := completion{h: h, r: l.run(h, src)}
		select {
		case l.results <- c:
		case <-l.abandoned:
			l.inflight.Add(-1)
		}
		return nil
	})
}

func (l *Loader) run(h *Handle, src Source) result {
	fail := func(err error) result {
		return result{err: &LoadError{Source: h.source, Kind: h.kind, Err: err}}
	}
	if err := l.sem.Acquire(l.ctx, 1); err != nil {
		return fail(ErrClosed)
	}
	defer l.sem.Release(1)

	rc, err := src.Open(l.ctx)
	if err != nil {
		return fail(err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fail(fmt.Errorf("read: %w", err))
	}
	r := decode(data, h.kind, l.opts.maxTextureSize)
	if r.err != nil {
		return fail(r.err)
	}
	return r
}

// Drain applies every completion received so far and returns the handles
// that changed state, in completion order. It never blocks. A reload that
// becomes Ready replaces the previous generation in the registry; a failed
// reload leaves the previous generation in place.
func (l *Loader) Drain() []*Handle {
	select {
	case <-l.abandoned:
		l.discard()
		return nil
	default:
	}
	var done []*Handle
	for {
		select {
		case c := <-l.results:
			l.inflight.Add(-1)
			if l.apply(c) {
				done = append(done, c.h)
			}
		default:
			return done
		}
	}
}

func (l *Loader) discard() {
	for {
		select {
		case <-l.results:
			l.inflight.Add(-1)
		default:
			return
		}
	}
}

func (l *Loader) apply(c completion) bool {
	h := c.h
	if !h.complete(c.r) {
		return false
	}
	log := stage.Logger()
	if err := h.Err(); err != nil {
		log.Warn("resource: load failed", "source", h.source, "id", h.id, "gen", h.gen, "err", err)
		return true
	}
	if h.gen > 0 {
		if !l.registry.swap(h) {
			log.Debug("resource: stale reload ignored", "source", h.source, "id", h.id, "gen", h.gen)
			return false
		}
		log.Info("resource: reloaded", "source", h.source, "id", h.id, "gen", h.gen)
		return true
	}
	log.Debug("resource: ready", "source", h.source, "id", h.id)
	return true
}

// Close stops accepting loads and waits for running ones until ctx is
// done. If every load finished, their completions stay available to
// Drain. If ctx expires first, the remaining loads are cancelled, Drain
// discards every later completion and the affected handles stay Pending.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	wait := make(chan struct{})
	go func() {
		_ = l.group.Wait()
		close(wait)
	}()

	var err error
	select {
	case <-wait:
	case <-ctx.Done():
		err = ctx.Err()
		stage.Logger().Warn("resource: shutdown grace expired", "inflight", l.InFlight())
		close(l.abandoned)
	}
	l.cancel()
	return err
}

// reload starts a new generation of a watched file. It reports false if
// the path is not watched or the loader is closed.
func (l *Loader) reload(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.watched[path]
	if !ok || l.closed {
		return false
	}
	e.gen++
	h := newHandle(e.id, e.gen, e.kind, path)
	l.start(h, FileSource(path))
	return true
}
