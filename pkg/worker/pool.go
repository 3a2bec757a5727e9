package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/metric"
)

// Sentinel errors for pool operations.
var (
	ErrPoolNotStarted     = errors.New("worker pool not started")
	ErrPoolStopped        = errors.New("worker pool stopped")
	ErrPoolAlreadyStarted = errors.New("worker pool already started")
	ErrQueueFull          = errors.New("worker pool queue full")
	ErrNilProcessor       = errors.New("processor function cannot be nil")
	ErrStopTimeout        = errors.New("timeout waiting for workers to stop")
)

// Defaults used when NewPool gets non-positive sizes.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// Pool processes items of type T with a fixed number of workers.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	work chan T
	wg   sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	name     string
	registry metric.MetricsRegistrar
	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithMetrics registers the pool's metrics with registry, labelled with
// name.
func WithMetrics[T any](registry metric.MetricsRegistrar, name string) Option[T] {
	return func(p *Pool[T]) {
		p.registry = registry
		p.name = name
	}
}

// NewPool creates a pool. Non-positive sizes fall back to the defaults.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if processor == nil {
		return nil, errors.WrapInvalid(ErrNilProcessor, "Pool", "NewPool", "check processor")
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		work:      make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry != nil {
		if err := p.initializeMetrics(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pool[T]) initializeMetrics() error {
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "mmif",
		Subsystem:   "worker",
		Name:        "items_total",
		Help:        "Items processed by a worker pool, by outcome.",
		ConstLabels: prometheus.Labels{"pool": p.name},
	}, []string{"status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "mmif",
		Subsystem:   "worker",
		Name:        "duration_seconds",
		Help:        "Time spent processing one item.",
		ConstLabels: prometheus.Labels{"pool": p.name},
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, nil)

	owner := "worker." + p.name
	if err := p.registry.RegisterCounterVec(owner, "items_total", items); err != nil {
		return err
	}
	if err := p.registry.RegisterHistogramVec(owner, "duration_seconds", duration); err != nil {
		p.registry.Unregister(owner, "items_total")
		return err
	}
	p.items = items
	p.duration = duration
	return nil
}

// Start launches the workers. They exit when ctx is done or the pool is
// stopped.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Submit queues work without blocking.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.work <- work:
		p.submitted.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		if p.items != nil {
			p.items.WithLabelValues("dropped").Inc()
		}
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for the workers to drain it. A
// non-positive timeout waits indefinitely.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}
	p.stopped = true
	close(p.work)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return errors.WrapTransient(fmt.Errorf("%w after %s", ErrStopTimeout, timeout), "Pool", "Stop", "wait for workers")
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// Stats returns current counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.work),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.work:
			if !ok {
				return
			}
			start := time.Now()
			err := p.processor(ctx, work)
			elapsed := time.Since(start)

			p.processed.Add(1)
			status := "ok"
			if err != nil {
				p.failed.Add(1)
				status = "error"
			}
			if p.items != nil {
				p.items.WithLabelValues(status).Inc()
				p.duration.WithLabelValues().Observe(elapsed.Seconds())
			}
		}
	}
}
