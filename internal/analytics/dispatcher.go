package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const metricNamespace = "finitefield.org/ledgerline-web/analytics"

var noopMeter = noop.NewMeterProvider().Meter(metricNamespace)

var (
	// ErrQueueFull is returned when the dispatcher drops an event.
	ErrQueueFull = errors.New("analytics: queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("analytics: dispatcher closed")
)

type job struct {
	ctx   context.Context
	event string
	props map[string]any
}

// Dispatcher makes a Tracker fire-and-forget: Track enqueues without blocking
// and a single worker delivers events to the wrapped tracker. Delivery
// failures are logged, never returned to the caller.
type Dispatcher struct {
	next    Tracker
	logger  *zap.Logger
	timeout time.Duration

	delivered metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

// NewDispatcher starts the worker goroutine. Call Close to stop it. Delivery
// counters are registered on the global meter provider.
func NewDispatcher(next Tracker, size int, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if next == nil {
		next = Nop
	}
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		next:    next,
		logger:  logger,
		timeout: timeout,
		queue:   make(chan job, size),
		done:    make(chan struct{}),
	}
	d.registerMetrics(otel.GetMeterProvider().Meter(metricNamespace))
	go d.run()
	return d
}

// Track enqueues the event. The request context's values are kept but its
// cancellation is not, so delivery outlives the request.
func (d *Dispatcher) Track(ctx context.Context, event string, props map[string]any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), event: event, props: cloneProps(props)}:
		return nil
	default:
		d.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
		d.logger.Warn("analytics event dropped", zap.String("event", event), zap.Int("queue", cap(d.queue)))
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to drain or for ctx
// to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
		attrs := metric.WithAttributes(attribute.String("event", j.event))
		if err := d.next.Track(ctx, j.event, j.props); err != nil {
			d.failed.Add(ctx, 1, attrs)
			d.logger.Warn("analytics delivery failed", zap.String("event", j.event), zap.Error(err))
		} else {
			d.delivered.Add(ctx, 1, attrs)
		}
		cancel()
	}
}

func (d *Dispatcher) registerMetrics(meter metric.Meter) {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			d.logger.Warn("analytics: unable to register metric", zap.String("metric", name), zap.Error(err))
			c, _ = noopMeter.Int64Counter(name)
		}
		return c
	}
	d.delivered = counter("analytics.events.delivered", "Events handed to the downstream tracker")
	d.failed = counter("analytics.events.failed", "Events the downstream tracker rejected")
	d.dropped = counter("analytics.events.dropped", "Events dropped because the queue was full")
}
