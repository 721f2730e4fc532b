package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultQueueSize bounds the serialized queue when New is given no size.
const DefaultQueueSize = 256

// Event represents an incoming callback from a collaborator (marker tracker,
// destination selector).
type Event struct {
	Command   string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	serialized bool
	logged     bool
}

// Serialized defers the handler: Dispatch only enqueues the event, and the
// handler runs later on whichever goroutine calls Drain. All serialized
// handlers share one FIFO, so their events run in arrival order.
func Serialized() Option {
	return func(c *config) {
		c.serialized = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type queued struct {
	event   Event
	handler HandlerFunc
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	qmu      sync.Mutex
	queue    []queued
	capacity int
}

// New creates a new Dispatcher with the given logger and serialized queue
// capacity. Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, queueSize int) (*Dispatcher, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		capacity: queueSize,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := otel.Meter("github.com/wayfind/indoornav/internal/dispatcher")

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events waiting to be drained"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(d.queueSize, int64(d.Pending()))
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	if cfg.serialized {
		handler = d.withQueue(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Unregister removes the handler for command. Events already queued for it
// still run on the next Drain.
func (d *Dispatcher) Unregister(command string) {
	d.mu.Lock()
	delete(d.handlers, command)
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler. It is safe to call
// from any goroutine.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	return len(d.queue)
}

// Drain runs every event queued before the call, in order, on the calling
// goroutine. Events queued by handlers during the drain wait for the next
// call. It returns the number of events run.
func (d *Dispatcher) Drain() int {
	d.qmu.Lock()
	batch := d.queue
	d.queue = make([]queued, 0, cap(batch))
	d.qmu.Unlock()

	for _, q := range batch {
		if _, err := q.handler(q.event); err != nil {
			d.logger.Error("queued event failed", "command", q.event.Command, "error", err)
		}
		d.processed.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("command", q.event.Command)))
	}
	return len(batch)
}

func (d *Dispatcher) withQueue(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := attribute.String("command", command)

	return func(e Event) (any, error) {
		d.qmu.Lock()
		if len(d.queue) >= d.capacity {
			d.qmu.Unlock()
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
		d.queue = append(d.queue, queued{event: e, handler: h})
		d.qmu.Unlock()
		return "queued", nil
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "queuedFor", start.Sub(e.Timestamp))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
