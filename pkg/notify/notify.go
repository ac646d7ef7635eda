// Package notify fans review lifecycle events out to registered sinks.
// Publishing never blocks the caller; delivery happens on a background
// worker in publish order.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/patchgate-project/patchgate/pkg/logging"
	"github.com/patchgate-project/patchgate/pkg/metrics"
	"github.com/patchgate-project/patchgate/pkg/model"
)

// Sink receives events from the dispatcher. Deliver runs on the worker
// goroutine and should return quickly; slow transports queue internally.
type Sink interface {
	Deliver(ev model.Event)
}

// DefaultQueueSize bounds the dispatcher queue.
const DefaultQueueSize = 256

// Dispatcher queues events and delivers them to all sinks in order.
type Dispatcher struct {
	mu      sync.RWMutex
	sinks   []Sink
	queue   chan model.Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
	started bool
	reg     *metrics.Registry
}

// NewDispatcher creates a dispatcher with the given sinks and starts its
// worker.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return NewDispatcherSize(DefaultQueueSize, sinks...)
}

// NewDispatcherSize creates a dispatcher with an explicit queue capacity.
func NewDispatcherSize(queueSize int, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sinks:  sinks,
		queue:  make(chan model.Event, queueSize),
		ctx:    ctx,
		cancel: cancel,
		reg:    metrics.Default(),
	}
	d.start()
	return d
}

// AddSink registers an additional sink. Safe to call while running;
// events already queued are delivered to the new sink too.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, s)
	d.mu.Unlock()
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		d.started = true
		d.wg.Add(1)
		go d.worker()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			// Drain remaining events
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		case ev := <-d.queue:
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) deliver(ev model.Event) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, s := range sinks {
		s.Deliver(ev)
	}
}

// Publish enqueues an event for delivery. It never blocks; when the
// queue is full the event is dropped and counted.
func (d *Dispatcher) Publish(ev model.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	select {
	case d.queue <- ev:
		d.reg.Inc(metrics.EventsPublished)
	default:
		d.reg.Inc(metrics.EventsDropped)
		logging.Debug("notification queue full, dropping event",
			map[string]any{"event": string(ev.Type), "permission_id": ev.PermissionID})
	}
}

// Close stops the worker after draining queued events.
func (d *Dispatcher) Close() error {
	d.cancel()
	d.wg.Wait()
	return nil
}

// LogSink writes every event to the structured log.
type LogSink struct{}

// Deliver implements Sink.
func (LogSink) Deliver(ev model.Event) {
	fields := map[string]any{"event": string(ev.Type)}
	if ev.PermissionID != "" {
		fields["permission_id"] = ev.PermissionID
	}
	if ev.ChangeID != "" {
		fields["change_id"] = string(ev.ChangeID)
	}
	if ev.Status != "" {
		fields["status"] = ev.Status
	}
	if ev.FileCount > 0 {
		fields["file_count"] = ev.FileCount
	}
	logging.Debug("review event", fields)
}

// Func adapts a plain function to the Sink interface.
type Func func(ev model.Event)

// Deliver implements Sink.
func (f Func) Deliver(ev model.Event) { f(ev) }
