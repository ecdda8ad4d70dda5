package notify

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/devdash/internal/alert"
	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/logger"
)

const (
	DefaultQueueSize = 16
	deliveryTimeout  = 5 * time.Second
)

// Dispatcher delivers alert events to the sinks on its own goroutine so a
// slow or failing sink never holds up a sampling pass.
type Dispatcher struct {
	notifications NotificationSink
	haptics       HapticSink
	log           logger.Logger

	queue chan alert.Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the delivery worker. Either sink may be nil.
func NewDispatcher(notifications NotificationSink, haptics HapticSink, queueSize int, log logger.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}

	d := &Dispatcher{
		notifications: notifications,
		haptics:       haptics,
		log:           log,
		queue:         make(chan alert.Event, queueSize),
	}

	d.wg.Add(1)
	go d.worker()

	return d
}

// Dispatch queues events for delivery. Events that do not fit in the queue
// are dropped and logged.
func (d *Dispatcher) Dispatch(events ...alert.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, ev := range events {
		if d.closed {
			d.log.Warn().Str("kind", string(ev.Kind)).Msg("Dispatcher closed, dropping notification")
			continue
		}
		select {
		case d.queue <- ev:
		default:
			d.log.Warn().Str("kind", string(ev.Kind)).Str("id", ev.ID).Msg("Notification queue full, dropping event")
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev alert.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if d.notifications != nil {
		if err := d.notifications.Schedule(ctx, ev.Title, ev.Body); err != nil {
			d.logFailure(err, ev, "notification")
		}
	}

	if ev.Haptic && d.haptics != nil {
		if err := d.haptics.Trigger(ctx, string(ev.Kind)); err != nil {
			d.logFailure(err, ev, "haptic")
		}
	}
}

func (d *Dispatcher) logFailure(err error, ev alert.Event, sink string) {
	d.log.Warn().
		Err(err).
		Str("code", string(errors.ErrDispatchFailed)).
		Str("sink", sink).
		Str("kind", string(ev.Kind)).
		Msg("Notification delivery failed")
}
