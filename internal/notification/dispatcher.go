package notification

import (
	"context"
	"sync"
	"time"

	"go-hris-leave/internal/shared/contextutil"

	"go.uber.org/zap"
)

const (
	defaultBuffer  = 256
	deliverTimeout = 5 * time.Second
)

// Dispatcher queues events in a bounded buffer and delivers them from a
// single goroutine. A full buffer drops the event.
type Dispatcher struct {
	sink     Sink
	resolver RecipientResolver
	queue    chan Event
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	start  sync.Once
}

var _ Publisher = (*Dispatcher)(nil)

func NewDispatcher(sink Sink, resolver RecipientResolver, buffer int, logger ...*zap.Logger) *Dispatcher {
	l := zap.L().Named("notification.dispatcher")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.dispatcher")
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Dispatcher{
		sink:     sink,
		resolver: resolver,
		queue:    make(chan Event, buffer),
		logger:   l,
		done:     make(chan struct{}),
	}
}

// Start launches the delivery goroutine. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		go d.run()
	})
}

func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = contextutil.GetRequestID(ctx)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped, dispatcher closed",
			zap.String("kind", string(event.Kind)),
			zap.String("leave_id", event.LeaveID),
		)
		return
	}

	select {
	case d.queue <- event:
	default:
		d.logger.Warn("notification dropped, queue full",
			zap.String("kind", string(event.Kind)),
			zap.String("leave_id", event.LeaveID),
			zap.Int("capacity", cap(d.queue)),
		)
	}
}

// Close stops intake and waits for queued events to be delivered or for ctx
// to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.Start()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	ctx = contextutil.WithRequestID(ctx, event.RequestID)

	var recipients []string
	if d.resolver != nil {
		r, err := d.resolver.Recipients(ctx, event.CompanyID, event.EmployeeID)
		if err != nil {
			d.logger.Warn("resolve notification recipients failed",
				zap.String("leave_id", event.LeaveID),
				zap.String("employee_id", event.EmployeeID),
				zap.Error(err),
			)
		}
		recipients = r
	}

	if err := d.sink.Notify(ctx, event, recipients); err != nil {
		d.logger.Error("notification delivery failed",
			zap.String("kind", string(event.Kind)),
			zap.String("leave_id", event.LeaveID),
			zap.String("request_id", event.RequestID),
			zap.Error(err),
		)
		return
	}

	d.logger.Debug("notification delivered",
		zap.String("kind", string(event.Kind)),
		zap.String("leave_id", event.LeaveID),
		zap.Int("recipients", len(recipients)),
	)
}
