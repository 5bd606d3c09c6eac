package control

import (
	"context"
	"log/slog"

	"github.com/sweeney/hydro-controller/internal/metrics"
)

type notification struct {
	key   string
	value string
}

// Dispatcher decouples the control loops from the sink. Notify never blocks;
// a single goroutine drains the queue into the sink.
type Dispatcher struct {
	sink   Sink
	queue  chan notification
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher holding up to size pending notifications.
func NewDispatcher(sink Sink, size int, logger *slog.Logger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		sink:   sink,
		queue:  make(chan notification, size),
		logger: logger,
	}
}

// Notify queues a notification. It returns false if the queue was full and
// the notification was dropped.
func (d *Dispatcher) Notify(key, value string) bool {
	select {
	case d.queue <- notification{key: key, value: value}:
		return true
	default:
		metrics.NotificationsTotal.WithLabelValues(key, metrics.ResultDropped).Inc()
		d.logger.Warn("notification queue full, dropping", "key", key, "value", value)
		return false
	}
}

// Run delivers notifications until ctx is done, then flushes whatever is
// still queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-ctx.Done():
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n notification) {
	if err := d.sink.Publish(n.key, n.value); err != nil {
		metrics.NotificationsTotal.WithLabelValues(n.key, metrics.ResultFailed).Inc()
		d.logger.Warn("notification failed", "key", n.key, "err", err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(n.key, metrics.ResultSent).Inc()
	d.logger.Debug("notification sent", "key", n.key, "value", n.value)
}
