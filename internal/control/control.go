// Package control runs the pump, sensor and uplink loops and owns the state
// they share.
//
// The pure state machines live in internal/logic; this package adds the
// goroutines, the actuator writes and the notification fan-out.
package control

import (
	"context"
	"time"

	"github.com/sweeney/hydro-controller/internal/logic"
)

// LinkTransport is the uplink supervised by the keep-alive loop.
// Connect must not block; it starts an attempt whose progress Status reports.
type LinkTransport interface {
	Status() logic.LinkStatus
	Connect() error
}

// WallClock supplies the local hour. ok=false means the time is not known.
type WallClock interface {
	Hour() (hour int, ok bool)
}

// Sink delivers key/value notifications to the remote collector.
type Sink interface {
	Publish(key, value string) error
}

// Acquirer takes one sensor reading.
type Acquirer interface {
	Acquire(ctx context.Context) (logic.SensorReading, error)
}

// Schedule yields the next sensor cycle time. cron.Schedule satisfies it.
type Schedule interface {
	Next(time.Time) time.Time
}

// Observer receives state for display. Implementations must not block.
type Observer interface {
	UpdatePump(s logic.PumpSnapshot)
	UpdateReading(r logic.SensorReading)
	UpdateLink(status logic.LinkStatus, counts logic.LinkCounts)
}

type nopObserver struct{}

func (nopObserver) UpdatePump(logic.PumpSnapshot)                 {}
func (nopObserver) UpdateReading(logic.SensorReading)             {}
func (nopObserver) UpdateLink(logic.LinkStatus, logic.LinkCounts) {}
