// Package logic contains the pure control logic for the reservoir controller:
// the pump duty-cycle scheduler, the uplink keep-alive state machine and the
// TDS signal chain.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Phase is the pump scheduler state.
type Phase string

const (
	PhasePumping Phase = "PUMPING"
	PhaseResting Phase = "RESTING"
)

// Cause records why a pump transition happened.
type Cause string

const (
	CauseSchedule Cause = "schedule"
	CauseManual   Cause = "manual"
)

// PumpEvent represents a pump phase change to be published.
type PumpEvent struct {
	Timestamp time.Time
	From      Phase
	To        Phase
	Cause     Cause
}

// On reports whether the pump runs after this event.
func (e PumpEvent) On() bool {
	return e.To == PhasePumping
}

// Schedule holds the pump duty-cycle limits.
type Schedule struct {
	OnLimit       time.Duration
	OffLimitDay   time.Duration
	OffLimitNight time.Duration
	// Day window in local hours, [DayStartHour, DayEndHour).
	// A window with start > end wraps past midnight; start == end is all day.
	DayStartHour int
	DayEndHour   int
}

// PumpCounts tracks the number of pump transitions since startup.
type PumpCounts struct {
	On     int
	Off    int
	Manual int
}

// PumpSnapshot is a point-in-time view of the scheduler.
type PumpSnapshot struct {
	On      bool
	Phase   Phase
	Elapsed time.Duration
	Counts  PumpCounts
}

// LinkStatus is the state of the uplink as seen by the keep-alive loop.
type LinkStatus string

const (
	LinkDisconnected LinkStatus = "DISCONNECTED"
	LinkConnecting   LinkStatus = "CONNECTING"
	LinkConnected    LinkStatus = "CONNECTED"
)

// LinkTransition is a single change of LinkStatus.
type LinkTransition struct {
	Timestamp time.Time
	From      LinkStatus
	To        LinkStatus
}

// LinkAction tells the caller what to do with the transport after a Step.
type LinkAction int

const (
	LinkActionNone LinkAction = iota
	LinkActionConnect
)

// LinkCounts tracks connection attempts since startup.
type LinkCounts struct {
	Attempts int
	Failures int
	Drops    int
}

// SensorReading is one water-quality measurement.
type SensorReading struct {
	Timestamp        time.Time
	TemperatureC     float64
	ConcentrationPPM float64
	// Median is the filtered raw ADC value the concentration was derived from.
	Median int
	// Degraded is set when the temperature probe failed and the sentinel
	// temperature was used for compensation.
	Degraded bool
}
