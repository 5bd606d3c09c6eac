package control

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/metrics"
)

// PumpState is the only state shared between loops: the scheduler plus the
// relay it drives. The relay is written under the same lock so the output
// and the scheduler never disagree.
type PumpState struct {
	mu       sync.Mutex
	sched    *logic.PumpScheduler
	actuator gpio.Switch
	logger   *slog.Logger

	lastTick time.Time
	failing  bool

	// sampling counts sensor cycles in progress; while non-zero a due
	// scheduled start is held back. Overrides are not affected.
	sampling int
	held     bool
}

// NewPumpState wraps a scheduler and its relay.
func NewPumpState(sched *logic.PumpScheduler, actuator gpio.Switch, logger *slog.Logger) *PumpState {
	return &PumpState{sched: sched, actuator: actuator, logger: logger}
}

// Tick advances the schedule one step and asserts the relay. The relay is
// written on every tick, so a failed write is retried on the next one.
func (p *PumpState) Tick(now time.Time, hour int, hourKnown bool) *logic.PumpEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastTick = now
	if p.sampling > 0 && p.sched.RestDue(hour, hourKnown) {
		if !p.held {
			p.logger.Info("pump start held until sensor cycle ends")
			p.held = true
		}
		p.write(false)
		return nil
	}
	p.held = false

	on, ev := p.sched.Tick(now, hour, hourKnown)
	p.write(on)
	return ev
}

// BeginSampling takes a sampling lease if the pump is resting. While any
// lease is held the scheduler stays in its rest phase past the limit.
func (p *PumpState) BeginSampling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sched.On() {
		return false
	}
	p.sampling++
	return true
}

// EndSampling releases a lease taken by BeginSampling.
func (p *PumpState) EndSampling() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sampling > 0 {
		p.sampling--
	}
}

// Override forces the pump on or off and restarts the phase timer.
func (p *PumpState) Override(now time.Time, on bool) *logic.PumpEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	ev := p.sched.Override(now, on)
	p.write(on)
	return ev
}

// Off de-energises the relay without touching the schedule. Used on shutdown.
func (p *PumpState) Off() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.actuator.Set(false); err != nil {
		return fmt.Errorf("pump off: %w", err)
	}
	metrics.PumpOn.Set(0)
	return nil
}

func (p *PumpState) write(on bool) {
	if err := p.actuator.Set(on); err != nil {
		metrics.ActuatorErrorsTotal.WithLabelValues("pump").Inc()
		if !p.failing {
			p.logger.Error("pump relay write failed", "on", on, "err", err)
			p.failing = true
		}
		return
	}
	if p.failing {
		p.logger.Info("pump relay write recovered", "on", on)
		p.failing = false
	}
	metrics.PumpOn.Set(metrics.Bool(on))
}

// On reports whether the pump phase is PUMPING.
func (p *PumpState) On() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sched.On()
}

// Snapshot returns the scheduler state.
func (p *PumpState) Snapshot() logic.PumpSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sched.Snapshot()
}

// LastTick returns the time of the most recent Tick.
func (p *PumpState) LastTick() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTick
}
