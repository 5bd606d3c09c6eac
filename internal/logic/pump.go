package logic

import "time"

// PumpScheduler decides pump ON/OFF once per tick.
// Phase limits are measured in accumulated tick durations, not wall-clock deltas.
type PumpScheduler struct {
	schedule Schedule
	tick     time.Duration
	phase    Phase
	elapsed  time.Duration
	counts   PumpCounts
}

// NewPumpScheduler creates a scheduler that starts PUMPING with zero elapsed time.
// tick is the interval between calls to Tick.
func NewPumpScheduler(schedule Schedule, tick time.Duration) *PumpScheduler {
	return &PumpScheduler{
		schedule: schedule,
		tick:     tick,
		phase:    PhasePumping,
	}
}

// Tick advances the state machine by one tick and returns the actuator state
// to assert. A non-nil event is returned when the phase changed on this tick.
// hourKnown=false means the wall clock is unavailable; the day limit is used.
func (p *PumpScheduler) Tick(now time.Time, hour int, hourKnown bool) (bool, *PumpEvent) {
	switch p.phase {
	case PhasePumping:
		if p.elapsed < p.schedule.OnLimit {
			p.elapsed += p.tick
			return true, nil
		}
		return false, p.transition(now, PhaseResting, CauseSchedule)

	default:
		if p.elapsed < p.OffLimit(hour, hourKnown) {
			p.elapsed += p.tick
			return false, nil
		}
		return true, p.transition(now, PhasePumping, CauseSchedule)
	}
}

// Override forces the pump into the given state. Elapsed time restarts from
// zero and normal phase limits apply from there. An event is always returned,
// even when the pump was already in the requested phase.
func (p *PumpScheduler) Override(now time.Time, on bool) *PumpEvent {
	to := PhaseResting
	if on {
		to = PhasePumping
	}
	return p.transition(now, to, CauseManual)
}

func (p *PumpScheduler) transition(now time.Time, to Phase, cause Cause) *PumpEvent {
	event := &PumpEvent{
		Timestamp: now,
		From:      p.phase,
		To:        to,
		Cause:     cause,
	}

	p.phase = to
	p.elapsed = 0

	if to == PhasePumping {
		p.counts.On++
	} else {
		p.counts.Off++
	}
	if cause == CauseManual {
		p.counts.Manual++
	}

	return event
}

// OffLimit returns the rest duration that applies at the given local hour.
func (p *PumpScheduler) OffLimit(hour int, hourKnown bool) time.Duration {
	if !hourKnown || InDayWindow(hour, p.schedule.DayStartHour, p.schedule.DayEndHour) {
		return p.schedule.OffLimitDay
	}
	return p.schedule.OffLimitNight
}

// RestDue reports whether the rest phase has run its full limit, so the next
// Tick would start the pump.
func (p *PumpScheduler) RestDue(hour int, hourKnown bool) bool {
	return p.phase != PhasePumping && p.elapsed >= p.OffLimit(hour, hourKnown)
}

// On reports whether the current phase drives the pump.
func (p *PumpScheduler) On() bool {
	return p.phase == PhasePumping
}

// Phase returns the current phase.
func (p *PumpScheduler) Phase() Phase {
	return p.phase
}

// Elapsed returns the time spent in the current phase.
func (p *PumpScheduler) Elapsed() time.Duration {
	return p.elapsed
}

// Counts returns a copy of the transition counters.
func (p *PumpScheduler) Counts() PumpCounts {
	return p.counts
}

// Snapshot returns the current phase, elapsed time and counters together.
func (p *PumpScheduler) Snapshot() PumpSnapshot {
	return PumpSnapshot{
		On:      p.On(),
		Phase:   p.phase,
		Elapsed: p.elapsed,
		Counts:  p.counts,
	}
}

// InDayWindow reports whether hour falls in [start, end).
// start > end wraps past midnight; start == end covers the whole day.
func InDayWindow(hour, start, end int) bool {
	switch {
	case start == end:
		return true
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}
