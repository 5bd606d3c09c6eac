package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/metrics"
	"github.com/sweeney/hydro-controller/internal/mqtt"
)

// Options holds the loop timings.
type Options struct {
	// Tick is the pump scheduler interval.
	Tick time.Duration
	// LinkPoll is the keep-alive interval.
	LinkPoll time.Duration
	// GatePoll is how often a due sensor cycle rechecks the pump.
	GatePoll time.Duration
	// SuppressDegraded drops readings taken without a real temperature.
	SuppressDegraded bool
}

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("control: missing dependency")

// Deps are the collaborators of a Supervisor. Clock, SensorPower, Observer and
// Logger may be nil.
type Deps struct {
	Pump        *PumpState
	Station     Acquirer
	SensorPower gpio.Switch
	Transport   LinkTransport
	Link        *logic.LinkMonitor
	Clock       WallClock
	Schedule    Schedule
	Dispatcher  *Dispatcher
	Observer    Observer
	Logger      *slog.Logger
}

// Supervisor composes the pump, sensor and link loops.
type Supervisor struct {
	opts        Options
	pump        *PumpState
	station     Acquirer
	sensorPower gpio.Switch
	transport   LinkTransport
	link        *logic.LinkMonitor
	clock       WallClock
	schedule    Schedule
	dispatch    *Dispatcher
	observer    Observer
	logger      *slog.Logger

	now func() time.Time

	// serialises sensor cycles between the loop and SensorCycle callers
	sensorMu sync.Mutex
}

// New creates a Supervisor. It fails if a required collaborator is missing.
func New(deps Deps, opts Options) (*Supervisor, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"pump", deps.Pump == nil},
		{"station", deps.Station == nil},
		{"transport", deps.Transport == nil},
		{"link monitor", deps.Link == nil},
		{"schedule", deps.Schedule == nil},
		{"dispatcher", deps.Dispatcher == nil},
	}
	for _, r := range required {
		if r.missing {
			return nil, fmt.Errorf("%w: %s", ErrMissingDependency, r.name)
		}
	}

	s := &Supervisor{
		opts:        opts,
		pump:        deps.Pump,
		station:     deps.Station,
		sensorPower: deps.SensorPower,
		transport:   deps.Transport,
		link:        deps.Link,
		clock:       deps.Clock,
		schedule:    deps.Schedule,
		dispatch:    deps.Dispatcher,
		observer:    deps.Observer,
		logger:      deps.Logger,
		now:         time.Now,
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Run starts the loops and blocks until ctx is done. On the way out the pump
// and the sensor supply are switched off and queued notifications flushed.
func (s *Supervisor) Run(ctx context.Context) error {
	dctx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		s.dispatch.Run(dctx)
		close(dispatchDone)
	}()

	var wg sync.WaitGroup
	for _, loop := range []func(context.Context){s.pumpLoop, s.linkLoop, s.sensorLoop} {
		wg.Add(1)
		go func(loop func(context.Context)) {
			defer wg.Done()
			loop(ctx)
		}(loop)
	}
	wg.Wait()

	err := s.SafeOff()

	stopDispatch()
	<-dispatchDone
	return err
}

// SafeOff drives every actuator to its de-energised state.
func (s *Supervisor) SafeOff() error {
	var errs []error
	if err := s.pump.Off(); err != nil {
		errs = append(errs, err)
	}
	if s.sensorPower != nil {
		if err := s.sensorPower.Set(false); err != nil {
			errs = append(errs, fmt.Errorf("sensor power off: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("safe shutdown incomplete", "err", err)
		return err
	}
	s.logger.Info("actuators off")
	return nil
}

func (s *Supervisor) pumpLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.PumpTick(t)
		}
	}
}

// PumpTick runs one pump scheduler step.
func (s *Supervisor) PumpTick(now time.Time) {
	hour, known := s.hour()
	if ev := s.pump.Tick(now, hour, known); ev != nil {
		s.pumpChanged(ev)
	}
	s.observer.UpdatePump(s.pump.Snapshot())
}

// SetPump forces the pump on or off. Scheduling resumes from the forced phase.
func (s *Supervisor) SetPump(on bool) {
	ev := s.pump.Override(s.now(), on)
	s.pumpChanged(ev)
	s.observer.UpdatePump(s.pump.Snapshot())
}

// Pump returns the pump state.
func (s *Supervisor) Pump() logic.PumpSnapshot {
	return s.pump.Snapshot()
}

// LastPumpTick returns when the pump loop last ran.
func (s *Supervisor) LastPumpTick() time.Time {
	return s.pump.LastTick()
}

func (s *Supervisor) pumpChanged(ev *logic.PumpEvent) {
	s.logger.Info("pump transition",
		"from", ev.From, "to", ev.To, "cause", ev.Cause)
	metrics.PumpTransitionsTotal.WithLabelValues(string(ev.Cause), string(ev.To)).Inc()
	s.dispatch.Notify(mqtt.KeyPump, mqtt.FormatBool(ev.On()))
}

func (s *Supervisor) hour() (int, bool) {
	if s.clock == nil {
		return 0, false
	}
	return s.clock.Hour()
}

func (s *Supervisor) linkLoop(ctx context.Context) {
	s.LinkTick(s.now())

	ticker := time.NewTicker(s.opts.LinkPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.LinkTick(t)
		}
	}
}

// LinkTick runs one keep-alive step.
func (s *Supervisor) LinkTick(now time.Time) {
	connected := s.transport.Status() == logic.LinkConnected
	action, transitions := s.link.Step(now, connected)
	for _, tr := range transitions {
		s.linkChanged(tr)
	}

	if action == logic.LinkActionConnect {
		if err := s.transport.Connect(); err != nil {
			s.logger.Warn("uplink connect failed", "err", err)
			if tr := s.link.Fail(now); tr != nil {
				s.linkChanged(*tr)
			}
		}
	}

	status := s.link.Status()
	metrics.LinkConnected.Set(metrics.Bool(status == logic.LinkConnected))
	s.observer.UpdateLink(status, s.link.Counts())
}

func (s *Supervisor) linkChanged(tr logic.LinkTransition) {
	attrs := []any{"from", tr.From, "to", tr.To}
	if tr.To == logic.LinkDisconnected && tr.From == logic.LinkConnecting {
		attrs = append(attrs, "retry_at", s.link.BackoffUntil().Format(time.TimeOnly))
	}
	if tr.To == logic.LinkConnected {
		s.logger.Info("uplink", attrs...)
	} else {
		s.logger.Warn("uplink", attrs...)
	}
	metrics.LinkTransitionsTotal.WithLabelValues(string(tr.To)).Inc()
}

// sensorLoop takes a reading as soon as the pump first rests, then once per
// schedule slot.
func (s *Supervisor) sensorLoop(ctx context.Context) {
	for {
		if err := s.SensorCycle(ctx); err != nil && ctx.Err() != nil {
			return
		}

		next := s.schedule.Next(s.now())
		s.logger.Debug("next sensor cycle", "at", next)
		if err := sleepCtx(ctx, next.Sub(s.now())); err != nil {
			return
		}
	}
}

// SensorCycle waits until the pump is off, takes a reading and dispatches it.
// The scheduled pump start is held back until the reading is complete.
func (s *Supervisor) SensorCycle(ctx context.Context) error {
	s.sensorMu.Lock()
	defer s.sensorMu.Unlock()

	if err := s.waitPumpIdle(ctx); err != nil {
		return err
	}
	defer s.pump.EndSampling()

	start := s.now()
	reading, err := s.station.Acquire(ctx)
	metrics.SensorCycleSeconds.Observe(s.now().Sub(start).Seconds())
	if err != nil {
		metrics.SensorCyclesTotal.WithLabelValues(metrics.CycleError).Inc()
		s.logger.Error("sensor cycle failed", "err", err)
		return err
	}

	if reading.Degraded {
		metrics.SensorCyclesTotal.WithLabelValues(metrics.CycleDegraded).Inc()
	} else {
		metrics.SensorCyclesTotal.WithLabelValues(metrics.CycleOK).Inc()
	}
	s.observer.UpdateReading(reading)
	s.publishReading(reading)
	return nil
}

func (s *Supervisor) publishReading(r logic.SensorReading) {
	if r.Degraded && s.opts.SuppressDegraded {
		s.logger.Warn("degraded reading suppressed", "ppm", r.ConcentrationPPM)
		return
	}

	metrics.TDSPPM.Set(r.ConcentrationPPM)
	s.dispatch.Notify(mqtt.KeyTDS, mqtt.FormatFloat(r.ConcentrationPPM))

	// The sentinel temperature is not a measurement.
	if !r.Degraded {
		metrics.WaterTemperatureCelsius.Set(r.TemperatureC)
		s.dispatch.Notify(mqtt.KeyTemperature, mqtt.FormatFloat(r.TemperatureC))
	}
}

// waitPumpIdle returns holding a sampling lease once the pump is resting.
func (s *Supervisor) waitPumpIdle(ctx context.Context) error {
	if s.pump.BeginSampling() {
		return nil
	}
	s.logger.Info("waiting for pump to finish before sampling")

	ticker := time.NewTicker(s.opts.GatePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.pump.BeginSampling() {
				return nil
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
