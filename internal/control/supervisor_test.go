package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/mqtt"
)

func tickN(h *harness, from, n int) {
	for i := from; i < from+n; i++ {
		h.sup.PumpTick(testStart.Add(time.Duration(i) * time.Second))
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPumpTickNotifiesTransitions(t *testing.T) {
	h := newHarness(Options{})

	// 3 ticks on, transition off, 2 ticks off, transition on.
	tickN(h, 0, 7)
	h.flush()

	if got := h.pub.MessagesFor(mqtt.KeyPump); !equalStrings(got, []string{"0", "1"}) {
		t.Errorf("pump notifications: got %v, want [0 1]", got)
	}
	if !h.relay.On() {
		t.Error("expected relay on after the rest phase")
	}

	hist := h.relay.History()
	want := []bool{true, true, true, false, false, false, true}
	if len(hist) != len(want) {
		t.Fatalf("relay history: got %v, want %v", hist, want)
	}
	for i := range want {
		if hist[i] != want[i] {
			t.Fatalf("relay history: got %v, want %v", hist, want)
		}
	}
}

func TestPumpTickUsesNightLimit(t *testing.T) {
	h := newHarness(Options{})
	h.sup.clock = fixedClock{hour: 22, ok: true}

	tickN(h, 0, 7)
	if h.sup.Pump().On {
		t.Fatal("night rest must outlast the day rest")
	}
	tickN(h, 7, 3)
	if !h.sup.Pump().On {
		t.Error("expected pump on after the night rest")
	}
}

func TestPumpTickWithoutClockUsesDayLimit(t *testing.T) {
	h := newHarness(Options{})
	h.sup.clock = nil

	tickN(h, 0, 7)
	if !h.sup.Pump().On {
		t.Error("expected day limit when the hour is unknown")
	}
}

func TestPumpTickReassertsAfterWriteFailure(t *testing.T) {
	h := newHarness(Options{})
	h.relay.SetError(errBoom)

	tickN(h, 0, 2)
	if h.relay.On() {
		t.Fatal("fake relay should not have applied a failed write")
	}
	if !h.sup.Pump().On {
		t.Fatal("scheduler state must not depend on relay writes")
	}

	h.relay.SetError(nil)
	tickN(h, 2, 1)
	if !h.relay.On() {
		t.Error("expected the next tick to re-assert the relay")
	}
}

func TestSetPumpOverride(t *testing.T) {
	h := newHarness(Options{})

	h.sup.SetPump(false)
	h.flush()

	if h.relay.On() {
		t.Error("expected relay off after override")
	}
	snap := h.sup.Pump()
	if snap.Phase != logic.PhaseResting || snap.Counts.Manual != 1 {
		t.Errorf("unexpected pump state %+v", snap)
	}
	if got := h.pub.MessagesFor(mqtt.KeyPump); !equalStrings(got, []string{"0"}) {
		t.Errorf("pump notifications: got %v, want [0]", got)
	}

	// Scheduling resumes from the forced phase: a full day rest, then on.
	tickN(h, 0, 3)
	if !h.sup.Pump().On {
		t.Error("expected automatic restart after the rest phase")
	}
}

func TestSensorCycleWaitsForPump(t *testing.T) {
	h := newHarness(Options{})

	done := make(chan error, 1)
	go func() { done <- h.sup.SensorCycle(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("cycle finished while pumping: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	if len(h.station.calls()) != 0 {
		t.Fatal("sampled while pumping")
	}

	h.sup.SetPump(false)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cycle did not start after the pump stopped")
	}

	calls := h.station.calls()
	if len(calls) != 1 || calls[0] {
		t.Errorf("expected one acquisition with the pump off, got %v", calls)
	}

	h.flush()
	if got := h.pub.MessagesFor(mqtt.KeyTDS); !equalStrings(got, []string{"412.50"}) {
		t.Errorf("tds: got %v", got)
	}
	if got := h.pub.MessagesFor(mqtt.KeyTemperature); !equalStrings(got, []string{"21.50"}) {
		t.Errorf("temp: got %v", got)
	}
	if len(h.observer.readings) != 1 {
		t.Errorf("expected observer to see the reading, got %d", len(h.observer.readings))
	}
}

func TestSensorCycleNeverOverlapsPumping(t *testing.T) {
	h := newHarness(Options{})

	// Alternate pump phases while cycles run.
	for round := 0; round < 5; round++ {
		h.sup.SetPump(round%2 == 0)
		done := make(chan error, 1)
		go func() { done <- h.sup.SensorCycle(context.Background()) }()
		if round%2 == 0 {
			time.Sleep(10 * time.Millisecond)
			h.sup.SetPump(false)
		}
		if err := <-done; err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
	}

	for i, on := range h.station.calls() {
		if on {
			t.Errorf("acquisition %d ran with the pump on", i)
		}
	}
}

func TestSensorCycleCancelledWhileGated(t *testing.T) {
	h := newHarness(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.sup.SensorCycle(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(h.station.calls()) != 0 {
		t.Error("must not sample after cancellation")
	}
}

func TestSensorCycleDegradedReading(t *testing.T) {
	tests := []struct {
		name     string
		suppress bool
		wantTDS  int
	}{
		{"published without temperature", false, 1},
		{"suppressed", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Options{SuppressDegraded: tt.suppress})
			h.station.reading.Degraded = true
			h.sup.SetPump(false)

			if err := h.sup.SensorCycle(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			h.flush()

			if got := len(h.pub.MessagesFor(mqtt.KeyTDS)); got != tt.wantTDS {
				t.Errorf("tds notifications: got %d, want %d", got, tt.wantTDS)
			}
			if got := h.pub.MessagesFor(mqtt.KeyTemperature); len(got) != 0 {
				t.Errorf("sentinel temperature must not be published, got %v", got)
			}
		})
	}
}

func TestSensorCycleError(t *testing.T) {
	h := newHarness(Options{})
	h.station.err = errBoom
	h.sup.SetPump(false)

	if err := h.sup.SensorCycle(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	h.flush()
	if len(h.pub.MessagesFor(mqtt.KeyTDS)) != 0 {
		t.Error("failed cycle must not publish")
	}
}

func TestLinkTickSingleAttempt(t *testing.T) {
	h := newHarness(Options{})

	h.sup.LinkTick(testStart)
	if h.transport.calls() != 1 {
		t.Fatalf("expected 1 connect, got %d", h.transport.calls())
	}

	// Attempt in flight.
	for i := 1; i < 10; i++ {
		h.sup.LinkTick(testStart.Add(time.Duration(i) * time.Second))
	}
	if h.transport.calls() != 1 {
		t.Errorf("second attempt started while connecting: %d calls", h.transport.calls())
	}

	h.transport.set(logic.LinkConnected)
	h.sup.LinkTick(testStart.Add(10 * time.Second))
	if h.sup.link.Status() != logic.LinkConnected {
		t.Errorf("expected CONNECTED, got %s", h.sup.link.Status())
	}
	if last := h.observer.links[len(h.observer.links)-1]; last != logic.LinkConnected {
		t.Errorf("observer saw %s", last)
	}
}

func TestLinkTickNeverConnectsWhileConnected(t *testing.T) {
	h := newHarness(Options{})
	h.transport.set(logic.LinkConnected)

	for i := 0; i < 20; i++ {
		h.sup.LinkTick(testStart.Add(time.Duration(i) * time.Second))
	}
	if h.transport.calls() != 0 {
		t.Errorf("connect called %d times on a healthy link", h.transport.calls())
	}
}

func TestLinkTickConnectErrorBacksOff(t *testing.T) {
	h := newHarness(Options{})
	h.transport.connectErr = errBoom

	h.sup.LinkTick(testStart)
	if h.sup.link.Status() != logic.LinkDisconnected {
		t.Fatalf("expected DISCONNECTED after failed connect, got %s", h.sup.link.Status())
	}

	h.sup.LinkTick(testStart.Add(10 * time.Second))
	if h.transport.calls() != 1 {
		t.Errorf("retried during backoff: %d calls", h.transport.calls())
	}

	h.sup.LinkTick(testStart.Add(30 * time.Second))
	if h.transport.calls() != 2 {
		t.Errorf("expected retry after backoff, got %d calls", h.transport.calls())
	}
}

func TestRunShutdownLeavesActuatorsOff(t *testing.T) {
	h := newHarness(Options{
		Tick:     2 * time.Millisecond,
		LinkPoll: 2 * time.Millisecond,
		GatePoll: 2 * time.Millisecond,
	})
	h.sup.now = time.Now
	long := logic.Schedule{OnLimit: time.Hour, OffLimitDay: time.Hour, OffLimitNight: time.Hour}
	h.sup.pump = NewPumpState(logic.NewPumpScheduler(long, time.Second), h.relay, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.sup.Run(ctx) }()

	time.Sleep(40 * time.Millisecond)
	if !h.relay.On() {
		t.Error("expected pump running during its first on phase")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if h.relay.On() {
		t.Error("pump left on after shutdown")
	}
	if h.power.On() {
		t.Error("sensor power left on after shutdown")
	}
	if h.sup.LastPumpTick().IsZero() {
		t.Error("pump loop never ticked")
	}
	if h.transport.calls() != 1 {
		t.Errorf("expected exactly one connect attempt, got %d", h.transport.calls())
	}
}

func TestSafeOffReportsFailures(t *testing.T) {
	h := newHarness(Options{})
	h.power.SetError(errBoom)

	if err := h.sup.SafeOff(); !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom, got %v", err)
	}
	if h.relay.On() {
		t.Error("pump must be switched off even if sensor power fails")
	}
}

func TestSamplingLeaseHoldsScheduledStart(t *testing.T) {
	h := newHarness(Options{})
	tickN(h, 0, 4) // on phase done, resting
	if !h.sup.pump.BeginSampling() {
		t.Fatal("lease refused while resting")
	}

	// Rest limit is 2 ticks; keep ticking well past it.
	tickN(h, 4, 5)
	if h.relay.On() {
		t.Fatal("scheduled start ran while a reading was in progress")
	}
	if h.sup.Pump().Phase != logic.PhaseResting {
		t.Fatalf("phase: got %s, want RESTING", h.sup.Pump().Phase)
	}

	h.sup.pump.EndSampling()
	tickN(h, 9, 1)
	if !h.relay.On() {
		t.Fatal("held start should run once the lease is released")
	}
}

func TestSamplingLeaseRefusedWhilePumping(t *testing.T) {
	h := newHarness(Options{})
	if h.sup.pump.BeginSampling() {
		t.Fatal("lease granted while pumping")
	}
}

func TestOverrideWinsOverSamplingLease(t *testing.T) {
	h := newHarness(Options{})
	h.sup.SetPump(false)
	if !h.sup.pump.BeginSampling() {
		t.Fatal("lease refused while resting")
	}
	defer h.sup.pump.EndSampling()

	h.sup.SetPump(true)
	if !h.relay.On() {
		t.Error("manual start must not be held back")
	}
}

func TestSensorCycleReleasesLease(t *testing.T) {
	h := newHarness(Options{})
	h.sup.SetPump(false)
	h.station.err = errBoom

	if err := h.sup.SensorCycle(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	tickN(h, 0, 3)
	if !h.relay.On() {
		t.Error("a failed cycle must not keep holding the pump")
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	full := func() Deps {
		h := newHarness(Options{})
		return Deps{
			Pump:       h.sup.pump,
			Station:    h.station,
			Transport:  h.transport,
			Link:       h.sup.link,
			Schedule:   farFuture{},
			Dispatcher: h.sup.dispatch,
		}
	}

	tests := []struct {
		name  string
		strip func(*Deps)
	}{
		{"pump", func(d *Deps) { d.Pump = nil }},
		{"station", func(d *Deps) { d.Station = nil }},
		{"transport", func(d *Deps) { d.Transport = nil }},
		{"link monitor", func(d *Deps) { d.Link = nil }},
		{"schedule", func(d *Deps) { d.Schedule = nil }},
		{"dispatcher", func(d *Deps) { d.Dispatcher = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full()
			tt.strip(&deps)
			sup, err := New(deps, Options{})
			if !errors.Is(err, ErrMissingDependency) {
				t.Fatalf("expected ErrMissingDependency, got %v", err)
			}
			if sup != nil {
				t.Error("expected nil supervisor")
			}
		})
	}

	if _, err := New(full(), Options{}); err != nil {
		t.Errorf("optional collaborators must not be required: %v", err)
	}
}
