package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/mqtt"
)

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTransport struct {
	mu           sync.Mutex
	status       logic.LinkStatus
	connectErr   error
	connectCalls int
}

func newFakeTransport(status logic.LinkStatus) *fakeTransport {
	return &fakeTransport{status: status}
}

func (f *fakeTransport) Status() logic.LinkStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.status = logic.LinkConnecting
	return nil
}

func (f *fakeTransport) set(status logic.LinkStatus) {
	f.mu.Lock()
	f.status = status
	f.mu.Unlock()
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

type fixedClock struct {
	hour int
	ok   bool
}

func (c fixedClock) Hour() (int, bool) { return c.hour, c.ok }

// fakeAcquirer records whether the pump was running at each Acquire.
type fakeAcquirer struct {
	mu        sync.Mutex
	reading   logic.SensorReading
	err       error
	pumpOn    func() bool
	sawPumpOn []bool
}

func (f *fakeAcquirer) Acquire(ctx context.Context) (logic.SensorReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pumpOn != nil {
		f.sawPumpOn = append(f.sawPumpOn, f.pumpOn())
	}
	if f.err != nil {
		return logic.SensorReading{}, f.err
	}
	return f.reading, nil
}

func (f *fakeAcquirer) calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.sawPumpOn...)
}

type recordingObserver struct {
	mu       sync.Mutex
	pump     []logic.PumpSnapshot
	readings []logic.SensorReading
	links    []logic.LinkStatus
}

func (o *recordingObserver) UpdatePump(s logic.PumpSnapshot) {
	o.mu.Lock()
	o.pump = append(o.pump, s)
	o.mu.Unlock()
}

func (o *recordingObserver) UpdateReading(r logic.SensorReading) {
	o.mu.Lock()
	o.readings = append(o.readings, r)
	o.mu.Unlock()
}

func (o *recordingObserver) UpdateLink(status logic.LinkStatus, _ logic.LinkCounts) {
	o.mu.Lock()
	o.links = append(o.links, status)
	o.mu.Unlock()
}

// farFuture never schedules a sensor cycle during a test.
type farFuture struct{}

func (farFuture) Next(t time.Time) time.Time { return t.Add(24 * time.Hour) }

type harness struct {
	sup       *Supervisor
	relay     *gpio.FakeSwitch
	power     *gpio.FakeSwitch
	pub       *mqtt.FakePublisher
	transport *fakeTransport
	station   *fakeAcquirer
	observer  *recordingObserver
}

func testPumpSchedule() logic.Schedule {
	return logic.Schedule{
		OnLimit:       3 * time.Second,
		OffLimitDay:   2 * time.Second,
		OffLimitNight: 5 * time.Second,
		DayStartHour:  5,
		DayEndHour:    20,
	}
}

func newHarness(opts Options) *harness {
	h := &harness{
		relay:     gpio.NewFakeSwitch(),
		power:     gpio.NewFakeSwitch(),
		pub:       mqtt.NewFakePublisher(),
		transport: newFakeTransport(logic.LinkDisconnected),
		observer:  &recordingObserver{},
	}
	logger := discardLogger()
	pump := NewPumpState(logic.NewPumpScheduler(testPumpSchedule(), time.Second), h.relay, logger)
	h.station = &fakeAcquirer{
		reading: logic.SensorReading{Timestamp: testStart, TemperatureC: 21.5, ConcentrationPPM: 412.5, Median: 9000},
		pumpOn:  pump.On,
	}

	if opts.Tick == 0 {
		opts.Tick = time.Second
	}
	if opts.LinkPoll == 0 {
		opts.LinkPoll = time.Second
	}
	if opts.GatePoll == 0 {
		opts.GatePoll = 5 * time.Millisecond
	}

	sup, err := New(Deps{
		Pump:        pump,
		Station:     h.station,
		SensorPower: h.power,
		Transport:   h.transport,
		Link:        logic.NewLinkMonitor(20*time.Second, 30*time.Second),
		Clock:       fixedClock{hour: 12, ok: true},
		Schedule:    farFuture{},
		Dispatcher:  NewDispatcher(h.pub, 16, logger),
		Observer:    h.observer,
		Logger:      logger,
	}, opts)
	if err != nil {
		panic(err)
	}
	h.sup = sup
	h.sup.now = func() time.Time { return testStart }
	return h
}

// flush delivers everything queued so far.
func (h *harness) flush() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.sup.dispatch.Run(ctx)
}

var errBoom = errors.New("boom")
