// Package status provides a thread-safe status tracker for the controller.
// The control loops write to it and the HTTP handlers and lifecycle events
// read point-in-time snapshots.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/hydro-controller/internal/logic"
)

// NetworkInfo contains network state as reported by the host helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// HostInfo contains host health figures. This is a local copy to avoid
// importing internal/hoststats from status.
type HostInfo struct {
	Load1         float64
	MemUsedMB     float64
	MemTotalMB    float64
	DiskUsedMB    float64
	DiskTotalMB   float64
	UptimeSeconds uint64
}

// Config contains controller configuration for display.
type Config struct {
	Tick           time.Duration
	OnLimit        time.Duration
	OffLimitDay    time.Duration
	OffLimitNight  time.Duration
	DayStartHour   int
	DayEndHour     int
	SensorSchedule string
	Broker         string
	Prefix         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	RunID      string
	Pump       logic.PumpSnapshot
	Reading    *logic.SensorReading // nil until the first cycle completes
	Link       logic.LinkStatus
	LinkCounts logic.LinkCounts
	Buffered   int
	Host       *HostInfo
	Network    *NetworkInfo
	StartTime  time.Time
	Now        time.Time
	Config     Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config. Each
// tracker gets a fresh run ID so collectors can tell restarts apart.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			RunID:     uuid.NewString(),
			Link:      logic.LinkDisconnected,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// UpdatePump records the pump scheduler state. Called on every pump tick.
func (t *Tracker) UpdatePump(s logic.PumpSnapshot) {
	t.mu.Lock()
	t.snap.Pump = s
	t.mu.Unlock()
}

// UpdateReading records the latest sensor reading.
func (t *Tracker) UpdateReading(r logic.SensorReading) {
	t.mu.Lock()
	t.snap.Reading = &r
	t.mu.Unlock()
}

// UpdateLink records the uplink state.
func (t *Tracker) UpdateLink(status logic.LinkStatus, counts logic.LinkCounts) {
	t.mu.Lock()
	t.snap.Link = status
	t.snap.LinkCounts = counts
	t.mu.Unlock()
}

// SetBuffered records how many notifications wait for the uplink.
func (t *Tracker) SetBuffered(n int) {
	t.mu.Lock()
	t.snap.Buffered = n
	t.mu.Unlock()
}

// SetHost sets the host health figures.
func (t *Tracker) SetHost(info *HostInfo) {
	t.mu.Lock()
	t.snap.Host = info
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Reading != nil {
		r := *s.Reading
		s.Reading = &r
	}
	if s.Host != nil {
		h := *s.Host
		s.Host = &h
	}
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
