package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	RunID         string       `json:"run_id"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Pump          PumpJSON     `json:"pump"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	Link          LinkJSON     `json:"link"`
	Host          *HostJSON    `json:"host,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// PumpJSON reports the pump scheduler.
type PumpJSON struct {
	On             bool   `json:"on"`
	Phase          string `json:"phase"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Starts         int    `json:"starts"`
	Stops          int    `json:"stops"`
	Manual         int    `json:"manual"`
}

// ReadingJSON is the last sensor reading.
type ReadingJSON struct {
	Timestamp    string  `json:"timestamp"`
	TDSPPM       float64 `json:"tds_ppm"`
	TemperatureC float64 `json:"temperature_c"`
	Raw          int     `json:"raw_median"`
	Degraded     bool    `json:"degraded"`
}

// LinkJSON reports uplink state.
type LinkJSON struct {
	Status   string `json:"status"`
	Broker   string `json:"broker"`
	Attempts int    `json:"attempts"`
	Failures int    `json:"failures"`
	Drops    int    `json:"drops"`
	Buffered int    `json:"buffered"`
}

// HostJSON is the JSON representation of host health.
type HostJSON struct {
	Load1         float64 `json:"load1"`
	MemUsedMB     float64 `json:"mem_used_mb"`
	MemTotalMB    float64 `json:"mem_total_mb"`
	DiskUsedMB    float64 `json:"disk_used_mb"`
	DiskTotalMB   float64 `json:"disk_total_mb"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	TickMs         int64  `json:"tick_ms"`
	OnLimitS       int64  `json:"on_limit_s"`
	OffLimitDayS   int64  `json:"off_limit_day_s"`
	OffLimitNightS int64  `json:"off_limit_night_s"`
	DayStartHour   int    `json:"day_start_hour"`
	DayEndHour     int    `json:"day_end_hour"`
	SensorSchedule string `json:"sensor_schedule"`
	Broker         string `json:"broker"`
	Prefix         string `json:"prefix"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Pump.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}
	link := string(snap.Link)
	if link == "" {
		link = "UNKNOWN"
	}

	inner := StatusInner{
		RunID:         snap.RunID,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Pump: PumpJSON{
			On:             snap.Pump.On,
			Phase:          phase,
			ElapsedSeconds: int64(snap.Pump.Elapsed.Seconds()),
			Starts:         snap.Pump.Counts.On,
			Stops:          snap.Pump.Counts.Off,
			Manual:         snap.Pump.Counts.Manual,
		},
		Link: LinkJSON{
			Status:   link,
			Broker:   snap.Config.Broker,
			Attempts: snap.LinkCounts.Attempts,
			Failures: snap.LinkCounts.Failures,
			Drops:    snap.LinkCounts.Drops,
			Buffered: snap.Buffered,
		},
		Config: ConfigJSON{
			TickMs:         snap.Config.Tick.Milliseconds(),
			OnLimitS:       int64(snap.Config.OnLimit.Seconds()),
			OffLimitDayS:   int64(snap.Config.OffLimitDay.Seconds()),
			OffLimitNightS: int64(snap.Config.OffLimitNight.Seconds()),
			DayStartHour:   snap.Config.DayStartHour,
			DayEndHour:     snap.Config.DayEndHour,
			SensorSchedule: snap.Config.SensorSchedule,
			Broker:         snap.Config.Broker,
			Prefix:         snap.Config.Prefix,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}

	if r := snap.Reading; r != nil {
		inner.Reading = &ReadingJSON{
			Timestamp:    r.Timestamp.UTC().Format(time.RFC3339),
			TDSPPM:       r.ConcentrationPPM,
			TemperatureC: r.TemperatureC,
			Raw:          r.Median,
			Degraded:     r.Degraded,
		}
	}
	if h := snap.Host; h != nil {
		inner.Host = &HostJSON{
			Load1:         h.Load1,
			MemUsedMB:     h.MemUsedMB,
			MemTotalMB:    h.MemTotalMB,
			DiskUsedMB:    h.DiskUsedMB,
			DiskTotalMB:   h.DiskTotalMB,
			UptimeSeconds: h.UptimeSeconds,
		}
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
