// Package metrics exposes controller state to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "hydro"

// Notification outcomes.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Sensor cycle outcomes.
const (
	CycleOK       = "ok"
	CycleDegraded = "degraded"
	CycleError    = "error"
)

var (
	PumpOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "pump_on",
		Help:      "1 while the pump is energised.",
	})

	PumpTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "pump_transitions_total",
		Help:      "Pump phase changes since start, by cause and target phase.",
	}, []string{"cause", "to"})

	ActuatorErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "actuator_errors_total",
		Help:      "Failed GPIO writes.",
	}, []string{"actuator"})

	TDSPPM = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "tds_ppm",
		Help:      "Last dissolved solids reading.",
	})

	WaterTemperatureCelsius = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "water_temperature_celsius",
		Help:      "Temperature used for the last reading's compensation.",
	})

	SensorCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "sensor_cycles_total",
		Help:      "Acquisition cycles by outcome.",
	}, []string{"result"})

	SensorCycleSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "sensor_cycle_seconds",
		Help:      "Duration of acquisition cycles, settle time included.",
		Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 60},
	})

	LinkConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "link_connected",
		Help:      "1 while the uplink is connected.",
	})

	LinkTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "link_transitions_total",
		Help:      "Uplink state changes by target state.",
	}, []string{"to"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "notifications_total",
		Help:      "Notifications by key and outcome.",
	}, []string{"key", "result"})

	HTTPRequestLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "http_request_latency_seconds",
		Help:      "Status server request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// Bool converts a flag to a gauge value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
