// Package sensor acquires water-quality readings: a temperature probe and an
// analog TDS probe sampled through an ADC, with the probe supply switched on
// only for the duration of a reading.
package sensor

import (
	"context"
	"errors"
)

// SentinelTemperatureC is used when the temperature probe cannot be read.
// It equals the calibration reference, so compensation becomes a no-op.
const SentinelTemperatureC = 25.0

var (
	// ErrNoDevice is returned when no temperature probe answers on the bus.
	ErrNoDevice = errors.New("sensor: no device")

	// ErrOutOfRange is returned for a probe value outside the sensor's range,
	// such as the DS18B20 power-on value or a disconnected-line reading.
	ErrOutOfRange = errors.New("sensor: reading out of range")
)

// TemperatureProbe reads the water temperature.
type TemperatureProbe interface {
	// ReadTemperature returns degrees Celsius. It must give up when ctx is done.
	ReadTemperature(ctx context.Context) (float64, error)
}

// AnalogSampler takes single raw ADC samples of the TDS probe output.
type AnalogSampler interface {
	ReadRaw() (int, error)
}

// validTemperature matches the DS18B20 measuring range.
func validTemperature(c float64) bool {
	return c >= -55 && c <= 125
}
