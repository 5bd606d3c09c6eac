// Package gpio provides relay and power outputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Switch drives a single digital output.
type Switch interface {
	// Set drives the output. on=true energises the load.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinPump        = 14 // Pump relay
	DefaultPinSensorPower = 12 // TDS probe supply
)
