// Package config loads and validates the controller configuration.
//
// A YAML file is overlaid on Default; fields absent from the file keep their
// default values. Durations are Go duration strings ("90s", "15m").
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"

	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/mqtt"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full controller configuration.
type Config struct {
	Pump      PumpConfig    `yaml:"pump"`
	Sensor    SensorConfig  `yaml:"sensor"`
	Link      LinkConfig    `yaml:"link"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	GPIO      GPIOConfig    `yaml:"gpio"`
	HTTP      HTTPConfig    `yaml:"http"`
	Log       LogConfig     `yaml:"log"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// PumpConfig holds the duty cycle.
type PumpConfig struct {
	Tick          time.Duration `yaml:"tick"`
	OnLimit       time.Duration `yaml:"on_limit"`
	OffLimitDay   time.Duration `yaml:"off_limit_day"`
	OffLimitNight time.Duration `yaml:"off_limit_night"`
	DayStartHour  int           `yaml:"day_start_hour"`
	DayEndHour    int           `yaml:"day_end_hour"`
}

// SensorConfig holds the acquisition protocol and the sensor bus wiring.
type SensorConfig struct {
	// Schedule is a cron expression or descriptor ("@every 5h", "0 */4 * * *").
	Schedule string        `yaml:"schedule"`
	GatePoll time.Duration `yaml:"gate_poll"`

	Samples      int           `yaml:"samples"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	SamplePeriod time.Duration `yaml:"sample_period"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// SuppressDegraded drops readings taken with the sentinel temperature.
	SuppressDegraded bool `yaml:"suppress_degraded"`

	OneWireBus string `yaml:"onewire_bus"`
	I2CBus     string `yaml:"i2c_bus"`
	ADCAddress uint16 `yaml:"adc_address"`
	ADCChannel int    `yaml:"adc_channel"`

	Calibration logic.Calibration `yaml:"calibration"`
}

// SampleDelay is the pause between consecutive raw samples.
func (s SensorConfig) SampleDelay() time.Duration {
	if s.Samples <= 1 {
		return 0
	}
	return s.SamplePeriod / time.Duration(s.Samples)
}

// LinkConfig holds the uplink keep-alive timings.
type LinkConfig struct {
	Poll           time.Duration `yaml:"poll"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RecoverBackoff time.Duration `yaml:"recover_backoff"`
}

// MQTTConfig holds the broker connection and topic layout.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Prefix     string `yaml:"prefix"`
	BufferSize int    `yaml:"buffer_size"`
	QueueSize  int    `yaml:"queue_size"`
}

// GPIOConfig holds the output lines.
type GPIOConfig struct {
	Chip           string `yaml:"chip"`
	PinPump        int    `yaml:"pin_pump"`
	PinSensorPower int    `yaml:"pin_sensor_power"`
	ActiveHigh     bool   `yaml:"active_high"`
}

// HTTPConfig holds the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Pump: PumpConfig{
			Tick:          time.Second,
			OnLimit:       time.Minute,
			OffLimitDay:   15 * time.Minute,
			OffLimitNight: 45 * time.Minute,
			DayStartHour:  6,
			DayEndHour:    21,
		},
		Sensor: SensorConfig{
			Schedule:     "@every 5h",
			GatePoll:     time.Second,
			Samples:      20,
			SettleDelay:  10 * time.Second,
			SamplePeriod: 2 * time.Second,
			ProbeTimeout: 2 * time.Second,
			OneWireBus:   "",
			I2CBus:       "",
			ADCAddress:   0x48,
			ADCChannel:   0,
			Calibration:  logic.DefaultCalibration(),
		},
		Link: LinkConfig{
			Poll:           time.Second,
			ConnectTimeout: 20 * time.Second,
			RecoverBackoff: 30 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			ClientID:   "hydro-controller",
			Prefix:     mqtt.DefaultPrefix,
			BufferSize: 256,
			QueueSize:  32,
		},
		GPIO: GPIOConfig{
			Chip:           "gpiochip0",
			PinPump:        gpio.DefaultPinPump,
			PinSensorPower: gpio.DefaultPinSensorPower,
			ActiveHigh:     true,
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Log:       LogConfig{Level: "info", Format: "text"},
		Heartbeat: 15 * time.Minute,
	}
}

// Load reads path over Default. An empty path returns Default. Unknown keys
// are rejected. The result is not validated; call Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Schedule returns the pump duty cycle.
func (c Config) Schedule() logic.Schedule {
	return logic.Schedule{
		OnLimit:       c.Pump.OnLimit,
		OffLimitDay:   c.Pump.OffLimitDay,
		OffLimitNight: c.Pump.OffLimitNight,
		DayStartHour:  c.Pump.DayStartHour,
		DayEndHour:    c.Pump.DayEndHour,
	}
}

// SensorSchedule parses the sensor cron expression.
func (c Config) SensorSchedule() (cron.Schedule, error) {
	s, err := cron.ParseStandard(c.Sensor.Schedule)
	if err != nil {
		return nil, fmt.Errorf("sensor schedule %q: %w", c.Sensor.Schedule, err)
	}
	return s, nil
}

// Validate reports every problem found, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"pump.tick", c.Pump.Tick},
		{"pump.on_limit", c.Pump.OnLimit},
		{"pump.off_limit_day", c.Pump.OffLimitDay},
		{"pump.off_limit_night", c.Pump.OffLimitNight},
		{"sensor.gate_poll", c.Sensor.GatePoll},
		{"sensor.probe_timeout", c.Sensor.ProbeTimeout},
		{"link.poll", c.Link.Poll},
		{"link.connect_timeout", c.Link.ConnectTimeout},
		{"link.recover_backoff", c.Link.RecoverBackoff},
	}
	for _, p := range positive {
		if p.d <= 0 {
			bad("%s must be positive, got %v", p.name, p.d)
		}
	}

	if c.Sensor.SettleDelay < 0 {
		bad("sensor.settle_delay must not be negative, got %v", c.Sensor.SettleDelay)
	}
	if c.Sensor.SamplePeriod < 0 {
		bad("sensor.sample_period must not be negative, got %v", c.Sensor.SamplePeriod)
	}
	if c.Heartbeat < 0 {
		bad("heartbeat must not be negative, got %v", c.Heartbeat)
	}

	for name, h := range map[string]int{
		"pump.day_start_hour": c.Pump.DayStartHour,
		"pump.day_end_hour":   c.Pump.DayEndHour,
	} {
		if h < 0 || h > 23 {
			bad("%s must be 0..23, got %d", name, h)
		}
	}

	if c.Sensor.Samples < 1 {
		bad("sensor.samples must be at least 1, got %d", c.Sensor.Samples)
	}
	if c.Sensor.Calibration.ADCMax <= 0 {
		bad("sensor.calibration.adc_max must be positive, got %d", c.Sensor.Calibration.ADCMax)
	}
	if c.Sensor.Calibration.VRef <= 0 {
		bad("sensor.calibration.vref must be positive, got %v", c.Sensor.Calibration.VRef)
	}
	if c.Sensor.ADCChannel < 0 || c.Sensor.ADCChannel > 3 {
		bad("sensor.adc_channel must be 0..3, got %d", c.Sensor.ADCChannel)
	}
	if _, err := c.SensorSchedule(); err != nil {
		bad("%v", err)
	}

	if c.MQTT.Broker == "" {
		bad("mqtt.broker is required")
	}
	if c.MQTT.QueueSize < 1 {
		bad("mqtt.queue_size must be at least 1, got %d", c.MQTT.QueueSize)
	}
	if c.GPIO.PinPump == c.GPIO.PinSensorPower {
		bad("gpio.pin_pump and gpio.pin_sensor_power must differ, both %d", c.GPIO.PinPump)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		bad("log.format must be text or json, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}
