package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hydro.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultSampleDelay(t *testing.T) {
	if got := Default().Sensor.SampleDelay(); got != 100*time.Millisecond {
		t.Errorf("SampleDelay: got %v, want 100ms", got)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pump.OnLimit != time.Minute {
		t.Errorf("expected defaults, got %+v", cfg.Pump)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
pump:
  on_limit: 90s
  off_limit_night: 1h
  day_start_hour: 5
  day_end_hour: 20
sensor:
  schedule: "0 */4 * * *"
  adc_address: 0x49
  calibration:
    vref: 2.048
mqtt:
  broker: tcp://192.168.1.200:1883
  prefix: greenhouse/tank1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Pump.OnLimit != 90*time.Second {
		t.Errorf("OnLimit: got %v", cfg.Pump.OnLimit)
	}
	if cfg.Pump.OffLimitNight != time.Hour {
		t.Errorf("OffLimitNight: got %v", cfg.Pump.OffLimitNight)
	}
	if cfg.Pump.OffLimitDay != 15*time.Minute {
		t.Errorf("OffLimitDay should keep default, got %v", cfg.Pump.OffLimitDay)
	}
	if cfg.Sensor.ADCAddress != 0x49 {
		t.Errorf("ADCAddress: got %#x", cfg.Sensor.ADCAddress)
	}
	if cfg.Sensor.Calibration.VRef != 2.048 {
		t.Errorf("VRef: got %v", cfg.Sensor.Calibration.VRef)
	}
	if cfg.Sensor.Calibration.Cubic != 133.42 {
		t.Errorf("Cubic should keep default, got %v", cfg.Sensor.Calibration.Cubic)
	}
	if cfg.MQTT.Prefix != "greenhouse/tank1" {
		t.Errorf("Prefix: got %s", cfg.MQTT.Prefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	s := cfg.Schedule()
	if s.OnLimit != 90*time.Second || s.DayStartHour != 5 || s.DayEndHour != 20 {
		t.Errorf("unexpected schedule %+v", s)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "pump:\n  on_limt: 90s\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for misspelt key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestSensorSchedule(t *testing.T) {
	cfg := Default()
	sched, err := cfg.SensorSchedule()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	from := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if got := sched.Next(from); !got.Equal(from.Add(5 * time.Hour)) {
		t.Errorf("Next: got %v, want %v", got, from.Add(5*time.Hour))
	}

	cfg.Sensor.Schedule = "30 6 * * *"
	sched, err = cfg.SensorSchedule()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC)
	if got := sched.Next(from); !got.Equal(want) {
		t.Errorf("Next: got %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero tick", func(c *Config) { c.Pump.Tick = 0 }, "pump.tick"},
		{"negative on limit", func(c *Config) { c.Pump.OnLimit = -time.Second }, "pump.on_limit"},
		{"zero night limit", func(c *Config) { c.Pump.OffLimitNight = 0 }, "pump.off_limit_night"},
		{"hour out of range", func(c *Config) { c.Pump.DayEndHour = 24 }, "pump.day_end_hour"},
		{"negative hour", func(c *Config) { c.Pump.DayStartHour = -1 }, "pump.day_start_hour"},
		{"no samples", func(c *Config) { c.Sensor.Samples = 0 }, "sensor.samples"},
		{"adc max", func(c *Config) { c.Sensor.Calibration.ADCMax = 0 }, "adc_max"},
		{"bad schedule", func(c *Config) { c.Sensor.Schedule = "every so often" }, "sensor schedule"},
		{"zero connect timeout", func(c *Config) { c.Link.ConnectTimeout = 0 }, "link.connect_timeout"},
		{"no broker", func(c *Config) { c.MQTT.Broker = "" }, "mqtt.broker"},
		{"same pins", func(c *Config) { c.GPIO.PinSensorPower = c.GPIO.PinPump }, "must differ"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"adc channel", func(c *Config) { c.Sensor.ADCChannel = 4 }, "sensor.adc_channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Pump.Tick = 0
	cfg.Sensor.Samples = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "pump.tick") || !strings.Contains(msg, "sensor.samples") {
		t.Errorf("expected both problems reported, got %q", msg)
	}
}
