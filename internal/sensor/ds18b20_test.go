package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/onewire/onewiretest"
)

// Scratchpad recorded from a probe at 30°C configured for 10-bit conversions.
var recordedScratchpad = []uint8{0xe0, 0x1, 0x0, 0x0, 0x3f, 0xff, 0x10, 0x10, 0x3f}

const ds18b20Addr onewire.Address = 0x740000070e41ac28

func TestDS18B20ReadTemperature(t *testing.T) {
	matchROM := []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74}
	bus := &onewiretest.Playback{Ops: []onewiretest.IO{
		// bind: read scratchpad
		{W: append(append([]uint8{}, matchROM...), 0xbe), R: recordedScratchpad},
		// convert
		{W: append(append([]uint8{}, matchROM...), 0x44), Pull: true},
		// read result
		{W: append(append([]uint8{}, matchROM...), 0xbe), R: recordedScratchpad},
	}}

	// A non-DS18B20 device on the bus is skipped.
	p, err := bindDS18B20(bus, []onewire.Address{0x1200000000000010, ds18b20Addr}, 10)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := p.ReadTemperature(ctx)
	if err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	if c != 30 {
		t.Errorf("temperature: got %v, want 30", c)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestDS18B20NoProbeOnBus(t *testing.T) {
	bus := &onewiretest.Playback{}

	_, err := bindDS18B20(bus, []onewire.Address{0x1200000000000010}, 12)
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("got %v, want ErrNoDevice", err)
	}
}

func TestDS18B20BusErrorSurfaces(t *testing.T) {
	bus := &onewiretest.Playback{DontPanic: true}

	_, err := bindDS18B20(bus, []onewire.Address{ds18b20Addr}, 10)
	if err == nil {
		t.Fatal("expected error binding to a silent bus")
	}
	if errors.Is(err, ErrNoDevice) {
		t.Error("bus failure must not look like a missing probe")
	}
}
