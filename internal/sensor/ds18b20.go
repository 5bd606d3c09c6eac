package sensor

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/onewire/onewirereg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ds18b20"
	"periph.io/x/host/v3"
)

// ds18b20Family is the 1-Wire family code of the DS18B20.
const ds18b20Family = 0x28

// DS18B20Probe reads a DS18B20 waterproof probe on a 1-Wire bus.
type DS18B20Probe struct {
	mu  sync.Mutex
	bus onewire.BusCloser
	dev *ds18b20.Dev
}

// NewDS18B20Probe opens the named 1-Wire bus ("" for the first one) and binds
// to the first DS18B20 found on it. Returns ErrNoDevice if none answers.
func NewDS18B20Probe(busName string) (*DS18B20Probe, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}

	bus, err := onewirereg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open 1-wire bus %q: %w", busName, err)
	}

	addrs, err := bus.Search(false)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("search 1-wire bus: %w", err)
	}

	p, err := bindDS18B20(bus, addrs, 12)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return p, nil
}

// bindDS18B20 binds to the first DS18B20 among addrs. The caller keeps
// ownership of bus on error.
func bindDS18B20(bus onewire.BusCloser, addrs []onewire.Address, bits int) (*DS18B20Probe, error) {
	for _, addr := range addrs {
		if byte(addr&0xff) != ds18b20Family {
			continue
		}
		dev, err := ds18b20.New(bus, addr, bits)
		if err != nil {
			return nil, fmt.Errorf("open ds18b20 %#x: %w", uint64(addr), err)
		}
		return &DS18B20Probe{bus: bus, dev: dev}, nil
	}
	return nil, ErrNoDevice
}

// ReadTemperature triggers a conversion and returns degrees Celsius.
// A 12-bit conversion takes ~750ms; ctx bounds the wait.
func (p *DS18B20Probe) ReadTemperature(ctx context.Context) (float64, error) {
	type result struct {
		c   float64
		err error
	}
	ch := make(chan result, 1)

	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		var e physic.Env
		err := p.dev.Sense(&e)
		ch <- result{c: e.Temperature.Celsius(), err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return 0, fmt.Errorf("ds18b20: %w", r.err)
		}
		return r.c, nil
	}
}

// Close releases the 1-Wire bus.
func (p *DS18B20Probe) Close() error {
	return p.bus.Close()
}

// MissingProbe stands in for a probe that was not found at startup so the
// controller keeps running with degraded readings.
type MissingProbe struct{}

// ReadTemperature always returns ErrNoDevice.
func (MissingProbe) ReadTemperature(context.Context) (float64, error) {
	return 0, ErrNoDevice
}
