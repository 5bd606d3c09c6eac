package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// ADS1115Sampler reads one single-ended ADS1115 channel.
// Raw values are signed 16-bit counts at ±4.096 V full scale.
type ADS1115Sampler struct {
	bus i2c.BusCloser
	pin ads1x15.PinADC
}

// NewADS1115Sampler opens the named I²C bus ("" for the default) and
// configures channel (0..3) of the ADS1115 at addr.
func NewADS1115Sampler(busName string, addr uint16, channel int) (*ADS1115Sampler, error) {
	ch, ok := singleEnded(channel)
	if !ok {
		return nil, fmt.Errorf("ads1115: invalid channel %d", channel)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	opts := ads1x15.DefaultOpts
	opts.I2cAddress = addr
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open ads1115 at %#x: %w", addr, err)
	}

	pin, err := dev.PinForChannel(ch, 4096*physic.MilliVolt, 1*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("configure ads1115 channel %d: %w", channel, err)
	}

	return &ADS1115Sampler{bus: bus, pin: pin}, nil
}

func singleEnded(channel int) (ads1x15.Channel, bool) {
	switch channel {
	case 0:
		return ads1x15.Channel0, true
	case 1:
		return ads1x15.Channel1, true
	case 2:
		return ads1x15.Channel2, true
	case 3:
		return ads1x15.Channel3, true
	default:
		return 0, false
	}
}

// ReadRaw takes one single-shot conversion.
func (s *ADS1115Sampler) ReadRaw() (int, error) {
	sample, err := s.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("ads1115 read: %w", err)
	}
	return int(sample.Raw), nil
}

// Close halts the converter and releases the bus.
func (s *ADS1115Sampler) Close() error {
	if err := s.pin.Halt(); err != nil {
		s.bus.Close()
		return fmt.Errorf("halt ads1115: %w", err)
	}
	return s.bus.Close()
}
