//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealSwitch drives an output line on the Linux GPIO character device.
type RealSwitch struct {
	chip       *gpiocdev.Chip
	line       *gpiocdev.Line
	activeHigh bool
}

// NewRealSwitch requests pin on chipName as an output, initially de-energised.
// activeHigh=false is for relay boards that switch on a low level.
func NewRealSwitch(chipName string, pin int, activeHigh bool) (*RealSwitch, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	s := &RealSwitch{chip: chip, activeHigh: activeHigh}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(s.level(false)))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}
	s.line = line

	return s, nil
}

func (s *RealSwitch) level(on bool) int {
	if on == s.activeHigh {
		return 1
	}
	return 0
}

// Set drives the output line.
func (s *RealSwitch) Set(on bool) error {
	if err := s.line.SetValue(s.level(on)); err != nil {
		return fmt.Errorf("set pin %d: %w", s.line.Offset(), err)
	}
	return nil
}

// Close de-energises the load and releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// so the relay stays released while the daemon is not running.
func (s *RealSwitch) Close() error {
	var errs []error

	if s.line != nil {
		if err := s.line.SetValue(s.level(false)); err != nil {
			errs = append(errs, fmt.Errorf("release pin: %w", err))
		}
		if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
