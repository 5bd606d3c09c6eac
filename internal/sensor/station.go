package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/hydro-controller/internal/gpio"
	"github.com/sweeney/hydro-controller/internal/logic"
)

// Options configures the acquisition protocol.
type Options struct {
	Samples      int
	SettleDelay  time.Duration
	SampleDelay  time.Duration
	ProbeTimeout time.Duration
	Calibration  logic.Calibration
}

// Station produces one SensorReading per Acquire call.
// Not safe for concurrent use; the sensor loop is the only caller.
type Station struct {
	probe   TemperatureProbe
	sampler AnalogSampler
	power   gpio.Switch
	opts    Options
	logger  *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	buf []int
}

// NewStation wires a station to its probe, sampler and probe power switch.
func NewStation(probe TemperatureProbe, sampler AnalogSampler, power gpio.Switch, opts Options, logger *slog.Logger) *Station {
	return &Station{
		probe:   probe,
		sampler: sampler,
		power:   power,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
		buf:     make([]int, 0, opts.Samples),
	}
}

// Acquire reads the temperature, powers the TDS probe, collects the raw
// samples, converts their median and powers the probe down again.
//
// A failed temperature read does not abort the cycle: the sentinel
// temperature is used and the reading is marked Degraded. The probe power is
// switched off on every return path.
func (s *Station) Acquire(ctx context.Context) (logic.SensorReading, error) {
	reading := logic.SensorReading{}

	temp, err := s.readTemperature(ctx)
	if err != nil {
		s.logger.Warn("temperature probe failed, using sentinel",
			"err", err, "sentinel_c", SentinelTemperatureC)
		temp = SentinelTemperatureC
		reading.Degraded = true
	}
	reading.TemperatureC = temp

	median, err := s.sample(ctx)
	if err != nil {
		return logic.SensorReading{}, err
	}

	reading.Median = median
	reading.ConcentrationPPM = s.opts.Calibration.PPM(median, temp)
	reading.Timestamp = s.now()

	s.logger.Info("sensor reading",
		"temp_c", reading.TemperatureC,
		"ppm", reading.ConcentrationPPM,
		"median", median,
		"degraded", reading.Degraded)

	return reading, nil
}

func (s *Station) readTemperature(ctx context.Context) (float64, error) {
	if s.opts.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ProbeTimeout)
		defer cancel()
	}

	c, err := s.probe.ReadTemperature(ctx)
	if err != nil {
		return 0, fmt.Errorf("read temperature: %w", err)
	}
	if !validTemperature(c) {
		return 0, fmt.Errorf("read temperature %.2f: %w", c, ErrOutOfRange)
	}
	return c, nil
}

// sample brackets the raw sampling with probe power on/off.
func (s *Station) sample(ctx context.Context) (median int, err error) {
	if err := s.power.Set(true); err != nil {
		err = fmt.Errorf("power probe on: %w", err)
		if offErr := s.power.Set(false); offErr != nil {
			s.logger.Error("power probe off failed", "err", offErr)
		}
		return 0, err
	}
	defer func() {
		if offErr := s.power.Set(false); offErr != nil {
			s.logger.Error("power probe off failed", "err", offErr)
			err = errors.Join(err, fmt.Errorf("power probe off: %w", offErr))
		}
	}()

	if err := s.sleep(ctx, s.opts.SettleDelay); err != nil {
		return 0, fmt.Errorf("settle: %w", err)
	}

	s.buf = s.buf[:0]
	for i := 0; i < s.opts.Samples; i++ {
		raw, err := s.sampler.ReadRaw()
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		s.buf = append(s.buf, raw)
		s.logger.Debug("raw sample", "index", i, "raw", raw)

		if i < s.opts.Samples-1 {
			if err := s.sleep(ctx, s.opts.SampleDelay); err != nil {
				return 0, fmt.Errorf("sample delay: %w", err)
			}
		}
	}

	return logic.Median(s.buf), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
