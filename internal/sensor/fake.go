package sensor

import (
	"context"
	"errors"
	"sync"
)

// FakeProbe is a test double returning a scripted temperature.
type FakeProbe struct {
	mu sync.Mutex

	// Temperature is returned by ReadTemperature.
	Temperature float64

	// ReadError, if set, will be returned by ReadTemperature.
	ReadError error

	// Hang makes ReadTemperature block until ctx is done, like a probe that
	// never finishes its conversion.
	Hang bool

	calls int
}

// NewFakeProbe creates a FakeProbe reporting tempC.
func NewFakeProbe(tempC float64) *FakeProbe {
	return &FakeProbe{Temperature: tempC}
}

// ReadTemperature returns the scripted temperature or error.
func (f *FakeProbe) ReadTemperature(ctx context.Context) (float64, error) {
	f.mu.Lock()
	f.calls++
	hang, temp, err := f.Hang, f.Temperature, f.ReadError
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, err
	}
	return temp, nil
}

// Calls returns the number of ReadTemperature calls.
func (f *FakeProbe) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeSampler is a test double that returns scripted raw ADC values.
type FakeSampler struct {
	mu sync.Mutex

	// Samples contains scripted raw values. Each call to ReadRaw consumes
	// the next one; once exhausted the last value repeats.
	Samples []int

	// FailAt, if positive, makes the FailAt-th call (1-based) return ReadError.
	FailAt    int
	ReadError error

	// OnRead, if set, is called before each sample is returned.
	OnRead func(call int)

	index int
	calls int
}

// NewFakeSampler creates a FakeSampler with the given samples.
func NewFakeSampler(samples []int) *FakeSampler {
	return &FakeSampler{Samples: samples}
}

// ReadRaw returns the next scripted sample.
func (f *FakeSampler) ReadRaw() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.OnRead != nil {
		f.OnRead(f.calls)
	}
	if f.FailAt > 0 && f.calls == f.FailAt {
		err := f.ReadError
		if err == nil {
			err = errors.New("sampler fault")
		}
		return 0, err
	}

	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Calls returns the number of ReadRaw calls.
func (f *FakeSampler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
