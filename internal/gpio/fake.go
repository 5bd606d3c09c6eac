package gpio

import "sync"

// FakeSwitch is a test double that records every Set call.
// Safe for concurrent use.
type FakeSwitch struct {
	mu sync.Mutex

	// history contains every value passed to Set, including failed writes.
	history []bool

	// on is the last successfully applied state.
	on bool

	// closed tracks if Close was called.
	closed bool

	// setError, if set, will be returned by Set and the state left unchanged.
	setError error
}

// NewFakeSwitch creates a de-energised FakeSwitch.
func NewFakeSwitch() *FakeSwitch {
	return &FakeSwitch{}
}

// Set records the call and applies the state unless an error is scripted.
func (f *FakeSwitch) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.history = append(f.history, on)
	if f.setError != nil {
		return f.setError
	}
	f.on = on
	return nil
}

// Close marks the switch as closed and de-energises it.
func (f *FakeSwitch) Close() error {
	f.mu.Lock()
	f.closed = true
	f.on = false
	f.mu.Unlock()
	return nil
}

// On reports the last applied state.
func (f *FakeSwitch) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// Closed reports whether Close was called.
func (f *FakeSwitch) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// History returns a copy of all values passed to Set.
func (f *FakeSwitch) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.history...)
}

// SetError scripts the error returned by subsequent Set calls (nil clears it).
func (f *FakeSwitch) SetError(err error) {
	f.mu.Lock()
	f.setError = err
	f.mu.Unlock()
}

// Reset clears recorded calls and errors.
func (f *FakeSwitch) Reset() {
	f.mu.Lock()
	f.history = nil
	f.on = false
	f.closed = false
	f.setError = nil
	f.mu.Unlock()
}
