package gpio

import (
	"errors"
	"sync"
)

// FakeOutput is a test double that records every level written.
// Safe for concurrent use: the monitor goroutine and the caller both write.
type FakeOutput struct {
	mu sync.Mutex

	// Levels contains every level passed to SetLevel, in order.
	Levels []bool

	// SetError, if set, will be returned by SetLevel and nothing is recorded.
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput with no writes.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// SetLevel records the level.
func (f *FakeOutput) SetLevel(level bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, level)
	return nil
}

// Fail sets or clears the scripted SetLevel error.
func (f *FakeOutput) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetError = err
}

// Writes returns a copy of the recorded levels.
func (f *FakeOutput) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.Levels...)
}

// Level returns the last level written and whether any write happened.
func (f *FakeOutput) Level() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Levels) == 0 {
		return false, false
	}
	return f.Levels[len(f.Levels)-1], true
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeInput is a test double that returns scripted levels.
type FakeInput struct {
	mu sync.Mutex

	// Samples contains scripted levels to return.
	// Each call to ReadLevel() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Reads counts ReadLevel calls.
	Reads int

	// ReadError, if set, will be returned by ReadLevel()
	ReadError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeInput creates a FakeInput with the given samples.
func NewFakeInput(samples ...bool) *FakeInput {
	return &FakeInput{Samples: samples}
}

// ReadLevel returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInput) ReadLevel() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++

	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Set replaces the script with a single level that repeats forever.
func (f *FakeInput) Set(level bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = []bool{level}
	f.index = 0
}

// Fail sets or clears the scripted ReadLevel error.
func (f *FakeInput) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadError = err
}

// ReadCount returns the number of ReadLevel calls so far.
func (f *FakeInput) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset resets the input to the beginning of samples.
func (f *FakeInput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Reads = 0
	f.Closed = false
}
