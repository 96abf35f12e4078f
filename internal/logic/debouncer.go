package logic

import "time"

// Debouncer filters raw sensor samples into a stable level.
// A level must be observed continuously for the debounce duration before it
// becomes stable. A zero duration passes every sample straight through.
// Not safe for concurrent use; the monitor loop owns it.
type Debouncer struct {
	duration time.Duration
	ch       ChannelState
}

// NewDebouncer creates a debouncer with the given duration.
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration < 0 {
		duration = 0
	}
	return &Debouncer{duration: duration}
}

// Process takes a new sample and returns the stable level and whether one exists.
// No stable level exists until the first level has held for the debounce duration.
func (d *Debouncer) Process(s Sample) (stable bool, ok bool) {
	ch := &d.ch

	if d.duration == 0 {
		ch.Stable = s.Level
		ch.Baselined = true
		ch.HasPending = false
		return ch.Stable, true
	}

	// Stable level confirmed again, drop any pending change
	if ch.Baselined && s.Level == ch.Stable {
		ch.HasPending = false
		return ch.Stable, true
	}

	if !ch.HasPending || ch.Pending != s.Level {
		// New pending level
		ch.Pending = s.Level
		ch.HasPending = true
		ch.PendingSince = s.Time
		return ch.Stable, ch.Baselined
	}

	// Same pending level, check debounce
	if s.Time.Sub(ch.PendingSince) >= d.duration {
		ch.Stable = s.Level
		ch.Baselined = true
		ch.HasPending = false
	}

	return ch.Stable, ch.Baselined
}

// Reset forgets all history. The monitor calls it while manual mode is active
// so a stale pending level never carries over into automatic mode.
func (d *Debouncer) Reset() {
	d.ch = ChannelState{}
}

// IsBaselined returns whether a stable level has been established.
func (d *Debouncer) IsBaselined() bool {
	return d.ch.Baselined
}

// Duration returns the configured debounce duration.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}
