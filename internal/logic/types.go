// Package logic contains pure sensor-filtering logic for the lamp controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Sample is a single raw sensor reading.
type Sample struct {
	Level bool // true = occupancy detected
	Time  time.Time
}

// ChannelState tracks debounce state for the sensor channel.
type ChannelState struct {
	// Current stable (debounced) level
	Stable bool
	// Pending level during debounce; valid only when HasPending
	Pending    bool
	HasPending bool
	// Time when pending level was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}
