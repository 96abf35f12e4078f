// Package gpio provides the relay output and sensor input lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Output drives a single digital output line.
type Output interface {
	// SetLevel drives the line. true = energized. Repeating a level is harmless.
	SetLevel(level bool) error

	// Close releases GPIO resources.
	Close() error
}

// Input reads a single digital input line.
type Input interface {
	// ReadLevel returns the logical level. true = active.
	ReadLevel() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinRelay  = 23 // lamp relay
	DefaultPinSensor = 22 // occupancy sensor
)

// DefaultChip is the Raspberry Pi header chip.
const DefaultChip = "gpiochip0"
