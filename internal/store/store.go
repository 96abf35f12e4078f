// Package store persists the lamp controller's boolean flags across restarts.
// The real implementation uses SQLite. The memory implementation is for tests.
package store

import (
	"context"
	"errors"
)

// Namespace groups the controller's keys inside the flags table.
const Namespace = "lamp_control"

// Key names a persisted flag.
type Key string

const (
	KeyLampState   Key = "lamp_state"
	KeySensorState Key = "sensor_state"
)

var (
	// ErrNotFound is returned when a flag has never been written.
	ErrNotFound = errors.New("store: flag not found")

	// ErrCorrupt is returned when a stored record is not a single 0x00/0x01 byte.
	ErrCorrupt = errors.New("store: corrupt flag record")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Store reads and writes independent boolean flags.
type Store interface {
	// GetFlag returns the stored value, ErrNotFound or ErrCorrupt.
	GetFlag(ctx context.Context, key Key) (bool, error)

	// SetFlag durably writes the value.
	SetFlag(ctx context.Context, key Key, value bool) error
}

// encode returns the single-byte record for v.
func encode(v bool) []byte {
	if v {
		return []byte{0x01}
	}
	return []byte{0x00}
}

// decode parses a single-byte record.
func decode(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, ErrCorrupt
	}

	switch b[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, ErrCorrupt
	}
}
