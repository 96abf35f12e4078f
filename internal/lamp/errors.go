package lamp

import "errors"

// Errors reported by the Reconciler. Use errors.Is to check for them.
var (
	// ErrHardware is returned when the output port rejects a write.
	// The flag and the store are left untouched.
	ErrHardware = errors.New("lamp: output port write failed")

	// ErrPersistence is returned when a flag could not be stored.
	// The in-memory flag and the port keep the new value; no notification is sent.
	ErrPersistence = errors.New("lamp: persisting state failed")

	// ErrBlockedByAutomaticMode rejects SetLamp while the sensor controls the lamp.
	ErrBlockedByAutomaticMode = errors.New("lamp: manual control blocked by automatic mode")

	// ErrNotification wraps sink failures in logs. It is never returned.
	ErrNotification = errors.New("lamp: notification failed")
)
