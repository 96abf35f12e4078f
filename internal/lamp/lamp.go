// Package lamp owns the authoritative lamp and sensor-mode state.
//
// A Reconciler arbitrates between manual commands (SetLamp, SetSensorMode)
// and the sensor monitor goroutine. Every change follows the same order:
// output port, in-memory flag, persistence, notification. A change that
// fails to persist is not notified until the monitor manages to write it on a
// later tick.
//
// The two flags are independent atomic cells so readers never block. Writers
// serialize on one transition mutex, so a command and a sensor edge on the
// same tick cannot interleave their port/persist/notify steps.
package lamp

import "time"

// DefaultPollInterval is how often the monitor samples the sensor input.
const DefaultPollInterval = 100 * time.Millisecond

// Snapshot is the point-in-time state sent to the notification sink.
type Snapshot struct {
	LampState  bool `json:"lamp_state"`
	SensorMode bool `json:"sensor_state"`
}

// Mode is the logical state of the lamp channel.
type Mode string

const (
	ModeManualOff    Mode = "manual-off"
	ModeManualOn     Mode = "manual-on"
	ModeAutoTracking Mode = "auto-tracking"
)

// Mode derives the channel state from the snapshot.
func (s Snapshot) Mode() Mode {
	switch {
	case s.SensorMode:
		return ModeAutoTracking
	case s.LampState:
		return ModeManualOn
	default:
		return ModeManualOff
	}
}

// Sink publishes encoded snapshots. Delivery is best effort.
type Sink interface {
	Publish(payload []byte) error
}

// Source identifies what caused a state change.
type Source string

const (
	SourceRestore   Source = "restore"
	SourceManual    Source = "manual"
	SourceAutomatic Source = "automatic"
	SourceMode      Source = "mode"
)

// FailureKind classifies a reported failure.
type FailureKind string

const (
	FailureHardware     FailureKind = "hardware"
	FailurePersistence  FailureKind = "persistence"
	FailureNotification FailureKind = "notification"
	FailureSensor       FailureKind = "sensor"
)

// Observer receives state-change hooks for status and metrics.
// Methods are called while the transition lock is held and must not block.
type Observer interface {
	Transition(src Source, s Snapshot)
	Rejected()
	Failure(kind FailureKind)
}

type nopObserver struct{}

func (nopObserver) Transition(Source, Snapshot) {}
func (nopObserver) Rejected()                   {}
func (nopObserver) Failure(FailureKind)         {}

type multiObserver []Observer

func (m multiObserver) Transition(src Source, s Snapshot) {
	for _, o := range m {
		o.Transition(src, s)
	}
}

func (m multiObserver) Rejected() {
	for _, o := range m {
		o.Rejected()
	}
}

func (m multiObserver) Failure(kind FailureKind) {
	for _, o := range m {
		o.Failure(kind)
	}
}

// Observers fans hooks out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return nopObserver{}
	case 1:
		return m[0]
	default:
		return m
	}
}
