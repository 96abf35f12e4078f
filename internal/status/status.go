// Package status provides a thread-safe view of the lamp controller for the
// web page, the JSON endpoint and the status command.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/lamp-controller/internal/lamp"
)

// ConnectionStatus reports broker connectivity. Satisfied by the MQTT client.
type ConnectionStatus interface {
	IsConnected() bool
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	StorePath   string
	RelayPin    int
	SensorPin   int
}

// Counts tallies reconciler activity since start.
type Counts struct {
	Manual    int
	Automatic int
	Mode      int
	Rejected  int
	Failures  map[lamp.FailureKind]int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         lamp.Snapshot
	Restored      bool
	LastSource    lamp.Source
	LastChange    time.Time
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Mode returns the logical lamp channel state.
func (s Snapshot) Mode() lamp.Mode {
	return s.State.Mode()
}

// Tracker holds mutable daemon state behind an RWMutex.
// It implements lamp.Observer.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	conn ConnectionStatus
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Counts:    Counts{Failures: make(map[lamp.FailureKind]int)},
		},
		now: time.Now,
	}
}

// WatchConnection makes snapshots report c's connectivity.
func (t *Tracker) WatchConnection(c ConnectionStatus) {
	t.mu.Lock()
	t.conn = c
	t.mu.Unlock()
}

// Transition records an applied change.
func (t *Tracker) Transition(src lamp.Source, s lamp.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.State = s
	t.snap.LastSource = src
	t.snap.LastChange = t.now()

	switch src {
	case lamp.SourceRestore:
		t.snap.Restored = true
	case lamp.SourceManual:
		t.snap.Counts.Manual++
	case lamp.SourceAutomatic:
		t.snap.Counts.Automatic++
	case lamp.SourceMode:
		t.snap.Counts.Mode++
	}
}

// Rejected counts a manual command blocked by sensor mode.
func (t *Tracker) Rejected() {
	t.mu.Lock()
	t.snap.Counts.Rejected++
	t.mu.Unlock()
}

// Failure counts a failure of the given kind.
func (t *Tracker) Failure(kind lamp.FailureKind) {
	t.mu.Lock()
	t.snap.Counts.Failures[kind]++
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts.Failures = make(map[lamp.FailureKind]int, len(t.snap.Counts.Failures))
	for k, v := range t.snap.Counts.Failures {
		s.Counts.Failures[k] = v
	}
	conn := t.conn
	t.mu.RUnlock()

	if conn != nil {
		s.MQTTConnected = conn.IsConnected()
	}
	s.Now = t.now()
	return s
}
