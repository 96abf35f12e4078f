package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lamp-controller/internal/lamp"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	LampState     bool       `json:"lamp_state"`
	SensorState   bool       `json:"sensor_state"`
	Mode          string     `json:"mode"`
	Ready         bool       `json:"ready"`
	LastSource    string     `json:"last_source,omitempty"`
	LastChange    string     `json:"last_change,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Manual       int `json:"manual"`
	Automatic    int `json:"automatic"`
	Mode         int `json:"mode"`
	Rejected     int `json:"rejected"`
	Hardware     int `json:"hardware_failures"`
	Persistence  int `json:"persistence_failures"`
	Notification int `json:"notification_failures"`
	Sensor       int `json:"sensor_failures"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	StorePath   string `json:"store_path"`
	RelayPin    int    `json:"relay_pin"`
	SensorPin   int    `json:"sensor_pin"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		LampState:     snap.State.LampState,
		SensorState:   snap.State.SensorMode,
		Mode:          string(snap.Mode()),
		Ready:         snap.Restored,
		LastSource:    string(snap.LastSource),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Manual:       snap.Counts.Manual,
			Automatic:    snap.Counts.Automatic,
			Mode:         snap.Counts.Mode,
			Rejected:     snap.Counts.Rejected,
			Hardware:     snap.Counts.Failures[lamp.FailureHardware],
			Persistence:  snap.Counts.Failures[lamp.FailurePersistence],
			Notification: snap.Counts.Failures[lamp.FailureNotification],
			Sensor:       snap.Counts.Failures[lamp.FailureSensor],
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			StorePath:   snap.Config.StorePath,
			RelayPin:    snap.Config.RelayPin,
			SensorPin:   snap.Config.SensorPin,
		},
	}
	if !snap.LastChange.IsZero() {
		inner.LastChange = snap.LastChange.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
