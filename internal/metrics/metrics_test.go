package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/lamp-controller/internal/lamp"
)

// value returns the sample of name whose labels include want, or -1.
func value(t *testing.T, reg *prom.Registry, name string, want map[string]string) float64 {
	t.Helper()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for k, v := range want {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == k && lp.GetValue() == v {
						found = true
					}
				}
				if !found {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return -1
}

func TestRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	var _ lamp.Observer = r

	r.Transition(lamp.SourceManual, lamp.Snapshot{LampState: true})
	r.Transition(lamp.SourceManual, lamp.Snapshot{LampState: false})
	r.Transition(lamp.SourceMode, lamp.Snapshot{LampState: true, SensorMode: true})
	r.Rejected()
	r.Failure(lamp.FailurePersistence)
	r.Failure(lamp.FailurePersistence)
	r.Failure(lamp.FailureNotification)

	assert.InDelta(t, 2, value(t, reg, "lamp_transitions_total", map[string]string{"source": "manual"}), 0)
	assert.InDelta(t, 1, value(t, reg, "lamp_transitions_total", map[string]string{"source": "mode"}), 0)
	assert.InDelta(t, 1, value(t, reg, "lamp_rejected_commands_total", nil), 0)
	assert.InDelta(t, 2, value(t, reg, "lamp_failures_total", map[string]string{"kind": "persistence"}), 0)
	assert.InDelta(t, 1, value(t, reg, "lamp_failures_total", map[string]string{"kind": "notification"}), 0)
	assert.InDelta(t, 1, value(t, reg, "lamp_lamp_state", nil), 0)
	assert.InDelta(t, 1, value(t, reg, "lamp_sensor_mode", nil), 0)
}

func TestWatchConnection(t *testing.T) {
	reg := prom.NewRegistry()
	up := false
	WatchConnection(reg, func() bool { return up })

	assert.InDelta(t, 0, value(t, reg, "lamp_mqtt_connected", nil), 0)
	up = true
	assert.InDelta(t, 1, value(t, reg, "lamp_mqtt_connected", nil), 0)
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	NewRecorder(reg).Rejected()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "lamp_rejected_commands_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
