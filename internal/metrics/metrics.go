// Package metrics exports reconciler activity as Prometheus metrics.
package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/lamp-controller/internal/lamp"
)

const namespace = "lamp"

// Recorder implements lamp.Observer on top of Prometheus collectors.
type Recorder struct {
	transitions *prom.CounterVec
	rejected    prom.Counter
	failures    *prom.CounterVec
	lampState   prom.Gauge
	sensorMode  prom.Gauge
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)
	return reg
}

// NewRecorder creates and registers the reconciler metrics on reg.
func NewRecorder(reg prom.Registerer) *Recorder {
	r := &Recorder{
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Applied state changes by source",
		}, []string{"source"}),
		rejected: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_commands_total",
			Help:      "Manual lamp commands rejected while in sensor mode",
		}),
		failures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failures by kind",
		}, []string{"kind"}),
		lampState: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "lamp_state",
			Help:      "1 when the lamp output is energized",
		}),
		sensorMode: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_mode",
			Help:      "1 when the lamp follows the occupancy sensor",
		}),
	}
	reg.MustRegister(r.transitions, r.rejected, r.failures, r.lampState, r.sensorMode)
	return r
}

// WatchConnection exports connected() as the mqtt_connected gauge.
func WatchConnection(reg prom.Registerer, connected func() bool) {
	reg.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "mqtt_connected",
		Help:      "1 while the broker session is up",
	}, func() float64 {
		return boolValue(connected())
	}))
}

// Transition implements lamp.Observer.
func (r *Recorder) Transition(src lamp.Source, s lamp.Snapshot) {
	r.transitions.WithLabelValues(string(src)).Inc()
	r.lampState.Set(boolValue(s.LampState))
	r.sensorMode.Set(boolValue(s.SensorMode))
}

// Rejected implements lamp.Observer.
func (r *Recorder) Rejected() {
	r.rejected.Inc()
}

// Failure implements lamp.Observer.
func (r *Recorder) Failure(kind lamp.FailureKind) {
	r.failures.WithLabelValues(string(kind)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
