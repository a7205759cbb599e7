// Package metrics exposes the station's connectivity and publishing
// counters to Prometheus and serves them, together with a JSON status
// document, over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "weatherstation"

// Publish results used as the "result" label.
const (
	ResultPublished = "published"
	ResultDropped   = "dropped"
)

// Registry owns the station's Prometheus collectors. It satisfies
// connectivity.Observer so the manager can feed it directly.
type Registry struct {
	reg *prometheus.Registry

	connectAttempts   prometheus.Counter
	connectFailures   *prometheus.CounterVec
	linkTransitions   *prometheus.CounterVec
	publishes         *prometheus.CounterVec
	sensorFailures    prometheus.Counter
	historianFailures prometheus.Counter
	linkUp            prometheus.Gauge
	brokerConnected   prometheus.Gauge
}

// NewRegistry creates a registry with the station metrics and the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Broker connection attempts started",
		}),
		connectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Broker connection attempts that failed, by reason",
		}, []string{"reason"}),
		linkTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_transitions_total",
			Help:      "Network link transitions, by new state",
		}, []string{"state"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Publish requests, by result",
		}, []string{"result"}),
		sensorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_read_failures_total",
			Help:      "Sensor reads that returned an error",
		}),
		historianFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "historian_write_failures_total",
			Help:      "Asynchronous InfluxDB write failures",
		}),
		linkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_up",
			Help:      "1 while the network link is up",
		}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "1 while a broker session is established",
		}),
	}

	r.reg.MustRegister(
		r.connectAttempts,
		r.connectFailures,
		r.linkTransitions,
		r.publishes,
		r.sensorFailures,
		r.historianFailures,
		r.linkUp,
		r.brokerConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// LinkChanged records a link transition.
func (r *Registry) LinkChanged(up bool) {
	state := "down"
	if up {
		state = "up"
	}
	r.linkTransitions.WithLabelValues(state).Inc()
	r.linkUp.Set(boolValue(up))
}

// BrokerChanged records the broker session state.
func (r *Registry) BrokerChanged(connected bool) {
	r.brokerConnected.Set(boolValue(connected))
}

// AttemptStarted counts a connection attempt.
func (r *Registry) AttemptStarted() {
	r.connectAttempts.Inc()
}

// AttemptFailed counts a failed attempt. An empty reason is "unknown".
func (r *Registry) AttemptFailed(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	r.connectFailures.WithLabelValues(reason).Inc()
}

// PublishResult counts a publish request.
func (r *Registry) PublishResult(ok bool) {
	result := ResultDropped
	if ok {
		result = ResultPublished
	}
	r.publishes.WithLabelValues(result).Inc()
}

// SensorReadFailed counts a failed sensor read.
func (r *Registry) SensorReadFailed() {
	r.sensorFailures.Inc()
}

// HistorianWriteFailed counts an asynchronous historian write failure.
func (r *Registry) HistorianWriteFailed() {
	r.historianFailures.Inc()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
