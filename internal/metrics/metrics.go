// Package metrics holds the Prometheus collectors respd exports on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "respd"

// Command outcomes used as the status label.
const (
	StatusOk    = "ok"
	StatusError = "error"
)

// Metrics is a private registry and the collectors registered on it. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	commands    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	connections prometheus.Gauge
	accepted    prometheus.Counter
	rejected    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by command name and outcome.",
		}, []string{"command", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent executing a command against the store.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"command"}),

		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Client connections currently open.",
		}),

		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Client connections accepted since start.",
		}),

		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Error replies sent, by error kind.",
		}, []string{"kind"}),
	}

	m.Registry.MustRegister(
		m.commands,
		m.duration,
		m.connections,
		m.accepted,
		m.rejected,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCommand counts one execution of command and records how long it took.
func (m *Metrics) ObserveCommand(command string, err error, took time.Duration) {
	if m == nil {
		return
	}

	status := StatusOk
	if err != nil {
		status = StatusError
	}

	m.commands.WithLabelValues(command, status).Inc()
	m.duration.WithLabelValues(command).Observe(took.Seconds())
}

// ObserveError counts an error reply of the given kind.
func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}

	m.rejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}

	m.accepted.Inc()
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}

	m.connections.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
