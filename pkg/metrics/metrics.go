package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pass metrics
	PassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shepherd_passes_total",
			Help: "Total number of reconciliation passes started",
		},
	)

	PassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shepherd_pass_duration_seconds",
			Help:    "Duration of full reconciliation passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	UnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_units_total",
			Help: "Per-unit sync outcomes by unit kind and result",
		},
		[]string{"kind", "result"},
	)

	// Reconciler metrics
	ContainerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_container_events_total",
			Help: "Container rows created, updated and deleted by reconciliation",
		},
		[]string{"action"},
	)

	HostsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shepherd_hosts_total",
			Help: "Hosts by status as of the last pass",
		},
		[]string{"status"},
	)

	// Probe metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_probes_total",
			Help: "Health probe outcomes",
		},
		[]string{"status"},
	)

	// Launcher metrics
	LaunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_launches_total",
			Help: "Deployment launches by result",
		},
		[]string{"result"},
	)

	LaunchHostFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shepherd_launch_host_failures_total",
			Help: "Per-host failures during deployment launches",
		},
	)
)

func init() {
	prometheus.MustRegister(PassesTotal)
	prometheus.MustRegister(PassDuration)
	prometheus.MustRegister(UnitsTotal)
	prometheus.MustRegister(ContainerEventsTotal)
	prometheus.MustRegister(HostsTotal)
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(LaunchesTotal)
	prometheus.MustRegister(LaunchHostFailures)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
