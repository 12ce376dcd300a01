package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LockCounter tracks the number of successful range acquisitions.
	LockCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rangelock_locks_total",
		Help: "Total number of successful range acquisitions",
	})
	// UnlockCounter tracks the number of range releases.
	UnlockCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rangelock_unlocks_total",
		Help: "Total number of range releases",
	})
	// TryFailCounter tracks try-lock attempts that failed on contention.
	TryFailCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rangelock_try_failures_total",
		Help: "Total number of try-lock attempts that failed on contention",
	})
	// RegionGauge reports the number of live regions across all instances.
	RegionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rangelock_regions",
		Help: "Current number of live regions",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers the rangelock core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LockCounter, UnlockCounter, TryFailCounter, RegionGauge)
}
