package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

var registry = prometheus.NewRegistry()

// InitRegistry marks metrics collection as enabled for this process.
// Prometheus implementations consult IsEnabled() and return nil otherwise,
// so callers can always construct a metrics collector and pass it straight
// through without a separate feature-flag check.
func InitRegistry() {
	enabled.Store(true)
}

// IsEnabled reports whether InitRegistry has been called in this process.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the process-wide Prometheus registry that every
// RSMMetrics/CCUMetrics implementation registers its collectors against.
func GetRegistry() *prometheus.Registry {
	return registry
}
