package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wafclient",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "WAF engine operations by outcome.",
		},
		[]string{"op", "outcome"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wafclient",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "End-to-end WAF operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	breakerOpens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wafclient",
			Subsystem: "breaker",
			Name:      "open_total",
			Help:      "Times the shared circuit breaker tripped open.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(operations, operationDuration, breakerOpens)
	})
}

// RecordOperation counts one operation. Outcome is one of "ok", "fail_open",
// or "cooldown".
func RecordOperation(op, outcome string, duration time.Duration) {
	operations.WithLabelValues(op, outcome).Inc()
	operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordBreakerOpen() {
	breakerOpens.Inc()
}
