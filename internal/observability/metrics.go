package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsdpi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wsdpi",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	dissectorVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsdpi",
			Subsystem: "dissector",
			Name:      "verdicts_total",
			Help:      "Dissector verdicts by protocol, outcome and rejection reason.",
		},
		[]string{"protocol", "outcome", "reason"},
	)
	flowsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wsdpi",
			Subsystem: "flow",
			Name:      "tracked",
			Help:      "Flows currently held in the flow table.",
		},
	)
	flowsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wsdpi",
			Subsystem: "flow",
			Name:      "evicted_total",
			Help:      "Settled flows dropped to make room in a full flow table.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, dissectorVerdicts, flowsTracked, flowsEvicted)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordVerdict(protocol, outcome, reason string) {
	RegisterMetrics()
	dissectorVerdicts.WithLabelValues(protocol, outcome, reason).Inc()
}

func SetFlowsTracked(n int) {
	RegisterMetrics()
	flowsTracked.Set(float64(n))
}

func RecordFlowEvicted() {
	RegisterMetrics()
	flowsEvicted.Inc()
}
