package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransitionsTotal — попытки переходов стейт-машины.
	// outcome: success | noop | rejected | failure | advisory_failure | conflict
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strand_ipv6_transitions_total",
			Help: "IPv6 lifecycle transition attempts by operation, states and outcome",
		},
		[]string{"operation", "from", "to", "outcome"},
	)

	// ExternalCallDuration — длительность вызовов IPAM и RADIUS.
	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strand_external_call_duration_seconds",
			Help:    "Duration of calls to external collaborators",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"system", "call"},
	)
)

func init() {
	prometheus.MustRegister(TransitionsTotal, ExternalCallDuration)
}

// ObserveExternal — записать длительность внешнего вызова от start до сейчас.
func ObserveExternal(system, call string, start time.Time) {
	ExternalCallDuration.WithLabelValues(system, call).Observe(time.Since(start).Seconds())
}

func Handler() http.Handler { return promhttp.Handler() }
