package metrics

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mensylisir/xmism/common"
)

var labelNames = []string{common.TagIndexName, common.TagPolicyID, common.TagNodeID}

// LatencyBuckets covers admin calls from a few milliseconds up to the client timeout.
var LatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

type counterInstrument struct {
	vec *prometheus.CounterVec
}

func (c counterInstrument) Add(value float64, tags Tags) {
	c.vec.With(tags.Labels()).Add(value)
}

type histogramInstrument struct {
	vec *prometheus.HistogramVec
}

func (h histogramInstrument) Add(value float64, tags Tags) {
	h.vec.With(tags.Labels()).Observe(value)
}

// PrometheusRegistry backs ActionMetrics with Prometheus vectors.
type PrometheusRegistry struct {
	actions map[string]*ActionMetrics
}

// NewPrometheusRegistry registers successes/failures counters and a latency histogram for
// every action type on reg.
func NewPrometheusRegistry(reg prometheus.Registerer, namespace string) (*PrometheusRegistry, error) {
	r := &PrometheusRegistry{actions: make(map[string]*ActionMetrics, len(Actions()))}
	for _, action := range Actions() {
		successes := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: action,
			Name:      "successes_total",
			Help:      fmt.Sprintf("Number of %s steps that completed", action),
		}, labelNames)
		failures := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: action,
			Name:      "failures_total",
			Help:      fmt.Sprintf("Number of %s steps that failed", action),
		}, labelNames)
		latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: action,
			Name:      "cumulative_latency_milliseconds",
			Help:      fmt.Sprintf("Latency of %s step executions in milliseconds", action),
			Buckets:   LatencyBuckets,
		}, labelNames)

		for _, c := range []prometheus.Collector{successes, failures, latency} {
			if err := reg.Register(c); err != nil {
				return nil, errors.Wrapf(err, "failed to register %s metrics", action)
			}
		}

		r.actions[action] = &ActionMetrics{
			Successes:         counterInstrument{vec: successes},
			Failures:          counterInstrument{vec: failures},
			CumulativeLatency: histogramInstrument{vec: latency},
		}
	}
	return r, nil
}

// GetActionMetrics returns the metrics of action, or no-op metrics for unknown actions.
func (r *PrometheusRegistry) GetActionMetrics(action string) *ActionMetrics {
	if m, ok := r.actions[action]; ok {
		return m
	}
	return noopActionMetrics
}

var _ Registry = (*PrometheusRegistry)(nil)
