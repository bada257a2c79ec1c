package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricSet struct {
	operations        *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	transfers         *prometheus.CounterVec
	transferBytes     *prometheus.CounterVec
	bestEffortFailure *prometheus.CounterVec
	connectAttempts   *prometheus.CounterVec
	openSessions      prometheus.Gauge
	keepaliveRuns     *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

func newMetricSet(namespace string) *metricSet {
	transferBuckets := []float64{
		0.01, 0.05, 0.1, 0.25, 0.5, 1, // sub-second round trips
		2.5, 5, 10, 30, 60, 120,
	}

	return &metricSet{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Storage operations (write, delete, resolve) by outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Wall-clock duration of storage operations",
				Buckets:   transferBuckets,
			},
			[]string{"operation"},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Uploads by variant (original, thumbnail) and result",
			},
			[]string{"variant", "result"},
		),
		transferBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_bytes_total",
				Help:      "Bytes uploaded by variant",
			},
			[]string{"variant"},
		),
		bestEffortFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "best_effort_failures_total",
				Help:      "Tolerated primitive failures (mkdir, delete, passive, close)",
			},
			[]string{"primitive"},
		),
		connectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connect_attempts_total",
				Help:      "Remote session establishment attempts by result",
			},
			[]string{"result"},
		),
		openSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_sessions",
				Help:      "Number of remote sessions currently open",
			},
		),
		keepaliveRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "keepalive_runs_total",
				Help:      "Session keepalive runs by result",
			},
			[]string{"result"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of the serve command's HTTP endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (c *metricSet) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.operations,
		c.operationLatency,
		c.transfers,
		c.transferBytes,
		c.bestEffortFailure,
		c.connectAttempts,
		c.openSessions,
		c.keepaliveRuns,
		c.httpLatency,
	}
}

func observeDuration(observer prometheus.Observer, duration time.Duration) {
	if observer == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	observer.Observe(duration.Seconds())
}
