package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/ledgerq/engine"
)

var _ engine.MetricsObserver = (*Observer)(nil)

// Observer implements engine.MetricsObserver on top of client_golang.
type Observer struct {
	opLatency      *prometheus.HistogramVec
	queries        *prometheus.CounterVec
	queryResults   prometheus.Histogram
	writes         *prometheus.CounterVec
	compactions    *prometheus.CounterVec
	compacted      prometheus.Counter
	checkpoints    *prometheus.CounterVec
	checkpointSize prometheus.Gauge
	replayed       prometheus.Gauge
	queueDepth     *prometheus.GaugeVec
}

// NewObserver creates an Observer and registers its collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer. It panics if a collector is
// already registered.
func NewObserver(reg prometheus.Registerer, namespace string) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of engine operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total queries by access path and cache outcome",
		}, []string{"access", "cached"}),
		queryResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of accounts returned per query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Total writes processed",
		}, []string{"type", "status"}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Total compactions completed",
		}, []string{"status"}),
		compacted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compacted_tombstones_total",
			Help:      "Total tombstones removed by compaction",
		}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Total checkpoints written",
		}, []string{"status"}),
		checkpointSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_records",
			Help:      "Number of records in the last successful checkpoint",
		}),
		replayed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recovery_replayed_records",
			Help:      "Number of WAL records replayed during the last recovery",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Depth of background queues",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		o.opLatency,
		o.queries,
		o.queryResults,
		o.writes,
		o.compactions,
		o.compacted,
		o.checkpoints,
		o.checkpointSize,
		o.replayed,
		o.queueDepth,
	)
	return o
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (o *Observer) OnRegister(d time.Duration, err error) {
	o.opLatency.WithLabelValues("register", status(err)).Observe(d.Seconds())
	o.writes.WithLabelValues("register", status(err)).Inc()
}

func (o *Observer) OnUnregister(d time.Duration, err error) {
	o.opLatency.WithLabelValues("unregister", status(err)).Observe(d.Seconds())
	o.writes.WithLabelValues("unregister", status(err)).Inc()
}

func (o *Observer) OnQuery(access string, d time.Duration, results int, cached bool, err error) {
	o.opLatency.WithLabelValues("query", status(err)).Observe(d.Seconds())
	o.queries.WithLabelValues(access, strconv.FormatBool(cached)).Inc()
	if err == nil {
		o.queryResults.Observe(float64(results))
	}
}

func (o *Observer) OnCompaction(d time.Duration, removed int, err error) {
	o.opLatency.WithLabelValues("compaction", status(err)).Observe(d.Seconds())
	o.compactions.WithLabelValues(status(err)).Inc()
	if err == nil {
		o.compacted.Add(float64(removed))
	}
}

func (o *Observer) OnCheckpoint(d time.Duration, records int, err error) {
	o.opLatency.WithLabelValues("checkpoint", status(err)).Observe(d.Seconds())
	o.checkpoints.WithLabelValues(status(err)).Inc()
	if err == nil {
		o.checkpointSize.Set(float64(records))
	}
}

func (o *Observer) OnRecovery(d time.Duration, replayed int, err error) {
	o.opLatency.WithLabelValues("recovery", status(err)).Observe(d.Seconds())
	o.replayed.Set(float64(replayed))
}

func (o *Observer) OnQueueDepth(name string, depth int) {
	o.queueDepth.WithLabelValues(name).Set(float64(depth))
}
