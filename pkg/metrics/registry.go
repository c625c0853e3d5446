// Package metrics exposes the supervisor's operational counters and
// gauges as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the supervisor records.
type Registry struct {
	TicksTotal       *prometheus.CounterVec
	TickDuration     prometheus.Histogram
	PrimaryUpTotal   *prometheus.CounterVec
	PrimaryDownTotal *prometheus.CounterVec
	ReplicaUpTotal   *prometheus.CounterVec
	ReplicaDownTotal *prometheus.CounterVec
	NodesOutTotal    *prometheus.CounterVec
	ProbeErrorsTotal *prometheus.CounterVec

	TriggersFiredTotal  *prometheus.CounterVec
	TriggersFailedTotal *prometheus.CounterVec

	ClustersTotal    prometheus.Gauge
	ClusterlessTotal prometheus.Gauge
	ClusterHasPrimary *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewRegistry creates a Registry with every metric initialized and
// registered against a fresh Prometheus registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.TicksTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_ticks_total",
		Help: "Total number of supervision ticks run",
	}, []string{"cluster_id"})

	r.TickDuration = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name:    "pgsentry_tick_duration_seconds",
		Help:    "Duration of a full supervision tick across all clusters",
		Buckets: prometheus.DefBuckets,
	})

	r.PrimaryUpTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_primary_up_total",
		Help: "Total number of primary promotion events",
	}, []string{"cluster_id"})

	r.PrimaryDownTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_primary_down_total",
		Help: "Total number of primary loss events",
	}, []string{"cluster_id"})

	r.ReplicaUpTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_replica_up_total",
		Help: "Total number of replicas recovering into sync",
	}, []string{"cluster_id"})

	r.ReplicaDownTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_replica_down_total",
		Help: "Total number of replicas falling out of sync",
	}, []string{"cluster_id"})

	r.NodesOutTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_nodes_out_total",
		Help: "Total number of nodes routed out of a cluster",
	}, []string{"cluster_id"})

	r.ProbeErrorsTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_probe_errors_total",
		Help: "Total number of probe operations that failed",
	}, []string{"op"})

	r.TriggersFiredTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_triggers_fired_total",
		Help: "Total number of trigger scripts fired",
	}, []string{"trigger"})

	r.TriggersFailedTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "pgsentry_triggers_failed_total",
		Help: "Total number of trigger scripts that timed out or exited non-zero",
	}, []string{"trigger"})

	r.ClustersTotal = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "pgsentry_clusters_total",
		Help: "Number of clusters currently tracked",
	})

	r.ClusterlessTotal = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "pgsentry_clusterless_nodes_total",
		Help: "Number of nodes not currently assigned to any cluster",
	})

	r.ClusterHasPrimary = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "pgsentry_cluster_has_primary",
		Help: "Whether a cluster currently has a primary (1) or not (0)",
	}, []string{"cluster_id"})

	return r
}

// Handler returns an http.Handler serving this registry in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
