package metrics

import (
	"strconv"
	"time"

	"github.com/dd0wney/pgsentry/pkg/cluster"
)

// RecordTick records the duration of the tick that produced delta and
// the events delta holds for one cluster. duration covers the whole
// tick, not just this cluster's share of it.
func (r *Registry) RecordTick(clusterID int, duration time.Duration, delta cluster.TickDelta) {
	id := strconv.Itoa(clusterID)

	r.TicksTotal.WithLabelValues(id).Inc()
	r.TickDuration.Observe(duration.Seconds())

	if delta.PrimaryUp != nil {
		r.PrimaryUpTotal.WithLabelValues(id).Inc()
	}
	if delta.PrimaryDown != nil {
		r.PrimaryDownTotal.WithLabelValues(id).Inc()
	}
	r.ReplicaUpTotal.WithLabelValues(id).Add(float64(len(delta.ReplicasUp)))
	r.ReplicaDownTotal.WithLabelValues(id).Add(float64(len(delta.ReplicasDown)))
	r.NodesOutTotal.WithLabelValues(id).Add(float64(len(delta.Out)))
}

// RecordProbeError records a failed probe operation.
func (r *Registry) RecordProbeError(op string) {
	r.ProbeErrorsTotal.WithLabelValues(op).Inc()
}

// RecordTriggerFired records that a trigger script ran to a zero exit
// within its timeout.
func (r *Registry) RecordTriggerFired(name string) {
	r.TriggersFiredTotal.WithLabelValues(name).Inc()
}

// RecordTriggerFailed records that a trigger script timed out or
// exited non-zero.
func (r *Registry) RecordTriggerFailed(name string) {
	r.TriggersFailedTotal.WithLabelValues(name).Inc()
}

// UpdateTopology sets the gauges describing the supervisor's current
// view of cluster membership.
func (r *Registry) UpdateTopology(clusters []*cluster.Cluster, clusterlessCount int) {
	r.ClustersTotal.Set(float64(len(clusters)))
	r.ClusterlessTotal.Set(float64(clusterlessCount))

	for _, c := range clusters {
		id := strconv.Itoa(c.ID)
		if c.HasPrimary() {
			r.ClusterHasPrimary.WithLabelValues(id).Set(1)
		} else {
			r.ClusterHasPrimary.WithLabelValues(id).Set(0)
		}
	}
}
