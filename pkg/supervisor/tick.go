package supervisor

import (
	"context"

	"github.com/dd0wney/pgsentry/pkg/cluster"
	"github.com/dd0wney/pgsentry/pkg/node"
)

// Event pairs a node with the cluster it belongs to at the moment a
// trigger-worthy change happened to it.
type Event struct {
	Node    *node.Node
	Cluster *cluster.Cluster
}

// TickResult collects every trigger-worthy event a tick produced,
// grouped by kind.
type TickResult struct {
	PrimaryDown []Event
	PrimaryUp   []Event
	ReplicaDown []Event
	ReplicaUp   []Event

	// Deltas holds the raw per-cluster delta in cluster order, for
	// callers that want to record metrics without re-deriving them
	// from the event lists.
	Deltas []cluster.TickDelta
}

// Tick advances every cluster by one step, then re-partitions whatever
// fell out of a cluster this round: a node probed as a working primary
// seeds a brand new cluster, and everything else is routed by cluster
// id, since by now every node has a heartbeat of its own to trust.
func (s *Supervisor) Tick(ctx context.Context) TickResult {
	var result TickResult
	now := s.now()

	var fellOut []*node.Node
	for _, c := range s.Clusters {
		delta := c.UpdateCluster(ctx, now)
		result.Deltas = append(result.Deltas, delta)
		fellOut = append(fellOut, delta.Out...)

		if delta.PrimaryDown != nil {
			result.PrimaryDown = append(result.PrimaryDown, Event{delta.PrimaryDown, c})
		}
		if delta.PrimaryUp != nil {
			result.PrimaryUp = append(result.PrimaryUp, Event{delta.PrimaryUp, c})
		}
		for _, n := range delta.ReplicasDown {
			result.ReplicaDown = append(result.ReplicaDown, Event{n, c})
		}
		for _, n := range delta.ReplicasUp {
			result.ReplicaUp = append(result.ReplicaUp, Event{n, c})
		}
	}

	candidates := append(s.Clusterless, fellOut...)
	s.Clusterless = nil

	primaries, replicas, lost := s.partition(ctx, candidates)
	s.Clusterless = lost
	s.createClusters(ctx, primaries)
	s.assignReplicas(ctx, replicas, false)

	return result
}
