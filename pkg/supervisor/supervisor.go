// Package supervisor owns the set of clusters under watch: it
// partitions newly seen nodes into primaries and replicas, creates
// clusters from working primaries, routes replicas to the cluster
// their own heartbeat claims, and drives each cluster's tick.
package supervisor

import (
	"context"
	"time"

	"github.com/dd0wney/pgsentry/pkg/cluster"
	"github.com/dd0wney/pgsentry/pkg/logging"
	"github.com/dd0wney/pgsentry/pkg/node"
	"github.com/dd0wney/pgsentry/pkg/probe"
)

// Supervisor tracks every cluster and every node that could not be
// placed into one.
type Supervisor struct {
	cfg    cluster.Config
	prober probe.Prober
	logger logging.Logger
	now    func() int64

	Clusters    []*cluster.Cluster
	Clusterless []*node.Node
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithClock overrides the supervisor's source of the current time, in
// seconds since the epoch. Tests use this to drive deterministic
// heartbeat timestamps.
func WithClock(now func() int64) Option {
	return func(s *Supervisor) { s.now = now }
}

// New partitions nodes, creates clusters from whichever ones are
// working primaries, waits one max-sync-delay for replicas to report
// consistent state, then routes the replicas by the primary name their
// own heartbeat claims. This settle-wait only happens here, at
// construction; no later tick waits beyond its configured heartbeat
// interval, which means a cluster built moments after a fresh primary
// election can see a replica as lost for up to one max-sync-delay
// before the routing catches up.
func New(ctx context.Context, nodes []*node.Node, cfg cluster.Config, prober probe.Prober, logger logging.Logger, opts ...Option) *Supervisor {
	return newWithSleep(ctx, nodes, cfg, prober, logger, time.Sleep, opts...)
}

func newWithSleep(ctx context.Context, nodes []*node.Node, cfg cluster.Config, prober probe.Prober, logger logging.Logger, sleep func(time.Duration), opts ...Option) *Supervisor {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	s := &Supervisor{
		cfg:    cfg,
		prober: prober,
		logger: logger,
		now:    func() int64 { return time.Now().Unix() },
	}
	for _, opt := range opts {
		opt(s)
	}

	primaries, replicas, clusterless := s.partition(ctx, nodes)
	s.Clusterless = clusterless
	s.createClusters(ctx, primaries)

	sleep(cfg.MaxSyncDelay)

	s.assignReplicas(ctx, replicas, true)
	return s
}

// partition probes every node's role and sorts it into primaries,
// replicas, or lost (a failed probe means the node's state is unknown
// and it cannot be placed anywhere yet).
func (s *Supervisor) partition(ctx context.Context, nodes []*node.Node) (primaries, replicas, lost []*node.Node) {
	for _, n := range nodes {
		if err := s.prober.RefreshRole(ctx, n); err != nil {
			s.logger.Debug("partition probe failed", logging.NodeName(n.Name), logging.Error(err))
			lost = append(lost, n)
			continue
		}
		if n.IsReplica {
			replicas = append(replicas, n)
		} else {
			primaries = append(primaries, n)
		}
	}
	return primaries, replicas, lost
}

// createClusters assigns each working primary the next cluster id and
// writes it into the primary's own heartbeat. A primary that fails
// that write goes back to clusterless rather than seeding a cluster
// whose id the database never actually recorded.
func (s *Supervisor) createClusters(ctx context.Context, primaries []*node.Node) {
	timestamp := s.now()
	for _, n := range primaries {
		id := len(s.Clusters)
		n.ClusterID = id
		if err := s.prober.UpdateHeartbeat(ctx, n, id, n.Name, timestamp); err != nil {
			s.logger.Debug("cluster seed heartbeat failed", logging.NodeName(n.Name), logging.Error(err))
			s.Clusterless = append(s.Clusterless, n)
			continue
		}
		s.Clusters = append(s.Clusters, cluster.NewWithPrimary(id, s.cfg, s.prober, s.logger, n))
	}
}

// assignReplicas routes each replica to the cluster it belongs to.
// byName looks the cluster up by the primary name the replica itself
// reports, which is the only option at cold start since cluster ids
// from a previous run carry no meaning; afterward routing is by
// cluster id so clusters stay grouped even if two primaries briefly
// share a name.
func (s *Supervisor) assignReplicas(ctx context.Context, replicas []*node.Node, byName bool) {
	var byNameIndex map[string]*cluster.Cluster
	if byName {
		byNameIndex = make(map[string]*cluster.Cluster, len(s.Clusters))
		for _, c := range s.Clusters {
			if c.Primary != nil {
				byNameIndex[c.Primary.Name] = c
			}
		}
	}

	for _, n := range replicas {
		if err := s.prober.RefreshInfo(ctx, n); err != nil {
			// A stale entry is accepted here: the node still needs a
			// home, and refusing to route it just leaves it homeless.
			s.logger.Debug("replica info refresh failed, routing with stale data", logging.NodeName(n.Name), logging.Error(err))
		}

		var target *cluster.Cluster
		if byName {
			target = byNameIndex[n.PrimaryName]
		} else if n.ClusterID >= 0 && n.ClusterID < len(s.Clusters) {
			target = s.Clusters[n.ClusterID]
		}

		if target == nil {
			s.Clusterless = append(s.Clusterless, n)
			continue
		}
		if err := target.AddNode(n); err != nil {
			s.Clusterless = append(s.Clusterless, n)
		}
	}
}
