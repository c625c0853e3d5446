// Package cluster implements the reconciliation engine that classifies
// a set of PostgreSQL nodes into a primary, its in-sync replicas, and
// the nodes that have fallen behind or out.
package cluster

import (
	"context"
	"time"

	"github.com/dd0wney/pgsentry/pkg/logging"
	"github.com/dd0wney/pgsentry/pkg/node"
	"github.com/dd0wney/pgsentry/pkg/probe"
)

// Config holds the two sync-delay thresholds a cluster reconciles
// against. MaxSyncDelay bounds how far a currently-healthy replica may
// drift before it is declared lost. RecoverSyncDelay is the stricter
// (smaller) bound applied when deciding whether a previously-lost node
// may rejoin.
type Config struct {
	MaxSyncDelay     time.Duration
	RecoverSyncDelay time.Duration
}

func (c Config) maxDelaySeconds() int64 {
	return int64(c.MaxSyncDelay / time.Second)
}

func (c Config) recoverDelaySeconds() int64 {
	return int64(c.RecoverSyncDelay / time.Second)
}

// Cluster is one primary/replica group under supervision.
//
// A Cluster's Timestamp is its logical clock: it is taken from the
// primary's own heartbeat each tick and is the reference every
// replica's freshness is measured against. There is no independent
// wall-clock freshness check; a cluster with no primary has no moving
// clock, which is why replicas cannot be declared out of sync while a
// cluster is without a primary (a failed role probe still makes them
// lost).
type Cluster struct {
	ID        int
	Primary   *node.Node
	Replicas  []*node.Node
	Lost      []*node.Node
	Timestamp int64

	cfg    Config
	prober probe.Prober
	logger logging.Logger
}

// New creates an empty cluster with no primary.
func New(id int, cfg Config, prober probe.Prober, logger logging.Logger) *Cluster {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Cluster{
		ID:     id,
		cfg:    cfg,
		prober: prober,
		logger: logger,
	}
}

// NewWithPrimary creates a cluster seeded with a node already known to
// be the primary.
func NewWithPrimary(id int, cfg Config, prober probe.Prober, logger logging.Logger, primary *node.Node) *Cluster {
	c := New(id, cfg, prober, logger)
	c.Primary = primary
	return c
}

// HasPrimary reports whether the cluster currently has a primary.
func (c *Cluster) HasPrimary() bool {
	return c.Primary != nil
}

// AddNode assigns a freshly-partitioned node to the cluster at
// construction time, before any tick has run. It never probes the
// node; it classifies purely from the node's last-observed state.
func (c *Cluster) AddNode(n *node.Node) error {
	if c.Primary == nil {
		if n.IsReplica {
			// Without a primary we cannot judge freshness or routing,
			// so an unclaimed replica starts out lost.
			c.Lost = append(c.Lost, n)
		} else {
			c.Primary = n
		}
		return nil
	}

	if !n.IsReplica {
		return ErrDuplicatePrimary
	}

	if c.Primary.Timestamp-n.Timestamp <= c.cfg.maxDelaySeconds() {
		if n.PrimaryName == c.Primary.Name {
			c.Replicas = append(c.Replicas, n)
		} else {
			c.Lost = append(c.Lost, n)
		}
	} else {
		c.Lost = append(c.Lost, n)
	}
	return nil
}

// TickDelta reports what changed for a cluster during one UpdateCluster
// call.
type TickDelta struct {
	PrimaryDown  *node.Node
	PrimaryUp    *node.Node
	ReplicasDown []*node.Node
	ReplicasUp   []*node.Node
	Out          []*node.Node
}

// classifyResult is the outcome of probing one set of candidates
// against a single role/freshness pass.
type classifyResult struct {
	primary  *node.Node
	replicas []*node.Node
	lost     []*node.Node
	out      []*node.Node
}

// classify probes each candidate's role and, for replicas, freshness
// and routing. The first candidate that qualifies as primary wins;
// every other candidate that also looks like a primary is pushed out,
// never merged. delay is compared against c.Timestamp, which is the
// cluster's clock as of the start of this tick, not the candidate's
// own data.
func (c *Cluster) classify(ctx context.Context, now int64, delay int64, candidates []*node.Node) classifyResult {
	var result classifyResult

	for _, n := range candidates {
		if err := c.prober.RefreshRole(ctx, n); err != nil {
			result.lost = append(result.lost, n)
			continue
		}

		if !n.IsReplica {
			if (c.Primary != nil && c.Primary != n) || result.primary != nil {
				result.out = append(result.out, n)
				continue
			}
			if err := c.prober.UpdateHeartbeat(ctx, n, c.ID, n.Name, now); err != nil {
				result.lost = append(result.lost, n)
				continue
			}
			result.primary = n
			continue
		}

		if c.Primary != nil {
			if err := c.prober.RefreshInfo(ctx, n); err != nil {
				result.lost = append(result.lost, n)
				continue
			}
			switch {
			case c.Timestamp-n.Timestamp > delay:
				result.lost = append(result.lost, n)
			case n.ClusterID != c.ID:
				result.out = append(result.out, n)
			default:
				result.replicas = append(result.replicas, n)
			}
			continue
		}

		// Without a primary there is no clock to judge freshness by, so
		// a failed info read is ignored and the stale view is kept.
		prevTimestamp := n.Timestamp
		_ = c.prober.RefreshInfo(ctx, n)
		if n.Timestamp != prevTimestamp && n.ClusterID != c.ID {
			result.out = append(result.out, n)
		} else {
			result.replicas = append(result.replicas, n)
		}
	}

	return result
}

// UpdateCluster runs one reconciliation tick: the primary (if any) is
// re-probed first, then the current replicas, then the currently lost
// nodes, in that order. Each pass may hand the primary role to a new
// node; once that happens the remaining passes see the new primary and
// route accordingly, which is what lets a replica pass promotion be
// immediately respected by the lost pass's tie-break.
func (c *Cluster) UpdateCluster(ctx context.Context, now int64) TickDelta {
	var delta TickDelta
	var newReplicas, newLost []*node.Node

	if c.Primary != nil {
		c.Timestamp = c.Primary.Timestamp
		r := c.classify(ctx, now, c.cfg.maxDelaySeconds(), []*node.Node{c.Primary})
		if r.primary == nil {
			delta.PrimaryDown = c.Primary
			c.Primary = nil
		}
		newReplicas = append(newReplicas, r.replicas...)
		newLost = append(newLost, r.lost...)
		delta.Out = append(delta.Out, r.out...)
	}

	replicaResult := c.classify(ctx, now, c.cfg.maxDelaySeconds(), c.Replicas)
	if replicaResult.primary != nil {
		delta.PrimaryDown = nil
		delta.PrimaryUp = replicaResult.primary
		replicaResult.primary.ClusterID = c.ID
		c.Primary = replicaResult.primary
	}
	newReplicas = append(newReplicas, replicaResult.replicas...)
	newLost = append(newLost, replicaResult.lost...)
	delta.ReplicasDown = append(delta.ReplicasDown, replicaResult.lost...)
	delta.Out = append(delta.Out, replicaResult.out...)

	lostResult := c.classify(ctx, now, c.cfg.recoverDelaySeconds(), c.Lost)
	if lostResult.primary != nil {
		delta.PrimaryDown = nil
		delta.PrimaryUp = lostResult.primary
		lostResult.primary.ClusterID = c.ID
		c.Primary = lostResult.primary
	}
	newReplicas = append(newReplicas, lostResult.replicas...)
	newLost = append(newLost, lostResult.lost...)
	delta.ReplicasUp = append(delta.ReplicasUp, lostResult.replicas...)
	delta.Out = append(delta.Out, lostResult.out...)

	c.Replicas = newReplicas
	c.Lost = newLost

	return delta
}
