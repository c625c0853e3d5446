package cluster

import "github.com/dd0wney/pgsentry/pkg/node"

// Snapshot is a value copy of a Cluster's state, safe to marshal or
// retain past the next tick. It is recomputed on every call; there is
// nothing to invalidate.
type Snapshot struct {
	ClusterID  int         `json:"cluster_id"`
	HasPrimary bool        `json:"has_primary"`
	Primary    *node.View  `json:"primary"`
	Replicas   []node.View `json:"replicas"`
	Lost       []node.View `json:"lost"`
}

// Snapshot returns a point-in-time value view of the cluster.
func (c *Cluster) Snapshot() Snapshot {
	s := Snapshot{
		ClusterID:  c.ID,
		HasPrimary: c.Primary != nil,
		Replicas:   make([]node.View, 0, len(c.Replicas)),
		Lost:       make([]node.View, 0, len(c.Lost)),
	}
	if c.Primary != nil {
		v := c.Primary.Snapshot()
		s.Primary = &v
	}
	for _, n := range c.Replicas {
		s.Replicas = append(s.Replicas, n.Snapshot())
	}
	for _, n := range c.Lost {
		s.Lost = append(s.Lost, n.Snapshot())
	}
	return s
}
