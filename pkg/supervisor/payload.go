package supervisor

import (
	"encoding/json"

	"github.com/dd0wney/pgsentry/pkg/cluster"
	"github.com/dd0wney/pgsentry/pkg/node"
)

// triggerPayload is the JSON object written to a trigger script's
// stdin: a cluster snapshot plus the node that caused the event (nil
// for the heartbeat trigger, which is not about any one node) and the
// supervisor's current clusterless list.
type triggerPayload struct {
	cluster.Snapshot
	Trigger     *node.View  `json:"trigger"`
	Clusterless []node.View `json:"clusterless"`
}

func (s *Supervisor) payload(snap cluster.Snapshot, affected *node.Node) []byte {
	p := triggerPayload{
		Snapshot:    snap,
		Clusterless: viewsOf(s.Clusterless),
	}
	if affected != nil {
		v := affected.Snapshot()
		p.Trigger = &v
	}
	data, err := json.Marshal(p)
	if err != nil {
		// Snapshot and node.View are both plain JSON-friendly values;
		// a marshal failure here would mean one of them stopped being
		// one, which a trigger payload can't do anything useful with.
		return []byte("{}")
	}
	return data
}

func viewsOf(nodes []*node.Node) []node.View {
	views := make([]node.View, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, n.Snapshot())
	}
	return views
}

func snapshotsOf(clusters []*cluster.Cluster) []cluster.Snapshot {
	snaps := make([]cluster.Snapshot, 0, len(clusters))
	for _, c := range clusters {
		snaps = append(snaps, c.Snapshot())
	}
	return snaps
}
