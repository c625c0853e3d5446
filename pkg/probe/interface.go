package probe

import (
	"context"

	"github.com/dd0wney/pgsentry/pkg/node"
)

// Prober is the collaborator a Node asks for its database-observed
// state. An implementation owns everything about how a server is
// reached: connection details, credentials, driver.
//
// Every method's only failure kind is *Error: there is no partial
// success, and callers never need to distinguish timeout from refused
// connection from malformed result. All three mean the same thing:
// the node's state is unknown for this tick.
type Prober interface {
	// RefreshRole determines whether n is currently a primary or a
	// replica and updates n.IsReplica.
	RefreshRole(ctx context.Context, n *node.Node) error

	// RefreshInfo reads n's own heartbeat table and updates
	// n.ClusterID, n.PrimaryName and n.Timestamp from it.
	RefreshInfo(ctx context.Context, n *node.Node) error

	// UpdateHeartbeat writes clusterID, primaryName and timestamp into
	// n's heartbeat table, creating the table on first use, then
	// updates n.Timestamp to match. Only ever called against a node
	// that has just been confirmed to be a primary.
	UpdateHeartbeat(ctx context.Context, n *node.Node, clusterID int, primaryName string, timestamp int64) error

	// Close releases any resources held for nodes this Prober has
	// connected to.
	Close()
}
