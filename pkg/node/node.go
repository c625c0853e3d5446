// Package node models a single PostgreSQL server under supervision.
package node

import "fmt"

// Node represents one PostgreSQL server known to the supervisor.
//
// Identity is by pointer, never by value: two Nodes with identical
// fields are still distinct nodes unless they are the same instance.
// Callers must pass *Node around rather than copying the struct.
type Node struct {
	Host string
	Port int

	// Name is the node's internal identifier, derived once at
	// construction from host and port.
	Name string

	// IsReplica reflects the role last observed via RefreshRole.
	IsReplica bool

	// ClusterID is the cluster id last observed in the node's own
	// heartbeat table. -1 means no cluster has been observed yet.
	ClusterID int

	// PrimaryName is the primary's name as recorded in this node's
	// heartbeat table, last observed via RefreshInfo.
	PrimaryName string

	// Timestamp is the last heartbeat timestamp observed on this node,
	// in seconds since the epoch.
	Timestamp int64
}

// New creates a Node for the given host and port with the zero-value
// defaults matching a server that has never been probed.
func New(host string, port int) *Node {
	return &Node{
		Host:      host,
		Port:      port,
		Name:      fmt.Sprintf("%s:%d", host, port),
		ClusterID: -1,
	}
}

// View is a value snapshot of a Node, safe to retain, compare, or
// marshal independently of the Node's subsequent mutation.
type View struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Name        string `json:"name"`
	IsReplica   bool   `json:"is_replica"`
	ClusterID   int    `json:"cluster_id"`
	PrimaryName string `json:"primary_name"`
	Timestamp   int64  `json:"timestamp"`
}

// Snapshot returns a point-in-time value copy of the node's fields.
func (n *Node) Snapshot() View {
	return View{
		Host:        n.Host,
		Port:        n.Port,
		Name:        n.Name,
		IsReplica:   n.IsReplica,
		ClusterID:   n.ClusterID,
		PrimaryName: n.PrimaryName,
		Timestamp:   n.Timestamp,
	}
}

func (n *Node) String() string {
	return n.Name
}
