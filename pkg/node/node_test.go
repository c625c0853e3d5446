package node

import "testing"

func TestNew(t *testing.T) {
	n := New("a", 5432)

	if n.Name != "a:5432" {
		t.Errorf("expected name 'a:5432', got %q", n.Name)
	}
	if n.ClusterID != -1 {
		t.Errorf("expected cluster id -1 for a fresh node, got %d", n.ClusterID)
	}
	if n.IsReplica {
		t.Error("expected a fresh node to default to non-replica")
	}
}

func TestIdentityIsByPointer(t *testing.T) {
	a := New("host", 1)
	b := New("host", 1)

	if a == b {
		t.Fatal("expected distinct Node instances with equal fields to not be ==")
	}

	set := map[*Node]bool{a: true}
	if set[b] {
		t.Error("expected b to not be found under a's pointer identity")
	}
}

func TestSnapshotIsIndependentOfMutation(t *testing.T) {
	n := New("host", 1)
	n.IsReplica = true
	n.Timestamp = 100

	snap := n.Snapshot()

	n.Timestamp = 200

	if snap.Timestamp != 100 {
		t.Errorf("expected snapshot to retain timestamp 100, got %d", snap.Timestamp)
	}
}
