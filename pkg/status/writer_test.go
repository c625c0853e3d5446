package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dd0wney/pgsentry/pkg/cluster"
)

func TestWriteIsAtomicAndReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	w := NewWriter(path)

	doc := Document{
		Clusters: []cluster.Snapshot{
			{ClusterID: 0, HasPrimary: true},
		},
	}

	if err := w.Write(doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("expected valid json: %v", err)
	}
	if len(decoded.Clusters) != 1 || decoded.Clusters[0].ClusterID != 0 {
		t.Errorf("unexpected decoded document: %+v", decoded)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected temp file to be renamed away")
	}
}

func TestWriteOverwritesPreviousContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	w := NewWriter(path)

	w.Write(Document{Clusters: []cluster.Snapshot{{ClusterID: 0}}})
	w.Write(Document{Clusters: []cluster.Snapshot{{ClusterID: 1}}})

	data, _ := os.ReadFile(path)
	var decoded Document
	json.Unmarshal(data, &decoded)

	if len(decoded.Clusters) != 1 || decoded.Clusters[0].ClusterID != 1 {
		t.Errorf("expected latest write to win, got %+v", decoded)
	}
}
