// Package status writes the supervisor's current view of the world to
// a JSON file other tools can poll, without ever exposing a reader to
// a half-written file.
package status

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dd0wney/pgsentry/pkg/cluster"
	"github.com/dd0wney/pgsentry/pkg/node"
)

// Document is the full shape written to the status file.
type Document struct {
	Clusters    []cluster.Snapshot `json:"clusters"`
	Clusterless []node.View        `json:"clusterless"`
}

// Writer persists a Document to a fixed path using a temp-file-then-
// rename sequence, so a reader never observes a partial write.
type Writer struct {
	path string
}

// NewWriter creates a Writer targeting path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Write atomically overwrites the status file with doc.
func (w *Writer) Write(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}

// EnsureDir creates the parent directory of the status file if it
// does not already exist.
func (w *Writer) EnsureDir() error {
	return os.MkdirAll(filepath.Dir(w.path), 0o755)
}
