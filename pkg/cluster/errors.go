package cluster

import "errors"

var (
	// ErrDuplicatePrimary is returned by AddNode when a node reports
	// itself as a primary but the cluster already has one.
	ErrDuplicatePrimary = errors.New("cluster: already has a primary")
)
