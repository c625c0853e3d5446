package main

import (
	"context"
	"errors"

	"github.com/dd0wney/pgsentry/pkg/metrics"
	"github.com/dd0wney/pgsentry/pkg/node"
	"github.com/dd0wney/pgsentry/pkg/probe"
)

// instrumentedProber wraps a Prober and counts every failed operation
// against the registry's pgsentry_probe_errors_total metric, keyed by
// the same op name the wrapped prober already attaches to its errors.
type instrumentedProber struct {
	probe.Prober
	registry *metrics.Registry
}

func instrumentProber(p probe.Prober, registry *metrics.Registry) probe.Prober {
	return &instrumentedProber{Prober: p, registry: registry}
}

func (p *instrumentedProber) RefreshRole(ctx context.Context, n *node.Node) error {
	err := p.Prober.RefreshRole(ctx, n)
	p.record(err)
	return err
}

func (p *instrumentedProber) RefreshInfo(ctx context.Context, n *node.Node) error {
	err := p.Prober.RefreshInfo(ctx, n)
	p.record(err)
	return err
}

func (p *instrumentedProber) UpdateHeartbeat(ctx context.Context, n *node.Node, clusterID int, primaryName string, timestamp int64) error {
	err := p.Prober.UpdateHeartbeat(ctx, n, clusterID, primaryName, timestamp)
	p.record(err)
	return err
}

func (p *instrumentedProber) record(err error) {
	if err == nil {
		return
	}
	var probeErr *probe.Error
	if errors.As(err, &probeErr) {
		p.registry.RecordProbeError(probeErr.Op)
	}
}
