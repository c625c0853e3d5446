package supervisor

import (
	"context"
	"time"

	"github.com/dd0wney/pgsentry/pkg/cluster"
	"github.com/dd0wney/pgsentry/pkg/logging"
	"github.com/dd0wney/pgsentry/pkg/metrics"
	"github.com/dd0wney/pgsentry/pkg/node"
	"github.com/dd0wney/pgsentry/pkg/status"
	"github.com/dd0wney/pgsentry/pkg/trigger"
)

// Loop wires a Supervisor to its operational surface: a trigger
// dispatcher, a status file writer, and a metrics registry. It owns
// the forever sleep-tick-report cycle described in the main
// supervision contract.
type Loop struct {
	Supervisor *Supervisor
	Dispatcher *trigger.Dispatcher
	Writer     *status.Writer
	Metrics    *metrics.Registry
	Heartbeat  time.Duration
	Logger     logging.Logger
}

// Run fires the startup trigger for every cluster already known, then
// blocks ticking at the configured heartbeat until ctx is cancelled.
// A cancellation is honored between ticks, never mid-tick: the current
// tick, and the trigger firings and status write that follow it, run
// to completion first.
func (l *Loop) Run(ctx context.Context) {
	logger := l.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}

	l.fireStartupTriggers()
	l.report()

	ticker := time.NewTicker(l.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("supervision loop stopping")
			return
		case <-ticker.C:
			l.runOnce(ctx)
		}
	}
}

func (l *Loop) fireStartupTriggers() {
	for _, c := range l.Supervisor.Clusters {
		snap := c.Snapshot()
		l.fire("up", snap, nil)
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	start := time.Now()
	result := l.Supervisor.Tick(ctx)
	duration := time.Since(start)

	if l.Metrics != nil {
		for i, c := range l.Supervisor.Clusters {
			if i < len(result.Deltas) {
				l.Metrics.RecordTick(c.ID, duration, result.Deltas[i])
			}
		}
		l.Metrics.UpdateTopology(l.Supervisor.Clusters, len(l.Supervisor.Clusterless))
	}

	for _, ev := range result.PrimaryDown {
		l.fire("primary_down", ev.Cluster.Snapshot(), ev.Node)
	}
	for _, ev := range result.PrimaryUp {
		l.fire("primary_up", ev.Cluster.Snapshot(), ev.Node)
	}
	for _, ev := range result.ReplicaDown {
		l.fire("replica_down", ev.Cluster.Snapshot(), ev.Node)
	}
	for _, ev := range result.ReplicaUp {
		l.fire("replica_up", ev.Cluster.Snapshot(), ev.Node)
	}
	for _, c := range l.Supervisor.Clusters {
		l.fire("heartbeat", c.Snapshot(), nil)
	}

	l.report()
}

// fire builds the trigger payload for one event and dispatches it,
// recording the outcome in metrics when a registry is attached.
func (l *Loop) fire(name string, snap cluster.Snapshot, affected *node.Node) {
	if l.Metrics == nil || !l.Dispatcher.Configured(name) {
		l.Dispatcher.Fire(name, l.Supervisor.payload(snap, affected))
		return
	}
	if l.Dispatcher.Fire(name, l.Supervisor.payload(snap, affected)) {
		l.Metrics.RecordTriggerFired(name)
	} else {
		l.Metrics.RecordTriggerFailed(name)
	}
}

func (l *Loop) report() {
	if l.Writer == nil {
		return
	}
	doc := status.Document{
		Clusters:    snapshotsOf(l.Supervisor.Clusters),
		Clusterless: viewsOf(l.Supervisor.Clusterless),
	}
	if err := l.Writer.Write(doc); err != nil && l.Logger != nil {
		l.Logger.Error("failed to write status file", logging.Error(err))
	}
}
