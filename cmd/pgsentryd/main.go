// Command pgsentryd supervises one or more PostgreSQL primary/replica
// clusters, tracking which node is primary and which replicas are in
// sync, and firing operator-defined trigger scripts on every state
// change. It never promotes or demotes a server itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dd0wney/pgsentry/pkg/cluster"
	"github.com/dd0wney/pgsentry/pkg/config"
	"github.com/dd0wney/pgsentry/pkg/health"
	"github.com/dd0wney/pgsentry/pkg/logging"
	"github.com/dd0wney/pgsentry/pkg/metrics"
	"github.com/dd0wney/pgsentry/pkg/node"
	"github.com/dd0wney/pgsentry/pkg/probe"
	"github.com/dd0wney/pgsentry/pkg/status"
	"github.com/dd0wney/pgsentry/pkg/supervisor"
	"github.com/dd0wney/pgsentry/pkg/trigger"
)

func main() {
	var configPath string
	var foreground bool
	flag.StringVar(&configPath, "c", "/etc/pgsentry/pgsentry.json", "configuration file")
	flag.BoolVar(&foreground, "x", false, "log to stdout instead of the log file (the process runs in the foreground either way)")
	flag.Parse()

	command := "status"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load configuration file %s: %v\n", configPath, err)
		os.Exit(1)
	}

	level, ok := parseRequiredLevel(cfg.LogLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", cfg.LogLevel)
		os.Exit(1)
	}

	switch command {
	case "start":
		runStart(cfg, level, foreground)
	case "stop":
		runStop(cfg)
	case "status":
		runStatus(cfg)
	case "reload":
		fmt.Fprintln(os.Stderr, "reload not implemented")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected start, stop, status, or reload)\n", command)
		os.Exit(1)
	}
}

// parseRequiredLevel mirrors the original's level_map lookup: only
// these three names are accepted, anything else is a fatal
// configuration error rather than a silent fallback to info.
func parseRequiredLevel(s string) (logging.Level, bool) {
	switch s {
	case "error":
		return logging.ErrorLevel, true
	case "info":
		return logging.InfoLevel, true
	case "debug":
		return logging.DebugLevel, true
	default:
		return 0, false
	}
}

func newLogger(cfg *config.Config, level logging.Level, foreground bool) logging.Logger {
	if foreground {
		return logging.NewJSONLogger(os.Stdout, level)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open log file %s: %v\n", cfg.LogFile, err)
		os.Exit(1)
	}
	return logging.NewJSONLogger(f, level)
}

func runStart(cfg *config.Config, level logging.Level, foreground bool) {
	logger := newLogger(cfg, level, foreground)

	if err := os.MkdirAll(filepath.Dir(cfg.PIDFile), 0o755); err == nil {
		if err := os.WriteFile(cfg.PIDFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			logger.Error("could not write pid file", logging.Path(cfg.PIDFile), logging.Error(err))
		}
	}
	defer os.Remove(cfg.PIDFile)

	nodes := make([]*node.Node, 0, len(cfg.Nodes))
	for _, spec := range cfg.Nodes {
		nodes = append(nodes, node.New(spec.Host, spec.Port))
	}

	registry := metrics.NewRegistry()

	postgresProber := probe.NewPostgresProber(probe.Credentials{
		User:             cfg.User,
		Password:         cfg.Password,
		DBName:           cfg.DBName,
		ConnectTimeout:   cfg.ConnectTimeout,
		IsSlaveStatement: cfg.IsSlaveStatement,
	}, logger)
	defer postgresProber.Close()
	prober := instrumentProber(postgresProber, registry)

	clusterCfg := cluster.Config{
		MaxSyncDelay:     cfg.MaxSyncDelay,
		RecoverSyncDelay: cfg.RecoverSyncDelay,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("settling cluster topology", logging.Duration("settle", cfg.MaxSyncDelay))
	sup := supervisor.New(ctx, nodes, clusterCfg, prober, logger)

	statusWriter := status.NewWriter(cfg.StatusFile)
	if err := statusWriter.EnsureDir(); err != nil {
		logger.Error("could not create status file directory", logging.Error(err))
	}

	if cfg.AdminAddr != "" {
		startAdminServer(ctx, cfg.AdminAddr, sup, registry, logger)
	}

	loop := &supervisor.Loop{
		Supervisor: sup,
		Dispatcher: trigger.New(cfg.Triggers, cfg.TriggerTimeout, logger),
		Writer:     statusWriter,
		Metrics:    registry,
		Heartbeat:  cfg.Heartbeat,
		Logger:     logger,
	}

	logger.Info("supervision loop starting", logging.Int("clusters", len(sup.Clusters)))
	loop.Run(ctx)
}

// startAdminServer exposes health and Prometheus endpoints on a
// background HTTP listener. It never blocks runStart; a bind failure
// is logged and supervision continues without the admin surface.
func startAdminServer(ctx context.Context, addr string, sup *supervisor.Supervisor, registry *metrics.Registry, logger logging.Logger) {
	checker := health.NewHealthChecker()
	checker.RegisterLivenessCheck("supervisor", func() health.Check {
		return health.SimpleCheck("supervisor")
	})
	checker.RegisterReadinessCheck("clusterless", health.ClusterlessCheck(func() int {
		return len(sup.Clusterless)
	}))
	for _, c := range sup.Clusters {
		c := c
		checker.RegisterCheck("primary:"+fmt.Sprintf("%d", c.ID), health.PrimaryCheck(fmt.Sprintf("%d", c.ID), func() (bool, int64) {
			return c.HasPrimary(), time.Now().Unix() - c.Timestamp
		}))
		checker.RegisterCheck("cluster:"+fmt.Sprintf("%d", c.ID), health.ClusterCheck(fmt.Sprintf("%d", c.ID), func() (int, int, int) {
			snap := c.Snapshot()
			return len(snap.Replicas), len(snap.Lost), 0
		}))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HTTPHandler())
	mux.Handle("/health/ready", checker.ReadinessHandler())
	mux.Handle("/health/live", checker.LivenessHandler())
	mux.Handle("/metrics", registry.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server stopped", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.Info("admin server listening", logging.String("addr", addr))
}

func runStop(cfg *config.Config) {
	data, err := os.ReadFile(cfg.PIDFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "PID file %s not found - is the daemon running?\n", cfg.PIDFile)
		os.Exit(1)
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		fmt.Fprintf(os.Stderr, "could not read pid in %s\n", cfg.PIDFile)
		os.Exit(1)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "PID file %s found, but no matching process\n", cfg.PIDFile)
		os.Exit(1)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "error attempting to stop process %d: %v\n", pid, err)
		os.Exit(1)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if proc.Signal(syscall.Signal(0)) != nil {
			fmt.Println("Done!")
			os.Exit(0)
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Println("Process did not stop. Sending SIGKILL")
	proc.Signal(syscall.SIGKILL)
	os.Exit(0)
}

func runStatus(cfg *config.Config) {
	data, err := os.ReadFile(cfg.StatusFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read status file %s: %v\n", cfg.StatusFile, err)
		os.Exit(1)
	}
	fmt.Println(string(data))
	os.Exit(0)
}

