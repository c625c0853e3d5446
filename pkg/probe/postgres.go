package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/pgsentry/pkg/logging"
	"github.com/dd0wney/pgsentry/pkg/node"
)

// Credentials holds the connection parameters shared by every node a
// PostgresProber talks to. Only host and port vary per node.
type Credentials struct {
	User             string
	Password         string
	DBName           string
	ConnectTimeout   time.Duration
	IsSlaveStatement string
}

// PostgresProber implements Prober against real PostgreSQL servers
// using pgx. Each node gets its own small pool so a single failing
// node cannot exhaust connections meant for another; the pool is
// created lazily on first use and sized for the access pattern of a
// supervision loop, which touches one node at a time, not a pool of
// application workers.
type PostgresProber struct {
	creds  Credentials
	logger logging.Logger

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewPostgresProber builds a Prober that connects to nodes with the
// given credentials. The logger records connection failures at debug
// level; callers see the same failures surfaced as *Error.
func NewPostgresProber(creds Credentials, logger logging.Logger) *PostgresProber {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &PostgresProber{
		creds:  creds,
		logger: logger,
		pools:  make(map[string]*pgxpool.Pool),
	}
}

func (p *PostgresProber) poolFor(ctx context.Context, n *node.Node) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok := p.pools[n.Name]; ok {
		return pool, nil
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s connect_timeout=%d",
		n.Host, n.Port, p.creds.User, p.creds.Password, p.creds.DBName,
		int(p.creds.ConnectTimeout/time.Second),
	)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 2
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.pools[n.Name] = pool
	return pool, nil
}

func (p *PostgresProber) acquire(ctx context.Context, n *node.Node) (*pgxpool.Conn, error) {
	pool, err := p.poolFor(ctx, n)
	if err != nil {
		return nil, err
	}
	connectCtx, cancel := context.WithTimeout(ctx, p.creds.ConnectTimeout)
	defer cancel()
	return pool.Acquire(connectCtx)
}

// RefreshRole implements Prober.
func (p *PostgresProber) RefreshRole(ctx context.Context, n *node.Node) error {
	conn, err := p.acquire(ctx, n)
	if err != nil {
		p.logger.Debug("probe connect failed", logging.NodeName(n.Name), logging.Error(err))
		return wrap("refresh_role", n.Name, err)
	}
	defer conn.Release()

	var isReplica bool
	row := conn.QueryRow(ctx, p.creds.IsSlaveStatement)
	if err := row.Scan(&isReplica); err != nil {
		p.logger.Debug("probe role query failed", logging.NodeName(n.Name), logging.Error(err))
		return wrap("refresh_role", n.Name, err)
	}

	n.IsReplica = isReplica
	return nil
}

// RefreshInfo implements Prober.
func (p *PostgresProber) RefreshInfo(ctx context.Context, n *node.Node) error {
	conn, err := p.acquire(ctx, n)
	if err != nil {
		p.logger.Debug("probe connect failed", logging.NodeName(n.Name), logging.Error(err))
		return wrap("refresh_info", n.Name, err)
	}
	defer conn.Release()

	var clusterID int
	var primaryName string
	var timestamp int64
	row := conn.QueryRow(ctx, "SELECT cluster_id, master, tstamp FROM heartbeat")
	if err := row.Scan(&clusterID, &primaryName, &timestamp); err != nil {
		p.logger.Debug("probe info query failed", logging.NodeName(n.Name), logging.Error(err))
		return wrap("refresh_info", n.Name, err)
	}

	n.ClusterID = clusterID
	n.PrimaryName = primaryName
	n.Timestamp = timestamp
	return nil
}

// UpdateHeartbeat implements Prober.
func (p *PostgresProber) UpdateHeartbeat(ctx context.Context, n *node.Node, clusterID int, primaryName string, timestamp int64) error {
	conn, err := p.acquire(ctx, n)
	if err != nil {
		p.logger.Debug("probe connect failed", logging.NodeName(n.Name), logging.Error(err))
		return wrap("update_heartbeat", n.Name, err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return wrap("update_heartbeat", n.Name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS heartbeat(
		cluster_id INT,
		master TEXT,
		tstamp BIGINT
	)`); err != nil {
		return wrap("update_heartbeat", n.Name, err)
	}

	var count int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM heartbeat").Scan(&count); err != nil {
		return wrap("update_heartbeat", n.Name, err)
	}
	if count == 0 {
		if _, err := tx.Exec(ctx,
			"INSERT INTO heartbeat(cluster_id, master, tstamp) VALUES($1, $2, $3)",
			-1, "-", int64(0),
		); err != nil {
			return wrap("update_heartbeat", n.Name, err)
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE heartbeat SET cluster_id = $1, master = $2, tstamp = $3",
		clusterID, primaryName, timestamp,
	); err != nil {
		return wrap("update_heartbeat", n.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("update_heartbeat", n.Name, err)
	}

	n.Timestamp = timestamp
	return nil
}

// Close releases all pooled connections. Safe to call once at shutdown.
func (p *PostgresProber) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, pool := range p.pools {
		pool.Close()
		delete(p.pools, name)
	}
}
