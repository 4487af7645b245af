// Package datasource implements the data-source manager (spec's C6): pool
// lifecycle, scheduled health probes, atomic per-pool health snapshots, and
// a bounded exponential-backoff retry for transient connector failures. It
// is the concrete SourceRouter rowexec's TableScan operator pulls through.
//
// Grounded on DBAShand-cdc-sink-redshift's internal/util/stdpool package:
// construct a pool, ping it, and only then register it for use.
package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/connector"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/rowexec"
)

var _ rowexec.SourceRouter = (*Manager)(nil)

// Manager owns every source's connector pool and health-check schedule. A
// Manager never blocks a reader: pool lookups take a brief read lock, and a
// source's health is read lock-free from the catalog.Source itself.
type Manager struct {
	cat *catalog.Catalog

	mu         sync.RWMutex
	connectors map[string]connector.Connector
	pools      map[string]connector.Pool

	retryDelays []time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

var defaultRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// NewManager returns a Manager with no pools open yet; call Open per source
// once its connector and connection config are known.
func NewManager(cat *catalog.Catalog) *Manager {
	return &Manager{
		cat:         cat,
		connectors:  map[string]connector.Connector{},
		pools:       map[string]connector.Pool{},
		retryDelays: defaultRetryDelays,
		stop:        make(chan struct{}),
	}
}

// Open builds source's connection pool via conn, retrying transient
// failures per the bounded backoff policy, and -- if the source configures
// a positive health-check interval -- starts its scheduled probe loop.
func (m *Manager) Open(ctx context.Context, source *catalog.Source, conn connector.Connector) error {
	cfg := connector.PoolConfig{
		URL:                     source.Config.URL,
		Username:                source.Config.Username,
		Password:                source.Config.Password,
		MaximumPoolSize:         source.Config.MaximumPoolSize,
		MinimumIdle:             source.Config.MinimumIdle,
		ConnectionTimeoutMillis: source.Config.ConnectionTimeoutMillis,
		IdleTimeoutMillis:       source.Config.IdleTimeoutMillis,
		MaxLifetimeMillis:       source.Config.MaxLifetimeMillis,
	}

	var pool connector.Pool
	err := m.retry(ctx, func() error {
		p, e := conn.Open(ctx, cfg)
		if e != nil {
			return e
		}
		pool = p
		return nil
	})
	if err != nil {
		return core.Wrapf(core.KindSourceUnavailable, err, "open pool for source %q failed after retries", source.ID)
	}

	m.mu.Lock()
	m.connectors[source.ID] = conn
	m.pools[source.ID] = pool
	m.mu.Unlock()

	if source.Config.HealthCheckIntervalSeconds > 0 {
		m.wg.Add(1)
		go m.runHealthLoop(source, conn, pool)
	}
	return nil
}

// DiscoverSchema performs one-shot schema discovery against source's pool,
// called at startup or on an explicit catalog refresh.
func (m *Manager) DiscoverSchema(ctx context.Context, sourceID string) (*connector.DiscoveredSchema, error) {
	conn, pool, err := m.lookup(sourceID)
	if err != nil {
		return nil, err
	}
	return conn.DiscoverSchema(ctx, pool)
}

// Scan implements rowexec.SourceRouter: it refuses a source already marked
// unhealthy without issuing any connector call, and otherwise retries a
// transient scan failure per the bounded backoff policy before surfacing
// SourceUnavailable.
func (m *Manager) Scan(ctx *core.Context, table *catalog.Table, pushdown connector.Pushdown) (connector.Iterator, connector.Handle, error) {
	source, err := m.cat.Source(table.Source)
	if err != nil {
		return nil, nil, err
	}
	if source.Health() == catalog.Unhealthy {
		return nil, nil, core.NewErrorf(core.KindSourceUnavailable, "source %q is unhealthy", table.Source).WithQueryID(ctx.QueryID)
	}
	conn, pool, err := m.lookup(table.Source)
	if err != nil {
		return nil, nil, err
	}

	var it connector.Iterator
	var handle connector.Handle
	err = m.retry(ctx, func() error {
		i, h, e := conn.Scan(ctx, pool, table.Schema, table.Name, pushdown)
		if e != nil {
			return e
		}
		it, handle = i, h
		return nil
	})
	if err != nil {
		return nil, nil, core.Wrapf(core.KindSourceUnavailable, err, "scan %s failed after retries", table.QualifiedName()).WithQueryID(ctx.QueryID)
	}
	return it, handle, nil
}

// Cancel implements rowexec.SourceRouter: it stops an in-flight scan
// identified by handle, releasing any source-side resources.
func (m *Manager) Cancel(table *catalog.Table, handle connector.Handle) error {
	conn, _, err := m.lookup(table.Source)
	if err != nil {
		return err
	}
	return conn.Cancel(handle)
}

// Close stops every health-check loop and drains every open pool.
func (m *Manager) Close() error {
	close(m.stop)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, pool := range m.pools {
		if err := pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.pools, id)
		delete(m.connectors, id)
	}
	return firstErr
}

func (m *Manager) lookup(sourceID string) (connector.Connector, connector.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connectors[sourceID]
	if !ok {
		return nil, nil, core.NewErrorf(core.KindSourceUnavailable, "no pool open for source %q", sourceID)
	}
	return conn, m.pools[sourceID], nil
}
