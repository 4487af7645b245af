package datasource

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/connector"
	"github.com/intellisql/intellisql/internal/core"
)

type fakePool struct{ closed bool }

func (p *fakePool) Close() error { p.closed = true; return nil }

type fakeIterator struct{}

func (fakeIterator) Next(ctx context.Context) (core.Row, error) { return nil, io.EOF }
func (fakeIterator) Close() error                               { return nil }

type fakeConnector struct {
	mu           sync.Mutex
	openFailures int
	scanFailures int
	openCalls    int
	scanCalls    int
	healthOK     bool
	healthCalls  int
	cancelCalls  int
	lastHandle   connector.Handle
}

func (f *fakeConnector) Open(ctx context.Context, cfg connector.PoolConfig) (connector.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	if f.openFailures > 0 {
		f.openFailures--
		return nil, core.NewErrorf(core.KindConnectTimeout, "transient open failure")
	}
	return &fakePool{}, nil
}

func (f *fakeConnector) DiscoverSchema(ctx context.Context, pool connector.Pool) (*connector.DiscoveredSchema, error) {
	return &connector.DiscoveredSchema{}, nil
}

func (f *fakeConnector) Scan(ctx context.Context, pool connector.Pool, schema, table string, pushdown connector.Pushdown) (connector.Iterator, connector.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	if f.scanFailures > 0 {
		f.scanFailures--
		return nil, nil, core.NewErrorf(core.KindConnectTimeout, "transient scan failure")
	}
	return fakeIterator{}, "handle-1", nil
}

func (f *fakeConnector) HealthProbe(ctx context.Context, pool connector.Pool, timeout int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthCalls++
	if f.healthOK {
		return nil
	}
	return core.NewErrorf(core.KindConnectTimeout, "probe failed")
}

func (f *fakeConnector) Cancel(handle connector.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	f.lastHandle = handle
	return nil
}

func testSource(id string, cfg catalog.ConnectionConfig) *catalog.Source {
	return catalog.NewSource(id, catalog.KindRelational, cfg)
}

func testTable(sourceID string) *catalog.Table {
	return &catalog.Table{
		Source: sourceID, Schema: "public", Name: "widgets",
		Stats: catalog.DefaultStatistics(nil),
	}
}

func catalogWith(source *catalog.Source, table *catalog.Table) *catalog.Catalog {
	cat := catalog.New()
	b := catalog.NewBuilder()
	b.AddSource(source)
	b.AddTable(table)
	cat.Rebuild(b)
	return cat
}

func fastManager(cat *catalog.Catalog) *Manager {
	m := NewManager(cat)
	m.retryDelays = []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	return m
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	source := testSource("main", catalog.ConnectionConfig{})
	cat := catalogWith(source, testTable("main"))
	m := fastManager(cat)
	conn := &fakeConnector{openFailures: 2}

	err := m.Open(context.Background(), source, conn)
	require.NoError(t, err)
	require.Equal(t, 3, conn.openCalls) // 2 failures + 1 success
}

func TestRetryNonRetryableFailsImmediately(t *testing.T) {
	source := testSource("main", catalog.ConnectionConfig{})
	cat := catalogWith(source, testTable("main"))
	m := fastManager(cat)

	attempts := 0
	err := m.retry(context.Background(), func() error {
		attempts++
		return core.NewErrorf(core.KindValidationError, "bad config")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryExhaustsAfterMaxRetries(t *testing.T) {
	source := testSource("main", catalog.ConnectionConfig{})
	cat := catalogWith(source, testTable("main"))
	m := fastManager(cat)

	attempts := 0
	err := m.retry(context.Background(), func() error {
		attempts++
		return core.NewErrorf(core.KindConnectTimeout, "always transient")
	})
	require.Error(t, err)
	require.Equal(t, 4, attempts) // 1 initial + 3 retries
}

func TestScanUnhealthySourceFailsFast(t *testing.T) {
	source := testSource("main", catalog.ConnectionConfig{})
	table := testTable("main")
	cat := catalogWith(source, table)
	m := fastManager(cat)
	conn := &fakeConnector{}
	require.NoError(t, m.Open(context.Background(), source, conn))

	source.MarkProbe(false, 1, 1) // threshold 1: one failure marks it unhealthy

	ctx := core.NewContext(context.Background(), "q1", nil, nil)
	_, _, err := m.Scan(ctx, table, connector.Pushdown{})
	require.Error(t, err)
	require.Equal(t, core.KindSourceUnavailable, core.AsKind(err))
	require.Equal(t, 0, conn.scanCalls) // never reached the connector
}

func TestScanRetriesThenSucceeds(t *testing.T) {
	source := testSource("main", catalog.ConnectionConfig{})
	table := testTable("main")
	cat := catalogWith(source, table)
	m := fastManager(cat)
	conn := &fakeConnector{scanFailures: 2}
	require.NoError(t, m.Open(context.Background(), source, conn))

	ctx := core.NewContext(context.Background(), "q1", nil, nil)
	it, handle, err := m.Scan(ctx, table, connector.Pushdown{})
	require.NoError(t, err)
	require.NotNil(t, it)
	require.Equal(t, 3, conn.scanCalls)

	require.NoError(t, m.Cancel(table, handle))
	require.Equal(t, 1, conn.cancelCalls)
	require.Equal(t, handle, conn.lastHandle)
}

func TestHealthLoopTransitionsUnhealthy(t *testing.T) {
	source := testSource("main", catalog.ConnectionConfig{
		HealthCheckIntervalSeconds:  1,
		HealthCheckTimeoutSeconds:   1,
		HealthCheckFailureThreshold: 2,
	})
	cat := catalogWith(source, testTable("main"))
	m := fastManager(cat)
	conn := &fakeConnector{healthOK: false}
	require.NoError(t, m.Open(context.Background(), source, conn))
	defer m.Close()

	require.Eventually(t, func() bool {
		return source.Health() == catalog.Unhealthy
	}, 5*time.Second, 50*time.Millisecond)
}
