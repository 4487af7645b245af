package processor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/connector"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/intellisql/intellisql/internal/dialect"
)

// memIterator and memRouter follow the minimal fakes rowexec's own tests
// use (the router applies a pushed projection the same way), plus an
// optional per-row delay; kept local since they're test-only scaffolding,
// not shared library code.
type memIterator struct {
	rows  []core.Row
	pos   int
	delay time.Duration
}

func (m *memIterator) Next(ctx context.Context) (core.Row, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.pos >= len(m.rows) {
		return nil, io.EOF
	}
	row := m.rows[m.pos]
	m.pos++
	return row, nil
}

func (m *memIterator) Close() error { return nil }

type memRouter struct {
	data  map[string][]core.Row
	delay time.Duration
}

func (r *memRouter) Scan(ctx *core.Context, table *catalog.Table, pushdown connector.Pushdown) (connector.Iterator, connector.Handle, error) {
	rows := r.data[table.Name]
	if len(pushdown.Projection) > 0 {
		idx := make([]int, len(pushdown.Projection))
		for i, name := range pushdown.Projection {
			idx[i] = table.Columns.IndexOf(name)
		}
		projected := make([]core.Row, len(rows))
		for i, row := range rows {
			pr := make(core.Row, len(idx))
			for j, k := range idx {
				pr[j] = row[k]
			}
			projected[i] = pr
		}
		rows = projected
	}
	return &memIterator{rows: rows, delay: r.delay}, nil, nil
}

func (r *memRouter) Cancel(table *catalog.Table, handle connector.Handle) error { return nil }

func intVal(n int64) types.Value  { return types.NewValue(types.Int64, n) }
func strVal(s string) types.Value { return types.NewValue(types.String, s) }

func widgetsTable() *catalog.Table {
	return &catalog.Table{
		Source: "main", Schema: "public", Name: "widgets",
		Columns: core.Schema{
			{Name: "id", Ordinal: 0, Kind: types.Int64, Table: "widgets"},
			{Name: "name", Ordinal: 1, Kind: types.String, Table: "widgets"},
			{Name: "qty", Ordinal: 2, Kind: types.Int64, Table: "widgets"},
		},
		Stats: &catalog.Statistics{RowCount: 3, DefaultSelectivity: 0.1},
	}
}

func testCatalog() *catalog.Catalog {
	cat := catalog.New()
	b := catalog.NewBuilder()
	b.AddSource(catalog.NewSource("main", catalog.KindRelational, catalog.ConnectionConfig{}))
	b.AddTable(widgetsTable())
	cat.Rebuild(b)
	return cat
}

func widgetRows() []core.Row {
	return []core.Row{
		{intVal(1), strVal("bolt"), intVal(10)},
		{intVal(2), strVal("nut"), intVal(5)},
		{intVal(3), strVal("screw"), intVal(0)},
	}
}

func drain(t *testing.T, rs *ResultSet) ([]core.Row, error) {
	t.Helper()
	var out []core.Row
	for {
		frame, err := rs.NextFrame()
		if err != nil {
			return out, err
		}
		out = append(out, frame.Rows...)
		if frame.Done {
			return out, nil
		}
	}
}

func TestExecuteEndToEnd(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	p := NewProcessor(Options{
		Catalog: testCatalog(), Router: router,
		DefaultSource: "main", DefaultSchema: "public",
	})

	rs, err := p.Execute(context.Background(), nil, "SELECT name FROM widgets WHERE qty > 0")
	require.NoError(t, err)

	rows, err := drain(t, rs)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "bolt", rows[0][0].Native)
	require.Equal(t, "nut", rows[1][0].Native)

	q, ok := p.ProcessList().Lookup(rs.ID())
	require.False(t, ok, "completed query should be reaped from the process list")
	_ = q
}

func TestExecuteSyntaxErrorReturnsSyntaxErrorKind(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	p := NewProcessor(Options{Catalog: testCatalog(), Router: router, DefaultSource: "main", DefaultSchema: "public"})

	_, err := p.Execute(context.Background(), nil, "SELECT FROM FROM")
	require.Error(t, err)
	require.Equal(t, core.KindSyntaxError, core.AsKind(err))
}

func TestExecuteCancel(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	p := NewProcessor(Options{
		Catalog: testCatalog(), Router: router,
		DefaultSource: "main", DefaultSchema: "public", FetchSize: 1,
	})

	rs, err := p.Execute(context.Background(), nil, "SELECT id FROM widgets")
	require.NoError(t, err)

	_, err = rs.NextFrame() // consume the first row
	require.NoError(t, err)

	rs.Cancel()
	_, err = rs.NextFrame()
	require.Error(t, err)
	require.Equal(t, core.KindCancelled, core.AsKind(err))
}

func TestExecuteTimeout(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}, delay: 50 * time.Millisecond}
	p := NewProcessor(Options{
		Catalog: testCatalog(), Router: router,
		DefaultSource: "main", DefaultSchema: "public",
		QueryTimeout: 5 * time.Millisecond,
	})

	rs, err := p.Execute(context.Background(), nil, "SELECT id FROM widgets")
	require.NoError(t, err)

	_, err = rs.NextFrame()
	require.Error(t, err)
	require.Equal(t, core.KindQueryTimeout, core.AsKind(err))
}

func TestExecuteTruncation(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	p := NewProcessor(Options{
		Catalog: testCatalog(), Router: router,
		DefaultSource: "main", DefaultSchema: "public",
		MaxIntermediateRows: 1, // widgets has 3 rows, ORDER BY forces full materialisation
	})

	rs, err := p.Execute(context.Background(), nil, "SELECT id FROM widgets ORDER BY id")
	require.NoError(t, err)

	_, err = drain(t, rs)
	require.NoError(t, err) // truncation is a successful terminal state, not an error
}

func TestExecuteConcurrencyBound(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	p := NewProcessor(Options{
		Catalog: testCatalog(), Router: router,
		DefaultSource: "main", DefaultSchema: "public",
		MaxConcurrentQueries: 1,
	})

	rs, err := p.Execute(context.Background(), nil, "SELECT id FROM widgets")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Execute(ctx, nil, "SELECT id FROM widgets")
	require.Error(t, err, "second query should block on the held slot until ctx expires")

	require.NoError(t, rs.Close())
}

func TestTranslateRoute(t *testing.T) {
	p := NewProcessor(Options{})
	res, err := p.Translate(context.Background(), "SELECT * FROM users LIMIT 10 OFFSET 5", dialect.MySQL, dialect.PostgreSQL)
	require.NoError(t, err)
	require.Equal(t, `SELECT * FROM "users" LIMIT 10 OFFSET 5`, res.SQL)
}
