package rowexec

import (
	"context"
	"testing"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/connector"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/intellisql/intellisql/internal/dialect"
	"github.com/intellisql/intellisql/internal/optimizer"
	"github.com/stretchr/testify/require"
)

// memIterator replays a fixed slice of rows, the simplest possible
// connector.Iterator stand-in for exercising the operators above without a
// real data-source connector.
type memIterator struct {
	rows []core.Row
	pos  int
}

func (m *memIterator) Next(ctx context.Context) (core.Row, error) {
	if m.pos >= len(m.rows) {
		return nil, EOF
	}
	row := m.rows[m.pos]
	m.pos++
	return row, nil
}

func (m *memIterator) Close() error { return nil }

// memRouter is a fake SourceRouter backing each catalog table with a fixed
// row set, keyed by table name.
type memRouter struct {
	data map[string][]core.Row
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
	if pushdown.Limit > 0 && pushdown.Limit < len(rows) {
		rows = rows[:pushdown.Limit]
	}
	return &memIterator{rows: rows}, nil, nil
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

func testContext() *core.Context {
	return core.NewContext(context.Background(), "q1", nil, nil)
}

func runAll(t *testing.T, it core.RowIter) []core.Row {
	t.Helper()
	ctx := testContext()
	require.NoError(t, it.Open(ctx))
	var out []core.Row
	for {
		row, err := it.Next(ctx)
		if err == EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, row)
	}
	require.NoError(t, it.Close(ctx))
	return out
}

func buildPhysical(t *testing.T, sql string, router *memRouter) core.RowIter {
	t.Helper()
	tree, err := dialect.NewParser(sql).Parse()
	require.NoError(t, err)
	pt, err := optimizer.Optimize(tree, optimizer.Options{
		Catalog: testCatalog(), DefaultSource: "main", DefaultSchema: "public",
	})
	require.NoError(t, err)
	it, err := Build(pt, router, NewRowBudget(0))
	require.NoError(t, err)
	return it
}

func TestScanFilterProject(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	it := buildPhysical(t, "SELECT name FROM widgets WHERE qty > 0", router)
	rows := runAll(t, it)
	require.Len(t, rows, 2)
	require.Equal(t, "bolt", rows[0][0].Native)
	require.Equal(t, "nut", rows[1][0].Native)
}

func TestLimitOffset(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	it := buildPhysical(t, "SELECT id FROM widgets ORDER BY id LIMIT 1 OFFSET 1", router)
	rows := runAll(t, it)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0][0].Native)
}

func TestSortDescending(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	it := buildPhysical(t, "SELECT id, qty FROM widgets ORDER BY qty DESC", router)
	rows := runAll(t, it)
	require.Len(t, rows, 3)
	require.Equal(t, int64(1), rows[0][0].Native) // qty=10
	require.Equal(t, int64(2), rows[1][0].Native) // qty=5
	require.Equal(t, int64(3), rows[2][0].Native) // qty=0
}

func TestAggregateCountStar(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": widgetRows()}}
	it := buildPhysical(t, "SELECT COUNT(*) FROM widgets", router)
	rows := runAll(t, it)
	require.Len(t, rows, 1)
	require.Equal(t, int64(3), rows[0][0].Native)
}

func TestAggregateEmptyInputYieldsOneRow(t *testing.T) {
	router := &memRouter{data: map[string][]core.Row{"widgets": nil}}
	it := buildPhysical(t, "SELECT COUNT(*) FROM widgets", router)
	rows := runAll(t, it)
	require.Len(t, rows, 1)
	require.Equal(t, int64(0), rows[0][0].Native)
}

func TestLikeMatch(t *testing.T) {
	require.True(t, likeMatch("bolt", "b%"))
	require.True(t, likeMatch("bolt", "b_lt"))
	require.False(t, likeMatch("bolt", "n%"))
}

func TestHashJoinInner(t *testing.T) {
	leftSchema := core.Schema{
		{Name: "id", Ordinal: 0, Kind: types.Int64, Table: "a"},
	}
	rightSchema := core.Schema{
		{Name: "id", Ordinal: 0, Kind: types.Int64, Table: "b"},
		{Name: "label", Ordinal: 1, Kind: types.String, Table: "b"},
	}
	left := &memScanNode{rows: []core.Row{{intVal(1)}, {intVal(2)}}, schema: leftSchema}
	right := &memScanNode{rows: []core.Row{{intVal(2), strVal("x")}, {intVal(3), strVal("y")}}, schema: rightSchema}

	cond := &dialect.BinaryExpr{Op: "=",
		Left:  &dialect.ColumnRef{Table: "a", Column: "id"},
		Right: &dialect.ColumnRef{Table: "b", Column: "id"},
	}
	keys, rkeys, residual, ok := extractEquiKeys(cond, leftSchema, rightSchema)
	require.True(t, ok)
	require.Nil(t, residual)

	hj := newHashJoinIter(left.iter(), right.iter(), keys, rkeys, residual, dialect.InnerJoin, leftSchema, rightSchema, NewRowBudget(0))
	rows := runAll(t, hj)
	require.Len(t, rows, 1)
	// output columns are [a.id, b.id, b.label]
	require.Equal(t, int64(2), rows[0][0].Native)
	require.Equal(t, int64(2), rows[0][1].Native)
	require.Equal(t, "x", rows[0][2].Native)
}

// memScanNode is a minimal in-memory RowIter source for join/sort tests that
// don't need a full catalog-backed scan.
type memScanNode struct {
	rows   []core.Row
	schema core.Schema
}

func (m *memScanNode) iter() core.RowIter { return &memRowIter{rows: m.rows} }

type memRowIter struct {
	rows []core.Row
	pos  int
}

func (m *memRowIter) Open(ctx *core.Context) error { return nil }
func (m *memRowIter) Next(ctx *core.Context) (core.Row, error) {
	if m.pos >= len(m.rows) {
		return nil, EOF
	}
	row := m.rows[m.pos]
	m.pos++
	return row, nil
}
func (m *memRowIter) Close(ctx *core.Context) error { return nil }
