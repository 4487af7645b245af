package driver

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/connector"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/intellisql/intellisql/internal/processor"
)

type fakeIterator struct {
	rows []core.Row
	pos  int
}

func (f *fakeIterator) Next(ctx context.Context) (core.Row, error) {
	if f.pos >= len(f.rows) {
		return nil, io.EOF
	}
	row := f.rows[f.pos]
	f.pos++
	return row, nil
}

func (f *fakeIterator) Close() error { return nil }

type fakeRouter struct {
	rows []core.Row
}

func (r *fakeRouter) Scan(ctx *core.Context, table *catalog.Table, pushdown connector.Pushdown) (connector.Iterator, connector.Handle, error) {
	return &fakeIterator{rows: r.rows}, nil, nil
}

func (r *fakeRouter) Cancel(table *catalog.Table, handle connector.Handle) error { return nil }

func testProcessor() *processor.Processor {
	cat := catalog.New()
	b := catalog.NewBuilder()
	b.AddSource(catalog.NewSource("main", catalog.KindRelational, catalog.ConnectionConfig{}))
	b.AddTable(&catalog.Table{
		Source: "main", Schema: "public", Name: "widgets",
		Columns: core.Schema{
			{Name: "id", Ordinal: 0, Kind: types.Int64, Table: "widgets"},
			{Name: "name", Ordinal: 1, Kind: types.String, Table: "widgets"},
		},
		Stats: &catalog.Statistics{RowCount: 2, DefaultSelectivity: 0.1},
	})
	cat.Rebuild(b)

	router := &fakeRouter{rows: []core.Row{
		{types.NewValue(types.Int64, int64(1)), types.NewValue(types.String, "bolt")},
		{types.NewValue(types.Int64, int64(2)), types.NewValue(types.String, "nut")},
	}}

	return processor.NewProcessor(processor.Options{
		Catalog: cat, Router: router,
		DefaultSource: "main", DefaultSchema: "public",
	})
}

func TestDriverQueryRoundTrip(t *testing.T) {
	drv := New(testProcessor())
	connector, err := drv.OpenConnector("intellisql://main/public")
	require.NoError(t, err)

	db := sql.OpenDB(connector)
	defer db.Close()

	rows, err := db.Query("SELECT name FROM widgets")
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"bolt", "nut"}, names)
}

func TestDriverPrepareRejectsBadSyntax(t *testing.T) {
	drv := New(testProcessor())
	connector, err := drv.OpenConnector("intellisql://main/public")
	require.NoError(t, err)

	db := sql.OpenDB(connector)
	defer db.Close()

	_, err = db.Prepare("SELECT FROM FROM")
	require.Error(t, err)
}

func TestDriverExecUnsupported(t *testing.T) {
	drv := New(testProcessor())
	connector, err := drv.OpenConnector("intellisql://main/public")
	require.NoError(t, err)

	db := sql.OpenDB(connector)
	defer db.Close()

	_, err = db.Exec("SELECT name FROM widgets")
	require.Error(t, err)
}
