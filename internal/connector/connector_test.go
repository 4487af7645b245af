package connector

import (
	"context"
	"io"
	"testing"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/stretchr/testify/require"
)

func testSchema() core.Schema {
	return core.Schema{
		{Name: "id", Ordinal: 0, Kind: types.Int64},
		{Name: "name", Ordinal: 1, Kind: types.String},
	}
}

func TestMemoryConnectorScanRoundTrip(t *testing.T) {
	mc := NewMemoryConnector()
	schema := testSchema()
	rows := []core.Row{
		{types.NewValue(types.Int64, int64(1)), types.NewValue(types.String, "alpha")},
		{types.NewValue(types.Int64, int64(2)), types.NewValue(types.String, "beta")},
	}
	mc.CreateTable("db1", "public", "widgets", schema, rows)

	pool, err := mc.Open(context.Background(), PoolConfig{URL: "db1"})
	require.NoError(t, err)

	iter, _, err := mc.Scan(context.Background(), pool, "public", "widgets", Pushdown{})
	require.NoError(t, err)
	defer iter.Close()

	var got []core.Row
	for {
		row, err := iter.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, row)
	}
	require.Len(t, got, 2)
}

func TestMemoryConnectorScanUnknownTable(t *testing.T) {
	mc := NewMemoryConnector()
	mc.CreateTable("db1", "public", "widgets", testSchema(), nil)
	pool, err := mc.Open(context.Background(), PoolConfig{URL: "db1"})
	require.NoError(t, err)

	_, _, err = mc.Scan(context.Background(), pool, "public", "missing", Pushdown{})
	require.Error(t, err)
	require.Equal(t, core.KindUnknownTable, core.AsKind(err))
}

func TestMemoryConnectorScanUnknownSchema(t *testing.T) {
	mc := NewMemoryConnector()
	pool, err := mc.Open(context.Background(), PoolConfig{URL: "db1"})
	require.NoError(t, err)

	_, _, err = mc.Scan(context.Background(), pool, "absent", "widgets", Pushdown{})
	require.Error(t, err)
	require.Equal(t, core.KindUnknownSchema, core.AsKind(err))
}

func TestMemoryConnectorFilterProjectionLimit(t *testing.T) {
	mc := NewMemoryConnector()
	schema := testSchema()
	rows := []core.Row{
		{types.NewValue(types.Int64, int64(1)), types.NewValue(types.String, "alpha")},
		{types.NewValue(types.Int64, int64(2)), types.NewValue(types.String, "beta")},
		{types.NewValue(types.Int64, int64(3)), types.NewValue(types.String, "beta")},
	}
	mc.CreateTable("db1", "public", "widgets", schema, rows)
	pool, err := mc.Open(context.Background(), PoolConfig{URL: "db1"})
	require.NoError(t, err)

	pushdown := Pushdown{
		Filter:     Predicate{Column: "name", Operator: "=", Value: "beta"},
		Projection: []string{"id"},
		Limit:      1,
	}
	iter, _, err := mc.Scan(context.Background(), pool, "public", "widgets", pushdown)
	require.NoError(t, err)
	defer iter.Close()

	row, err := iter.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, row, 1)
	require.Equal(t, int64(2), row[0].Native)

	_, err = iter.Next(context.Background())
	require.Equal(t, io.EOF, err)
}

func TestDiscoverSchemaListsSeededTables(t *testing.T) {
	mc := NewMemoryConnector()
	mc.CreateTable("db1", "public", "widgets", testSchema(), nil)
	mc.CreateTable("db1", "public", "gadgets", testSchema(), nil)

	pool, err := mc.Open(context.Background(), PoolConfig{URL: "db1"})
	require.NoError(t, err)

	discovered, err := mc.DiscoverSchema(context.Background(), pool)
	require.NoError(t, err)
	require.Equal(t, []string{"public"}, discovered.Schemas)
	require.Len(t, discovered.Tables, 2)
}

func TestTypeMappingMapType(t *testing.T) {
	kind, err := RelationalTypeMapping.MapType("BIGINT")
	require.NoError(t, err)
	require.Equal(t, types.Int64, kind)

	_, err = RelationalTypeMapping.MapType("NOT_A_TYPE")
	require.Error(t, err)
	require.Equal(t, core.KindTypeNotSupported, core.AsKind(err))
}

func TestBuildSelectHonoursPushdown(t *testing.T) {
	pushdown := &Pushdown{
		Projection: []string{"id", "name"},
		Filter:     Predicate{Column: "id", Operator: "=", Value: 1},
		SortBy:     []SortKey{{Column: "name", Descending: true}},
		Limit:      10,
	}
	stmt, args := buildSelect("mysql", "public", "widgets", pushdown)
	require.Equal(t, "SELECT `id`, `name` FROM `public`.`widgets` WHERE `id` = ? ORDER BY `name` DESC LIMIT 10", stmt)
	require.Equal(t, []interface{}{1}, args)
	require.False(t, pushdown.Unpushed.Filter)
}

func TestBuildSelectReportsUnpushedAggregate(t *testing.T) {
	pushdown := &Pushdown{
		Aggregate: &AggregatePushdown{GroupBy: []string{"name"}, Aggs: []AggExpr{{Func: "COUNT", Column: "id", Alias: "n"}}},
	}
	_, _ = buildSelect("postgres", "public", "widgets", pushdown)
	require.True(t, pushdown.Unpushed.Aggregate)
}

func TestQuestionToDollarPlaceholders(t *testing.T) {
	out := questionToDollarPlaceholders("SELECT * FROM t WHERE a = ? AND b = ?")
	require.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", out)
}

func TestRenderSearchQueryEquality(t *testing.T) {
	q, ok := renderSearchQuery(Predicate{Column: "status", Operator: "=", Value: "open"})
	require.True(t, ok)
	require.Equal(t, map[string]interface{}{"term": map[string]interface{}{"status": "open"}}, q)
}

func TestRenderSearchQueryUnsupportedOperator(t *testing.T) {
	_, ok := renderSearchQuery(Predicate{Column: "status", Operator: "NOT_AN_OP", Value: "open"})
	require.False(t, ok)
}
