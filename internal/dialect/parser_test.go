package dialect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, sql string) *LogicalTree {
	t.Helper()
	tree, err := NewParser(sql).Parse()
	require.NoError(t, err)
	return tree
}

func TestParseSimpleSelect(t *testing.T) {
	tree := mustParse(t, "SELECT id, name FROM users WHERE id = 1")
	proj, ok := tree.Root.(*Project)
	require.True(t, ok)
	require.Len(t, proj.Items, 2)
	filter, ok := proj.Input.(*Filter)
	require.True(t, ok)
	bin, ok := filter.Predicate.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "=", bin.Op)
	scan, ok := filter.Input.(*Scan)
	require.True(t, ok)
	require.Equal(t, "users", scan.Table)
}

func TestParseQualifiedTableName(t *testing.T) {
	tree := mustParse(t, "SELECT * FROM mydb.public.widgets")
	proj := tree.Root.(*Project)
	scan := proj.Input.(*Scan)
	require.Equal(t, "mydb", scan.Source)
	require.Equal(t, "public", scan.Schema)
	require.Equal(t, "widgets", scan.Table)
}

func TestParseLimitOffset(t *testing.T) {
	tree := mustParse(t, "SELECT * FROM widgets LIMIT 10 OFFSET 5")
	lim, ok := tree.Root.(*Limit)
	require.True(t, ok)
	require.True(t, lim.HasCount)
	require.Equal(t, int64(10), lim.Count)
	require.True(t, lim.HasOffset)
	require.Equal(t, int64(5), lim.Offset)
}

func TestParseTopN(t *testing.T) {
	tree := mustParse(t, "SELECT TOP 5 * FROM widgets")
	lim, ok := tree.Root.(*Limit)
	require.True(t, ok)
	require.Equal(t, int64(5), lim.Count)
}

func TestParseFetchFirstRowsOnly(t *testing.T) {
	tree := mustParse(t, "SELECT * FROM widgets ORDER BY id FETCH FIRST 10 ROWS ONLY")
	lim, ok := tree.Root.(*Limit)
	require.True(t, ok)
	require.Equal(t, int64(10), lim.Count)
	_, ok = lim.Input.(*Sort)
	require.True(t, ok)
}

func TestParseOffsetFetchNext(t *testing.T) {
	tree := mustParse(t, "SELECT * FROM widgets ORDER BY id OFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY")
	lim, ok := tree.Root.(*Limit)
	require.True(t, ok)
	require.Equal(t, int64(5), lim.Offset)
	require.Equal(t, int64(10), lim.Count)
}

func TestParseJoinWithOn(t *testing.T) {
	tree := mustParse(t, "SELECT a.id FROM orders a INNER JOIN users b ON a.user_id = b.id")
	proj := tree.Root.(*Project)
	join, ok := proj.Input.(*Join)
	require.True(t, ok)
	require.Equal(t, InnerJoin, join.Kind)
	require.NotNil(t, join.Condition)
}

func TestParseLeftOuterJoin(t *testing.T) {
	tree := mustParse(t, "SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.a_id")
	proj := tree.Root.(*Project)
	join := proj.Input.(*Join)
	require.Equal(t, LeftJoin, join.Kind)
}

func TestParseGroupByAggregate(t *testing.T) {
	tree := mustParse(t, "SELECT region, COUNT(*), SUM(amount) FROM sales GROUP BY region HAVING COUNT(*) > 1")
	agg, ok := tree.Root.(*Aggregate)
	require.True(t, ok)
	require.Len(t, agg.GroupBy, 1)
	require.Len(t, agg.Aggs, 2)
	require.True(t, agg.Aggs[0].Star)
	require.NotNil(t, agg.Having)
}

func TestParseUnionAll(t *testing.T) {
	tree := mustParse(t, "SELECT id FROM a UNION ALL SELECT id FROM b")
	setOp, ok := tree.Root.(*SetOp)
	require.True(t, ok)
	require.Equal(t, UnionAll, setOp.Kind)
}

func TestParseInSubquery(t *testing.T) {
	tree := mustParse(t, "SELECT * FROM users WHERE id IN (SELECT user_id FROM orders)")
	proj := tree.Root.(*Project)
	filter := proj.Input.(*Filter)
	bin, ok := filter.Predicate.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "IN_SUBQUERY", bin.Op)
}

func TestParseBetween(t *testing.T) {
	tree := mustParse(t, "SELECT * FROM widgets WHERE price BETWEEN 1 AND 10")
	proj := tree.Root.(*Project)
	filter := proj.Input.(*Filter)
	bin, ok := filter.Predicate.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "AND", bin.Op)
}

func TestParseCaseExpr(t *testing.T) {
	tree := mustParse(t, "SELECT CASE WHEN x > 0 THEN 'pos' ELSE 'non-pos' END FROM widgets")
	proj := tree.Root.(*Project)
	_, ok := proj.Items[0].Expr.(*CaseExpr)
	require.True(t, ok)
}

func TestParseCastAndDoubleColonCast(t *testing.T) {
	tree := mustParse(t, "SELECT CAST(x AS INT), y::text FROM widgets")
	proj := tree.Root.(*Project)
	_, ok := proj.Items[0].Expr.(*CastExpr)
	require.True(t, ok)
	cast2, ok := proj.Items[1].Expr.(*CastExpr)
	require.True(t, ok)
	require.Equal(t, "text", cast2.TypeName)
}

func TestParseSyntaxErrorIncludesSnippet(t *testing.T) {
	_, err := NewParser("SELEC * FROM widgets").Parse()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SyntaxError")
	require.Contains(t, err.Error(), "SELEC * FROM widgets")
}

func TestParseSubqueryInFrom(t *testing.T) {
	tree := mustParse(t, "SELECT t.id FROM (SELECT id FROM widgets) t")
	proj := tree.Root.(*Project)
	sub, ok := proj.Input.(*Subquery)
	require.True(t, ok)
	require.Equal(t, "t", sub.Alias)
}
