package dialect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustUnparse(t *testing.T, sql string, d Dialect) string {
	t.Helper()
	tree := mustParse(t, sql)
	u, err := NewUnparser(d)
	require.NoError(t, err)
	out, err := u.Unparse(tree)
	require.NoError(t, err)
	return out
}

func TestUnparseIdentifierQuoting(t *testing.T) {
	require.Equal(t, "SELECT * FROM `widgets`", mustUnparse(t, "SELECT * FROM widgets", MySQL))
	require.Equal(t, `SELECT * FROM "widgets"`, mustUnparse(t, "SELECT * FROM widgets", PostgreSQL))
	require.Equal(t, `SELECT * FROM "widgets"`, mustUnparse(t, "SELECT * FROM widgets", Oracle))
	require.Equal(t, "SELECT * FROM [widgets]", mustUnparse(t, "SELECT * FROM widgets", SQLServer))
	require.Equal(t, "SELECT * FROM `widgets`", mustUnparse(t, "SELECT * FROM widgets", Hive))
}

func TestUnparseLimitOffsetMySQL(t *testing.T) {
	out := mustUnparse(t, "SELECT * FROM users LIMIT 10 OFFSET 5", MySQL)
	require.Equal(t, "SELECT * FROM `users` LIMIT 10 OFFSET 5", out)
}

func TestUnparseLimitOffsetPostgres(t *testing.T) {
	out := mustUnparse(t, "SELECT * FROM users LIMIT 10 OFFSET 5", PostgreSQL)
	require.Equal(t, `SELECT * FROM "users" LIMIT 10 OFFSET 5`, out)
}

func TestUnparseLimitOffsetOracleWrapsRownum(t *testing.T) {
	out := mustUnparse(t, "SELECT * FROM users LIMIT 10 OFFSET 5", Oracle)
	require.Contains(t, out, "ROWNUM")
	require.Contains(t, out, "rnum > 5")
}

func TestUnparseTopMySQLToSQLServer(t *testing.T) {
	out := mustUnparse(t, "SELECT * FROM users LIMIT 5", SQLServer)
	require.Contains(t, out, "TOP 5")
	require.NotContains(t, out, "LIMIT")
}

func TestUnparseHiveLimitOnly(t *testing.T) {
	out := mustUnparse(t, "SELECT * FROM users LIMIT 10 OFFSET 5", Hive)
	require.Equal(t, "SELECT * FROM `users` LIMIT 15", out)
}

func TestUnparseCoalesceRename(t *testing.T) {
	out := mustUnparse(t, "SELECT COALESCE(a, b) FROM widgets", Oracle)
	require.Contains(t, out, "NVL(")
}

func TestUnparseJoinAndWhere(t *testing.T) {
	out := mustUnparse(t, "SELECT a.id FROM orders a INNER JOIN users b ON a.user_id = b.id WHERE a.id > 1", PostgreSQL)
	require.Contains(t, out, "INNER JOIN")
	require.Contains(t, out, "WHERE")
}

func TestUnparseOrderByDesc(t *testing.T) {
	out := mustUnparse(t, "SELECT * FROM widgets ORDER BY price DESC", MySQL)
	require.Contains(t, out, "ORDER BY")
	require.Contains(t, out, "DESC")
}

func TestUnparseAggregate(t *testing.T) {
	out := mustUnparse(t, "SELECT region, COUNT(*) FROM sales GROUP BY region", MySQL)
	require.Contains(t, out, "GROUP BY")
	require.Contains(t, out, "COUNT(*)")
}

func TestUnparseCastPostgresUsesDoubleColon(t *testing.T) {
	out := mustUnparse(t, "SELECT CAST(x AS INT) FROM widgets", PostgreSQL)
	require.Contains(t, out, "::")
}
