package dialect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
)

func TestTranslateOfflineMySQLToPostgres(t *testing.T) {
	res, err := Translate("SELECT * FROM users LIMIT 10 OFFSET 5", TranslateOptions{From: MySQL, To: PostgreSQL})
	require.NoError(t, err)
	require.Equal(t, `SELECT * FROM "users" LIMIT 10 OFFSET 5`, res.SQL)
}

func TestTranslateOfflineMySQLToOracle(t *testing.T) {
	res, err := Translate("SELECT * FROM users LIMIT 10 OFFSET 5", TranslateOptions{From: MySQL, To: Oracle})
	require.NoError(t, err)
	require.Contains(t, res.SQL, "ROWNUM")
}

func TestTranslateOnlineValidatesAgainstCatalog(t *testing.T) {
	cat := catalog.New()
	b := catalog.NewBuilder()
	b.AddTable(&catalog.Table{
		Source: "default", Schema: "public", Name: "users",
		Columns: core.Schema{
			{Name: "id", Ordinal: 0, Kind: types.Int64},
			{Name: "name", Ordinal: 1, Kind: types.String},
		},
	})
	cat.Rebuild(b)

	_, err := Translate("SELECT id FROM users", TranslateOptions{
		From: MySQL, To: PostgreSQL,
		Catalog: cat, DefaultSource: "default", DefaultSchema: "public",
	})
	require.NoError(t, err)
}

func TestTranslateOnlineUnknownTableFails(t *testing.T) {
	cat := catalog.New()
	cat.Rebuild(catalog.NewBuilder())

	_, err := Translate("SELECT id FROM ghosts", TranslateOptions{
		From: MySQL, To: PostgreSQL,
		Catalog: cat, DefaultSource: "default", DefaultSchema: "public",
	})
	require.Error(t, err)
	require.Equal(t, core.KindUnknownTable, core.AsKind(err))
}

func TestTranslateUnsupportedTargetDialect(t *testing.T) {
	_, err := Translate("SELECT 1", TranslateOptions{From: MySQL, To: Dialect(99)})
	require.Error(t, err)
}
