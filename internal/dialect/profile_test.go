package dialect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetDialectConverterAllRegistered(t *testing.T) {
	for _, d := range SupportedDialects() {
		conv, err := GetDialectConverter(d)
		require.NoError(t, err)
		require.Equal(t, d, conv.Name())
	}
}

func TestGetDialectConverterUnknown(t *testing.T) {
	_, err := GetDialectConverter(Dialect(-1))
	require.Error(t, err)
}

func TestParseDialectCaseInsensitive(t *testing.T) {
	d, ok := ParseDialect("PostgreSQL")
	require.True(t, ok)
	require.Equal(t, PostgreSQL, d)

	d, ok = ParseDialect("MYSQL")
	require.True(t, ok)
	require.Equal(t, MySQL, d)

	_, ok = ParseDialect("notadialect")
	require.False(t, ok)
}

func TestQuoteIdentifierEscaping(t *testing.T) {
	mysql, _ := GetDialectConverter(MySQL)
	require.Equal(t, "`a``b`", mysql.QuoteIdentifier("a`b"))

	pg, _ := GetDialectConverter(PostgreSQL)
	require.Equal(t, `"a""b"`, pg.QuoteIdentifier(`a"b`))

	sqlserver, _ := GetDialectConverter(SQLServer)
	require.Equal(t, "[a]]b]", sqlserver.QuoteIdentifier("a]b"))
}
