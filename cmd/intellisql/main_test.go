package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellisql/intellisql/internal/core"
)

func TestSplitStatementsTrimsAndDropsEmpty(t *testing.T) {
	out := splitStatements("SELECT 1;  ; SELECT 2 \n;\n")
	require.Equal(t, []string{"SELECT 1", "SELECT 2"}, out)
}

func TestSplitStatementsNoTrailingSemicolon(t *testing.T) {
	out := splitStatements("SELECT 1")
	require.Equal(t, []string{"SELECT 1"}, out)
}

func TestReportEngineErrorIncludesKindAndSQLState(t *testing.T) {
	err := core.NewErrorf(core.KindSyntaxError, "unexpected token")
	wrapped := reportEngineError(err)
	require.Contains(t, wrapped.Error(), string(core.KindSyntaxError))
	require.Contains(t, wrapped.Error(), core.KindSyntaxError.SQLState())
}
