package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

type sqlServerConverter struct{}

func init() {
	RegisterDialectConverter(SQLServer, func() DialectConverter { return sqlServerConverter{} })
}

func (sqlServerConverter) Name() Dialect { return SQLServer }

func (sqlServerConverter) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

var selectPrefix = regexp.MustCompile(`(?i)^SELECT\s+(DISTINCT\s+)?`)

// UnparsePagination rewrites "SELECT ..." into "SELECT TOP n ..." for a
// plain limit with no offset, or appends the standard OFFSET/FETCH clause
// (which requires ORDER BY and is always used once an offset is present),
// per spec.md §4.1's dialect table.
func (sqlServerConverter) UnparsePagination(baseSQL string, hasLimit bool, limit int64, hasOffset bool, offset int64) string {
	if !hasLimit && !hasOffset {
		return baseSQL
	}
	if hasLimit && !hasOffset {
		return selectPrefix.ReplaceAllString(baseSQL, fmt.Sprintf("SELECT ${1}TOP %d ", limit))
	}
	out := baseSQL
	off := offset
	out = fmt.Sprintf("%s OFFSET %d ROWS", out, off)
	if hasLimit {
		out = fmt.Sprintf("%s FETCH NEXT %d ROWS ONLY", out, limit)
	}
	return out
}

func (sqlServerConverter) CoalesceFunctionName() string { return "ISNULL" }

func (sqlServerConverter) NowFunctionName() string { return "GETDATE" }

func (sqlServerConverter) UnparseCast(operand, typeName string) string {
	return fmt.Sprintf("CAST(%s AS %s)", operand, typeName)
}
