package dialect

import (
	"fmt"
	"strings"
)

type postgresConverter struct{}

func init() {
	RegisterDialectConverter(PostgreSQL, func() DialectConverter { return postgresConverter{} })
}

func (postgresConverter) Name() Dialect { return PostgreSQL }

func (postgresConverter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresConverter) UnparsePagination(baseSQL string, hasLimit bool, limit int64, hasOffset bool, offset int64) string {
	out := baseSQL
	if hasLimit {
		out = fmt.Sprintf("%s LIMIT %d", out, limit)
	}
	if hasOffset {
		out = fmt.Sprintf("%s OFFSET %d", out, offset)
	}
	return out
}

func (postgresConverter) CoalesceFunctionName() string { return "COALESCE" }

func (postgresConverter) NowFunctionName() string { return "CURRENT_TIMESTAMP" }

// UnparseCast renders PostgreSQL's "::" cast shorthand rather than the
// CAST(x AS t) form, matching spec.md §4.1's dialect table.
func (postgresConverter) UnparseCast(operand, typeName string) string {
	return fmt.Sprintf("%s::%s", operand, typeName)
}
