package dialect

import (
	"fmt"
	"strings"
)

type mysqlConverter struct{}

func init() {
	RegisterDialectConverter(MySQL, func() DialectConverter { return mysqlConverter{} })
}

func (mysqlConverter) Name() Dialect { return MySQL }

func (mysqlConverter) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlConverter) UnparsePagination(baseSQL string, hasLimit bool, limit int64, hasOffset bool, offset int64) string {
	if !hasLimit && !hasOffset {
		return baseSQL
	}
	if hasLimit && hasOffset {
		return fmt.Sprintf("%s LIMIT %d OFFSET %d", baseSQL, limit, offset)
	}
	if hasLimit {
		return fmt.Sprintf("%s LIMIT %d", baseSQL, limit)
	}
	// MySQL has no offset-without-limit clause; a very large limit stands
	// in for "all remaining rows".
	return fmt.Sprintf("%s LIMIT 18446744073709551615 OFFSET %d", baseSQL, offset)
}

func (mysqlConverter) CoalesceFunctionName() string { return "IFNULL" }

func (mysqlConverter) NowFunctionName() string { return "NOW" }

func (mysqlConverter) UnparseCast(operand, typeName string) string {
	return fmt.Sprintf("CAST(%s AS %s)", operand, typeName)
}
