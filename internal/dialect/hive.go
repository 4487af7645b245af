package dialect

import (
	"fmt"
	"strings"
)

type hiveConverter struct{}

func init() {
	RegisterDialectConverter(Hive, func() DialectConverter { return hiveConverter{} })
}

func (hiveConverter) Name() Dialect { return Hive }

func (hiveConverter) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// UnparsePagination renders Hive's LIMIT-only pagination. Hive has no
// OFFSET clause: without a limit, baseSQL is returned unchanged and any
// offset is dropped; with a limit and an offset, it renders
// LIMIT limit+offset, so the first offset rows are not skipped.
func (hiveConverter) UnparsePagination(baseSQL string, hasLimit bool, limit int64, hasOffset bool, offset int64) string {
	if !hasLimit {
		return baseSQL
	}
	hi := limit
	if hasOffset {
		hi = limit + offset
	}
	return fmt.Sprintf("%s LIMIT %d", baseSQL, hi)
}

func (hiveConverter) CoalesceFunctionName() string { return "COALESCE" }

func (hiveConverter) NowFunctionName() string { return "CURRENT_TIMESTAMP" }

func (hiveConverter) UnparseCast(operand, typeName string) string {
	return fmt.Sprintf("CAST(%s AS %s)", operand, typeName)
}
