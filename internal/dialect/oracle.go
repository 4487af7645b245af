package dialect

import (
	"fmt"
	"strings"
)

type oracleConverter struct{}

func init() {
	RegisterDialectConverter(Oracle, func() DialectConverter { return oracleConverter{} })
}

func (oracleConverter) Name() Dialect { return Oracle }

func (oracleConverter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// UnparsePagination wraps baseSQL in the classic pre-12c ROWNUM idiom, since
// Oracle has no native LIMIT/OFFSET clause: an outer query filters on
// ROWNUM after an inner query that numbers the rows, letting both a limit
// and an offset be expressed without assuming a 12c+ server.
func (oracleConverter) UnparsePagination(baseSQL string, hasLimit bool, limit int64, hasOffset bool, offset int64) string {
	if !hasLimit && !hasOffset {
		return baseSQL
	}

	inner := fmt.Sprintf("SELECT t.* FROM (%s) t", baseSQL)
	if hasLimit {
		hi := limit
		if hasOffset {
			hi = limit + offset
		}
		inner = fmt.Sprintf("SELECT t.* FROM (%s) t WHERE ROWNUM <= %d", baseSQL, hi)
	}

	numbered := fmt.Sprintf("SELECT q.*, ROWNUM rnum FROM (%s) q", inner)
	if !hasOffset {
		return inner
	}
	return fmt.Sprintf("SELECT * FROM (%s) WHERE rnum > %d", numbered, offset)
}

func (oracleConverter) CoalesceFunctionName() string { return "NVL" }

func (oracleConverter) NowFunctionName() string { return "SYSDATE" }

func (oracleConverter) UnparseCast(operand, typeName string) string {
	return fmt.Sprintf("CAST(%s AS %s)", operand, typeName)
}
