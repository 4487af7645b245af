package dialect

import (
	"fmt"
	"sync"
)

// DialectConverter is the small capability interface spec.md §9 prescribes
// in place of per-dialect class hierarchies: five methods covering exactly
// the places dialect SQL text actually differs (identifier quoting,
// pagination clause, the COALESCE/NOW function aliases, and CAST
// rendering). Everything else in Unparse is dialect-agnostic.
type DialectConverter interface {
	Name() Dialect

	// QuoteIdentifier renders one identifier with this dialect's delimiter.
	QuoteIdentifier(name string) string

	// UnparsePagination renders the final SQL text for a statement whose
	// body (everything through ORDER BY) has already been rendered as
	// baseSQL, applying this dialect's pagination idiom. MySQL/PostgreSQL/
	// Hive append a trailing clause; SQL Server rewrites the SELECT list
	// (TOP n) or appends OFFSET/FETCH; Oracle wraps baseSQL in a ROWNUM
	// subquery — which is why this takes the whole statement rather than
	// returning an isolated clause.
	UnparsePagination(baseSQL string, hasLimit bool, limit int64, hasOffset bool, offset int64) string

	// CoalesceFunctionName returns this dialect's spelling of COALESCE/NVL.
	CoalesceFunctionName() string

	// NowFunctionName returns this dialect's spelling of the current-
	// timestamp function.
	NowFunctionName() string

	// UnparseCast renders an explicit CAST(operand AS typeName) expression.
	UnparseCast(operand, typeName string) string
}

var (
	registryMu sync.RWMutex
	registry   = map[Dialect]func() DialectConverter{}
)

// RegisterDialectConverter installs the constructor for one dialect. Called
// from each profile file's init(), mirroring Pieczasz-smf's
// RegisterDialect/GetDialect registry.
func RegisterDialectConverter(d Dialect, ctor func() DialectConverter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d] = ctor
}

// GetDialectConverter returns the DialectConverter for d, or an error if no
// profile has registered for it.
func GetDialectConverter(d Dialect) (DialectConverter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("dialect %q is not registered", d)
	}
	return ctor(), nil
}
