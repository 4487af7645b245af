// Package connector implements the per-source-kind capability adapters of
// spec.md §4.3 (C2): pooled connections, schema discovery, pushdown-aware
// scanning, health probing, and cancellation.
//
// Pooling shape (construct -> ping -> probe version) is grounded on
// DBAShand-cdc-sink-redshift's internal/util/stdpool package.
package connector

import (
	"context"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
)

// Pushdown declares which relational operators the optimiser chose to
// delegate to a connector's scan (spec.md §4.3). A connector must honour
// every element it accepts and return anything it can't express in
// Unpushed, rather than silently dropping it.
type Pushdown struct {
	Filter Predicate
	// Projection, when non-empty, is the exact, ordered list of columns the
	// scan must return: a Scan's row values are expected in this order, and
	// the optimiser's output schema for the scan is built from this same
	// order, not the table's declared column order.
	Projection []string
	Limit      int // 0 means unlimited
	SortBy     []SortKey
	Aggregate  *AggregatePushdown

	// Unpushed carries the pieces of the pushdown this connector could not
	// express; the executor applies these residually.
	Unpushed Residual
}

// Predicate is a connector-agnostic representation of a pushed filter
// expression; connectors render it into their own query language or report
// it back as unpushed.
type Predicate struct {
	Column   string
	Operator string // "=", "!=", "<", "<=", ">", ">=", "LIKE", "IN"
	Value    interface{}
	Values   []interface{} // for IN
	And      []Predicate
	Or       []Predicate
}

// Empty reports whether the predicate carries no constraint.
func (p Predicate) Empty() bool {
	return p.Column == "" && len(p.And) == 0 && len(p.Or) == 0
}

// SortKey is one ORDER BY element pushed toward a scan.
type SortKey struct {
	Column     string
	Descending bool
}

// AggregatePushdown describes a group-by/aggregate the optimiser chose to
// push to the source (spec.md §4.4's "aggregate split" rule).
type AggregatePushdown struct {
	GroupBy []string
	Aggs    []AggExpr
}

// AggExpr is one aggregate expression, e.g. SUM(amount).
type AggExpr struct {
	Func   string // COUNT, SUM, AVG, MIN, MAX
	Column string
	Alias  string
}

// Residual records which pushdown elements a connector could not honour.
type Residual struct {
	Filter     bool
	Projection bool
	Limit      bool
	Sort       bool
	Aggregate  bool
}

// Iterator is a lazy, forward-only stream of rows returned by Scan.
type Iterator interface {
	Next(ctx context.Context) (core.Row, error)
	Close() error
}

// Handle identifies an in-flight scan for Cancel.
type Handle interface{}

// Pool is an opaque, connector-specific connection pool handle.
type Pool interface {
	// Close drains and releases every connection (spec.md §4.3 close).
	Close() error
}

// DiscoveredSchema is the result of a one-shot schema discovery call.
type DiscoveredSchema struct {
	Schemas []string
	Tables  []DiscoveredTable
}

// DiscoveredTable is one table/index found during discovery.
type DiscoveredTable struct {
	Schema  string
	Name    string
	Columns core.Schema
}

// Connector is the capability implementation for one source kind (spec.md
// §4.3). Exactly one Connector instance serves all pools of its kind; each
// Source gets its own Pool via Open.
type Connector interface {
	// Open builds a connection pool sized by the source's pool
	// configuration.
	Open(ctx context.Context, cfg PoolConfig) (Pool, error)

	// DiscoverSchema performs one-shot schema discovery, called at startup
	// or on an explicit refresh.
	DiscoverSchema(ctx context.Context, pool Pool) (*DiscoveredSchema, error)

	// Scan opens a lazy, forward-only iterator honouring pushdown.
	Scan(ctx context.Context, pool Pool, schema, table string, pushdown Pushdown) (Iterator, Handle, error)

	// HealthProbe performs a cheap, timeout-bounded liveness check.
	HealthProbe(ctx context.Context, pool Pool, timeout int) error

	// Cancel stops an in-flight scan and releases server-side resources.
	Cancel(handle Handle) error
}

// PoolConfig is the pool-sizing and timeout configuration a Connector.Open
// call receives, taken directly from catalog.ConnectionConfig's fields so
// connectors don't import the catalog package.
type PoolConfig struct {
	URL                     string
	Username                string
	Password                string
	MaximumPoolSize         int
	MinimumIdle             int
	ConnectionTimeoutMillis int
	IdleTimeoutMillis       int
	MaxLifetimeMillis       int
}

// TypeMapping maps one source-native type name onto IntelliSql's closed
// logical type set (spec.md §4.3). An unmapped name must fail discovery
// with TypeNotSupported rather than being silently coerced.
type TypeMapping map[string]types.Kind

// MapType resolves a source-native type name, returning TypeNotSupported if
// unmapped.
func (m TypeMapping) MapType(native string) (types.Kind, error) {
	if k, ok := m[native]; ok {
		return k, nil
	}
	return types.Unknown, core.NewErrorf(core.KindTypeNotSupported, "unmapped source type %q", native)
}
