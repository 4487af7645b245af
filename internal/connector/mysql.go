package connector

import (
	"context"

	"github.com/go-sql-driver/mysql"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
)

// MySQLConnector is the relational connector for MySQL-family sources
// (spec.md §4.3, dialect "mysql"). Pool construction follows the
// construct-then-ping-then-probe shape of DBAShand-cdc-sink-redshift's
// stdpool.OpenMySQLAsTarget, adapted to this package's Connector interface
// instead of a bespoke target-writer API.
type MySQLConnector struct {
	Types TypeMapping
}

// NewMySQLConnector returns a MySQLConnector using the standard relational
// type mapping.
func NewMySQLConnector() *MySQLConnector {
	return &MySQLConnector{Types: RelationalTypeMapping}
}

func (c *MySQLConnector) dsn(cfg PoolConfig) (string, error) {
	mcfg := mysql.NewConfig()
	mcfg.Net = "tcp"
	mcfg.Addr = cfg.URL
	mcfg.User = cfg.Username
	mcfg.Passwd = cfg.Password
	mcfg.ParseTime = true
	return mcfg.FormatDSN(), nil
}

// Open builds a pooled *sql.DB and verifies connectivity with a ping, the
// same "fail fast at construction" contract spec.md §4.3 requires of pool
// setup.
func (c *MySQLConnector) Open(ctx context.Context, cfg PoolConfig) (Pool, error) {
	dsn, err := c.dsn(cfg)
	if err != nil {
		return nil, err
	}
	return openSQLPool(ctx, "mysql", dsn, "mysql", cfg)
}

// DiscoverSchema queries information_schema for every table and column
// visible to the configured user, the portable way to introspect a MySQL
// server without a server-specific admin API.
func (c *MySQLConnector) DiscoverSchema(ctx context.Context, pool Pool) (*DiscoveredSchema, error) {
	p := pool.(*sqlPool)

	rows, err := p.db.QueryContext(ctx, `
		SELECT table_schema, table_name, column_name, column_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
		ORDER BY table_schema, table_name, ordinal_position`)
	if err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "discovering mysql schema")
	}
	defer rows.Close()

	schemaSet := map[string]bool{}
	tables := map[string]*DiscoveredTable{} // keyed by "schema.table"
	var order []string

	for rows.Next() {
		var tableSchema, tableName, columnName, columnType, isNullable string
		var ordinal int
		if err := rows.Scan(&tableSchema, &tableName, &columnName, &columnType, &isNullable, &ordinal); err != nil {
			return nil, core.Wrapf(core.KindInternalError, err, "scanning information_schema row")
		}
		schemaSet[tableSchema] = true

		key := tableSchema + "." + tableName
		t, ok := tables[key]
		if !ok {
			t = &DiscoveredTable{Schema: tableSchema, Name: tableName}
			tables[key] = t
			order = append(order, key)
		}

		kind, err := c.Types.MapType(normalizeSQLType(columnType))
		if err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, &core.Column{
			Name:     columnName,
			Ordinal:  ordinal - 1,
			Kind:     kind,
			Nullable: isNullable == "YES",
			Source:   "mysql",
			Table:    tableName,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "iterating information_schema rows")
	}

	out := &DiscoveredSchema{}
	for s := range schemaSet {
		out.Schemas = append(out.Schemas, s)
	}
	for _, key := range order {
		out.Tables = append(out.Tables, *tables[key])
	}
	return out, nil
}

// Scan renders pushdown into a SELECT statement and streams results lazily.
func (c *MySQLConnector) Scan(ctx context.Context, pool Pool, schema, table string, pushdown Pushdown) (Iterator, Handle, error) {
	p := pool.(*sqlPool)
	stmt, args := buildSelect("mysql", schema, table, &pushdown)

	kinds, err := c.columnKinds(ctx, p, schema, table, pushdown.Projection)
	if err != nil {
		return nil, nil, err
	}

	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, nil, core.Wrapf(core.KindInternalError, err, "scanning %s.%s", schema, table)
	}
	return newSQLIterator(rows, kinds), nil, nil
}

func (c *MySQLConnector) columnKinds(ctx context.Context, p *sqlPool, schema, table string, projection []string) ([]types.Kind, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT column_name, column_type FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "resolving column kinds for %s.%s", schema, table)
	}
	defer rows.Close()

	byName := map[string]types.Kind{}
	var inOrder []string
	for rows.Next() {
		var name, colType string
		if err := rows.Scan(&name, &colType); err != nil {
			return nil, core.Wrapf(core.KindInternalError, err, "scanning column kind row")
		}
		kind, err := c.Types.MapType(normalizeSQLType(colType))
		if err != nil {
			return nil, err
		}
		byName[name] = kind
		inOrder = append(inOrder, name)
	}

	names := projection
	if len(names) == 0 {
		names = inOrder
	}
	kinds := make([]types.Kind, len(names))
	for i, n := range names {
		kinds[i] = byName[n]
	}
	return kinds, nil
}

func (c *MySQLConnector) HealthProbe(ctx context.Context, pool Pool, timeoutSeconds int) error {
	return relationalHealthProbe(ctx, pool, timeoutSeconds)
}

func (c *MySQLConnector) Cancel(handle Handle) error { return nil }

func relationalHealthProbe(ctx context.Context, pool Pool, timeoutSeconds int) error {
	p, ok := pool.(*sqlPool)
	if !ok || p == nil {
		return core.NewErrorf(core.KindConnectTimeout, "nil or wrong-kind pool")
	}
	probeCtx := ctx
	if timeoutSeconds > 0 {
		var cancel func()
		probeCtx, cancel = contextWithTimeoutSeconds(ctx, timeoutSeconds)
		defer cancel()
	}
	if err := p.db.PingContext(probeCtx); err != nil {
		return core.Wrapf(core.KindConnectTimeout, err, "health probe failed")
	}
	return nil
}

func normalizeSQLType(raw string) string {
	// column_type can carry parameters ("varchar(255)", "decimal(10,2)");
	// the mapping table keys on the bare type name.
	for i, r := range raw {
		if r == '(' || r == ' ' {
			return upperASCII(raw[:i])
		}
	}
	return upperASCII(raw)
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
