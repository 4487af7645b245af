package connector

import (
	"context"
	"fmt"
	"net/url"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"

	_ "github.com/lib/pq"
)

// PostgresConnector is the relational connector for PostgreSQL sources
// (spec.md §4.3, dialect "postgres"), sharing its pooling and pushdown
// rendering with MySQLConnector via sqlcommon.go and differing only in
// driver name, identifier quoting, and the catalog it introspects.
type PostgresConnector struct {
	Types TypeMapping
}

// NewPostgresConnector returns a PostgresConnector using the standard
// relational type mapping.
func NewPostgresConnector() *PostgresConnector {
	return &PostgresConnector{Types: RelationalTypeMapping}
}

func (c *PostgresConnector) dsn(cfg PoolConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.URL,
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *PostgresConnector) Open(ctx context.Context, cfg PoolConfig) (Pool, error) {
	return openSQLPool(ctx, "postgres", c.dsn(cfg), "postgres", cfg)
}

// DiscoverSchema queries information_schema, the same way MySQLConnector
// does, since Postgres exposes the same ANSI catalog views.
func (c *PostgresConnector) DiscoverSchema(ctx context.Context, pool Pool) (*DiscoveredSchema, error) {
	p := pool.(*sqlPool)

	rows, err := p.db.QueryContext(ctx, `
		SELECT table_schema, table_name, column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
		ORDER BY table_schema, table_name, ordinal_position`)
	if err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "discovering postgres schema")
	}
	defer rows.Close()

	schemaSet := map[string]bool{}
	tables := map[string]*DiscoveredTable{}
	var order []string

	for rows.Next() {
		var tableSchema, tableName, columnName, dataType, isNullable string
		var ordinal int
		if err := rows.Scan(&tableSchema, &tableName, &columnName, &dataType, &isNullable, &ordinal); err != nil {
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

		kind, err := c.Types.MapType(normalizeSQLType(dataType))
		if err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, &core.Column{
			Name:     columnName,
			Ordinal:  ordinal - 1,
			Kind:     kind,
			Nullable: isNullable == "YES",
			Source:   "postgres",
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

// Scan renders pushdown into a SELECT statement using $-style parameter
// placeholders, the form Postgres requires in place of MySQL's "?".
func (c *PostgresConnector) Scan(ctx context.Context, pool Pool, schema, table string, pushdown Pushdown) (Iterator, Handle, error) {
	p := pool.(*sqlPool)
	stmt, args := buildSelect("postgres", schema, table, &pushdown)
	stmt = questionToDollarPlaceholders(stmt)

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

func (c *PostgresConnector) columnKinds(ctx context.Context, p *sqlPool, schema, table string, projection []string) ([]types.Kind, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "resolving column kinds for %s.%s", schema, table)
	}
	defer rows.Close()

	byName := map[string]types.Kind{}
	var inOrder []string
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, core.Wrapf(core.KindInternalError, err, "scanning column kind row")
		}
		kind, err := c.Types.MapType(normalizeSQLType(dataType))
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

func (c *PostgresConnector) HealthProbe(ctx context.Context, pool Pool, timeoutSeconds int) error {
	return relationalHealthProbe(ctx, pool, timeoutSeconds)
}

func (c *PostgresConnector) Cancel(handle Handle) error { return nil }

// questionToDollarPlaceholders rewrites buildSelect's "?" placeholders into
// Postgres's positional "$1", "$2", ... form.
func questionToDollarPlaceholders(stmt string) string {
	out := make([]byte, 0, len(stmt)+8)
	n := 0
	for i := 0; i < len(stmt); i++ {
		if stmt[i] == '?' {
			n++
			out = append(out, []byte(fmt.Sprintf("$%d", n))...)
			continue
		}
		out = append(out, stmt[i])
	}
	return string(out)
}
