package connector

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
)

// sqlPool wraps a stdlib *sql.DB as a connector.Pool. database/sql's own
// connection pool (SetMaxOpenConns/SetMaxIdleConns/SetConnMaxLifetime) is
// exactly the pooling primitive spec.md §4.3 asks for, the same way the
// teacher pack's stdpool package just configures a *sql.DB rather than
// layering a third-party pool on top of it (see DESIGN.md).
type sqlPool struct {
	db      *stdsql.DB
	dialect string // "mysql" or "postgres", selects identifier quoting
}

func (p *sqlPool) Close() error { return p.db.Close() }

func openSQLPool(ctx context.Context, driverName, dsn, dialect string, cfg PoolConfig) (Pool, error) {
	db, err := stdsql.Open(driverName, dsn)
	if err != nil {
		return nil, core.Wrapf(core.KindConnectTimeout, err, "opening %s pool", driverName)
	}

	if cfg.MaximumPoolSize > 0 {
		db.SetMaxOpenConns(cfg.MaximumPoolSize)
	}
	if cfg.MinimumIdle > 0 {
		db.SetMaxIdleConns(cfg.MinimumIdle)
	}
	if cfg.MaxLifetimeMillis > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.MaxLifetimeMillis) * time.Millisecond)
	}
	if cfg.IdleTimeoutMillis > 0 {
		db.SetConnMaxIdleTime(time.Duration(cfg.IdleTimeoutMillis) * time.Millisecond)
	}

	pingCtx := ctx
	var cancel context.CancelFunc
	if cfg.ConnectionTimeoutMillis > 0 {
		pingCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.ConnectionTimeoutMillis)*time.Millisecond)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, core.Wrapf(core.KindConnectTimeout, err, "pinging %s pool", driverName)
	}

	return &sqlPool{db: db, dialect: dialect}, nil
}

func contextWithTimeoutSeconds(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

func quoteIdent(dialect, name string) string {
	if dialect == "postgres" {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// buildSelect renders a SELECT statement honouring whatever of the pushdown
// this source kind can express, recording anything it can't into Unpushed
// (spec.md §4.3: "must not silently drop the unsupported ones").
func buildSelect(dialect, schema, table string, pushdown *Pushdown) (string, []interface{}) {
	var cols string
	if len(pushdown.Projection) > 0 {
		quoted := make([]string, len(pushdown.Projection))
		for i, c := range pushdown.Projection {
			quoted[i] = quoteIdent(dialect, c)
		}
		cols = strings.Join(quoted, ", ")
	} else {
		cols = "*"
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s.%s", cols, quoteIdent(dialect, schema), quoteIdent(dialect, table))

	var args []interface{}
	if !pushdown.Filter.Empty() {
		where, whereArgs, ok := renderPredicate(dialect, pushdown.Filter)
		if ok {
			stmt += " WHERE " + where
			args = whereArgs
		} else {
			pushdown.Unpushed.Filter = true
		}
	}

	if len(pushdown.SortBy) > 0 {
		parts := make([]string, len(pushdown.SortBy))
		for i, k := range pushdown.SortBy {
			dir := "ASC"
			if k.Descending {
				dir = "DESC"
			}
			parts[i] = quoteIdent(dialect, k.Column) + " " + dir
		}
		stmt += " ORDER BY " + strings.Join(parts, ", ")
	}

	if pushdown.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", pushdown.Limit)
	}

	if pushdown.Aggregate != nil {
		// Aggregate pushdown needs a structurally different SELECT; the
		// simple per-scan builder here can't express it, so it's reported
		// residual and the executor's Aggregate operator applies it instead.
		pushdown.Unpushed.Aggregate = true
	}

	return stmt, args
}

func renderPredicate(dialect string, p Predicate) (string, []interface{}, bool) {
	if len(p.And) > 0 {
		var parts []string
		var args []interface{}
		for _, sub := range p.And {
			s, a, ok := renderPredicate(dialect, sub)
			if !ok {
				return "", nil, false
			}
			parts = append(parts, "("+s+")")
			args = append(args, a...)
		}
		return strings.Join(parts, " AND "), args, true
	}
	if len(p.Or) > 0 {
		var parts []string
		var args []interface{}
		for _, sub := range p.Or {
			s, a, ok := renderPredicate(dialect, sub)
			if !ok {
				return "", nil, false
			}
			parts = append(parts, "("+s+")")
			args = append(args, a...)
		}
		return strings.Join(parts, " OR "), args, true
	}

	switch p.Operator {
	case "=", "!=", "<", "<=", ">", ">=":
		return fmt.Sprintf("%s %s ?", quoteIdent(dialect, p.Column), p.Operator), []interface{}{p.Value}, true
	case "LIKE":
		return fmt.Sprintf("%s LIKE ?", quoteIdent(dialect, p.Column)), []interface{}{p.Value}, true
	case "IN":
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(p.Values)), ",")
		return fmt.Sprintf("%s IN (%s)", quoteIdent(dialect, p.Column), placeholders), p.Values, true
	default:
		return "", nil, false
	}
}

type sqlIterator struct {
	rows    *stdsql.Rows
	kinds   []types.Kind
	scanBuf []interface{}
}

func newSQLIterator(rows *stdsql.Rows, kinds []types.Kind) *sqlIterator {
	buf := make([]interface{}, len(kinds))
	for i := range buf {
		var v interface{}
		buf[i] = &v
	}
	return &sqlIterator{rows: rows, kinds: kinds, scanBuf: buf}
}

func (it *sqlIterator) Next(ctx context.Context) (core.Row, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, core.Wrapf(core.KindInternalError, err, "scanning rows")
		}
		return nil, errEOF
	}
	if err := it.rows.Scan(it.scanBuf...); err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "scanning row")
	}
	row := make(core.Row, len(it.kinds))
	for i, k := range it.kinds {
		ptr := it.scanBuf[i].(*interface{})
		if *ptr == nil {
			row[i] = types.NullValue(k)
		} else {
			row[i] = types.NewValue(k, *ptr)
		}
	}
	return row, nil
}

func (it *sqlIterator) Close() error { return it.rows.Close() }
