package driver

import (
	"context"
	"database/sql/driver"
	"fmt"
)

// Stmt is a prepared statement. The engine has no bind-parameter syntax
// (spec.md's grammar carries no placeholders), so any argument passed to
// Exec/Query is rejected rather than silently ignored.
type Stmt struct {
	conn  *Conn
	query string
}

// Close does nothing; statements hold no resources of their own.
func (s *Stmt) Close() error { return nil }

// NumInput reports that this engine accepts no bind parameters.
func (s *Stmt) NumInput() int { return 0 }

// Exec is unsupported: the engine is read-only federated query middleware
// with no DML in its grammar (spec.md §3's data model has no mutation
// operation).
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, fmt.Errorf("intellisql: statement execution (DML) is not supported, this engine is query-only")
}

// Query executes a query that returns rows, playing Execute(statementId,
// params, firstFrameMaxRows) from the wire protocol's message set.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("intellisql: bind parameters are not supported")
	}
	return s.query(context.Background())
}

// ExecContext is unsupported for the same reason as Exec.
func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return nil, fmt.Errorf("intellisql: statement execution (DML) is not supported, this engine is query-only")
}

// QueryContext executes a query that returns rows, honoring ctx
// cancellation as the wire protocol's Cancel(statementId) message.
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("intellisql: bind parameters are not supported")
	}
	return s.query(ctx)
}

func (s *Stmt) query(ctx context.Context) (driver.Rows, error) {
	rs, err := s.conn.proc.Execute(ctx, s.conn.session, s.query)
	if err != nil {
		return nil, err
	}
	return &Rows{rs: rs}, nil
}
