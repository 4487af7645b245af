package driver

import (
	"context"
	"database/sql/driver"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/dialect"
	"github.com/intellisql/intellisql/internal/processor"
)

// Conn is a connection to the engine, carrying the Session every query it
// issues resolves unqualified names against.
type Conn struct {
	proc    *processor.Processor
	session *core.Session
}

// Prepare validates a query's syntax eagerly and returns a statement,
// playing the role of the wire protocol's Prepare(sql, maxRows).
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	if _, err := dialect.NewParser(query).Parse(); err != nil {
		return nil, err
	}
	return &Stmt{conn: c, query: query}, nil
}

// Close does nothing; the engine holds no per-connection resources beyond
// the Session value itself.
func (c *Conn) Close() error { return nil }

// Begin returns a no-op transaction: the engine is read-only federated
// query middleware, there is nothing to commit or roll back.
func (c *Conn) Begin() (driver.Tx, error) {
	return noopTx{}, nil
}

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

var _ driver.ConnPrepareContext = (*Conn)(nil)

// PrepareContext is identical to Prepare; the engine does nothing with ctx
// until a statement actually executes.
func (c *Conn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	return c.Prepare(query)
}
