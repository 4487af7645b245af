// Package driver exposes a Processor as a stdlib database/sql driver: the
// minimum wire surface spec.md §6 requires (Prepare/Execute/Fetch/Cancel/
// Close) without the binary MySQL-wire server that sits in front of it in
// a full deployment, which is out of scope. Layering (Driver -> Connector
// -> Conn -> Stmt -> Rows) and the connection/process id bookkeeping are
// adapted from the teacher's own driver/ package.
package driver

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/processor"
)

// Driver exposes a Processor as a stdlib SQL driver.
type Driver struct {
	proc *processor.Processor
	mgr  *SimpleProcessManager
}

// New returns a driver fronting proc.
func New(proc *processor.Processor) *Driver {
	return &Driver{proc: proc, mgr: &SimpleProcessManager{}}
}

// Open returns a new connection to the database.
func (d *Driver) Open(name string) (driver.Conn, error) {
	conn, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return conn.Connect(context.Background())
}

// OpenConnector returns a reusable Connector for dsn. The dsn's host
// portion is recorded as the session's default source, its path as the
// default schema, matching spec.md §6's URL shape (scheme/host/db).
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	defaultSource, defaultSchema, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return &Connector{driver: d, defaultSource: defaultSource, defaultSchema: defaultSchema}, nil
}

// Connector represents a driver in a fixed configuration and can create any
// number of equivalent Conns for use by multiple goroutines.
type Connector struct {
	driver        *Driver
	defaultSource string
	defaultSchema string
}

// Driver returns the connector's parent driver.
func (c *Connector) Driver() driver.Driver { return c.driver }

// Connect returns a new connection, each with its own connection id and
// Session (spec.md §6's CloseConnection boundary).
func (c *Connector) Connect(context.Context) (driver.Conn, error) {
	id := c.driver.mgr.NextConnectionID()
	session := core.NewSession(id, core.Client{Address: fmt.Sprintf("#%d", id)})
	session.DefaultSource = c.defaultSource
	session.DefaultSchema = c.defaultSchema
	return &Conn{proc: c.driver.proc, session: session}, nil
}
