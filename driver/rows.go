package driver

import (
	"database/sql/driver"
	"io"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/intellisql/intellisql/internal/processor"
)

// Rows iterates a ResultSet's frames one row at a time, the driver-visible
// side of the wire protocol's Fetch(statementId, offset, maxRows).
type Rows struct {
	rs      *processor.ResultSet
	buf     []core.Row
	pos     int
	done    bool
	columns []string
}

// Columns returns the result schema's column names.
func (r *Rows) Columns() []string {
	if r.columns == nil {
		r.columns = r.rs.Schema().Names()
	}
	return r.columns
}

// Close releases the underlying ResultSet, playing CloseStatement.
func (r *Rows) Close() error {
	return r.rs.Close()
}

// Next populates dest with the next row's values, returning io.EOF once
// the result set is exhausted.
func (r *Rows) Next(dest []driver.Value) error {
	for r.pos >= len(r.buf) {
		if r.done {
			return io.EOF
		}
		frame, err := r.rs.NextFrame()
		if err != nil {
			return err
		}
		r.buf = frame.Rows
		r.pos = 0
		r.done = frame.Done
	}
	row := r.buf[r.pos]
	r.pos++
	for i, v := range row {
		dest[i] = valueToDriver(v)
	}
	return nil
}

// valueToDriver converts a typed engine Value into one of the types
// database/sql/driver.Value accepts: int64, float64, bool, []byte, string,
// time.Time, or nil.
func valueToDriver(v types.Value) driver.Value {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case types.Decimal:
		return v.String()
	default:
		return v.Native
	}
}
