package processor

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/rowexec"
)

// ResultSet streams a running query's output one frame at a time (spec
// §4.7/§6's Fetch), pulling fetchSize rows per call from the root
// rowexec.RowIter. Pulls are expected from a single caller at a time, the
// same single-threaded cooperative model the executor itself uses.
type ResultSet struct {
	proc      *Processor
	query     *Query
	qctx      *core.Context
	cancel    context.CancelFunc
	it        core.RowIter
	schema    core.Schema
	budget    *rowexec.RowBudget
	fetchSize int
	execStart time.Time

	offset int64
	closed atomic.Bool
}

// Schema returns the result's column schema.
func (r *ResultSet) Schema() core.Schema { return r.schema }

// ID returns the query id this result set belongs to.
func (r *ResultSet) ID() string { return r.query.ID }

// NextFrame pulls the next batch of up to fetchSize rows. The final frame
// has Done set, at which point the query has already reached its terminal
// state and every resource it held has been released.
func (r *ResultSet) NextFrame() (*core.Frame, error) {
	if r.closed.Load() {
		return nil, core.NewErrorf(core.KindInternalError, "result set already closed").WithQueryID(r.query.ID)
	}

	rows := make([]core.Row, 0, r.fetchSize)
	for len(rows) < r.fetchSize {
		row, err := r.it.Next(r.qctx)
		if err == io.EOF {
			frame := &core.Frame{Offset: r.offset, Done: true, Rows: rows, Schema: r.schema}
			r.offset += int64(len(rows))
			r.finish(nil)
			frame.Warning = r.query.WarningText()
			_ = r.closeInternal()
			return frame, nil
		}
		if err != nil {
			err = r.recategorize(err)
			r.finish(err)
			_ = r.closeInternal()
			return nil, err
		}
		rows = append(rows, row)
		r.query.RowsReturned.Add(1)
	}

	frame := &core.Frame{Offset: r.offset, Done: false, Rows: rows, Schema: r.schema}
	r.offset += int64(len(rows))
	return frame, nil
}

// Cancel requests prompt cancellation of the underlying query.
func (r *ResultSet) Cancel() { r.query.Cancel() }

// Close releases the result set's resources; safe to call more than once
// and automatically invoked once NextFrame returns a done frame or an
// error.
func (r *ResultSet) Close() error { return r.closeInternal() }

func (r *ResultSet) closeInternal() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := r.it.Close(r.qctx)
	r.cancel()
	r.proc.release(r.query)
	return err
}

// recategorize turns a Cancelled error (or a raw context.DeadlineExceeded
// from a source iterator) produced by a timed-out context into
// QueryTimeout, the kind spec §7 reserves for processor-enforced timeouts
// rather than an explicit caller Cancel.
func (r *ResultSet) recategorize(err error) error {
	timedOut := core.AsKind(err) == core.KindCancelled || errors.Is(err, context.DeadlineExceeded)
	if timedOut && r.qctx.Err() == context.DeadlineExceeded {
		return core.Wrapf(core.KindQueryTimeout, err, "query %s exceeded its timeout", r.query.ID).WithQueryID(r.query.ID)
	}
	return err
}

func (r *ResultSet) finish(err error) {
	q := r.query
	q.ExecuteDuration.Store(int64(time.Since(r.execStart)))
	if err != nil {
		if core.AsKind(err) == core.KindCancelled {
			q.setState(StateCancelled)
		} else {
			q.setState(StateFailed)
		}
		return
	}
	if r.budget.Truncated() {
		q.Warning.Store(r.budget.Warning())
		q.setState(StateTruncated)
	} else {
		q.setState(StateCompleted)
	}
}
