package processor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/intellisql/intellisql/internal/core"
)

// State is a query's position in the one-way state machine of spec §4.7:
// pending -> running -> {completed, truncated, failed, cancelled}. No
// terminal state ever transitions again.
type State int32

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateTruncated
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTruncated:
		return "truncated"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool { return s >= StateCompleted }

// Query is one in-flight or completed statement: its id, the session that
// issued it, its current state, and the timing/row-count facts every
// terminal state carries (spec §4.7).
type Query struct {
	ID      string
	SQL     string
	Session *core.Session

	startedAt time.Time
	state     atomic.Int32

	ParseDuration    atomic.Int64 // time.Duration
	OptimiseDuration atomic.Int64
	ExecuteDuration  atomic.Int64

	RowsReturned atomic.Int64
	Warning      atomic.Value // string
	cancel       func()
}

func newQuery(id, sql string, session *core.Session, cancel func()) *Query {
	q := &Query{ID: id, SQL: sql, Session: session, startedAt: time.Now(), cancel: cancel}
	q.state.Store(int32(StatePending))
	q.Warning.Store("")
	return q
}

// State reports the query's current state without locking.
func (q *Query) State() State { return State(q.state.Load()) }

// setState enforces the one-way transition: once a query reaches a
// terminal state no further call changes it.
func (q *Query) setState(s State) {
	for {
		cur := State(q.state.Load())
		if cur.terminal() {
			return
		}
		if q.state.CompareAndSwap(int32(cur), int32(s)) {
			return
		}
	}
}

// Cancel requests prompt termination of the query (spec §5's "cancellation
// is cooperative but prompt"); it fires the cancellation token the executor
// checks on every pull and propagates to in-flight connector scans.
func (q *Query) Cancel() {
	if q.cancel != nil {
		q.cancel()
	}
}

// WarningText returns the truncation warning attached to this query, if any.
func (q *Query) WarningText() string {
	if s, ok := q.Warning.Load().(string); ok {
		return s
	}
	return ""
}

// Elapsed is the wall-clock time since the query was accepted.
func (q *Query) Elapsed() time.Duration { return time.Since(q.startedAt) }

// ProcessList is the registry of queries a Processor currently knows about,
// the domain equivalent of SHOW PROCESSLIST: a query is registered when
// accepted and removed when it is released (its result set closed, or its
// execution failed before a result set was returned).
type ProcessList struct {
	mu      sync.RWMutex
	queries map[string]*Query
}

func newProcessList() *ProcessList {
	return &ProcessList{queries: map[string]*Query{}}
}

func (l *ProcessList) add(q *Query) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries[q.ID] = q
}

// Remove evicts a query from the list, typically called once its result
// set has been fully consumed and closed.
func (l *ProcessList) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.queries, id)
}

// Lookup finds a query by id, for an explicit Cancel(id) request.
func (l *ProcessList) Lookup(id string) (*Query, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	q, ok := l.queries[id]
	return q, ok
}

// Snapshot returns every query currently tracked, in no particular order.
func (l *ProcessList) Snapshot() []*Query {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Query, 0, len(l.queries))
	for _, q := range l.queries {
		out = append(out, q)
	}
	return out
}
