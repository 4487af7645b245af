package core

import (
	"sync/atomic"
	"time"
)

// State is one position in the one-way query state machine of spec.md §4.7:
//
//	pending → running → completed
//	                 ↘ truncated
//	                 ↘ failed
//	                 ↘ cancelled
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

// Timings records the duration of each pipeline stage, carried by every
// terminal Query per spec.md §4.7.
type Timings struct {
	Parse    time.Duration
	Optimize time.Duration
	Execute  time.Duration
}

// Query is the per-request entity the processor (C7) owns end to end:
// id, text, state, timings, row count, and last error (spec.md §3).
type Query struct {
	ID       string
	SQL      string
	state    atomic.Int32
	Timings  Timings
	RowCount atomic.Int64
	lastErr  atomic.Value // holds errBox
}

// errBox gives atomic.Value a single consistent concrete type to store,
// since atomic.Value panics if callers Store differing concrete types.
type errBox struct{ err error }

// NewQuery starts a Query in the pending state.
func NewQuery(id, sql string) *Query {
	q := &Query{ID: id, SQL: sql}
	q.state.Store(int32(StatePending))
	return q
}

// State returns the query's current state.
func (q *Query) State() State { return State(q.state.Load()) }

// transitions enumerates the only state moves the one-way machine permits.
var transitions = map[State]map[State]bool{
	StatePending: {StateRunning: true, StateCancelled: true, StateFailed: true},
	StateRunning: {
		StateCompleted: true,
		StateTruncated: true,
		StateFailed:    true,
		StateCancelled: true,
	},
}

// Transition moves the query to a new state, returning false if the move
// isn't a legal one-way transition (e.g. out of a terminal state).
func (q *Query) Transition(to State) bool {
	from := q.State()
	if !transitions[from][to] {
		return false
	}
	return q.state.CompareAndSwap(int32(from), int32(to))
}

// SetError records the query's last error. Passwords never appear in any
// error surfaced here (spec.md §7) because connectors never echo connection
// secrets back into error messages (see internal/connector).
func (q *Query) SetError(err error) { q.lastErr.Store(errBox{err}) }

// LastError returns the last error recorded, if any.
func (q *Query) LastError() error {
	if v := q.lastErr.Load(); v != nil {
		return v.(errBox).err
	}
	return nil
}

// IsTerminal reports whether the query has reached any terminal state.
func (q *Query) IsTerminal() bool {
	switch q.State() {
	case StateCompleted, StateTruncated, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}
