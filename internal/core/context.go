package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Context threads a stdlib context.Context (the cancellation token every
// operator checks per spec.md §4.5), the active Session, the query id, and
// a per-query structured logger through every layer of the engine. Every
// log line and every connector request is expected to come from a
// *Context's Logger, which already carries the query id field (spec.md §3's
// invariant: "a query id is attached to every log line").
type Context struct {
	context.Context
	Session *Session
	QueryID string
	Logger  *logrus.Entry
}

// NewContext builds a *Context for a query, deriving Logger from base with
// the query id (and, if present, the session id/user) attached as fields --
// the MDC-style pattern lifted from the teacher's auth/audit.go
// (logrus.Fields keyed by connection_id/user/query).
func NewContext(parent context.Context, queryID string, session *Session, base *logrus.Logger) *Context {
	if base == nil {
		base = logrus.StandardLogger()
	}
	fields := logrus.Fields{"query_id": queryID}
	if session != nil {
		fields["connection_id"] = session.ID
		if session.Client.User != "" {
			fields["user"] = session.Client.User
		}
	}
	return &Context{
		Context: parent,
		Session: session,
		QueryID: queryID,
		Logger:  base.WithFields(fields),
	}
}

// Cancelled reports whether the context's cancellation token has fired.
func (c *Context) Cancelled() bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

// WithCancel returns a derived *Context whose cancellation token can be
// fired independently of its parent, along with the cancel function the
// query processor invokes on a user Cancel request or a timeout firing
// (spec.md §4.7, §5: "a timeout fires a cancellation").
func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent.Context)
	child := &Context{
		Context: ctx,
		Session: parent.Session,
		QueryID: parent.QueryID,
		Logger:  parent.Logger,
	}
	return child, cancel
}
