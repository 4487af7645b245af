package processor

import (
	"github.com/sirupsen/logrus"
)

// queryLogFields builds the MDC-style field set attached to every log line
// for q, adapted from the teacher's auth/audit.go auditInfo helper (which
// keyed authentication/authorization/query audit lines off
// ctx.Client().User/Address/Session.ID()): the same shape, now keyed off a
// processor Query instead of a MySQL-auth session.
func queryLogFields(q *Query) logrus.Fields {
	fields := logrus.Fields{
		"query_id": q.ID,
		"state":    q.State().String(),
	}
	if q.Session != nil {
		fields["connection_id"] = q.Session.ID
		if q.Session.Client.User != "" {
			fields["user"] = q.Session.Client.User
		}
		if q.Session.Client.Address != "" {
			fields["address"] = q.Session.Client.Address
		}
	}
	return fields
}
