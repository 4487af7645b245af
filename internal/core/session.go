package core

// Client identifies the remote end of a connection, mirroring the teacher's
// driver-visible `ctx.Client()` shape (see driver/conn.go, auth/audit.go).
type Client struct {
	Address string
	User    string
}

// Session is per-connection state: which client is attached, a stable id,
// and the default source/schema used to resolve unqualified names.
type Session struct {
	ID            uint32
	Client        Client
	DefaultSource string
	DefaultSchema string
}

// NewSession creates a Session for a freshly accepted connection.
func NewSession(id uint32, client Client) *Session {
	return &Session{ID: id, Client: client}
}
