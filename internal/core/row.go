package core

import "github.com/intellisql/intellisql/internal/core/types"

// Column describes one column of a catalog Table or a LogicalTree node's
// output row type (spec.md §3).
type Column struct {
	Name      string
	Ordinal   int
	Kind      types.Kind
	Nullable  bool
	Precision int
	Scale     int
	// Source and Table record which catalog table this column was resolved
	// against, used for qualified-name resolution and pushdown projection.
	Source string
	Table  string
}

// Schema is the ordered output row type every LogicalTree/PhysicalTree node
// carries (spec.md §3: "every node carries its output row type").
type Schema []*Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// IndexOf returns the ordinal of the column with the given name, or -1.
// Matching is case-insensitive, matching standard SQL identifier folding.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if equalFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Row is an ordered set of values keyed by ordinal, matching the output row
// type of whichever operator produced it (spec.md §3).
type Row []types.Value

// RowIter is the three-method contract every physical operator implements
// (spec.md §4.5, §9: "a small operator interface of three methods plus a
// cancellation token; operator composition is a tree of owning parents, not
// a graph"). Open is idempotent-to-call-once: calling it twice without an
// intervening Close is a caller bug. Next returns (nil, io.EOF) at end of
// input. Close is safe to call multiple times and after any Next outcome,
// including an error, and must close every child exactly once.
type RowIter interface {
	Open(ctx *Context) error
	Next(ctx *Context) (Row, error)
	Close(ctx *Context) error
}
