package core

// Frame is a contiguous batch of rows, the unit of transport between the
// executor and the caller across the wire boundary of spec.md §6
// (`{offset, done, rows[]}`).
type Frame struct {
	Offset  int64
	Done    bool
	Rows    []Row
	Schema  Schema
	// Warning is populated when the query producing this frame hit the
	// intermediate-result cap (spec.md §4.5): the query still succeeds, but
	// the frame metadata carries a human-readable explanation.
	Warning string
}
