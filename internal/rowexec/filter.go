package rowexec

import (
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/dialect"
)

// filterIter re-evaluates a residual predicate per input row, passing
// through only rows for which it evaluates true (NULL and false are both
// rejected, matching SQL WHERE semantics).
type filterIter struct {
	input     core.RowIter
	predicate dialect.Expr
	schema    core.Schema
}

func (f *filterIter) Open(ctx *core.Context) error { return f.input.Open(ctx) }

func (f *filterIter) Next(ctx *core.Context) (core.Row, error) {
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		row, err := f.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		v, err := evalExpr(ctx, f.predicate, row, f.schema)
		if err != nil {
			return nil, err
		}
		if !v.Null && truthy(v) {
			return row, nil
		}
	}
}

func (f *filterIter) Close(ctx *core.Context) error { return f.input.Close(ctx) }
