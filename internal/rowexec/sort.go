package rowexec

import (
	"sort"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/dialect"
)

// sortIter materialises its entire input (bounded by budget) on Open, orders
// it by Keys, then streams the buffered rows back out.
type sortIter struct {
	input  core.RowIter
	keys   []dialect.SortKey
	schema core.Schema
	budget *RowBudget

	rows []core.Row
	pos  int
}

func newSortIter(input core.RowIter, keys []dialect.SortKey, schema core.Schema, budget *RowBudget) *sortIter {
	return &sortIter{input: input, keys: keys, schema: schema, budget: budget}
}

func (s *sortIter) Open(ctx *core.Context) error {
	if err := s.input.Open(ctx); err != nil {
		return err
	}
	for {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		row, err := s.input.Next(ctx)
		if err == EOF {
			break
		}
		if err != nil {
			return err
		}
		if s.budget != nil && !s.budget.Consume(1) {
			break
		}
		s.rows = append(s.rows, row)
	}

	var sortErr error
	sort.SliceStable(s.rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		less, err := s.less(ctx, s.rows[i], s.rows[j])
		if err != nil {
			sortErr = err
		}
		return less
	})
	return sortErr
}

func (s *sortIter) less(ctx *core.Context, a, b core.Row) (bool, error) {
	for _, k := range s.keys {
		va, err := evalExpr(ctx, k.Expr, a, s.schema)
		if err != nil {
			return false, err
		}
		vb, err := evalExpr(ctx, k.Expr, b, s.schema)
		if err != nil {
			return false, err
		}
		if va.Null && vb.Null {
			continue
		}
		if va.Null {
			return !k.Descending, nil
		}
		if vb.Null {
			return k.Descending, nil
		}
		cmp, err := compareValues(va, vb)
		if err != nil {
			return false, err
		}
		if cmp == 0 {
			continue
		}
		if k.Descending {
			return cmp > 0, nil
		}
		return cmp < 0, nil
	}
	return false, nil
}

func (s *sortIter) Next(ctx *core.Context) (core.Row, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if s.pos >= len(s.rows) {
		return nil, EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sortIter) Close(ctx *core.Context) error { return s.input.Close(ctx) }
