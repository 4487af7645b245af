package rowexec

import (
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/dialect"
	"github.com/intellisql/intellisql/internal/optimizer"
)

func buildSetOp(x *optimizer.PhysicalSetOp, router SourceRouter, budget *RowBudget) (core.RowIter, error) {
	left, err := build(x.Left, router, budget)
	if err != nil {
		return nil, err
	}
	right, err := build(x.Right, router, budget)
	if err != nil {
		return nil, err
	}
	return &setOpIter{left: left, right: right, kind: x.Kind, budget: budget}, nil
}

// setOpIter materialises the side(s) it needs to dedup or compare against on
// Open, then streams the combined result. UNION ALL is a simple
// concatenation and never buffers the left side.
type setOpIter struct {
	left, right core.RowIter
	kind        dialect.SetOpKind
	budget      *RowBudget

	rows []core.Row
	pos  int

	// UNION ALL streams left then right without buffering both sides.
	leftDone bool
}

func (s *setOpIter) Open(ctx *core.Context) error {
	if err := s.left.Open(ctx); err != nil {
		return err
	}
	if err := s.right.Open(ctx); err != nil {
		return err
	}
	if s.kind == dialect.UnionAll {
		return nil
	}
	return s.materialize(ctx)
}

func (s *setOpIter) materialize(ctx *core.Context) error {
	leftRows, err := drain(ctx, s.left, s.budget)
	if err != nil {
		return err
	}
	rightRows, err := drain(ctx, s.right, s.budget)
	if err != nil {
		return err
	}

	switch s.kind {
	case dialect.UnionDistinct:
		seen := map[string]bool{}
		for _, r := range leftRows {
			k := rowKey(r)
			if !seen[k] {
				seen[k] = true
				s.rows = append(s.rows, r)
			}
		}
		for _, r := range rightRows {
			k := rowKey(r)
			if !seen[k] {
				seen[k] = true
				s.rows = append(s.rows, r)
			}
		}
	case dialect.Intersect:
		rightSet := map[string]bool{}
		for _, r := range rightRows {
			rightSet[rowKey(r)] = true
		}
		seen := map[string]bool{}
		for _, r := range leftRows {
			k := rowKey(r)
			if rightSet[k] && !seen[k] {
				seen[k] = true
				s.rows = append(s.rows, r)
			}
		}
	case dialect.Except:
		rightSet := map[string]bool{}
		for _, r := range rightRows {
			rightSet[rowKey(r)] = true
		}
		seen := map[string]bool{}
		for _, r := range leftRows {
			k := rowKey(r)
			if !rightSet[k] && !seen[k] {
				seen[k] = true
				s.rows = append(s.rows, r)
			}
		}
	}
	return nil
}

func drain(ctx *core.Context, it core.RowIter, budget *RowBudget) ([]core.Row, error) {
	var out []core.Row
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		row, err := it.Next(ctx)
		if err == EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if budget != nil && !budget.Consume(1) {
			return out, nil
		}
		out = append(out, row)
	}
}

func (s *setOpIter) Next(ctx *core.Context) (core.Row, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if s.kind == dialect.UnionAll {
		if !s.leftDone {
			row, err := s.left.Next(ctx)
			if err == nil {
				return row, nil
			}
			if err != EOF {
				return nil, err
			}
			s.leftDone = true
		}
		return s.right.Next(ctx)
	}
	if s.pos >= len(s.rows) {
		return nil, EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *setOpIter) Close(ctx *core.Context) error {
	err1 := s.left.Close(ctx)
	err2 := s.right.Close(ctx)
	if err1 != nil {
		return err1
	}
	return err2
}
