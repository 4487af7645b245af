package rowexec

import (
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/intellisql/intellisql/internal/dialect"
	"github.com/intellisql/intellisql/internal/optimizer"
)

func buildJoin(x *optimizer.PhysicalJoin, router SourceRouter, budget *RowBudget) (core.RowIter, error) {
	left, err := build(x.Left, router, budget)
	if err != nil {
		return nil, err
	}
	right, err := build(x.Right, router, budget)
	if err != nil {
		return nil, err
	}
	leftSchema, rightSchema := x.Left.Schema(), x.Right.Schema()

	if x.Kind == dialect.CrossJoin {
		return newNestedLoopJoinIter(left, right, nil, x.Kind, leftSchema, rightSchema, budget), nil
	}

	leftKeys, rightKeys, residual, ok := extractEquiKeys(x.Condition, leftSchema, rightSchema)
	if ok && x.Algorithm == optimizer.HashJoinAlgorithm {
		return newHashJoinIter(left, right, leftKeys, rightKeys, residual, x.Kind, leftSchema, rightSchema, budget), nil
	}
	return newNestedLoopJoinIter(left, right, x.Condition, x.Kind, leftSchema, rightSchema, budget), nil
}

// splitAnd flattens a right-leaning chain of AND conjuncts into a flat list.
func splitAnd(e dialect.Expr) []dialect.Expr {
	if b, ok := e.(*dialect.BinaryExpr); ok && b.Op == "AND" {
		return append(splitAnd(b.Left), splitAnd(b.Right)...)
	}
	return []dialect.Expr{e}
}

// extractEquiKeys decomposes a join condition into equality pairs between
// columns of the two input schemas, usable as a hash join's key, plus
// whatever conjuncts don't fit that shape (evaluated residually against the
// concatenated row after a candidate match is found).
func extractEquiKeys(cond dialect.Expr, left, right core.Schema) (leftIdx, rightIdx []int, residual dialect.Expr, ok bool) {
	if cond == nil {
		return nil, nil, nil, false
	}
	var residuals []dialect.Expr
	for _, c := range splitAnd(cond) {
		b, isBin := c.(*dialect.BinaryExpr)
		if !isBin || b.Op != "=" {
			residuals = append(residuals, c)
			continue
		}
		lRef, lok := b.Left.(*dialect.ColumnRef)
		rRef, rok := b.Right.(*dialect.ColumnRef)
		if !lok || !rok {
			residuals = append(residuals, c)
			continue
		}
		if li, err := resolveColumn(left, lRef); err == nil {
			if ri, err := resolveColumn(right, rRef); err == nil {
				leftIdx = append(leftIdx, li)
				rightIdx = append(rightIdx, ri)
				continue
			}
		}
		if li, err := resolveColumn(left, rRef); err == nil {
			if ri, err := resolveColumn(right, lRef); err == nil {
				leftIdx = append(leftIdx, li)
				rightIdx = append(rightIdx, ri)
				continue
			}
		}
		residuals = append(residuals, c)
	}
	if len(leftIdx) == 0 {
		return nil, nil, nil, false
	}
	return leftIdx, rightIdx, andAll(residuals), true
}

func andAll(exprs []dialect.Expr) dialect.Expr {
	if len(exprs) == 0 {
		return nil
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = &dialect.BinaryExpr{Op: "AND", Left: out, Right: e}
	}
	return out
}

func concatRow(left, right core.Row) core.Row {
	out := make(core.Row, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

func nullRow(n int) core.Row {
	out := make(core.Row, n)
	for i := range out {
		out[i] = types.NullValue(types.Unknown)
	}
	return out
}

// keyOf renders the join key columns of a row into a comparable string,
// returning ok=false if any key column is NULL -- per NULL-key-never-matches
// semantics, such a row cannot participate in an equi-join on either side.
func keyOf(row core.Row, idx []int) (string, bool) {
	vals := make(core.Row, len(idx))
	for i, col := range idx {
		v := row[col]
		if v.Null {
			return "", false
		}
		vals[i] = v
	}
	return rowKey(vals), true
}

// --- hash join ---------------------------------------------------------

// hashJoinIter builds a hash table over the right input and probes it with
// the left, except for RIGHT joins, which build on the left and probe with
// the right; so the preserved side of a LEFT or RIGHT join is always the
// probe side. The choice depends only on the join kind, never on which
// input is smaller.
type hashJoinIter struct {
	left, right             core.RowIter
	leftKeys, rightKeys     []int
	residual                dialect.Expr
	kind                    dialect.JoinKind
	leftSchema, rightSchema core.Schema
	budget                  *RowBudget

	buildOnRight bool
	built        map[string][]core.Row
	matched      map[string]bool // build-side keys matched at least once (Full/outer bookkeeping)

	probeIter    core.RowIter
	probeKeys    []int
	pending      []core.Row
	pendingPos   int
	probeDone    bool
	leftoverDone bool
	leftover     []core.Row
	leftoverPos  int
}

func newHashJoinIter(left, right core.RowIter, leftKeys, rightKeys []int, residual dialect.Expr, kind dialect.JoinKind, leftSchema, rightSchema core.Schema, budget *RowBudget) *hashJoinIter {
	buildOnRight := true
	if kind == dialect.RightJoin {
		buildOnRight = false
	}
	return &hashJoinIter{
		left: left, right: right,
		leftKeys: leftKeys, rightKeys: rightKeys,
		residual: residual, kind: kind,
		leftSchema: leftSchema, rightSchema: rightSchema,
		budget:       budget,
		buildOnRight: buildOnRight,
	}
}

func (h *hashJoinIter) Open(ctx *core.Context) error {
	if err := h.left.Open(ctx); err != nil {
		return err
	}
	if err := h.right.Open(ctx); err != nil {
		return err
	}
	buildIter, buildKeys := h.right, h.rightKeys
	h.probeIter, h.probeKeys = h.left, h.leftKeys
	if !h.buildOnRight {
		buildIter, buildKeys = h.left, h.leftKeys
		h.probeIter, h.probeKeys = h.right, h.rightKeys
	}

	h.built = map[string][]core.Row{}
	h.matched = map[string]bool{}
	for {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		row, err := buildIter.Next(ctx)
		if err == EOF {
			break
		}
		if err != nil {
			return err
		}
		key, ok := keyOf(row, buildKeys)
		if !ok {
			continue
		}
		if h.budget != nil && !h.budget.Consume(1) {
			continue
		}
		h.built[key] = append(h.built[key], row)
	}
	return nil
}

func (h *hashJoinIter) Next(ctx *core.Context) (core.Row, error) {
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if h.pendingPos < len(h.pending) {
			row := h.pending[h.pendingPos]
			h.pendingPos++
			return row, nil
		}
		if h.leftoverDone && h.leftoverPos < len(h.leftover) {
			row := h.leftover[h.leftoverPos]
			h.leftoverPos++
			return row, nil
		}
		if !h.probeDone {
			probeRow, err := h.probeIter.Next(ctx)
			if err == EOF {
				h.probeDone = true
				if h.kind == dialect.FullJoin {
					h.collectUnmatchedBuildRows()
					h.leftoverDone = true
				}
				continue
			}
			if err != nil {
				return nil, err
			}
			h.pending, err = h.emitForProbeRow(ctx, probeRow)
			if err != nil {
				return nil, err
			}
			h.pendingPos = 0
			continue
		}
		return nil, EOF
	}
}

// emitForProbeRow returns every output row produced by matching one probe
// row against the build side, applying outer/semi padding when unmatched.
func (h *hashJoinIter) emitForProbeRow(ctx *core.Context, probeRow core.Row) ([]core.Row, error) {
	key, ok := keyOf(probeRow, h.probeKeys)
	var candidates []core.Row
	if ok {
		candidates = h.built[key]
	}

	var matches []core.Row
	for _, cand := range candidates {
		var left, right core.Row
		if h.buildOnRight {
			left, right = probeRow, cand
		} else {
			left, right = cand, probeRow
		}
		ok, err := h.passesResidual(ctx, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if h.kind == dialect.FullJoin {
			h.matched[rowKeyFor(left, right, h.buildOnRight, key)] = true
		}
		switch h.kind {
		case dialect.SemiJoin:
			return []core.Row{left}, nil
		default:
			matches = append(matches, concatRow(left, right))
		}
	}

	if len(matches) > 0 {
		return matches, nil
	}
	switch h.kind {
	case dialect.InnerJoin, dialect.SemiJoin:
		return nil, nil
	case dialect.LeftJoin:
		if h.buildOnRight {
			return []core.Row{concatRow(probeRow, nullRow(len(h.rightSchema)))}, nil
		}
	case dialect.RightJoin:
		if !h.buildOnRight {
			return []core.Row{concatRow(nullRow(len(h.leftSchema)), probeRow)}, nil
		}
	case dialect.FullJoin:
		if h.buildOnRight {
			return []core.Row{concatRow(probeRow, nullRow(len(h.rightSchema)))}, nil
		}
		return []core.Row{concatRow(nullRow(len(h.leftSchema)), probeRow)}, nil
	}
	return nil, nil
}

// rowKeyFor distinguishes build-side rows for the Full join matched-set,
// keyed by the join key plus the build row's own rendering since several
// build rows can share a key.
func rowKeyFor(left, right core.Row, buildOnRight bool, key string) string {
	if buildOnRight {
		return key + "\x02" + rowKey(right)
	}
	return key + "\x02" + rowKey(left)
}

func (h *hashJoinIter) collectUnmatchedBuildRows() {
	for key, rows := range h.built {
		for _, row := range rows {
			var marker string
			if h.buildOnRight {
				marker = rowKeyFor(nil, row, true, key)
			} else {
				marker = rowKeyFor(row, nil, false, key)
			}
			if h.matched[marker] {
				continue
			}
			if h.buildOnRight {
				h.leftover = append(h.leftover, concatRow(nullRow(len(h.leftSchema)), row))
			} else {
				h.leftover = append(h.leftover, concatRow(row, nullRow(len(h.rightSchema))))
			}
		}
	}
}

func (h *hashJoinIter) passesResidual(ctx *core.Context, left, right core.Row) (bool, error) {
	if h.residual == nil {
		return true, nil
	}
	sch := concatSchema(h.leftSchema, h.rightSchema)
	v, err := evalExpr(ctx, h.residual, concatRow(left, right), sch)
	if err != nil {
		return false, err
	}
	return !v.Null && truthy(v), nil
}

func concatSchema(left, right core.Schema) core.Schema {
	out := make(core.Schema, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

func (h *hashJoinIter) Close(ctx *core.Context) error {
	err1 := h.left.Close(ctx)
	err2 := h.right.Close(ctx)
	if err1 != nil {
		return err1
	}
	return err2
}

// --- nested loop join ----------------------------------------------------

// nestedLoopJoinIter evaluates condition (nil for a pure cross join) against
// every pair, materialising the right side once (bounded by budget) and
// re-scanning it per left row.
type nestedLoopJoinIter struct {
	left, right             core.RowIter
	condition               dialect.Expr
	kind                    dialect.JoinKind
	leftSchema, rightSchema core.Schema
	budget                  *RowBudget

	rightRows      []core.Row
	leftRow        core.Row
	leftOpen       bool
	rightPos       int
	leftMatch      bool
	rightUnmatched []bool
	finalPass      bool
	finalPos       int
}

func newNestedLoopJoinIter(left, right core.RowIter, condition dialect.Expr, kind dialect.JoinKind, leftSchema, rightSchema core.Schema, budget *RowBudget) *nestedLoopJoinIter {
	return &nestedLoopJoinIter{left: left, right: right, condition: condition, kind: kind, leftSchema: leftSchema, rightSchema: rightSchema, budget: budget}
}

func (n *nestedLoopJoinIter) Open(ctx *core.Context) error {
	if err := n.left.Open(ctx); err != nil {
		return err
	}
	if err := n.right.Open(ctx); err != nil {
		return err
	}
	for {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		row, err := n.right.Next(ctx)
		if err == EOF {
			break
		}
		if err != nil {
			return err
		}
		if n.budget != nil && !n.budget.Consume(1) {
			break
		}
		n.rightRows = append(n.rightRows, row)
	}
	n.rightUnmatched = make([]bool, len(n.rightRows))
	for i := range n.rightUnmatched {
		n.rightUnmatched[i] = true
	}
	return nil
}

func (n *nestedLoopJoinIter) Next(ctx *core.Context) (core.Row, error) {
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if n.finalPass {
			for n.finalPos < len(n.rightRows) {
				i := n.finalPos
				n.finalPos++
				if n.rightUnmatched[i] {
					return concatRow(nullRow(len(n.leftSchema)), n.rightRows[i]), nil
				}
			}
			return nil, EOF
		}
		if !n.leftOpen {
			row, err := n.left.Next(ctx)
			if err == EOF {
				if n.kind == dialect.FullJoin || n.kind == dialect.RightJoin {
					n.finalPass = true
				} else {
					return nil, EOF
				}
				continue
			}
			if err != nil {
				return nil, err
			}
			n.leftRow = row
			n.leftOpen = true
			n.rightPos = 0
			n.leftMatch = false
		}
		for n.rightPos < len(n.rightRows) {
			i := n.rightPos
			n.rightPos++
			ok, err := n.passes(ctx, n.leftRow, n.rightRows[i])
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			n.leftMatch = true
			n.rightUnmatched[i] = false
			if n.kind == dialect.SemiJoin {
				n.leftOpen = false
				return n.leftRow, nil
			}
			return concatRow(n.leftRow, n.rightRows[i]), nil
		}
		// Exhausted the right side for this left row.
		n.leftOpen = false
		if !n.leftMatch {
			switch n.kind {
			case dialect.LeftJoin, dialect.FullJoin:
				return concatRow(n.leftRow, nullRow(len(n.rightSchema))), nil
			case dialect.InnerJoin, dialect.SemiJoin, dialect.CrossJoin:
				// no row emitted
			}
		}
	}
}

func (n *nestedLoopJoinIter) passes(ctx *core.Context, left, right core.Row) (bool, error) {
	if n.condition == nil {
		return true, nil
	}
	sch := concatSchema(n.leftSchema, n.rightSchema)
	v, err := evalExpr(ctx, n.condition, concatRow(left, right), sch)
	if err != nil {
		return false, err
	}
	return !v.Null && truthy(v), nil
}

func (n *nestedLoopJoinIter) Close(ctx *core.Context) error {
	err1 := n.left.Close(ctx)
	err2 := n.right.Close(ctx)
	if err1 != nil {
		return err1
	}
	return err2
}
