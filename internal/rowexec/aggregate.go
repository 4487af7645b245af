package rowexec

import (
	"strings"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/intellisql/intellisql/internal/dialect"
	"github.com/intellisql/intellisql/internal/optimizer"
)

// aggState accumulates one aggregate expression's running value for one
// group.
type aggState struct {
	count int64
	sum   float64
	min   *types.Value
	max   *types.Value
	seen  map[string]bool // for DISTINCT aggregates
}

// groupState is one GROUP BY bucket: the representative key row (for
// rendering the group-by columns in the output) plus one aggState per agg.
type groupState struct {
	keyRow core.Row
	aggs   []*aggState
}

// aggregateIter computes a hash-grouped aggregate: it drains its entire
// input on Open (bounded by budget), then streams one output row per group,
// applying Having as a residual filter over the computed aggregate values.
type aggregateIter struct {
	input       core.RowIter
	groupBy     []dialect.Expr
	aggs        []dialect.AggCall
	having      dialect.Expr
	inputSchema core.Schema
	outSchema   core.Schema
	budget      *RowBudget

	groups []*groupState
	pos    int
}

func newAggregateIter(input core.RowIter, plan *optimizer.PhysicalAggregate, budget *RowBudget) *aggregateIter {
	return &aggregateIter{
		input:       input,
		groupBy:     plan.GroupBy,
		aggs:        plan.Aggs,
		having:      plan.Having,
		inputSchema: plan.Input.Schema(),
		outSchema:   plan.Schema(),
		budget:      budget,
	}
}

func (a *aggregateIter) Open(ctx *core.Context) error {
	if err := a.input.Open(ctx); err != nil {
		return err
	}
	byKey := map[string]*groupState{}
	var order []string

	for {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		row, err := a.input.Next(ctx)
		if err == EOF {
			break
		}
		if err != nil {
			return err
		}

		keyVals := make(core.Row, len(a.groupBy))
		for i, g := range a.groupBy {
			v, err := evalExpr(ctx, g, row, a.inputSchema)
			if err != nil {
				return err
			}
			keyVals[i] = v
		}
		key := rowKey(keyVals)
		g, ok := byKey[key]
		if !ok {
			if a.budget != nil && !a.budget.Consume(1) {
				continue
			}
			g = &groupState{keyRow: keyVals, aggs: make([]*aggState, len(a.aggs))}
			for i := range g.aggs {
				g.aggs[i] = &aggState{}
				if a.aggs[i].Distinct {
					g.aggs[i].seen = map[string]bool{}
				}
			}
			byKey[key] = g
			order = append(order, key)
		}
		for i, call := range a.aggs {
			if err := accumulate(ctx, g.aggs[i], call, row, a.inputSchema); err != nil {
				return err
			}
		}
	}

	if len(order) == 0 && len(a.groupBy) == 0 {
		// A global aggregate over an empty input still yields one row
		// (e.g. COUNT(*) = 0).
		g := &groupState{aggs: make([]*aggState, len(a.aggs))}
		for i := range g.aggs {
			g.aggs[i] = &aggState{}
		}
		byKey[""] = g
		order = []string{""}
	}

	for _, key := range order {
		a.groups = append(a.groups, byKey[key])
	}
	return nil
}

func accumulate(ctx *core.Context, st *aggState, call dialect.AggCall, row core.Row, sch core.Schema) error {
	if call.Star {
		st.count++
		return nil
	}
	if call.Arg == nil {
		st.count++
		return nil
	}
	v, err := evalExpr(ctx, call.Arg, row, sch)
	if err != nil {
		return err
	}
	if v.Null {
		return nil
	}
	if call.Distinct {
		key := rowKey(core.Row{v})
		if st.seen[key] {
			return nil
		}
		st.seen[key] = true
	}
	st.count++
	f, err := toFloat64(v.Native)
	if err == nil {
		st.sum += f
	}
	if st.min == nil {
		cp := v
		st.min = &cp
	} else if cmp, err := compareValues(v, *st.min); err == nil && cmp < 0 {
		cp := v
		st.min = &cp
	}
	if st.max == nil {
		cp := v
		st.max = &cp
	} else if cmp, err := compareValues(v, *st.max); err == nil && cmp > 0 {
		cp := v
		st.max = &cp
	}
	return nil
}

func finalize(call dialect.AggCall, st *aggState) types.Value {
	switch strings.ToUpper(call.Func) {
	case "COUNT":
		return types.NewValue(types.Int64, st.count)
	case "SUM":
		if st.count == 0 {
			return types.NullValue(types.Float64)
		}
		return types.NewValue(types.Float64, st.sum)
	case "AVG":
		if st.count == 0 {
			return types.NullValue(types.Float64)
		}
		return types.NewValue(types.Float64, st.sum/float64(st.count))
	case "MIN":
		if st.min == nil {
			return types.NullValue(types.Float64)
		}
		return *st.min
	case "MAX":
		if st.max == nil {
			return types.NullValue(types.Float64)
		}
		return *st.max
	default:
		return types.NullValue(types.Unknown)
	}
}

func (a *aggregateIter) Next(ctx *core.Context) (core.Row, error) {
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if a.pos >= len(a.groups) {
			return nil, EOF
		}
		g := a.groups[a.pos]
		a.pos++

		out := make(core.Row, 0, len(g.keyRow)+len(a.aggs))
		out = append(out, g.keyRow...)
		for i, call := range a.aggs {
			out = append(out, finalize(call, g.aggs[i]))
		}
		if a.having != nil {
			v, err := evalExpr(ctx, a.having, out, a.outSchema)
			if err != nil {
				return nil, err
			}
			if v.Null || !truthy(v) {
				continue
			}
		}
		return out, nil
	}
}

func (a *aggregateIter) Close(ctx *core.Context) error { return a.input.Close(ctx) }
