package rowexec

import (
	"fmt"
	"strings"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/dialect"
)

// projectIter computes one output row per input row from a list of
// ProjectItems, expanding `*`/`t.*` wildcards against the input schema
// exactly as optimizer.projectSchema does at plan time. When Distinct is
// set it also deduplicates the projected rows, bounded by budget.
type projectIter struct {
	input       core.RowIter
	items       []dialect.ProjectItem
	inputSchema core.Schema
	distinct    bool
	budget      *RowBudget

	seen map[string]bool
}

func newProjectIter(input core.RowIter, items []dialect.ProjectItem, inputSchema core.Schema, distinct bool, budget *RowBudget) *projectIter {
	p := &projectIter{input: input, items: items, inputSchema: inputSchema, distinct: distinct, budget: budget}
	if distinct {
		p.seen = map[string]bool{}
	}
	return p
}

func (p *projectIter) Open(ctx *core.Context) error { return p.input.Open(ctx) }

func (p *projectIter) Next(ctx *core.Context) (core.Row, error) {
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		row, err := p.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		out, err := p.project(ctx, row)
		if err != nil {
			return nil, err
		}
		if !p.distinct {
			return out, nil
		}
		key := rowKey(out)
		if p.seen[key] {
			continue
		}
		if p.budget != nil && !p.budget.Consume(1) {
			// Cap hit: stop deduplicating and pass remaining rows through
			// unchecked rather than growing the seen-set further.
			return out, nil
		}
		p.seen[key] = true
		return out, nil
	}
}

func (p *projectIter) project(ctx *core.Context, row core.Row) (core.Row, error) {
	var out core.Row
	for _, item := range p.items {
		if ref, ok := item.Expr.(*dialect.ColumnRef); ok && ref.Column == "*" {
			for i, c := range p.inputSchema {
				if ref.Table == "" || strings.EqualFold(c.Table, ref.Table) {
					out = append(out, row[i])
				}
			}
			continue
		}
		v, err := evalExpr(ctx, item.Expr, row, p.inputSchema)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *projectIter) Close(ctx *core.Context) error { return p.input.Close(ctx) }

// rowKey renders a Row into a comparable string for dedup/grouping purposes.
func rowKey(row core.Row) string {
	var sb strings.Builder
	for _, v := range row {
		if v.Null {
			sb.WriteString("\x00N\x01")
			continue
		}
		fmt.Fprintf(&sb, "%v\x01", v.Native)
	}
	return sb.String()
}
