package optimizer

import (
	"math"
	"strings"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/connector"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/intellisql/intellisql/internal/dialect"
)

// JoinAlgorithm is the CBO's choice of physical join implementation.
type JoinAlgorithm int

const (
	HashJoinAlgorithm JoinAlgorithm = iota
	NestedLoopJoinAlgorithm
)

func (a JoinAlgorithm) String() string {
	if a == HashJoinAlgorithm {
		return "hash"
	}
	return "nested_loop"
}

// PhysicalTree is the optimiser's output: a tree of physical operators ready
// for internal/rowexec to build a RowIter pipeline from, with per-node cost
// annotations carried along for EXPLAIN-style diagnostics.
type PhysicalTree struct {
	Root PhysicalNode
	Cost Cost
}

// PhysicalNode is any node of a PhysicalTree. Schema lets internal/rowexec
// resolve a dialect.ColumnRef against the node's output row type by name
// rather than needing a stable ordinal threaded through every rewrite.
type PhysicalNode interface {
	physicalNode()
	EstimatedRows() int64
	Schema() core.Schema
}

type base struct {
	rows   int64
	schema core.Schema
}

func (b base) EstimatedRows() int64 { return b.rows }
func (b base) Schema() core.Schema  { return b.schema }

// PhysicalScan reads rows from one catalog table, honouring whatever
// Pushdown the optimiser decided the source's connector should apply.
type PhysicalScan struct {
	base
	Table    *catalog.Table
	Alias    string
	Pushdown connector.Pushdown
	Cost     Cost
}

func (*PhysicalScan) physicalNode() {}

// PhysicalFilter evaluates a residual predicate the scan couldn't push down.
type PhysicalFilter struct {
	base
	Input     PhysicalNode
	Predicate dialect.Expr
	Cost      Cost
}

func (*PhysicalFilter) physicalNode() {}

// PhysicalProject narrows/computes the output columns.
type PhysicalProject struct {
	base
	Input    PhysicalNode
	Items    []dialect.ProjectItem
	Distinct bool
	Cost     Cost
}

func (*PhysicalProject) physicalNode() {}

// PhysicalJoin is a chosen join algorithm over two physical inputs.
type PhysicalJoin struct {
	base
	Left, Right PhysicalNode
	Kind        dialect.JoinKind
	Condition   dialect.Expr
	Algorithm   JoinAlgorithm
	Cost        Cost
}

func (*PhysicalJoin) physicalNode() {}

// PhysicalAggregate groups and computes aggregate expressions.
type PhysicalAggregate struct {
	base
	Input   PhysicalNode
	GroupBy []dialect.Expr
	Aggs    []dialect.AggCall
	Having  dialect.Expr
	Cost    Cost
}

func (*PhysicalAggregate) physicalNode() {}

// PhysicalSort orders rows, bounded by the executor's in-memory row cap.
type PhysicalSort struct {
	base
	Input PhysicalNode
	Keys  []dialect.SortKey
	Cost  Cost
}

func (*PhysicalSort) physicalNode() {}

// PhysicalLimit bounds and/or skips rows.
type PhysicalLimit struct {
	base
	Input     PhysicalNode
	Count     int64
	Offset    int64
	HasCount  bool
	HasOffset bool
}

func (*PhysicalLimit) physicalNode() {}

// PhysicalSetOp applies UNION/UNION ALL/INTERSECT/EXCEPT semantics.
type PhysicalSetOp struct {
	base
	Left, Right PhysicalNode
	Kind        dialect.SetOpKind
	Cost        Cost
}

func (*PhysicalSetOp) physicalNode() {}

// build recursively lowers a rewritten logical node into a physical node,
// choosing access paths and join algorithms as it goes and accumulating
// Cost bottom-up, attaching an estimated Cost to every node of the chosen
// physical plan.
type builder struct {
	cat     *catalog.Catalog
	weights Weights
	hints   *Hints
	source  string
	schema  string
}

// Build runs the cost-based phase over a rule-rewritten logical tree,
// producing a PhysicalTree. defaultSource/defaultSchema resolve unqualified
// Scan nodes exactly as dialect.Validator does.
func Build(root dialect.Node, cat *catalog.Catalog, weights Weights, hints *Hints, defaultSource, defaultSchema string) (*PhysicalTree, error) {
	b := &builder{cat: cat, weights: weights, hints: hints, source: defaultSource, schema: defaultSchema}
	pn, err := b.build(root)
	if err != nil {
		return nil, err
	}
	return &PhysicalTree{Root: pn, Cost: costOf(pn)}, nil
}

func costOf(n PhysicalNode) Cost {
	switch x := n.(type) {
	case *PhysicalScan:
		return x.Cost
	case *PhysicalFilter:
		return x.Cost
	case *PhysicalProject:
		return x.Cost
	case *PhysicalJoin:
		return x.Cost
	case *PhysicalAggregate:
		return x.Cost
	case *PhysicalSort:
		return x.Cost
	case *PhysicalSetOp:
		return x.Cost
	case *PhysicalLimit:
		return costOf(x.Input)
	default:
		return Cost{}
	}
}

func (b *builder) build(n dialect.Node) (PhysicalNode, error) {
	switch x := n.(type) {
	case *dialect.Scan:
		return b.buildScan(x)
	case *dialect.Filter:
		return b.buildFilter(x)
	case *dialect.Project:
		return b.buildProject(x)
	case *dialect.Join:
		return b.buildJoin(x)
	case *dialect.Aggregate:
		return b.buildAggregate(x)
	case *dialect.Sort:
		return b.buildSort(x)
	case *dialect.Limit:
		return b.buildLimit(x)
	case *dialect.SetOp:
		return b.buildSetOp(x)
	case *dialect.Subquery:
		return b.build(x.Query.Root)
	default:
		return nil, core.NewErrorf(core.KindInternalError, "optimizer: unsupported logical node %T", n)
	}
}

func (b *builder) buildScan(s *dialect.Scan) (PhysicalNode, error) {
	source, schema := s.Source, s.Schema
	if source == "" {
		source = b.source
	}
	if schema == "" {
		schema = b.schema
	}
	table, err := b.cat.Table(source, schema, s.Table)
	if err != nil {
		return nil, err
	}
	stats, usedDefaults := sourceStats(table)

	pd := connector.Pushdown{Limit: 0}
	if cols, ok := b.hints.RequiredColumns[s]; ok && len(cols) > 0 {
		pd.Projection = cols
	}
	crossSource := true
	if lim, ok := b.hints.ScanLimit[s]; ok && lim > 0 {
		pd.Limit = int(lim)
	}

	rows := stats.RowCount
	if pd.Limit > 0 && int64(pd.Limit) < rows {
		rows = int64(pd.Limit)
	}
	cost := scanCost(stats.RowCount, crossSource)
	cost.UsedDefaultStatistics = usedDefaults

	qualifier := s.Alias
	if qualifier == "" {
		qualifier = s.Table
	}
	sch := scanSchema(table, qualifier, pd.Projection)

	return &PhysicalScan{base: base{rows: rows, schema: sch}, Table: table, Alias: s.Alias, Pushdown: pd, Cost: cost}, nil
}

// scanSchema narrows a table's full column list to the pushed-down
// projection (when one was chosen) and re-qualifies every column with the
// scan's alias so downstream ColumnRef resolution sees the name the query
// actually used. When a projection was pushed down, the output columns are
// ordered exactly as Pushdown.Projection lists them: a connector receives
// that slice verbatim and is expected to return each row's values in that
// same order, so the schema describing those rows must match it rather
// than the table's own declared column order.
func scanSchema(table *catalog.Table, qualifier string, projection []string) core.Schema {
	cols := table.Columns
	if len(projection) > 0 {
		byName := make(map[string]*core.Column, len(table.Columns))
		for _, c := range table.Columns {
			byName[strings.ToLower(c.Name)] = c
		}
		var narrowed core.Schema
		for _, name := range projection {
			if c, ok := byName[strings.ToLower(name)]; ok {
				narrowed = append(narrowed, c)
			}
		}
		if len(narrowed) > 0 {
			cols = narrowed
		}
	}
	out := make(core.Schema, len(cols))
	for i, c := range cols {
		cp := *c
		cp.Ordinal = i
		cp.Table = qualifier
		out[i] = &cp
	}
	return out
}

func (b *builder) buildFilter(f *dialect.Filter) (PhysicalNode, error) {
	input, err := b.build(f.Input)
	if err != nil {
		return nil, err
	}
	selectivity := 0.1
	outRows := int64(float64(input.EstimatedRows()) * selectivity)
	cost := costOf(input).Add(filterCost(input.EstimatedRows()))
	return &PhysicalFilter{base: base{rows: outRows, schema: input.Schema()}, Input: input, Predicate: f.Predicate, Cost: cost}, nil
}

func (b *builder) buildProject(p *dialect.Project) (PhysicalNode, error) {
	input, err := b.build(p.Input)
	if err != nil {
		return nil, err
	}
	cost := costOf(input).Add(Cost{CPU: float64(input.EstimatedRows())})
	sch := projectSchema(p.Items, input.Schema())
	rows := input.EstimatedRows()
	if p.Distinct {
		rows = int64(float64(rows) * 0.5)
		cost = cost.Add(Cost{Memory: float64(rows)})
	}
	return &PhysicalProject{base: base{rows: rows, schema: sch}, Input: input, Items: p.Items, Distinct: p.Distinct, Cost: cost}, nil
}

// projectSchema derives a Project's output row type from each item's
// expression (resolved against the input schema) and its alias, falling
// back to the expression's rendered form when no alias was given, mirroring
// how SQL engines name an unaliased computed column.
func projectSchema(items []dialect.ProjectItem, input core.Schema) core.Schema {
	out := make(core.Schema, 0, len(items))
	for i, item := range items {
		if ref, ok := item.Expr.(*dialect.ColumnRef); ok && ref.Column == "*" {
			for _, c := range input {
				if ref.Table == "" || strings.EqualFold(c.Table, ref.Table) {
					cp := *c
					cp.Ordinal = len(out)
					out = append(out, &cp)
				}
			}
			continue
		}
		name := item.Alias
		if name == "" {
			if ref, ok := item.Expr.(*dialect.ColumnRef); ok {
				name = ref.Column
			} else {
				name = "expr"
			}
		}
		out = append(out, &core.Column{Name: name, Ordinal: i, Kind: exprKind(item.Expr, input)})
	}
	return out
}

// exprKind infers a scalar expression's output Kind against an input
// schema, a conservative best-effort estimate used only to label physical
// output columns: internal/rowexec's own evaluator is the source of truth
// for the actual runtime value and Kind of every cell.
func exprKind(e dialect.Expr, sch core.Schema) types.Kind {
	switch x := e.(type) {
	case *dialect.ColumnRef:
		if i := sch.IndexOf(x.Column); i >= 0 {
			return sch[i].Kind
		}
		return types.Unknown
	case *dialect.Literal:
		switch x.Kind {
		case dialect.LiteralInt:
			return types.Int64
		case dialect.LiteralFloat:
			return types.Float64
		case dialect.LiteralString:
			return types.String
		case dialect.LiteralBool:
			return types.Boolean
		default:
			return types.Unknown
		}
	case *dialect.BinaryExpr:
		switch x.Op {
		case "AND", "OR", "=", "!=", "<>", "<", "<=", ">", ">=", "LIKE", "IN", "IN_SUBQUERY":
			return types.Boolean
		default:
			left := exprKind(x.Left, sch)
			right := exprKind(x.Right, sch)
			if w, ok := types.Widen(left, right); ok {
				return w
			}
			return left
		}
	case *dialect.UnaryExpr:
		switch x.Op {
		case "ISNULL", "ISNOTNULL", "NOT":
			return types.Boolean
		default:
			return exprKind(x.Operand, sch)
		}
	case *dialect.FuncCall:
		return funcKind(x.Name)
	case *dialect.CastExpr:
		if k, ok := types.ParseKind(strings.ToLower(x.TypeName)); ok {
			return k
		}
		return types.Unknown
	case *dialect.CaseExpr:
		if len(x.Whens) > 0 {
			return exprKind(x.Whens[0].Then, sch)
		}
		return types.Unknown
	case *dialect.SubqueryExpr:
		return types.Boolean
	default:
		return types.Unknown
	}
}

func funcKind(name string) types.Kind {
	switch strings.ToUpper(name) {
	case "COUNT":
		return types.Int64
	case "SUM", "AVG", "MIN", "MAX":
		return types.Float64
	case "UPPER", "LOWER", "CONCAT", "SUBSTRING", "TRIM":
		return types.String
	case "NOW", "CURRENT_TIMESTAMP":
		return types.Timestamp
	default:
		return types.Unknown
	}
}

func (b *builder) buildJoin(j *dialect.Join) (PhysicalNode, error) {
	left, err := b.build(j.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.build(j.Right)
	if err != nil {
		return nil, err
	}

	buildRows, probeRows := left.EstimatedRows(), right.EstimatedRows()
	if probeRows < buildRows {
		buildRows, probeRows = probeRows, buildRows
	}

	hashCost := hashJoinCost(buildRows, probeRows, true)
	nlCost := nestedLoopJoinCost(probeRows, buildRows, true)
	algorithm := HashJoinAlgorithm
	chosen := hashCost
	// A small build side favours nested loop over building a hash table.
	const smallBuildThreshold = 32
	if buildRows <= smallBuildThreshold && nlCost.Total(b.weights) < hashCost.Total(b.weights) {
		algorithm = NestedLoopJoinAlgorithm
		chosen = nlCost
	}

	outRows := estimateJoinRows(j.Kind, left.EstimatedRows(), right.EstimatedRows())
	cost := costOf(left).Add(costOf(right)).Add(chosen)

	sch := joinSchema(j.Kind, left.Schema(), right.Schema())
	return &PhysicalJoin{
		base:      base{rows: outRows, schema: sch},
		Left:      left,
		Right:     right,
		Kind:      j.Kind,
		Condition: j.Condition,
		Algorithm: algorithm,
		Cost:      cost,
	}, nil
}

// joinSchema concatenates both sides' columns for every join kind except
// SemiJoin, whose output is the left side's rows alone (the right side only
// participates in the match test).
func joinSchema(kind dialect.JoinKind, left, right core.Schema) core.Schema {
	if kind == dialect.SemiJoin {
		return left
	}
	out := make(core.Schema, 0, len(left)+len(right))
	ord := 0
	for _, c := range left {
		cp := *c
		cp.Ordinal = ord
		ord++
		out = append(out, &cp)
	}
	for _, c := range right {
		cp := *c
		cp.Ordinal = ord
		ord++
		out = append(out, &cp)
	}
	return out
}

func estimateJoinRows(kind dialect.JoinKind, left, right int64) int64 {
	const joinSelectivity = 0.1
	inner := int64(float64(left*right) * joinSelectivity)
	switch kind {
	case dialect.SemiJoin:
		return int64(float64(left) * joinSelectivity)
	case dialect.LeftJoin:
		if inner < left {
			return left
		}
		return inner
	case dialect.RightJoin:
		if inner < right {
			return right
		}
		return inner
	case dialect.FullJoin:
		if inner < left+right {
			return left + right
		}
		return inner
	case dialect.CrossJoin:
		return left * right
	default:
		return inner
	}
}

func (b *builder) buildAggregate(a *dialect.Aggregate) (PhysicalNode, error) {
	input, err := b.build(a.Input)
	if err != nil {
		return nil, err
	}
	groups := input.EstimatedRows() / 10
	if groups < 1 {
		groups = 1
	}
	cost := costOf(input).Add(Cost{CPU: float64(input.EstimatedRows()), Memory: float64(groups)})
	sch := aggregateSchema(a.GroupBy, a.Aggs, input.Schema())
	return &PhysicalAggregate{base: base{rows: groups, schema: sch}, Input: input, GroupBy: a.GroupBy, Aggs: a.Aggs, Having: a.Having, Cost: cost}, nil
}

// aggregateSchema lists the GROUP BY columns in order followed by each
// aggregate expression's output column, matching the SELECT-list ordering
// SQL requires for GROUP BY queries (group columns first is a convention
// consistent with the aggregate's own operator needing the group key
// columns up front to emit them alongside the computed values).
func aggregateSchema(groupBy []dialect.Expr, aggs []dialect.AggCall, input core.Schema) core.Schema {
	out := make(core.Schema, 0, len(groupBy)+len(aggs))
	for i, g := range groupBy {
		name := "group_expr"
		if ref, ok := g.(*dialect.ColumnRef); ok {
			name = ref.Column
		}
		out = append(out, &core.Column{Name: name, Ordinal: i, Kind: exprKind(g, input)})
	}
	for _, a := range aggs {
		name := a.Alias
		if name == "" {
			name = strings.ToLower(a.Func)
		}
		kind := funcKind(a.Func)
		out = append(out, &core.Column{Name: name, Ordinal: len(out), Kind: kind})
	}
	return out
}

func (b *builder) buildSort(s *dialect.Sort) (PhysicalNode, error) {
	input, err := b.build(s.Input)
	if err != nil {
		return nil, err
	}
	n := input.EstimatedRows()
	sortCPU := 1.0
	if n > 1 {
		sortCPU = float64(n) * math.Log2(float64(n))
	}
	cost := costOf(input).Add(Cost{CPU: sortCPU, Memory: float64(n)})
	return &PhysicalSort{base: base{rows: n, schema: input.Schema()}, Input: input, Keys: s.Keys, Cost: cost}, nil
}

func (b *builder) buildLimit(l *dialect.Limit) (PhysicalNode, error) {
	input, err := b.build(l.Input)
	if err != nil {
		return nil, err
	}
	rows := input.EstimatedRows()
	if l.HasCount && l.Count < rows {
		rows = l.Count
	}
	return &PhysicalLimit{base: base{rows: rows, schema: input.Schema()}, Input: input, Count: l.Count, Offset: l.Offset, HasCount: l.HasCount, HasOffset: l.HasOffset}, nil
}

func (b *builder) buildSetOp(s *dialect.SetOp) (PhysicalNode, error) {
	left, err := b.build(s.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.build(s.Right)
	if err != nil {
		return nil, err
	}
	rows := left.EstimatedRows() + right.EstimatedRows()
	if s.Kind == dialect.Intersect {
		rows = minInt64(left.EstimatedRows(), right.EstimatedRows())
	}
	cost := costOf(left).Add(costOf(right)).Add(Cost{CPU: float64(rows)})
	return &PhysicalSetOp{base: base{rows: rows, schema: left.Schema()}, Left: left, Right: right, Kind: s.Kind, Cost: cost}, nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
