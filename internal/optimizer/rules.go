package optimizer

import (
	"strings"

	"github.com/intellisql/intellisql/internal/dialect"
)

// maxRuleIterations bounds the fixed-point loop in case rules keep
// rewriting each other's output without converging.
const maxRuleIterations = 50

// Hints carries the side information the RBO pass derives but which the
// dialect.Node tree has no field for (required columns, pushed-down
// limits) alongside the rewritten tree, for the CBO phase and the physical
// scan builder to consume without needing to re-derive it.
type Hints struct {
	// RequiredColumns maps each reachable *dialect.Scan to the column
	// names referenced anywhere above it in the tree (projection
	// pushdown's "pruned set propagated down to scans").
	RequiredColumns map[*dialect.Scan][]string

	// ScanLimit maps a *dialect.Scan to a pushed-down row cap (limit
	// pushdown), 0 meaning none.
	ScanLimit map[*dialect.Scan]int64
}

func newHints() *Hints {
	return &Hints{RequiredColumns: map[*dialect.Scan][]string{}, ScanLimit: map[*dialect.Scan]int64{}}
}

// RuleBasedRewrite applies the six RBO rules in a fixed relative order,
// looping the pushdown rules to a fixed point before running subquery
// rewrite, aggregate split, and join reorder, bounded by
// maxRuleIterations.
func RuleBasedRewrite(tree *dialect.LogicalTree) (*dialect.LogicalTree, *Hints, error) {
	root := tree.Root
	scanLimits := map[*dialect.Scan]int64{}
	for i := 0; i < maxRuleIterations; i++ {
		next, changed := filterPushdown(root)
		root = next
		next, changed2 := limitPushdown(root, scanLimits)
		root = next
		if !changed && !changed2 {
			break
		}
	}

	root = subqueryRewrite(root)
	root = aggregateSplit(root)
	root = joinReorderGreedy(root)

	hints := newHints()
	collectRequiredColumns(root, nil, hints)
	collectScanLimits(root, scanLimits, hints)

	return &dialect.LogicalTree{Root: root}, hints, nil
}

// --- Rule 1: filter pushdown -------------------------------------------------

// filterPushdown moves a Filter below a Join when its conjuncts reference
// only one side, splitting AND-conjunctions so independent conjuncts travel
// independently.
func filterPushdown(n dialect.Node) (dialect.Node, bool) {
	changed := false
	n = mapChildren(n, func(c dialect.Node) dialect.Node {
		out, ch := filterPushdown(c)
		if ch {
			changed = true
		}
		return out
	})

	f, ok := n.(*dialect.Filter)
	if !ok {
		return n, changed
	}
	join, ok := f.Input.(*dialect.Join)
	if !ok || join.Kind == dialect.SemiJoin {
		return n, changed
	}

	leftTables := tableNames(join.Left)
	rightTables := tableNames(join.Right)

	conjuncts := splitConjuncts(f.Predicate)
	var stays, toLeft, toRight []dialect.Expr
	for _, c := range conjuncts {
		refs := columnTables(c)
		switch {
		case refs.subsetOf(leftTables) && len(refs) > 0:
			toLeft = append(toLeft, c)
		case refs.subsetOf(rightTables) && len(refs) > 0:
			toRight = append(toRight, c)
		default:
			stays = append(stays, c)
		}
	}
	if len(toLeft) == 0 && len(toRight) == 0 {
		return n, changed
	}

	newLeft := join.Left
	if len(toLeft) > 0 {
		newLeft = &dialect.Filter{Input: join.Left, Predicate: joinConjuncts(toLeft)}
	}
	newRight := join.Right
	if len(toRight) > 0 {
		newRight = &dialect.Filter{Input: join.Right, Predicate: joinConjuncts(toRight)}
	}
	newJoin := &dialect.Join{Left: newLeft, Right: newRight, Kind: join.Kind, Condition: join.Condition}

	if len(stays) == 0 {
		return newJoin, true
	}
	return &dialect.Filter{Input: newJoin, Predicate: joinConjuncts(stays)}, true
}

func splitConjuncts(e dialect.Expr) []dialect.Expr {
	if b, ok := e.(*dialect.BinaryExpr); ok && b.Op == "AND" {
		return append(splitConjuncts(b.Left), splitConjuncts(b.Right)...)
	}
	return []dialect.Expr{e}
}

func joinConjuncts(es []dialect.Expr) dialect.Expr {
	out := es[0]
	for _, e := range es[1:] {
		out = &dialect.BinaryExpr{Op: "AND", Left: out, Right: e}
	}
	return out
}

type tableSet map[string]bool

func (s tableSet) subsetOf(other tableSet) bool {
	if len(s) == 0 {
		return false
	}
	for t := range s {
		if !other[t] {
			return false
		}
	}
	return true
}

// tableNames collects every Scan alias (or table name if unaliased) and
// Subquery alias reachable under n.
func tableNames(n dialect.Node) tableSet {
	out := tableSet{}
	var walk func(dialect.Node)
	walk = func(node dialect.Node) {
		switch x := node.(type) {
		case *dialect.Scan:
			alias := x.Alias
			if alias == "" {
				alias = x.Table
			}
			out[strings.ToLower(alias)] = true
			out[strings.ToLower(x.Table)] = true
		case *dialect.Subquery:
			if x.Alias != "" {
				out[strings.ToLower(x.Alias)] = true
			}
		case *dialect.Join:
			walk(x.Left)
			walk(x.Right)
		case *dialect.Filter:
			walk(x.Input)
		case *dialect.Project:
			walk(x.Input)
		case *dialect.Aggregate:
			walk(x.Input)
		case *dialect.Sort:
			walk(x.Input)
		case *dialect.Limit:
			walk(x.Input)
		}
	}
	walk(n)
	return out
}

// columnTables collects the lowercased table qualifiers of every ColumnRef
// in e. An unqualified reference contributes no table (ambiguous for this
// purpose, which correctly prevents it from being pushed to either side).
func columnTables(e dialect.Expr) tableSet {
	out := tableSet{}
	var walk func(dialect.Expr)
	walk = func(ex dialect.Expr) {
		switch x := ex.(type) {
		case *dialect.ColumnRef:
			if x.Table != "" {
				out[strings.ToLower(x.Table)] = true
			}
		case *dialect.BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *dialect.UnaryExpr:
			walk(x.Operand)
		case *dialect.FuncCall:
			for _, a := range x.Args {
				walk(a)
			}
		case *dialect.CastExpr:
			walk(x.Operand)
		}
	}
	walk(e)
	return out
}

// --- Rule 2: projection pushdown --------------------------------------------

// collectRequiredColumns walks the tree top-down accumulating the columns
// referenced above each Scan, implementing "trim columns at every node to
// those used upstream; propagate the pruned set downward to scans" without
// needing a Columns field on dialect.Scan itself: the pruned set is handed
// to the physical-plan builder via Hints instead.
func collectRequiredColumns(n dialect.Node, needed []string, h *Hints) {
	switch x := n.(type) {
	case *dialect.Scan:
		h.RequiredColumns[x] = dedupe(needed)
	case *dialect.Filter:
		collectRequiredColumns(x.Input, append(append([]string{}, needed...), refColumns(x.Predicate)...), h)
	case *dialect.Project:
		var below []string
		for _, item := range x.Items {
			below = append(below, refColumns(item.Expr)...)
		}
		collectRequiredColumns(x.Input, below, h)
	case *dialect.Join:
		below := append(append([]string{}, needed...), refColumns(x.Condition)...)
		collectRequiredColumns(x.Left, below, h)
		collectRequiredColumns(x.Right, below, h)
	case *dialect.Aggregate:
		var below []string
		for _, g := range x.GroupBy {
			below = append(below, refColumns(g)...)
		}
		for _, a := range x.Aggs {
			if a.Arg != nil {
				below = append(below, refColumns(a.Arg)...)
			}
		}
		if x.Having != nil {
			below = append(below, refColumns(x.Having)...)
		}
		collectRequiredColumns(x.Input, below, h)
	case *dialect.Sort:
		var below []string
		below = append(below, needed...)
		for _, k := range x.Keys {
			below = append(below, refColumns(k.Expr)...)
		}
		collectRequiredColumns(x.Input, below, h)
	case *dialect.Limit:
		collectRequiredColumns(x.Input, needed, h)
	case *dialect.SetOp:
		collectRequiredColumns(x.Left, needed, h)
		collectRequiredColumns(x.Right, needed, h)
	case *dialect.Subquery:
		collectRequiredColumns(x.Query.Root, nil, h)
	}
}

func refColumns(e dialect.Expr) []string {
	var out []string
	var walk func(dialect.Expr)
	walk = func(ex dialect.Expr) {
		switch x := ex.(type) {
		case *dialect.ColumnRef:
			out = append(out, x.Column)
		case *dialect.BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *dialect.UnaryExpr:
			walk(x.Operand)
		case *dialect.FuncCall:
			for _, a := range x.Args {
				walk(a)
			}
		case *dialect.CastExpr:
			walk(x.Operand)
		case *dialect.CaseExpr:
			if x.Operand != nil {
				walk(x.Operand)
			}
			for _, w := range x.Whens {
				walk(w.When)
				walk(w.Then)
			}
			if x.Else != nil {
				walk(x.Else)
			}
		}
	}
	if e != nil {
		walk(e)
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s == "*" || s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

// --- Rule 3: limit pushdown --------------------------------------------------

// limitPushdown pushes LIMIT through monotonic operators (Project, UNION
// ALL) into scans, never past a Sort.
func limitPushdown(n dialect.Node, scanLimits map[*dialect.Scan]int64) (dialect.Node, bool) {
	changed := false
	n = mapChildren(n, func(c dialect.Node) dialect.Node {
		out, ch := limitPushdown(c, scanLimits)
		if ch {
			changed = true
		}
		return out
	})

	lim, ok := n.(*dialect.Limit)
	if !ok {
		return n, changed
	}
	bound := lim.Count
	if lim.HasOffset {
		bound += lim.Offset
	}
	pushLimitInto(lim.Input, bound, scanLimits)
	return n, changed
}

// pushLimitInto marks every Scan reachable through Project/UNION ALL chains
// (stopping at Sort, Aggregate, Join, and any other set operator) with the
// smallest bound observed, into scanLimits, keyed by Scan pointer identity
// since dialect.Scan carries no limit field of its own.
func pushLimitInto(n dialect.Node, bound int64, scanLimits map[*dialect.Scan]int64) {
	switch x := n.(type) {
	case *dialect.Project:
		pushLimitInto(x.Input, bound, scanLimits)
	case *dialect.SetOp:
		if x.Kind == dialect.UnionAll {
			pushLimitInto(x.Left, bound, scanLimits)
			pushLimitInto(x.Right, bound, scanLimits)
		}
	case *dialect.Scan:
		scanLimits[x] = minNonZero(scanLimits[x], bound)
	}
}

func collectScanLimits(n dialect.Node, scanLimits map[*dialect.Scan]int64, h *Hints) {
	var walk func(dialect.Node)
	walk = func(node dialect.Node) {
		switch x := node.(type) {
		case *dialect.Scan:
			if v, ok := scanLimits[x]; ok {
				h.ScanLimit[x] = v
			}
		case *dialect.Filter:
			walk(x.Input)
		case *dialect.Project:
			walk(x.Input)
		case *dialect.Join:
			walk(x.Left)
			walk(x.Right)
		case *dialect.Aggregate:
			walk(x.Input)
		case *dialect.Sort:
			walk(x.Input)
		case *dialect.Limit:
			walk(x.Input)
		case *dialect.SetOp:
			walk(x.Left)
			walk(x.Right)
		case *dialect.Subquery:
			walk(x.Query.Root)
		}
	}
	walk(n)
}

func minNonZero(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b < a {
		return b
	}
	return a
}

// --- Rule 4: subquery rewrite ------------------------------------------------

// subqueryRewrite converts an uncorrelated `IN (SELECT ...)` predicate
// directly under a Filter into a semi-join.
// Correlated EXISTS/IN rewriting and scalar-subquery constant-folding are
// not implemented: both require evaluating the subquery's correlation
// against outer columns (or executing it) at plan time, which this
// optimiser -- a pure tree rewriter with no execution access -- cannot do.
// They fall through unrewritten, and the executor does not evaluate
// subquery expressions: such a query fails with UnsupportedFeature.
func subqueryRewrite(n dialect.Node) dialect.Node {
	n = mapChildren(n, subqueryRewrite)

	f, ok := n.(*dialect.Filter)
	if !ok {
		return n
	}
	bin, ok := f.Predicate.(*dialect.BinaryExpr)
	if !ok || bin.Op != "IN_SUBQUERY" {
		return n
	}
	sub, ok := bin.Right.(*dialect.SubqueryExpr)
	if !ok {
		return n
	}
	proj, ok := sub.Query.Root.(*dialect.Project)
	if !ok || len(proj.Items) != 1 {
		return n
	}
	rightCol, ok := proj.Items[0].Expr.(*dialect.ColumnRef)
	if !ok {
		return n
	}
	leftCol, ok := bin.Left.(*dialect.ColumnRef)
	if !ok {
		return n
	}
	cond := &dialect.BinaryExpr{Op: "=", Left: leftCol, Right: &dialect.ColumnRef{Table: rightCol.Table, Column: rightCol.Column}}
	return &dialect.Join{Left: f.Input, Right: proj.Input, Kind: dialect.SemiJoin, Condition: cond}
}

// --- Rule 5: aggregate split -------------------------------------------------

// aggregateSplit replaces a global aggregate whose input is an inner Join,
// when every aggregate is SUM/COUNT/MIN/MAX without DISTINCT, with a local
// aggregate over the whole join followed by a merge aggregate over the
// local results. Both stages run in the executor; no aggregate is pushed to
// a source. An aggregate whose input is not a Join is left alone, and
// internal/rowexec's Aggregate operator always executes it in-process.
func aggregateSplit(n dialect.Node) dialect.Node {
	n = mapChildren(n, aggregateSplit)

	agg, ok := n.(*dialect.Aggregate)
	if !ok {
		return n
	}
	join, ok := agg.Input.(*dialect.Join)
	if !ok || join.Kind != dialect.InnerJoin {
		return n
	}
	if !splittable(agg.Aggs) {
		return n
	}

	leftTables := tableNames(join.Left)
	localAggs, mergeAggs, ok := splitAggs(agg.Aggs, leftTables)
	if !ok {
		return n
	}

	local := &dialect.Aggregate{Input: agg.Input, GroupBy: agg.GroupBy, Aggs: localAggs}
	return &dialect.Aggregate{Input: local, GroupBy: agg.GroupBy, Aggs: mergeAggs, Having: agg.Having}
}

func splittable(aggs []dialect.AggCall) bool {
	for _, a := range aggs {
		if a.Distinct {
			return false
		}
		switch a.Func {
		case "SUM", "COUNT", "MIN", "MAX":
		default:
			return false
		}
	}
	return true
}

// splitAggs builds the local aggregate list (unchanged functions, each
// given an alias) and a merge-stage list referencing the local aliases:
// SUM/MIN/MAX merge with the same function, while COUNT partials merge
// with SUM.
func splitAggs(aggs []dialect.AggCall, _ tableSet) ([]dialect.AggCall, []dialect.AggCall, bool) {
	local := make([]dialect.AggCall, len(aggs))
	merge := make([]dialect.AggCall, len(aggs))
	for i, a := range aggs {
		alias := a.Alias
		if alias == "" {
			alias = strings.ToLower(a.Func) + "_partial"
		}
		local[i] = dialect.AggCall{Func: a.Func, Arg: a.Arg, Star: a.Star, Alias: alias}
		mergeFunc := a.Func
		if mergeFunc == "COUNT" {
			mergeFunc = "SUM"
		}
		merge[i] = dialect.AggCall{Func: mergeFunc, Arg: &dialect.ColumnRef{Column: alias}, Alias: a.Alias}
	}
	return local, merge, true
}

// --- Rule 6: greedy join reorder --------------------------------------------

// joinReorderGreedy reorders a left-deep chain of inner/cross joins to put
// the smallest estimated cardinality first and greedily attach the next
// smallest at each step. Outer/semi joins are
// left exactly where they are: reordering across them could change row
// semantics, which the rule's invariant forbids.
func joinReorderGreedy(n dialect.Node) dialect.Node {
	n = mapChildren(n, joinReorderGreedy)

	join, ok := n.(*dialect.Join)
	if !ok || (join.Kind != dialect.InnerJoin && join.Kind != dialect.CrossJoin) {
		return n
	}

	leaves, conds, ok := flattenInnerJoinChain(n)
	if !ok || len(leaves) < 2 {
		return n
	}

	leafTables := make([]tableSet, len(leaves))
	for i, l := range leaves {
		leafTables[i] = tableNames(l)
	}

	order := make([]int, len(leaves))
	for i := range order {
		order[i] = i
	}
	sortByEstimatedCardinality(leaves, order)

	result := leaves[order[0]]
	builtTables := tableSet{}
	for t := range leafTables[order[0]] {
		builtTables[t] = true
	}
	remaining := append([]int{}, order[1:]...)
	for len(remaining) > 0 {
		// Prefer a remaining leaf with a join condition against what's
		// already built, to avoid manufacturing a cross product; fall
		// back to the next-smallest leaf otherwise.
		pick := 0
		var pickCond dialect.Expr
		for idx, r := range remaining {
			if cond := conditionBetween(conds, leafTables[r], builtTables); cond != nil {
				pick, pickCond = idx, cond
				break
			}
		}
		next := remaining[pick]
		remaining = append(remaining[:pick], remaining[pick+1:]...)
		kind := dialect.InnerJoin
		if pickCond == nil {
			kind = dialect.CrossJoin
		}
		result = &dialect.Join{Left: result, Right: leaves[next], Kind: kind, Condition: pickCond}
		for t := range leafTables[next] {
			builtTables[t] = true
		}
	}
	return result
}

type joinCond struct {
	expr  dialect.Expr
	left  tableSet
	right tableSet
}

// conditionBetween finds a join condition whose two sides each fall
// entirely within one of {candidate, built}, i.e. a condition that
// correctly connects the candidate leaf to what's already been joined.
func conditionBetween(conds []joinCond, candidate, built tableSet) dialect.Expr {
	for _, c := range conds {
		if (c.left.subsetOf(candidate) && c.right.subsetOf(built)) ||
			(c.left.subsetOf(built) && c.right.subsetOf(candidate)) {
			return c.expr
		}
	}
	return nil
}

// flattenInnerJoinChain collects every leaf of a pure inner/cross join
// chain rooted at n, plus every join condition found, so the chain can be
// rebuilt in a different order.
func flattenInnerJoinChain(n dialect.Node) ([]dialect.Node, []joinCond, bool) {
	var leaves []dialect.Node
	var conds []joinCond
	var walk func(dialect.Node) bool
	walk = func(node dialect.Node) bool {
		j, ok := node.(*dialect.Join)
		if !ok {
			leaves = append(leaves, node)
			return true
		}
		if j.Kind != dialect.InnerJoin && j.Kind != dialect.CrossJoin {
			return false
		}
		if !walk(j.Left) || !walk(j.Right) {
			return false
		}
		if j.Condition != nil {
			conds = append(conds, joinCond{expr: j.Condition, left: tableNames(j.Left), right: tableNames(j.Right)})
		}
		return true
	}
	if !walk(n) {
		return nil, nil, false
	}
	return leaves, conds, true
}

// sortByEstimatedCardinality orders indices into leaves by ascending
// estimated row count (Scan table-name length as a cheap, catalog-free
// proxy used only to pick a deterministic, stable order when no
// statistics are threaded through at this stage; the CBO phase re-costs
// the chosen shape against real statistics).
func sortByEstimatedCardinality(leaves []dialect.Node, order []int) {
	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && leafWeight(leaves[order[j-1]]) > leafWeight(leaves[order[j]]) {
			order[j-1], order[j] = order[j], order[j-1]
			j--
		}
	}
}

func leafWeight(n dialect.Node) int {
	switch x := n.(type) {
	case *dialect.Scan:
		return len(x.Table)
	default:
		return 0
	}
}

// mapChildren rebuilds n with fn applied to each immediate relational
// child, leaving n's own fields otherwise identical; scalar Expr subtrees
// are never touched by mapChildren (rules that need to rewrite expressions
// do so directly on the node they visit).
func mapChildren(n dialect.Node, fn func(dialect.Node) dialect.Node) dialect.Node {
	switch x := n.(type) {
	case *dialect.Filter:
		return &dialect.Filter{Input: fn(x.Input), Predicate: x.Predicate}
	case *dialect.Project:
		return &dialect.Project{Input: fn(x.Input), Items: x.Items, Distinct: x.Distinct}
	case *dialect.Join:
		return &dialect.Join{Left: fn(x.Left), Right: fn(x.Right), Kind: x.Kind, Condition: x.Condition}
	case *dialect.Aggregate:
		return &dialect.Aggregate{Input: fn(x.Input), GroupBy: x.GroupBy, Aggs: x.Aggs, Having: x.Having}
	case *dialect.Sort:
		return &dialect.Sort{Input: fn(x.Input), Keys: x.Keys}
	case *dialect.Limit:
		return &dialect.Limit{Input: fn(x.Input), Count: x.Count, Offset: x.Offset, HasCount: x.HasCount, HasOffset: x.HasOffset}
	case *dialect.SetOp:
		return &dialect.SetOp{Left: fn(x.Left), Right: fn(x.Right), Kind: x.Kind}
	case *dialect.Subquery:
		return &dialect.Subquery{Query: &dialect.LogicalTree{Root: fn(x.Query.Root)}, Alias: x.Alias}
	default:
		return n
	}
}
