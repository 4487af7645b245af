package dialect

import (
	"fmt"
	"strings"

	"github.com/intellisql/intellisql/internal/core"
)

// Unparser renders a LogicalTree back into SQL text for one target dialect,
// the mirror image of Parser: where Parser turns dialect-specific syntax
// into the shared tree, Unparser turns the shared tree back into one
// dialect's syntax via its DialectConverter profile (spec.md §4.1).
type Unparser struct {
	conv DialectConverter
}

// NewUnparser returns an Unparser targeting d.
func NewUnparser(d Dialect) (*Unparser, error) {
	conv, err := GetDialectConverter(d)
	if err != nil {
		return nil, core.NewErrorf(core.KindUnsupportedFeature, "%s", err)
	}
	return &Unparser{conv: conv}, nil
}

// Unparse renders tree as a single SQL statement in the target dialect.
func (u *Unparser) Unparse(tree *LogicalTree) (string, error) {
	return u.unparseNode(tree.Root)
}

func (u *Unparser) unparseNode(n Node) (string, error) {
	switch node := n.(type) {
	case *SetOp:
		left, err := u.unparseNode(node.Left)
		if err != nil {
			return "", err
		}
		right, err := u.unparseNode(node.Right)
		if err != nil {
			return "", err
		}
		op := setOpKeyword(node.Kind)
		return fmt.Sprintf("%s %s %s", left, op, right), nil

	case *Limit:
		inner, hasLimit, limit, hasOffset, offset, err := u.unparseSelectBody(node)
		if err != nil {
			return "", err
		}
		return u.conv.UnparsePagination(inner, hasLimit, limit, hasOffset, offset), nil

	default:
		body, _, _, _, _, err := u.unparseSelectBody(n)
		if err != nil {
			return "", err
		}
		return body, nil
	}
}

// unparseSelectBody renders everything through ORDER BY, returning the
// pagination parameters separately so the caller (which may be the Limit
// case above, or a bare Sort/Project with no Limit at all) can hand them to
// UnparsePagination uniformly.
func (u *Unparser) unparseSelectBody(n Node) (sql string, hasLimit bool, limit int64, hasOffset bool, offset int64, err error) {
	if lim, ok := n.(*Limit); ok {
		inner, _, _, _, _, innerErr := u.unparseSelectBody(lim.Input)
		if innerErr != nil {
			return "", false, 0, false, 0, innerErr
		}
		return inner, lim.HasCount, lim.Count, lim.HasOffset, lim.Offset, nil
	}

	var sortKeys []SortKey
	rest := n
	if sort, ok := n.(*Sort); ok {
		sortKeys = sort.Keys
		rest = sort.Input
	}

	body, aggErr := u.renderSelectCore(rest)
	if aggErr != nil {
		return "", false, 0, false, 0, aggErr
	}

	if len(sortKeys) > 0 {
		clauses := make([]string, len(sortKeys))
		for i, k := range sortKeys {
			expr, exprErr := u.unparseExpr(k.Expr)
			if exprErr != nil {
				return "", false, 0, false, 0, exprErr
			}
			if k.Descending {
				clauses[i] = expr + " DESC"
			} else {
				clauses[i] = expr + " ASC"
			}
		}
		body = body + " ORDER BY " + strings.Join(clauses, ", ")
	}
	return body, false, 0, false, 0, nil
}

// renderSelectCore renders a Project/Aggregate/Filter/Join/Scan/Subquery
// chain as one SELECT statement body (through GROUP BY/HAVING, no ORDER BY
// or pagination).
func (u *Unparser) renderSelectCore(n Node) (string, error) {
	switch node := n.(type) {
	case *Project:
		from, where, err := u.unparseFromWhere(node.Input)
		if err != nil {
			return "", err
		}
		items, err := u.unparseProjectItems(node.Items)
		if err != nil {
			return "", err
		}
		distinct := ""
		if node.Distinct {
			distinct = "DISTINCT "
		}
		sql := fmt.Sprintf("SELECT %s%s", distinct, items)
		if from != "" {
			sql += " FROM " + from
		}
		if where != "" {
			sql += " WHERE " + where
		}
		return sql, nil

	case *Aggregate:
		from, where, err := u.unparseFromWhere(node.Input)
		if err != nil {
			return "", err
		}
		selectItems, err := u.unparseAggregateItems(node)
		if err != nil {
			return "", err
		}
		sql := "SELECT " + selectItems
		if from != "" {
			sql += " FROM " + from
		}
		if where != "" {
			sql += " WHERE " + where
		}
		if len(node.GroupBy) > 0 {
			groupExprs := make([]string, len(node.GroupBy))
			for i, g := range node.GroupBy {
				ge, err := u.unparseExpr(g)
				if err != nil {
					return "", err
				}
				groupExprs[i] = ge
			}
			sql += " GROUP BY " + strings.Join(groupExprs, ", ")
		}
		if node.Having != nil {
			having, err := u.unparseExpr(node.Having)
			if err != nil {
				return "", err
			}
			sql += " HAVING " + having
		}
		return sql, nil

	default:
		// A bare relational source used as a top-level statement (e.g. a
		// Scan with no Project above it): render as SELECT * FROM source.
		from, where, err := u.unparseFromWhere(n)
		if err != nil {
			return "", err
		}
		sql := "SELECT *"
		if from != "" {
			sql += " FROM " + from
		}
		if where != "" {
			sql += " WHERE " + where
		}
		return sql, nil
	}
}

// unparseFromWhere splits a Filter-over-relational-source chain into its
// FROM clause text and WHERE predicate text.
func (u *Unparser) unparseFromWhere(n Node) (from, where string, err error) {
	if f, ok := n.(*Filter); ok {
		from, _, err = u.unparseFromWhere(f.Input)
		if err != nil {
			return "", "", err
		}
		where, err = u.unparseExpr(f.Predicate)
		return from, where, err
	}
	from, err = u.unparseSource(n)
	return from, "", err
}

func (u *Unparser) unparseSource(n Node) (string, error) {
	switch node := n.(type) {
	case *Scan:
		name := u.conv.QuoteIdentifier(node.Table)
		if node.Schema != "" {
			name = u.conv.QuoteIdentifier(node.Schema) + "." + name
		}
		if node.Alias != "" && node.Alias != node.Table {
			name += " " + u.conv.QuoteIdentifier(node.Alias)
		}
		return name, nil

	case *Join:
		left, err := u.unparseSource(node.Left)
		if err != nil {
			return "", err
		}
		right, err := u.unparseSource(node.Right)
		if err != nil {
			return "", err
		}
		kw := joinKeyword(node.Kind)
		if node.Kind == CrossJoin || node.Condition == nil {
			return fmt.Sprintf("%s %s %s", left, kw, right), nil
		}
		cond, err := u.unparseExpr(node.Condition)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s ON %s", left, kw, right, cond), nil

	case *Subquery:
		inner, err := u.unparseNode(node.Query.Root)
		if err != nil {
			return "", err
		}
		alias := node.Alias
		if alias == "" {
			return fmt.Sprintf("(%s)", inner), nil
		}
		return fmt.Sprintf("(%s) %s", inner, u.conv.QuoteIdentifier(alias)), nil

	default:
		return "", core.NewErrorf(core.KindInternalError, "cannot unparse %T as a relational source", n)
	}
}

func (u *Unparser) unparseProjectItems(items []ProjectItem) (string, error) {
	parts := make([]string, len(items))
	for i, item := range items {
		if ref, ok := item.Expr.(*ColumnRef); ok && ref.Column == "*" {
			if ref.Table != "" {
				parts[i] = u.conv.QuoteIdentifier(ref.Table) + ".*"
			} else {
				parts[i] = "*"
			}
			continue
		}
		expr, err := u.unparseExpr(item.Expr)
		if err != nil {
			return "", err
		}
		if item.Alias != "" {
			expr += " AS " + u.conv.QuoteIdentifier(item.Alias)
		}
		parts[i] = expr
	}
	return strings.Join(parts, ", "), nil
}

func (u *Unparser) unparseAggregateItems(agg *Aggregate) (string, error) {
	var parts []string
	for i := range agg.GroupBy {
		expr, err := u.unparseExpr(agg.GroupBy[i])
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}
	for _, call := range agg.Aggs {
		var argText string
		if call.Star {
			argText = "*"
		} else if call.Arg != nil {
			expr, err := u.unparseExpr(call.Arg)
			if err != nil {
				return "", err
			}
			argText = expr
		}
		distinct := ""
		if call.Distinct {
			distinct = "DISTINCT "
		}
		text := fmt.Sprintf("%s(%s%s)", call.Func, distinct, argText)
		if call.Alias != "" {
			text += " AS " + u.conv.QuoteIdentifier(call.Alias)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ", "), nil
}

func (u *Unparser) unparseExpr(e Expr) (string, error) {
	switch ex := e.(type) {
	case *ColumnRef:
		name := u.conv.QuoteIdentifier(ex.Column)
		if ex.Table != "" {
			name = u.conv.QuoteIdentifier(ex.Table) + "." + name
		}
		return name, nil

	case *Literal:
		switch ex.Kind {
		case LiteralString:
			return "'" + strings.ReplaceAll(ex.Value, "'", "''") + "'", nil
		case LiteralNull:
			return "NULL", nil
		case LiteralParam:
			return ex.Value, nil
		default:
			return ex.Value, nil
		}

	case *BinaryExpr:
		left, err := u.unparseExpr(ex.Left)
		if err != nil {
			return "", err
		}
		right, err := u.unparseExpr(ex.Right)
		if err != nil {
			return "", err
		}
		switch ex.Op {
		case "IN_SUBQUERY":
			return fmt.Sprintf("%s IN %s", left, right), nil
		default:
			return fmt.Sprintf("(%s %s %s)", left, ex.Op, right), nil
		}

	case *UnaryExpr:
		operand, err := u.unparseExpr(ex.Operand)
		if err != nil {
			return "", err
		}
		switch ex.Op {
		case "ISNULL":
			return operand + " IS NULL", nil
		case "ISNOTNULL":
			return operand + " IS NOT NULL", nil
		case "NOT":
			return "NOT " + operand, nil
		case "-":
			return "-" + operand, nil
		default:
			return ex.Op + " " + operand, nil
		}

	case *FuncCall:
		name, args, err := u.unparseFuncName(ex)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", name, args), nil

	case *CaseExpr:
		var b strings.Builder
		b.WriteString("CASE")
		if ex.Operand != nil {
			operand, err := u.unparseExpr(ex.Operand)
			if err != nil {
				return "", err
			}
			b.WriteString(" " + operand)
		}
		for _, w := range ex.Whens {
			when, err := u.unparseExpr(w.When)
			if err != nil {
				return "", err
			}
			then, err := u.unparseExpr(w.Then)
			if err != nil {
				return "", err
			}
			b.WriteString(fmt.Sprintf(" WHEN %s THEN %s", when, then))
		}
		if ex.Else != nil {
			els, err := u.unparseExpr(ex.Else)
			if err != nil {
				return "", err
			}
			b.WriteString(" ELSE " + els)
		}
		b.WriteString(" END")
		return b.String(), nil

	case *CastExpr:
		operand, err := u.unparseExpr(ex.Operand)
		if err != nil {
			return "", err
		}
		return u.conv.UnparseCast(operand, ex.TypeName), nil

	case *SubqueryExpr:
		inner, err := u.unparseNode(ex.Query.Root)
		if err != nil {
			return "", err
		}
		if ex.Exists {
			return fmt.Sprintf("EXISTS (%s)", inner), nil
		}
		return fmt.Sprintf("(%s)", inner), nil

	default:
		return "", core.NewErrorf(core.KindInternalError, "cannot unparse expression %T", e)
	}
}

// unparseFuncName resolves the dialect-specific spelling of COALESCE/NOW
// (via the DialectConverter) and renders every other function name as-is.
func (u *Unparser) unparseFuncName(call *FuncCall) (name, args string, err error) {
	upper := strings.ToUpper(call.Name)
	switch upper {
	case "COALESCE", "IFNULL", "NVL", "ISNULL":
		name = u.conv.CoalesceFunctionName()
	case "NOW", "SYSDATE", "GETDATE", "CURRENT_TIMESTAMP":
		name = u.conv.NowFunctionName()
		return name, "", nil
	default:
		name = call.Name
	}
	parts := make([]string, len(call.Args))
	for i, a := range call.Args {
		s, aerr := u.unparseExpr(a)
		if aerr != nil {
			return "", "", aerr
		}
		parts[i] = s
	}
	return name, strings.Join(parts, ", "), nil
}

func joinKeyword(k JoinKind) string {
	switch k {
	case InnerJoin:
		return "INNER JOIN"
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL JOIN"
	case SemiJoin:
		return "INNER JOIN" // flattened semi-join, filtered upstream by the optimizer
	case CrossJoin:
		return "CROSS JOIN"
	default:
		return "JOIN"
	}
}

func setOpKeyword(k SetOpKind) string {
	switch k {
	case UnionAll:
		return "UNION ALL"
	case UnionDistinct:
		return "UNION"
	case Intersect:
		return "INTERSECT"
	case Except:
		return "EXCEPT"
	default:
		return "UNION"
	}
}
