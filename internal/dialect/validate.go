package dialect

import (
	"strconv"
	"strings"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
)

// Validator binds identifiers and infers/coerces expression types over a
// LogicalTree. Arithmetic operands are widened with types.Widen and fail
// with a ValidationError only when the two kinds have no common type; no
// check for lossy narrowing is made.
type Validator struct {
	Catalog       *catalog.Catalog
	DefaultSource string
	DefaultSchema string
}

// NewValidator returns a Validator bound to cat, resolving unqualified
// source/schema references against the given defaults.
func NewValidator(cat *catalog.Catalog, defaultSource, defaultSchema string) *Validator {
	return &Validator{Catalog: cat, DefaultSource: defaultSource, DefaultSchema: defaultSchema}
}

// Validate walks tree, resolving every Scan against the catalog and every
// ColumnRef against the tables visible at that point, and checking type
// coercions per spec.md §4.1. It returns the output Schema of the tree's
// root on success.
func (v *Validator) Validate(tree *LogicalTree) (core.Schema, error) {
	_, schema, err := v.validateNode(tree.Root)
	return schema, err
}

// tableRef is one named relation visible for unqualified column
// resolution: either a real catalog table (from a Scan) or a synthetic one
// standing in for a subquery's aliased output schema.
type tableRef struct {
	name    string
	alias   string
	columns core.Schema
}

// scope is the set of tables visible for unqualified column resolution at
// a given point in the tree.
type scope struct {
	refs []tableRef
}

func (v *Validator) validateNode(n Node) (*scope, core.Schema, error) {
	switch node := n.(type) {
	case *Scan:
		source := node.Source
		if source == "" {
			source = v.DefaultSource
		}
		schemaName := node.Schema
		if schemaName == "" {
			schemaName = v.DefaultSchema
		}
		table, err := v.Catalog.Table(source, schemaName, node.Table)
		if err != nil {
			names, _ := v.Catalog.Tables(source, schemaName, "")
			return nil, nil, core.NewErrorf(core.KindUnknownTable, "unknown table %q%s", node.Table, suggestTableName(names, node.Table))
		}
		alias := node.Alias
		if alias == "" {
			alias = node.Table
		}
		return &scope{refs: []tableRef{{name: node.Table, alias: alias, columns: table.Columns}}}, table.Columns, nil

	case *Filter:
		childScope, schema, err := v.validateNode(node.Input)
		if err != nil {
			return nil, nil, err
		}
		if _, err := v.inferExpr(node.Predicate, childScope); err != nil {
			return nil, nil, err
		}
		return childScope, schema, nil

	case *Project:
		childScope, _, err := v.validateNode(node.Input)
		if err != nil {
			return nil, nil, err
		}
		var out core.Schema
		for i, item := range node.Items {
			if ref, ok := item.Expr.(*ColumnRef); ok && ref.Column == "*" {
				out = append(out, childScope.allColumns(ref.Table)...)
				continue
			}
			kind, err := v.inferExpr(item.Expr, childScope)
			if err != nil {
				return nil, nil, err
			}
			name := item.Alias
			if name == "" {
				if ref, ok := item.Expr.(*ColumnRef); ok {
					name = ref.Column
				} else {
					name = "col" + strconv.Itoa(i)
				}
			}
			out = append(out, &core.Column{Name: name, Ordinal: len(out), Kind: kind, Nullable: true})
		}
		return childScope, out, nil

	case *Join:
		leftScope, leftSchema, err := v.validateNode(node.Left)
		if err != nil {
			return nil, nil, err
		}
		rightScope, rightSchema, err := v.validateNode(node.Right)
		if err != nil {
			return nil, nil, err
		}
		merged := &scope{refs: append(append([]tableRef{}, leftScope.refs...), rightScope.refs...)}
		if node.Condition != nil {
			if _, err := v.inferExpr(node.Condition, merged); err != nil {
				return nil, nil, err
			}
		}
		out := append(append(core.Schema{}, leftSchema...), rightSchema...)
		return merged, out, nil

	case *Aggregate:
		childScope, _, err := v.validateNode(node.Input)
		if err != nil {
			return nil, nil, err
		}
		for _, g := range node.GroupBy {
			if _, err := v.inferExpr(g, childScope); err != nil {
				return nil, nil, err
			}
		}
		var out core.Schema
		for i := range node.GroupBy {
			out = append(out, &core.Column{Name: "group" + strconv.Itoa(i), Ordinal: len(out), Kind: types.Unknown, Nullable: true})
		}
		for _, agg := range node.Aggs {
			kind := types.Int64
			if agg.Func == "AVG" {
				kind = types.Float64
			}
			name := agg.Alias
			if name == "" {
				name = strings.ToLower(agg.Func)
			}
			out = append(out, &core.Column{Name: name, Ordinal: len(out), Kind: kind, Nullable: true})
			if agg.Arg != nil {
				if _, err := v.inferExpr(agg.Arg, childScope); err != nil {
					return nil, nil, err
				}
			}
		}
		if node.Having != nil {
			if _, err := v.inferExpr(node.Having, childScope); err != nil {
				return nil, nil, err
			}
		}
		return childScope, out, nil

	case *Sort:
		childScope, schema, err := v.validateNode(node.Input)
		if err != nil {
			return nil, nil, err
		}
		for _, k := range node.Keys {
			if _, err := v.inferExpr(k.Expr, childScope); err != nil {
				return nil, nil, err
			}
		}
		return childScope, schema, nil

	case *Limit:
		return v.validateNode(node.Input)

	case *SetOp:
		leftScope, leftSchema, err := v.validateNode(node.Left)
		if err != nil {
			return nil, nil, err
		}
		_, rightSchema, err := v.validateNode(node.Right)
		if err != nil {
			return nil, nil, err
		}
		if len(leftSchema) != len(rightSchema) {
			return nil, nil, core.NewErrorf(core.KindValidationError, "set operands have mismatched column counts (%d vs %d)", len(leftSchema), len(rightSchema))
		}
		return leftScope, leftSchema, nil

	case *Subquery:
		_, schema, err := v.validateNode(node.Query.Root)
		if err != nil {
			return nil, nil, err
		}
		alias := node.Alias
		if alias == "" {
			alias = "subquery"
		}
		return &scope{refs: []tableRef{{name: alias, alias: alias, columns: schema}}}, schema, nil

	default:
		return nil, nil, core.NewErrorf(core.KindInternalError, "unhandled logical node %T", n)
	}
}

func (s *scope) allColumns(table string) core.Schema {
	var out core.Schema
	for _, r := range s.refs {
		if table != "" && !strings.EqualFold(r.alias, table) && !strings.EqualFold(r.name, table) {
			continue
		}
		out = append(out, r.columns...)
	}
	return out
}

func (s *scope) resolve(table, column string) (*core.Column, error) {
	var candidates []tableRef
	for _, r := range s.refs {
		if table != "" && !strings.EqualFold(r.alias, table) && !strings.EqualFold(r.name, table) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil, core.NewErrorf(core.KindUnknownTable, "unknown table alias %q", table)
	}
	var found *core.Column
	var foundIn string
	for _, r := range candidates {
		for _, c := range r.columns {
			if strings.EqualFold(c.Name, column) {
				if found != nil {
					return nil, core.NewErrorf(core.KindAmbiguousColumn, "column %q is ambiguous between %q and %q", column, foundIn, r.alias)
				}
				found, foundIn = c, r.alias
			}
		}
	}
	if found == nil {
		return nil, core.NewErrorf(core.KindValidationError, "unknown column %q", column)
	}
	return found, nil
}

// inferExpr walks expr, resolving ColumnRefs against sc and applying
// spec.md §4.1's widening/narrowing coercion rules, returning the
// expression's inferred logical type.
func (v *Validator) inferExpr(e Expr, sc *scope) (types.Kind, error) {
	switch ex := e.(type) {
	case *ColumnRef:
		col, err := sc.resolve(ex.Table, ex.Column)
		if err != nil {
			return types.Unknown, err
		}
		return col.Kind, nil

	case *Literal:
		switch ex.Kind {
		case LiteralInt:
			return types.Int64, nil
		case LiteralFloat:
			return types.Float64, nil
		case LiteralString:
			return types.String, nil
		case LiteralBool:
			return types.Boolean, nil
		default:
			return types.Unknown, nil
		}

	case *BinaryExpr:
		lk, err := v.inferExpr(ex.Left, sc)
		if err != nil {
			return types.Unknown, err
		}
		rk, err := v.inferExpr(ex.Right, sc)
		if err != nil {
			return types.Unknown, err
		}
		switch ex.Op {
		case "AND", "OR", "=", "<>", "<", "<=", ">", ">=", "LIKE", "IN_SUBQUERY":
			return types.Boolean, nil
		default:
			if lk == types.Unknown || rk == types.Unknown {
				return types.Unknown, nil
			}
			wide, ok := types.Widen(lk, rk)
			if !ok {
				return types.Unknown, core.NewErrorf(core.KindValidationError, "cannot combine %s and %s without an explicit CAST", lk, rk)
			}
			return wide, nil
		}

	case *UnaryExpr:
		if ex.Op == "ISNULL" || ex.Op == "ISNOTNULL" || ex.Op == "NOT" {
			if _, err := v.inferExpr(ex.Operand, sc); err != nil {
				return types.Unknown, err
			}
			return types.Boolean, nil
		}
		return v.inferExpr(ex.Operand, sc)

	case *FuncCall:
		for _, a := range ex.Args {
			if _, err := v.inferExpr(a, sc); err != nil {
				return types.Unknown, err
			}
		}
		return funcReturnKind(ex.Name), nil

	case *CaseExpr:
		var kind types.Kind = types.Unknown
		for _, w := range ex.Whens {
			if _, err := v.inferExpr(w.When, sc); err != nil {
				return types.Unknown, err
			}
			k, err := v.inferExpr(w.Then, sc)
			if err != nil {
				return types.Unknown, err
			}
			kind = k
		}
		if ex.Else != nil {
			if _, err := v.inferExpr(ex.Else, sc); err != nil {
				return types.Unknown, err
			}
		}
		return kind, nil

	case *CastExpr:
		if _, err := v.inferExpr(ex.Operand, sc); err != nil {
			return types.Unknown, err
		}
		k, ok := types.ParseKind(strings.ToLower(normalizeTypeName(ex.TypeName)))
		if !ok {
			return types.Unknown, core.NewErrorf(core.KindTypeNotSupported, "unsupported cast target type %q", ex.TypeName)
		}
		return k, nil

	case *SubqueryExpr:
		return types.Boolean, nil

	default:
		return types.Unknown, core.NewErrorf(core.KindInternalError, "unhandled expression node %T", e)
	}
}

func funcReturnKind(name string) types.Kind {
	switch strings.ToUpper(name) {
	case "COUNT":
		return types.Int64
	case "AVG":
		return types.Float64
	case "SUM", "MIN", "MAX":
		return types.Unknown
	case "COALESCE", "IFNULL", "NVL", "ISNULL":
		return types.Unknown
	case "NOW", "SYSDATE", "GETDATE", "CURRENT_TIMESTAMP":
		return types.Timestamp
	default:
		return types.Unknown
	}
}

func normalizeTypeName(raw string) string {
	for i, r := range raw {
		if r == ' ' {
			return raw[:i]
		}
	}
	return raw
}

func suggestTableName(tables []*catalog.Table, query string) string {
	var out []string
	for _, t := range tables {
		out = append(out, t.Name)
	}
	return suggestFromNames(out, query)
}
