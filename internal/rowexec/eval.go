package rowexec

import (
	"strconv"
	"strings"
	"time"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
	"github.com/intellisql/intellisql/internal/dialect"
	"github.com/shopspring/decimal"
)

// resolveColumn finds the ordinal of a ColumnRef against a schema, matching
// by table qualifier when one was given (qualifier match is case-insensitive,
// mirroring SQL identifier folding), and by name alone otherwise.
func resolveColumn(sch core.Schema, ref *dialect.ColumnRef) (int, error) {
	if ref.Table != "" {
		for i, c := range sch {
			if strings.EqualFold(c.Table, ref.Table) && strings.EqualFold(c.Name, ref.Column) {
				return i, nil
			}
		}
	}
	if i := sch.IndexOf(ref.Column); i >= 0 {
		return i, nil
	}
	return -1, core.NewErrorf(core.KindValidationError, "unknown column %q", ref.Column)
}

// evalExpr evaluates a scalar expression against one row under sch, the
// schema the row's values are ordered by.
func evalExpr(ctx *core.Context, e dialect.Expr, row core.Row, sch core.Schema) (types.Value, error) {
	switch x := e.(type) {
	case *dialect.ColumnRef:
		i, err := resolveColumn(sch, x)
		if err != nil {
			return types.Value{}, err
		}
		return row[i], nil

	case *dialect.Literal:
		return evalLiteral(x)

	case *dialect.UnaryExpr:
		return evalUnary(ctx, x, row, sch)

	case *dialect.BinaryExpr:
		return evalBinary(ctx, x, row, sch)

	case *dialect.CaseExpr:
		return evalCase(ctx, x, row, sch)

	case *dialect.CastExpr:
		return evalCast(ctx, x, row, sch)

	case *dialect.FuncCall:
		return evalScalarFunc(ctx, x, row, sch)

	case *dialect.SubqueryExpr:
		// Correlated and scalar subqueries reaching execution mean the
		// rule-based rewrite couldn't fold them into a join (see
		// optimizer's subqueryRewrite): evaluating them here would require
		// re-running the full optimize/execute pipeline per outer row,
		// which is out of scope.
		return types.Value{}, core.NewErrorf(core.KindUnsupportedFeature, "correlated or scalar subqueries are not supported at execution time")

	default:
		return types.Value{}, core.NewErrorf(core.KindInternalError, "rowexec: unsupported expression %T", e)
	}
}

func evalLiteral(l *dialect.Literal) (types.Value, error) {
	switch l.Kind {
	case dialect.LiteralNull:
		return types.NullValue(types.Unknown), nil
	case dialect.LiteralInt:
		n, err := strconv.ParseInt(l.Value, 10, 64)
		if err != nil {
			return types.Value{}, core.NewErrorf(core.KindValidationError, "invalid integer literal %q", l.Value)
		}
		return types.NewValue(types.Int64, n), nil
	case dialect.LiteralFloat:
		f, err := strconv.ParseFloat(l.Value, 64)
		if err != nil {
			return types.Value{}, core.NewErrorf(core.KindValidationError, "invalid float literal %q", l.Value)
		}
		return types.NewValue(types.Float64, f), nil
	case dialect.LiteralBool:
		b := strings.EqualFold(l.Value, "true")
		return types.NewValue(types.Boolean, b), nil
	case dialect.LiteralString:
		return types.NewValue(types.String, l.Value), nil
	case dialect.LiteralParam:
		return types.Value{}, core.NewErrorf(core.KindInternalError, "rowexec: unbound bind parameter reached execution")
	default:
		return types.Value{}, core.NewErrorf(core.KindInternalError, "rowexec: unknown literal kind")
	}
}

func evalUnary(ctx *core.Context, x *dialect.UnaryExpr, row core.Row, sch core.Schema) (types.Value, error) {
	v, err := evalExpr(ctx, x.Operand, row, sch)
	if err != nil {
		return types.Value{}, err
	}
	switch strings.ToUpper(x.Op) {
	case "ISNULL":
		return types.NewValue(types.Boolean, v.Null), nil
	case "ISNOTNULL":
		return types.NewValue(types.Boolean, !v.Null), nil
	case "NOT":
		return types.NewValue(types.Boolean, v.Null || !truthy(v)), nil
	case "-":
		if v.Null {
			return v, nil
		}
		f, err := toFloat64(v.Native)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewValue(v.Kind, -f), nil
	default:
		return types.Value{}, core.NewErrorf(core.KindUnsupportedFeature, "unsupported unary operator %q", x.Op)
	}
}

func evalBinary(ctx *core.Context, x *dialect.BinaryExpr, row core.Row, sch core.Schema) (types.Value, error) {
	op := strings.ToUpper(x.Op)

	// Short-circuit AND/OR so a NULL or false left side skips evaluating a
	// right side that might itself fail (e.g. a residual predicate probing
	// an out-of-range index after a false left conjunct).
	if op == "AND" {
		l, err := evalExpr(ctx, x.Left, row, sch)
		if err != nil {
			return types.Value{}, err
		}
		if !l.Null && !truthy(l) {
			return types.NewValue(types.Boolean, false), nil
		}
		r, err := evalExpr(ctx, x.Right, row, sch)
		if err != nil {
			return types.Value{}, err
		}
		if !r.Null && !truthy(r) {
			return types.NewValue(types.Boolean, false), nil
		}
		if l.Null || r.Null {
			return types.NullValue(types.Boolean), nil
		}
		return types.NewValue(types.Boolean, true), nil
	}
	if op == "OR" {
		l, err := evalExpr(ctx, x.Left, row, sch)
		if err != nil {
			return types.Value{}, err
		}
		if !l.Null && truthy(l) {
			return types.NewValue(types.Boolean, true), nil
		}
		r, err := evalExpr(ctx, x.Right, row, sch)
		if err != nil {
			return types.Value{}, err
		}
		if !r.Null && truthy(r) {
			return types.NewValue(types.Boolean, true), nil
		}
		if l.Null || r.Null {
			return types.NullValue(types.Boolean), nil
		}
		return types.NewValue(types.Boolean, false), nil
	}

	l, err := evalExpr(ctx, x.Left, row, sch)
	if err != nil {
		return types.Value{}, err
	}
	r, err := evalExpr(ctx, x.Right, row, sch)
	if err != nil {
		return types.Value{}, err
	}

	switch op {
	case "=", "!=", "<>", "<", "<=", ">", ">=":
		if l.Null || r.Null {
			return types.NullValue(types.Boolean), nil
		}
		cmp, err := compareValues(l, r)
		if err != nil {
			return types.Value{}, err
		}
		var out bool
		switch op {
		case "=":
			out = cmp == 0
		case "!=", "<>":
			out = cmp != 0
		case "<":
			out = cmp < 0
		case "<=":
			out = cmp <= 0
		case ">":
			out = cmp > 0
		case ">=":
			out = cmp >= 0
		}
		return types.NewValue(types.Boolean, out), nil

	case "LIKE":
		if l.Null || r.Null {
			return types.NullValue(types.Boolean), nil
		}
		return types.NewValue(types.Boolean, likeMatch(asString(l), asString(r))), nil

	case "+", "-", "*", "/", "%":
		if l.Null || r.Null {
			return types.NullValue(types.Int64), nil
		}
		return arith(op, l, r)

	default:
		return types.Value{}, core.NewErrorf(core.KindUnsupportedFeature, "unsupported binary operator %q", x.Op)
	}
}

func arith(op string, l, r types.Value) (types.Value, error) {
	lf, err := toFloat64(l.Native)
	if err != nil {
		return types.Value{}, err
	}
	rf, err := toFloat64(r.Native)
	if err != nil {
		return types.Value{}, err
	}
	kind, _ := types.Widen(l.Kind, r.Kind)
	if kind == types.Unknown {
		kind = types.Float64
	}
	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	case "/":
		if rf == 0 {
			return types.Value{}, core.NewErrorf(core.KindValidationError, "division by zero")
		}
		out = lf / rf
	case "%":
		if rf == 0 {
			return types.Value{}, core.NewErrorf(core.KindValidationError, "division by zero")
		}
		out = float64(int64(lf) % int64(rf))
	}
	if kind == types.Int64 || kind == types.Int32 {
		return types.NewValue(kind, int64(out)), nil
	}
	return types.NewValue(types.Float64, out), nil
}

func evalCase(ctx *core.Context, x *dialect.CaseExpr, row core.Row, sch core.Schema) (types.Value, error) {
	var operand types.Value
	if x.Operand != nil {
		v, err := evalExpr(ctx, x.Operand, row, sch)
		if err != nil {
			return types.Value{}, err
		}
		operand = v
	}
	for _, w := range x.Whens {
		if x.Operand != nil {
			cv, err := evalExpr(ctx, w.When, row, sch)
			if err != nil {
				return types.Value{}, err
			}
			if operand.Null || cv.Null {
				continue
			}
			cmp, err := compareValues(operand, cv)
			if err != nil {
				return types.Value{}, err
			}
			if cmp != 0 {
				continue
			}
			return evalExpr(ctx, w.Then, row, sch)
		}
		cond, err := evalExpr(ctx, w.When, row, sch)
		if err != nil {
			return types.Value{}, err
		}
		if !cond.Null && truthy(cond) {
			return evalExpr(ctx, w.Then, row, sch)
		}
	}
	if x.Else != nil {
		return evalExpr(ctx, x.Else, row, sch)
	}
	return types.NullValue(types.Unknown), nil
}

func evalCast(ctx *core.Context, x *dialect.CastExpr, row core.Row, sch core.Schema) (types.Value, error) {
	v, err := evalExpr(ctx, x.Operand, row, sch)
	if err != nil {
		return types.Value{}, err
	}
	kind, ok := types.ParseKind(strings.ToLower(x.TypeName))
	if !ok {
		return types.Value{}, core.NewErrorf(core.KindTypeNotSupported, "unsupported cast target type %q", x.TypeName)
	}
	if v.Null {
		return types.NullValue(kind), nil
	}
	return castValue(v, kind)
}

func castValue(v types.Value, kind types.Kind) (types.Value, error) {
	switch kind {
	case types.String:
		return types.NewValue(types.String, asString(v)), nil
	case types.Int32, types.Int64:
		f, err := toFloat64(v.Native)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewValue(kind, int64(f)), nil
	case types.Float64:
		f, err := toFloat64(v.Native)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewValue(types.Float64, f), nil
	case types.Decimal:
		f, err := toFloat64(v.Native)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewValue(types.Decimal, decimal.NewFromFloat(f)), nil
	case types.Boolean:
		return types.NewValue(types.Boolean, truthy(v)), nil
	default:
		return v, nil
	}
}

func evalScalarFunc(ctx *core.Context, x *dialect.FuncCall, row core.Row, sch core.Schema) (types.Value, error) {
	name := strings.ToUpper(x.Name)
	args := make([]types.Value, len(x.Args))
	for i, a := range x.Args {
		v, err := evalExpr(ctx, a, row, sch)
		if err != nil {
			return types.Value{}, err
		}
		args[i] = v
	}
	switch name {
	case "UPPER":
		if len(args) != 1 || args[0].Null {
			return types.NullValue(types.String), nil
		}
		return types.NewValue(types.String, strings.ToUpper(asString(args[0]))), nil
	case "LOWER":
		if len(args) != 1 || args[0].Null {
			return types.NullValue(types.String), nil
		}
		return types.NewValue(types.String, strings.ToLower(asString(args[0]))), nil
	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			if !a.Null {
				sb.WriteString(asString(a))
			}
		}
		return types.NewValue(types.String, sb.String()), nil
	case "TRIM":
		if len(args) != 1 || args[0].Null {
			return types.NullValue(types.String), nil
		}
		return types.NewValue(types.String, strings.TrimSpace(asString(args[0]))), nil
	case "SUBSTRING":
		if len(args) < 2 || args[0].Null {
			return types.NullValue(types.String), nil
		}
		s := asString(args[0])
		start, _ := toFloat64(args[1].Native)
		begin := int(start) - 1
		if begin < 0 {
			begin = 0
		}
		if begin > len(s) {
			begin = len(s)
		}
		end := len(s)
		if len(args) >= 3 && !args[2].Null {
			length, _ := toFloat64(args[2].Native)
			end = begin + int(length)
			if end > len(s) {
				end = len(s)
			}
		}
		if end < begin {
			end = begin
		}
		return types.NewValue(types.String, s[begin:end]), nil
	case "NOW", "CURRENT_TIMESTAMP":
		return types.NewValue(types.Timestamp, time.Now().UTC()), nil
	case "COALESCE":
		for _, a := range args {
			if !a.Null {
				return a, nil
			}
		}
		return types.NullValue(types.Unknown), nil
	default:
		return types.Value{}, core.NewErrorf(core.KindUnsupportedFeature, "unsupported function %q", x.Name)
	}
}

// truthy reports whether a non-null Value counts as SQL true.
func truthy(v types.Value) bool {
	if v.Null {
		return false
	}
	switch n := v.Native.(type) {
	case bool:
		return n
	default:
		f, err := toFloat64(v.Native)
		return err == nil && f != 0
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, core.NewErrorf(core.KindValidationError, "cannot convert %q to a number", n)
		}
		return f, nil
	default:
		return 0, core.NewErrorf(core.KindValidationError, "cannot convert %T to a number", v)
	}
}

func asString(v types.Value) string {
	if v.Null {
		return ""
	}
	return v.String()
}

// compareValues orders two non-null values of compatible kinds, widening
// numeric kinds and comparing times/decimals on their own terms rather than
// through a lossy float64 cast.
func compareValues(a, b types.Value) (int, error) {
	if at, ok := a.Native.(time.Time); ok {
		if bt, ok := b.Native.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1, nil
			case at.After(bt):
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if ad, ok := a.Native.(decimal.Decimal); ok {
		bf, err := toFloat64(b.Native)
		if err != nil {
			return 0, err
		}
		return ad.Cmp(decimal.NewFromFloat(bf)), nil
	}
	if bd, ok := b.Native.(decimal.Decimal); ok {
		af, err := toFloat64(a.Native)
		if err != nil {
			return 0, err
		}
		return decimal.NewFromFloat(af).Cmp(bd), nil
	}
	if as, ok := a.Native.(string); ok {
		if bs, ok := b.Native.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	af, err := toFloat64(a.Native)
	if err != nil {
		return 0, err
	}
	bf, err := toFloat64(b.Native)
	if err != nil {
		return 0, err
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

// likeMatch implements SQL LIKE's %/_ wildcards over a literal pattern.
func likeMatch(s, pattern string) bool {
	return likeMatchRunes([]rune(s), []rune(pattern))
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		for i := 0; i <= len(s); i++ {
			if likeMatchRunes(s[i:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	}
}
