package dialect

import (
	"fmt"
	"strings"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/dialect/token"
)

// Parser is a recursive-descent parser over the shared token vocabulary,
// accepting the permissive union grammar of spec.md §4.1: every dialect
// extension (backtick/double-quote/bracket identifiers, LIMIT/OFFSET,
// FETCH FIRST n ROWS ONLY, SELECT TOP n, `::`-cast, STRAIGHT_JOIN) is
// accepted regardless of which dialect the text actually came from, exactly
// as spec.md §9 mandates. A RETURNING clause is not accepted.
type Parser struct {
	items []token.Item
	pos   int
	src   string
}

// NewParser tokenizes src and returns a Parser positioned at the first
// token.
func NewParser(src string) *Parser {
	return &Parser{items: token.Tokenize(src), src: src}
}

func (p *Parser) cur() token.Item  { return p.items[p.pos] }
func (p *Parser) peekN(n int) token.Item {
	if p.pos+n >= len(p.items) {
		return p.items[len(p.items)-1]
	}
	return p.items[p.pos+n]
}
func (p *Parser) advance() token.Item {
	it := p.items[p.pos]
	if p.pos < len(p.items)-1 {
		p.pos++
	}
	return it
}

func (p *Parser) is(t token.Token) bool { return p.cur().Type == t }

func (p *Parser) syntaxError(format string, args ...interface{}) error {
	it := p.cur()
	msg := fmt.Sprintf(format, args...)
	snippet, caret := renderSnippet(p.src, it.Pos)
	suggestion := ""
	if it.Type == token.IDENT {
		suggestion = suggestKeyword(it.Value)
	}
	return core.NewErrorf(core.KindSyntaxError,
		"%s at line %d, column %d%s\n%s\n%s",
		msg, it.Pos.Line, it.Pos.Column, suggestion, snippet, caret)
}

// renderSnippet returns the source line containing pos and a caret line
// pointing at pos.Column, the line/column/snippet/caret error-reporting
// invariant spec.md §4.1 requires.
func renderSnippet(src string, pos token.Pos) (string, string) {
	lines := strings.Split(src, "\n")
	idx := pos.Line - 1
	if idx < 0 || idx >= len(lines) {
		return "", ""
	}
	line := lines[idx]
	col := pos.Column - 1
	if col < 0 {
		col = 0
	}
	if col > len(line) {
		col = len(line)
	}
	return line, strings.Repeat(" ", col) + "^"
}

func (p *Parser) expect(t token.Token) (token.Item, error) {
	if !p.is(t) {
		return token.Item{}, p.syntaxError("expected %s, found %q", t, p.cur().Value)
	}
	return p.advance(), nil
}

// Parse parses a single statement from the tokenized source into a
// LogicalTree.
func (p *Parser) Parse() (*LogicalTree, error) {
	root, err := p.parseSetExpr()
	if err != nil {
		return nil, err
	}
	if !p.is(token.EOF) && !p.is(token.SEMICOLON) {
		return nil, p.syntaxError("unexpected trailing input %q", p.cur().Value)
	}
	return &LogicalTree{Root: root}, nil
}

// parseSetExpr parses UNION/UNION ALL/INTERSECT/EXCEPT chains of SELECTs,
// left-associative, all at one precedence level as ANSI SQL does.
func (p *Parser) parseSetExpr() (Node, error) {
	left, err := p.parseSelectOrParen()
	if err != nil {
		return nil, err
	}
	for {
		var kind SetOpKind
		switch {
		case p.is(token.UNION):
			p.advance()
			kind = UnionDistinct
			if p.is(token.ALL) {
				p.advance()
				kind = UnionAll
			}
		case p.is(token.INTERSECT):
			p.advance()
			kind = Intersect
		case p.is(token.EXCEPT):
			p.advance()
			kind = Except
		case p.is(token.MINUS_KW):
			p.advance()
			kind = Except
		default:
			return left, nil
		}
		right, err := p.parseSelectOrParen()
		if err != nil {
			return nil, err
		}
		left = &SetOp{Left: left, Right: right, Kind: kind}
	}
}

func (p *Parser) parseSelectOrParen() (Node, error) {
	if p.is(token.LPAREN) {
		p.advance()
		inner, err := p.parseSetExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseSelectStmt()
}

// parseSelectStmt parses one SELECT statement body: select list, FROM,
// WHERE, GROUP BY/HAVING, ORDER BY, and whichever pagination idiom (LIMIT/
// OFFSET, TOP n, FETCH FIRST) is present.
func (p *Parser) parseSelectStmt() (Node, error) {
	if _, err := p.expect(token.SELECT); err != nil {
		return nil, err
	}

	distinct := false
	if p.is(token.DISTINCT) {
		p.advance()
		distinct = true
	} else if p.is(token.ALL) {
		p.advance()
	}

	var topCount int64
	hasTop := false
	if p.is(token.TOP) {
		p.advance()
		n, err := p.expect(token.INT)
		if err != nil {
			return nil, err
		}
		topCount = parseIntLiteral(n.Value)
		hasTop = true
	}

	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}

	var root Node
	if p.is(token.FROM) {
		p.advance()
		root, err = p.parseFromClause()
		if err != nil {
			return nil, err
		}
	}

	if p.is(token.WHERE) {
		p.advance()
		pred, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		root = &Filter{Input: root, Predicate: pred}
	}

	var groupBy []Expr
	var having Expr
	if p.is(token.GROUP) {
		p.advance()
		if _, err := p.expect(token.BY); err != nil {
			return nil, err
		}
		groupBy, err = p.parseExprList()
		if err != nil {
			return nil, err
		}
		if p.is(token.HAVING) {
			p.advance()
			having, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
	}

	aggs, hasAgg := collectAggregates(items)
	if len(groupBy) > 0 || hasAgg {
		root = &Aggregate{Input: root, GroupBy: groupBy, Aggs: aggs, Having: having}
	} else {
		root = &Project{Input: root, Items: items, Distinct: distinct}
	}

	var sortKeys []SortKey
	if p.is(token.ORDER) {
		p.advance()
		if _, err := p.expect(token.BY); err != nil {
			return nil, err
		}
		sortKeys, err = p.parseOrderList()
		if err != nil {
			return nil, err
		}
		root = &Sort{Input: root, Keys: sortKeys}
	}

	limitNode, err := p.parsePaginationTail(hasTop, topCount)
	if err != nil {
		return nil, err
	}
	if limitNode != nil {
		limitNode.Input = root
		root = limitNode
	}

	return root, nil
}

func collectAggregates(items []ProjectItem) ([]AggCall, bool) {
	var aggs []AggCall
	found := false
	for _, it := range items {
		if fc, ok := it.Expr.(*FuncCall); ok && isAggFunc(fc.Name) {
			found = true
			call := AggCall{Func: strings.ToUpper(fc.Name), Alias: it.Alias}
			if len(fc.Args) > 0 {
				call.Arg = fc.Args[0]
			} else {
				call.Star = true
			}
			aggs = append(aggs, call)
		}
	}
	return aggs, found
}

func isAggFunc(name string) bool {
	switch strings.ToUpper(name) {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return true
	default:
		return false
	}
}

func parseIntLiteral(s string) int64 {
	var n int64
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		n = n*10 + int64(s[i]-'0')
	}
	return n
}

// parsePaginationTail accepts whichever trailing pagination idiom this
// statement used: a previously-parsed "TOP n", "LIMIT n [OFFSET m]",
// "OFFSET m ROWS [FETCH NEXT n ROWS ONLY]", or "FETCH FIRST n ROWS ONLY".
func (p *Parser) parsePaginationTail(hasTop bool, topCount int64) (*Limit, error) {
	if hasTop {
		return &Limit{Count: topCount, HasCount: true}, nil
	}

	if p.is(token.LIMIT) {
		p.advance()
		n, err := p.expect(token.INT)
		if err != nil {
			return nil, err
		}
		lim := &Limit{Count: parseIntLiteral(n.Value), HasCount: true}
		if p.is(token.OFFSET) {
			p.advance()
			m, err := p.expect(token.INT)
			if err != nil {
				return nil, err
			}
			lim.Offset = parseIntLiteral(m.Value)
			lim.HasOffset = true
		}
		return lim, nil
	}

	if p.is(token.OFFSET) {
		p.advance()
		m, err := p.expect(token.INT)
		if err != nil {
			return nil, err
		}
		lim := &Limit{Offset: parseIntLiteral(m.Value), HasOffset: true}
		p.skipIdent("ROWS")
		if p.skipIdent("FETCH") {
			p.skipIdent("NEXT")
			n, err := p.expect(token.INT)
			if err != nil {
				return nil, err
			}
			lim.Count = parseIntLiteral(n.Value)
			lim.HasCount = true
			p.skipIdent("ROWS")
			p.skipIdent("ONLY")
		}
		return lim, nil
	}

	if p.skipIdent("FETCH") {
		p.skipIdent("FIRST")
		p.skipIdent("NEXT")
		n, err := p.expect(token.INT)
		if err != nil {
			return nil, err
		}
		lim := &Limit{Count: parseIntLiteral(n.Value), HasCount: true}
		p.skipIdent("ROWS")
		p.skipIdent("ONLY")
		return lim, nil
	}

	return nil, nil
}

// skipIdent consumes the current token if it is an IDENT matching name
// case-insensitively (used for the unreserved keywords FETCH/FIRST/NEXT/
// ROWS/ONLY, which this grammar doesn't reserve generally).
func (p *Parser) skipIdent(name string) bool {
	cur := p.cur()
	if cur.Type == token.IDENT && strings.EqualFold(cur.Value, name) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) parseSelectList() ([]ProjectItem, error) {
	var items []ProjectItem
	for {
		if p.is(token.ASTERISK) {
			p.advance()
			items = append(items, ProjectItem{Expr: &ColumnRef{Column: "*"}})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			alias := ""
			if p.is(token.AS) {
				p.advance()
				id, err := p.expect(token.IDENT)
				if err != nil {
					return nil, err
				}
				alias = id.Value
			} else if p.is(token.IDENT) {
				alias = p.advance().Value
			}
			items = append(items, ProjectItem{Expr: e, Alias: alias})
		}
		if p.is(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseExprList() ([]Expr, error) {
	var out []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.is(token.COMMA) {
			p.advance()
			continue
		}
		return out, nil
	}
}

func (p *Parser) parseOrderList() ([]SortKey, error) {
	var out []SortKey
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.is(token.ASC) {
			p.advance()
		} else if p.is(token.DESC) {
			p.advance()
			desc = true
		}
		out = append(out, SortKey{Expr: e, Descending: desc})
		if p.is(token.COMMA) {
			p.advance()
			continue
		}
		return out, nil
	}
}

// --- FROM clause / joins ---------------------------------------------------

func (p *Parser) parseFromClause() (Node, error) {
	left, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	for {
		kind, ok, err := p.parseJoinKeyword()
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		join := &Join{Left: left, Right: right, Kind: kind}
		if kind != CrossJoin {
			if p.is(token.ON) {
				p.advance()
				cond, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				join.Condition = cond
			} else if p.is(token.USING) {
				p.advance()
				if _, err := p.expect(token.LPAREN); err != nil {
					return nil, err
				}
				cols, err := p.parseExprList()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(token.RPAREN); err != nil {
					return nil, err
				}
				join.Condition = usingToExpr(cols)
			}
		}
		left = join
	}
}

func usingToExpr(cols []Expr) Expr {
	var out Expr
	for _, c := range cols {
		ref, ok := c.(*ColumnRef)
		if !ok {
			continue
		}
		eq := &BinaryExpr{Op: "=", Left: &ColumnRef{Column: ref.Column}, Right: &ColumnRef{Column: ref.Column}}
		if out == nil {
			out = eq
		} else {
			out = &BinaryExpr{Op: "AND", Left: out, Right: eq}
		}
	}
	return out
}

func (p *Parser) parseJoinKeyword() (JoinKind, bool, error) {
	switch {
	case p.is(token.JOIN):
		p.advance()
		return InnerJoin, true, nil
	case p.is(token.INNER):
		p.advance()
		if _, err := p.expect(token.JOIN); err != nil {
			return 0, false, err
		}
		return InnerJoin, true, nil
	case p.is(token.LEFT):
		p.advance()
		if p.is(token.OUTER) {
			p.advance()
		}
		if _, err := p.expect(token.JOIN); err != nil {
			return 0, false, err
		}
		return LeftJoin, true, nil
	case p.is(token.RIGHT):
		p.advance()
		if p.is(token.OUTER) {
			p.advance()
		}
		if _, err := p.expect(token.JOIN); err != nil {
			return 0, false, err
		}
		return RightJoin, true, nil
	case p.is(token.FULL):
		p.advance()
		if p.is(token.OUTER) {
			p.advance()
		}
		if _, err := p.expect(token.JOIN); err != nil {
			return 0, false, err
		}
		return FullJoin, true, nil
	case p.is(token.CROSS):
		p.advance()
		if _, err := p.expect(token.JOIN); err != nil {
			return 0, false, err
		}
		return CrossJoin, true, nil
	case p.cur().Type == token.IDENT && strings.EqualFold(p.cur().Value, "STRAIGHT_JOIN"):
		p.advance()
		return InnerJoin, true, nil
	default:
		return 0, false, nil
	}
}

func (p *Parser) parseTableRef() (Node, error) {
	if p.is(token.LPAREN) {
		p.advance()
		inner, err := p.parseSetExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		alias := p.parseOptionalAlias()
		return &Subquery{Query: &LogicalTree{Root: inner}, Alias: alias}, nil
	}

	first, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	parts := []string{first.Value}
	for p.is(token.DOT) {
		p.advance()
		id, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		parts = append(parts, id.Value)
	}

	scan := &Scan{}
	switch len(parts) {
	case 1:
		scan.Table = parts[0]
	case 2:
		scan.Schema, scan.Table = parts[0], parts[1]
	default:
		scan.Source, scan.Schema, scan.Table = parts[0], parts[1], parts[2]
	}
	scan.Alias = p.parseOptionalAlias()
	return scan, nil
}

func (p *Parser) parseOptionalAlias() string {
	if p.is(token.AS) {
		p.advance()
		return p.advance().Value
	}
	if p.is(token.IDENT) {
		return p.advance().Value
	}
	return ""
}

// --- Expressions ------------------------------------------------------------

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.is(token.OR) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.is(token.AND) {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.is(token.NOT) {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	switch p.cur().Type {
	case token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE:
		op := p.advance().Value
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: normalizeOp(op), Left: left, Right: right}, nil
	case token.LIKE:
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: "LIKE", Left: left, Right: right}, nil
	case token.IS:
		p.advance()
		neg := false
		if p.is(token.NOT) {
			p.advance()
			neg = true
		}
		if _, err := p.expect(token.NULL); err != nil {
			return nil, err
		}
		op := "ISNULL"
		if neg {
			op = "ISNOTNULL"
		}
		return &UnaryExpr{Op: op, Operand: left}, nil
	case token.BETWEEN:
		p.advance()
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.AND); err != nil {
			return nil, err
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		geLo := &BinaryExpr{Op: ">=", Left: left, Right: lo}
		leHi := &BinaryExpr{Op: "<=", Left: left, Right: hi}
		return &BinaryExpr{Op: "AND", Left: geLo, Right: leHi}, nil
	case token.IN:
		p.advance()
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		if p.is(token.SELECT) {
			sub, err := p.parseSetExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			return &BinaryExpr{Op: "IN_SUBQUERY", Left: left, Right: &SubqueryExpr{Query: toTree(sub)}}, nil
		}
		values, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		var list Expr
		for _, v := range values {
			eq := &BinaryExpr{Op: "=", Left: left, Right: v}
			if list == nil {
				list = eq
			} else {
				list = &BinaryExpr{Op: "OR", Left: list, Right: eq}
			}
		}
		if list == nil {
			return &Literal{Kind: LiteralBool, Value: "false"}, nil
		}
		return list, nil
	default:
		return left, nil
	}
}

func toTree(n Node) *LogicalTree {
	return &LogicalTree{Root: n}
}

func normalizeOp(raw string) string {
	if raw == "!=" {
		return "<>"
	}
	return raw
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.is(token.PLUS) || p.is(token.MINUS) || p.is(token.CONCAT) {
		op := p.advance().Value
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.is(token.ASTERISK) || p.is(token.SLASH) || p.is(token.PERCENT) {
		op := p.advance().Value
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.is(token.MINUS) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", Operand: operand}, nil
	}
	return p.parsePostfixCast()
}

// parsePostfixCast handles PostgreSQL's "expr::type" suffix, applied after
// an otherwise-complete primary expression.
func (p *Parser) parsePostfixCast() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == token.DCOLON {
		p.advance()
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		e = &CastExpr{Operand: e, TypeName: typeName}
	}
	return e, nil
}

func (p *Parser) parseTypeName() (string, error) {
	id, err := p.expect(token.IDENT)
	if err != nil {
		return "", err
	}
	name := id.Value
	if p.is(token.LPAREN) {
		p.advance()
		for !p.is(token.RPAREN) {
			p.advance()
		}
		p.advance()
	}
	return name, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.cur().Type {
	case token.INT:
		v := p.advance().Value
		return &Literal{Kind: LiteralInt, Value: v}, nil
	case token.FLOAT:
		v := p.advance().Value
		return &Literal{Kind: LiteralFloat, Value: v}, nil
	case token.STRING:
		v := p.advance().Value
		return &Literal{Kind: LiteralString, Value: v}, nil
	case token.PARAM:
		v := p.advance().Value
		return &Literal{Kind: LiteralParam, Value: v}, nil
	case token.TRUE:
		p.advance()
		return &Literal{Kind: LiteralBool, Value: "true"}, nil
	case token.FALSE:
		p.advance()
		return &Literal{Kind: LiteralBool, Value: "false"}, nil
	case token.NULL:
		p.advance()
		return &Literal{Kind: LiteralNull}, nil
	case token.LPAREN:
		p.advance()
		if p.is(token.SELECT) {
			sub, err := p.parseSetExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			return &SubqueryExpr{Query: toTree(sub)}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case token.EXISTS:
		p.advance()
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		sub, err := p.parseSetExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &SubqueryExpr{Query: toTree(sub), Exists: true}, nil
	case token.CASE:
		return p.parseCase()
	case token.CAST:
		return p.parseCast()
	case token.IDENT, token.COUNT, token.SUM, token.AVG, token.MIN, token.MAX:
		return p.parseIdentOrFuncCall()
	default:
		return nil, p.syntaxError("unexpected token %q", p.cur().Value)
	}
}

func (p *Parser) parseCase() (Expr, error) {
	p.advance() // CASE
	ce := &CaseExpr{}
	if !p.is(token.WHEN) {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Operand = operand
	}
	for p.is(token.WHEN) {
		p.advance()
		when, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, CaseWhen{When: when, Then: then})
	}
	if p.is(token.ELSE) {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Else = e
	}
	if _, err := p.expect(token.END); err != nil {
		return nil, err
	}
	return ce, nil
}

func (p *Parser) parseCast() (Expr, error) {
	p.advance() // CAST
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	operand, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.AS); err != nil {
		return nil, err
	}
	typeName, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &CastExpr{Operand: operand, TypeName: typeName}, nil
}

func (p *Parser) parseIdentOrFuncCall() (Expr, error) {
	first := p.advance()
	name := first.Value
	if first.Type != token.IDENT {
		name = first.Type.String()
	}

	if p.is(token.DOT) {
		p.advance()
		col, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		return &ColumnRef{Table: name, Column: col.Value}, nil
	}

	if p.is(token.LPAREN) {
		p.advance()
		call := &FuncCall{Name: name}
		if p.is(token.ASTERISK) {
			p.advance()
		} else if !p.is(token.RPAREN) {
			if p.is(token.DISTINCT) {
				p.advance()
			}
			args, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			call.Args = args
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return call, nil
	}

	return &ColumnRef{Column: name}, nil
}
