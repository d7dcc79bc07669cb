// internal/condition/parser.go
package condition

import "strconv"

/*
 * Recursive-descent parser for the condition DSL.
 *
 * Grammar:
 *   expr      := unit ((AND|OR) unit)*        left-associative, equal precedence
 *   unit      := '(' expr ')' | predicate
 *   predicate := operand op operand
 *              | operand BETWEEN operand AND operand
 *              | operand IS NULL
 *              | operand [NOT] EXISTS
 *   operand   := DATETIME '(' operand ')' | literal | field
 *   literal   := NUMBER | STRING | TRUE | FALSE | NULL
 *              | '[' literal (',' literal)* ']'
 *   op        := '=' | '!=' | '<>' | '>' | '>=' | '<' | '<='
 *
 * AND and OR share one precedence level and associate left: a=1 and b=2
 * or c=3 parses as ((a=1 and b=2) or c=3). Parentheses are the only
 * grouping construct. Keywords are case-insensitive.
 *
 * The parse tree is a tagged union: one struct per grammar node kind,
 * walked by a type switch in evaluate.go. No reflection, no name-based
 * dispatch.
 *
 * Parse failure returns *SyntaxError naming the offending token; callers
 * surface it unmodified.
 */

// CompareOp enumerates comparison operators.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
)

// LogicalOp enumerates boolean connectives.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

// Expr is a boolean-valued parse tree node.
type Expr interface{ exprNode() }

// Operand is a value-valued parse tree node.
type Operand interface{ operandNode() }

// Field references a dotted path into the flattened record.
type Field struct {
	Path string
	Pos  int
}

// Literal holds a typed constant: int64, float64, bool, string, nil, or
// []any for array literals.
type Literal struct {
	Value any
	Pos   int
}

// DateTime wraps an operand whose value must be interpreted as a point in
// time, parsed with the flexible date parser in datetime.go.
type DateTime struct {
	Arg Operand
	Pos int
}

// Comparison applies a CompareOp to two operands.
type Comparison struct {
	Op    CompareOp
	Left  Operand
	Right Operand
	Pos   int
}

// Between checks Low <= Value <= High, bounds inclusive.
type Between struct {
	Value Operand
	Low   Operand
	High  Operand
	Pos   int
}

// IsNull checks that the operand resolves to an explicit null.
type IsNull struct {
	Value Operand
	Pos   int
}

// Exists checks field presence. The only predicate that tolerates a
// missing field.
type Exists struct {
	Field   Field
	Negated bool
	Pos     int
}

// Logical combines two subtrees with AND or OR.
type Logical struct {
	Op    LogicalOp
	Left  Expr
	Right Expr
}

func (Field) operandNode()    {}
func (Literal) operandNode()  {}
func (DateTime) operandNode() {}

func (Comparison) exprNode() {}
func (Between) exprNode()    {}
func (IsNull) exprNode()     {}
func (Exists) exprNode()     {}
func (Logical) exprNode()    {}

// Parse compiles condition text into a parse tree.
func Parse(src string) (Expr, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(tokEOF) {
		return nil, p.unexpected("'and', 'or' or end of input")
	}
	return expr, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) cur() token  { return p.tokens[p.pos] }
func (p *parser) next() token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *parser) at(kind tokenKind) bool { return p.cur().Kind == kind }

func (p *parser) expect(kind tokenKind, want string) (token, error) {
	if !p.at(kind) {
		return token{}, p.unexpected(want)
	}
	return p.next(), nil
}

func (p *parser) unexpected(want string) error {
	t := p.cur()
	got := t.Kind.String()
	if t.Kind == tokIdent || t.Kind == tokNumber || t.Kind == tokOperator {
		got = "'" + t.Text + "'"
	}
	if t.Kind == tokEOF {
		got = ""
	}
	return &SyntaxError{Pos: t.Pos, Got: got, Want: want}
}

// parseExpr consumes the left-associative and/or chain.
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseUnit()
	if err != nil {
		return nil, err
	}
	for p.cur().keyword("and") || p.cur().keyword("or") {
		op := OpAnd
		if p.next().keyword("or") {
			op = OpOr
		}
		right, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		left = Logical{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnit() (Expr, error) {
	if p.at(tokLParen) {
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (Expr, error) {
	start := p.cur().Pos
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	t := p.cur()
	switch {
	case t.Kind == tokOperator:
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return Comparison{Op: compareOp(t.Text), Left: left, Right: right, Pos: start}, nil

	case t.keyword("between"):
		p.next()
		low, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.cur().keyword("and") {
			return nil, p.unexpected("'and'")
		}
		p.next()
		high, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return Between{Value: left, Low: low, High: high, Pos: start}, nil

	case t.keyword("is"):
		p.next()
		if !p.cur().keyword("null") {
			return nil, p.unexpected("'null'")
		}
		p.next()
		return IsNull{Value: left, Pos: start}, nil

	case t.keyword("exists"):
		field, ok := left.(Field)
		if !ok {
			return nil, &SyntaxError{Pos: t.Pos, Got: "'exists'", Want: "a field reference before 'exists'"}
		}
		p.next()
		return Exists{Field: field, Pos: start}, nil

	case t.keyword("not"):
		p.next()
		if !p.cur().keyword("exists") {
			return nil, p.unexpected("'exists'")
		}
		field, ok := left.(Field)
		if !ok {
			return nil, &SyntaxError{Pos: t.Pos, Got: "'not exists'", Want: "a field reference before 'not exists'"}
		}
		p.next()
		return Exists{Field: field, Negated: true, Pos: start}, nil

	default:
		return nil, p.unexpected("comparison operator, 'between', 'is', 'exists' or 'not exists'")
	}
}

func compareOp(text string) CompareOp {
	switch text {
	case "=":
		return OpEq
	case "!=", "<>":
		return OpNeq
	case ">":
		return OpGt
	case ">=":
		return OpGte
	case "<":
		return OpLt
	default:
		return OpLte
	}
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.cur()
	switch {
	case t.keyword("datetime"):
		pos := t.Pos
		p.next()
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		arg, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return DateTime{Arg: arg, Pos: pos}, nil

	case t.Kind == tokLBracket:
		return p.parseArray()

	case t.Kind == tokNumber, t.Kind == tokString,
		t.keyword("true"), t.keyword("false"), t.keyword("null"):
		return p.parseLiteral()

	case t.Kind == tokIdent:
		p.next()
		return Field{Path: t.Text, Pos: t.Pos}, nil

	default:
		return nil, p.unexpected("field or literal")
	}
}

// parseLiteral coerces literal tokens to typed values: integers to int64,
// decimals to float64, true/false to bool, null to nil.
func (p *parser) parseLiteral() (Operand, error) {
	t := p.next()
	switch {
	case t.Kind == tokString:
		return Literal{Value: t.Text, Pos: t.Pos}, nil
	case t.Kind == tokNumber:
		if i, err := strconv.ParseInt(t.Text, 10, 64); err == nil {
			return Literal{Value: i, Pos: t.Pos}, nil
		}
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: t.Pos, Got: "'" + t.Text + "'", Want: "number"}
		}
		return Literal{Value: f, Pos: t.Pos}, nil
	case t.keyword("true"):
		return Literal{Value: true, Pos: t.Pos}, nil
	case t.keyword("false"):
		return Literal{Value: false, Pos: t.Pos}, nil
	case t.keyword("null"):
		return Literal{Value: nil, Pos: t.Pos}, nil
	default:
		return nil, &SyntaxError{Pos: t.Pos, Got: "'" + t.Text + "'", Want: "literal"}
	}
}

// parseArray consumes an array literal of scalars: [1, 2, "a"].
func (p *parser) parseArray() (Operand, error) {
	open, err := p.expect(tokLBracket, "'['")
	if err != nil {
		return nil, err
	}
	var values []any
	if !p.at(tokRBracket) {
		for {
			lit, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			values = append(values, lit.(Literal).Value)
			if !p.at(tokComma) {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRBracket, "']' or ','"); err != nil {
		return nil, err
	}
	return Literal{Value: values, Pos: open.Pos}, nil
}
