package parser

import (
	"strings"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// parseExpression implements the standard SPARQL expression precedence
// ladder: Or -> And -> Relational -> Additive -> Multiplicative -> Unary
// -> Primary.
func (p *Parser) parseExpression() (algebra.Expr, error) {
	return p.parseConditionalOr()
}

func (p *Parser) parseConditionalOr() (algebra.Expr, error) {
	left, err := p.parseConditionalAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if !p.matchString("||") {
			return left, nil
		}
		right, err := p.parseConditionalAnd()
		if err != nil {
			return nil, err
		}
		left = &algebra.ExprBinary{Op: algebra.OpOr, Left: left, Right: right}
	}
}

func (p *Parser) parseConditionalAnd() (algebra.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if !p.matchString("&&") {
			return left, nil
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &algebra.ExprBinary{Op: algebra.OpAnd, Left: left, Right: right}
	}
}

func (p *Parser) parseRelational() (algebra.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	switch {
	case p.matchString("!="):
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprBinary{Op: algebra.OpNotEqual, Left: left, Right: right}, nil
	case p.matchString("<="):
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprBinary{Op: algebra.OpLessEqual, Left: left, Right: right}, nil
	case p.matchString(">="):
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprBinary{Op: algebra.OpGreaterEqual, Left: left, Right: right}, nil
	case p.matchByte('='):
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprBinary{Op: algebra.OpEqual, Left: left, Right: right}, nil
	case p.matchByte('<'):
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprBinary{Op: algebra.OpLess, Left: left, Right: right}, nil
	case p.matchByte('>'):
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprBinary{Op: algebra.OpGreater, Left: left, Right: right}, nil
	case p.matchKeyword("NOT"):
		if !p.matchKeyword("IN") {
			return nil, p.errorf("expected IN after NOT")
		}
		list, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprBinary{Op: algebra.OpNotIn, Left: left, List: list}, nil
	case p.matchKeyword("IN"):
		list, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprBinary{Op: algebra.OpIn, Left: left, List: list}, nil
	default:
		return left, nil
	}
}

func (p *Parser) parseExpressionList() ([]algebra.Expr, error) {
	if err := p.expectByte('('); err != nil {
		return nil, err
	}
	var list []algebra.Expr
	p.skipWhitespace()
	if p.matchByte(')') {
		return list, nil
	}
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		list = append(list, expr)
		p.skipWhitespace()
		if p.matchByte(')') {
			return list, nil
		}
		if !p.matchByte(',') {
			return nil, p.errorf("expected ',' or ')' in expression list")
		}
	}
}

func (p *Parser) parseAdditive() (algebra.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		switch {
		case p.matchByte('+'):
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &algebra.ExprBinary{Op: algebra.OpAdd, Left: left, Right: right}
		case p.matchByte('-'):
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &algebra.ExprBinary{Op: algebra.OpSubtract, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseMultiplicative() (algebra.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		switch {
		case p.matchByte('*'):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &algebra.ExprBinary{Op: algebra.OpMultiply, Left: left, Right: right}
		case p.matchByte('/'):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &algebra.ExprBinary{Op: algebra.OpDivide, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseUnary() (algebra.Expr, error) {
	p.skipWhitespace()
	switch {
	case p.matchByte('!'):
		operand, err := p.parsePrimaryExpression()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprUnary{Op: algebra.OpNot, Operand: operand}, nil
	case p.peekIsSignedUnary('+'):
		p.pos++
		operand, err := p.parsePrimaryExpression()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprUnary{Op: algebra.OpUnaryPlus, Operand: operand}, nil
	case p.peekIsSignedUnary('-'):
		p.pos++
		operand, err := p.parsePrimaryExpression()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprUnary{Op: algebra.OpNeg, Operand: operand}, nil
	default:
		return p.parsePrimaryExpression()
	}
}

// peekIsSignedUnary reports whether the next byte is sign and is not the
// start of a numeric literal (numeric literals consume their own sign in
// parseNumericLiteral, so `-5` parses as a literal, not ExprUnary(-5)).
func (p *Parser) peekIsSignedUnary(sign byte) bool {
	p.skipWhitespace()
	if p.eof() || p.input[p.pos] != sign {
		return false
	}
	return !(p.pos+1 < p.length && (isDigit(p.input[p.pos+1]) || p.input[p.pos+1] == '.'))
}

func (p *Parser) parsePrimaryExpression() (algebra.Expr, error) {
	p.skipWhitespace()
	switch {
	case p.matchByte('('):
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectByte(')'); err != nil {
			return nil, err
		}
		return expr, nil

	case p.peekIsVar():
		name, err := p.parseVarName()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprVar{Var: algebra.NewVariable(name)}, nil

	case p.peekIsString():
		lit, err := p.parseRDFLiteral()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprLiteral{Term: lit}, nil

	case p.peekIsNumber():
		lit, err := p.parseNumericLiteral()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprLiteral{Term: lit}, nil

	case p.matchKeyword("true"):
		return &algebra.ExprLiteral{Term: rdf.NewBooleanLiteral(true)}, nil
	case p.matchKeyword("false"):
		return &algebra.ExprLiteral{Term: rdf.NewBooleanLiteral(false)}, nil

	case p.matchKeyword("NOT"):
		if !p.matchKeyword("EXISTS") {
			return nil, p.errorf("expected EXISTS after NOT")
		}
		pattern, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprExists{Pattern: pattern, Negate: true}, nil

	case p.matchKeyword("EXISTS"):
		pattern, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprExists{Pattern: pattern}, nil

	case p.matchKeyword("IF"):
		if err := p.expectByte('('); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectByte(','); err != nil {
			return nil, err
		}
		then, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectByte(','); err != nil {
			return nil, err
		}
		els, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectByte(')'); err != nil {
			return nil, err
		}
		return &algebra.ExprIf{Cond: cond, Then: then, Else: els}, nil

	case p.matchKeyword("COALESCE"):
		args, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprCoalesce{Args: args}, nil

	case p.matchKeyword("BOUND"):
		if err := p.expectByte('('); err != nil {
			return nil, err
		}
		name, err := p.parseVarName()
		if err != nil {
			return nil, err
		}
		if err := p.expectByte(')'); err != nil {
			return nil, err
		}
		return &algebra.ExprBound{Var: algebra.NewVariable(name)}, nil

	default:
		return p.parseFunctionCallOrAggregate()
	}
}

var aggregateNames = map[string]algebra.AggregateFunc{
	"COUNT":       algebra.AggCount,
	"SUM":         algebra.AggSum,
	"AVG":         algebra.AggAvg,
	"MIN":         algebra.AggMin,
	"MAX":         algebra.AggMax,
	"SAMPLE":      algebra.AggSample,
	"GROUP_CONCAT": algebra.AggGroupConcat,
}

// parseFunctionCallOrAggregate handles both aggregate functions
// (COUNT/SUM/AVG/MIN/MAX/SAMPLE/GROUP_CONCAT, with DISTINCT and, for
// COUNT, `*`) and ordinary built-in/IRI function calls.
func (p *Parser) parseFunctionCallOrAggregate() (algebra.Expr, error) {
	name, err := p.parseBareName()
	if err != nil {
		return nil, err
	}
	// A resolved IRI (cast or custom function) always contains a colon;
	// a bare built-in name never does (isPNChars excludes ':'). Only
	// bare names get case-folded — IRIs are case sensitive.
	callName := name
	if !strings.Contains(name, ":") {
		callName = strings.ToUpper(name)
	}

	if _, ok := aggregateNames[callName]; ok {
		return p.parseAggregateArgs(callName)
	}

	args, err := p.parseExpressionList()
	if err != nil {
		return nil, err
	}
	return &algebra.ExprFunctionCall{Name: callName, Args: args}, nil
}

func (p *Parser) parseAggregateArgs(name string) (algebra.Expr, error) {
	if err := p.expectByte('('); err != nil {
		return nil, err
	}
	distinct := p.matchKeyword("DISTINCT")
	p.skipWhitespace()

	var expr algebra.Expr
	if name == "COUNT" && p.matchByte('*') {
		expr = nil
	} else {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expr = e
	}

	// GROUP_CONCAT's optional `; SEPARATOR = "..."` is stored in the
	// aggregate marker's Separator field for the evaluator.
	var separator algebra.Expr
	if name == "GROUP_CONCAT" && p.matchByte(';') {
		if !p.matchKeyword("SEPARATOR") {
			return nil, p.errorf("expected SEPARATOR")
		}
		if err := p.expectByte('='); err != nil {
			return nil, err
		}
		lit, err := p.parseRDFLiteral()
		if err != nil {
			return nil, err
		}
		separator = &algebra.ExprLiteral{Term: lit}
	}
	if err := p.expectByte(')'); err != nil {
		return nil, err
	}
	return &algebra.AggregateCall{Name: name, Expr: expr, Distinct: distinct, Separator: separator}, nil
}

// parseBareName parses a built-in function name (a bare identifier like
// STRLEN) or, for a cast/custom-IRI function, the function's full IRI
// (written as <...> or prefix:local).
func (p *Parser) parseBareName() (string, error) {
	p.skipWhitespace()
	if p.eof() {
		return "", p.errorf("expected function name")
	}
	if p.input[p.pos] == '<' {
		iri, err := p.parseIRIRef()
		if err != nil {
			return "", err
		}
		return iri, nil
	}
	start := p.pos
	for p.pos < p.length && isPNChars(p.input[p.pos]) {
		p.pos++
	}
	if p.pos < p.length && p.input[p.pos] == ':' {
		p.pos = start
		iri, err := p.parsePrefixedName()
		if err != nil {
			return "", err
		}
		return iri, nil
	}
	if p.pos == start {
		return "", p.errorf("expected function name")
	}
	return p.input[start:p.pos], nil
}
