// Package parser translates SPARQL 1.1 query and update text directly
// into an internal/sparql/algebra tree (spec.md §4.3), in the
// position-based recursive-descent style of the teacher's own parsers
// (pkg/sparql/parser, internal/nquads/parser.go) rather than via a
// separate tokenizer pass.
package parser

import (
	"fmt"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// ParseQuery parses a SPARQL 1.1/1.2 query string, returning an
// algebra.Query. baseIRI resolves relative IRI references; it may be "".
// RDF 1.2 quoted-triple term syntax is enabled; use ParseQueryOpts to
// gate it off (features.rdf12 in the config table).
func ParseQuery(text string, baseIRI string) (*algebra.Query, error) {
	return ParseQueryOpts(text, baseIRI, Options{RDF12: true})
}

// Options configures parser feature gates.
type Options struct {
	// RDF12 enables `<< s p o >>` quoted-triple term syntax wherever a
	// ground term is expected (INSERT/DELETE DATA blocks, VALUES,
	// CONSTRUCT templates). A quoted-triple term containing a variable
	// in a WHERE clause — full RDF-star triple-pattern matching against
	// asserted quoted triples — is out of scope; see DESIGN.md.
	RDF12 bool
}

// ParseQueryOpts is ParseQuery with explicit feature gates.
func ParseQueryOpts(text string, baseIRI string, opts Options) (*algebra.Query, error) {
	p := newParser(text, baseIRI, defaultPrefixes())
	p.rdf12 = opts.RDF12
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	q, err := p.parseQueryBody()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if !p.eof() {
		return nil, p.errorf("unexpected trailing input")
	}
	return q, nil
}

// ParseUpdate parses a SPARQL 1.1 Update request (one or more `;`
// separated operations) into an algebra.Update. RDF12 quoted-triple
// syntax is enabled; use ParseUpdateOpts to gate it off.
func ParseUpdate(text string, baseIRI string) (*algebra.Update, error) {
	return ParseUpdateOpts(text, baseIRI, Options{RDF12: true})
}

// ParseUpdateOpts is ParseUpdate with explicit feature gates.
func ParseUpdateOpts(text string, baseIRI string, opts Options) (*algebra.Update, error) {
	p := newParser(text, baseIRI, defaultPrefixes())
	p.rdf12 = opts.RDF12
	upd := &algebra.Update{}
	for {
		if err := p.parsePrologue(); err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if p.eof() {
			break
		}
		op, err := p.parseUpdateOperation()
		if err != nil {
			return nil, err
		}
		upd.Operations = append(upd.Operations, op)
		p.skipWhitespace()
		if !p.matchByte(';') {
			break
		}
	}
	p.skipWhitespace()
	if !p.eof() {
		return nil, p.errorf("unexpected trailing input")
	}
	return upd, nil
}

func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
		"xsd":  "http://www.w3.org/2001/XMLSchema#",
		"owl":  "http://www.w3.org/2002/07/owl#",
	}
}

func (p *Parser) parsePrologue() error {
	for {
		p.skipWhitespace()
		if p.matchKeyword("PREFIX") {
			name, iri, err := p.parsePrefixDecl()
			if err != nil {
				return err
			}
			p.prefixes[name] = iri
			continue
		}
		if p.matchKeyword("BASE") {
			iri, err := p.parseIRIRef()
			if err != nil {
				return err
			}
			p.baseIRI = iri
			continue
		}
		return nil
	}
}

func (p *Parser) parsePrefixDecl() (name, iri string, err error) {
	p.skipWhitespace()
	start := p.pos
	for p.pos < p.length && p.input[p.pos] != ':' && !isWS(p.input[p.pos]) {
		p.pos++
	}
	if p.pos >= p.length || p.input[p.pos] != ':' {
		return "", "", p.errorf("expected ':' in PREFIX declaration")
	}
	name = p.input[start:p.pos]
	p.pos++
	iri, err = p.parseIRIRef()
	return name, iri, err
}

// --- Query bodies -------------------------------------------------------

func (p *Parser) parseQueryBody() (*algebra.Query, error) {
	switch {
	case p.matchKeyword("SELECT"):
		return p.parseSelect()
	case p.matchKeyword("CONSTRUCT"):
		return p.parseConstruct()
	case p.matchKeyword("ASK"):
		return p.parseAsk()
	case p.matchKeyword("DESCRIBE"):
		return p.parseDescribe()
	default:
		return nil, p.errorf("expected SELECT, CONSTRUCT, ASK, or DESCRIBE")
	}
}

func (p *Parser) parseSelect() (*algebra.Query, error) {
	distinct, reduced := false, false
	if p.matchKeyword("DISTINCT") {
		distinct = true
	} else if p.matchKeyword("REDUCED") {
		reduced = true
	}

	var projectVars []*algebra.Variable
	var extends []*algebra.Extend // bare `(expr AS ?v)` projections, applied before Project
	selectStar := false

	p.skipWhitespace()
	if p.matchByte('*') {
		selectStar = true
	} else {
		for {
			p.skipWhitespace()
			if p.matchByte('(') {
				expr, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if !p.matchKeyword("AS") {
					return nil, p.errorf("expected AS in select expression")
				}
				name, err := p.parseVarName()
				if err != nil {
					return nil, err
				}
				if err := p.expectByte(')'); err != nil {
					return nil, err
				}
				v := algebra.NewVariable(name)
				projectVars = append(projectVars, v)
				extends = append(extends, &algebra.Extend{Var: v, Expr: expr})
				continue
			}
			if p.peekIsVar() {
				name, err := p.parseVarName()
				if err != nil {
					return nil, err
				}
				projectVars = append(projectVars, algebra.NewVariable(name))
				continue
			}
			break
		}
		if len(projectVars) == 0 {
			return nil, p.errorf("expected select variable list or '*'")
		}
	}

	where, err := p.parseWhereClause()
	if err != nil {
		return nil, err
	}

	group, err := p.parseGroupByClause()
	if err != nil {
		return nil, err
	}
	having, err := p.parseHavingClause()
	if err != nil {
		return nil, err
	}
	order, err := p.parseOrderByClause()
	if err != nil {
		return nil, err
	}
	offset, limit, err := p.parseLimitOffset()
	if err != nil {
		return nil, err
	}

	// Grouping (and HAVING, which filters groups) happens before the
	// SELECT-list expressions are evaluated: a SELECT-list aggregate or an
	// expression referencing a GROUP BY key must see the grouped result,
	// not the raw WHERE solutions.
	node := where
	if group != nil {
		group.Inner = node
		node = group
	}
	if having != nil {
		having.Inner = node
		node = having
	}
	for _, ext := range extends {
		ext.Inner = node
		node = ext
	}

	if selectStar {
		// SELECT * projects every variable visible in the pattern; the
		// evaluator computes the concrete set at execution time, so the
		// algebra simply omits a Project node here.
	} else {
		node = &algebra.Project{Vars: projectVars, Inner: node}
	}

	if distinct {
		node = &algebra.Distinct{Inner: node}
	} else if reduced {
		node = &algebra.Reduced{Inner: node}
	}

	if order != nil {
		order.Inner = node
		node = order
	}

	if offset >= 0 || limit >= 0 {
		node = &algebra.Slice{Offset: offset, Limit: limit, Inner: node}
	}

	return &algebra.Query{Kind: algebra.QuerySelect, Algebra: node, ProjectVars: projectVars}, nil
}

func (p *Parser) parseConstruct() (*algebra.Query, error) {
	p.skipWhitespace()
	var template []*algebra.QuadPattern
	var where algebra.Node
	var err error

	if p.matchByte('{') {
		template, err = p.parseConstructTemplate()
		if err != nil {
			return nil, err
		}
		if !p.matchKeyword("WHERE") {
			return nil, p.errorf("expected WHERE after CONSTRUCT template")
		}
		where, err = p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
	} else {
		// CONSTRUCT WHERE { ... } shorthand: template == pattern.
		if !p.matchKeyword("WHERE") {
			return nil, p.errorf("expected '{' or WHERE after CONSTRUCT")
		}
		if err := p.expectByte('{'); err != nil {
			return nil, err
		}
		template, err = p.parseConstructTemplate()
		if err != nil {
			return nil, err
		}
		patterns := make([]*algebra.TriplePattern, len(template))
		for i, q := range template {
			patterns[i] = &algebra.TriplePattern{Subject: q.Subject, Predicate: q.Predicate, Object: q.Object}
		}
		where = &algebra.BGP{Patterns: patterns}
	}

	order, err := p.parseOrderByClause()
	if err != nil {
		return nil, err
	}
	offset, limit, err := p.parseLimitOffset()
	if err != nil {
		return nil, err
	}
	node := where
	if order != nil {
		order.Inner = node
		node = order
	}
	if offset >= 0 || limit >= 0 {
		node = &algebra.Slice{Offset: offset, Limit: limit, Inner: node}
	}
	return &algebra.Query{Kind: algebra.QueryConstruct, Algebra: node, Template: template}, nil
}

// parseConstructTemplate parses the `{ ... }` triple template; the
// opening brace must already have been consumed by the caller in the
// WHERE-shorthand path and is consumed here otherwise.
func (p *Parser) parseConstructTemplate() ([]*algebra.QuadPattern, error) {
	var quads []*algebra.QuadPattern
	for {
		p.skipWhitespace()
		if p.matchByte('}') {
			return quads, nil
		}
		triples, err := p.parseTriplesSameSubjectPath()
		if err != nil {
			return nil, err
		}
		for _, t := range triples {
			quads = append(quads, &algebra.QuadPattern{Subject: t.Subject, Predicate: t.Predicate, Object: t.Object})
		}
		p.skipWhitespace()
		p.matchByte('.')
	}
}

func (p *Parser) parseAsk() (*algebra.Query, error) {
	where, err := p.parseWhereClause()
	if err != nil {
		return nil, err
	}
	return &algebra.Query{Kind: algebra.QueryAsk, Algebra: where}, nil
}

func (p *Parser) parseDescribe() (*algebra.Query, error) {
	var vars []*algebra.Variable
	var terms []rdf.Term
	p.skipWhitespace()
	if p.matchByte('*') {
		// describe everything visible; represented by empty var/term lists
		// plus a nil Algebra meaning "whole dataset subjects".
	} else {
		for {
			if p.peekIsVar() {
				name, err := p.parseVarName()
				if err != nil {
					return nil, err
				}
				vars = append(vars, algebra.NewVariable(name))
			} else if p.peekIsIRIRefOrPrefixed() {
				t, err := p.parseIRITerm()
				if err != nil {
					return nil, err
				}
				terms = append(terms, t)
			} else {
				break
			}
			p.skipWhitespace()
			if p.eof() || p.matchKeyword("WHERE") {
				break
			}
		}
	}
	var where algebra.Node
	p.skipWhitespace()
	if p.peekKeyword("WHERE") || p.peekByte() == '{' {
		var err error
		where, err = p.parseWhereClause()
		if err != nil {
			return nil, err
		}
	}
	return &algebra.Query{Kind: algebra.QueryDescribe, Algebra: where, DescribeVars: vars, DescribeTerms: terms}, nil
}

func (p *Parser) parseWhereClause() (algebra.Node, error) {
	p.matchKeyword("WHERE")
	return p.parseGroupGraphPattern()
}

// --- Solution modifiers --------------------------------------------------

func (p *Parser) parseGroupByClause() (*algebra.Group, error) {
	if !p.matchKeyword("GROUP") {
		return nil, nil
	}
	if !p.matchKeyword("BY") {
		return nil, p.errorf("expected BY after GROUP")
	}
	var keys []algebra.Expr
	for {
		p.skipWhitespace()
		if p.matchByte('(') {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if p.matchKeyword("AS") {
				name, err := p.parseVarName()
				if err != nil {
					return nil, err
				}
				expr = &algebra.ExprAlias{Var: algebra.NewVariable(name), Expr: expr}
			}
			if err := p.expectByte(')'); err != nil {
				return nil, err
			}
			keys = append(keys, expr)
		} else if p.peekIsVar() {
			name, err := p.parseVarName()
			if err != nil {
				return nil, err
			}
			keys = append(keys, &algebra.ExprVar{Var: algebra.NewVariable(name)})
		} else {
			break
		}
	}
	return &algebra.Group{Keys: keys}, nil
}

func (p *Parser) parseHavingClause() (*algebra.Filter, error) {
	if !p.matchKeyword("HAVING") {
		return nil, nil
	}
	expr, err := p.parseBracketedExpression()
	if err != nil {
		return nil, err
	}
	return &algebra.Filter{Expr: expr}, nil
}

func (p *Parser) parseOrderByClause() (*algebra.OrderBy, error) {
	if !p.matchKeyword("ORDER") {
		return nil, nil
	}
	if !p.matchKeyword("BY") {
		return nil, p.errorf("expected BY after ORDER")
	}
	var conds []*algebra.OrderCondition
	for {
		p.skipWhitespace()
		desc := false
		if p.matchKeyword("ASC") {
		} else if p.matchKeyword("DESC") {
			desc = true
		}
		var expr algebra.Expr
		var err error
		if p.peekByte() == '(' || p.peekIsVar() {
			expr, err = p.parseBracketedOrBareExpression()
		} else {
			break
		}
		if err != nil {
			return nil, err
		}
		conds = append(conds, &algebra.OrderCondition{Expr: expr, Desc: desc})
	}
	if len(conds) == 0 {
		return nil, p.errorf("expected ORDER BY condition")
	}
	return &algebra.OrderBy{Conditions: conds}, nil
}

func (p *Parser) parseBracketedOrBareExpression() (algebra.Expr, error) {
	if p.peekIsVar() {
		name, err := p.parseVarName()
		if err != nil {
			return nil, err
		}
		return &algebra.ExprVar{Var: algebra.NewVariable(name)}, nil
	}
	return p.parseBracketedExpression()
}

func (p *Parser) parseBracketedExpression() (algebra.Expr, error) {
	if err := p.expectByte('('); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(')'); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseLimitOffset() (offset, limit int, err error) {
	offset, limit = -1, -1
	for {
		if p.matchKeyword("LIMIT") {
			lit, err := p.parseNumericLiteral()
			if err != nil {
				return 0, 0, err
			}
			n, perr := parseIntLiteral(lit)
			if perr != nil {
				return 0, 0, p.errorf("invalid LIMIT: %v", perr)
			}
			limit = n
			continue
		}
		if p.matchKeyword("OFFSET") {
			lit, err := p.parseNumericLiteral()
			if err != nil {
				return 0, 0, err
			}
			n, perr := parseIntLiteral(lit)
			if perr != nil {
				return 0, 0, p.errorf("invalid OFFSET: %v", perr)
			}
			offset = n
			continue
		}
		break
	}
	return offset, limit, nil
}

func parseIntLiteral(lit *rdf.Literal) (int, error) {
	var n int
	_, err := fmt.Sscanf(lit.Value, "%d", &n)
	return n, err
}
