package parser

import (
	"fmt"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// parseGroupGraphPattern parses `{ GroupGraphPatternSub }`, folding
// TriplesBlocks into BGP/Path nodes joined with whatever
// GraphPatternNotTriples constructs (OPTIONAL/UNION/GRAPH/MINUS/FILTER/
// BIND/VALUES) appear alongside them, left to right.
func (p *Parser) parseGroupGraphPattern() (algebra.Node, error) {
	if err := p.expectByte('{'); err != nil {
		return nil, err
	}

	var result algebra.Node
	var pendingTriples []*algebra.TriplePattern
	var pendingPaths []*algebra.Path

	flushTriples := func() {
		if len(pendingTriples) == 0 && len(pendingPaths) == 0 {
			return
		}
		var node algebra.Node
		if len(pendingTriples) > 0 {
			node = &algebra.BGP{Patterns: pendingTriples}
		}
		for _, path := range pendingPaths {
			if node == nil {
				node = path
			} else {
				node = &algebra.Join{Left: node, Right: path}
			}
		}
		if result == nil {
			result = node
		} else {
			result = &algebra.Join{Left: result, Right: node}
		}
		pendingTriples = nil
		pendingPaths = nil
	}

	for {
		p.skipWhitespace()
		if p.matchByte('}') {
			flushTriples()
			if result == nil {
				result = &algebra.BGP{}
			}
			return result, nil
		}

		switch {
		case p.peekKeyword("OPTIONAL"):
			p.matchKeyword("OPTIONAL")
			inner, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			flushTriples()
			lj := &algebra.LeftJoin{Left: orEmpty(result), Right: inner}
			lj.Filter, lj.Right = extractOptionalFilter(inner)
			result = lj

		case p.peekKeyword("MINUS"):
			p.matchKeyword("MINUS")
			inner, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			flushTriples()
			result = &algebra.Minus{Left: orEmpty(result), Right: inner}

		case p.peekKeyword("GRAPH"):
			p.matchKeyword("GRAPH")
			var graphTerm algebra.Term
			if p.peekIsVar() {
				name, err := p.parseVarName()
				if err != nil {
					return nil, err
				}
				graphTerm = algebra.NewVariable(name)
			} else {
				t, err := p.parseIRITerm()
				if err != nil {
					return nil, err
				}
				graphTerm = t
			}
			inner, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			flushTriples()
			node := algebra.Node(&algebra.Graph{GraphTerm: graphTerm, Inner: inner})
			result = joinInto(result, node)

		case p.peekKeyword("SERVICE"):
			p.matchKeyword("SERVICE")
			silent := p.matchKeyword("SILENT")
			var endpoint algebra.Term
			if p.peekIsVar() {
				name, err := p.parseVarName()
				if err != nil {
					return nil, err
				}
				endpoint = algebra.NewVariable(name)
			} else {
				t, err := p.parseIRITerm()
				if err != nil {
					return nil, err
				}
				endpoint = t
			}
			inner, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			flushTriples()
			result = joinInto(result, &algebra.Service{Endpoint: endpoint, Inner: inner, Silent: silent})

		case p.peekKeyword("FILTER"):
			p.matchKeyword("FILTER")
			expr, err := p.parseConstraint()
			if err != nil {
				return nil, err
			}
			flushTriples()
			result = &algebra.Filter{Expr: expr, Inner: orEmpty(result)}

		case p.peekKeyword("BIND"):
			p.matchKeyword("BIND")
			if err := p.expectByte('('); err != nil {
				return nil, err
			}
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if !p.matchKeyword("AS") {
				return nil, p.errorf("expected AS in BIND")
			}
			name, err := p.parseVarName()
			if err != nil {
				return nil, err
			}
			if err := p.expectByte(')'); err != nil {
				return nil, err
			}
			flushTriples()
			result = &algebra.Extend{Inner: orEmpty(result), Var: algebra.NewVariable(name), Expr: expr}

		case p.peekKeyword("VALUES"):
			p.matchKeyword("VALUES")
			values, err := p.parseInlineData()
			if err != nil {
				return nil, err
			}
			flushTriples()
			result = joinInto(result, values)

		case p.peekByte() == '{':
			inner, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			p.skipWhitespace()
			if p.matchKeyword("UNION") {
				flushTriples()
				right, err := p.parseGroupGraphPattern()
				if err != nil {
					return nil, err
				}
				union := &algebra.Union{Left: inner, Right: right}
				for p.matchKeyword("UNION") {
					next, err := p.parseGroupGraphPattern()
					if err != nil {
						return nil, err
					}
					union = &algebra.Union{Left: union, Right: next}
				}
				result = joinInto(result, union)
			} else {
				flushTriples()
				result = joinInto(result, inner)
			}

		default:
			triples, paths, err := p.parseTriplesBlock()
			if err != nil {
				return nil, err
			}
			pendingTriples = append(pendingTriples, triples...)
			pendingPaths = append(pendingPaths, paths...)
		}

		p.skipWhitespace()
		p.matchByte('.')
	}
}

func orEmpty(n algebra.Node) algebra.Node {
	if n == nil {
		return &algebra.BGP{}
	}
	return n
}

func joinInto(existing, next algebra.Node) algebra.Node {
	if existing == nil {
		return next
	}
	return &algebra.Join{Left: existing, Right: next}
}

// extractOptionalFilter pulls a trailing top-level Filter off of an
// OPTIONAL group's inner pattern, per the SPARQL normative translation of
// `OPTIONAL { P FILTER(E) }` into `LeftJoin(..., P, E)`.
func extractOptionalFilter(inner algebra.Node) (algebra.Expr, algebra.Node) {
	if f, ok := inner.(*algebra.Filter); ok {
		return f.Expr, f.Inner
	}
	return nil, inner
}

// parseTriplesBlock parses one or more `.`-separated
// TriplesSameSubjectPath productions until it hits something that is not
// a triples block (a keyword construct, `}`, or end of input).
func (p *Parser) parseTriplesBlock() ([]*algebra.TriplePattern, []*algebra.Path, error) {
	var plain []*algebra.TriplePattern
	var paths []*algebra.Path
	for {
		triples, pathTriples, err := p.parseTriplesSameSubjectPathSplit()
		if err != nil {
			return nil, nil, err
		}
		plain = append(plain, triples...)
		paths = append(paths, pathTriples...)

		p.skipWhitespace()
		save := p.pos
		if !p.matchByte('.') {
			return plain, paths, nil
		}
		p.skipWhitespace()
		if p.eof() || p.peekByte() == '}' || p.isPatternKeyword() {
			return plain, paths, nil
		}
		p.pos = save
		p.matchByte('.')
	}
}

func (p *Parser) isPatternKeyword() bool {
	for _, kw := range []string{"OPTIONAL", "MINUS", "GRAPH", "SERVICE", "FILTER", "BIND", "VALUES", "UNION"} {
		if p.peekKeyword(kw) {
			return true
		}
	}
	return p.peekByte() == '{'
}

// parseTriplesSameSubjectPathSplit is parseTriplesSameSubjectPath but
// separates plain-predicate triples from property-path triples, since
// they compile to different algebra nodes (BGP vs Path).
func (p *Parser) parseTriplesSameSubjectPathSplit() ([]*algebra.TriplePattern, []*algebra.Path, error) {
	subject, err := p.parseVarOrTerm()
	if err != nil {
		return nil, nil, err
	}
	return p.parsePropertyListPathNotEmpty(subject)
}

// parseTriplesSameSubjectPath is used by CONSTRUCT templates and update
// data/template blocks, returning one flat triple list with any inline
// blank-node objects expanded. Only plain-IRI predicates are kept; a
// triple whose predicate is any other property path is dropped without
// an error.
func (p *Parser) parseTriplesSameSubjectPath() ([]*algebra.TriplePattern, error) {
	triples, paths, err := p.parseTriplesSameSubjectPathSplit()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if iri, ok := path.Path.(*algebra.PathIRI); ok {
			triples = append(triples, &algebra.TriplePattern{Subject: path.Subject, Predicate: iri.IRI, Object: path.Object})
		}
	}
	return triples, nil
}

func (p *Parser) parseVarOrTerm() (algebra.Term, error) {
	p.skipWhitespace()
	switch {
	case p.peekIsVar():
		name, err := p.parseVarName()
		if err != nil {
			return nil, err
		}
		return algebra.NewVariable(name), nil
	case p.peekByte() == '[':
		return p.parseBlankNodePropertyList()
	case p.matchKeyword("a"):
		return rdf.NewNamedNode(rdf.RDFTypeIRI), nil
	case p.peekByte() == '_':
		return p.parseBlankNodeLabel()
	case p.peekIsString():
		return p.parseRDFLiteral()
	case p.peekIsNumber():
		return p.parseNumericLiteral()
	case p.matchKeyword("true"):
		return rdf.NewBooleanLiteral(true), nil
	case p.matchKeyword("false"):
		return rdf.NewBooleanLiteral(false), nil
	case p.rdf12 && p.peekQuotedTripleOpen():
		return p.parseQuotedTripleTerm()
	default:
		return p.parseIRITerm()
	}
}

// peekQuotedTripleOpen reports whether the next non-whitespace input is
// `<<`, distinguishing RDF 1.2 quoted-triple syntax from a plain IRI
// (which starts with a single `<`).
func (p *Parser) peekQuotedTripleOpen() bool {
	save := p.pos
	p.skipWhitespace()
	ok := p.pos+1 < p.length && p.input[p.pos] == '<' && p.input[p.pos+1] == '<'
	p.pos = save
	return ok
}

// parseQuotedTripleTerm parses `<< subject predicate object >>`, an RDF
// 1.2 triple term usable wherever a ground term is expected. Only ground
// subterms are supported: a variable in any position is a parse error,
// since full RDF-star matching of a quoted-triple pattern against
// asserted quoted triples is out of scope for this implementation (see
// DESIGN.md).
func (p *Parser) parseQuotedTripleTerm() (algebra.Term, error) {
	if err := p.expectByte('<'); err != nil {
		return nil, err
	}
	if err := p.expectByte('<'); err != nil {
		return nil, err
	}
	subj, err := p.parseVarOrTerm()
	if err != nil {
		return nil, fmt.Errorf("quoted triple subject: %w", err)
	}
	pred, err := p.parseVarOrTerm()
	if err != nil {
		return nil, fmt.Errorf("quoted triple predicate: %w", err)
	}
	obj, err := p.parseVarOrTerm()
	if err != nil {
		return nil, fmt.Errorf("quoted triple object: %w", err)
	}
	if err := p.expectByte('>'); err != nil {
		return nil, err
	}
	if err := p.expectByte('>'); err != nil {
		return nil, err
	}
	if algebra.IsVariable(subj) || algebra.IsVariable(pred) || algebra.IsVariable(obj) {
		return nil, p.errorf("quoted triple term with a variable position is not supported")
	}
	return rdf.NewQuotedTriple(subj.(rdf.Term), pred.(rdf.Term), obj.(rdf.Term))
}

// parseBlankNodePropertyList parses `[ p1 o1 ; p2 o2 ]`, emitting a fresh
// blank node and threading its generated property triples into
// p.inlineTriples for the enclosing block to pick up.
func (p *Parser) parseBlankNodePropertyList() (algebra.Term, error) {
	if err := p.expectByte('['); err != nil {
		return nil, err
	}
	bn := rdf.NewBlankNode(freshBlankNodeID())
	p.skipWhitespace()
	if p.matchByte(']') {
		return bn, nil
	}
	triples, paths, err := p.parsePropertyListPathNotEmpty(bn)
	if err != nil {
		return nil, err
	}
	p.inlineTriples = append(p.inlineTriples, triples...)
	p.inlinePaths = append(p.inlinePaths, paths...)
	if err := p.expectByte(']'); err != nil {
		return nil, err
	}
	return bn, nil
}

// parsePropertyListPathNotEmpty parses `Verb ObjectListPath (';' (Verb
// ObjectListPath)?)*` for subject, returning every generated triple
// (split plain/property-path) including any from nested blank-node
// property lists collected along the way.
func (p *Parser) parsePropertyListPathNotEmpty(subject algebra.Term) ([]*algebra.TriplePattern, []*algebra.Path, error) {
	var plain []*algebra.TriplePattern
	var paths []*algebra.Path
	p.drainInline(&plain, &paths)

	for {
		path, isPlainIRI, err := p.parseVerbPath()
		if err != nil {
			return nil, nil, err
		}
		objects, err := p.parseObjectListPath()
		if err != nil {
			return nil, nil, err
		}
		p.drainInline(&plain, &paths)
		for _, obj := range objects {
			if isPlainIRI {
				plain = append(plain, &algebra.TriplePattern{Subject: subject, Predicate: path.(*algebra.PathIRI).IRI, Object: obj})
			} else {
				paths = append(paths, &algebra.Path{Subject: subject, Path: path, Object: obj})
			}
			p.drainInline(&plain, &paths)
		}

		p.skipWhitespace()
		if !p.matchByte(';') {
			return plain, paths, nil
		}
		p.skipWhitespace()
		if p.peekByte() == '.' || p.peekByte() == '}' || p.peekByte() == ']' {
			return plain, paths, nil
		}
	}
}

func (p *Parser) drainInline(plain *[]*algebra.TriplePattern, paths *[]*algebra.Path) {
	if len(p.inlineTriples) > 0 {
		*plain = append(*plain, p.inlineTriples...)
		p.inlineTriples = nil
	}
	if len(p.inlinePaths) > 0 {
		*paths = append(*paths, p.inlinePaths...)
		p.inlinePaths = nil
	}
}

func (p *Parser) parseVerbPath() (algebra.PathExpr, bool, error) {
	p.skipWhitespace()
	if p.matchKeyword("a") {
		return &algebra.PathIRI{IRI: rdf.NewNamedNode(rdf.RDFTypeIRI)}, true, nil
	}
	path, err := p.parsePath()
	if err != nil {
		return nil, false, err
	}
	if iri, ok := path.(*algebra.PathIRI); ok {
		return iri, true, nil
	}
	return path, false, nil
}

func (p *Parser) parseObjectListPath() ([]algebra.Term, error) {
	var objects []algebra.Term
	for {
		obj, err := p.parseVarOrTerm()
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
		p.skipWhitespace()
		if !p.matchByte(',') {
			return objects, nil
		}
	}
}

// parseConstraint parses a FILTER constraint: either a bracketed
// expression, a BuiltInCall, or a function call, per the SPARQL grammar's
// Constraint production.
func (p *Parser) parseConstraint() (algebra.Expr, error) {
	return p.parsePrimaryExpression()
}

func (p *Parser) parseInlineData() (*algebra.Values, error) {
	p.skipWhitespace()
	var vars []*algebra.Variable
	if p.matchByte('(') {
		for !p.matchByte(')') {
			name, err := p.parseVarName()
			if err != nil {
				return nil, err
			}
			vars = append(vars, algebra.NewVariable(name))
			p.skipWhitespace()
		}
	} else if p.peekIsVar() {
		name, err := p.parseVarName()
		if err != nil {
			return nil, err
		}
		vars = append(vars, algebra.NewVariable(name))
	} else {
		return nil, p.errorf("expected VALUES variable list")
	}

	if err := p.expectByte('{'); err != nil {
		return nil, err
	}
	var rows [][]rdf.Term
	for {
		p.skipWhitespace()
		if p.matchByte('}') {
			break
		}
		var row []rdf.Term
		if p.matchByte('(') {
			for !p.matchByte(')') {
				term, err := p.parseDataValue()
				if err != nil {
					return nil, err
				}
				row = append(row, term)
				p.skipWhitespace()
			}
		} else {
			term, err := p.parseDataValue()
			if err != nil {
				return nil, err
			}
			row = append(row, term)
		}
		rows = append(rows, row)
	}
	return &algebra.Values{Vars: vars, Rows: rows}, nil
}

func (p *Parser) parseDataValue() (rdf.Term, error) {
	p.skipWhitespace()
	if p.matchKeyword("UNDEF") {
		return nil, nil
	}
	return p.parseVarOrTermGround()
}

func (p *Parser) parseVarOrTermGround() (rdf.Term, error) {
	t, err := p.parseVarOrTerm()
	if err != nil {
		return nil, err
	}
	rt, ok := t.(rdf.Term)
	if !ok {
		return nil, p.errorf("expected ground term in VALUES data block")
	}
	return rt, nil
}
