package parser

import (
	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// parsePath implements the property-path grammar (spec.md §4.3):
// PathAlternative ('|' PathAlternative)* at the top, built from
// PathSequence ('/' PathSequence)*, built from PathEltOrInverse
// ('^'? PathPrimary PathMod?).
func (p *Parser) parsePath() (algebra.PathExpr, error) {
	return p.parsePathAlternative()
}

func (p *Parser) parsePathAlternative() (algebra.PathExpr, error) {
	left, err := p.parsePathSequence()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if !p.matchByte('|') {
			return left, nil
		}
		right, err := p.parsePathSequence()
		if err != nil {
			return nil, err
		}
		left = &algebra.PathAlt{Left: left, Right: right}
	}
}

func (p *Parser) parsePathSequence() (algebra.PathExpr, error) {
	left, err := p.parsePathEltOrInverse()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if !p.matchByte('/') {
			return left, nil
		}
		right, err := p.parsePathEltOrInverse()
		if err != nil {
			return nil, err
		}
		left = &algebra.PathSeq{Left: left, Right: right}
	}
}

func (p *Parser) parsePathEltOrInverse() (algebra.PathExpr, error) {
	p.skipWhitespace()
	inverse := p.matchByte('^')
	primary, err := p.parsePathPrimary()
	if err != nil {
		return nil, err
	}
	if inverse {
		primary = &algebra.PathInverse{Path: primary}
	}
	return p.parsePathMod(primary)
}

func (p *Parser) parsePathMod(inner algebra.PathExpr) (algebra.PathExpr, error) {
	p.skipWhitespace()
	switch {
	case p.matchByte('*'):
		return &algebra.PathZeroOrMore{Path: inner}, nil
	case p.matchByte('+'):
		return &algebra.PathOneOrMore{Path: inner}, nil
	case p.peekByte() == '?' && !(p.pos+1 < p.length && isIdentByte(p.input[p.pos+1])):
		// A '?' directly followed by a name is the next variable, not a
		// zero-or-one modifier.
		p.pos++
		return &algebra.PathZeroOrOne{Path: inner}, nil
	default:
		return inner, nil
	}
}

func (p *Parser) parsePathPrimary() (algebra.PathExpr, error) {
	p.skipWhitespace()
	switch {
	case p.matchByte('('):
		inner, err := p.parsePathAlternative()
		if err != nil {
			return nil, err
		}
		if err := p.expectByte(')'); err != nil {
			return nil, err
		}
		return inner, nil
	case p.matchByte('!'):
		return p.parsePathNegatedPropertySet()
	case p.matchKeyword("a"):
		return &algebra.PathIRI{IRI: rdf.NewNamedNode(rdf.RDFTypeIRI)}, nil
	default:
		iri, err := p.parseIRITerm()
		if err != nil {
			return nil, err
		}
		return &algebra.PathIRI{IRI: iri}, nil
	}
}

func (p *Parser) parsePathNegatedPropertySet() (algebra.PathExpr, error) {
	neg := &algebra.PathNegatedSet{}
	parseOne := func() error {
		p.skipWhitespace()
		inverse := p.matchByte('^')
		iri, err := p.parseIRITerm()
		if err != nil {
			return err
		}
		if inverse {
			neg.Inverse = append(neg.Inverse, iri)
		} else {
			neg.IRIs = append(neg.IRIs, iri)
		}
		return nil
	}
	p.skipWhitespace()
	if p.matchByte('(') {
		p.skipWhitespace()
		if !p.matchByte(')') {
			if err := parseOne(); err != nil {
				return nil, err
			}
			for p.matchByte('|') {
				if err := parseOne(); err != nil {
					return nil, err
				}
			}
			if err := p.expectByte(')'); err != nil {
				return nil, err
			}
		}
		return neg, nil
	}
	if err := parseOne(); err != nil {
		return nil, err
	}
	return neg, nil
}
