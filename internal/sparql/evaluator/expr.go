package evaluator

import (
	"context"
	"strings"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// evalExprValue evaluates expr against sol, returning the bound term or a
// type error. Callers that tolerate an unbound result (BIND, SELECT-list
// expressions) catch the error themselves; FILTER/ORDER BY route through
// ebv/compareTerms instead.
func (e *Evaluator) evalExprValue(expr algebra.Expr, sol Solution) (rdf.Term, error) {
	switch ex := expr.(type) {
	case *algebra.ExprLiteral:
		return ex.Term, nil

	case *algebra.ExprVar:
		v, ok := sol[ex.Var.Name]
		if !ok {
			return nil, NewTypeError("unbound variable ?%s", ex.Var.Name)
		}
		return v, nil

	case *algebra.ExprUnary:
		return e.evalUnary(ex, sol)

	case *algebra.ExprBinary:
		return e.evalBinary(ex, sol)

	case *algebra.ExprFunctionCall:
		return e.evalFunctionCall(ex, sol)

	case *algebra.ExprIf:
		ok, err := e.ebv(ex.Cond, sol)
		if err != nil {
			return e.evalExprValue(ex.Else, sol)
		}
		if ok {
			return e.evalExprValue(ex.Then, sol)
		}
		return e.evalExprValue(ex.Else, sol)

	case *algebra.ExprCoalesce:
		for _, a := range ex.Args {
			if v, err := e.evalExprValue(a, sol); err == nil {
				return v, nil
			}
		}
		return nil, NewTypeError("COALESCE: every argument unbound or errored")

	case *algebra.ExprBound:
		_, ok := sol[ex.Var.Name]
		return rdf.NewBooleanLiteral(ok), nil

	case *algebra.ExprExists:
		found, err := e.evalExists(ex.Pattern, sol)
		if err != nil {
			return nil, err
		}
		if ex.Negate {
			found = !found
		}
		return rdf.NewBooleanLiteral(found), nil

	default:
		return nil, NewTypeError("unsupported expression node %T", expr)
	}
}

// ebv computes a SPARQL effective boolean value: a type error (including
// an unbound variable or an unsupported EBV coercion) propagates so
// FILTER can treat it as exclusion without this helper deciding that
// policy itself.
func (e *Evaluator) ebv(expr algebra.Expr, sol Solution) (bool, error) {
	val, err := e.evalExprValue(expr, sol)
	if err != nil {
		return false, err
	}
	return effectiveBooleanValue(val)
}

func effectiveBooleanValue(t rdf.Term) (bool, error) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return false, NewTypeError("effective boolean value undefined for %T", t)
	}
	dt := lit.EffectiveDatatype()
	switch {
	case dt.Equals(rdf.XSDBoolean):
		return lit.Value == "true" || lit.Value == "1", nil
	case dt.Equals(rdf.XSDString):
		return lit.Value != "", nil
	}
	if n, ok := parseNumeric(lit); ok {
		return n.isTruthy(), nil
	}
	return false, NewTypeError("effective boolean value undefined for datatype %s", dt.IRI)
}

func (e *Evaluator) evalUnary(ex *algebra.ExprUnary, sol Solution) (rdf.Term, error) {
	switch ex.Op {
	case algebra.OpNot:
		ok, err := e.ebv(ex.Operand, sol)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(!ok), nil

	case algebra.OpUnaryPlus:
		v, err := e.evalExprValue(ex.Operand, sol)
		if err != nil {
			return nil, err
		}
		if _, ok := asNumeric(v); !ok {
			return nil, NewTypeError("unary + requires a numeric operand")
		}
		return v, nil

	case algebra.OpNeg:
		v, err := e.evalExprValue(ex.Operand, sol)
		if err != nil {
			return nil, err
		}
		n, ok := asNumeric(v)
		if !ok {
			return nil, NewTypeError("unary - requires a numeric operand")
		}
		return n.negate().toTerm(), nil

	default:
		return nil, NewTypeError("unsupported unary operator")
	}
}

func (e *Evaluator) evalBinary(ex *algebra.ExprBinary, sol Solution) (rdf.Term, error) {
	switch ex.Op {
	case algebra.OpOr:
		l, lerr := e.ebv(ex.Left, sol)
		if lerr == nil && l {
			return rdf.NewBooleanLiteral(true), nil
		}
		r, rerr := e.ebv(ex.Right, sol)
		if rerr == nil && r {
			return rdf.NewBooleanLiteral(true), nil
		}
		if lerr != nil || rerr != nil {
			return nil, NewTypeError("|| : operand error with no true operand")
		}
		return rdf.NewBooleanLiteral(false), nil

	case algebra.OpAnd:
		l, lerr := e.ebv(ex.Left, sol)
		if lerr == nil && !l {
			return rdf.NewBooleanLiteral(false), nil
		}
		r, rerr := e.ebv(ex.Right, sol)
		if rerr == nil && !r {
			return rdf.NewBooleanLiteral(false), nil
		}
		if lerr != nil || rerr != nil {
			return nil, NewTypeError("&& : operand error with no false operand")
		}
		return rdf.NewBooleanLiteral(true), nil

	case algebra.OpIn, algebra.OpNotIn:
		return e.evalIn(ex, sol)
	}

	l, err := e.evalExprValue(ex.Left, sol)
	if err != nil {
		return nil, err
	}
	r, err := e.evalExprValue(ex.Right, sol)
	if err != nil {
		return nil, err
	}

	switch ex.Op {
	case algebra.OpEqual, algebra.OpNotEqual:
		eq, err := termsEqual(l, r)
		if err != nil {
			return nil, err
		}
		if ex.Op == algebra.OpNotEqual {
			eq = !eq
		}
		return rdf.NewBooleanLiteral(eq), nil

	case algebra.OpLess, algebra.OpLessEqual, algebra.OpGreater, algebra.OpGreaterEqual:
		cmp, ok := compareTerms(l, r)
		if !ok {
			return nil, NewTypeError("incomparable operands for relational operator")
		}
		var result bool
		switch ex.Op {
		case algebra.OpLess:
			result = cmp < 0
		case algebra.OpLessEqual:
			result = cmp <= 0
		case algebra.OpGreater:
			result = cmp > 0
		case algebra.OpGreaterEqual:
			result = cmp >= 0
		}
		return rdf.NewBooleanLiteral(result), nil

	case algebra.OpAdd, algebra.OpSubtract, algebra.OpMultiply, algebra.OpDivide:
		ln, ok := asNumeric(l)
		if !ok {
			return nil, NewTypeError("arithmetic requires numeric operands")
		}
		rn, ok := asNumeric(r)
		if !ok {
			return nil, NewTypeError("arithmetic requires numeric operands")
		}
		result, err := arithmetic(ex.Op, ln, rn)
		if err != nil {
			return nil, err
		}
		return result.toTerm(), nil

	default:
		return nil, NewTypeError("unsupported binary operator")
	}
}

func (e *Evaluator) evalIn(ex *algebra.ExprBinary, sol Solution) (rdf.Term, error) {
	l, err := e.evalExprValue(ex.Left, sol)
	if err != nil {
		return nil, err
	}
	sawError := false
	match := false
	for _, item := range ex.List {
		r, err := e.evalExprValue(item, sol)
		if err != nil {
			sawError = true
			continue
		}
		eq, err := termsEqual(l, r)
		if err != nil {
			sawError = true
			continue
		}
		if eq {
			match = true
			break
		}
	}
	if !match && sawError {
		return nil, NewTypeError("IN: comparison error with no match found")
	}
	if ex.Op == algebra.OpNotIn {
		match = !match
	}
	return rdf.NewBooleanLiteral(match), nil
}

// evalExists evaluates pattern as a correlated subquery seeded with sol's
// current bindings, reporting whether it produces at least one solution.
// It runs against the default graph scope regardless of any enclosing
// GRAPH clause's scope, since EXISTS/NOT EXISTS in this implementation is
// only reachable from FILTER, which carries no graph context of its own;
// a GRAPH-scoped EXISTS pattern still names its graph explicitly via a
// nested algebra.Graph node, which e.Eval handles normally.
func (e *Evaluator) evalExists(pattern algebra.Node, sol Solution) (bool, error) {
	ctx := context.Background()
	it, err := e.Eval(ctx, pattern, newSliceIterator([]Solution{sol}), nil)
	if err != nil {
		return false, err
	}
	defer it.Close()
	found := it.Next(ctx)
	if err := it.Err(); err != nil {
		return false, err
	}
	return found, nil
}

// termsEqual implements SPARQL's `=`/`!=` coercion: numerics compare by
// value, plain/xsd:string literals compare lexically (matching
// languages), booleans compare by value, and everything else falls back
// to RDF term equality.
func termsEqual(a, b rdf.Term) (bool, error) {
	if an, aok := asNumeric(a); aok {
		if bn, bok := asNumeric(b); bok {
			return an.compare(bn) == 0, nil
		}
		return false, NewTypeError("cannot compare numeric to non-numeric")
	}
	al, aok := a.(*rdf.Literal)
	bl, bok := b.(*rdf.Literal)
	if aok && bok {
		adt, bdt := al.EffectiveDatatype(), bl.EffectiveDatatype()
		if adt.Equals(rdf.XSDBoolean) && bdt.Equals(rdf.XSDBoolean) {
			return al.Value == bl.Value, nil
		}
		if isPlainOrStringLiteral(al) && isPlainOrStringLiteral(bl) {
			return al.Value == bl.Value && al.Language == bl.Language, nil
		}
	}
	return a.Equals(b), nil
}

func isPlainOrStringLiteral(l *rdf.Literal) bool {
	return l.Datatype == nil || l.Datatype.Equals(rdf.XSDString)
}

// compareTerms orders a and b for relational operators and ORDER BY.
// Returns ok=false when the pair has no defined ordering (SPARQL leaves
// this a type error for <,<=,>,>=; ORDER BY's orderCompare calls this
// first and falls back to a per-kind rank when ok is false).
func compareTerms(a, b rdf.Term) (int, bool) {
	if an, aok := asNumeric(a); aok {
		if bn, bok := asNumeric(b); bok {
			return an.compare(bn), true
		}
		return 0, false
	}
	al, aok := a.(*rdf.Literal)
	bl, bok := b.(*rdf.Literal)
	if aok && bok && isPlainOrStringLiteral(al) && isPlainOrStringLiteral(bl) && al.Language == bl.Language {
		return strings.Compare(al.Value, bl.Value), true
	}
	if aok && bok && al.EffectiveDatatype().Equals(rdf.XSDBoolean) && bl.EffectiveDatatype().Equals(rdf.XSDBoolean) {
		return strings.Compare(al.Value, bl.Value), true
	}
	return 0, false
}
