package evaluator

import (
	"math"
	"strconv"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// numericKind orders the SPARQL numeric type-promotion lattice: integer
// operations stay exact (int64); mixing in a decimal or double promotes
// the whole expression, and division always promotes at least to
// decimal (SPARQL 1.1 §17.4.2.1: `/` never yields xsd:integer).
type numericKind int

const (
	numInteger numericKind = iota
	numDecimal
	numDouble
)

type numericValue struct {
	kind numericKind
	i    int64
	f    float64
}

func (n numericValue) asFloat() float64 {
	if n.kind == numInteger {
		return float64(n.i)
	}
	return n.f
}

// isTruthy reports the numeric effective boolean value: non-zero and, for
// a double/float, not NaN (SPARQL 1.1 §17.2.2: NaN's EBV is false even
// though NaN != 0).
func (n numericValue) isTruthy() bool {
	if n.kind == numInteger {
		return n.i != 0
	}
	return n.f != 0 && !math.IsNaN(n.f)
}

func (n numericValue) negate() numericValue {
	if n.kind == numInteger {
		return numericValue{kind: numInteger, i: -n.i}
	}
	return numericValue{kind: n.kind, f: -n.f}
}

func (n numericValue) compare(o numericValue) int {
	if n.kind == numInteger && o.kind == numInteger {
		switch {
		case n.i < o.i:
			return -1
		case n.i > o.i:
			return 1
		default:
			return 0
		}
	}
	a, b := n.asFloat(), o.asFloat()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (n numericValue) toTerm() rdf.Term {
	switch n.kind {
	case numInteger:
		return rdf.NewIntegerLiteral(n.i)
	case numDecimal:
		return rdf.NewDecimalLiteral(n.f)
	default:
		return rdf.NewDoubleLiteral(n.f)
	}
}

// asNumeric coerces an rdf.Term to a numericValue, succeeding only for
// literals typed xsd:integer/decimal/double/float with a parseable
// lexical form.
func asNumeric(t rdf.Term) (numericValue, bool) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return numericValue{}, false
	}
	return parseNumeric(lit)
}

func parseNumeric(lit *rdf.Literal) (numericValue, bool) {
	dt := lit.EffectiveDatatype()
	switch {
	case dt.Equals(rdf.XSDInteger):
		i, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return numericValue{}, false
		}
		return numericValue{kind: numInteger, i: i}, true
	case dt.Equals(rdf.XSDDecimal):
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return numericValue{}, false
		}
		return numericValue{kind: numDecimal, f: f}, true
	case dt.Equals(rdf.XSDDouble) || dt.Equals(rdf.XSDFloat):
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return numericValue{}, false
		}
		return numericValue{kind: numDouble, f: f}, true
	}
	return numericValue{}, false
}

func promote(a, b numericKind) numericKind {
	if a > b {
		return a
	}
	return b
}

// addInt64/subInt64/mulInt64 report ok=false on signed 64-bit overflow
// (SPEC §8: integer overflow in arithmetic surfaces as an evaluation
// error, not silent wraparound).
func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func subInt64(a, b int64) (int64, bool) {
	if b == math.MinInt64 {
		return 0, false
	}
	return addInt64(a, -b)
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	prod := a * b
	if prod/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return prod, true
}

func arithmetic(op algebra.BinaryOp, a, b numericValue) (numericValue, error) {
	if op == algebra.OpDivide {
		kind := promote(promote(a.kind, b.kind), numDecimal)
		af, bf := a.asFloat(), b.asFloat()
		if bf == 0 {
			return numericValue{}, NewTypeError("division by zero")
		}
		return numericValue{kind: kind, f: af / bf}, nil
	}

	kind := promote(a.kind, b.kind)
	if kind == numInteger {
		switch op {
		case algebra.OpAdd:
			sum, ok := addInt64(a.i, b.i)
			if !ok {
				return numericValue{}, NewTypeError("integer overflow in addition")
			}
			return numericValue{kind: numInteger, i: sum}, nil
		case algebra.OpSubtract:
			diff, ok := subInt64(a.i, b.i)
			if !ok {
				return numericValue{}, NewTypeError("integer overflow in subtraction")
			}
			return numericValue{kind: numInteger, i: diff}, nil
		case algebra.OpMultiply:
			prod, ok := mulInt64(a.i, b.i)
			if !ok {
				return numericValue{}, NewTypeError("integer overflow in multiplication")
			}
			return numericValue{kind: numInteger, i: prod}, nil
		}
	}
	af, bf := a.asFloat(), b.asFloat()
	switch op {
	case algebra.OpAdd:
		return numericValue{kind: kind, f: af + bf}, nil
	case algebra.OpSubtract:
		return numericValue{kind: kind, f: af - bf}, nil
	case algebra.OpMultiply:
		return numericValue{kind: kind, f: af * bf}, nil
	default:
		return numericValue{}, NewTypeError("unsupported arithmetic operator")
	}
}
