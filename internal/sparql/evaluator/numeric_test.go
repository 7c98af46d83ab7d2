package evaluator

import (
	"math"
	"testing"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
)

func TestArithmetic_IntegerOverflowIsError(t *testing.T) {
	maxInt := numericValue{kind: numInteger, i: math.MaxInt64}
	one := numericValue{kind: numInteger, i: 1}

	if _, err := arithmetic(algebra.OpAdd, maxInt, one); err == nil {
		t.Fatal("expected an error adding 1 to MaxInt64, not wraparound")
	}

	minInt := numericValue{kind: numInteger, i: math.MinInt64}
	if _, err := arithmetic(algebra.OpSubtract, minInt, one); err == nil {
		t.Fatal("expected an error subtracting 1 from MinInt64, not wraparound")
	}

	two := numericValue{kind: numInteger, i: 2}
	if _, err := arithmetic(algebra.OpMultiply, maxInt, two); err == nil {
		t.Fatal("expected an error multiplying MaxInt64 by 2, not wraparound")
	}

	if _, err := arithmetic(algebra.OpMultiply, minInt, numericValue{kind: numInteger, i: -1}); err == nil {
		t.Fatal("expected an error for MinInt64 * -1, not wraparound")
	}
}

func TestArithmetic_IntegerNoOverflowSucceeds(t *testing.T) {
	a := numericValue{kind: numInteger, i: 40}
	b := numericValue{kind: numInteger, i: 2}

	sum, err := arithmetic(algebra.OpAdd, a, b)
	if err != nil || sum.i != 42 {
		t.Fatalf("expected 42, got %+v (err=%v)", sum, err)
	}

	diff, err := arithmetic(algebra.OpSubtract, a, b)
	if err != nil || diff.i != 38 {
		t.Fatalf("expected 38, got %+v (err=%v)", diff, err)
	}

	prod, err := arithmetic(algebra.OpMultiply, a, b)
	if err != nil || prod.i != 80 {
		t.Fatalf("expected 80, got %+v (err=%v)", prod, err)
	}
}

func TestNumericValue_IsTruthy(t *testing.T) {
	if (numericValue{kind: numInteger, i: 0}).isTruthy() {
		t.Error("expected 0 to be falsy")
	}
	if !(numericValue{kind: numInteger, i: 1}).isTruthy() {
		t.Error("expected 1 to be truthy")
	}
	if (numericValue{kind: numDouble, f: math.NaN()}).isTruthy() {
		t.Error("expected NaN to be falsy (SPARQL EBV)")
	}
	if !(numericValue{kind: numDouble, f: 1.5}).isTruthy() {
		t.Error("expected 1.5 to be truthy")
	}
}
