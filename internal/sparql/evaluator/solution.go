package evaluator

import "github.com/rdfkit/trigraph/pkg/rdf"

// Solution is one SPARQL result mapping: a partial function from
// variable name to bound rdf.Term. A variable absent from the map is
// unbound in this solution, distinct from being bound to a term.
type Solution map[string]rdf.Term

func NewSolution() Solution { return make(Solution) }

func (s Solution) Clone() Solution {
	out := make(Solution, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Extend returns a copy of s with name bound to term.
func (s Solution) Extend(name string, term rdf.Term) Solution {
	out := s.Clone()
	out[name] = term
	return out
}

// Compatible reports whether s and other agree on every variable they
// share (the join condition for Join/LeftJoin/Minus).
func (s Solution) Compatible(other Solution) bool {
	for k, v := range s {
		if ov, ok := other[k]; ok && !v.Equals(ov) {
			return false
		}
	}
	return true
}

// Merge returns the union of s and other, assuming Compatible(other)
// already holds.
func (s Solution) Merge(other Solution) Solution {
	out := s.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// SharesVariable reports whether s and other have at least one variable
// in common, regardless of value (used by Minus, which only removes a
// left solution when it is both compatible with and overlapping a right
// one).
func (s Solution) SharesVariable(other Solution) bool {
	for k := range s {
		if _, ok := other[k]; ok {
			return true
		}
	}
	return false
}
