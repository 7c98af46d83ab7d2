package store

import "github.com/rdfkit/trigraph/pkg/rdf"

// Pattern is a quad pattern with optional variables in any position.
// Subject/Predicate/Object/Graph hold either an rdf.Term or a *Variable.
// A nil Graph and a *Variable Graph both match only the default graph:
// selectIndex routes them to the default-graph indexes, so quads in named
// graphs are not returned for them.
type Pattern struct {
	Subject   any
	Predicate any
	Object    any
	Graph     any
}

// Variable names an unbound position in a Pattern or Binding.
type Variable struct {
	Name string
}

func NewVariable(name string) *Variable { return &Variable{Name: name} }

func (v *Variable) String() string { return "?" + v.Name }

func isVariable(v any) bool {
	_, ok := v.(*Variable)
	return ok
}

// Binding maps variable names to terms, with the encoded form cached
// alongside so the evaluator can compare bindings without re-encoding.
type Binding struct {
	Vars   map[string]rdf.Term
	values map[string]EncodedTerm
}

func NewBinding() *Binding {
	return &Binding{Vars: make(map[string]rdf.Term), values: make(map[string]EncodedTerm)}
}

func (b *Binding) Clone() *Binding {
	out := NewBinding()
	for k, v := range b.Vars {
		out.Vars[k] = v
	}
	for k, v := range b.values {
		out.values[k] = v
	}
	return out
}

// Bind records both the decoded term and its encoded form for name.
func (b *Binding) Bind(name string, term rdf.Term, encoded EncodedTerm) {
	b.Vars[name] = term
	b.values[name] = encoded
}

// EncodedValue returns the cached encoded form of a previously bound
// variable, used by join strategies to compare without re-encoding.
func (b *Binding) EncodedValue(name string) (EncodedTerm, bool) {
	v, ok := b.values[name]
	return v, ok
}

// indexPlan names the chosen table and the SPOG-position order its key
// encodes in, e.g. {TablePOS, []int{1,2,0}} means the key is encoded as
// (P, O, S) even though position 0 of keyOrder is logically S=0,P=1,O=2,G=3.
type indexPlan struct {
	table    Table
	keyOrder []int
}

// selectIndex chooses the index whose key-order prefix matches the longest
// run of bound pattern components (spec.md §4's index-selection
// algorithm), tie-broken subject > object > predicate > graph.
func selectIndex(pattern *Pattern) indexPlan {
	sBound := !isVariable(pattern.Subject) && pattern.Subject != nil
	pBound := !isVariable(pattern.Predicate) && pattern.Predicate != nil
	oBound := !isVariable(pattern.Object) && pattern.Object != nil
	gBound := pattern.Graph != nil && !isVariable(pattern.Graph)

	if !gBound {
		switch {
		case sBound && pBound:
			return indexPlan{TableSPO, []int{0, 1, 2}}
		case pBound && oBound:
			return indexPlan{TablePOS, []int{1, 2, 0}}
		case oBound && sBound:
			return indexPlan{TableOSP, []int{2, 0, 1}}
		case sBound:
			return indexPlan{TableSPO, []int{0, 1, 2}}
		case oBound:
			return indexPlan{TableOSP, []int{2, 0, 1}}
		case pBound:
			return indexPlan{TablePOS, []int{1, 2, 0}}
		default:
			return indexPlan{TableSPO, []int{0, 1, 2}}
		}
	}

	switch {
	case gBound && sBound && pBound:
		return indexPlan{TableGSPO, []int{3, 0, 1, 2}}
	case gBound && pBound && oBound:
		return indexPlan{TableGPOS, []int{3, 1, 2, 0}}
	case gBound && oBound && sBound:
		return indexPlan{TableGOSP, []int{3, 2, 0, 1}}
	case gBound && sBound:
		return indexPlan{TableGSPO, []int{3, 0, 1, 2}}
	case gBound && oBound:
		return indexPlan{TableGOSP, []int{3, 2, 0, 1}}
	case gBound && pBound:
		return indexPlan{TableGPOS, []int{3, 1, 2, 0}}
	default:
		return indexPlan{TableGSPO, []int{3, 0, 1, 2}}
	}
}

// buildScanPrefix encodes the leading run of bound positions (in the
// chosen index's key order) into a byte prefix, stopping at the first
// unbound position.
func buildScanPrefix(encoder *TermEncoder, pattern *Pattern, plan indexPlan) ([]byte, error) {
	positions := make([]any, 4)
	positions[0] = pattern.Subject
	positions[1] = pattern.Predicate
	positions[2] = pattern.Object
	if pattern.Graph != nil {
		positions[3] = pattern.Graph
	} else {
		positions[3] = rdf.NewDefaultGraph()
	}

	var prefix []byte
	for _, idx := range plan.keyOrder {
		term := positions[idx]
		if term == nil || isVariable(term) {
			break
		}
		rt, ok := term.(rdf.Term)
		if !ok {
			break
		}
		encoded, _, err := encoder.EncodeTerm(rt)
		if err != nil {
			return nil, err
		}
		prefix = append(prefix, encoded[:]...)
	}
	return prefix, nil
}
