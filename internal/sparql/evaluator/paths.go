package evaluator

import (
	"context"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/internal/store"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// evalPath evaluates a property-path triple pattern (spec.md §4.3/§4.5).
// The optimizer unfolds fixed-length path shapes into ordinary BGPs; what
// reaches here is everything that genuinely needs a traversal: `*`, `+`,
// `?`, negated property sets, and any composite built from them.
func (e *Evaluator) evalPath(ctx context.Context, input Iterator, p *algebra.Path, graph rdf.Term) (Iterator, error) {
	return flatMap(input, func(ctx context.Context, outer Solution) (Iterator, error) {
		return e.evalPathForSolution(ctx, outer, p, graph)
	}), nil
}

func (e *Evaluator) evalPathForSolution(ctx context.Context, outer Solution, p *algebra.Path, graph rdf.Term) (Iterator, error) {
	subjTerm, subjBound := pathTermBound(p.Subject, outer)
	objTerm, objBound := pathTermBound(p.Object, outer)

	switch {
	case subjBound:
		ends, err := e.pathStep(ctx, subjTerm, p.Path, graph)
		if err != nil {
			return nil, err
		}
		return bindPathEnds(outer, p.Object, objTerm, objBound, ends), nil

	case objBound:
		ends, err := e.pathStep(ctx, objTerm, invertPath(p.Path), graph)
		if err != nil {
			return nil, err
		}
		return bindPathEnds(outer, p.Subject, subjTerm, false, ends), nil

	default:
		// Neither endpoint bound: enumerate every subject in scope and
		// traverse from each. Expensive, but correct, and rare in
		// practice (most path patterns inherit a bound endpoint from an
		// enclosing BGP join).
		subjects, err := e.allTerms(ctx, graph)
		if err != nil {
			return nil, err
		}
		var iters []Iterator
		for _, s := range subjects {
			ends, err := e.pathStep(ctx, s, p.Path, graph)
			if err != nil {
				return nil, err
			}
			iters = append(iters, bindPathPair(outer, p.Subject, s, p.Object, ends))
		}
		return concatIterators(iters...), nil
	}
}

func pathTermBound(term algebra.Term, sol Solution) (rdf.Term, bool) {
	if v, ok := term.(*algebra.Variable); ok {
		t, ok2 := sol[v.Name]
		return t, ok2
	}
	rt, ok := term.(rdf.Term)
	return rt, ok
}

func bindPathEnds(outer Solution, spec algebra.Term, bound rdf.Term, isBound bool, ends []rdf.Term) Iterator {
	var rows []Solution
	if isBound {
		for _, end := range ends {
			if bound.Equals(end) {
				rows = append(rows, outer.Clone())
			}
		}
		return newSliceIterator(rows)
	}
	v := spec.(*algebra.Variable)
	seen := map[string]bool{}
	for _, end := range ends {
		k := end.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, outer.Extend(v.Name, end))
	}
	return newSliceIterator(rows)
}

func bindPathPair(outer Solution, subjSpec algebra.Term, subj rdf.Term, objSpec algebra.Term, ends []rdf.Term) Iterator {
	var rows []Solution
	sv, subjIsVar := subjSpec.(*algebra.Variable)
	ov, objIsVar := objSpec.(*algebra.Variable)
	seen := map[string]bool{}
	for _, end := range ends {
		sol := outer.Clone()
		if subjIsVar {
			sol[sv.Name] = subj
		}
		if objIsVar {
			sol[ov.Name] = end
		} else if rt, ok := objSpec.(rdf.Term); !ok || !rt.Equals(end) {
			continue
		}
		key := solutionKey(sol)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, sol)
	}
	return newSliceIterator(rows)
}

// pathStep returns the full set of terms reachable from term by the
// relation path denotes. For PathIRI/PathInverse leaves this is one
// index scan; composite operators recurse structurally, and
// PathZeroOrMore/PathOneOrMore drive a BFS fixpoint over pathStep itself
// as the one-hop edge relation.
func (e *Evaluator) pathStep(ctx context.Context, term rdf.Term, path algebra.PathExpr, graph rdf.Term) ([]rdf.Term, error) {
	select {
	case <-ctx.Done():
		return nil, NewCancelledError()
	default:
	}
	switch p := path.(type) {
	case *algebra.PathIRI:
		return e.scanStep(term, p.IRI, graph, false)

	case *algebra.PathInverse:
		return e.pathStep(ctx, term, invertPath(p.Path), graph)

	case *algebra.PathSeq:
		mids, err := e.pathStep(ctx, term, p.Left, graph)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		var out []rdf.Term
		for _, m := range mids {
			ends, err := e.pathStep(ctx, m, p.Right, graph)
			if err != nil {
				return nil, err
			}
			for _, end := range ends {
				k := end.String()
				if seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, end)
			}
		}
		return out, nil

	case *algebra.PathAlt:
		a, err := e.pathStep(ctx, term, p.Left, graph)
		if err != nil {
			return nil, err
		}
		b, err := e.pathStep(ctx, term, p.Right, graph)
		if err != nil {
			return nil, err
		}
		return dedupTerms(append(a, b...)), nil

	case *algebra.PathZeroOrOne:
		out, err := e.pathStep(ctx, term, p.Path, graph)
		if err != nil {
			return nil, err
		}
		return dedupTerms(append(out, term)), nil

	case *algebra.PathZeroOrMore:
		return e.bfsClosure(ctx, term, p.Path, graph, true)

	case *algebra.PathOneOrMore:
		return e.bfsClosure(ctx, term, p.Path, graph, false)

	case *algebra.PathNegatedSet:
		return e.scanNegated(term, p, graph)

	default:
		return nil, NewTypeError("unsupported property path node %T", path)
	}
}

// bfsClosure computes the transitive closure of inner starting at start.
// zeroOrMore pre-seeds start itself into the result (the `*` case); the
// `+` case (zeroOrMore=false) only includes start if some cycle leads
// back to it. visited also doubles as the cycle-safety guard.
func (e *Evaluator) bfsClosure(ctx context.Context, start rdf.Term, inner algebra.PathExpr, graph rdf.Term, zeroOrMore bool) ([]rdf.Term, error) {
	visited := map[string]rdf.Term{}
	var order []string
	if zeroOrMore {
		k := start.String()
		visited[k] = start
		order = append(order, k)
	}
	frontier := []rdf.Term{start}
	for len(frontier) > 0 {
		var next []rdf.Term
		for _, node := range frontier {
			select {
			case <-ctx.Done():
				return nil, NewCancelledError()
			default:
			}
			succs, err := e.pathStep(ctx, node, inner, graph)
			if err != nil {
				return nil, err
			}
			for _, s := range succs {
				k := s.String()
				if _, seen := visited[k]; seen {
					continue
				}
				visited[k] = s
				order = append(order, k)
				next = append(next, s)
			}
		}
		frontier = next
	}
	out := make([]rdf.Term, len(order))
	for i, k := range order {
		out[i] = visited[k]
	}
	return out, nil
}

// invertPath rewrites path into the path expression traversed in the
// opposite direction, pushing PathInverse down to its PathIRI leaves
// rather than leaving it wrapping an arbitrary subtree, so pathStep only
// ever needs to special-case PathInverse-of-PathIRI.
func invertPath(p algebra.PathExpr) algebra.PathExpr {
	switch t := p.(type) {
	case *algebra.PathIRI:
		return &algebra.PathInverse{Path: t}
	case *algebra.PathInverse:
		return t.Path
	case *algebra.PathSeq:
		return &algebra.PathSeq{Left: invertPath(t.Right), Right: invertPath(t.Left)}
	case *algebra.PathAlt:
		return &algebra.PathAlt{Left: invertPath(t.Left), Right: invertPath(t.Right)}
	case *algebra.PathZeroOrMore:
		return &algebra.PathZeroOrMore{Path: invertPath(t.Path)}
	case *algebra.PathOneOrMore:
		return &algebra.PathOneOrMore{Path: invertPath(t.Path)}
	case *algebra.PathZeroOrOne:
		return &algebra.PathZeroOrOne{Path: invertPath(t.Path)}
	case *algebra.PathNegatedSet:
		return &algebra.PathNegatedSet{IRIs: t.Inverse, Inverse: t.IRIs}
	default:
		return p
	}
}

func (e *Evaluator) scanStep(term rdf.Term, iri *rdf.NamedNode, graph rdf.Term, inverse bool) ([]rdf.Term, error) {
	pattern := &store.Pattern{Predicate: iri}
	if inverse {
		pattern.Object = term
	} else {
		pattern.Subject = term
	}
	if graph != nil {
		pattern.Graph = graph
	}
	qit, err := e.Store.QuadsForPatternInTxn(e.Txn, pattern)
	if err != nil {
		return nil, err
	}
	defer qit.Close()
	var out []rdf.Term
	for qit.Next() {
		quad, err := qit.Quad()
		if err != nil {
			return nil, err
		}
		if inverse {
			out = append(out, quad.Subject)
		} else {
			out = append(out, quad.Object)
		}
	}
	return out, nil
}

func (e *Evaluator) scanNegated(term rdf.Term, p *algebra.PathNegatedSet, graph rdf.Term) ([]rdf.Term, error) {
	excluded := map[string]bool{}
	for _, iri := range p.IRIs {
		excluded[iri.IRI] = true
	}
	excludedInverse := map[string]bool{}
	for _, iri := range p.Inverse {
		excludedInverse[iri.IRI] = true
	}
	scanForward := len(p.IRIs) > 0 || len(p.Inverse) == 0
	scanBackward := len(p.Inverse) > 0

	forward := &store.Pattern{Subject: term}
	if graph != nil {
		forward.Graph = graph
	}
	fit, err := e.Store.QuadsForPatternInTxn(e.Txn, forward)
	if err != nil {
		return nil, err
	}
	var out []rdf.Term
	for fit.Next() {
		quad, err := fit.Quad()
		if err != nil {
			fit.Close()
			return nil, err
		}
		if nn, ok := quad.Predicate.(*rdf.NamedNode); ok && scanForward && !excluded[nn.IRI] {
			out = append(out, quad.Object)
		}
	}
	fit.Close()

	backward := &store.Pattern{Object: term}
	if graph != nil {
		backward.Graph = graph
	}
	bit, err := e.Store.QuadsForPatternInTxn(e.Txn, backward)
	if err != nil {
		return nil, err
	}
	for bit.Next() {
		quad, err := bit.Quad()
		if err != nil {
			bit.Close()
			return nil, err
		}
		if nn, ok := quad.Predicate.(*rdf.NamedNode); ok && scanBackward && !excludedInverse[nn.IRI] {
			out = append(out, quad.Subject)
		}
	}
	bit.Close()

	return dedupTerms(out), nil
}

func (e *Evaluator) allTerms(ctx context.Context, graph rdf.Term) ([]rdf.Term, error) {
	pattern := &store.Pattern{}
	if graph != nil {
		pattern.Graph = graph
	}
	qit, err := e.Store.QuadsForPatternInTxn(e.Txn, pattern)
	if err != nil {
		return nil, err
	}
	defer qit.Close()
	seen := map[string]bool{}
	var out []rdf.Term
	for qit.Next() {
		select {
		case <-ctx.Done():
			return nil, NewCancelledError()
		default:
		}
		quad, err := qit.Quad()
		if err != nil {
			return nil, err
		}
		k := quad.Subject.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, quad.Subject)
	}
	return out, nil
}

func dedupTerms(terms []rdf.Term) []rdf.Term {
	seen := map[string]bool{}
	var out []rdf.Term
	for _, t := range terms {
		k := t.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
