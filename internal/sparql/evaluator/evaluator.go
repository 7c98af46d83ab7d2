// Package evaluator executes an optimized internal/sparql/algebra tree
// against an internal/store.Store as a lazy pull pipeline (spec.md §4.5,
// §5): every operator wraps its input iterator(s) rather than
// materializing a result set up front, except where an operator is
// inherently blocking (ORDER BY, GROUP BY, and the Union/Minus
// rules noted below, which trade a bounded amount of buffering for a much
// simpler implementation than true streaming set operations).
//
// The driving idea, grounded on the teacher's executor
// (internal/sparql/executor/executor.go) generalized to the richer
// algebra this module's parser produces: evaluating a node against an
// input iterator means "for each input solution, extend or filter it per
// the node's semantics," so a Join of two sub-patterns is simply
// evaluating the right side against the left side's output — an
// index-nested-loop join for free, since each triple pattern scan
// narrows its store.Pattern using whatever the current solution already
// bound.
package evaluator

import (
	"context"
	"fmt"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/internal/store"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// Evaluator runs algebra trees against a single read transaction, so
// every operator within one query observes the same consistent snapshot
// (spec.md §5's MVCC read isolation).
type Evaluator struct {
	Store *store.Store
	Txn   store.Transaction

	// Service, if set, performs a SPARQL federation call and returns each
	// solution row it gets back. It is called with the endpoint IRI and an
	// empty query string: the SERVICE clause's inner pattern is not
	// serialized to query text. A nil
	// Service (the default; this module carries no HTTP client
	// dependency) makes every SERVICE clause behave as an unreachable
	// endpoint, which is silently empty under SILENT and an
	// EvaluationError::Service otherwise.
	Service func(ctx context.Context, endpoint string, query string) ([]Solution, error)
}

func New(s *store.Store, txn store.Transaction) *Evaluator {
	return &Evaluator{Store: s, Txn: txn}
}

// Eval evaluates node against input, the stream of solutions already
// established by whatever encloses node (a single empty solution at the
// top of a query). graph is the active default-graph scope: nil means
// the unnamed default graph, a bound rdf.Term means a GRAPH clause has
// narrowed evaluation to that named graph.
func (e *Evaluator) Eval(ctx context.Context, node algebra.Node, input Iterator, graph rdf.Term) (Iterator, error) {
	switch t := node.(type) {
	case *algebra.BGP:
		return e.evalBGP(ctx, input, t.Patterns, graph)

	case *algebra.Join:
		left, err := e.Eval(ctx, t.Left, input, graph)
		if err != nil {
			return nil, err
		}
		return e.Eval(ctx, t.Right, left, graph)

	case *algebra.LeftJoin:
		left, err := e.Eval(ctx, t.Left, input, graph)
		if err != nil {
			return nil, err
		}
		return e.evalLeftJoin(left, t.Right, t.Filter, graph), nil

	case *algebra.Filter:
		inner, err := e.Eval(ctx, t.Inner, input, graph)
		if err != nil {
			return nil, err
		}
		return e.evalFilter(inner, t.Expr), nil

	case *algebra.Union:
		rows, err := drainAll(ctx, input)
		if err != nil {
			return nil, err
		}
		left, err := e.Eval(ctx, t.Left, newSliceIterator(cloneRows(rows)), graph)
		if err != nil {
			return nil, err
		}
		right, err := e.Eval(ctx, t.Right, newSliceIterator(cloneRows(rows)), graph)
		if err != nil {
			return nil, err
		}
		return concatIterators(left, right), nil

	case *algebra.Minus:
		return e.evalMinus(ctx, input, t.Left, t.Right, graph)

	case *algebra.Graph:
		return e.evalGraph(ctx, input, t, graph)

	case *algebra.Extend:
		inner, err := e.Eval(ctx, t.Inner, input, graph)
		if err != nil {
			return nil, err
		}
		return mapIterator(inner, func(sol Solution) Solution {
			val, err := e.evalExprValue(t.Expr, sol)
			if err != nil {
				return sol
			}
			return sol.Extend(t.Var.Name, val)
		}), nil

	case *algebra.Values:
		return e.evalValues(input, t), nil

	case *algebra.Project:
		inner, err := e.Eval(ctx, t.Inner, input, graph)
		if err != nil {
			return nil, err
		}
		return e.evalProject(inner, t.Vars), nil

	case *algebra.Distinct:
		inner, err := e.Eval(ctx, t.Inner, input, graph)
		if err != nil {
			return nil, err
		}
		return e.evalDedup(inner), nil

	case *algebra.Reduced:
		inner, err := e.Eval(ctx, t.Inner, input, graph)
		if err != nil {
			return nil, err
		}
		// REDUCED permits, but does not require, duplicate elimination;
		// this evaluator opportunistically dedups using the same
		// mechanism as DISTINCT.
		return e.evalDedup(inner), nil

	case *algebra.Slice:
		inner, err := e.Eval(ctx, t.Inner, input, graph)
		if err != nil {
			return nil, err
		}
		return e.evalSlice(inner, t.Offset, t.Limit), nil

	case *algebra.OrderBy:
		inner, err := e.Eval(ctx, t.Inner, input, graph)
		if err != nil {
			return nil, err
		}
		return e.evalOrderBy(ctx, inner, t.Conditions)

	case *algebra.Group:
		inner, err := e.Eval(ctx, t.Inner, input, graph)
		if err != nil {
			return nil, err
		}
		return e.evalGroup(ctx, inner, t)

	case *algebra.Path:
		return e.evalPath(ctx, input, t, graph)

	case *algebra.Service:
		return e.evalService(ctx, input, t)

	default:
		return nil, fmt.Errorf("evaluator: unsupported algebra node %T", node)
	}
}

// --- Basic graph patterns -------------------------------------------------

func (e *Evaluator) evalBGP(ctx context.Context, input Iterator, patterns []*algebra.TriplePattern, graph rdf.Term) (Iterator, error) {
	result := input
	for _, tp := range patterns {
		pattern := tp
		result = flatMap(result, func(ctx context.Context, outer Solution) (Iterator, error) {
			return e.scanPattern(outer, pattern, graph), nil
		})
	}
	return result, nil
}

// scanPattern scans the store for quads matching tp once outer's
// bindings narrow its variables, yielding one extended solution per
// matching quad. Repeated variables within tp (e.g. `?x :knows ?x`) are
// enforced by unifyQuad regardless of how much the index scan itself
// could narrow.
func (e *Evaluator) scanPattern(outer Solution, tp *algebra.TriplePattern, graph rdf.Term) Iterator {
	pattern := &store.Pattern{
		Subject:   resolveTerm(tp.Subject, outer),
		Predicate: resolveTerm(tp.Predicate, outer),
		Object:    resolveTerm(tp.Object, outer),
	}
	if graph != nil {
		pattern.Graph = graph
	}
	qit, err := e.Store.QuadsForPatternInTxn(e.Txn, pattern)
	if err != nil {
		return errIterator(err)
	}
	return newFuncIterator(func(ctx context.Context) (Solution, bool, error) {
		for qit.Next() {
			quad, err := qit.Quad()
			if err != nil {
				return nil, false, err
			}
			if sol, ok := unifyQuad(tp, quad, outer); ok {
				return sol, true, nil
			}
		}
		return nil, false, nil
	}, qit.Close)
}

func resolveTerm(term algebra.Term, sol Solution) any {
	if v, ok := term.(*algebra.Variable); ok {
		if bound, ok2 := sol[v.Name]; ok2 {
			return bound
		}
		return store.NewVariable(v.Name)
	}
	return term
}

func unifyQuad(tp *algebra.TriplePattern, quad *rdf.Quad, outer Solution) (Solution, bool) {
	sol := outer.Clone()
	if !unifyTerm(tp.Subject, quad.Subject, sol) {
		return nil, false
	}
	if !unifyTerm(tp.Predicate, quad.Predicate, sol) {
		return nil, false
	}
	if !unifyTerm(tp.Object, quad.Object, sol) {
		return nil, false
	}
	return sol, true
}

func unifyTerm(patternTerm algebra.Term, actual rdf.Term, sol Solution) bool {
	if v, ok := patternTerm.(*algebra.Variable); ok {
		if bound, ok2 := sol[v.Name]; ok2 {
			return bound.Equals(actual)
		}
		sol[v.Name] = actual
		return true
	}
	rt, ok := patternTerm.(rdf.Term)
	if !ok {
		return false
	}
	return rt.Equals(actual)
}

// --- LeftJoin / Minus / Graph / Values / Project / Distinct / Slice -----

func (e *Evaluator) evalLeftJoin(left Iterator, right algebra.Node, filter algebra.Expr, graph rdf.Term) Iterator {
	return flatMap(left, func(ctx context.Context, outer Solution) (Iterator, error) {
		rightIter, err := e.Eval(ctx, right, newSliceIterator([]Solution{outer}), graph)
		if err != nil {
			return nil, err
		}
		rows, err := drainAll(ctx, rightIter)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			kept := rows[:0:0]
			for _, r := range rows {
				ok, ferr := e.ebv(filter, r)
				if ferr == nil && ok {
					kept = append(kept, r)
				}
			}
			rows = kept
		}
		if len(rows) == 0 {
			return newSliceIterator([]Solution{outer}), nil
		}
		return newSliceIterator(rows), nil
	})
}

func (e *Evaluator) evalMinus(ctx context.Context, input Iterator, left, right algebra.Node, graph rdf.Term) (Iterator, error) {
	rows, err := drainAll(ctx, input)
	if err != nil {
		return nil, err
	}
	leftIter, err := e.Eval(ctx, left, newSliceIterator(cloneRows(rows)), graph)
	if err != nil {
		return nil, err
	}
	leftRows, err := drainAll(ctx, leftIter)
	if err != nil {
		return nil, err
	}
	rightIter, err := e.Eval(ctx, right, newSliceIterator(cloneRows(rows)), graph)
	if err != nil {
		return nil, err
	}
	rightRows, err := drainAll(ctx, rightIter)
	if err != nil {
		return nil, err
	}

	var kept []Solution
	for _, l := range leftRows {
		exclude := false
		for _, r := range rightRows {
			if l.SharesVariable(r) && l.Compatible(r) {
				exclude = true
				break
			}
		}
		if !exclude {
			kept = append(kept, l)
		}
	}
	return newSliceIterator(kept), nil
}

func (e *Evaluator) evalGraph(ctx context.Context, input Iterator, g *algebra.Graph, graph rdf.Term) (Iterator, error) {
	if gv, ok := g.GraphTerm.(*algebra.Variable); ok {
		return flatMap(input, func(ctx context.Context, outer Solution) (Iterator, error) {
			if bound, ok2 := outer[gv.Name]; ok2 {
				nn, ok3 := bound.(*rdf.NamedNode)
				if !ok3 {
					return newSliceIterator(nil), nil
				}
				return e.Eval(ctx, g.Inner, newSliceIterator([]Solution{outer}), nn)
			}
			graphs, err := e.Store.NamedGraphs()
			if err != nil {
				return nil, err
			}
			var iters []Iterator
			for _, gr := range graphs {
				nn, ok3 := gr.(*rdf.NamedNode)
				if !ok3 {
					continue
				}
				extended := outer.Extend(gv.Name, nn)
				it, err := e.Eval(ctx, g.Inner, newSliceIterator([]Solution{extended}), nn)
				if err != nil {
					return nil, err
				}
				iters = append(iters, it)
			}
			return concatIterators(iters...), nil
		}), nil
	}
	rt, ok := g.GraphTerm.(rdf.Term)
	if !ok {
		return nil, NewTypeError("GRAPH clause operand must be an IRI or a variable")
	}
	return e.Eval(ctx, g.Inner, input, rt)
}

func (e *Evaluator) evalValues(input Iterator, v *algebra.Values) Iterator {
	return flatMap(input, func(ctx context.Context, outer Solution) (Iterator, error) {
		var rows []Solution
		for _, row := range v.Rows {
			cand := outer.Clone()
			ok := true
			for i, varName := range v.Vars {
				if i >= len(row) || row[i] == nil {
					continue // UNDEF: leaves the variable unbound in this row
				}
				term := row[i]
				if existing, has := cand[varName.Name]; has {
					if !existing.Equals(term) {
						ok = false
						break
					}
				} else {
					cand[varName.Name] = term
				}
			}
			if ok {
				rows = append(rows, cand)
			}
		}
		return newSliceIterator(rows), nil
	})
}

func (e *Evaluator) evalProject(inner Iterator, vars []*algebra.Variable) Iterator {
	names := make(map[string]bool, len(vars))
	for _, v := range vars {
		names[v.Name] = true
	}
	return mapIterator(inner, func(sol Solution) Solution {
		out := NewSolution()
		for k, v := range sol {
			if names[k] {
				out[k] = v
			}
		}
		return out
	})
}

func (e *Evaluator) evalDedup(inner Iterator) Iterator {
	seen := map[string]bool{}
	return newFuncIterator(func(ctx context.Context) (Solution, bool, error) {
		for inner.Next(ctx) {
			sol := inner.Solution()
			key := solutionKey(sol)
			if seen[key] {
				continue
			}
			seen[key] = true
			return sol, true, nil
		}
		return nil, false, inner.Err()
	}, inner.Close)
}

func (e *Evaluator) evalFilter(inner Iterator, expr algebra.Expr) Iterator {
	return newFuncIterator(func(ctx context.Context) (Solution, bool, error) {
		for inner.Next(ctx) {
			sol := inner.Solution()
			ok, _ := e.ebv(expr, sol) // an error EBV excludes the solution, per FILTER semantics
			if ok {
				return sol, true, nil
			}
		}
		return nil, false, inner.Err()
	}, inner.Close)
}

func (e *Evaluator) evalSlice(inner Iterator, offset, limit int) Iterator {
	if offset < 0 {
		offset = 0
	}
	skipped := 0
	count := 0
	return newFuncIterator(func(ctx context.Context) (Solution, bool, error) {
		if limit >= 0 && count >= limit {
			return nil, false, nil
		}
		for inner.Next(ctx) {
			if skipped < offset {
				skipped++
				continue
			}
			count++
			return inner.Solution(), true, nil
		}
		return nil, false, inner.Err()
	}, inner.Close)
}

func (e *Evaluator) evalService(ctx context.Context, input Iterator, s *algebra.Service) (Iterator, error) {
	endpoint, ok := s.Endpoint.(*rdf.NamedNode)
	if !ok {
		if s.Silent {
			return input, nil
		}
		return nil, NewServiceError(fmt.Errorf("SERVICE endpoint must be a bound IRI"))
	}
	if e.Service == nil {
		if s.Silent {
			return flatMap(input, func(ctx context.Context, outer Solution) (Iterator, error) {
				return newSliceIterator([]Solution{outer}), nil
			}), nil
		}
		return nil, NewServiceError(fmt.Errorf("no SERVICE client configured for endpoint %s", endpoint.IRI))
	}
	rows, err := e.Service(ctx, endpoint.IRI, "")
	if err != nil {
		if s.Silent {
			return flatMap(input, func(ctx context.Context, outer Solution) (Iterator, error) {
				return newSliceIterator([]Solution{outer}), nil
			}), nil
		}
		return nil, NewServiceError(err)
	}
	return flatMap(input, func(ctx context.Context, outer Solution) (Iterator, error) {
		var out []Solution
		for _, r := range rows {
			if outer.Compatible(r) {
				out = append(out, outer.Merge(r))
			}
		}
		return newSliceIterator(out), nil
	}), nil
}

// --- Combinators -----------------------------------------------------------

// flatMap pulls each solution from input in turn, evaluates fn against
// it to get a sub-iterator, and yields every solution that sub-iterator
// produces before moving to the next input row. This is the evaluator's
// nested-loop driver: every pattern scan and correlated sub-evaluation
// is built on it.
func flatMap(input Iterator, fn func(ctx context.Context, outer Solution) (Iterator, error)) Iterator {
	var inner Iterator
	return newFuncIterator(func(ctx context.Context) (Solution, bool, error) {
		for {
			if inner != nil {
				if inner.Next(ctx) {
					return inner.Solution(), true, nil
				}
				err := inner.Err()
				inner.Close()
				inner = nil
				if err != nil {
					return nil, false, err
				}
			}
			if !input.Next(ctx) {
				return nil, false, input.Err()
			}
			next, err := fn(ctx, input.Solution())
			if err != nil {
				return nil, false, err
			}
			inner = next
		}
	}, func() error {
		if inner != nil {
			_ = inner.Close()
		}
		return input.Close()
	})
}

func concatIterators(iters ...Iterator) Iterator {
	i := 0
	return newFuncIterator(func(ctx context.Context) (Solution, bool, error) {
		for i < len(iters) {
			if iters[i].Next(ctx) {
				return iters[i].Solution(), true, nil
			}
			err := iters[i].Err()
			iters[i].Close()
			i++
			if err != nil {
				return nil, false, err
			}
		}
		return nil, false, nil
	}, func() error {
		var ferr error
		for ; i < len(iters); i++ {
			if err := iters[i].Close(); err != nil {
				ferr = err
			}
		}
		return ferr
	})
}

func mapIterator(inner Iterator, fn func(Solution) Solution) Iterator {
	return newFuncIterator(func(ctx context.Context) (Solution, bool, error) {
		if !inner.Next(ctx) {
			return nil, false, inner.Err()
		}
		return fn(inner.Solution()), true, nil
	}, inner.Close)
}

// errIterator yields err on its first Next call and nothing else.
func errIterator(err error) Iterator {
	used := false
	return newFuncIterator(func(ctx context.Context) (Solution, bool, error) {
		if used {
			return nil, false, nil
		}
		used = true
		return nil, false, err
	}, func() error { return nil })
}

func cloneRows(rows []Solution) []Solution {
	out := make([]Solution, len(rows))
	copy(out, rows)
	return out
}

// solutionKey builds a deterministic string digest of a solution for use
// as a map key in DISTINCT/REDUCED deduplication and GROUP BY
// partitioning.
func solutionKey(sol Solution) string {
	names := make([]string, 0, len(sol))
	for k := range sol {
		names = append(names, k)
	}
	sortStrings(names)
	var b []byte
	for _, k := range names {
		b = append(b, k...)
		b = append(b, '=')
		b = append(b, sol[k].String()...)
		b = append(b, '\x00')
	}
	return string(b)
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
