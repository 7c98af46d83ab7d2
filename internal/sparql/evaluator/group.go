package evaluator

import (
	"context"
	"strconv"
	"strings"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// groupEntry accumulates the rows belonging to one GROUP BY partition,
// plus a representative solution carrying whatever key variables the
// group-key expressions bind (spec.md §4.5 Aggregation).
type groupEntry struct {
	repr Solution
	rows []Solution
}

// evalGroup partitions inner's solutions by g.Keys and computes g.Aggs
// per partition. An empty Keys list with a non-empty Aggs list still
// produces exactly one group (possibly over zero rows), matching
// SPARQL's implicit whole-result-set group.
func (e *Evaluator) evalGroup(ctx context.Context, inner Iterator, g *algebra.Group) (Iterator, error) {
	rows, err := drainAll(ctx, inner)
	if err != nil {
		return nil, err
	}

	var order []string
	groups := map[string]*groupEntry{}

	if len(g.Keys) == 0 {
		groups[""] = &groupEntry{repr: NewSolution(), rows: rows}
		order = append(order, "")
	} else {
		for _, row := range rows {
			key, keyBindings := e.groupKey(g.Keys, row)
			entry, ok := groups[key]
			if !ok {
				entry = &groupEntry{repr: keyBindings}
				groups[key] = entry
				order = append(order, key)
			}
			entry.rows = append(entry.rows, row)
		}
	}

	out := make([]Solution, 0, len(order))
	for _, k := range order {
		entry := groups[k]
		sol := entry.repr.Clone()
		for _, agg := range g.Aggs {
			val, err := e.computeAggregate(agg, entry.rows)
			if err != nil {
				continue // aggregate error leaves the variable unbound, not the whole group dropped
			}
			sol[agg.Var.Name] = val
		}
		out = append(out, sol)
	}
	return newSliceIterator(out), nil
}

// groupKey evaluates keys against row, returning a string digest usable
// as a partition key plus the bindings to carry into the group's output
// row: the value of each plain-variable key (GROUP BY ?x) and of each
// alias key (GROUP BY (expr AS ?y)).
func (e *Evaluator) groupKey(keys []algebra.Expr, row Solution) (string, Solution) {
	bindings := NewSolution()
	var b strings.Builder
	for i, k := range keys {
		b.WriteString(strconv.Itoa(i))
		b.WriteByte('=')

		// A (expr AS ?v) key binds ?v in the group's output row in
		// addition to partitioning by expr's value; a bare variable key
		// partitions by the value it already carries.
		bindExpr := k
		var aliasVar *algebra.Variable
		if alias, ok := k.(*algebra.ExprAlias); ok {
			bindExpr = alias.Expr
			aliasVar = alias.Var
		}

		val, err := e.evalExprValue(bindExpr, row)
		if err != nil {
			b.WriteString("\x01unbound")
		} else {
			b.WriteString(val.String())
			if aliasVar != nil {
				bindings[aliasVar.Name] = val
			} else if v, ok := k.(*algebra.ExprVar); ok {
				bindings[v.Var.Name] = val
			}
		}
		b.WriteByte('\x00')
	}
	return b.String(), bindings
}

// --- aggregate accumulators -------------------------------------------

func (e *Evaluator) computeAggregate(agg *algebra.Aggregate, rows []Solution) (rdf.Term, error) {
	switch agg.Func {
	case algebra.AggCount:
		return e.aggCount(agg, rows)
	case algebra.AggSum:
		return e.aggSum(agg, rows)
	case algebra.AggAvg:
		return e.aggAvg(agg, rows)
	case algebra.AggMin:
		return e.aggMinMax(agg, rows, true)
	case algebra.AggMax:
		return e.aggMinMax(agg, rows, false)
	case algebra.AggSample:
		return e.aggSample(agg, rows)
	case algebra.AggGroupConcat:
		return e.aggGroupConcat(agg, rows)
	default:
		return nil, NewTypeError("unsupported aggregate function")
	}
}

// aggValues evaluates agg.Expr against every row, skipping rows where it
// errors (an aggregate's input is one of the few places SPARQL's
// three-valued logic resolves to silent exclusion rather than
// propagation), and collapsing duplicates when agg.Distinct is set. A
// nil Expr (COUNT(*)) yields one placeholder entry per row.
func (e *Evaluator) aggValues(agg *algebra.Aggregate, rows []Solution) []rdf.Term {
	var out []rdf.Term
	seen := map[string]bool{}
	for _, row := range rows {
		var val rdf.Term
		if agg.Expr != nil {
			v, err := e.evalExprValue(agg.Expr, row)
			if err != nil {
				continue
			}
			val = v
		}
		if agg.Distinct {
			key := "\x00*"
			if val != nil {
				key = val.String()
			}
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, val)
	}
	return out
}

func (e *Evaluator) aggCount(agg *algebra.Aggregate, rows []Solution) (rdf.Term, error) {
	if agg.Expr == nil && !agg.Distinct {
		return rdf.NewIntegerLiteral(int64(len(rows))), nil
	}
	if agg.Expr == nil {
		seen := map[string]bool{}
		n := 0
		for _, row := range rows {
			key := solutionKey(row)
			if seen[key] {
				continue
			}
			seen[key] = true
			n++
		}
		return rdf.NewIntegerLiteral(int64(n)), nil
	}
	return rdf.NewIntegerLiteral(int64(len(e.aggValues(agg, rows)))), nil
}

func (e *Evaluator) aggSum(agg *algebra.Aggregate, rows []Solution) (rdf.Term, error) {
	acc := numericValue{kind: numInteger, i: 0}
	for _, v := range e.aggValues(agg, rows) {
		n, ok := asNumeric(v)
		if !ok {
			continue
		}
		sum, err := arithmetic(algebra.OpAdd, acc, n)
		if err != nil {
			continue
		}
		acc = sum
	}
	return acc.toTerm(), nil
}

func (e *Evaluator) aggAvg(agg *algebra.Aggregate, rows []Solution) (rdf.Term, error) {
	acc := numericValue{kind: numInteger, i: 0}
	count := 0
	for _, v := range e.aggValues(agg, rows) {
		n, ok := asNumeric(v)
		if !ok {
			continue
		}
		sum, err := arithmetic(algebra.OpAdd, acc, n)
		if err != nil {
			continue
		}
		acc = sum
		count++
	}
	if count == 0 {
		return rdf.NewIntegerLiteral(0), nil
	}
	result, err := arithmetic(algebra.OpDivide, acc, numericValue{kind: numInteger, i: int64(count)})
	if err != nil {
		return nil, err
	}
	return result.toTerm(), nil
}

func (e *Evaluator) aggMinMax(agg *algebra.Aggregate, rows []Solution, wantMin bool) (rdf.Term, error) {
	var best rdf.Term
	for _, v := range e.aggValues(agg, rows) {
		if best == nil {
			best = v
			continue
		}
		cmp, ok := compareTerms(best, v)
		if !ok {
			continue
		}
		if (wantMin && cmp > 0) || (!wantMin && cmp < 0) {
			best = v
		}
	}
	if best == nil {
		return nil, NewTypeError("MIN/MAX over an empty or all-unbound group")
	}
	return best, nil
}

func (e *Evaluator) aggSample(agg *algebra.Aggregate, rows []Solution) (rdf.Term, error) {
	vals := e.aggValues(agg, rows)
	if len(vals) == 0 {
		return nil, NewTypeError("SAMPLE over an empty or all-unbound group")
	}
	return vals[0], nil
}

func (e *Evaluator) aggGroupConcat(agg *algebra.Aggregate, rows []Solution) (rdf.Term, error) {
	sep := " "
	if agg.Separator != nil {
		if v, err := e.evalExprValue(agg.Separator, NewSolution()); err == nil {
			if s, err2 := extractString(v); err2 == nil {
				sep = s
			}
		}
	}
	vals := e.aggValues(agg, rows)
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, err := extractString(v); err == nil {
			parts = append(parts, s)
		}
	}
	return rdf.NewLiteral(strings.Join(parts, sep)), nil
}
