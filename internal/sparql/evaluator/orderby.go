package evaluator

import (
	"context"
	"sort"
	"strings"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// evalOrderBy fully materializes inner and sorts by conditions in order
// (spec.md §4.5). This module carries no external-merge spill for
// ORDER BY (see DESIGN.md): a query whose solution set does not fit in
// memory fails the same way the teacher's in-memory executor would,
// rather than staging to query.sort_spill_dir, which this evaluator
// reserves but does not yet consume.
func (e *Evaluator) evalOrderBy(ctx context.Context, inner Iterator, conditions []*algebra.OrderCondition) (Iterator, error) {
	rows, err := drainAll(ctx, inner)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, cond := range conditions {
			vi, erri := e.evalExprValue(cond.Expr, rows[i])
			vj, errj := e.evalExprValue(cond.Expr, rows[j])
			cmp := orderCompare(vi, erri, vj, errj)
			if cmp == 0 {
				continue
			}
			if cond.Desc {
				cmp = -cmp
			}
			return cmp < 0
		}
		return false
	})
	return newSliceIterator(rows), nil
}

// orderCompare gives ORDER BY a total order even across unrelated types:
// an unbound/erroring key sorts first, then compareTerms handles the
// comparable cases (numerics, same-language plain literals, booleans),
// and anything left falls back to a fixed per-kind rank followed by
// lexical comparison of the term's string form.
func orderCompare(a rdf.Term, aerr error, b rdf.Term, berr error) int {
	if aerr != nil && berr != nil {
		return 0
	}
	if aerr != nil {
		return -1
	}
	if berr != nil {
		return 1
	}
	if cmp, ok := compareTerms(a, b); ok {
		return cmp
	}
	ra, rb := termRank(a), termRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	return strings.Compare(a.String(), b.String())
}

func termRank(t rdf.Term) int {
	switch t.(type) {
	case *rdf.BlankNode:
		return 0
	case *rdf.NamedNode:
		return 1
	case *rdf.Literal:
		return 2
	default:
		return 3
	}
}
