// Package optimizer rewrites an internal/sparql/algebra tree in place
// before evaluation (spec.md §4.4): filter push-down, basic-graph-pattern
// join reordering by a selectivity heuristic, join-identity and
// fixed-length-path folding, and resolution of the AggregateCall
// placeholders the parser leaves behind for SELECT-list/HAVING
// aggregates. GROUP BY (expr AS ?v) keys stay ExprAlias nodes, which the
// evaluator's grouping handles directly.
//
// The node vocabulary it rewrites (BGP/Join/Filter/...) is the same one
// the teacher's optimizer named its scan/join plan nodes after
// (internal/sparql/optimizer/optimizer.go in the reference trigo
// repository); this version operates directly on the shared algebra
// tree instead of lowering into a separate plan-node type, since the
// parser and evaluator already agree on algebra as their common
// currency.
package optimizer

import (
	"sort"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
)

// Statistics holds coarse cardinality information used to bias join
// ordering. The zero value is a reasonable default (no data yet).
type Statistics struct {
	TotalTriples int64
}

// Optimizer rewrites algebra trees. It is safe for concurrent use: it
// holds no mutable state beyond the (read-only, caller-owned) Statistics.
type Optimizer struct {
	stats *Statistics
}

func NewOptimizer(stats *Statistics) *Optimizer {
	if stats == nil {
		stats = &Statistics{}
	}
	return &Optimizer{stats: stats}
}

// OptimizeQuery rewrites q.Algebra (and, for CONSTRUCT, leaves Template
// untouched since it is applied post-evaluation) and returns q.
func (o *Optimizer) OptimizeQuery(q *algebra.Query) *algebra.Query {
	if q.Algebra != nil {
		q.Algebra = o.Optimize(q.Algebra)
	}
	return q
}

// OptimizeUpdate rewrites the WHERE clause of every Modify operation in
// u and returns u.
func (o *Optimizer) OptimizeUpdate(u *algebra.Update) *algebra.Update {
	for _, op := range u.Operations {
		if m, ok := op.(*algebra.Modify); ok && m.Where != nil {
			m.Where = o.Optimize(m.Where)
		}
	}
	return u
}

// Optimize runs every rewrite pass on n until a pass changes nothing or
// eight passes have run, and returns the rewritten tree. It is exported so the evaluator (or tests) can
// optimize a sub-tree in isolation, e.g. the inner pattern of an
// ExprExists.
func (o *Optimizer) Optimize(n algebra.Node) algebra.Node {
	n = o.liftAggregates(n)
	for i := 0; i < 8; i++ {
		rewritten, changed := o.rewritePass(n)
		n = rewritten
		if !changed {
			break
		}
	}
	return n
}

// --- Aggregate / GROUP BY alias lifting ---------------------------------

var aggCounter int

func freshAggVar() *algebra.Variable {
	aggCounter++
	return algebra.NewVariable("__agg" + itoa(aggCounter))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// liftAggregates walks n looking for Extend/Filter nodes whose
// expression contains an *algebra.AggregateCall, moves each such call
// into the nearest enclosing Group's Aggs list (creating an implicit,
// keyless Group if none exists), and replaces the call's occurrence
// with a reference to the lifted aggregate's variable.
func (o *Optimizer) liftAggregates(n algebra.Node) algebra.Node {
	if n == nil {
		return nil
	}
	switch t := n.(type) {
	case *algebra.Extend:
		t.Inner = o.liftAggregates(t.Inner)
		newExpr, aggs := extractAggregates(t.Expr)
		t.Expr = newExpr
		if len(aggs) > 0 {
			group := findOrWrapGroup(&t.Inner)
			group.Aggs = append(group.Aggs, aggs...)
		}
		return t

	case *algebra.Filter:
		t.Inner = o.liftAggregates(t.Inner)
		if t.Expr != nil {
			newExpr, aggs := extractAggregates(t.Expr)
			t.Expr = newExpr
			if len(aggs) > 0 {
				group := findOrWrapGroup(&t.Inner)
				group.Aggs = append(group.Aggs, aggs...)
			}
		}
		return t

	case *algebra.Group:
		t.Inner = o.liftAggregates(t.Inner)
		return t

	case *algebra.Join:
		t.Left = o.liftAggregates(t.Left)
		t.Right = o.liftAggregates(t.Right)
		return t
	case *algebra.LeftJoin:
		t.Left = o.liftAggregates(t.Left)
		t.Right = o.liftAggregates(t.Right)
		return t
	case *algebra.Union:
		t.Left = o.liftAggregates(t.Left)
		t.Right = o.liftAggregates(t.Right)
		return t
	case *algebra.Minus:
		t.Left = o.liftAggregates(t.Left)
		t.Right = o.liftAggregates(t.Right)
		return t
	case *algebra.Graph:
		t.Inner = o.liftAggregates(t.Inner)
		return t
	case *algebra.Service:
		t.Inner = o.liftAggregates(t.Inner)
		return t
	case *algebra.OrderBy:
		t.Inner = o.liftAggregates(t.Inner)
		return t
	case *algebra.Project:
		t.Inner = o.liftAggregates(t.Inner)
		return t
	case *algebra.Distinct:
		t.Inner = o.liftAggregates(t.Inner)
		return t
	case *algebra.Reduced:
		t.Inner = o.liftAggregates(t.Inner)
		return t
	case *algebra.Slice:
		t.Inner = o.liftAggregates(t.Inner)
		return t
	default:
		return n
	}
}

// findOrWrapGroup returns the Group reachable by descending through
// Extend/Filter wrappers from *n, inserting one (wrapping the current
// *n) if none is found.
func findOrWrapGroup(n *algebra.Node) *algebra.Group {
	switch t := (*n).(type) {
	case *algebra.Group:
		return t
	case *algebra.Extend:
		return findOrWrapGroup(&t.Inner)
	case *algebra.Filter:
		return findOrWrapGroup(&t.Inner)
	default:
		g := &algebra.Group{Inner: *n}
		*n = g
		return g
	}
}

// extractAggregates replaces every AggregateCall reachable within expr
// with an ExprVar bound to a fresh aggregate variable, returning the
// rewritten expression and the Aggregate records created.
func extractAggregates(expr algebra.Expr) (algebra.Expr, []*algebra.Aggregate) {
	if expr == nil {
		return nil, nil
	}
	var aggs []*algebra.Aggregate
	var walk func(e algebra.Expr) algebra.Expr
	walk = func(e algebra.Expr) algebra.Expr {
		switch t := e.(type) {
		case *algebra.AggregateCall:
			v := freshAggVar()
			aggs = append(aggs, &algebra.Aggregate{
				Var:       v,
				Func:      aggregateFuncFor(t.Name),
				Expr:      t.Expr,
				Distinct:  t.Distinct,
				Separator: t.Separator,
			})
			return &algebra.ExprVar{Var: v}
		case *algebra.ExprUnary:
			t.Operand = walk(t.Operand)
			return t
		case *algebra.ExprBinary:
			t.Left = walk(t.Left)
			if t.Right != nil {
				t.Right = walk(t.Right)
			}
			for i, item := range t.List {
				t.List[i] = walk(item)
			}
			return t
		case *algebra.ExprFunctionCall:
			for i, a := range t.Args {
				t.Args[i] = walk(a)
			}
			return t
		case *algebra.ExprIf:
			t.Cond = walk(t.Cond)
			t.Then = walk(t.Then)
			t.Else = walk(t.Else)
			return t
		case *algebra.ExprCoalesce:
			for i, a := range t.Args {
				t.Args[i] = walk(a)
			}
			return t
		default:
			return e
		}
	}
	return walk(expr), aggs
}

func aggregateFuncFor(name string) algebra.AggregateFunc {
	switch name {
	case "SUM":
		return algebra.AggSum
	case "AVG":
		return algebra.AggAvg
	case "MIN":
		return algebra.AggMin
	case "MAX":
		return algebra.AggMax
	case "SAMPLE":
		return algebra.AggSample
	case "GROUP_CONCAT":
		return algebra.AggGroupConcat
	default:
		return algebra.AggCount
	}
}

// --- Structural rewrite passes ------------------------------------------

// rewritePass applies one bottom-up pass of every structural rule and
// reports whether it changed anything, so Optimize can iterate to a
// fixpoint (e.g. a folded Join may expose a new push-down opportunity).
func (o *Optimizer) rewritePass(n algebra.Node) (algebra.Node, bool) {
	changed := false

	recur := func(child algebra.Node) algebra.Node {
		r, c := o.rewritePass(child)
		if c {
			changed = true
		}
		return r
	}

	switch t := n.(type) {
	case *algebra.BGP:
		reordered := reorderBySelectivity(t.Patterns)
		if !samePatternOrder(t.Patterns, reordered) {
			t.Patterns = reordered
			changed = true
		}
		return t, changed

	case *algebra.Join:
		t.Left = recur(t.Left)
		t.Right = recur(t.Right)
		if folded, ok := foldJoin(t); ok {
			return folded, true
		}
		return t, changed

	case *algebra.LeftJoin:
		t.Left = recur(t.Left)
		t.Right = recur(t.Right)
		if isUnitBGP(t.Right) && t.Filter == nil {
			changed = true
			return t.Left, changed
		}
		return t, changed

	case *algebra.Minus:
		t.Left = recur(t.Left)
		t.Right = recur(t.Right)
		if isUnitBGP(t.Right) {
			changed = true
			return t.Left, changed
		}
		return t, changed

	case *algebra.Union:
		t.Left = recur(t.Left)
		t.Right = recur(t.Right)
		return t, changed

	case *algebra.Filter:
		t.Inner = recur(t.Inner)
		if pushed, ok := pushFilterIntoJoin(t); ok {
			return pushed, true
		}
		return t, changed

	case *algebra.Graph:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.Service:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.Extend:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.Group:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.OrderBy:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.Project:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.Distinct:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.Reduced:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.Slice:
		t.Inner = recur(t.Inner)
		return t, changed

	case *algebra.Path:
		if unfolded, ok := unfoldPath(t); ok {
			return recur(unfolded), true
		}
		return t, changed

	default:
		return n, changed
	}
}

func isUnitBGP(n algebra.Node) bool {
	bgp, ok := n.(*algebra.BGP)
	return ok && len(bgp.Patterns) == 0
}

// foldJoin merges Join(BGP,BGP) into a single BGP (enabling one
// combined selectivity-ordered scan instead of two joined scans) and
// drops a unit BGP (the pattern with no triples, `{}`, which matches
// exactly the empty solution and so is a join identity).
func foldJoin(j *algebra.Join) (algebra.Node, bool) {
	if isUnitBGP(j.Left) {
		return j.Right, true
	}
	if isUnitBGP(j.Right) {
		return j.Left, true
	}
	lb, lok := j.Left.(*algebra.BGP)
	rb, rok := j.Right.(*algebra.BGP)
	if lok && rok {
		merged := make([]*algebra.TriplePattern, 0, len(lb.Patterns)+len(rb.Patterns))
		merged = append(merged, lb.Patterns...)
		merged = append(merged, rb.Patterns...)
		return &algebra.BGP{Patterns: merged}, true
	}
	return nil, false
}

// pushFilterIntoJoin pushes f down into whichever side of an inner Join
// binds every variable f.Expr references, so the filter runs as early
// as possible rather than after a full join's cross product.
func pushFilterIntoJoin(f *algebra.Filter) (algebra.Node, bool) {
	join, ok := f.Inner.(*algebra.Join)
	if !ok || f.Expr == nil {
		return nil, false
	}
	need := exprVariables(f.Expr)
	if len(need) == 0 {
		return nil, false
	}
	if varsSubsetOf(need, nodeVariables(join.Left)) {
		join.Left = &algebra.Filter{Expr: f.Expr, Inner: join.Left}
		return join, true
	}
	if varsSubsetOf(need, nodeVariables(join.Right)) {
		join.Right = &algebra.Filter{Expr: f.Expr, Inner: join.Right}
		return join, true
	}
	return nil, false
}

// unfoldPath rewrites a fixed-shape property path (a bare IRI, an
// inverse of one, or a finite sequence/alternation built from those) into
// ordinary triple patterns so it can join and reorder like any other BGP
// member. Paths containing *, +, ?, or a negated property set keep their
// native Path node, since those need the evaluator's BFS engine.
func unfoldPath(p *algebra.Path) (algebra.Node, bool) {
	switch path := p.Path.(type) {
	case *algebra.PathIRI:
		return &algebra.BGP{Patterns: []*algebra.TriplePattern{
			{Subject: p.Subject, Predicate: path.IRI, Object: p.Object},
		}}, true

	case *algebra.PathInverse:
		if iri, ok := path.Path.(*algebra.PathIRI); ok {
			return &algebra.BGP{Patterns: []*algebra.TriplePattern{
				{Subject: p.Object, Predicate: iri.IRI, Object: p.Subject},
			}}, true
		}
		return nil, false

	case *algebra.PathSeq:
		mid := algebra.NewVariable(freshPathVar())
		left := &algebra.Path{Subject: p.Subject, Path: path.Left, Object: mid}
		right := &algebra.Path{Subject: mid, Path: path.Right, Object: p.Object}
		return &algebra.Join{Left: left, Right: right}, true

	case *algebra.PathAlt:
		left := &algebra.Path{Subject: p.Subject, Path: path.Left, Object: p.Object}
		right := &algebra.Path{Subject: p.Subject, Path: path.Right, Object: p.Object}
		return &algebra.Union{Left: left, Right: right}, true

	default:
		return nil, false
	}
}

var pathVarCounter int

func freshPathVar() string {
	pathVarCounter++
	return "__path" + itoa(pathVarCounter)
}

// --- Selectivity-based BGP reordering ------------------------------------

// reorderBySelectivity sorts patterns so the most selective (most bound
// terms) run first, breaking ties by preferring patterns that share a
// variable with an already-placed pattern, which keeps the scan
// connected instead of drifting into cartesian sub-joins (spec.md
// §4.4's join-reordering requirement).
func reorderBySelectivity(patterns []*algebra.TriplePattern) []*algebra.TriplePattern {
	if len(patterns) < 2 {
		return patterns
	}
	remaining := append([]*algebra.TriplePattern(nil), patterns...)
	placed := make([]*algebra.TriplePattern, 0, len(remaining))
	placedVars := map[string]bool{}

	for len(remaining) > 0 {
		sort.SliceStable(remaining, func(i, j int) bool {
			si, sj := selectivity(remaining[i]), selectivity(remaining[j])
			if si != sj {
				return si < sj
			}
			ci, cj := sharedVarCount(remaining[i], placedVars), sharedVarCount(remaining[j], placedVars)
			return ci > cj
		})
		next := remaining[0]
		remaining = remaining[1:]
		placed = append(placed, next)
		for v := range patternVariables(next) {
			placedVars[v] = true
		}
	}
	return placed
}

func samePatternOrder(a, b []*algebra.TriplePattern) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// selectivity estimates a triple pattern's result-set size: lower is
// more selective. Grounded on the teacher's estimateSelectivity
// (bound subject cheapest, then predicate/object), since the storage
// engine's index selection (internal/store/index.go's selectIndex)
// favors exactly that ordering when picking among the nine indexes.
func selectivity(p *algebra.TriplePattern) float64 {
	s := 1.0
	if !algebra.IsVariable(p.Subject) {
		s *= 0.01
	}
	if !algebra.IsVariable(p.Predicate) {
		s *= 0.1
	}
	if !algebra.IsVariable(p.Object) {
		s *= 0.1
	}
	return s
}

func sharedVarCount(p *algebra.TriplePattern, placed map[string]bool) int {
	n := 0
	for v := range patternVariables(p) {
		if placed[v] {
			n++
		}
	}
	return n
}

func patternVariables(p *algebra.TriplePattern) map[string]bool {
	vars := map[string]bool{}
	addTermVar(vars, p.Subject)
	addTermVar(vars, p.Predicate)
	addTermVar(vars, p.Object)
	return vars
}

func addTermVar(vars map[string]bool, t algebra.Term) {
	if v, ok := t.(*algebra.Variable); ok {
		vars[v.Name] = true
	}
}

// --- Variable-set helpers -------------------------------------------------

func varsSubsetOf(need map[string]bool, have map[string]bool) bool {
	for v := range need {
		if !have[v] {
			return false
		}
	}
	return true
}

// nodeVariables returns every variable that can appear bound in a
// solution produced by n. It is a conservative over-approximation for
// operators (Union, Minus's right side, etc.) where exact variable sets
// would require deeper analysis; over-approximating only prevents a
// filter push-down, it never produces an incorrect rewrite.
func nodeVariables(n algebra.Node) map[string]bool {
	vars := map[string]bool{}
	var walk func(n algebra.Node)
	walk = func(n algebra.Node) {
		switch t := n.(type) {
		case *algebra.BGP:
			for _, p := range t.Patterns {
				addTermVar(vars, p.Subject)
				addTermVar(vars, p.Predicate)
				addTermVar(vars, p.Object)
			}
		case *algebra.Path:
			addTermVar(vars, t.Subject)
			addTermVar(vars, t.Object)
		case *algebra.Join:
			walk(t.Left)
			walk(t.Right)
		case *algebra.LeftJoin:
			walk(t.Left)
			walk(t.Right)
		case *algebra.Union:
			walk(t.Left)
			walk(t.Right)
		case *algebra.Minus:
			walk(t.Left)
		case *algebra.Graph:
			addTermVar(vars, t.GraphTerm)
			walk(t.Inner)
		case *algebra.Service:
			walk(t.Inner)
		case *algebra.Filter:
			walk(t.Inner)
		case *algebra.Extend:
			walk(t.Inner)
			vars[t.Var.Name] = true
		case *algebra.Values:
			for _, v := range t.Vars {
				vars[v.Name] = true
			}
		case *algebra.Group:
			walk(t.Inner)
			for _, k := range t.Keys {
				if alias, ok := k.(*algebra.ExprAlias); ok {
					vars[alias.Var.Name] = true
				}
			}
			for _, a := range t.Aggs {
				vars[a.Var.Name] = true
			}
		case *algebra.Project:
			for _, v := range t.Vars {
				vars[v.Name] = true
			}
		case *algebra.Distinct:
			walk(t.Inner)
		case *algebra.Reduced:
			walk(t.Inner)
		case *algebra.Slice:
			walk(t.Inner)
		case *algebra.OrderBy:
			walk(t.Inner)
		}
	}
	walk(n)
	return vars
}

// exprVariables returns every *algebra.Variable referenced by expr.
func exprVariables(expr algebra.Expr) map[string]bool {
	vars := map[string]bool{}
	var walk func(e algebra.Expr)
	walk = func(e algebra.Expr) {
		switch t := e.(type) {
		case *algebra.ExprVar:
			vars[t.Var.Name] = true
		case *algebra.ExprUnary:
			walk(t.Operand)
		case *algebra.ExprBinary:
			walk(t.Left)
			if t.Right != nil {
				walk(t.Right)
			}
			for _, item := range t.List {
				walk(item)
			}
		case *algebra.ExprFunctionCall:
			for _, a := range t.Args {
				walk(a)
			}
		case *algebra.ExprIf:
			walk(t.Cond)
			walk(t.Then)
			walk(t.Else)
		case *algebra.ExprCoalesce:
			for _, a := range t.Args {
				walk(a)
			}
		case *algebra.ExprBound:
			vars[t.Var.Name] = true
		case *algebra.ExprExists:
			for v := range nodeVariables(t.Pattern) {
				vars[v] = true
			}
		case *algebra.AggregateCall:
			if t.Expr != nil {
				walk(t.Expr)
			}
		}
	}
	walk(expr)
	return vars
}
