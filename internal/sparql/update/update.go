// Package update executes SPARQL 1.1 Update requests against a
// internal/store.Store (spec.md §4.6/§9). The teacher carries no update
// support at all; this package is grounded on the same Store/transaction
// contract the query evaluator uses, plus internal/nquads for LOAD.
//
// Each operation of a `;`-separated update request runs in its own
// storage transaction rather than the whole request sharing one: a later
// operation's failure leaves every earlier operation's effects
// committed, trading all-or-nothing atomicity for bounded per-operation
// lock hold time (spec.md §9 open question 2; decision recorded in
// DESIGN.md).
package update

import (
	"context"
	"fmt"

	"github.com/rdfkit/trigraph/internal/nquads"
	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/internal/sparql/evaluator"
	"github.com/rdfkit/trigraph/internal/sparql/optimizer"
	"github.com/rdfkit/trigraph/internal/sparql/parser"
	"github.com/rdfkit/trigraph/internal/store"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// Loader fetches the byte content LOAD should parse as N-Quads/
// N-Triples. A nil Loader (the default; this module carries no HTTP
// client dependency) makes every LOAD fail unless SILENT.
type Loader func(ctx context.Context, source *rdf.NamedNode) ([]byte, error)

// Executor runs parsed update requests, and optionally parses update
// text itself via ExecuteUpdate.
type Executor struct {
	Store  *store.Store
	Loader Loader

	// RDF12 gates `<< s p o >>` quoted-triple term syntax in
	// ExecuteUpdate's own parse (features.rdf12). New defaults it on.
	RDF12 bool
}

func New(s *store.Store) *Executor {
	return &Executor{Store: s, RDF12: true}
}

// ExecuteUpdate parses text as a SPARQL 1.1 Update request and runs
// every operation in order.
func (e *Executor) ExecuteUpdate(ctx context.Context, text string) error {
	upd, err := parser.ParseUpdateOpts(text, "", parser.Options{RDF12: e.RDF12})
	if err != nil {
		return err
	}
	optimizer.NewOptimizer(nil).OptimizeUpdate(upd)
	return e.Execute(ctx, upd)
}

// Execute runs every operation of upd in order, stopping at the first
// error (operations already committed stay committed).
func (e *Executor) Execute(ctx context.Context, upd *algebra.Update) error {
	for _, op := range upd.Operations {
		if err := e.executeOp(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) executeOp(ctx context.Context, op algebra.UpdateOp) error {
	switch t := op.(type) {
	case *algebra.InsertData:
		return e.insertData(t)
	case *algebra.DeleteData:
		return e.deleteData(t)
	case *algebra.Modify:
		return e.modify(ctx, t)
	case *algebra.Load:
		return e.load(ctx, t)
	case *algebra.Clear:
		return e.clear(t)
	case *algebra.Create:
		return e.create(t)
	case *algebra.Drop:
		return e.drop(t)
	case *algebra.Add:
		return e.add(t)
	case *algebra.Move:
		return e.move(t)
	case *algebra.Copy:
		return e.copy(t)
	default:
		return fmt.Errorf("update: unsupported operation %T", op)
	}
}

// --- INSERT DATA / DELETE DATA ------------------------------------------

func (e *Executor) insertData(op *algebra.InsertData) error {
	return e.Store.WithWriteTxn(func(txn store.Transaction) error {
		for _, qp := range op.Quads {
			quad, err := groundQuad(qp)
			if err != nil {
				return err
			}
			if err := e.Store.InsertInTxn(txn, quad); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Executor) deleteData(op *algebra.DeleteData) error {
	return e.Store.WithWriteTxn(func(txn store.Transaction) error {
		for _, qp := range op.Quads {
			quad, err := groundQuad(qp)
			if err != nil {
				return err
			}
			if err := e.Store.RemoveInTxn(txn, quad); err != nil {
				return err
			}
		}
		return nil
	})
}

// groundQuad converts a QuadPattern known to carry no variables (the
// grammar for DATA blocks forbids them) into an rdf.Quad.
func groundQuad(qp *algebra.QuadPattern) (*rdf.Quad, error) {
	subj, ok := asGroundTerm(qp.Subject)
	if !ok {
		return nil, fmt.Errorf("update: DATA block must not contain variables")
	}
	pred, ok := asGroundTerm(qp.Predicate)
	if !ok {
		return nil, fmt.Errorf("update: DATA block must not contain variables")
	}
	obj, ok := asGroundTerm(qp.Object)
	if !ok {
		return nil, fmt.Errorf("update: DATA block must not contain variables")
	}
	graph := rdf.Term(rdf.NewDefaultGraph())
	if qp.Graph != nil {
		g, ok := asGroundTerm(qp.Graph)
		if !ok {
			return nil, fmt.Errorf("update: DATA block must not contain variables")
		}
		graph = g
	}
	return rdf.NewQuad(subj, pred, obj, graph), nil
}

func asGroundTerm(t algebra.Term) (rdf.Term, bool) {
	if algebra.IsVariable(t) {
		return nil, false
	}
	rt, ok := t.(rdf.Term)
	return rt, ok
}

// --- DELETE/INSERT/WHERE -------------------------------------------------

// modify evaluates m.Where to completion against a read snapshot, then
// applies every solution's instantiated delete and insert templates in a
// single write transaction: deletes first, then inserts, matching the
// order SPARQL 1.1 Update §3.1.3 describes for a single combined
// operation (the templates share one WHERE evaluation, so a row cannot
// observe the effect of its own or another row's delete).
func (e *Executor) modify(ctx context.Context, m *algebra.Modify) error {
	rtxn, err := e.Store.Snapshot()
	if err != nil {
		return err
	}
	ev := evaluator.New(e.Store, rtxn)
	it, err := ev.Eval(ctx, m.Where, evaluator.Seed(), nil)
	if err != nil {
		rtxn.Rollback()
		return err
	}
	var rows []evaluator.Solution
	for it.Next(ctx) {
		rows = append(rows, it.Solution())
	}
	iterErr := it.Err()
	it.Close()
	rtxn.Rollback()
	if iterErr != nil {
		return iterErr
	}

	return e.Store.WithWriteTxn(func(txn store.Transaction) error {
		for _, row := range rows {
			for _, qp := range m.Delete {
				quad, ok := instantiate(qp, row)
				if !ok {
					continue
				}
				if err := e.Store.RemoveInTxn(txn, quad); err != nil {
					return err
				}
			}
		}
		for _, row := range rows {
			for _, qp := range m.Insert {
				quad, ok := instantiate(qp, row)
				if !ok {
					continue
				}
				if err := e.Store.InsertInTxn(txn, quad); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// instantiate substitutes row's bindings into qp, reporting ok=false if
// any position is a variable row leaves unbound (such a template quad is
// silently skipped, per SPARQL 1.1 Update §3.1.3).
func instantiate(qp *algebra.QuadPattern, row evaluator.Solution) (*rdf.Quad, bool) {
	subj, ok := resolveTemplateTerm(qp.Subject, row)
	if !ok {
		return nil, false
	}
	pred, ok := resolveTemplateTerm(qp.Predicate, row)
	if !ok {
		return nil, false
	}
	obj, ok := resolveTemplateTerm(qp.Object, row)
	if !ok {
		return nil, false
	}
	graph := rdf.Term(rdf.NewDefaultGraph())
	if qp.Graph != nil {
		g, ok := resolveTemplateTerm(qp.Graph, row)
		if !ok {
			return nil, false
		}
		graph = g
	}
	return rdf.NewQuad(subj, pred, obj, graph), true
}

func resolveTemplateTerm(t algebra.Term, row evaluator.Solution) (rdf.Term, bool) {
	if v, ok := t.(*algebra.Variable); ok {
		bound, ok := row[v.Name]
		return bound, ok
	}
	rt, ok := t.(rdf.Term)
	return rt, ok
}

// --- LOAD ------------------------------------------------------------

func (e *Executor) load(ctx context.Context, op *algebra.Load) error {
	quads, err := e.fetchAndParse(ctx, op.Source)
	if err != nil {
		if op.Silent {
			return nil
		}
		return err
	}

	into := rdf.Term(rdf.NewDefaultGraph())
	if op.Into != nil {
		into = op.Into
	}

	err = e.Store.WithWriteTxn(func(txn store.Transaction) error {
		for _, q := range quads {
			target := rdf.NewQuad(q.Subject, q.Predicate, q.Object, into)
			if err := e.Store.InsertInTxn(txn, target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && op.Silent {
		return nil
	}
	return err
}

func (e *Executor) fetchAndParse(ctx context.Context, source *rdf.NamedNode) ([]*rdf.Quad, error) {
	if e.Loader == nil {
		return nil, fmt.Errorf("update: LOAD <%s>: no Loader configured", source.IRI)
	}
	data, err := e.Loader(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("update: LOAD <%s>: %w", source.IRI, err)
	}
	return nquads.NewParser(string(data)).Parse()
}

// --- graph-container operations ---------------------------------------

func (e *Executor) clear(op *algebra.Clear) error {
	err := e.clearRef(op.Graph)
	if err != nil && op.Silent {
		return nil
	}
	return err
}

func (e *Executor) clearRef(ref algebra.GraphRef) error {
	switch ref.Kind {
	case algebra.GraphRefDefault:
		return e.Store.ClearDefaultGraph()
	case algebra.GraphRefNamed:
		return e.Store.ClearGraph(ref.Graph)
	case algebra.GraphRefAllNamed:
		graphs, err := e.Store.NamedGraphs()
		if err != nil {
			return err
		}
		for _, g := range graphs {
			if err := e.Store.ClearGraph(g); err != nil {
				return err
			}
		}
		return nil
	case algebra.GraphRefAll:
		if err := e.Store.ClearDefaultGraph(); err != nil {
			return err
		}
		graphs, err := e.Store.NamedGraphs()
		if err != nil {
			return err
		}
		for _, g := range graphs {
			if err := e.Store.ClearGraph(g); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("update: unsupported graph reference kind %v", ref.Kind)
	}
}

func (e *Executor) create(op *algebra.Create) error {
	err := e.Store.AddGraph(op.Graph)
	if err != nil && op.Silent {
		return nil
	}
	return err
}

func (e *Executor) drop(op *algebra.Drop) error {
	err := e.dropRef(op.Graph)
	if err != nil && op.Silent {
		return nil
	}
	return err
}

func (e *Executor) dropRef(ref algebra.GraphRef) error {
	switch ref.Kind {
	case algebra.GraphRefDefault:
		return e.Store.ClearDefaultGraph()
	case algebra.GraphRefNamed:
		return e.Store.RemoveGraph(ref.Graph)
	case algebra.GraphRefAllNamed:
		graphs, err := e.Store.NamedGraphs()
		if err != nil {
			return err
		}
		for _, g := range graphs {
			if err := e.Store.RemoveGraph(g); err != nil {
				return err
			}
		}
		return nil
	case algebra.GraphRefAll:
		if err := e.Store.ClearDefaultGraph(); err != nil {
			return err
		}
		graphs, err := e.Store.NamedGraphs()
		if err != nil {
			return err
		}
		for _, g := range graphs {
			if err := e.Store.RemoveGraph(g); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("update: unsupported graph reference kind %v", ref.Kind)
	}
}

// add copies every quad from From into To without clearing To first
// (SPARQL 1.1 Update ADD).
func (e *Executor) add(op *algebra.Add) error {
	err := e.copyGraph(op.From, op.To, false)
	if err != nil && op.Silent {
		return nil
	}
	return err
}

// move copies From into To, clearing To first, then drops From (SPARQL
// 1.1 Update MOVE). ADD/MOVE/COPY with From == To are a no-op per the
// spec; graphRefEqual catches the common default/default and same-IRI
// cases without needing a full graph scan.
func (e *Executor) move(op *algebra.Move) error {
	if graphRefEqual(op.From, op.To) {
		return nil
	}
	if err := e.copyGraph(op.From, op.To, true); err != nil {
		if op.Silent {
			return nil
		}
		return err
	}
	err := e.dropRef(op.From)
	if err != nil && op.Silent {
		return nil
	}
	return err
}

// copy copies From into To, clearing To first (SPARQL 1.1 Update COPY).
func (e *Executor) copy(op *algebra.Copy) error {
	if graphRefEqual(op.From, op.To) {
		return nil
	}
	err := e.copyGraph(op.From, op.To, true)
	if err != nil && op.Silent {
		return nil
	}
	return err
}

func graphRefEqual(a, b algebra.GraphRef) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != algebra.GraphRefNamed {
		return true
	}
	return a.Graph.Equals(b.Graph)
}

// copyGraph reads every quad from from (default or a named graph) and
// inserts it, retargeted, into to, optionally clearing to first.
func (e *Executor) copyGraph(from, to algebra.GraphRef, clearTarget bool) error {
	if from.Kind != algebra.GraphRefDefault && from.Kind != algebra.GraphRefNamed {
		return fmt.Errorf("update: ADD/MOVE/COPY source must be DEFAULT or a named graph")
	}
	if to.Kind != algebra.GraphRefDefault && to.Kind != algebra.GraphRefNamed {
		return fmt.Errorf("update: ADD/MOVE/COPY destination must be DEFAULT or a named graph")
	}

	pattern := &store.Pattern{}
	if from.Kind == algebra.GraphRefNamed {
		pattern.Graph = from.Graph
	}

	txn, err := e.Store.Snapshot()
	if err != nil {
		return err
	}
	qit, err := e.Store.QuadsForPatternInTxn(txn, pattern)
	if err != nil {
		txn.Rollback()
		return err
	}
	var quads []*rdf.Quad
	for qit.Next() {
		q, err := qit.Quad()
		if err != nil {
			qit.Close()
			txn.Rollback()
			return err
		}
		quads = append(quads, q)
	}
	qit.Close()
	txn.Rollback()

	if clearTarget {
		if err := e.clearRef(to); err != nil {
			return err
		}
	}

	var dstGraph rdf.Term = rdf.NewDefaultGraph()
	if to.Kind == algebra.GraphRefNamed {
		dstGraph = to.Graph
	}

	return e.Store.WithWriteTxn(func(writeTxn store.Transaction) error {
		for _, q := range quads {
			target := rdf.NewQuad(q.Subject, q.Predicate, q.Object, dstGraph)
			if err := e.Store.InsertInTxn(writeTxn, target); err != nil {
				return err
			}
		}
		return nil
	})
}
