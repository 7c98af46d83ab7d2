// Package trigraph wires the parser, optimizer, query evaluator and
// update executor into the single embeddable entry point spec.md §6/§10
// describes: open a Store, then call Query or Update against it. The
// teacher has no equivalent seam (cmd/trigo/main.go inlines the same
// four-step pipeline directly in main), so this file is grounded on that
// inlined sequence, generalized into a reusable method pair.
package trigraph

import (
	"context"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/internal/sparql/evaluator"
	"github.com/rdfkit/trigraph/internal/sparql/optimizer"
	"github.com/rdfkit/trigraph/internal/sparql/parser"
	"github.com/rdfkit/trigraph/internal/sparql/update"
	"github.com/rdfkit/trigraph/internal/store"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// DB is an opened graph database: a Store plus the query/update pipeline
// wired around it.
type DB struct {
	store *store.Store
	stats *optimizer.Statistics
	exec  *update.Executor
	query QueryConfig
	rdf12 bool
}

// Open opens (or creates) a database per cfg. An empty cfg.Storage.Path
// yields an in-memory store.
func Open(cfg Config) (*DB, error) {
	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	db := Wrap(s)
	db.query = cfg.Query
	db.rdf12 = cfg.Features.RDF12
	db.exec.RDF12 = cfg.Features.RDF12
	return db, nil
}

// Wrap adapts an already-open Store into a DB with default settings
// (RDF12 on, no query timeout), for callers that need direct access to s
// alongside the query/update pipeline (tests, or a caller supplying a
// non-default Storage via store.NewStore).
func Wrap(s *store.Store) *DB {
	return &DB{store: s, stats: &optimizer.Statistics{}, exec: update.New(s), rdf12: true}
}

// Store returns the underlying Store.
func (db *DB) Store() *store.Store { return db.store }

// SetLoader installs the LOAD collaborator used by SPARQL Update's LOAD
// operation. A nil Loader (the default) makes LOAD fail unless SILENT.
func (db *DB) SetLoader(l update.Loader) { db.exec.Loader = l }

// Close closes the underlying store.
func (db *DB) Close() error { return db.store.Close() }

// ResultKind discriminates QueryResults' three shapes (spec.md §6).
type ResultKind int

const (
	ResultSolutions ResultKind = iota
	ResultBoolean
	ResultGraph
)

// QueryResults is SPARQL's three-shaped query output: Solutions for
// SELECT, Boolean for ASK, Graph for CONSTRUCT/DESCRIBE. Exactly one of
// Rows/Boolean/Triples is meaningful, per Kind.
type QueryResults struct {
	Kind ResultKind

	// Solutions: the projected variable order, and one map per row.
	Variables []string
	Rows      []map[string]rdf.Term

	// Boolean: ASK's single yes/no answer.
	Boolean bool

	// Graph: CONSTRUCT/DESCRIBE's resulting triples.
	Triples []*rdf.Triple
}

// Query parses, optimizes and evaluates a SPARQL 1.1/1.2 query, fully
// materializing its result (this embeddable entry point trades streaming
// for a simple synchronous signature; evaluator.Iterator remains
// available directly to callers who need to pull lazily).
func (db *DB) Query(ctx context.Context, text string) (*QueryResults, error) {
	q, err := parser.ParseQueryOpts(text, "", parser.Options{RDF12: db.rdf12})
	if err != nil {
		return nil, err
	}

	ctx, cancel := db.withDefaultTimeout(ctx)
	defer cancel()

	count, err := db.store.Count()
	if err == nil {
		db.stats.TotalTriples = count
	}
	optimizer.NewOptimizer(db.stats).OptimizeQuery(q)

	txn, err := db.store.Snapshot()
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	ev := evaluator.New(db.store, txn)

	switch q.Kind {
	case algebra.QueryAsk:
		it, err := ev.Eval(ctx, q.Algebra, evaluator.Seed(), nil)
		if err != nil {
			return nil, err
		}
		defer it.Close()
		has := it.Next(ctx)
		if err := it.Err(); err != nil {
			return nil, err
		}
		return &QueryResults{Kind: ResultBoolean, Boolean: has}, nil

	case algebra.QueryConstruct:
		rows, err := drainSolutions(ctx, ev, q.Algebra)
		if err != nil {
			return nil, err
		}
		triples := instantiateTemplate(q.Template, rows)
		return &QueryResults{Kind: ResultGraph, Triples: triples}, nil

	case algebra.QueryDescribe:
		triples, err := db.describe(ctx, ev, q)
		if err != nil {
			return nil, err
		}
		return &QueryResults{Kind: ResultGraph, Triples: triples}, nil

	default: // algebra.QuerySelect
		rows, err := drainSolutions(ctx, ev, q.Algebra)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(q.ProjectVars))
		for i, v := range q.ProjectVars {
			names[i] = v.Name
		}
		out := make([]map[string]rdf.Term, len(rows))
		for i, row := range rows {
			out[i] = map[string]rdf.Term(row)
		}
		return &QueryResults{Kind: ResultSolutions, Variables: names, Rows: out}, nil
	}
}

// Update parses and runs a SPARQL 1.1 Update request.
func (db *DB) Update(ctx context.Context, text string) error {
	ctx, cancel := db.withDefaultTimeout(ctx)
	defer cancel()
	return db.exec.ExecuteUpdate(ctx, text)
}

// withDefaultTimeout applies query.default_timeout when ctx carries no
// deadline of its own.
func (db *DB) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.query.DefaultTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.query.DefaultTimeout)
}

func drainSolutions(ctx context.Context, ev *evaluator.Evaluator, node algebra.Node) ([]evaluator.Solution, error) {
	it, err := ev.Eval(ctx, node, evaluator.Seed(), nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var rows []evaluator.Solution
	for it.Next(ctx) {
		rows = append(rows, it.Solution())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// instantiateTemplate substitutes each row's bindings into template,
// skipping any resulting triple that still has an unbound variable
// (CONSTRUCT's rule, the same one SPARQL Update's INSERT/DELETE
// templates follow).
func instantiateTemplate(template []*algebra.QuadPattern, rows []evaluator.Solution) []*rdf.Triple {
	seen := map[string]bool{}
	var out []*rdf.Triple
	for _, row := range rows {
		for _, qp := range template {
			subj, ok := resolveConstructTerm(qp.Subject, row)
			if !ok {
				continue
			}
			pred, ok := resolveConstructTerm(qp.Predicate, row)
			if !ok {
				continue
			}
			obj, ok := resolveConstructTerm(qp.Object, row)
			if !ok {
				continue
			}
			t := rdf.NewTriple(subj, pred, obj)
			key := t.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

func resolveConstructTerm(t algebra.Term, row evaluator.Solution) (rdf.Term, bool) {
	if v, ok := t.(*algebra.Variable); ok {
		bound, ok := row[v.Name]
		return bound, ok
	}
	rt, ok := t.(rdf.Term)
	return rt, ok
}

// describe evaluates q's WHERE clause (if any) to resolve DescribeVars
// against each solution, adds DescribeTerms directly, then emits the
// Concise Bounded Description of each resolved resource: every triple in
// the default graph with that resource as subject. Grounded on spec.md
// §6's "Graph(iterator_of_triples)" output shape; the teacher has no
// DESCRIBE support to generalize from, so the CBD traversal depth (one
// hop) is a deliberate, documented simplification (see DESIGN.md) rather
// than the full recursive CBD some SPARQL engines implement.
func (db *DB) describe(ctx context.Context, ev *evaluator.Evaluator, q *algebra.Query) ([]*rdf.Triple, error) {
	resources := map[string]rdf.Term{}
	for _, t := range q.DescribeTerms {
		resources[t.String()] = t
	}
	if q.Algebra != nil {
		rows, err := drainSolutions(ctx, ev, q.Algebra)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			for _, v := range q.DescribeVars {
				if t, ok := row[v.Name]; ok {
					resources[t.String()] = t
				}
			}
		}
	}

	var out []*rdf.Triple
	for _, subj := range resources {
		qit, err := db.store.QuadsForPattern(&store.Pattern{Subject: subj})
		if err != nil {
			return nil, err
		}
		for qit.Next() {
			quad, err := qit.Quad()
			if err != nil {
				qit.Close()
				return nil, err
			}
			out = append(out, quad.Triple())
		}
		qit.Close()
	}
	return out, nil
}
