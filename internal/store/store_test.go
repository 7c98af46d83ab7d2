package store

import (
	"testing"

	"github.com/rdfkit/trigraph/pkg/rdf"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleQuad() *rdf.Quad {
	return rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/alice"),
		rdf.NewNamedNode("http://example.org/knows"),
		rdf.NewNamedNode("http://example.org/bob"),
		rdf.NewDefaultGraph(),
	)
}

func TestStore_InsertContainsRemove(t *testing.T) {
	s := newTestStore(t)
	q := sampleQuad()

	ok, err := s.Contains(q)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatal("expected quad to be absent before insert")
	}

	if err := s.Insert(q); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ok, err = s.Contains(q)
	if err != nil {
		t.Fatalf("contains after insert: %v", err)
	}
	if !ok {
		t.Fatal("expected quad to be present after insert")
	}

	if err := s.Remove(q); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ok, err = s.Contains(q)
	if err != nil {
		t.Fatalf("contains after remove: %v", err)
	}
	if ok {
		t.Fatal("expected quad to be absent after remove")
	}
}

func TestStore_Count(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		q := rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/s"),
			rdf.NewNamedNode("http://example.org/p"),
			rdf.NewIntegerLiteral(int64(i)),
			rdf.NewDefaultGraph(),
		)
		if err := s.Insert(q); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	count, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Errorf("expected count 5, got %d", count)
	}
}

func TestStore_QuadsForPattern_AllIndexesAgree(t *testing.T) {
	s := newTestStore(t)
	q := sampleQuad()
	if err := s.Insert(q); err != nil {
		t.Fatalf("insert: %v", err)
	}

	s1 := rdf.NewNamedNode("http://example.org/alice")
	p1 := rdf.NewNamedNode("http://example.org/knows")
	o1 := rdf.NewNamedNode("http://example.org/bob")

	patterns := []*Pattern{
		{Subject: s1, Predicate: NewVariable("p"), Object: NewVariable("o")},
		{Subject: NewVariable("s"), Predicate: p1, Object: NewVariable("o")},
		{Subject: NewVariable("s"), Predicate: NewVariable("p"), Object: o1},
		{Subject: s1, Predicate: p1, Object: NewVariable("o")},
		{Subject: NewVariable("s"), Predicate: NewVariable("p"), Object: NewVariable("o")},
	}

	for i, pat := range patterns {
		it, err := s.QuadsForPattern(pat)
		if err != nil {
			t.Fatalf("pattern %d: %v", i, err)
		}
		found := false
		for it.Next() {
			got, err := it.Quad()
			if err != nil {
				t.Fatalf("pattern %d quad: %v", i, err)
			}
			if got.Equals(q) {
				found = true
			}
		}
		it.Close()
		if !found {
			t.Errorf("pattern %d: expected quad not found via selected index", i)
		}
	}
}

func TestStore_NamedGraphRegistry(t *testing.T) {
	s := newTestStore(t)
	graph := rdf.NewNamedNode("http://example.org/g1")

	if err := s.AddGraph(graph); err != nil {
		t.Fatalf("add graph: %v", err)
	}
	graphs, err := s.NamedGraphs()
	if err != nil {
		t.Fatalf("named graphs: %v", err)
	}
	if len(graphs) != 1 || !graphs[0].Equals(graph) {
		t.Errorf("expected [%s], got %v", graph, graphs)
	}

	q := rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/s"),
		rdf.NewNamedNode("http://example.org/p"),
		rdf.NewLiteral("o"),
		graph,
	)
	if err := s.Insert(q); err != nil {
		t.Fatalf("insert into named graph: %v", err)
	}

	if err := s.ClearGraph(graph); err != nil {
		t.Fatalf("clear graph: %v", err)
	}
	ok, err := s.Contains(q)
	if err != nil {
		t.Fatalf("contains after clear: %v", err)
	}
	if ok {
		t.Error("expected quad removed after ClearGraph")
	}
	graphs, err = s.NamedGraphs()
	if err != nil {
		t.Fatalf("named graphs after clear: %v", err)
	}
	if len(graphs) != 1 {
		t.Error("ClearGraph must not deregister the graph")
	}

	if err := s.RemoveGraph(graph); err != nil {
		t.Fatalf("remove graph: %v", err)
	}
	graphs, err = s.NamedGraphs()
	if err != nil {
		t.Fatalf("named graphs after remove: %v", err)
	}
	if len(graphs) != 0 {
		t.Error("RemoveGraph must deregister the graph")
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := newTestStore(t)
	q := sampleQuad()
	if err := s.Insert(q); err != nil {
		t.Fatalf("insert: %v", err)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer snap.Rollback()

	q2 := rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/carol"),
		rdf.NewNamedNode("http://example.org/knows"),
		rdf.NewNamedNode("http://example.org/dave"),
		rdf.NewDefaultGraph(),
	)
	if err := s.Insert(q2); err != nil {
		t.Fatalf("insert after snapshot: %v", err)
	}

	ok, err := s.ContainsInTxn(snap, q2)
	if err != nil {
		t.Fatalf("contains in snapshot: %v", err)
	}
	if ok {
		t.Error("snapshot must not observe writes committed after it began")
	}

	ok, err = s.Contains(q2)
	if err != nil {
		t.Fatalf("contains live: %v", err)
	}
	if !ok {
		t.Error("live store must observe the committed write")
	}
}

func TestStore_WriterExclusivity(t *testing.T) {
	s := newTestStore(t)

	txn1, err := s.storage.Begin(true)
	if err != nil {
		t.Fatalf("begin writer: %v", err)
	}
	defer txn1.Rollback()

	_, err = s.storage.TryBegin(true)
	if err != ErrWriterBusy {
		t.Errorf("expected ErrWriterBusy while a writer is outstanding, got %v", err)
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	if err := s.Insert(sampleQuad()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	count, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty store after Clear, got count=%d", count)
	}
}
