package nquads

import (
	"testing"

	"github.com/rdfkit/trigraph/pkg/rdf"
)

func TestParser_BareTripleDefaultsToDefaultGraph(t *testing.T) {
	quads, err := NewParser(`<http://example.org/s> <http://example.org/p> "o" .`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(quads))
	}
	q := quads[0]
	if !q.Graph.Equals(rdf.NewDefaultGraph()) {
		t.Errorf("expected default graph, got %s", q.Graph)
	}
	if !q.Subject.Equals(rdf.NewNamedNode("http://example.org/s")) {
		t.Errorf("unexpected subject: %s", q.Subject)
	}
	if !q.Object.Equals(rdf.NewLiteral("o")) {
		t.Errorf("unexpected object: %s", q.Object)
	}
}

func TestParser_FourthPositionIsGraph(t *testing.T) {
	quads, err := NewParser(`<http://example.org/s> <http://example.org/p> <http://example.org/o> <http://example.org/g> .`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(quads))
	}
	if !quads[0].Graph.Equals(rdf.NewNamedNode("http://example.org/g")) {
		t.Errorf("unexpected graph: %s", quads[0].Graph)
	}
}

func TestParser_BlankNodeAndLanguageLiteral(t *testing.T) {
	quads, err := NewParser(`_:b1 <http://example.org/name> "chat"@en .`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	bn, ok := quads[0].Subject.(*rdf.BlankNode)
	if !ok {
		t.Fatalf("expected blank node subject, got %T", quads[0].Subject)
	}
	if bn.ID != "b1" {
		t.Errorf("unexpected blank node id: %s", bn.ID)
	}
	lit, ok := quads[0].Object.(*rdf.Literal)
	if !ok {
		t.Fatalf("expected literal object, got %T", quads[0].Object)
	}
	if lit.Language != "en" {
		t.Errorf("unexpected language: %s", lit.Language)
	}
}

func TestParser_TypedLiteral(t *testing.T) {
	quads, err := NewParser(`<http://example.org/s> <http://example.org/age> "30"^^<http://www.w3.org/2001/XMLSchema#integer> .`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lit := quads[0].Object.(*rdf.Literal)
	if !lit.Datatype.Equals(rdf.XSDInteger) {
		t.Errorf("expected xsd:integer, got %s", lit.Datatype)
	}
}

func TestParser_MalformedIRIReturnsError(t *testing.T) {
	_, err := NewParser(`<not a valid iri with spaces> <http://example.org/p> "o" .`).Parse()
	if err == nil {
		t.Fatal("expected an error for a malformed IRI")
	}
}

func TestParser_PrefixedNames(t *testing.T) {
	quads, err := NewParser(`
		@prefix ex: <http://example.org/> .
		ex:s ex:p ex:o .
	`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(quads))
	}
	if !quads[0].Subject.Equals(rdf.NewNamedNode("http://example.org/s")) {
		t.Errorf("unexpected subject: %s", quads[0].Subject)
	}
}

func TestSliceIterator(t *testing.T) {
	q1 := rdf.NewQuad(rdf.NewNamedNode("http://example.org/s1"), rdf.NewNamedNode("http://example.org/p"), rdf.NewLiteral("o1"), rdf.NewDefaultGraph())
	q2 := rdf.NewQuad(rdf.NewNamedNode("http://example.org/s2"), rdf.NewNamedNode("http://example.org/p"), rdf.NewLiteral("o2"), rdf.NewDefaultGraph())

	it := NewSliceIterator([]*rdf.Quad{q1, q2})
	var got []*rdf.Quad
	for it.Next() {
		q, err := it.Quad()
		if err != nil {
			t.Fatalf("quad: %v", err)
		}
		got = append(got, q)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 quads, got %d", len(got))
	}
	if it.Next() {
		t.Fatal("expected iterator to be exhausted")
	}
	if err := it.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
