package rdf

import "fmt"

// Triple is a (subject, predicate, object) tuple in the default graph.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

func NewTriple(subject, predicate, object Term) *Triple {
	return &Triple{Subject: subject, Predicate: predicate, Object: object}
}

func (t *Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t.Subject, t.Predicate, t.Object)
}

// Quad is a (subject, predicate, object, graph) tuple, the fundamental
// unit of the dataset. Graph is either *DefaultGraph, a *NamedNode, or a
// *BlankNode.
type Quad struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}

func NewQuad(subject, predicate, object, graph Term) *Quad {
	return &Quad{Subject: subject, Predicate: predicate, Object: object, Graph: graph}
}

func (q *Quad) String() string {
	return fmt.Sprintf("%s %s %s %s .", q.Subject, q.Predicate, q.Object, q.Graph)
}

// Equals compares quads structurally.
func (q *Quad) Equals(other *Quad) bool {
	return q.Subject.Equals(other.Subject) &&
		q.Predicate.Equals(other.Predicate) &&
		q.Object.Equals(other.Object) &&
		q.Graph.Equals(other.Graph)
}

// IsDefaultGraph reports whether the quad belongs to the default graph.
func (q *Quad) IsDefaultGraph() bool {
	return q.Graph.Type() == TermTypeDefaultGraph
}

// Triple projects a quad down to its triple, discarding the graph.
func (q *Quad) Triple() *Triple {
	return &Triple{Subject: q.Subject, Predicate: q.Predicate, Object: q.Object}
}
