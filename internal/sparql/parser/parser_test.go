package parser

import (
	"testing"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
)

func TestParseQuery_SimpleSelect(t *testing.T) {
	q, err := ParseQuery(`
		PREFIX ex: <http://example.org/>
		SELECT ?s ?o WHERE { ?s ex:p ?o . }
	`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != algebra.QuerySelect {
		t.Fatalf("expected QuerySelect, got %v", q.Kind)
	}
	if len(q.ProjectVars) != 2 || q.ProjectVars[0].Name != "s" || q.ProjectVars[1].Name != "o" {
		t.Fatalf("unexpected projection: %+v", q.ProjectVars)
	}
	proj, ok := q.Algebra.(*algebra.Project)
	if !ok {
		t.Fatalf("expected a Project over the WHERE pattern, got %T", q.Algebra)
	}
	bgp, ok := proj.Inner.(*algebra.BGP)
	if !ok {
		t.Fatalf("expected a bare BGP for a single triple pattern, got %T", proj.Inner)
	}
	if len(bgp.Patterns) != 1 {
		t.Fatalf("expected 1 triple pattern, got %d", len(bgp.Patterns))
	}
}

func TestParseQuery_Ask(t *testing.T) {
	q, err := ParseQuery(`ASK { <http://example.org/s> <http://example.org/p> <http://example.org/o> . }`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != algebra.QueryAsk {
		t.Fatalf("expected QueryAsk, got %v", q.Kind)
	}
}

func TestParseQuery_Construct(t *testing.T) {
	q, err := ParseQuery(`
		CONSTRUCT { ?s <http://example.org/copy> ?o . }
		WHERE { ?s <http://example.org/p> ?o . }
	`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != algebra.QueryConstruct {
		t.Fatalf("expected QueryConstruct, got %v", q.Kind)
	}
	if len(q.Template) != 1 {
		t.Fatalf("expected 1 template pattern, got %d", len(q.Template))
	}
}

func TestParseQuery_Describe(t *testing.T) {
	q, err := ParseQuery(`DESCRIBE <http://example.org/s> ?t WHERE { ?t a <http://example.org/Thing> . }`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != algebra.QueryDescribe {
		t.Fatalf("expected QueryDescribe, got %v", q.Kind)
	}
	if len(q.DescribeTerms) != 1 {
		t.Fatalf("expected 1 describe term, got %d", len(q.DescribeTerms))
	}
	if len(q.DescribeVars) != 1 || q.DescribeVars[0].Name != "t" {
		t.Fatalf("unexpected describe vars: %+v", q.DescribeVars)
	}
}

func TestParseQuery_RejectsTrailingGarbage(t *testing.T) {
	_, err := ParseQuery(`SELECT * WHERE { ?s ?p ?o . } garbage`, "")
	if err == nil {
		t.Fatal("expected an error for trailing input after the query")
	}
}

func TestParseQuery_QuotedTriplePattern(t *testing.T) {
	q, err := ParseQuery(`
		SELECT ?certainty WHERE {
			<< <http://example.org/s> <http://example.org/p> <http://example.org/o> >> <http://example.org/certainty> ?certainty .
		}
	`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proj, ok := q.Algebra.(*algebra.Project)
	if !ok {
		t.Fatalf("expected Project, got %T", q.Algebra)
	}
	bgp, ok := proj.Inner.(*algebra.BGP)
	if !ok {
		t.Fatalf("expected BGP, got %T", proj.Inner)
	}
	if len(bgp.Patterns) != 1 {
		t.Fatalf("expected 1 triple pattern, got %d", len(bgp.Patterns))
	}
	if algebra.IsVariable(bgp.Patterns[0].Subject) {
		t.Fatal("expected the quoted triple subject to be a bound term, not a variable")
	}
}

func TestParseQuery_QuotedTripleWithVariableRejected(t *testing.T) {
	_, err := ParseQuery(`SELECT * WHERE { << ?s <http://example.org/p> <http://example.org/o> >> <http://example.org/q> ?v . }`, "")
	if err == nil {
		t.Fatal("expected a parse error for a variable inside a quoted triple")
	}
}

func TestParseQueryOpts_RDF12OffRejectsQuotedTriple(t *testing.T) {
	_, err := ParseQueryOpts(`SELECT * WHERE { << <http://example.org/s> <http://example.org/p> <http://example.org/o> >> <http://example.org/q> ?v . }`, "", Options{RDF12: false})
	if err == nil {
		t.Fatal("expected quoted-triple syntax to be rejected when RDF12 is off")
	}
}

func TestParseUpdate_InsertData(t *testing.T) {
	upd, err := ParseUpdate(`INSERT DATA { <http://example.org/s> <http://example.org/p> "o" . }`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(upd.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(upd.Operations))
	}
	if _, ok := upd.Operations[0].(*algebra.InsertData); !ok {
		t.Fatalf("expected *algebra.InsertData, got %T", upd.Operations[0])
	}
}

func TestParseUpdate_MultipleOperations(t *testing.T) {
	upd, err := ParseUpdate(`
		INSERT DATA { <http://example.org/s> <http://example.org/p> "a" . } ;
		DELETE DATA { <http://example.org/s> <http://example.org/p> "a" . }
	`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(upd.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(upd.Operations))
	}
}

func TestParseUpdate_Modify(t *testing.T) {
	upd, err := ParseUpdate(`
		DELETE { ?s <http://example.org/status> "pending" . }
		INSERT { ?s <http://example.org/status> "done" . }
		WHERE { ?s <http://example.org/status> "pending" . }
	`, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, ok := upd.Operations[0].(*algebra.Modify)
	if !ok {
		t.Fatalf("expected *algebra.Modify, got %T", upd.Operations[0])
	}
	if len(m.Delete) != 1 || len(m.Insert) != 1 {
		t.Fatalf("unexpected template lengths: delete=%d insert=%d", len(m.Delete), len(m.Insert))
	}
}
