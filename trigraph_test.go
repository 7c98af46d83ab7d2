package trigraph

import (
	"context"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Features: FeatureConfig{RDF12: true}})
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_SelectQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Update(ctx, `
		INSERT DATA {
			<http://example.org/alice> <http://example.org/name> "Alice" .
			<http://example.org/bob> <http://example.org/name> "Bob" .
		}
	`); err != nil {
		t.Fatalf("insert data: %v", err)
	}

	res, err := db.Query(ctx, `SELECT ?s ?name WHERE { ?s <http://example.org/name> ?name . } ORDER BY ?name`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Kind != ResultSolutions {
		t.Fatalf("expected ResultSolutions, got %v", res.Kind)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if got := res.Rows[0]["name"].String(); got != `"Alice"` {
		t.Errorf("expected Alice first (ORDER BY ?name), got %s", got)
	}
}

func TestDB_AskQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Update(ctx, `INSERT DATA { <http://example.org/s> <http://example.org/p> "o" . }`); err != nil {
		t.Fatalf("insert data: %v", err)
	}

	res, err := db.Query(ctx, `ASK { <http://example.org/s> <http://example.org/p> "o" . }`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Kind != ResultBoolean || !res.Boolean {
		t.Fatalf("expected true ASK result, got %+v", res)
	}

	res, err = db.Query(ctx, `ASK { <http://example.org/s> <http://example.org/p> "nope" . }`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Boolean {
		t.Fatal("expected false ASK result for a non-matching pattern")
	}
}

func TestDB_ConstructQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Update(ctx, `INSERT DATA { <http://example.org/alice> <http://example.org/name> "Alice" . }`); err != nil {
		t.Fatalf("insert data: %v", err)
	}

	res, err := db.Query(ctx, `
		CONSTRUCT { ?s <http://example.org/label> ?name . }
		WHERE { ?s <http://example.org/name> ?name . }
	`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Kind != ResultGraph {
		t.Fatalf("expected ResultGraph, got %v", res.Kind)
	}
	if len(res.Triples) != 1 {
		t.Fatalf("expected 1 constructed triple, got %d", len(res.Triples))
	}
	if res.Triples[0].Predicate.String() != "<http://example.org/label>" {
		t.Errorf("unexpected predicate: %s", res.Triples[0].Predicate)
	}
}

func TestDB_DescribeQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Update(ctx, `
		INSERT DATA {
			<http://example.org/alice> <http://example.org/name> "Alice" .
			<http://example.org/alice> <http://example.org/age> 30 .
			<http://example.org/bob> <http://example.org/name> "Bob" .
		}
	`); err != nil {
		t.Fatalf("insert data: %v", err)
	}

	res, err := db.Query(ctx, `DESCRIBE <http://example.org/alice>`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Kind != ResultGraph {
		t.Fatalf("expected ResultGraph, got %v", res.Kind)
	}
	if len(res.Triples) != 2 {
		t.Fatalf("expected 2 triples describing alice, got %d", len(res.Triples))
	}
}

func TestDB_QuotedTripleRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Update(ctx, `
		INSERT DATA {
			<<<http://example.org/alice> <http://example.org/age> 30>> <http://example.org/certainty> "high" .
		}
	`); err != nil {
		t.Fatalf("insert data with quoted triple: %v", err)
	}

	res, err := db.Query(ctx, `ASK { ?s <http://example.org/certainty> "high" . }`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !res.Boolean {
		t.Fatal("expected the quoted-triple subject quad to be found")
	}
}

func TestDB_QuotedTripleWithVariableIsRejected(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Query(context.Background(), `SELECT * WHERE { <<?s <http://example.org/p> ?o>> <http://example.org/q> ?v . }`)
	if err == nil {
		t.Fatal("expected a parse error for a quoted triple containing a variable")
	}
}
