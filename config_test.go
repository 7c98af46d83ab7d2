package trigraph

import (
	"context"
	"testing"
	"time"
)

func TestOpenStore_InMemory(t *testing.T) {
	s, err := OpenStore(Config{})
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	defer s.Close()

	count, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected an empty store, got %d quads", count)
	}
}

func TestOpen_FeatureFlagGatesRDF12(t *testing.T) {
	db, err := Open(Config{Features: FeatureConfig{RDF12: false}})
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	_, err = db.Query(context.Background(), `SELECT * WHERE { <<<http://example.org/s> <http://example.org/p> <http://example.org/o>>> <http://example.org/q> ?v . }`)
	if err == nil {
		t.Fatal("expected quoted-triple syntax to be rejected when features.rdf12 is off")
	}
}

func TestDB_DefaultTimeoutAppliesWhenContextHasNoDeadline(t *testing.T) {
	db, err := Open(Config{Query: QueryConfig{DefaultTimeout: time.Nanosecond}})
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	_, err = db.Query(context.Background(), `SELECT * WHERE { ?s ?p ?o . }`)
	if err == nil {
		t.Fatal("expected a timeout error with an effectively-zero default timeout")
	}
}
