package update

import (
	"context"
	"fmt"
	"testing"

	"github.com/rdfkit/trigraph/internal/store"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	s, err := store.Open("")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestExecuteUpdate_InsertData(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	err := e.ExecuteUpdate(ctx, `
		INSERT DATA {
			<http://example.org/alice> <http://example.org/name> "Alice" .
			GRAPH <http://example.org/g1> {
				<http://example.org/alice> <http://example.org/name> "Alice in g1" .
			}
		}
	`)
	if err != nil {
		t.Fatalf("insert data: %v", err)
	}

	ok, err := e.Store.Contains(rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/alice"),
		rdf.NewNamedNode("http://example.org/name"),
		rdf.NewLiteral("Alice"),
		rdf.NewDefaultGraph(),
	))
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatal("expected default-graph quad to be present")
	}

	ok, err = e.Store.Contains(rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/alice"),
		rdf.NewNamedNode("http://example.org/name"),
		rdf.NewLiteral("Alice in g1"),
		rdf.NewNamedNode("http://example.org/g1"),
	))
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatal("expected named-graph quad to be present")
	}
}

func TestExecuteUpdate_InsertDataRejectsVariables(t *testing.T) {
	e := newTestExecutor(t)
	err := e.ExecuteUpdate(context.Background(), `INSERT DATA { ?s <http://example.org/p> "o" . }`)
	if err == nil {
		t.Fatal("expected an error for a variable inside INSERT DATA")
	}
}

func TestExecuteUpdate_DeleteData(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	quad := rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/alice"),
		rdf.NewNamedNode("http://example.org/name"),
		rdf.NewLiteral("Alice"),
		rdf.NewDefaultGraph(),
	)
	if err := e.Store.Insert(quad); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	err := e.ExecuteUpdate(ctx, `DELETE DATA { <http://example.org/alice> <http://example.org/name> "Alice" . }`)
	if err != nil {
		t.Fatalf("delete data: %v", err)
	}

	ok, err := e.Store.Contains(quad)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatal("expected quad to be removed")
	}
}

func TestExecuteUpdate_Modify(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q := rdf.NewQuad(
			rdf.NewNamedNode(fmt.Sprintf("http://example.org/s%d", i)),
			rdf.NewNamedNode("http://example.org/status"),
			rdf.NewLiteral("pending"),
			rdf.NewDefaultGraph(),
		)
		if err := e.Store.Insert(q); err != nil {
			t.Fatalf("seed insert %d: %v", i, err)
		}
	}

	err := e.ExecuteUpdate(ctx, `
		DELETE { ?s <http://example.org/status> "pending" . }
		INSERT { ?s <http://example.org/status> "done" . }
		WHERE { ?s <http://example.org/status> "pending" . }
	`)
	if err != nil {
		t.Fatalf("modify: %v", err)
	}

	count, err := e.Store.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 quads after modify, got %d", count)
	}

	for i := 0; i < 3; i++ {
		ok, err := e.Store.Contains(rdf.NewQuad(
			rdf.NewNamedNode(fmt.Sprintf("http://example.org/s%d", i)),
			rdf.NewNamedNode("http://example.org/status"),
			rdf.NewLiteral("done"),
			rdf.NewDefaultGraph(),
		))
		if err != nil {
			t.Fatalf("contains %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected s%d to have status done", i)
		}
	}
}

func TestExecuteUpdate_ClearAndCreateAndDrop(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()
	g := rdf.NewNamedNode("http://example.org/g1")

	if err := e.ExecuteUpdate(ctx, `CREATE GRAPH <http://example.org/g1>`); err != nil {
		t.Fatalf("create: %v", err)
	}
	graphs, err := e.Store.NamedGraphs()
	if err != nil {
		t.Fatalf("named graphs: %v", err)
	}
	if len(graphs) != 1 || !graphs[0].Equals(g) {
		t.Fatalf("expected graph %s to be registered, got %v", g, graphs)
	}

	if err := e.ExecuteUpdate(ctx, `INSERT DATA { GRAPH <http://example.org/g1> { <http://example.org/s> <http://example.org/p> "o" . } }`); err != nil {
		t.Fatalf("insert into graph: %v", err)
	}

	if err := e.ExecuteUpdate(ctx, `CLEAR GRAPH <http://example.org/g1>`); err != nil {
		t.Fatalf("clear: %v", err)
	}
	count, err := e.Store.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 quads after clear, got %d", count)
	}

	if err := e.ExecuteUpdate(ctx, `DROP GRAPH <http://example.org/g1>`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	graphs, err = e.Store.NamedGraphs()
	if err != nil {
		t.Fatalf("named graphs after drop: %v", err)
	}
	if len(graphs) != 0 {
		t.Fatalf("expected no named graphs after drop, got %v", graphs)
	}
}

func TestExecuteUpdate_Copy(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	if err := e.ExecuteUpdate(ctx, `INSERT DATA { <http://example.org/s> <http://example.org/p> "o" . }`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := e.ExecuteUpdate(ctx, `COPY DEFAULT TO GRAPH <http://example.org/g2>`); err != nil {
		t.Fatalf("copy: %v", err)
	}

	ok, err := e.Store.Contains(rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/s"),
		rdf.NewNamedNode("http://example.org/p"),
		rdf.NewLiteral("o"),
		rdf.NewNamedNode("http://example.org/g2"),
	))
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatal("expected copied quad in destination graph")
	}

	ok, err = e.Store.Contains(rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/s"),
		rdf.NewNamedNode("http://example.org/p"),
		rdf.NewLiteral("o"),
		rdf.NewDefaultGraph(),
	))
	if err != nil {
		t.Fatalf("contains source: %v", err)
	}
	if !ok {
		t.Fatal("expected source quad to remain after COPY")
	}
}

func TestExecuteUpdate_LoadRequiresLoader(t *testing.T) {
	e := newTestExecutor(t)
	err := e.ExecuteUpdate(context.Background(), `LOAD <http://example.org/data.nq>`)
	if err == nil {
		t.Fatal("expected an error when no Loader is configured")
	}
}

func TestExecuteUpdate_LoadSilentSwallowsError(t *testing.T) {
	e := newTestExecutor(t)
	err := e.ExecuteUpdate(context.Background(), `LOAD SILENT <http://example.org/data.nq>`)
	if err != nil {
		t.Fatalf("expected SILENT LOAD to swallow the missing-loader error, got %v", err)
	}
}

func TestExecuteUpdate_Load(t *testing.T) {
	e := newTestExecutor(t)
	e.Loader = func(ctx context.Context, source *rdf.NamedNode) ([]byte, error) {
		return []byte(`<http://example.org/s> <http://example.org/p> "loaded" .`), nil
	}

	err := e.ExecuteUpdate(context.Background(), `LOAD <http://example.org/data.nq> INTO GRAPH <http://example.org/g3>`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ok, err := e.Store.Contains(rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/s"),
		rdf.NewNamedNode("http://example.org/p"),
		rdf.NewLiteral("loaded"),
		rdf.NewNamedNode("http://example.org/g3"),
	))
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatal("expected loaded quad to be retargeted into the INTO graph")
	}
}
