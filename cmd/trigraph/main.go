// Command trigraph is a thin CLI over the trigraph package: demo, query,
// and load subcommands. Adapted from the teacher's cmd/trigo/main.go,
// trimmed to drop the HTTP server subcommand and results-format
// serializers (out of scope per spec.md §1 — see DESIGN.md).
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	trigraph "github.com/rdfkit/trigraph"
	"github.com/rdfkit/trigraph/internal/nquads"
	"github.com/rdfkit/trigraph/internal/store"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

const defaultDBPath = "./trigraph_data"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "demo":
		runDemo()
	case "query":
		if len(os.Args) < 3 {
			fmt.Println("Usage: trigraph query <sparql-query>")
			os.Exit(1)
		}
		runQuery(os.Args[2])
	case "load":
		if len(os.Args) < 3 {
			fmt.Println("Usage: trigraph load <path.nq>")
			os.Exit(1)
		}
		runLoad(os.Args[2])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: trigraph <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  demo           - run a demo with sample data")
	fmt.Println("  query <sparql> - execute a SPARQL query or update")
	fmt.Println("  load <path>    - bulk-load an N-Quads/N-Triples file")
}

func openDefault() *trigraph.DB {
	db, err := trigraph.Open(trigraph.Config{
		Storage:  trigraph.StorageConfig{Path: defaultDBPath},
		Features: trigraph.FeatureConfig{RDF12: true},
	})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	return db
}

func runDemo() {
	fmt.Println("=== trigraph demo ===")
	fmt.Printf("Opening database at: %s\n", defaultDBPath)

	db := openDefault()
	defer db.Close()

	ctx := context.Background()

	fmt.Println("Inserting sample data...")
	err := db.Update(ctx, `
		INSERT DATA {
			<http://example.org/alice> <http://xmlns.com/foaf/0.1/name> "Alice" .
			<http://example.org/alice> <http://xmlns.com/foaf/0.1/age> 30 .
			<http://example.org/alice> <http://xmlns.com/foaf/0.1/knows> <http://example.org/bob> .
			<http://example.org/bob> <http://xmlns.com/foaf/0.1/name> "Bob" .
			<http://example.org/bob> <http://xmlns.com/foaf/0.1/age> 25 .
			<http://example.org/bob> <http://xmlns.com/foaf/0.1/knows> <http://example.org/carol> .
			<http://example.org/carol> <http://xmlns.com/foaf/0.1/name> "Carol" .
			<http://example.org/carol> <http://xmlns.com/foaf/0.1/age> 28 .
			GRAPH <http://example.org/graph1> {
				<http://example.org/alice> <http://xmlns.com/foaf/0.1/name> "Alice in Graph1" .
			}
		}
	`)
	if err != nil {
		log.Fatalf("failed to insert sample data: %v", err)
	}

	count, err := db.Store().Count()
	if err != nil {
		log.Fatalf("failed to count triples: %v", err)
	}
	fmt.Printf("Total triples stored: %d\n\n", count)

	query := `
		SELECT ?person ?name ?age
		WHERE {
			?person <http://xmlns.com/foaf/0.1/name> ?name .
			?person <http://xmlns.com/foaf/0.1/age> ?age .
		}
	`
	fmt.Printf("Query:%s\n", query)
	printResults(db, ctx, query)
}

func runQuery(text string) {
	db := openDefault()
	defer db.Close()
	printResults(db, context.Background(), text)
}

// runLoad bulk-loads an N-Quads/N-Triples file directly into the default
// store, bypassing SPARQL Update's LOAD (which fetches from a remote IRI
// via a Loader callback, not a local path).
func runLoad(path string) {
	db := openDefault()
	defer db.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read %s: %v", path, err)
	}

	quads, err := nquads.NewParser(string(data)).Parse()
	if err != nil {
		log.Fatalf("failed to parse %s: %v", path, err)
	}

	n, err := db.Store().BulkLoad(nquads.NewSliceIterator(quads), store.BulkLoadOptions{})
	if err != nil {
		log.Fatalf("failed to load %s: %v", path, err)
	}
	fmt.Printf("Loaded %d quads from %s\n", n, path)
}

func printResults(db *trigraph.DB, ctx context.Context, text string) {
	res, err := db.Query(ctx, text)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	switch res.Kind {
	case trigraph.ResultBoolean:
		fmt.Printf("Result: %t\n", res.Boolean)
	case trigraph.ResultGraph:
		fmt.Printf("Constructed %d triples:\n", len(res.Triples))
		for _, t := range res.Triples {
			fmt.Printf("%s %s %s .\n", t.Subject, t.Predicate, t.Object)
		}
	default:
		fmt.Println("Results:")
		for _, row := range res.Rows {
			for _, v := range res.Variables {
				if term, ok := row[v]; ok {
					fmt.Printf("  ?%s = %s\n", v, formatTerm(term))
				}
			}
			fmt.Println()
		}
		fmt.Printf("Found %d results\n", len(res.Rows))
	}
}

func formatTerm(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		iri := t.IRI
		for i := len(iri) - 1; i >= 0; i-- {
			if iri[i] == '/' || iri[i] == '#' {
				return iri[i+1:]
			}
		}
		return iri
	case *rdf.Literal:
		return t.Value
	default:
		return term.String()
	}
}
