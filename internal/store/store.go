package store

import (
	"bytes"
	"fmt"

	"github.com/rdfkit/trigraph/pkg/rdf"
)

// Store is the top-level nine-index RDF dataset (spec.md §3-§5): three
// default-graph triple indexes, six named-graph quad indexes, a string
// dictionary, and a named-graph registry, all layered over a single
// Storage keyspace.
type Store struct {
	storage Storage
	encoder *TermEncoder
	decoder *TermDecoder

	// defaultBulkBufferBytes overrides DefaultBulkBufferBytes for any
	// BulkLoad call that doesn't set its own BufferBytes (storage.
	// bulk_buffer_bytes via Config/OpenWithConfig). Zero means "use
	// DefaultBulkBufferBytes".
	defaultBulkBufferBytes int64
}

// Config configures OpenWithConfig (storage.path, storage.
// bulk_buffer_bytes in the config table). The zero value opens an
// in-memory store with the package's default bulk-load buffer size.
type Config struct {
	// Path is the on-disk directory Badger persists to. Empty opens an
	// in-memory store.
	Path string

	// BulkBufferBytes overrides DefaultBulkBufferBytes for BulkLoad
	// calls that don't set their own BulkLoadOptions.BufferBytes. Zero
	// keeps the package default.
	BulkBufferBytes int64
}

// Open opens (or creates) a Store at path. An empty path yields an
// in-memory store.
func Open(path string) (*Store, error) {
	bs, err := NewBadgerStorage(path)
	if err != nil {
		return nil, err
	}
	return NewStore(bs), nil
}

// OpenWithConfig is Open plus the storage-layer tunables in cfg,
// following the teacher's constructor-injection style
// (NewBadgerStorage(path), NewTripleStore(storage, encoder, decoder))
// rather than a package-level global.
func OpenWithConfig(cfg Config) (*Store, error) {
	s, err := Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	s.defaultBulkBufferBytes = cfg.BulkBufferBytes
	return s, nil
}

// NewStore wraps an arbitrary Storage implementation. Exposed primarily so
// tests can supply an in-memory Storage directly.
func NewStore(s Storage) *Store {
	return &Store{storage: s, encoder: NewTermEncoder(), decoder: NewTermDecoder()}
}

func (s *Store) Close() error { return s.storage.Close() }

// Sync flushes writes to durable storage.
func (s *Store) Sync() error { return s.storage.Sync() }

// Backup writes a point-in-time checkpoint to path.
func (s *Store) Backup(path string) error { return s.storage.Backup(path) }

// Clear wipes every index, the dictionary, and the graph registry, used to
// recover from a failed non-atomic BulkLoad before retrying (spec.md §6).
func (s *Store) Clear() error {
	return s.WithWriteTxn(func(txn Transaction) error {
		for table := Table(0); table < TableCount; table++ {
			it, err := txn.Scan(table, nil, nil)
			if err != nil {
				return err
			}
			var keys [][]byte
			for it.Next() {
				keys = append(keys, append([]byte{}, it.Key()...))
			}
			it.Close()
			for _, k := range keys {
				if err := txn.Delete(table, k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Snapshot begins a read-only transaction, giving the caller a consistent
// view of the dataset unaffected by concurrent writers (spec.md §5).
func (s *Store) Snapshot() (Transaction, error) { return s.storage.Begin(false) }

// WithWriteTxn runs fn inside a single writable transaction, committing on
// success and rolling back on error or panic.
func (s *Store) WithWriteTxn(fn func(txn Transaction) error) (err error) {
	txn, err := s.storage.Begin(true)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = txn.Rollback()
		}
	}()
	if err = fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// TryWithWriteTxn is WithWriteTxn but fails fast with ErrWriterBusy instead
// of blocking when a writer is already outstanding.
func (s *Store) TryWithWriteTxn(fn func(txn Transaction) error) (err error) {
	txn, err := s.storage.TryBegin(true)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = txn.Rollback()
		}
	}()
	if err = fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// Insert adds quad to the store within its own transaction.
func (s *Store) Insert(quad *rdf.Quad) error {
	return s.WithWriteTxn(func(txn Transaction) error {
		return s.InsertInTxn(txn, quad)
	})
}

// InsertInTxn writes quad's entries to every applicable index, the
// dictionary, and (for named graphs) the graph registry, all within an
// already-open writable transaction. Used directly by the update evaluator
// and the bulk loader to batch many quads into one transaction.
func (s *Store) InsertInTxn(txn Transaction, quad *rdf.Quad) error {
	subjEnc, subjStr, err := s.encoder.EncodeTerm(quad.Subject)
	if err != nil {
		return fmt.Errorf("failed to encode subject: %w", err)
	}
	predEnc, predStr, err := s.encoder.EncodeTerm(quad.Predicate)
	if err != nil {
		return fmt.Errorf("failed to encode predicate: %w", err)
	}
	objEnc, objStr, err := s.encoder.EncodeTerm(quad.Object)
	if err != nil {
		return fmt.Errorf("failed to encode object: %w", err)
	}
	graphEnc, graphStr, err := s.encoder.EncodeTerm(quad.Graph)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}

	if err := s.internString(txn, subjEnc, subjStr); err != nil {
		return err
	}
	if err := s.internString(txn, predEnc, predStr); err != nil {
		return err
	}
	if err := s.internString(txn, objEnc, objStr); err != nil {
		return err
	}
	if err := s.internString(txn, graphEnc, graphStr); err != nil {
		return err
	}

	empty := []byte{}
	isDefaultGraph := quad.Graph.Type() == rdf.TermTypeDefaultGraph

	if isDefaultGraph {
		if err := txn.Set(TableSPO, EncodeQuadKey(subjEnc, predEnc, objEnc), empty); err != nil {
			return err
		}
		if err := txn.Set(TablePOS, EncodeQuadKey(predEnc, objEnc, subjEnc), empty); err != nil {
			return err
		}
		if err := txn.Set(TableOSP, EncodeQuadKey(objEnc, subjEnc, predEnc), empty); err != nil {
			return err
		}
	}

	if err := txn.Set(TableSPOG, EncodeQuadKey(subjEnc, predEnc, objEnc, graphEnc), empty); err != nil {
		return err
	}
	if err := txn.Set(TablePOSG, EncodeQuadKey(predEnc, objEnc, subjEnc, graphEnc), empty); err != nil {
		return err
	}
	if err := txn.Set(TableOSPG, EncodeQuadKey(objEnc, subjEnc, predEnc, graphEnc), empty); err != nil {
		return err
	}
	if err := txn.Set(TableGSPO, EncodeQuadKey(graphEnc, subjEnc, predEnc, objEnc), empty); err != nil {
		return err
	}
	if err := txn.Set(TableGPOS, EncodeQuadKey(graphEnc, predEnc, objEnc, subjEnc), empty); err != nil {
		return err
	}
	if err := txn.Set(TableGOSP, EncodeQuadKey(graphEnc, objEnc, subjEnc, predEnc), empty); err != nil {
		return err
	}

	if !isDefaultGraph {
		if err := txn.Set(TableGraphs, graphEnc.HashKey(), empty); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) internString(txn Transaction, encoded EncodedTerm, str *string) error {
	if str == nil {
		return nil
	}
	key := encoded.HashKey()
	value := []byte(*str)

	existing, err := txn.Get(TableID2Str, key)
	if err == nil && bytes.Equal(existing, value) {
		return nil
	}
	if err != nil && err != ErrNotFound {
		return err
	}
	return txn.Set(TableID2Str, key, value)
}

// Remove deletes quad from the store within its own transaction.
func (s *Store) Remove(quad *rdf.Quad) error {
	return s.WithWriteTxn(func(txn Transaction) error {
		return s.RemoveInTxn(txn, quad)
	})
}

// RemoveInTxn removes quad's entries from every applicable index. The
// dictionary and graph registry are never pruned (spec.md §3: the
// dictionary performs no garbage collection).
func (s *Store) RemoveInTxn(txn Transaction, quad *rdf.Quad) error {
	subjEnc, _, err := s.encoder.EncodeTerm(quad.Subject)
	if err != nil {
		return err
	}
	predEnc, _, err := s.encoder.EncodeTerm(quad.Predicate)
	if err != nil {
		return err
	}
	objEnc, _, err := s.encoder.EncodeTerm(quad.Object)
	if err != nil {
		return err
	}
	graphEnc, _, err := s.encoder.EncodeTerm(quad.Graph)
	if err != nil {
		return err
	}

	isDefaultGraph := quad.Graph.Type() == rdf.TermTypeDefaultGraph
	if isDefaultGraph {
		if err := txn.Delete(TableSPO, EncodeQuadKey(subjEnc, predEnc, objEnc)); err != nil {
			return err
		}
		if err := txn.Delete(TablePOS, EncodeQuadKey(predEnc, objEnc, subjEnc)); err != nil {
			return err
		}
		if err := txn.Delete(TableOSP, EncodeQuadKey(objEnc, subjEnc, predEnc)); err != nil {
			return err
		}
	}
	if err := txn.Delete(TableSPOG, EncodeQuadKey(subjEnc, predEnc, objEnc, graphEnc)); err != nil {
		return err
	}
	if err := txn.Delete(TablePOSG, EncodeQuadKey(predEnc, objEnc, subjEnc, graphEnc)); err != nil {
		return err
	}
	if err := txn.Delete(TableOSPG, EncodeQuadKey(objEnc, subjEnc, predEnc, graphEnc)); err != nil {
		return err
	}
	if err := txn.Delete(TableGSPO, EncodeQuadKey(graphEnc, subjEnc, predEnc, objEnc)); err != nil {
		return err
	}
	if err := txn.Delete(TableGPOS, EncodeQuadKey(graphEnc, predEnc, objEnc, subjEnc)); err != nil {
		return err
	}
	if err := txn.Delete(TableGOSP, EncodeQuadKey(graphEnc, objEnc, subjEnc, predEnc)); err != nil {
		return err
	}
	return nil
}

// Contains reports whether quad is present in the store.
func (s *Store) Contains(quad *rdf.Quad) (bool, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return false, err
	}
	defer txn.Rollback()
	return s.ContainsInTxn(txn, quad)
}

func (s *Store) ContainsInTxn(txn Transaction, quad *rdf.Quad) (bool, error) {
	subjEnc, _, err := s.encoder.EncodeTerm(quad.Subject)
	if err != nil {
		return false, err
	}
	predEnc, _, err := s.encoder.EncodeTerm(quad.Predicate)
	if err != nil {
		return false, err
	}
	objEnc, _, err := s.encoder.EncodeTerm(quad.Object)
	if err != nil {
		return false, err
	}
	graphEnc, _, err := s.encoder.EncodeTerm(quad.Graph)
	if err != nil {
		return false, err
	}

	_, err = txn.Get(TableSPOG, EncodeQuadKey(subjEnc, predEnc, objEnc, graphEnc))
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the exact number of quads in the store, default and named
// graphs combined.
func (s *Store) Count() (int64, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	it, err := txn.Scan(TableSPOG, nil, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var count int64
	for it.Next() {
		count++
	}
	return count, nil
}

// QuadIterator iterates over quads matching a pattern.
type QuadIterator interface {
	Next() bool
	Quad() (*rdf.Quad, error)
	Close() error
}

// QuadsForPattern executes pattern against the dataset, selecting and
// scanning the best-matching index (spec.md §4).
func (s *Store) QuadsForPattern(pattern *Pattern) (QuadIterator, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return nil, err
	}

	plan := selectIndex(pattern)
	prefix, err := buildScanPrefix(s.encoder, pattern, plan)
	if err != nil {
		_ = txn.Rollback()
		return nil, err
	}

	it, err := txn.Scan(plan.table, prefix, nil)
	if err != nil {
		_ = txn.Rollback()
		return nil, err
	}

	return &quadIterator{store: s, txn: txn, it: it, plan: plan}, nil
}

// QuadsForPatternInTxn is QuadsForPattern but reuses an existing
// transaction instead of opening (and later closing) its own, for use by
// evaluator operators that hold a query-wide snapshot.
func (s *Store) QuadsForPatternInTxn(txn Transaction, pattern *Pattern) (QuadIterator, error) {
	plan := selectIndex(pattern)
	prefix, err := buildScanPrefix(s.encoder, pattern, plan)
	if err != nil {
		return nil, err
	}
	it, err := txn.Scan(plan.table, prefix, nil)
	if err != nil {
		return nil, err
	}
	return &quadIterator{store: s, txn: txn, it: it, plan: plan, borrowedTxn: true}, nil
}

type quadIterator struct {
	store       *Store
	txn         Transaction
	it          Iterator
	plan        indexPlan
	borrowedTxn bool
	closed      bool
}

func (qi *quadIterator) Next() bool {
	if qi.closed {
		return false
	}
	return qi.it.Next()
}

func (qi *quadIterator) Quad() (*rdf.Quad, error) {
	if qi.closed {
		return nil, fmt.Errorf("iterator closed")
	}
	key := qi.it.Key()
	if key == nil {
		return nil, fmt.Errorf("no current key")
	}
	if len(key) < len(qi.plan.keyOrder)*EncodedTermSize {
		return nil, NewCorruptionError(fmt.Errorf("short index key: %d bytes", len(key)))
	}

	terms := make([]EncodedTerm, len(qi.plan.keyOrder))
	for i := range qi.plan.keyOrder {
		offset := i * EncodedTermSize
		copy(terms[i][:], key[offset:offset+EncodedTermSize])
	}

	positions := make([]EncodedTerm, 4)
	for i, idx := range qi.plan.keyOrder {
		positions[idx] = terms[i]
	}

	subject, err := qi.store.decodeTerm(qi.txn, positions[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode subject: %w", err)
	}
	predicate, err := qi.store.decodeTerm(qi.txn, positions[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode predicate: %w", err)
	}
	object, err := qi.store.decodeTerm(qi.txn, positions[2])
	if err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}

	var graph rdf.Term
	if len(qi.plan.keyOrder) > 3 {
		graph, err = qi.store.decodeTerm(qi.txn, positions[3])
		if err != nil {
			return nil, fmt.Errorf("failed to decode graph: %w", err)
		}
	} else {
		graph = rdf.NewDefaultGraph()
	}

	return rdf.NewQuad(subject, predicate, object, graph), nil
}

func (qi *quadIterator) Close() error {
	if qi.closed {
		return nil
	}
	qi.closed = true
	_ = qi.it.Close()
	if qi.borrowedTxn {
		return nil
	}
	return qi.txn.Rollback()
}

// decodeTerm resolves an encoded term back to an rdf.Term, looking up the
// dictionary within txn when the encoding requires it.
func (s *Store) decodeTerm(txn Transaction, encoded EncodedTerm) (rdf.Term, error) {
	termType := encoded.Type()

	if termType == rdf.TermTypeQuotedTriple {
		return nil, fmt.Errorf("quoted triple decoding requires structured key reconstruction, not yet supported by decodeTerm")
	}

	var stringValue *string
	switch termType {
	case rdf.TermTypeNamedNode, rdf.TermTypeBlankNode,
		rdf.TermTypeStringLiteral, rdf.TermTypeLangStringLiteral, rdf.TermTypeTypedLiteral:
		str, err := txn.Get(TableID2Str, encoded.HashKey())
		if err == nil {
			sv := string(str)
			stringValue = &sv
		} else if err != ErrNotFound {
			return nil, err
		}
	}

	return s.decoder.DecodeTerm(encoded, stringValue)
}

// NamedGraphs lists every graph name currently registered, whether or not
// it presently contains quads (spec.md §3: a graph can exist empty).
func (s *Store) NamedGraphs() ([]rdf.Term, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	it, err := txn.Scan(TableGraphs, nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var graphs []rdf.Term
	for it.Next() {
		var enc EncodedTerm
		copy(enc[1:], it.Key())
		enc[0] = byte(rdf.TermTypeNamedNode)
		term, err := s.decodeTerm(txn, enc)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, term)
	}
	return graphs, nil
}

// AddGraph registers graph in the graph registry without inserting any
// quads, so SPARQL Update's CREATE GRAPH can make an empty graph visible
// to GRAPH ?g enumeration.
func (s *Store) AddGraph(graph rdf.Term) error {
	return s.WithWriteTxn(func(txn Transaction) error {
		enc, str, err := s.encoder.EncodeTerm(graph)
		if err != nil {
			return err
		}
		if err := s.internString(txn, enc, str); err != nil {
			return err
		}
		return txn.Set(TableGraphs, enc.HashKey(), []byte{})
	})
}

// ClearGraph removes every quad in graph without removing the graph
// registration itself (SPARQL Update CLEAR GRAPH).
func (s *Store) ClearGraph(graph rdf.Term) error {
	return s.WithWriteTxn(func(txn Transaction) error {
		return s.clearGraphInTxn(txn, graph)
	})
}

func (s *Store) clearGraphInTxn(txn Transaction, graph rdf.Term) error {
	graphEnc, _, err := s.encoder.EncodeTerm(graph)
	if err != nil {
		return err
	}
	it, err := txn.Scan(TableGSPO, graphEnc[:], nil)
	if err != nil {
		return err
	}
	var toRemove [][]EncodedTerm
	for it.Next() {
		key := it.Key()
		if len(key) < 4*EncodedTermSize {
			continue
		}
		var g, sub, pred, obj EncodedTerm
		copy(g[:], key[0:EncodedTermSize])
		copy(sub[:], key[EncodedTermSize:2*EncodedTermSize])
		copy(pred[:], key[2*EncodedTermSize:3*EncodedTermSize])
		copy(obj[:], key[3*EncodedTermSize:4*EncodedTermSize])
		toRemove = append(toRemove, []EncodedTerm{sub, pred, obj, g})
	}
	it.Close()

	for _, enc := range toRemove {
		sub, pred, obj, g := enc[0], enc[1], enc[2], enc[3]
		if err := txn.Delete(TableSPOG, EncodeQuadKey(sub, pred, obj, g)); err != nil {
			return err
		}
		if err := txn.Delete(TablePOSG, EncodeQuadKey(pred, obj, sub, g)); err != nil {
			return err
		}
		if err := txn.Delete(TableOSPG, EncodeQuadKey(obj, sub, pred, g)); err != nil {
			return err
		}
		if err := txn.Delete(TableGSPO, EncodeQuadKey(g, sub, pred, obj)); err != nil {
			return err
		}
		if err := txn.Delete(TableGPOS, EncodeQuadKey(g, pred, obj, sub)); err != nil {
			return err
		}
		if err := txn.Delete(TableGOSP, EncodeQuadKey(g, obj, sub, pred)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveGraph clears graph's quads and removes its registry entry (SPARQL
// Update DROP GRAPH).
func (s *Store) RemoveGraph(graph rdf.Term) error {
	return s.WithWriteTxn(func(txn Transaction) error {
		if err := s.clearGraphInTxn(txn, graph); err != nil {
			return err
		}
		graphEnc, _, err := s.encoder.EncodeTerm(graph)
		if err != nil {
			return err
		}
		return txn.Delete(TableGraphs, graphEnc.HashKey())
	})
}

// ClearDefaultGraph removes every quad in the default graph.
func (s *Store) ClearDefaultGraph() error {
	return s.WithWriteTxn(func(txn Transaction) error {
		it, err := txn.Scan(TableSPO, nil, nil)
		if err != nil {
			return err
		}
		var toRemove [][3]EncodedTerm
		for it.Next() {
			key := it.Key()
			if len(key) < 3*EncodedTermSize {
				continue
			}
			var sub, pred, obj EncodedTerm
			copy(sub[:], key[0:EncodedTermSize])
			copy(pred[:], key[EncodedTermSize:2*EncodedTermSize])
			copy(obj[:], key[2*EncodedTermSize:3*EncodedTermSize])
			toRemove = append(toRemove, [3]EncodedTerm{sub, pred, obj})
		}
		it.Close()

		defGraph, _, err := s.encoder.EncodeTerm(rdf.NewDefaultGraph())
		if err != nil {
			return err
		}
		for _, t := range toRemove {
			sub, pred, obj := t[0], t[1], t[2]
			if err := txn.Delete(TableSPO, EncodeQuadKey(sub, pred, obj)); err != nil {
				return err
			}
			if err := txn.Delete(TablePOS, EncodeQuadKey(pred, obj, sub)); err != nil {
				return err
			}
			if err := txn.Delete(TableOSP, EncodeQuadKey(obj, sub, pred)); err != nil {
				return err
			}
			if err := txn.Delete(TableSPOG, EncodeQuadKey(sub, pred, obj, defGraph)); err != nil {
				return err
			}
			if err := txn.Delete(TablePOSG, EncodeQuadKey(pred, obj, sub, defGraph)); err != nil {
				return err
			}
			if err := txn.Delete(TableOSPG, EncodeQuadKey(obj, sub, pred, defGraph)); err != nil {
				return err
			}
			if err := txn.Delete(TableGSPO, EncodeQuadKey(defGraph, sub, pred, obj)); err != nil {
				return err
			}
			if err := txn.Delete(TableGPOS, EncodeQuadKey(defGraph, pred, obj, sub)); err != nil {
				return err
			}
			if err := txn.Delete(TableGOSP, EncodeQuadKey(defGraph, obj, sub, pred)); err != nil {
				return err
			}
		}
		return nil
	})
}
