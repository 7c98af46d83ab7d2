package store

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/rdfkit/trigraph/pkg/rdf"
)

// DefaultBulkBufferBytes is the sort buffer size for BulkLoad
// (storage.bulk_buffer_bytes, spec.md §8).
const DefaultBulkBufferBytes = 256 << 20

// estimatedQuadBytes approximates the on-disk footprint of a single quad
// across all nine indexes (each index key holds up to four encoded terms),
// used only to size BulkLoad's sort buffer.
const estimatedQuadBytes = 9 * 4 * EncodedTermSize

// BulkLoadOptions configures BulkLoad.
type BulkLoadOptions struct {
	// BufferBytes bounds how many quads are sorted and written together
	// before a batch commits. Zero means DefaultBulkBufferBytes.
	BufferBytes int64

	// AtomicFinish stages the load in a side, temporary store and only
	// replaces the live data once the whole source has been consumed
	// successfully, instead of writing directly into the live indexes
	// (spec.md §6: "or the loader offers an atomic finish option that
	// stages data in side files and swaps on success").
	AtomicFinish bool

	// AtomicFinishDir is the directory BulkLoad uses to stage the side
	// store when AtomicFinish is set. When empty, BulkLoad creates a
	// temporary directory for the side store and removes it afterwards.
	AtomicFinishDir string
}

// BulkLoad ingests every quad produced by src. It is non-transactional:
// on failure partial state may remain committed, and the caller is
// expected to Clear and retry (spec.md §6). Quads are buffered and sorted
// by their SPO key before each batch is written, to favor sequential
// writes into the LSM-tree over random insertion order.
func (s *Store) BulkLoad(src QuadIterator, opts BulkLoadOptions) (int64, error) {
	if opts.BufferBytes <= 0 {
		opts.BufferBytes = s.defaultBulkBufferBytes
	}
	if opts.BufferBytes <= 0 {
		opts.BufferBytes = DefaultBulkBufferBytes
	}

	if opts.AtomicFinish {
		return s.bulkLoadAtomic(src, opts)
	}
	return s.bulkLoadDirect(s, src, opts)
}

func (s *Store) bulkLoadDirect(dst *Store, src QuadIterator, opts BulkLoadOptions) (int64, error) {
	quadsPerBatch := int(opts.BufferBytes / estimatedQuadBytes)
	if quadsPerBatch < 1 {
		quadsPerBatch = 1
	}

	var total int64
	batch := make([]*rdf.Quad, 0, quadsPerBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		sortQuadsBySPKey(dst.encoder, batch)
		err := dst.WithWriteTxn(func(txn Transaction) error {
			for _, q := range batch {
				if err := dst.InsertInTxn(txn, q); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for src.Next() {
		q, err := src.Quad()
		if err != nil {
			return total, err
		}
		batch = append(batch, q)
		if len(batch) >= quadsPerBatch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// bulkLoadAtomic stages the full load in a temporary side store, then
// replays every quad from it into the live store in one pass, so a
// mid-load failure never leaves the live store partially loaded.
func (s *Store) bulkLoadAtomic(src QuadIterator, opts BulkLoadOptions) (int64, error) {
	stageDir := opts.AtomicFinishDir
	if stageDir == "" {
		var err error
		stageDir, err = os.MkdirTemp("", "trigraph-bulk-stage-*")
		if err != nil {
			return 0, NewIoError(fmt.Errorf("creating stage dir: %w", err))
		}
		defer os.RemoveAll(stageDir)
	}

	stage, err := Open(stageDir)
	if err != nil {
		return 0, err
	}
	defer stage.Close()

	count, err := s.bulkLoadDirect(stage, src, opts)
	if err != nil {
		return 0, fmt.Errorf("staging bulk load: %w", err)
	}

	// Swap: replay the staged store's quads into the live store. Both
	// default and named graphs are covered by scanning SPOG, the index
	// common to every quad regardless of graph.
	txn, err := stage.storage.Begin(false)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	it, err := txn.Scan(TableSPOG, nil, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var swapped int64
	err = s.WithWriteTxn(func(liveTxn Transaction) error {
		for it.Next() {
			key := it.Key()
			if len(key) < 4*EncodedTermSize {
				continue
			}
			var subjEnc, predEnc, objEnc, graphEnc EncodedTerm
			copy(subjEnc[:], key[0:EncodedTermSize])
			copy(predEnc[:], key[EncodedTermSize:2*EncodedTermSize])
			copy(objEnc[:], key[2*EncodedTermSize:3*EncodedTermSize])
			copy(graphEnc[:], key[3*EncodedTermSize:4*EncodedTermSize])

			subject, err := stage.decodeTerm(txn, subjEnc)
			if err != nil {
				return err
			}
			predicate, err := stage.decodeTerm(txn, predEnc)
			if err != nil {
				return err
			}
			object, err := stage.decodeTerm(txn, objEnc)
			if err != nil {
				return err
			}
			graph, err := stage.decodeTerm(txn, graphEnc)
			if err != nil {
				return err
			}

			if err := s.InsertInTxn(liveTxn, rdf.NewQuad(subject, predicate, object, graph)); err != nil {
				return err
			}
			swapped++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("swapping staged bulk load into live store: %w", err)
	}
	_ = count
	return swapped, nil
}

func sortQuadsBySPKey(encoder *TermEncoder, quads []*rdf.Quad) {
	type keyed struct {
		key  []byte
		quad *rdf.Quad
	}
	ks := make([]keyed, len(quads))
	for i, q := range quads {
		subjEnc, _, err := encoder.EncodeTerm(q.Subject)
		if err != nil {
			ks[i] = keyed{nil, q}
			continue
		}
		predEnc, _, _ := encoder.EncodeTerm(q.Predicate)
		objEnc, _, _ := encoder.EncodeTerm(q.Object)
		ks[i] = keyed{EncodeQuadKey(subjEnc, predEnc, objEnc), q}
	}
	sort.Slice(ks, func(i, j int) bool { return bytes.Compare(ks[i].key, ks[j].key) < 0 })
	for i, k := range ks {
		quads[i] = k.quad
	}
}
