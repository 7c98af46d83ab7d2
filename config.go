package trigraph

import (
	"time"

	"github.com/rdfkit/trigraph/internal/store"
)

// Config is the single configuration struct Open takes, covering every
// knob in the config table: storage.path, storage.bulk_buffer_bytes,
// query.default_memory_budget_bytes, query.sort_spill_dir, query.
// default_timeout, features.rdf12. Grounded on the teacher's
// constructor-injection style (NewBadgerStorage(path),
// NewTripleStore(storage, encoder, decoder)) generalized into one struct
// since no config/flag library appears anywhere in the pack for this
// domain (see DESIGN.md).
type Config struct {
	Storage  StorageConfig
	Query    QueryConfig
	Features FeatureConfig
}

// StorageConfig configures the Badger-backed Store.
type StorageConfig struct {
	// Path is the on-disk directory Badger persists to. Empty opens an
	// in-memory store (storage.path).
	Path string

	// BulkBufferBytes overrides BulkLoad's default sort-buffer size
	// (storage.bulk_buffer_bytes). Zero keeps the package default.
	BulkBufferBytes int64
}

// QueryConfig configures the query evaluator's resource limits.
type QueryConfig struct {
	// DefaultMemoryBudgetBytes bounds how much a blocking operator
	// (ORDER BY, GROUP BY) buffers before it would spill to
	// SortSpillDir (query.default_memory_budget_bytes). Zero means
	// unbounded — see DESIGN.md for why this implementation does not
	// yet act on the budget.
	DefaultMemoryBudgetBytes int64

	// SortSpillDir is where ORDER BY would stage overflow rows (query.
	// sort_spill_dir). Reserved; not yet consumed (see DESIGN.md).
	SortSpillDir string

	// DefaultTimeout bounds a Query/Update call when the caller's
	// context carries no deadline of its own (query.default_timeout).
	// Zero means no default timeout.
	DefaultTimeout time.Duration
}

// FeatureConfig gates optional syntax.
type FeatureConfig struct {
	// RDF12 enables `<< s p o >>` quoted-triple term syntax in the
	// parser (features.rdf12).
	RDF12 bool
}

// OpenStore opens just the storage layer per cfg.Storage, for callers
// that want the Store without the query/update pipeline DB wires around
// it (tests, bulk-load tooling).
func OpenStore(cfg Config) (*store.Store, error) {
	return store.OpenWithConfig(store.Config{
		Path:            cfg.Storage.Path,
		BulkBufferBytes: cfg.Storage.BulkBufferBytes,
	})
}
