package store

// Storage is the interface for the underlying ordered key-value store.
// BadgerStorage (badger.go) is the sole implementation; the interface
// exists so the transaction/index logic in store.go never depends on
// Badger types directly.
type Storage interface {
	// Begin starts a new transaction. A writable Begin blocks until any
	// outstanding writer transaction commits or aborts.
	Begin(writable bool) (Transaction, error)

	// TryBegin starts a writable transaction without blocking, returning
	// ErrWriterBusy if one is already outstanding.
	TryBegin(writable bool) (Transaction, error)

	// Close closes the storage.
	Close() error

	// Sync flushes writes to durable storage.
	Sync() error

	// Backup writes a point-in-time checkpoint of every table to path.
	Backup(path string) error
}

// Transaction represents a snapshot-isolated read, or an exclusive
// read-write, transaction.
type Transaction interface {
	Get(table Table, key []byte) ([]byte, error)
	Set(table Table, key, value []byte) error
	Delete(table Table, key []byte) error

	// Scan iterates over [start, end) in table, in key order. end == nil
	// scans to the last key with the start prefix.
	Scan(table Table, start, end []byte) (Iterator, error)

	Commit() error
	Rollback() error
}

// Iterator iterates over key-value pairs in ascending key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Close() error
}

// Table is a logical table (column family) in the keyspace.
type Table byte

const (
	// String dictionary: hash -> string.
	TableID2Str Table = iota

	// Default-graph triple indexes (§3: "the default graph is the common
	// case", three permutations).
	TableSPO
	TablePOS
	TableOSP

	// Named-graph quad indexes (six permutations).
	TableSPOG
	TablePOSG
	TableOSPG
	TableGSPO
	TableGPOS
	TableGOSP

	// Named-graph registry: graph id -> sentinel (a graph exists
	// independently of whether it currently contains quads).
	TableGraphs

	TableCount
)

func (t Table) String() string {
	switch t {
	case TableID2Str:
		return "id2str"
	case TableSPO:
		return "spo"
	case TablePOS:
		return "pos"
	case TableOSP:
		return "osp"
	case TableSPOG:
		return "spog"
	case TablePOSG:
		return "posg"
	case TableOSPG:
		return "ospg"
	case TableGSPO:
		return "gspo"
	case TableGPOS:
		return "gpos"
	case TableGOSP:
		return "gosp"
	case TableGraphs:
		return "graphs"
	default:
		return "unknown"
	}
}

// PrefixKey namespaces key within table by prepending a one-byte prefix,
// so all nine quad indexes plus the dictionary plus the graph registry can
// share one underlying Badger keyspace.
func PrefixKey(table Table, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(table)
	copy(out[1:], key)
	return out
}

// TablePrefix returns the bare one-byte prefix identifying table, used to
// bound a full-table scan.
func TablePrefix(table Table) []byte {
	return []byte{byte(table)}
}
