package store

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStorage implements Storage using BadgerDB. writerMu serializes
// writable transactions: the keyspace has a single writer at a time, with
// unlimited concurrent snapshot readers (spec.md §5).
type BadgerStorage struct {
	db       *badger.DB
	writerMu sync.Mutex
}

// NewBadgerStorage opens (or creates) a BadgerDB-backed store at path. An
// empty path opens an in-memory database, so the in-memory configuration
// goes through the same Badger machinery as the on-disk one rather than a
// hand-rolled map (spec.md §9, open question 1).
func NewBadgerStorage(path string) (*BadgerStorage, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &BadgerStorage{db: db}, nil
}

// Begin starts a new transaction. A writable Begin blocks until any
// outstanding writer transaction commits or aborts.
func (s *BadgerStorage) Begin(writable bool) (Transaction, error) {
	if writable {
		s.writerMu.Lock()
	}
	txn := s.db.NewTransaction(writable)
	return &BadgerTransaction{
		storage:  s,
		txn:      txn,
		writable: writable,
	}, nil
}

// TryBegin starts a writable transaction without blocking, returning
// ErrWriterBusy if one is already outstanding. Read-only transactions never
// contend, so TryBegin(false) behaves exactly like Begin(false).
func (s *BadgerStorage) TryBegin(writable bool) (Transaction, error) {
	if !writable {
		return s.Begin(false)
	}
	if !s.writerMu.TryLock() {
		return nil, ErrWriterBusy
	}
	txn := s.db.NewTransaction(true)
	return &BadgerTransaction{storage: s, txn: txn, writable: true}, nil
}

// Close closes the storage.
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// Sync flushes writes to disk.
func (s *BadgerStorage) Sync() error {
	return s.db.Sync()
}

// Backup writes a point-in-time checkpoint of every table to path, using
// Badger's own streaming backup so the checkpoint is consistent with a
// single MVCC version (spec.md §6, bulk loading and maintenance).
func (s *BadgerStorage) Backup(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return NewIoError(err)
	}
	defer f.Close()

	if _, err := s.db.Backup(f, 0); err != nil {
		return NewIoError(fmt.Errorf("backup: %w", err))
	}
	return nil
}

// BadgerTransaction implements Transaction using BadgerDB.
type BadgerTransaction struct {
	storage  *BadgerStorage
	txn      *badger.Txn
	writable bool
	done     bool
}

// Get retrieves a value by key.
func (t *BadgerTransaction) Get(table Table, key []byte) ([]byte, error) {
	prefixedKey := PrefixKey(table, key)
	item, err := t.txn.Get(prefixedKey)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, NewIoError(err)
	}

	var value []byte
	err = item.Value(func(val []byte) error {
		value = append([]byte{}, val...)
		return nil
	})
	if err != nil {
		return nil, NewIoError(err)
	}

	return value, nil
}

// Set stores a key-value pair.
func (t *BadgerTransaction) Set(table Table, key, value []byte) error {
	if !t.writable {
		return ErrTransactionRO
	}
	return t.txn.Set(PrefixKey(table, key), value)
}

// Delete removes a key.
func (t *BadgerTransaction) Delete(table Table, key []byte) error {
	if !t.writable {
		return ErrTransactionRO
	}
	return t.txn.Delete(PrefixKey(table, key))
}

// Scan iterates over a key range [start, end) within table.
func (t *BadgerTransaction) Scan(table Table, start, end []byte) (Iterator, error) {
	opts := badger.DefaultIteratorOptions

	tablePrefix := TablePrefix(table)

	var seekKey, scanPrefix []byte
	if start != nil {
		seekKey = PrefixKey(table, start)
		scanPrefix = seekKey
	} else {
		seekKey = tablePrefix
		scanPrefix = tablePrefix
	}

	opts.Prefix = scanPrefix
	it := t.txn.NewIterator(opts)

	var endKey []byte
	if end != nil {
		endKey = PrefixKey(table, end)
	}

	return &BadgerIterator{
		it:      it,
		prefix:  tablePrefix,
		endKey:  endKey,
		seekKey: seekKey,
	}, nil
}

// Commit commits the transaction, releasing the writer lock if held.
func (t *BadgerTransaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.txn.Commit()
	if t.writable {
		t.storage.writerMu.Unlock()
	}
	if err != nil {
		if err == badger.ErrConflict {
			return NewConflictError(err)
		}
		return NewIoError(err)
	}
	return nil
}

// Rollback discards the transaction, releasing the writer lock if held.
func (t *BadgerTransaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.txn.Discard()
	if t.writable {
		t.storage.writerMu.Unlock()
	}
	return nil
}

// BadgerIterator implements Iterator using BadgerDB.
type BadgerIterator struct {
	it       *badger.Iterator
	prefix   []byte
	endKey   []byte
	seekKey  []byte
	started  bool
	hasValue bool
}

// Next advances to the next item.
func (i *BadgerIterator) Next() bool {
	if !i.started {
		i.it.Seek(i.seekKey)
		i.started = true
	} else {
		i.it.Next()
	}

	if !i.it.Valid() {
		i.hasValue = false
		return false
	}

	if i.endKey != nil && bytes.Compare(i.it.Item().Key(), i.endKey) >= 0 {
		i.hasValue = false
		return false
	}

	i.hasValue = true
	return true
}

// Key returns the current key, with the table prefix stripped.
func (i *BadgerIterator) Key() []byte {
	if !i.hasValue {
		return nil
	}
	key := i.it.Item().Key()
	if len(key) > len(i.prefix) {
		return key[len(i.prefix):]
	}
	return nil
}

// Value returns the current value.
func (i *BadgerIterator) Value() ([]byte, error) {
	if !i.hasValue {
		return nil, ErrNotFound
	}
	var value []byte
	err := i.it.Item().Value(func(val []byte) error {
		value = append([]byte{}, val...)
		return nil
	})
	if err != nil {
		return nil, NewIoError(err)
	}
	return value, nil
}

// Close closes the iterator.
func (i *BadgerIterator) Close() error {
	i.it.Close()
	return nil
}
