/*
Package store provides the ordered key value store backing the in-memory
ledger.

Writes can be staged in a cache wrap on top of a store. A cache wrap is
either written to its parent, making all staged changes visible there at
once, or discarded, leaving the parent untouched. Transactions run inside a
cache wrap so that a failed execution leaves no trace.
*/
package store

// ReadOnlyKVStore is a simple interface to query data.
type ReadOnlyKVStore interface {
	// Get returns nil iff key doesn't exist.
	Get(key []byte) ([]byte, error)

	// Has checks if a key exists.
	Has(key []byte) (bool, error)

	// Iterator over a domain of keys in ascending order. End is exclusive,
	// nil start or end leave that side of the domain open.
	Iterator(start, end []byte) (Iterator, error)
}

// SetDeleter is a minimal interface for writing.
type SetDeleter interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

// KVStore is a simple interface to get/set data.
type KVStore interface {
	ReadOnlyKVStore
	SetDeleter
}

// CacheableKVStore is a KVStore that supports CacheWrapping.
type CacheableKVStore interface {
	KVStore
	CacheWrap() KVCacheWrap
}

// KVCacheWrap allows us to maintain a scratch-pad of uncommitted data that we
// can view with all queries.
//
// At the end, the scratch-pad can be written or discarded.
type KVCacheWrap interface {
	// CacheableKVStore allows us to use this Cache recursively
	CacheableKVStore

	// Write syncs with the underlying store.
	Write() error

	// Discard drops all staged changes.
	Discard()
}

// Iterator allows us to access a set of items within a range of keys.
//
//   Usage:
//
//   it, err := kv.Iterator(start, end)
//   ...
//   defer it.Close()
//
//   for ; it.Valid(); it.Next() {
//     k, v := it.Key(), it.Value()
//     // ...
//   }
type Iterator interface {
	// Valid returns whether the current position is valid. Once invalid,
	// an Iterator is forever invalid.
	Valid() bool

	// Next moves the iterator to the next key. If Valid returns false,
	// this method will panic.
	Next()

	// Key returns the key of the cursor. If Valid returns false, this
	// method will panic.
	Key() []byte

	// Value returns the value of the cursor. If Valid returns false, this
	// method will panic.
	Value() []byte

	// Close releases the Iterator.
	Close()
}

// Model groups together key and value to return.
type Model struct {
	Key   []byte
	Value []byte
}
