package store

import (
	"bytes"

	"github.com/google/btree"
	"github.com/iov-one/idgov/errors"
)

// degree of every btree node.
const degree = 2

// item is a btree entry. In a cache wrap a deleted item hides the value the
// parent holds for the same key.
type item struct {
	key     []byte
	value   []byte
	deleted bool
}

var _ btree.Item = item{}

func (i item) Less(other btree.Item) bool {
	return bytes.Compare(i.key, other.(item).key) < 0
}

// MemStore returns an empty store kept in memory.
func MemStore() CacheableKVStore {
	return newTreeStore(nil)
}

// treeStore holds values in a btree. A store with a parent is a cache wrap
// and holds only the changes staged on top of its parent.
type treeStore struct {
	tree   *btree.BTree
	parent KVStore
}

var _ KVCacheWrap = (*treeStore)(nil)

func newTreeStore(parent KVStore) *treeStore {
	return &treeStore{tree: btree.New(degree), parent: parent}
}

// CacheWrap stages changes on top of this store.
func (s *treeStore) CacheWrap() KVCacheWrap {
	return newTreeStore(s)
}

func (s *treeStore) Get(key []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.ErrInput.New("nil key")
	}
	if found := s.tree.Get(item{key: key}); found != nil {
		it := found.(item)
		if it.deleted {
			return nil, nil
		}
		return it.value, nil
	}
	if s.parent == nil {
		return nil, nil
	}
	return s.parent.Get(key)
}

func (s *treeStore) Has(key []byte) (bool, error) {
	value, err := s.Get(key)
	return value != nil, err
}

func (s *treeStore) Set(key, value []byte) error {
	if key == nil || value == nil {
		return errors.ErrInput.New("nil key or value")
	}
	s.tree.ReplaceOrInsert(item{key: key, value: value})
	return nil
}

func (s *treeStore) Delete(key []byte) error {
	if key == nil {
		return errors.ErrInput.New("nil key")
	}
	if s.parent == nil {
		s.tree.Delete(item{key: key})
		return nil
	}
	s.tree.ReplaceOrInsert(item{key: key, deleted: true})
	return nil
}

func (s *treeStore) Iterator(start, end []byte) (Iterator, error) {
	staged := ascend(s.tree, start, end)
	if s.parent == nil {
		return newSliceIterator(values(staged)), nil
	}
	it, err := s.parent.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return newSliceIterator(merge(staged, it)), nil
}

// Write applies all staged changes to the parent store in key order and
// empties the cache wrap.
func (s *treeStore) Write() error {
	if s.parent == nil {
		return errors.ErrState.New("not a cache wrap")
	}
	var err error
	s.tree.Ascend(func(i btree.Item) bool {
		it := i.(item)
		if it.deleted {
			err = s.parent.Delete(it.key)
		} else {
			err = s.parent.Set(it.key, it.value)
		}
		return err == nil
	})
	s.Discard()
	return err
}

func (s *treeStore) Discard() {
	s.tree = btree.New(degree)
}
