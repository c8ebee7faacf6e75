package store

import (
	"bytes"

	"github.com/google/btree"
)

// ascend returns all items of the tree within [start, end) in ascending
// order. Deleted items are included.
func ascend(bt *btree.BTree, start, end []byte) []item {
	var items []item
	collect := func(i btree.Item) bool {
		items = append(items, i.(item))
		return true
	}
	switch {
	case start == nil && end == nil:
		bt.Ascend(collect)
	case start == nil:
		bt.AscendLessThan(item{key: end}, collect)
	case end == nil:
		bt.AscendGreaterOrEqual(item{key: start}, collect)
	default:
		bt.AscendRange(item{key: start}, item{key: end}, collect)
	}
	return items
}

func values(items []item) []Model {
	res := make([]Model, 0, len(items))
	for _, it := range items {
		if !it.deleted {
			res = append(res, Model{Key: it.key, Value: it.value})
		}
	}
	return res
}

// merge combines staged items with the parent iterator, closing it. Staged
// items take precedence over parent values of the same key.
func merge(staged []item, parent Iterator) []Model {
	defer parent.Close()

	var res []Model
	emit := func(it item) {
		if !it.deleted {
			res = append(res, Model{Key: it.key, Value: it.value})
		}
	}
	for len(staged) > 0 || parent.Valid() {
		if !parent.Valid() {
			emit(staged[0])
			staged = staged[1:]
			continue
		}
		if len(staged) == 0 {
			res = append(res, Model{Key: parent.Key(), Value: parent.Value()})
			parent.Next()
			continue
		}
		switch c := bytes.Compare(staged[0].key, parent.Key()); {
		case c == 0:
			emit(staged[0])
			staged = staged[1:]
			parent.Next()
		case c < 0:
			emit(staged[0])
			staged = staged[1:]
		default:
			res = append(res, Model{Key: parent.Key(), Value: parent.Value()})
			parent.Next()
		}
	}
	return res
}

// sliceIterator iterates over preloaded models.
type sliceIterator struct {
	data []Model
	idx  int
}

var _ Iterator = (*sliceIterator)(nil)

func newSliceIterator(data []Model) *sliceIterator {
	return &sliceIterator{data: data}
}

func (s *sliceIterator) Valid() bool {
	return s.idx < len(s.data)
}

func (s *sliceIterator) Next() {
	s.assertValid()
	s.idx++
}

func (s *sliceIterator) assertValid() {
	if s.idx >= len(s.data) {
		panic("passed end of iterator")
	}
}

func (s *sliceIterator) Key() []byte {
	s.assertValid()
	return s.data[s.idx].Key
}

func (s *sliceIterator) Value() []byte {
	s.assertValid()
	return s.data[s.idx].Value
}

func (s *sliceIterator) Close() {
	s.data = nil
}
