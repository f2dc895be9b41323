package index

import (
	"bytes"

	"github.com/google/btree"
)

// item is one document in a shard.
type item struct {
	orderKey []byte
	key      string
}

// lessFunc sorts by orderKey first, then by document key, so equal values
// always come out in key order whatever the direction.
func lessFunc(a, b item) bool {
	cmp := bytes.Compare(a.orderKey, b.orderKey)
	if cmp != 0 {
		return cmp < 0
	}
	return a.key < b.key
}

// shard is an ordered view of the indexed documents for one (field, direction).
// The empty field orders by key alone. It is guarded by the owning Index.
type shard struct {
	tree  *btree.BTreeG[item]
	byKey map[string][]byte
}

func newShard() *shard {
	return &shard{
		tree:  btree.NewG[item](32, lessFunc),
		byKey: make(map[string][]byte),
	}
}

func (s *shard) upsert(key string, orderKey []byte) {
	if old, ok := s.byKey[key]; ok {
		s.tree.Delete(item{orderKey: old, key: key})
	}
	s.tree.ReplaceOrInsert(item{orderKey: orderKey, key: key})
	s.byKey[key] = orderKey
}

func (s *shard) delete(key string) {
	if old, ok := s.byKey[key]; ok {
		s.tree.Delete(item{orderKey: old, key: key})
		delete(s.byKey, key)
	}
}

// ascend visits keys in order until fn returns false.
func (s *shard) ascend(fn func(key string) bool) {
	s.tree.Ascend(func(it item) bool {
		return fn(it.key)
	})
}

func (s *shard) len() int {
	return len(s.byKey)
}
