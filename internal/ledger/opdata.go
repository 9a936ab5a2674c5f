package ledger

import (
	"bytes"

	"github.com/google/btree"
)

type opItem struct {
	key   []byte
	value []byte
}

func lessOpItem(a, b opItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// opDatastore is the read-only datastore of the operation being executed,
// kept ordered so key listings are deterministic.
type opDatastore struct {
	tree *btree.BTreeG[opItem]
}

func newOpDatastore(entries map[string][]byte) *opDatastore {
	ds := &opDatastore{tree: btree.NewG(2, lessOpItem)}
	for k, v := range entries {
		ds.tree.ReplaceOrInsert(opItem{key: []byte(k), value: v})
	}
	return ds
}

func (ds *opDatastore) keys() [][]byte {
	keys := make([][]byte, 0, ds.tree.Len())
	ds.tree.Ascend(func(item opItem) bool {
		keys = append(keys, item.key)
		return true
	})
	return keys
}

func (ds *opDatastore) get(key []byte) ([]byte, bool) {
	item, ok := ds.tree.Get(opItem{key: key})
	return item.value, ok
}
