package ledger

import (
	"sync"

	dbm "github.com/cometbft/cometbft-db"
)

// store is a thread-safe view of a key/value database.
type store struct {
	mu sync.RWMutex
	db dbm.DB
}

func newStore(db dbm.DB) *store {
	return &store{db: db}
}

func (s *store) get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Get(key)
}

func (s *store) has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Has(key)
}

func (s *store) set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Set(key, value)
}

func (s *store) delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Delete(key)
}

// keysWithPrefix returns, in ascending order, every key of the scope
// starting with prefix. Returned keys do not include the scope.
func (s *store) keysWithPrefix(scope, prefix []byte) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := append(append([]byte(nil), scope...), prefix...)
	it, err := s.db.Iterator(start, prefixEnd(start))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var keys [][]byte
	for ; it.Valid(); it.Next() {
		key := it.Key()
		keys = append(keys, append([]byte(nil), key[len(scope):]...))
	}
	return keys, it.Error()
}

func (s *store) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// prefixEnd returns the exclusive upper bound of the keys starting with
// prefix, or nil when there is none.
func prefixEnd(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
