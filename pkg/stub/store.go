package stub

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/getmockd/netclient/pkg/logging"
)

// Store maps request keys to response stubs. It is safe for concurrent use;
// keys and stubs are copied on the way in and on the way out so callers never
// share mutable state with in-flight lookups.
type Store struct {
	mu      sync.RWMutex
	buckets map[uint64][]slot
	order   []string
	log     *slog.Logger
}

// slot owns its key; canon is computed once from the owned copy.
type slot struct {
	key   RequestKey
	canon string
	stub  ResponseStub
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		buckets: make(map[uint64][]slot),
		log:     logging.Nop(),
	}
}

// NewStoreWith creates a Store pre-populated with entries.
func NewStoreWith(entries ...Entry) *Store {
	s := NewStore()
	s.RegisterAll(entries)
	return s
}

// SetLogger sets the operational logger.
func (s *Store) SetLogger(log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log != nil {
		s.log = log
	} else {
		s.log = logging.Nop()
	}
}

// Register inserts stub under key, replacing any stub registered under an
// equal key.
func (s *Store) Register(key RequestKey, stub ResponseStub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.register(key, stub.Clone())
}

// RegisterAll inserts entries in order under a single lock. Later entries win
// over earlier entries with equal keys.
func (s *Store) RegisterAll(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.register(e.Key, e.Response.Clone())
	}
}

func (s *Store) register(key RequestKey, stub ResponseStub) {
	key = key.Clone()
	canon := key.Canonical()
	h := hashCanonical(canon)
	bucket := s.buckets[h]
	for i := range bucket {
		if bucket[i].canon == canon {
			bucket[i].key = key
			bucket[i].stub = stub
			s.log.Debug("stub replaced", "key", canon)
			return
		}
	}
	s.buckets[h] = append(bucket, slot{key: key, canon: canon, stub: stub})
	s.order = append(s.order, canon)
	s.log.Debug("stub registered", "key", canon, "status", stub.StatusCode)
}

// find returns the slot for a canonical key. Callers hold the lock.
func (s *Store) find(canon string) (*slot, bool) {
	bucket := s.buckets[hashCanonical(canon)]
	for i := range bucket {
		if bucket[i].canon == canon {
			return &bucket[i], true
		}
	}
	return nil, false
}

// Lookup returns a copy of the stub registered under a key equal to key.
func (s *Store) Lookup(key RequestKey) (ResponseStub, bool) {
	canon := key.Canonical()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl, ok := s.find(canon); ok {
		return sl.stub.Clone(), true
	}
	return ResponseStub{}, false
}

// Contains reports whether a stub is registered under key.
func (s *Store) Contains(key RequestKey) bool {
	_, ok := s.Lookup(key)
	return ok
}

// Delete removes the stub registered under key. Returns false if none was.
func (s *Store) Delete(key RequestKey) bool {
	canon := key.Canonical()
	s.mu.Lock()
	defer s.mu.Unlock()
	h := hashCanonical(canon)
	bucket := s.buckets[h]
	for i := range bucket {
		if bucket[i].canon != canon {
			continue
		}
		bucket = slices.Delete(bucket, i, i+1)
		if len(bucket) == 0 {
			delete(s.buckets, h)
		} else {
			s.buckets[h] = bucket
		}
		s.order = slices.DeleteFunc(s.order, func(c string) bool { return c == canon })
		return true
	}
	return false
}

// Keys returns copies of the registered keys in first-registration order.
func (s *Store) Keys() []RequestKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RequestKey, 0, len(s.order))
	for _, canon := range s.order {
		if sl, ok := s.find(canon); ok {
			out = append(out, sl.key.Clone())
		}
	}
	return out
}

// Entries returns a copy of every registered entry in first-registration order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.order))
	for _, canon := range s.order {
		if sl, ok := s.find(canon); ok {
			out = append(out, Entry{Key: sl.key.Clone(), Response: sl.stub.Clone()})
		}
	}
	return out
}

// Count returns the number of registered stubs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Clear removes every stub.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[uint64][]slot)
	s.order = nil
}

// LoadFile loads a definition file and registers its entries. The store is
// left untouched when loading fails.
func (s *Store) LoadFile(path string) (int, error) {
	entries, err := Load(path)
	if err != nil {
		return 0, err
	}
	s.RegisterAll(entries)
	return len(entries), nil
}

// LoadGlob loads every file matching pattern and registers the entries only
// if all files load successfully.
func (s *Store) LoadGlob(pattern string) (int, error) {
	entries, err := LoadGlob(pattern)
	if err != nil {
		return 0, err
	}
	s.RegisterAll(entries)
	return len(entries), nil
}
