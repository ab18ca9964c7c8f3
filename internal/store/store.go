// Package store implements the in-memory eviction store: a lookup map coupled
// with a doubly-linked list that yields O(1) get, insert, update, and LRU
// eviction under a strict byte budget.
package store

import (
	"container/list"
	"net/http"
	"sync"
	"time"
)

// DefaultMaxBytes is the default cache budget.
const DefaultMaxBytes = 150 * 1024 * 1024 // 150MB

// Resource is the cached copy of a fetched response. It is treated as an
// immutable snapshot: the store clones it on the way in and on the way out,
// so callers can consume or mutate what they receive without affecting the
// stored copy.
type Resource struct {
	// Status is the HTTP status code recorded at cache time.
	Status int
	// Header holds the response headers recorded at cache time.
	Header http.Header
	// Body is the full response body.
	Body []byte
}

// Clone returns a deep copy of the resource.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	return &Resource{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   body,
	}
}

// Size returns the approximate in-memory size of the resource in bytes.
// The body dominates; headers contribute their key/value lengths.
func (r *Resource) Size() int64 {
	size := int64(len(r.Body))
	for k, vs := range r.Header {
		size += int64(len(k))
		for _, v := range vs {
			size += int64(len(v))
		}
	}
	return size
}

// entry is a single cache entry. It lives in exactly one list element; the
// map holds a direct reference to that element so removal and reordering are
// constant-time pointer rewrites.
type entry struct {
	key         string
	res         *Resource
	size        int64
	accessCount int64
	storedAt    time.Time
}

// Store is a byte-budgeted LRU cache. The front of the list is the most
// recently used entry, the back the least recently used. Safe for concurrent
// use.
type Store struct {
	mu        sync.Mutex
	maxBytes  int64
	curBytes  int64
	elems     map[string]*list.Element
	order     *list.List
	evictions int64
}

// New creates a store with the given byte budget. A non-positive budget is
// treated as zero, which rejects every insert.
func New(maxBytes int64) *Store {
	if maxBytes < 0 {
		maxBytes = 0
	}
	return &Store{
		maxBytes: maxBytes,
		elems:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a clone of the cached resource for key. On a hit the entry
// moves to the most-recently-used position and its access counter is
// incremented.
func (s *Store) Get(key string) (*Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.elems[key]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(elem)
	ent := elem.Value.(*entry)
	ent.accessCount++
	return ent.res.Clone(), true
}

// Contains reports whether key is cached without touching its recency or
// access counter. Used by the prewarm filter.
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.elems[key]
	return ok
}

// Set stores a clone of res under key, accounting size bytes against the
// budget. If size exceeds the whole budget the store is left untouched and
// Set reports false. An existing key is updated in place: its old size is
// released, payload and size replaced, access counter reset, and the entry
// moved to the most-recently-used position. A new key evicts from the
// least-recently-used end until the insert fits.
func (s *Store) Set(key string, res *Resource, size int64) bool {
	if size > s.maxBytes || size < 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.elems[key]; ok {
		ent := elem.Value.(*entry)
		s.curBytes -= ent.size
		ent.res = res.Clone()
		ent.size = size
		ent.accessCount = 1
		ent.storedAt = time.Now()
		s.curBytes += size
		s.order.MoveToFront(elem)
		s.evictToFit(0)
		return true
	}

	s.evictToFit(size)
	elem := s.order.PushFront(&entry{
		key:      key,
		res:      res.Clone(),
		size:     size,
		storedAt: time.Now(),
	})
	s.elems[key] = elem
	s.curBytes += size
	return true
}

// evictToFit removes least-recently-used entries until incoming more bytes
// fit within the budget. Caller must hold the lock.
func (s *Store) evictToFit(incoming int64) {
	for s.curBytes+incoming > s.maxBytes {
		elem := s.order.Back()
		if elem == nil {
			return
		}
		s.removeElement(elem)
		s.evictions++
	}
}

// removeElement unlinks an element from both structures. Caller must hold
// the lock.
func (s *Store) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	s.order.Remove(elem)
	delete(s.elems, ent.key)
	s.curBytes -= ent.size
}

// EvictOne removes the least-recently-used entry and returns its key.
// Reports false when the store is empty.
func (s *Store) EvictOne() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem := s.order.Back()
	if elem == nil {
		return "", false
	}
	key := elem.Value.(*entry).key
	s.removeElement(elem)
	s.evictions++
	return key, true
}

// Clear empties the store and resets the running size to zero. The eviction
// counter is preserved; bulk clears are not evictions.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elems = make(map[string]*list.Element)
	s.order.Init()
	s.curBytes = 0
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.elems)
}

// SizeBytes returns the current total of all entry sizes.
func (s *Store) SizeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curBytes
}

// MaxBytes returns the configured byte budget.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Evictions returns the number of entries removed under budget pressure
// since the store was created.
func (s *Store) Evictions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// Keys returns all cached keys ordered from most to least recently used.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.elems))
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry).key)
	}
	return keys
}

// AccessCount returns the diagnostic access counter for key, or zero when
// the key is not cached. The counter never influences eviction order.
func (s *Store) AccessCount(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.elems[key]; ok {
		return elem.Value.(*entry).accessCount
	}
	return 0
}
