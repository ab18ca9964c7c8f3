package store

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func res(body string) *Resource {
	return &Resource{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"image/png"}},
		Body:   []byte(body),
	}
}

// checkInvariants walks the linked list and verifies it against the lookup
// map and the running size total.
func checkInvariants(t *testing.T, s *Store) {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	seen := make(map[string]bool)
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*entry)
		require.False(t, seen[ent.key], "key %q appears twice in list", ent.key)
		seen[ent.key] = true
		mapped, ok := s.elems[ent.key]
		require.True(t, ok, "list key %q missing from map", ent.key)
		require.Same(t, elem, mapped, "map element for %q is not the list node", ent.key)
		total += ent.size
	}
	require.Equal(t, len(s.elems), len(seen), "map and list membership differ")
	require.Equal(t, s.curBytes, total, "running size out of sync with entries")
	require.LessOrEqual(t, s.curBytes, s.maxBytes, "size exceeds budget")
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	s := New(1024)

	r := res("payload")
	require.True(t, s.Set("a", r, r.Size()))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, r.Body, got.Body)
	assert.Equal(t, r.Status, got.Status)
	assert.Equal(t, "image/png", got.Header.Get("Content-Type"))

	// Mutating the returned copy must not affect the stored entry.
	got.Body[0] = 'X'
	got.Header.Set("Content-Type", "text/html")

	again, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), again.Body)
	assert.Equal(t, "image/png", again.Header.Get("Content-Type"))

	// The original the caller passed in is also independent of the store.
	r.Body[0] = 'Y'
	third, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), third.Body)

	checkInvariants(t, s)
}

func TestStore_GetMiss(t *testing.T) {
	s := New(100)
	got, ok := s.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestStore_LRUOrdering(t *testing.T) {
	// Budget for exactly two 10-byte entries.
	s := New(20)

	require.True(t, s.Set("a", res("aaaaaaaaaa"), 10))
	require.True(t, s.Set("b", res("bbbbbbbbbb"), 10))
	require.True(t, s.Set("c", res("cccccccccc"), 10)) // evicts a

	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.True(t, s.Contains("c"))

	// Touch b so c becomes least recently used.
	_, ok := s.Get("b")
	require.True(t, ok)

	require.True(t, s.Set("d", res("dddddddddd"), 10)) // evicts c, not b

	assert.True(t, s.Contains("b"), "recently touched entry must survive")
	assert.False(t, s.Contains("c"), "least-recently-used entry must be evicted")
	assert.True(t, s.Contains("d"))
	assert.Equal(t, int64(2), s.Evictions())

	checkInvariants(t, s)
}

func TestStore_OversizedRejected(t *testing.T) {
	s := New(10)
	require.True(t, s.Set("small", res("ok"), 2))

	before := s.SizeBytes()
	assert.False(t, s.Set("huge", res("way too big"), 11))

	assert.Equal(t, before, s.SizeBytes(), "rejected set must leave the store unchanged")
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Contains("huge"))
	assert.True(t, s.Contains("small"), "existing entries must survive a rejected set")
	checkInvariants(t, s)
}

func TestStore_UpdateExistingKey(t *testing.T) {
	s := New(100)
	require.True(t, s.Set("k", res("old"), 3))
	_, _ = s.Get("k")
	_, _ = s.Get("k")
	assert.Equal(t, int64(2), s.AccessCount("k"))

	require.True(t, s.Set("k", res("newer"), 5))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int64(5), s.SizeBytes(), "old size must be released before the new one is added")
	assert.Equal(t, int64(1), s.AccessCount("k"), "update resets the access counter")

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("newer"), got.Body)
	checkInvariants(t, s)
}

func TestStore_UpdateGrowthEvicts(t *testing.T) {
	s := New(20)
	require.True(t, s.Set("a", res("aaaaaaaaaa"), 10))
	require.True(t, s.Set("b", res("bbbbb"), 5))

	// Growing b to 15 forces a out.
	require.True(t, s.Set("b", res("bbbbbbbbbbbbbbb"), 15))

	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	checkInvariants(t, s)
}

func TestStore_EvictOne(t *testing.T) {
	s := New(100)
	require.True(t, s.Set("first", res("1"), 1))
	require.True(t, s.Set("second", res("2"), 1))

	key, ok := s.EvictOne()
	require.True(t, ok)
	assert.Equal(t, "first", key, "EvictOne removes the least-recently-used entry")
	assert.Equal(t, 1, s.Len())

	key, ok = s.EvictOne()
	require.True(t, ok)
	assert.Equal(t, "second", key)

	_, ok = s.EvictOne()
	assert.False(t, ok, "empty store has nothing to evict")
	checkInvariants(t, s)
}

func TestStore_Clear(t *testing.T) {
	s := New(100)
	for i := 0; i < 5; i++ {
		require.True(t, s.Set(fmt.Sprintf("k%d", i), res("x"), 1))
	}
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.SizeBytes())
	_, ok := s.Get("k0")
	assert.False(t, ok)
	checkInvariants(t, s)

	// The store stays usable after a clear.
	require.True(t, s.Set("fresh", res("y"), 1))
	assert.Equal(t, 1, s.Len())
}

func TestStore_KeysRecencyOrder(t *testing.T) {
	s := New(100)
	require.True(t, s.Set("a", res("1"), 1))
	require.True(t, s.Set("b", res("2"), 1))
	require.True(t, s.Set("c", res("3"), 1))
	_, _ = s.Get("a")

	assert.Equal(t, []string{"a", "c", "b"}, s.Keys())
}

func TestStore_InvariantsUnderMixedOperations(t *testing.T) {
	s := New(64)

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%d", i%17)
		switch i % 5 {
		case 0, 1:
			s.Set(key, res("some payload bytes"), int64(3+i%11))
		case 2:
			s.Get(key)
		case 3:
			s.EvictOne()
		case 4:
			s.Set(key, res("replacement"), int64(1+i%7))
		}
		checkInvariants(t, s)
	}
}

func TestStore_ZeroBudget(t *testing.T) {
	s := New(0)
	assert.False(t, s.Set("k", res("x"), 1))
	assert.Equal(t, 0, s.Len())
}
