package slaballoc

import (
	"testing"

	"github.com/fmstephe/slabmalloc/internal/bulk"
	"github.com/stretchr/testify/require"
)

// A supplier whose Alloc always fails, simulating memory exhaustion.
type failingSupplier struct{}

func (failingSupplier) Alloc(size uint64) uintptr {
	return 0
}

func (failingSupplier) Free(ptr uintptr, size uint64) {
}

// A supplier which counts the regions flowing through it.
type trackingSupplier struct {
	delegate bulk.Supplier
	allocs   int
	frees    int
}

func (ts *trackingSupplier) Alloc(size uint64) uintptr {
	ts.allocs++
	return ts.delegate.Alloc(size)
}

func (ts *trackingSupplier) Free(ptr uintptr, size uint64) {
	ts.frees++
	ts.delegate.Free(ptr, size)
}

// The free region of the stack, [active, capacity), must hold distinct
// in-range indices. The checked-out prefix retains stale values under
// out-of-order frees, so only the free region is checked.
func checkFreeStack(t *testing.T, s *slab) {
	t.Helper()
	seen := make(map[uint16]bool)
	for _, idx := range s.freeStack()[s.active:] {
		require.Less(t, uint32(idx), s.capacity)
		require.False(t, seen[idx], "index %d appears twice in free stack", idx)
		seen[idx] = true
	}
}

// Every slab must sit in the list matching its occupancy.
func checkListMembership(t *testing.T, c *Cache) {
	t.Helper()
	for s := c.full.head; s != nil; s = slabAt(s.next) {
		require.Equal(t, s.capacity, s.active, "slab in full list is not full")
		checkFreeStack(t, s)
	}
	for s := c.partial.head; s != nil; s = slabAt(s.next) {
		require.Greater(t, s.active, uint32(0), "empty slab in partial list")
		require.Less(t, s.active, s.capacity, "full slab in partial list")
		checkFreeStack(t, s)
	}
	for s := c.empty.head; s != nil; s = slabAt(s.next) {
		require.Equal(t, uint32(0), s.active, "occupied slab in empty list")
		checkFreeStack(t, s)
	}
}

func newTestSet(t *testing.T, conf Config) *CacheSet {
	t.Helper()
	cs, err := New(conf)
	require.NoError(t, err)
	t.Cleanup(cs.Destroy)
	return cs
}

func newTestCache(t *testing.T, spec CacheSpec) *Cache {
	t.Helper()
	cs := newTestSet(t, Config{InitialCaches: []CacheSpec{spec}})
	c := cs.Lookup(spec.ObjectSize, spec.Alignment)
	require.NotNil(t, c)
	return c
}
