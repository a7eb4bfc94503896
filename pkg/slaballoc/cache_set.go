package slaballoc

import (
	"github.com/fmstephe/slabmalloc/internal/bulk"
)

// A CacheSpec describes one size class to build a Cache for.
type CacheSpec struct {
	ObjectSize uint64
	Alignment  uint64
	Ctor       SlotFunc
	Dtor       SlotFunc
}

type Config struct {
	// Maximum number of distinct size classes. Defaults to
	// DefaultMaxCaches.
	MaxCaches int

	// Size of each slab region, rounded up to a power of two. Defaults
	// to DefaultSlabSize.
	SlabSize uint64

	// When positive, a free which would leave more than this many slabs
	// in a cache's empty list releases the slab back to the supplier.
	// Zero retains empty slabs forever.
	ReleaseEmptyAbove int

	// Source of bulk regions. Defaults to anonymous mmap.
	Supplier Supplier

	// Size classes built up front. Further classes are added on demand
	// through AddCache.
	InitialCaches []CacheSpec
}

// A CacheSet holds a fixed-capacity array of caches ordered
// non-decreasing by object size. Uninitialised entries have object size
// zero and sort to the front, so they form a prefix of the array and a
// new class is always built in the last of them.
type CacheSet struct {
	supplier          Supplier
	slabSize          uint64
	releaseEmptyAbove int
	caches            []Cache
}

func New(conf Config) (*CacheSet, error) {
	if conf.MaxCaches <= 0 {
		conf.MaxCaches = DefaultMaxCaches
	}
	if conf.SlabSize == 0 {
		conf.SlabSize = DefaultSlabSize
	}
	if conf.Supplier == nil {
		conf.Supplier = bulk.Supplier{}
	}

	cs := &CacheSet{
		supplier:          conf.Supplier,
		slabSize:          conf.SlabSize,
		releaseEmptyAbove: conf.ReleaseEmptyAbove,
		caches:            make([]Cache, conf.MaxCaches),
	}
	for _, spec := range conf.InitialCaches {
		if _, err := cs.AddCache(spec); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// Lookup scans the ordered cache array and returns the first cache whose
// object size and alignment satisfy the request. Because the array is
// sorted non-decreasing by object size this is the smallest adequate
// size class. Returns nil when no cache fits.
func (cs *CacheSet) Lookup(size, alignment uint64) *Cache {
	for i := range cs.caches {
		c := &cs.caches[i]
		if !c.initialised() {
			continue
		}
		if c.conf.RequestedObjectSize >= size && c.conf.Alignment >= alignment {
			return c
		}
	}
	return nil
}

// AddCache builds a new cache for spec in an uninitialised array entry
// and slides it into its sorted position. Fails with ErrNoFittingCache
// when every entry is already initialised, or ErrRequestTooLarge when
// the class cannot fit a single slot into a slab.
func (cs *CacheSet) AddCache(spec CacheSpec) (*Cache, error) {
	// Uninitialised entries sort to the front, so if any slot is free
	// the hole to fill is the last uninitialised entry.
	hole := 0
	for hole < len(cs.caches) && !cs.caches[hole].initialised() {
		hole++
	}
	if hole == 0 {
		return nil, ErrNoFittingCache
	}
	hole--

	conf, err := NewAllocConfig(spec.ObjectSize, spec.Alignment, cs.slabSize)
	if err != nil {
		return nil, err
	}

	// Sorted insertion: slide the smaller initialised caches down into
	// the hole until the new cache's position is reached. Caches carry
	// no back-references so moving them by value is safe.
	for hole+1 < len(cs.caches) &&
		cs.caches[hole+1].initialised() &&
		cs.caches[hole+1].conf.RequestedObjectSize < spec.ObjectSize {
		cs.caches[hole] = cs.caches[hole+1]
		hole++
	}

	c := &cs.caches[hole]
	c.init(conf, cs.supplier, spec.Ctor, spec.Dtor, cs.releaseEmptyAbove)
	return c, nil
}

// Alloc routes one allocation to the smallest adequate cache.
func (cs *CacheSet) Alloc(size, alignment uint64) (uintptr, error) {
	c := cs.Lookup(size, alignment)
	if c == nil {
		return 0, ErrNoFittingCache
	}
	return c.Alloc()
}

// Free finds the slab owning ptr by address-range containment, scanning
// partial then full slabs of every initialised cache, and returns the
// slot to it. Fails with ErrInvalidFree when no slab owns ptr.
func (cs *CacheSet) Free(ptr uintptr) error {
	for i := range cs.caches {
		c := &cs.caches[i]
		if !c.initialised() {
			continue
		}
		if s := c.ownerSlab(ptr); s != nil {
			c.free(s, ptr)
			return nil
		}
	}
	return ErrInvalidFree
}

// SlotSizeOf returns the slot size of the cache owning ptr. This is the
// full aligned slot stride, the number of bytes usable at ptr.
func (cs *CacheSet) SlotSizeOf(ptr uintptr) (uint64, error) {
	for i := range cs.caches {
		c := &cs.caches[i]
		if !c.initialised() {
			continue
		}
		if c.ownerSlab(ptr) != nil {
			return c.conf.SlotSize, nil
		}
	}
	return 0, ErrInvalidFree
}

// Stats returns the statistics of every initialised cache, in array
// order.
func (cs *CacheSet) Stats() []CacheStats {
	stats := make([]CacheStats, 0, len(cs.caches))
	for i := range cs.caches {
		if cs.caches[i].initialised() {
			stats = append(stats, cs.caches[i].Stats())
		}
	}
	return stats
}

// Destroy releases every slab of every cache back to the supplier. The
// CacheSet is completely unusable afterwards. Useful for tests, which
// create a lot of short-lived allocators.
func (cs *CacheSet) Destroy() {
	for i := range cs.caches {
		if cs.caches[i].initialised() {
			cs.caches[i].destroy()
		}
	}
}
