package slaballoc

// A SlotFunc is invoked with a slot's bytes when the slot is activated
// (ctor) or deactivated (dtor). The slice is RequestedObjectSize bytes
// long. SlotFuncs must not re-enter the allocator.
type SlotFunc func(mem []byte)

type CacheStats struct {
	Allocs        int
	Frees         int
	Live          int
	SlabsCreated  int
	SlabsReleased int
	Full          int
	Partial       int
	Empty         int
}

// A Cache manages every slab of one (object size, alignment) class.
//
// Each slab lives in exactly one of the three lists, matching its
// occupancy: active == 0 in empty, active == capacity in full and
// everything in between in partial. Allocation prefers a partial slab
// over an empty one, keeping the empty list available as a small reuse
// pool, and only creates a new slab when both are exhausted.
type Cache struct {
	conf     AllocConfig
	supplier Supplier
	ctor     SlotFunc
	dtor     SlotFunc

	// Slabs in the empty list are retained for reuse. When
	// releaseEmptyAbove is positive, a free which would grow the empty
	// list beyond that bound returns the slab region to the supplier
	// instead.
	releaseEmptyAbove int
	emptyLen          int

	full    slabList
	partial slabList
	empty   slabList

	allocs        int
	frees         int
	slabsCreated  int
	slabsReleased int
}

func (c *Cache) init(conf AllocConfig, supplier Supplier, ctor, dtor SlotFunc, releaseEmptyAbove int) {
	*c = Cache{
		conf:              conf,
		supplier:          supplier,
		ctor:              ctor,
		dtor:              dtor,
		releaseEmptyAbove: releaseEmptyAbove,
	}
}

func (c *Cache) initialised() bool {
	return c.conf.RequestedObjectSize != 0
}

func (c *Cache) Config() AllocConfig {
	return c.conf
}

// Alloc serves one slot from this cache.
//
// The source slab is the head of the partial list if there is one, else
// the head of the empty list, else a freshly created slab. If the
// allocation fills the source slab it migrates to the full list.
func (c *Cache) Alloc() (uintptr, error) {
	source := c.partial.head
	if source == nil {
		if source = c.empty.head; source != nil {
			c.empty.remove(source)
			c.emptyLen--
			c.partial.insert(source)
		} else {
			source = newSlab(&c.conf, c.supplier)
			if source == nil {
				return 0, ErrOutOfMemory
			}
			c.slabsCreated++
			c.partial.insert(source)
		}
	}

	ptr := source.allocSlot(c.conf.SlotSize)
	if c.ctor != nil {
		c.ctor(slotBytes(ptr, c.conf.RequestedObjectSize))
	}

	if source.full() {
		c.partial.remove(source)
		c.full.insert(source)
	}

	c.allocs++
	return ptr, nil
}

// free returns one slot to s, which must be a member of this cache
// owning ptr. A slab whose occupancy crosses a boundary migrates lists:
// full to partial, partial to empty. A capacity-one slab crosses both
// boundaries in a single free.
func (c *Cache) free(s *slab, ptr uintptr) {
	wasFull := s.full()

	s.freeSlot(ptr, c.conf.SlotSize)
	if c.dtor != nil {
		c.dtor(slotBytes(ptr, c.conf.RequestedObjectSize))
	}

	if wasFull {
		c.full.remove(s)
		c.partial.insert(s)
	}
	if s.empty() {
		c.partial.remove(s)
		c.empty.insert(s)
		c.emptyLen++
		if c.releaseEmptyAbove > 0 && c.emptyLen > c.releaseEmptyAbove {
			c.empty.remove(s)
			c.emptyLen--
			c.supplier.Free(s.region(), c.conf.TotalSlabSize)
			c.slabsReleased++
		}
	}

	c.frees++
}

// ownerSlab finds the slab whose payload range contains ptr. Empty slabs
// cannot own a live pointer so only partial and full slabs are searched.
func (c *Cache) ownerSlab(ptr uintptr) *slab {
	for s := c.partial.head; s != nil; s = slabAt(s.next) {
		if s.owns(ptr, c.conf.SlotSize) {
			return s
		}
	}
	for s := c.full.head; s != nil; s = slabAt(s.next) {
		if s.owns(ptr, c.conf.SlotSize) {
			return s
		}
	}
	return nil
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Allocs:        c.allocs,
		Frees:         c.frees,
		Live:          c.allocs - c.frees,
		SlabsCreated:  c.slabsCreated,
		SlabsReleased: c.slabsReleased,
		Full:          c.full.len(),
		Partial:       c.partial.len(),
		Empty:         c.empty.len(),
	}
}

// destroy releases every slab region back to the supplier. The cache is
// unusable afterwards.
func (c *Cache) destroy() {
	for _, l := range []*slabList{&c.full, &c.partial, &c.empty} {
		s := l.head
		for s != nil {
			next := s.next
			c.supplier.Free(s.region(), c.conf.TotalSlabSize)
			s = slabAt(next)
		}
		l.head = nil
	}
	c.emptyLen = 0
}
