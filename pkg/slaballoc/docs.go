// The slaballoc package implements a slab-based fixed-size object
// allocator.
//
// Memory is carved into fixed-size slabs, each sub-divided into
// equal-sized object slots. A Cache manages all the slabs for one
// (object size, alignment) class and tracks each slab in one of three
// lists depending on its occupancy: full, partial or empty. A CacheSet
// holds an ordered array of caches and routes each allocation request to
// the smallest cache whose object size and alignment satisfy it.
//
// Allocation from a cache prefers a partially occupied slab, falls back
// to an empty one and only then asks the bulk Supplier for a fresh slab
// region. Inside a slab the free slots are tracked by a LIFO stack of
// slot indices, so the most recently freed slot is the next one handed
// out. This deliberately returns cache-hot memory.
//
// Freeing works backwards from the slot address. The owning slab is
// found by address-range containment and the slot index is pushed back
// onto the slab's free stack. Slabs migrate between the three lists as
// their occupancy crosses zero or capacity.
//
// The package is single-threaded by design. Nothing here suspends or
// blocks, and there is no internal locking. A concurrent deployment must
// serialise every call into a CacheSet externally.
package slaballoc
