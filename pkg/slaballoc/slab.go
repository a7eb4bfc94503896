package slaballoc

import "unsafe"

// A slab is one contiguous bulk region laid out as
//
//	|| header | free-index stack | object payload ||
//
// The header is this struct, placed at the base of the region. The free
// stack is an array of slot indices used as a LIFO: indices at positions
// [active, capacity) are free and position active is the top of the
// stack. Popping the top hands back the most recently freed slot, which
// keeps reallocated memory cache-hot.
//
// payload is the address of slot 0, aligned up to the cache's alignment.
// The region is over-requested by alignment-1 bytes so this realignment
// always fits.
//
// The header lives in mapped memory the garbage collector never scans,
// so it must not contain real Go pointers or slice headers. The list
// links are raw addresses, converted to *slab transiently at use sites,
// and the free stack is materialised as a view on demand.
type slab struct {
	active   uint32
	capacity uint32
	payload  uintptr
	next     uintptr
	prev     uintptr
}

var slabHeaderSize = uint64(unsafe.Sizeof(slab{}))

// slabAt converts a raw header address back into a usable *slab. The
// zero address is the nil slab.
func slabAt(addr uintptr) *slab {
	return (*slab)(unsafe.Pointer(addr))
}

// newSlab builds a fresh slab for conf out of a bulk region. Returns nil
// when the supplier is exhausted.
func newSlab(conf *AllocConfig, supplier Supplier) *slab {
	region := supplier.Alloc(conf.TotalSlabSize)
	if region == 0 {
		return nil
	}

	s := slabAt(region)
	s.active = 0
	s.capacity = uint32(conf.ObjectsPerSlab)

	stack := s.freeStack()
	for i := range stack {
		stack[i] = uint16(i)
	}

	stackEnd := region + uintptr(slabHeaderSize) + uintptr(conf.ObjectsPerSlab*indexSize)
	s.payload = alignUpPtr(stackEnd, uintptr(conf.Alignment))

	s.next = 0
	s.prev = 0
	return s
}

// freeStack materialises the free-index stack sitting immediately after
// the header. The view is rebuilt at each use so no slice header is ever
// stored inside the mapped region.
func (s *slab) freeStack() []uint16 {
	stackBase := s.region() + uintptr(slabHeaderSize)
	return unsafe.Slice((*uint16)(unsafe.Pointer(stackBase)), s.capacity)
}

// allocSlot pops the top of the free stack and returns the slot address.
// The slab must not be full.
func (s *slab) allocSlot(slotSize uint64) uintptr {
	idx := s.freeStack()[s.active]
	s.active++
	return s.payload + uintptr(idx)*uintptr(slotSize)
}

// freeSlot pushes the slot holding ptr back onto the free stack. ptr
// must be a currently allocated slot address inside this slab's payload.
func (s *slab) freeSlot(ptr uintptr, slotSize uint64) {
	idx := uint16((ptr - s.payload) / uintptr(slotSize))
	s.active--
	s.freeStack()[s.active] = idx
}

// owns reports whether ptr falls inside this slab's payload range.
func (s *slab) owns(ptr uintptr, slotSize uint64) bool {
	return ptr >= s.payload && ptr < s.payload+uintptr(uint64(s.capacity)*slotSize)
}

func (s *slab) full() bool {
	return s.active == s.capacity
}

func (s *slab) empty() bool {
	return s.active == 0
}

// region returns the bulk-region base address, which is also the address
// of the header itself.
func (s *slab) region() uintptr {
	return uintptr(unsafe.Pointer(s))
}

func slotBytes(ptr uintptr, size uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
}
