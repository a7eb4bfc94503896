// The mm package is the malloc/free/realloc front end over the slab
// engine in pkg/slaballoc.
//
// On top of raw slot allocation it adds corruption detection: every
// allocation is padded with a canary pattern written immediately after
// the user region and a footer recording the requested size at the very
// end of the underlying slot. Free re-derives the canary location from
// the footer and diagnoses any overwrite. Detection is best-effort and
// never fatal, a diagnosed free still proceeds.
//
// The package offers two modes of the same Allocator type: per-instance
// allocators built with New, and a process-wide default behind the
// package-level Malloc, Free and Realloc functions.
package mm

import (
	"bytes"
	"encoding/binary"
	"log"
	"unsafe"

	"github.com/fmstephe/flib/funsafe"
	"github.com/fmstephe/slabmalloc/pkg/slaballoc"
)

const canaryValue = "CANARYthisIsCanaryValue"

const (
	canarySize    = uint64(len(canaryValue))
	sizeFieldSize = uint64(unsafe.Sizeof(uint64(0)))
)

var canaryBytes = funsafe.StringToBytes(canaryValue)

type Config struct {
	// Maximum number of distinct size classes. Defaults to
	// slaballoc.DefaultMaxCaches.
	MaxCaches int

	// Size of each slab region. Defaults to slaballoc.DefaultSlabSize.
	SlabSize uint64

	// Size classes built up front. Classes for unmatched requests are
	// created on demand with zeroing ctor/dtor.
	InitialCaches []slaballoc.CacheSpec

	// Disables the canary and requested-size footer. The zero value
	// keeps them enabled.
	DisableCanary bool

	// Passed through to the slab engine, see slaballoc.Config.
	ReleaseEmptyAbove int

	// Source of bulk regions. Defaults to anonymous mmap.
	Supplier slaballoc.Supplier

	// Receives corruption and misuse diagnostics. Defaults to the
	// standard logger. Diagnostics are never fatal.
	Diagnostic func(format string, args ...any)
}

type Allocator struct {
	caches *slaballoc.CacheSet
	canary bool
	diag   func(format string, args ...any)
}

func New(conf Config) (*Allocator, error) {
	if conf.Diagnostic == nil {
		conf.Diagnostic = log.Printf
	}
	caches, err := slaballoc.New(slaballoc.Config{
		MaxCaches:         conf.MaxCaches,
		SlabSize:          conf.SlabSize,
		ReleaseEmptyAbove: conf.ReleaseEmptyAbove,
		Supplier:          conf.Supplier,
		InitialCaches:     conf.InitialCaches,
	})
	if err != nil {
		return nil, err
	}
	return &Allocator{
		caches: caches,
		canary: !conf.DisableCanary,
		diag:   conf.Diagnostic,
	}, nil
}

// overhead is the padding added to every request for the canary pattern
// and the requested-size footer.
func (a *Allocator) overhead() uint64 {
	if !a.canary {
		return 0
	}
	return canarySize + sizeFieldSize
}

// Malloc allocates size bytes aligned to alignment. Returns 0 when the
// request cannot be served: the bulk supplier is exhausted, the padded
// size cannot fit into a slab, or no cache fits and no uninitialised
// cache slot remains.
//
// Alignment 0 is treated as 1 with a diagnostic.
func (a *Allocator) Malloc(size, alignment uint64) uintptr {
	if alignment == 0 {
		a.diag("mm: alignment 0 passed to Malloc, treating it as 1. Pass alignment 1 if no alignment is needed")
		alignment = 1
	}

	need := size + a.overhead()
	c := a.caches.Lookup(need, alignment)
	if c == nil {
		var err error
		c, err = a.caches.AddCache(slaballoc.CacheSpec{
			ObjectSize: need,
			Alignment:  alignment,
			Ctor:       zeroSlot,
			Dtor:       zeroSlot,
		})
		if err != nil {
			a.diag("mm: no cache can serve size %d alignment %d: %v", size, alignment, err)
			return 0
		}
	}

	ptr, err := c.Alloc()
	if err != nil {
		a.diag("mm: allocation of size %d alignment %d failed: %v", size, alignment, err)
		return 0
	}

	if a.canary {
		copy(pointerToBytes(ptr+uintptr(size), int(canarySize)), canaryBytes)
		writeSizeFooter(ptr, c.Config().SlotSize, size)
	}
	return ptr
}

// Free returns ptr to its owning slab. A pointer owned by no slab is
// diagnosed and ignored. Under canary mode the canary is verified first,
// a mismatch is diagnosed but the free still proceeds.
func (a *Allocator) Free(ptr uintptr) {
	if ptr == 0 {
		return
	}

	if a.canary {
		slotSize, err := a.caches.SlotSizeOf(ptr)
		if err != nil {
			a.diag("mm: Free of pointer %#x owned by no slab", ptr)
			return
		}
		size := readSizeFooter(ptr, slotSize)
		if size+canarySize+sizeFieldSize > slotSize {
			a.diag("mm: memory corruption detected, size footer overwritten on Free of %#x", ptr)
		} else if !bytes.Equal(pointerToBytes(ptr+uintptr(size), int(canarySize)), canaryBytes) {
			a.diag("mm: memory corruption detected, canary mismatch on Free of %#x", ptr)
		}
	}

	if err := a.caches.Free(ptr); err != nil {
		a.diag("mm: Free of pointer %#x owned by no slab", ptr)
	}
}

// Realloc resizes the allocation at ptr to size bytes, moving it. A nil
// ptr behaves as Malloc. The contents are copied up to the smaller of
// the old and new sizes, the old block is freed, and the new pointer is
// returned. On failure 0 is returned and the old block is left intact.
func (a *Allocator) Realloc(ptr uintptr, size, alignment uint64) uintptr {
	if ptr == 0 {
		return a.Malloc(size, alignment)
	}

	oldSize, ok := a.allocatedSize(ptr)
	if !ok {
		a.diag("mm: Realloc of pointer %#x owned by no slab", ptr)
		return 0
	}

	newPtr := a.Malloc(size, alignment)
	if newPtr == 0 {
		return 0
	}

	n := min(oldSize, size)
	copy(pointerToBytes(newPtr, int(n)), pointerToBytes(ptr, int(n)))
	a.Free(ptr)
	return newPtr
}

// Stats returns the statistics of every size class, smallest first.
func (a *Allocator) Stats() []slaballoc.CacheStats {
	return a.caches.Stats()
}

// Destroy releases all slab memory back to the supplier. The Allocator
// is completely unusable afterwards. Useful for tests, which create a
// lot of short-lived allocators.
func (a *Allocator) Destroy() {
	a.caches.Destroy()
}

// allocatedSize is the usable size of the block at ptr: the requested
// size stored in the footer under canary mode, the full slot size
// otherwise.
func (a *Allocator) allocatedSize(ptr uintptr) (uint64, bool) {
	slotSize, err := a.caches.SlotSizeOf(ptr)
	if err != nil {
		return 0, false
	}
	if !a.canary {
		return slotSize, true
	}
	size := readSizeFooter(ptr, slotSize)
	if size+canarySize+sizeFieldSize > slotSize {
		// The footer has been overwritten. Fall back to the largest
		// size the slot could have held so the copy stays in bounds.
		a.diag("mm: memory corruption detected, size footer overwritten on Realloc of %#x", ptr)
		return slotSize - canarySize - sizeFieldSize, true
	}
	return size, true
}

// The requested-size footer lives in the last sizeFieldSize bytes of the
// underlying slot. It is read and written bytewise because the slot base
// only carries the cache's alignment, which may be smaller than the
// footer's natural one.
func readSizeFooter(ptr uintptr, slotSize uint64) uint64 {
	return binary.LittleEndian.Uint64(pointerToBytes(ptr+uintptr(slotSize-sizeFieldSize), int(sizeFieldSize)))
}

func writeSizeFooter(ptr uintptr, slotSize, size uint64) {
	binary.LittleEndian.PutUint64(pointerToBytes(ptr+uintptr(slotSize-sizeFieldSize), int(sizeFieldSize)), size)
}

func zeroSlot(mem []byte) {
	clear(mem)
}

func pointerToBytes(ptr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
}
