// The bulk package is the production page supplier for the slab
// allocator. Regions come straight from anonymous private mmap, so they
// are invisible to the garbage collector and page-aligned, although the
// allocator does not rely on any alignment beyond the platform's natural
// one.
package bulk

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

type Supplier struct{}

// Alloc maps a fresh region of at least size bytes. Returns 0 when the
// mapping fails, the caller treats this as memory exhaustion.
func (Supplier) Alloc(size uint64) uintptr {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

// Free unmaps a region previously returned by Alloc. size must be the
// size the region was requested with.
func (Supplier) Free(ptr uintptr, size uint64) {
	// There is no useful recovery from a failed munmap here, the worst
	// case is a leaked mapping.
	_ = unix.Munmap(pointerToBytes(ptr, int(size)))
}

func pointerToBytes(ptr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
}
