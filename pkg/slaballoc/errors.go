package slaballoc

import "errors"

var (
	// The bulk supplier could not provide a new slab region.
	ErrOutOfMemory = errors.New("slaballoc: bulk supplier exhausted")

	// No initialised cache satisfies the requested size and alignment,
	// or no uninitialised cache slot remains to build one in.
	ErrNoFittingCache = errors.New("slaballoc: no slab cache fits request")

	// The requested object size cannot fit even one slot into a slab.
	ErrRequestTooLarge = errors.New("slaballoc: request cannot fit in a slab")

	// The freed pointer is not owned by any slab of any cache.
	ErrInvalidFree = errors.New("slaballoc: pointer not owned by any slab")
)
