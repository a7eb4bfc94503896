package slaballoc

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/fmstephe/flib/fmath"
)

const (
	DefaultSlabSize  = 4096
	DefaultMaxCaches = 10
)

// indexSize is the width of one free-stack entry. One entry exists per
// slot, so it participates in the capacity calculation below.
const indexSize = uint64(unsafe.Sizeof(uint16(0)))

// An AllocConfig captures the slab layout derived for one
// (object size, alignment) class.
//
// The Requested* fields record what the caller asked for. The remaining
// fields are the values actually used: the alignment is rounded up to a
// power of two, the slot size is the object size aligned up, and the
// region requested from the bulk supplier is padded by alignment-1 bytes
// so the payload can always be realigned internally.
type AllocConfig struct {
	RequestedObjectSize uint64
	RequestedAlignment  uint64
	RequestedSlabSize   uint64

	Alignment      uint64
	SlotSize       uint64
	SlabSize       uint64
	HeaderSize     uint64
	ObjectsPerSlab uint64
	TotalSlabSize  uint64
}

func NewAllocConfig(objectSize, alignment, slabSize uint64) (AllocConfig, error) {
	if objectSize == 0 {
		return AllocConfig{}, fmt.Errorf("slaballoc: object size must be non-zero")
	}
	requestedAlignment := alignment
	requestedSlabSize := slabSize
	if alignment == 0 {
		alignment = 1
	}
	alignment = uint64(fmath.NxtPowerOfTwo(int64(alignment)))
	if slabSize == 0 {
		slabSize = DefaultSlabSize
	}
	slabSize = uint64(fmath.NxtPowerOfTwo(int64(slabSize)))

	slotSize := alignUp(objectSize, alignment)
	headerSize := slabHeaderSize
	if slabSize <= headerSize {
		return AllocConfig{}, ErrRequestTooLarge
	}

	// Each slot costs its aligned size plus one free-stack index
	objectsPerSlab := (slabSize - headerSize) / (slotSize + indexSize)
	if objectsPerSlab == 0 {
		return AllocConfig{}, ErrRequestTooLarge
	}
	// The free-stack indices are uint16
	if objectsPerSlab > math.MaxUint16 {
		objectsPerSlab = math.MaxUint16
	}

	return AllocConfig{
		RequestedObjectSize: objectSize,
		RequestedAlignment:  requestedAlignment,
		RequestedSlabSize:   requestedSlabSize,

		Alignment:      alignment,
		SlotSize:       slotSize,
		SlabSize:       slabSize,
		HeaderSize:     headerSize,
		ObjectsPerSlab: objectsPerSlab,
		TotalSlabSize:  slabSize + alignment - 1,
	}, nil
}

// MaxObjectSize returns the largest object size a cache with this slab
// size can be built for.
func MaxObjectSize(slabSize uint64) uint64 {
	if slabSize == 0 {
		slabSize = DefaultSlabSize
	}
	slabSize = uint64(fmath.NxtPowerOfTwo(int64(slabSize)))
	if slabSize <= slabHeaderSize+indexSize {
		return 0
	}
	return slabSize - slabHeaderSize - indexSize
}

func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}

func alignUpPtr(v, alignment uintptr) uintptr {
	return (v + alignment - 1) &^ (alignment - 1)
}
