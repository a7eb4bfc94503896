package slaballoc

import (
	"testing"

	"github.com/fmstephe/slabmalloc/internal/bulk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRawSlab(t *testing.T, objectSize, alignment uint64) (*slab, AllocConfig) {
	t.Helper()
	conf, err := NewAllocConfig(objectSize, alignment, 0)
	require.NoError(t, err)

	supplier := bulk.Supplier{}
	s := newSlab(&conf, supplier)
	require.NotNil(t, s)
	t.Cleanup(func() { supplier.Free(s.region(), conf.TotalSlabSize) })
	return s, conf
}

func Test_Slab_NewSlabLayout(t *testing.T) {
	s, conf := newRawSlab(t, 48, 16)

	assert.Equal(t, uint32(0), s.active)
	assert.Equal(t, uint32(conf.ObjectsPerSlab), s.capacity)

	// Freshly initialised stack holds 0, 1, ..., capacity-1 in order
	for i, idx := range s.freeStack() {
		assert.Equal(t, uint16(i), idx)
	}

	// The payload is aligned and sits fully inside the bulk region
	assert.Zero(t, s.payload%uintptr(conf.Alignment))
	assert.GreaterOrEqual(t, s.payload, s.region()+uintptr(conf.HeaderSize))
	payloadEnd := s.payload + uintptr(conf.ObjectsPerSlab*conf.SlotSize)
	assert.LessOrEqual(t, payloadEnd, s.region()+uintptr(conf.TotalSlabSize))
}

func Test_Slab_NewSlabFailsWithoutMemory(t *testing.T) {
	conf, err := NewAllocConfig(48, 16, 0)
	require.NoError(t, err)

	assert.Nil(t, newSlab(&conf, failingSupplier{}))
}

func Test_Slab_AllocWalksSlotsInOrder(t *testing.T) {
	s, conf := newRawSlab(t, 32, 8)

	for i := uint64(0); i < conf.ObjectsPerSlab; i++ {
		ptr := s.allocSlot(conf.SlotSize)
		assert.Equal(t, s.payload+uintptr(i*conf.SlotSize), ptr)
	}
	assert.True(t, s.full())
}

func Test_Slab_FreeIsLIFO(t *testing.T) {
	s, conf := newRawSlab(t, 32, 8)

	first := s.allocSlot(conf.SlotSize)
	second := s.allocSlot(conf.SlotSize)

	s.freeSlot(second, conf.SlotSize)
	s.freeSlot(first, conf.SlotSize)

	// The most recently freed slot comes back first
	assert.Equal(t, first, s.allocSlot(conf.SlotSize))
	assert.Equal(t, second, s.allocSlot(conf.SlotSize))
}

func Test_Slab_FreeStackStaysConsistent(t *testing.T) {
	s, conf := newRawSlab(t, 32, 8)

	ptrs := make([]uintptr, conf.ObjectsPerSlab)
	for i := range ptrs {
		ptrs[i] = s.allocSlot(conf.SlotSize)
	}
	checkFreeStack(t, s)

	// Free out of order, every second slot first
	for i := 0; i < len(ptrs); i += 2 {
		s.freeSlot(ptrs[i], conf.SlotSize)
		checkFreeStack(t, s)
	}
	for i := 1; i < len(ptrs); i += 2 {
		s.freeSlot(ptrs[i], conf.SlotSize)
		checkFreeStack(t, s)
	}

	assert.True(t, s.empty())
}

func Test_Slab_Owns(t *testing.T) {
	s, conf := newRawSlab(t, 32, 8)

	payloadEnd := s.payload + uintptr(conf.ObjectsPerSlab*conf.SlotSize)

	assert.False(t, s.owns(s.payload-1, conf.SlotSize))
	assert.True(t, s.owns(s.payload, conf.SlotSize))
	assert.True(t, s.owns(payloadEnd-1, conf.SlotSize))
	assert.False(t, s.owns(payloadEnd, conf.SlotSize))
}

func Test_Slab_SlotsAreWritable(t *testing.T) {
	s, conf := newRawSlab(t, 64, 8)

	for i := uint64(0); i < conf.ObjectsPerSlab; i++ {
		ptr := s.allocSlot(conf.SlotSize)
		mem := slotBytes(ptr, conf.SlotSize)
		for j := range mem {
			mem[j] = byte(i)
		}
	}

	// No slot write may bleed into a neighbour
	for i := uint64(0); i < conf.ObjectsPerSlab; i++ {
		mem := slotBytes(s.payload+uintptr(i*conf.SlotSize), conf.SlotSize)
		for _, b := range mem {
			require.Equal(t, byte(i), b)
		}
	}
}
