package bulk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Supplier_AllocGivesWritableRegion(t *testing.T) {
	supplier := Supplier{}

	// Deliberately not a page multiple, mirroring the alignment padding
	// the allocator requests
	size := uint64(4096 + 127)
	region := supplier.Alloc(size)
	require.NotZero(t, region)

	mem := pointerToBytes(region, int(size))
	mem[0] = 0xAB
	mem[size-1] = 0xCD
	assert.Equal(t, byte(0xAB), mem[0])
	assert.Equal(t, byte(0xCD), mem[size-1])

	supplier.Free(region, size)
}

func Test_Supplier_RegionsAreDistinct(t *testing.T) {
	supplier := Supplier{}

	first := supplier.Alloc(4096)
	second := supplier.Alloc(4096)
	require.NotZero(t, first)
	require.NotZero(t, second)
	assert.NotEqual(t, first, second)

	supplier.Free(first, 4096)
	supplier.Free(second, 4096)
}
