// A small demonstration binary for the slab allocator. It churns a
// configurable mix of malloc/free/realloc traffic through an Allocator
// and prints the per-size-class statistics at the end.
package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/fmstephe/slabmalloc/pkg/mm"
)

var (
	allocsFlag  = flag.Int("allocs", 10_000, "Number of allocations to perform")
	maxSizeFlag = flag.Uint64("max-size", 1024, "Largest allocation size requested")
	seedFlag    = flag.Int64("seed", 1, "Seed for the traffic generator")
)

func main() {
	flag.Parse()

	allocator, err := mm.New(mm.Config{MaxCaches: 32})
	if err != nil {
		fmt.Printf("Error building allocator %s\n", err)
		return
	}

	r := rand.New(rand.NewSource(*seedFlag))
	live := []uintptr{}

	for i := 0; i < *allocsFlag; i++ {
		size := 1 + r.Uint64()%*maxSizeFlag
		alignment := uint64(1) << r.Intn(5)

		switch {
		case len(live) > 0 && r.Intn(3) == 0:
			// Free a random live allocation
			j := r.Intn(len(live))
			allocator.Free(live[j])
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		case len(live) > 0 && r.Intn(5) == 0:
			// Resize a random live allocation
			j := r.Intn(len(live))
			if ptr := allocator.Realloc(live[j], size, alignment); ptr != 0 {
				live[j] = ptr
			}
		default:
			if ptr := allocator.Malloc(size, alignment); ptr != 0 {
				live = append(live, ptr)
			} else {
				fmt.Printf("Failed to allocate %d bytes aligned to %d\n", size, alignment)
			}
		}
	}

	fmt.Printf("%d allocations still live\n\n", len(live))
	fmt.Printf("%8s %8s %8s %6s %6s %6s %6s\n", "allocs", "frees", "live", "slabs", "full", "part", "empty")
	for _, stats := range allocator.Stats() {
		fmt.Printf("%8d %8d %8d %6d %6d %6d %6d\n",
			stats.Allocs, stats.Frees, stats.Live,
			stats.SlabsCreated, stats.Full, stats.Partial, stats.Empty)
	}

	for _, ptr := range live {
		allocator.Free(ptr)
	}
	allocator.Destroy()
}
