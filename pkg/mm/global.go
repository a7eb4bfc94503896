package mm

// The process-wide default allocator. This is the second mode of the
// front end: callers which don't need to thread an Allocator through
// their code use the package-level functions below, all backed by this
// single instance with the default configuration.
var std = mustNew(Config{})

func mustNew(conf Config) *Allocator {
	a, err := New(conf)
	if err != nil {
		panic(err)
	}
	return a
}

func Malloc(size, alignment uint64) uintptr {
	return std.Malloc(size, alignment)
}

func Free(ptr uintptr) {
	std.Free(ptr)
}

func Realloc(ptr uintptr, size, alignment uint64) uintptr {
	return std.Realloc(ptr, size, alignment)
}
