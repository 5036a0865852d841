package link

// MaxSafeInteger is the largest correlation id before the allocator wraps.
// It matches the largest integer a JSON peer can represent exactly.
const MaxSafeInteger uint64 = 1<<53 - 1

// IDAllocator hands out correlation ids in the range [1, max].
//
// When the current value reaches max it resets to 0 before incrementing, so
// the id after max is 1. Zero is never returned.
//
// IDAllocator is not safe for concurrent use; Link guards it with its mutex.
type IDAllocator struct {
	value uint64
	max   uint64
}

// NewIDAllocator creates an allocator that wraps after max.
// A max of zero selects MaxSafeInteger.
func NewIDAllocator(max uint64) *IDAllocator {
	if max == 0 {
		max = MaxSafeInteger
	}
	return &IDAllocator{max: max}
}

// Next returns the next id.
func (a *IDAllocator) Next() uint64 {
	if a.value >= a.max {
		a.value = 0
	}
	a.value++
	return a.value
}

// Current returns the most recently issued id, or 0 before the first call.
func (a *IDAllocator) Current() uint64 {
	return a.value
}

// Max returns the wrap point.
func (a *IDAllocator) Max() uint64 {
	return a.max
}
