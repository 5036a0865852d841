package link

import "sort"

// isStale reports whether a volatile request id was issued before the
// previous sweep, given the allocator value at that sweep (prev) and now (cur).
//
// Ids in the half-open interval (prev, cur] were issued since the last sweep
// and are kept. When prev > cur the allocator wrapped in between and the kept
// range is (prev, max] ∪ [1, cur], so only (cur, prev] is stale. When
// prev == cur nothing was issued and every outstanding id is stale; the
// plain two-case formula would route prev == cur to the wrapped branch and
// reap nothing.
func isStale(id, prev, cur uint64) bool {
	if prev > cur {
		return id <= prev && id > cur
	}
	return id <= prev || id > cur
}

// reaper times out volatile requests without per-request timers.
//
// Each sweep compares ids against the allocator value captured at the
// previous sweep. A request survives at most two sweep intervals.
type reaper struct {
	prev uint64
}

// reset anchors the next sweep at the given allocator value.
func (r *reaper) reset(cur uint64) {
	r.prev = cur
}

// sweep fails every stale volatile request with ErrTimeout and returns the
// reaped ids in ascending order.
func (r *reaper) sweep(t *tracker, cur uint64) []uint64 {
	var stale []uint64
	for id := range t.volatile {
		if isStale(id, r.prev, cur) {
			stale = append(stale, id)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	for _, id := range stale {
		t.fail(id, ErrTimeout)
	}
	r.prev = cur
	return stale
}
