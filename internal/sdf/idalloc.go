package sdf

import "sort"

// Per-PD id space limits. Channel ends and bound IRQs share one slot space
// per protection domain; child protection domains have their own.
const (
	maxSlotIDs  = 62
	maxChildIDs = 256
)

// idAllocator hands out the lowest unused non-negative id in one local id
// space. It combines a monotonic frontier with an explicit sorted free list
// so the lowest-unused policy holds under arbitrary allocate/release
// interleavings, without scanning.
//
// Ids at or above the frontier have never been handed out (except fixed
// ids, tracked in used); ids below the frontier that were released sit in
// the free list in ascending order.
type idAllocator struct {
	limit int
	next  int
	free  []int
	used  map[int]bool
}

func newIDAllocator(limit int) *idAllocator {
	return &idAllocator{limit: limit, used: make(map[int]bool)}
}

// allocate returns the lowest unused id, or ok=false if the space is full.
func (a *idAllocator) allocate() (int, bool) {
	if len(a.free) > 0 {
		id := a.free[0]
		a.free = a.free[1:]
		a.used[id] = true
		return id, true
	}
	for a.next < a.limit && a.used[a.next] {
		a.next++
	}
	if a.next >= a.limit {
		return 0, false
	}
	id := a.next
	a.next++
	a.used[id] = true
	return id, true
}

// allocateFixed claims a specific id. Returns false if the id is out of
// range or already in use.
func (a *idAllocator) allocateFixed(id int) bool {
	if id < 0 || id >= a.limit || a.used[id] {
		return false
	}
	a.used[id] = true
	if id < a.next {
		i := sort.SearchInts(a.free, id)
		if i < len(a.free) && a.free[i] == id {
			a.free = append(a.free[:i], a.free[i+1:]...)
		}
	}
	return true
}

// release returns an id to the pool. Releasing an id that is not in use is
// a no-op.
func (a *idAllocator) release(id int) {
	if !a.used[id] {
		return
	}
	delete(a.used, id)
	if id < a.next {
		i := sort.SearchInts(a.free, id)
		a.free = append(a.free, 0)
		copy(a.free[i+1:], a.free[i:])
		a.free[i] = id
	}
}

// inUse reports whether an id is currently allocated.
func (a *idAllocator) inUse(id int) bool {
	return a.used[id]
}

// count returns the number of ids currently allocated.
func (a *idAllocator) count() int {
	return len(a.used)
}
