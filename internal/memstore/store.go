// Package memstore implements the two fixed-capacity frame arrays backing
// physical memory (C4): RAM and swap. Both have identical free-list
// semantics, so a single Store type backs both; the kernel wires up two
// instances sized from config.
//
// Frames are chosen by lowest index (spec.md ยง4.3, ยง4.5), so Store scans
// linearly rather than keeping a LIFO free list — with the frame counts a
// simulator deals in (tens to low thousands), this is the simplest
// implementation that still gives the deterministic choice the test suite
// requires, in the spirit of biscuit's mem.Physmem_t, which also resolves
// free frames from an explicit list rather than hiding the order.
package memstore

// Frame is one slot of the store: either empty, or owned by exactly one
// (pid, page) pair, per spec.md invariants 2 and 3.
type Frame struct {
	Occupied   bool
	Pid        int
	Page       int
	LastAccess int
}

// Store is a fixed-capacity array of frames.
type Store struct {
	frames []Frame
}

// New allocates a store with the given number of frames, all initially free.
func New(capacity int) *Store {
	return &Store{frames: make([]Frame, capacity)}
}

// Capacity returns the total number of frames.
func (s *Store) Capacity() int {
	return len(s.frames)
}

// Free returns the number of unoccupied frames.
func (s *Store) Free() int {
	n := 0
	for _, f := range s.frames {
		if !f.Occupied {
			n++
		}
	}
	return n
}

// Used returns the number of occupied frames.
func (s *Store) Used() int {
	return s.Capacity() - s.Free()
}

// Frame returns a pointer to frame i so callers can inspect its owner.
func (s *Store) Frame(i int) *Frame {
	return &s.frames[i]
}

// AllocateLowest claims the lowest-indexed free frame for (pid, page) and
// returns its index. ok is false if the store is full.
func (s *Store) AllocateLowest(pid, page, now int) (int, bool) {
	for i := range s.frames {
		if !s.frames[i].Occupied {
			s.frames[i] = Frame{Occupied: true, Pid: pid, Page: page, LastAccess: now}
			return i, true
		}
	}
	return 0, false
}

// Release frees frame i. It panics if the frame was already free: an
// attempt to free an empty frame is an internal bookkeeping bug, not a
// domain error.
func (s *Store) Release(i int) {
	if !s.frames[i].Occupied {
		panic("memstore: release of an already-free frame")
	}
	s.frames[i] = Frame{}
}

// Touch updates the last-access timestamp of an occupied frame, used by the
// LRU scan in internal/mm.
func (s *Store) Touch(i, now int) {
	s.frames[i].LastAccess = now
}

// Each calls fn for every occupied frame along with its index, in index
// order. Used by the LRU victim scan (spec.md ยง4.4), which must be
// deterministic: lowest last_access, tie-broken by lowest pid then page,
// and index order gives a stable starting point for that tie-break.
func (s *Store) Each(fn func(idx int, f *Frame)) {
	for i := range s.frames {
		if s.frames[i].Occupied {
			fn(i, &s.frames[i])
		}
	}
}
