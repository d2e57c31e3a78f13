// Package sharedbuf implements the bounded shared buffer (C9): a
// fixed-capacity FIFO of (producer pid, payload) items used by the
// producer/consumer synchronization pattern. It is the same head/tail
// bookkeeping as biscuit's Circbuf_t, simplified from a byte ring buffer to
// a slice of items since there is no wraparound-within-a-page concern here.
// Like Circbuf_t, SharedBuffer enforces no mutual exclusion of its own —
// spec.md ยง4.10 makes that the caller's responsibility via semaphores.
package sharedbuf

// Item is one entry written to the buffer.
type Item struct {
	Pid     int
	Payload string
}

// SharedBuffer is a bounded FIFO of capacity N.
type SharedBuffer struct {
	name  string
	items []Item
	cap   int
}

// New creates an empty buffer of the given name and capacity.
func New(name string, capacity int) *SharedBuffer {
	return &SharedBuffer{name: name, cap: capacity}
}

// Name returns the buffer's registry key.
func (b *SharedBuffer) Name() string { return b.name }

// Capacity returns N.
func (b *SharedBuffer) Capacity() int { return b.cap }

// Len returns the number of items currently queued.
func (b *SharedBuffer) Len() int { return len(b.items) }

// Write appends (pid, payload) iff the buffer has room, per spec.md ยง4.10.
func (b *SharedBuffer) Write(pid int, payload string) bool {
	if len(b.items) >= b.cap {
		return false
	}
	b.items = append(b.items, Item{Pid: pid, Payload: payload})
	return true
}

// Read pops the head item, or returns (Item{}, false) if the buffer is empty.
func (b *SharedBuffer) Read() (Item, bool) {
	if len(b.items) == 0 {
		return Item{}, false
	}
	it := b.items[0]
	b.items = b.items[1:]
	return it, true
}
