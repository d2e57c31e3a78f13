// Package sched implements the FCFS scheduler (C6): a single FIFO ready
// queue of pids. It holds no process state and makes no scheduling
// decisions beyond "first in, first out" — it is deliberately as small and
// policy-free as biscuit's own small utility packages (circbuf, hashtable),
// leaving every state-machine decision to the kernel that calls it.
package sched

// Scheduler is a FIFO queue of pids waiting for the CPU.
type Scheduler struct {
	queue []int
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Enqueue appends pid to the tail of the ready queue. The kernel is
// responsible for calling this only when the process's state is NEW or
// READY, per spec.md ยง4.7; Scheduler itself has no way to check that.
func (s *Scheduler) Enqueue(pid int) {
	s.queue = append(s.queue, pid)
}

// Dequeue removes and returns the pid at the head of the queue, or (0,
// false) if the queue is empty.
func (s *Scheduler) Dequeue() (int, bool) {
	if len(s.queue) == 0 {
		return 0, false
	}
	pid := s.queue[0]
	s.queue = s.queue[1:]
	return pid, true
}

// Remove deletes pid from the queue wherever it is, an O(n) scan the spec
// explicitly allows.
func (s *Scheduler) Remove(pid int) {
	for i, q := range s.queue {
		if q == pid {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// Len reports how many pids are currently waiting.
func (s *Scheduler) Len() int {
	return len(s.queue)
}

// Pids returns a snapshot copy of the queue contents, head first, for
// display/diagnostics.
func (s *Scheduler) Pids() []int {
	out := make([]int, len(s.queue))
	copy(out, s.queue)
	return out
}

// ShouldPreempt always returns false: FCFS is non-preemptive (spec.md ยง4.7).
func (s *Scheduler) ShouldPreempt() bool {
	return false
}
