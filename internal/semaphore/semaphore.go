// Package semaphore implements a counting semaphore with a strict FIFO
// wait queue and an append-only event log (C8). The shape — a value, a
// waiter list, and a per-semaphore audit trail — follows gVisor's System V
// semaphore implementation (pkg/sentry/kernel/semaphore), simplified for a
// single-threaded simulator: there is no blocking channel per waiter
// because nothing here ever actually suspends a goroutine. Wait and Signal
// only ever report who *should* block or unblock; the kernel performs that
// process's state transition and queue movement.
package semaphore

import "fmt"

// Semaphore is one named counting semaphore.
type Semaphore struct {
	name      string
	value     int
	waitQueue []int
	events    []string
}

// New creates a semaphore with the given initial value, which must be >= 0.
func New(name string, initial int) *Semaphore {
	if initial < 0 {
		panic("semaphore: initial value must be >= 0")
	}
	s := &Semaphore{name: name, value: initial}
	s.log("CREATED init=%d", initial)
	return s
}

// Name returns the semaphore's registry key.
func (s *Semaphore) Name() string { return s.name }

// Value returns the current integer value.
func (s *Semaphore) Value() int { return s.value }

// WaitQueue returns a snapshot of the pids waiting, head first.
func (s *Semaphore) WaitQueue() []int {
	out := make([]int, len(s.waitQueue))
	copy(out, s.waitQueue)
	return out
}

// Events returns the append-only audit log for this semaphore.
func (s *Semaphore) Events() []string {
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Semaphore) log(format string, args ...any) {
	s.events = append(s.events, fmt.Sprintf(format, args...))
}

// Wait implements spec.md ยง4.9's P operation for pid. It decrements value;
// if the result is negative, pid is appended to the wait queue and Wait
// returns false, meaning the caller must move pid out of the scheduler
// (and release the CPU if pid was running) and record blocked_on = name.
// Otherwise it returns true and pid proceeds unblocked.
func (s *Semaphore) Wait(pid int) bool {
	s.value--
	if s.value < 0 {
		s.waitQueue = append(s.waitQueue, pid)
		s.log("WAIT_BLOCK pid=%d value=%d", pid, s.value)
		return false
	}
	s.log("WAIT pid=%d value=%d", pid, s.value)
	return true
}

// Signal implements spec.md ยง4.9's V operation. It increments value; if
// anyone was waiting, the head of the FIFO queue is popped and returned so
// the kernel can re-enqueue it in the scheduler. Signal returns (0, false)
// if nobody was waiting.
func (s *Semaphore) Signal() (pid int, woke bool) {
	s.value++
	if len(s.waitQueue) == 0 {
		s.log("SIGNAL value=%d", s.value)
		return 0, false
	}
	pid = s.waitQueue[0]
	s.waitQueue = s.waitQueue[1:]
	s.log("SIGNAL_UNBLOCK pid=%d value=%d", pid, s.value)
	return pid, true
}

// Remove deletes pid from the wait queue without affecting value, used when
// a blocked process is force-terminated out from under the semaphore.
func (s *Semaphore) Remove(pid int) {
	for i, q := range s.waitQueue {
		if q == pid {
			s.waitQueue = append(s.waitQueue[:i], s.waitQueue[i+1:]...)
			return
		}
	}
}
