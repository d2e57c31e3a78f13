// Package proc defines the process record and its closed state machine.
//
// A Process is owned exclusively by the kernel; every other component
// (scheduler ready queue, CPU, semaphore wait queues, kernel waiting/blocked
// lists) refers to a process only by its pid, never by pointer. This mirrors
// biscuit's distinction between the process table (the owner) and the many
// places that hold a bare pid and resolve it through the owner when they
// need to act on it.
package proc

import (
	"fmt"

	"ksim/internal/vm"
)

// ProcessState is a closed enumeration; there is no representation for a
// state outside this set, and Transition rejects any move not in legalMoves.
type ProcessState int

const (
	StateNew ProcessState = iota
	Ready
	Running
	Blocked
	Waiting
	Terminated
)

func (s ProcessState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Waiting:
		return "WAITING"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// TerminationCause is a closed enumeration of why a process left the
// system. CauseNone marks a process that has not terminated.
type TerminationCause int

const (
	CauseNone TerminationCause = iota
	Completed
	Forced
	ErrorCause
	Deadlock
	Timeout
)

func (c TerminationCause) String() string {
	switch c {
	case CauseNone:
		return "NONE"
	case Completed:
		return "COMPLETED"
	case Forced:
		return "FORCED"
	case ErrorCause:
		return "ERROR"
	case Deadlock:
		return "DEADLOCK"
	case Timeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// BlockedSuspended is the sentinel recorded in Process.BlockedOn when a
// process is blocked by Kernel.Suspend rather than by a semaphore wait.
const BlockedSuspended = "suspended"

// legalMoves enumerates every transition the state machine accepts; any pair
// not present is rejected by Transition. This makes illegal moves (e.g.
// Terminated -> Ready) explicitly rejected rather than merely unused.
var legalMoves = map[ProcessState]map[ProcessState]bool{
	StateNew:   {Ready: true, Waiting: true, Terminated: true},
	Ready:      {Running: true, Blocked: true, Terminated: true},
	Running:    {Ready: true, Blocked: true, Terminated: true},
	Blocked:    {Ready: true, Terminated: true},
	Waiting:    {Ready: true, Terminated: true},
	Terminated: {},
}

// Process is the kernel's record for one simulated process. Every field is
// mutated only by the kernel; other components read fields of a Process
// they are handed but must not write to them.
type Process struct {
	PID      int
	SizeKB   int
	NumPages int
	Priority int

	CPUBurst         int
	CPUBurstOriginal int
	RemainingCPU     int
	Lifetime         int
	RemainingLifetime int

	ArrivalTime int
	StartTime   int // -1 until first dispatch
	FinishTime  int // -1 until termination
	WaitingTime int
	TurnaroundTime int

	PageTable   *vm.PageTable
	PagesInRAM  map[int]bool
	PagesInSwap map[int]bool

	LastAccessTime map[int]int
	PageFaults     int

	BlockedOn string // semaphore name, BlockedSuspended, or ""
	State     ProcessState
	Cause     TerminationCause

	// Admitted records whether this process ever successfully passed
	// allocate()'s admission check. It distinguishes a rejected process
	// (never admitted) from one that ran and later terminated for any
	// other reason, for the process-accounting property in spec.md ยง8.
	Admitted bool

	// Timeline is a diagnostics-only append log of (tick, state); nothing
	// in scheduling or memory management ever reads it back. Mirrors
	// biscuit's Accnt_t, which only ever accumulates for later reporting.
	Timeline []StateChange
}

// StateChange records one transition for the diagnostics timeline.
type StateChange struct {
	Tick  int
	State ProcessState
}

// New constructs a brand-new process in state New. cpuBurst of zero means
// "run until lifetime expires", matching spec's remaining_cpu = cpu_burst ?? lifetime.
func New(pid, sizeKB, lifetime, priority, cpuBurst, arrival int) *Process {
	burst := cpuBurst
	if burst <= 0 {
		burst = lifetime
	}
	return &Process{
		PID:               pid,
		SizeKB:            sizeKB,
		Priority:          priority,
		CPUBurst:          burst,
		CPUBurstOriginal:  burst,
		RemainingCPU:      burst,
		Lifetime:          lifetime,
		RemainingLifetime: lifetime,
		ArrivalTime:       arrival,
		StartTime:         -1,
		FinishTime:        -1,
		PagesInRAM:        make(map[int]bool),
		PagesInSwap:       make(map[int]bool),
		LastAccessTime:    make(map[int]int),
		State:             StateNew,
	}
}

// Transition moves the process to 'to', recording the tick it happened at.
// It panics if the move is not in legalMoves: an illegal transition is a
// bug in the caller (the kernel), not a domain error.
func (p *Process) Transition(to ProcessState, now int) {
	if !legalMoves[p.State][to] {
		panic(fmt.Sprintf("proc: illegal transition pid=%d %s -> %s", p.PID, p.State, to))
	}
	p.State = to
	p.Timeline = append(p.Timeline, StateChange{Tick: now, State: to})
}

// ResidentPages returns the total number of pages this process currently
// has loaded, in RAM or in swap.
func (p *Process) ResidentPages() int {
	return len(p.PagesInRAM) + len(p.PagesInSwap)
}
