// Package kernel implements the orchestrator (C10): it owns every other
// subsystem, exposes the operational API spec.md ยง6 names, and is the only
// thing in this repo allowed to mutate a Process's state field, per the
// ownership design note in spec.md ยง9. Every other package in this module
// is deliberately "dumb" — sched, cpu, semaphore, sharedbuf, mm all accept
// or return bare pids/values and let Kernel make the state-machine calls.
package kernel

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ksim/internal/clock"
	"ksim/internal/config"
	"ksim/internal/cpu"
	"ksim/internal/klog"
	"ksim/internal/mm"
	"ksim/internal/proc"
	"ksim/internal/sched"
	"ksim/internal/semaphore"
	"ksim/internal/sharedbuf"
)

// Stats is the read-only statistics view inside Snapshot.
type Stats struct {
	TotalTicks          int
	Utilization         float64
	ContextSwitches     int
	TotalPageFaults     int
	MemoryAccesses      int
	PageFaultRate       float64
	TotalSwaps          int
	CompletedProcesses  int
	RejectedProcesses   int
	ForcedTerminations  int
	DeadlocksDetected   int
	RAMUsed, RAMFree     int
	SwapUsed, SwapFree   int
	TotalProcessesCreated int
}

// Snapshot is the display-oriented view spec.md ยง6 names: cpu, ram, swap,
// scheduler, stats. The pretty-printing of this value is out of scope
// (spec.md ยง1); Snapshot only exposes the data.
type Snapshot struct {
	CPUCurrent   int
	CPUIdle      bool
	ReadyQueue   []int
	WaitingQueue []int
	BlockedList  []int
	Stats        Stats
}

// Kernel is the orchestrator and exclusive owner of every process record,
// page table, RAM/swap frame, semaphore, and buffer in the simulation.
type Kernel struct {
	cfg    config.Config
	clock  *clock.Clock
	mm     *mm.MemoryManager
	sched  *sched.Scheduler
	cpu    *cpu.CPU
	logger *zap.Logger
	sink   klog.Sink

	processes map[int]*proc.Process
	nextPid   int

	waitingQueue []int
	blockedList  []int

	semaphores map[string]*semaphore.Semaphore
	buffers    map[string]*sharedbuf.SharedBuffer

	totalPageFaults     int
	memoryAccesses      int
	completedProcesses  int
	rejectedProcesses   int
	forcedTerminations  int
	deadlocksDetected   int

	// strict enables the post-operation invariant sweep (spec.md ยง8). It
	// defaults to true; tests that want to inspect a deliberately broken
	// intermediate state can turn it off.
	strict bool
}

// New constructs a Kernel from a validated Config. logger must not be nil;
// pass zap.NewNop() for tests that don't care about operational logs. sink
// receives the domain event log (spec.md ยง6); pass klog.NullSink{} to
// disable it.
func New(cfg config.Config, logger *zap.Logger, sink klog.Sink) *Kernel {
	k := &Kernel{
		cfg:        cfg,
		clock:      clock.New(),
		mm:         mm.New(cfg.Memory.RAMKB, cfg.Memory.SwapKB, cfg.Memory.PageKB),
		sched:      sched.New(),
		cpu:        cpu.New(),
		logger:     logger,
		sink:       sink,
		processes:  make(map[int]*proc.Process),
		semaphores: make(map[string]*semaphore.Semaphore),
		buffers:    make(map[string]*sharedbuf.SharedBuffer),
		strict:     true,
	}
	k.sink.Emit(k.clock.Now(), "SIMULATOR_STARTED")
	return k
}

// SetStrict toggles the post-operation invariant sweep.
func (k *Kernel) SetStrict(strict bool) { k.strict = strict }

// Lookup satisfies mm.ProcessLookup so the memory manager can resolve an
// LRU victim pid discovered during its own scan.
func (k *Kernel) Lookup(pid int) (*proc.Process, bool) {
	p, ok := k.processes[pid]
	return p, ok
}

// Now returns the current simulated tick.
func (k *Kernel) Now() int { return k.clock.Now() }

// Process returns the process record for pid, for callers (tests, a
// driver) that only have the pid on hand.
func (k *Kernel) Process(pid int) (*proc.Process, bool) {
	return k.Lookup(pid)
}

// Shutdown flushes the event sink. Not part of spec.md's API surface, but
// a complete repo needs a way to release the log file handle.
func (k *Kernel) Shutdown() error {
	k.sink.Emit(k.clock.Now(), "SIMULATOR_FINISHED")
	return k.sink.Close()
}

// Create implements spec.md ยง4.2's create().
func (k *Kernel) Create(sizeKB, lifetime, priority, cpuBurst int) *proc.Process {
	k.nextPid++
	p := proc.New(k.nextPid, sizeKB, lifetime, priority, cpuBurst, k.clock.Now())
	k.processes[p.PID] = p
	k.sink.Emit(k.clock.Now(), fmt.Sprintf("PROCESS_CREATED pid=%d size_kb=%d lifetime=%d priority=%d", p.PID, sizeKB, lifetime, priority))
	return p
}

// Allocate implements spec.md ยง4.2's allocate().
func (k *Kernel) Allocate(p *proc.Process) bool {
	now := k.clock.Now()
	switch k.mm.TryAdmit(p, k, now) {
	case mm.Rejected:
		p.Transition(proc.Terminated, now)
		p.Cause = proc.ErrorCause
		p.FinishTime = now
		k.rejectedProcesses++
		k.sink.Emit(now, fmt.Sprintf("REJECTED pid=%d size_kb=%d", p.PID, p.SizeKB))
		k.checkInvariants()
		return false
	case mm.WaitingNoCapacity:
		p.Transition(proc.Waiting, now)
		k.waitingQueue = append(k.waitingQueue, p.PID)
		k.sink.Emit(now, fmt.Sprintf("QUEUED pid=%d", p.PID))
		k.checkInvariants()
		return false
	default: // mm.Admitted
		p.Admitted = true
		p.Transition(proc.Ready, now)
		k.sched.Enqueue(p.PID)
		k.sink.Emit(now, fmt.Sprintf("ALLOCATED pid=%d pages=%d", p.PID, p.NumPages))
		k.checkInvariants()
		return true
	}
}

// retryWaitingQueue implements spec.md ยง4.2's retry rule: "retried each
// time RAM or swap capacity is released; ordering is FIFO." Processes that
// still don't fit stay queued in their original relative order.
func (k *Kernel) retryWaitingQueue() {
	if len(k.waitingQueue) == 0 {
		return
	}
	now := k.clock.Now()
	pending := k.waitingQueue
	k.waitingQueue = nil
	for _, pid := range pending {
		p := k.processes[pid]
		switch k.mm.TryAdmit(p, k, now) {
		case mm.Admitted:
			p.Admitted = true
			p.Transition(proc.Ready, now)
			k.sched.Enqueue(p.PID)
			k.sink.Emit(now, fmt.Sprintf("ALLOCATED pid=%d pages=%d", p.PID, p.NumPages))
		default:
			k.waitingQueue = append(k.waitingQueue, pid)
		}
	}
}

// Suspend implements spec.md ยง4.11's suspend(). Suspending a process that
// is neither READY nor RUNNING is driver misuse: a soft no-op.
func (k *Kernel) Suspend(p *proc.Process) {
	if p.State != proc.Ready && p.State != proc.Running {
		return
	}
	now := k.clock.Now()
	if p.State == proc.Running {
		k.cpu.Release()
	} else {
		k.sched.Remove(p.PID)
	}
	p.Transition(proc.Blocked, now)
	p.BlockedOn = proc.BlockedSuspended
	k.blockedList = append(k.blockedList, p.PID)
	k.sink.Emit(now, fmt.Sprintf("SUSPENDED pid=%d", p.PID))
	k.checkInvariants()
}

// Resume implements spec.md ยง4.11's resume(). Resuming anything other than
// a BLOCKED/"suspended" process is driver misuse: a soft no-op.
func (k *Kernel) Resume(p *proc.Process) {
	if p.State != proc.Blocked || p.BlockedOn != proc.BlockedSuspended {
		return
	}
	now := k.clock.Now()
	removeFromSlice(&k.blockedList, p.PID)
	p.BlockedOn = ""
	p.Transition(proc.Ready, now)
	k.sched.Enqueue(p.PID)
	k.sink.Emit(now, fmt.Sprintf("RESUMED pid=%d", p.PID))
	k.checkInvariants()
}

// ForceTerminate implements spec.md ยง4.11's force_terminate(). Terminating
// an already-TERMINATED process is a no-op: a process leaves TERMINATED
// only by simulator teardown, never by re-entering the state machine.
func (k *Kernel) ForceTerminate(p *proc.Process, cause proc.TerminationCause) {
	if p.State == proc.Terminated {
		return
	}
	now := k.clock.Now()

	if p.State == proc.Running {
		k.cpu.Release()
	}
	k.sched.Remove(p.PID)
	removeFromSlice(&k.waitingQueue, p.PID)
	removeFromSlice(&k.blockedList, p.PID)
	for _, s := range k.semaphores {
		s.Remove(p.PID)
	}

	p.Transition(proc.Terminated, now)
	p.Cause = cause
	p.FinishTime = now
	if p.StartTime >= 0 {
		p.TurnaroundTime = p.FinishTime - p.ArrivalTime
		p.WaitingTime = p.TurnaroundTime - (p.CPUBurstOriginal - p.RemainingCPU)
	}

	k.mm.Release(p)
	k.forcedTerminations++
	k.sink.Emit(now, fmt.Sprintf("TERMINATED(%s) pid=%d", cause, p.PID))

	k.retryWaitingQueue()
	k.checkInvariants()
}

// TerminateNormal implements spec.md ยง4.11's terminate_normal(): choose a
// cause from remaining_cpu/remaining_lifetime, force-terminate, and also
// count the completion.
func (k *Kernel) TerminateNormal(p *proc.Process) {
	var cause proc.TerminationCause
	switch {
	case p.RemainingCPU <= 0:
		cause = proc.Completed
	case p.RemainingLifetime <= 0:
		cause = proc.Timeout
	default:
		cause = proc.ErrorCause
	}
	k.ForceTerminate(p, cause)
	k.completedProcesses++
}

// Tick implements spec.md ยง4.1/ยง4.8/ยง5's ordering: clock advance, waiting
// time accrual, dispatch-if-idle, one CPU cycle, completion check.
func (k *Kernel) Tick() {
	now := k.clock.Advance()

	for _, pid := range k.sched.Pids() {
		k.processes[pid].WaitingTime++
	}

	if k.cpu.Idle() {
		if pid, ok := k.sched.Dequeue(); ok {
			p := k.processes[pid]
			k.cpu.Assign(pid)
			p.Transition(proc.Running, now)
			if p.StartTime == -1 {
				p.StartTime = now
			}
			k.sink.Emit(now, fmt.Sprintf("CPU_ASSIGN pid=%d", pid))
		}
	}

	cur := k.cpu.Current()
	if cur != cpu.NoProcess {
		p := k.processes[cur]
		p.RemainingCPU--
		k.cpu.ExecuteCycle(true)
	} else {
		k.cpu.ExecuteCycle(false)
	}

	// remaining_lifetime is a wall-clock TTL, not an execution budget: it
	// counts down for every process still in the system regardless of
	// whether it currently holds the CPU (see DESIGN.md, "Decisions not
	// covered by an Open Question").
	for _, p := range k.processes {
		if p.State != proc.Terminated {
			p.RemainingLifetime--
		}
	}

	if cur != cpu.NoProcess {
		p := k.processes[cur]
		if p.RemainingCPU <= 0 {
			k.sink.Emit(now, fmt.Sprintf("CPU_RELEASE pid=%d", cur))
			k.TerminateNormal(p) // still RUNNING: ForceTerminate releases the CPU itself
			return
		}
	}
	k.checkInvariants()
}

// AccessPage implements spec.md ยง4.6. Accessing a process with no page
// table (terminated, or never admitted) is a no-op.
func (k *Kernel) AccessPage(p *proc.Process, page int) {
	if p.PageTable == nil || p.State == proc.Terminated {
		return
	}
	now := k.clock.Now()
	fault, ok := k.mm.AccessPage(p, page, k, now)
	k.memoryAccesses++
	if fault {
		k.totalPageFaults++
	}
	event := "hit"
	if fault {
		event = "fault"
	}
	if !ok {
		k.logger.Warn("access_page could not satisfy fault: RAM and swap both exhausted",
			zap.Int("pid", p.PID), zap.Int("page", page))
	}
	k.sink.Emit(now, fmt.Sprintf("ACCESS_PAGE pid=%d page=%d %s", p.PID, page, event))
	k.checkInvariants()
}

// PageFaultRate returns total_page_faults / memory_accesses, or 0 when
// there have been no accesses yet.
func (k *Kernel) PageFaultRate() float64 {
	if k.memoryAccesses == 0 {
		return 0
	}
	return float64(k.totalPageFaults) / float64(k.memoryAccesses)
}

// CreateSemaphore implements spec.md ยง6's create_semaphore(). Re-creating
// an existing name is driver misuse: soft-fail, existing semaphore
// untouched.
func (k *Kernel) CreateSemaphore(name string, init int) (*semaphore.Semaphore, bool) {
	if _, exists := k.semaphores[name]; exists {
		return nil, false
	}
	s := semaphore.New(name, init)
	k.semaphores[name] = s
	k.sink.Emit(k.clock.Now(), fmt.Sprintf("SEM_CREATED name=%s init=%d", name, init))
	return s, true
}

// SemaphoreWait implements spec.md ยง4.9's wait(), plus the caller-side
// effects it requires: dequeue from the scheduler, release the CPU if P
// was running, and record blocked_on.
func (k *Kernel) SemaphoreWait(p *proc.Process, name string) bool {
	s, ok := k.semaphores[name]
	if !ok || p.State == proc.Terminated {
		return false
	}
	if p.State != proc.Running && p.State != proc.Ready {
		return false // driver misuse: waiting while already blocked elsewhere
	}
	proceeds := s.Wait(p.PID)
	if !proceeds {
		now := k.clock.Now()
		if p.State == proc.Running {
			k.cpu.Release()
		} else {
			k.sched.Remove(p.PID)
		}
		p.Transition(proc.Blocked, now)
		p.BlockedOn = name
		k.sink.Emit(now, fmt.Sprintf("SEM_WAIT_BLOCK pid=%d sem=%s", p.PID, name))
	}
	k.checkInvariants()
	return proceeds
}

// SemaphoreSignal implements spec.md ยง4.9's signal(), plus re-enqueuing
// the woken process in the scheduler.
func (k *Kernel) SemaphoreSignal(p *proc.Process, name string) *proc.Process {
	s, ok := k.semaphores[name]
	if !ok {
		return nil
	}
	wokenPid, woke := s.Signal()
	if !woke {
		k.sink.Emit(k.clock.Now(), fmt.Sprintf("SEM_SIGNAL name=%s", name))
		return nil
	}
	woken, found := k.processes[wokenPid]
	if !found {
		panic("kernel: semaphore woke a pid absent from the process table")
	}
	woken.BlockedOn = ""
	woken.Transition(proc.Ready, k.clock.Now())
	k.sched.Enqueue(wokenPid)
	k.sink.Emit(k.clock.Now(), fmt.Sprintf("SEM_SIGNAL_UNBLOCK pid=%d sem=%s", wokenPid, name))
	k.checkInvariants()
	return woken
}

// CreateSharedBuffer implements spec.md ยง6's create_shared_buffer().
func (k *Kernel) CreateSharedBuffer(name string, size int) (*sharedbuf.SharedBuffer, bool) {
	if _, exists := k.buffers[name]; exists {
		return nil, false
	}
	b := sharedbuf.New(name, size)
	k.buffers[name] = b
	return b, true
}

// Buffer looks up a previously created shared buffer by name.
func (k *Kernel) Buffer(name string) (*sharedbuf.SharedBuffer, bool) {
	b, ok := k.buffers[name]
	return b, ok
}

// DetectDeadlock implements spec.md ยง4.12's global-stall heuristic.
func (k *Kernel) DetectDeadlock() []*proc.Process {
	blocked := map[int]bool{}
	for _, pid := range k.blockedList {
		blocked[pid] = true
	}
	for _, s := range k.semaphores {
		for _, pid := range s.WaitQueue() {
			blocked[pid] = true
		}
	}
	if len(blocked) == 0 {
		return nil
	}

	active := 0
	for _, p := range k.processes {
		if p.State != proc.Terminated {
			active++
		}
	}

	if len(blocked) >= active && k.sched.Len() == 0 && k.cpu.Idle() {
		k.deadlocksDetected++
		out := make([]*proc.Process, 0, len(blocked))
		for pid := range blocked {
			out = append(out, k.processes[pid])
		}
		k.sink.Emit(k.clock.Now(), fmt.Sprintf("DEADLOCK_DETECTED count=%d", len(out)))
		return out
	}
	return nil
}

// Snapshot implements spec.md ยง6's snapshot().
func (k *Kernel) Snapshot() Snapshot {
	return Snapshot{
		CPUCurrent:   k.cpu.Current(),
		CPUIdle:      k.cpu.Idle(),
		ReadyQueue:   k.sched.Pids(),
		WaitingQueue: append([]int(nil), k.waitingQueue...),
		BlockedList:  append([]int(nil), k.blockedList...),
		Stats: Stats{
			TotalTicks:            k.clock.Now(),
			Utilization:           k.cpu.Utilization(),
			ContextSwitches:       k.cpu.ContextSwitches(),
			TotalPageFaults:       k.totalPageFaults,
			MemoryAccesses:        k.memoryAccesses,
			PageFaultRate:         k.PageFaultRate(),
			TotalSwaps:            k.mm.TotalSwaps(),
			CompletedProcesses:    k.completedProcesses,
			RejectedProcesses:     k.rejectedProcesses,
			ForcedTerminations:    k.forcedTerminations,
			DeadlocksDetected:     k.deadlocksDetected,
			RAMUsed:               k.mm.RAM().Used(),
			RAMFree:               k.mm.RAM().Free(),
			SwapUsed:              k.mm.Swap().Used(),
			SwapFree:              k.mm.Swap().Free(),
			TotalProcessesCreated: k.nextPid,
		},
	}
}

func removeFromSlice(s *[]int, pid int) {
	for i, v := range *s {
		if v == pid {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return
		}
	}
}

// checkInvariants runs the testable properties of spec.md ยง8 and panics,
// through the structured logger, if any fail. This is the one place this
// simulator is allowed to crash its own host process, per spec.md ยง7's
// invariant-violation error kind.
func (k *Kernel) checkInvariants() {
	if !k.strict {
		return
	}
	if err := k.CheckInvariants(); err != nil {
		k.logger.Panic("invariant violation", zap.Error(errors.Wrap(err, "kernel: invariant sweep")))
	}
}

// CheckInvariants runs the universal properties from spec.md ยง8 that
// concern the CPU, RAM/swap residency and queue membership, and returns a
// combined error (via multierr) describing every violation found, or nil
// if none. The process-accounting sum and the total_swaps count are not
// checked here. Exported so tests can assert on it directly
// instead of only observing a panic.
func (k *Kernel) CheckInvariants() error {
	var errs error

	running := 0
	if !k.cpu.Idle() {
		running = 1
		if _, ok := k.processes[k.cpu.Current()]; !ok {
			errs = multierr.Append(errs, errors.New("cpu.current refers to an unknown pid"))
		} else if k.processes[k.cpu.Current()].State != proc.Running {
			errs = multierr.Append(errs, errors.New("cpu.current process is not in RUNNING state"))
		}
	}
	runningCount := 0
	for _, p := range k.processes {
		if p.State == proc.Running {
			runningCount++
		}
	}
	if runningCount != running {
		errs = multierr.Append(errs, errors.Errorf("expected %d RUNNING process(es), found %d", running, runningCount))
	}

	seenRAM := map[int]bool{}
	for pid, p := range k.processes {
		for page := range p.PagesInRAM {
			if p.PagesInSwap[page] {
				errs = multierr.Append(errs, errors.Errorf("pid=%d page=%d is in both RAM and swap sets", pid, page))
			}
			e := p.PageTable.Entry(page)
			f := k.mm.RAM().Frame(e.Frame)
			if !f.Occupied || f.Pid != pid || f.Page != page {
				errs = multierr.Append(errs, errors.Errorf("pid=%d page=%d page table points at an inconsistent RAM frame", pid, page))
			}
			seenRAM[e.Frame] = true
		}
		for page := range p.PagesInSwap {
			e := p.PageTable.Entry(page)
			s := k.mm.Swap().Frame(e.SwapLoc)
			if !s.Occupied || s.Pid != pid || s.Page != page {
				errs = multierr.Append(errs, errors.Errorf("pid=%d page=%d page table points at an inconsistent swap slot", pid, page))
			}
		}
	}

	locations := map[int]int{} // pid -> number of queues it appears in
	locations[0] = 0
	count := func(pid int) { locations[pid]++ }
	for _, pid := range k.sched.Pids() {
		count(pid)
	}
	for _, pid := range k.waitingQueue {
		count(pid)
	}
	for _, pid := range k.blockedList {
		count(pid)
	}
	for _, s := range k.semaphores {
		for _, pid := range s.WaitQueue() {
			count(pid)
		}
	}
	for pid, n := range locations {
		if pid != 0 && n > 1 {
			errs = multierr.Append(errs, errors.Errorf("pid=%d appears in %d queues simultaneously", pid, n))
		}
	}

	for pid, p := range k.processes {
		if p.State == proc.Terminated {
			if p.PageTable != nil || len(p.PagesInRAM) != 0 || len(p.PagesInSwap) != 0 {
				errs = multierr.Append(errs, errors.Errorf("pid=%d is TERMINATED but still holds memory", pid))
			}
			if locations[pid] != 0 {
				errs = multierr.Append(errs, errors.Errorf("pid=%d is TERMINATED but still queued", pid))
			}
		}
	}

	return errs
}
