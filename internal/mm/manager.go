// Package mm implements the MemoryManager (C5): admission, RAM/swap
// placement, LRU victim selection, and page-fault handling. It mutates the
// Process and PageTable values it is handed directly — it does not keep its
// own copy of process state — but it never holds a process reference across
// calls, matching biscuit's split between mem (frame allocation mechanism)
// and the higher-level address-space code that decides when to call it.
package mm

import (
	"ksim/internal/memstore"
	"ksim/internal/proc"
	"ksim/internal/util"
	"ksim/internal/vm"
)

// ProcessLookup resolves a pid to its owning Process. The kernel's process
// table satisfies this; MemoryManager never stores the table, only borrows
// it for the duration of one call, so an LRU victim belonging to some other
// process can be swapped out without MemoryManager owning that process.
type ProcessLookup interface {
	Lookup(pid int) (*proc.Process, bool)
}

// AdmitResult is the outcome of TryAdmit, one of the three admission paths
// spec.md ยง4.2 defines.
type AdmitResult int

const (
	Rejected AdmitResult = iota
	Admitted
	WaitingNoCapacity
)

// MemoryManager owns the RAM and swap frame arrays and the policy for
// moving pages between them.
type MemoryManager struct {
	ram        *memstore.Store
	swap       *memstore.Store
	pageKB     int
	totalSwaps int
}

// New sizes RAM and swap in frames of pageKB each.
func New(ramKB, swapKB, pageKB int) *MemoryManager {
	return &MemoryManager{
		ram:    memstore.New(ramKB / pageKB),
		swap:   memstore.New(swapKB / pageKB),
		pageKB: pageKB,
	}
}

// RAM exposes the RAM store for read-only inspection (snapshot, invariants).
func (m *MemoryManager) RAM() *memstore.Store { return m.ram }

// Swap exposes the swap store for read-only inspection.
func (m *MemoryManager) Swap() *memstore.Store { return m.swap }

// TotalSwaps is the running count of successful SwapOut calls (pages moved
// from RAM to swap).
func (m *MemoryManager) TotalSwaps() int { return m.totalSwaps }

// CapacityKB returns the total RAM+swap capacity in KB, used by the
// rejection test in TryAdmit.
func (m *MemoryManager) CapacityKB() int {
	return (m.ram.Capacity() + m.swap.Capacity()) * m.pageKB
}

// TryAdmit implements spec.md ยง4.2's allocate() outcomes except for the
// REJECTED/TERMINATED and WAITING state transitions themselves, which the
// kernel performs after inspecting the returned AdmitResult. On Admitted,
// p.PageTable and p.PagesInRAM are fully populated; on any other result p
// is left completely untouched, satisfying the atomic-rollback requirement
// of spec.md ยง5.
func (m *MemoryManager) TryAdmit(p *proc.Process, lookup ProcessLookup, now int) AdmitResult {
	if p.SizeKB > m.CapacityKB() {
		return Rejected
	}
	numPages := util.CeilDiv(p.SizeKB, m.pageKB)

	free := m.ram.Free()
	if free < numPages {
		needed := numPages - free
		if m.swap.Free() < needed {
			return WaitingNoCapacity
		}
	}

	p.NumPages = numPages
	p.PageTable = vm.New(numPages)

	if free < numPages {
		needed := numPages - free
		for i := 0; i < needed; i++ {
			if !m.evictOne(lookup, p.PID, now) {
				// swap.Free() was checked above, so this should not
				// happen; surfacing it as a waiting condition is safer
				// than leaving RAM/swap partially touched.
				p.NumPages = 0
				p.PageTable = nil
				return WaitingNoCapacity
			}
		}
	}

	pages := make([]int, numPages)
	for i := range pages {
		pages[i] = i
	}
	if !m.InstallToRAM(p, pages, now) {
		p.NumPages = 0
		p.PageTable = nil
		return WaitingNoCapacity
	}
	return Admitted
}

// InstallToRAM implements spec.md ยง4.3: each page gets the lowest-indexed
// free frame. If the store runs out partway through, every frame claimed
// during this call is released before returning false, so a partial
// failure never leaves RAM or the page table inconsistent.
func (m *MemoryManager) InstallToRAM(p *proc.Process, pages []int, now int) bool {
	claimed := make([]int, 0, len(pages))
	for _, pg := range pages {
		idx, ok := m.ram.AllocateLowest(p.PID, pg, now)
		if !ok {
			for _, c := range claimed {
				m.ram.Release(c)
			}
			for _, pg2 := range pages[:len(claimed)] {
				e := p.PageTable.Entry(pg2)
				*e = vm.Entry{Frame: vm.NoFrame, SwapLoc: vm.NoSwapSlot}
				delete(p.PagesInRAM, pg2)
			}
			return false
		}
		claimed = append(claimed, idx)
		e := p.PageTable.Entry(pg)
		e.Frame = idx
		e.InRAM = true
		e.SwapLoc = vm.NoSwapSlot
		e.LastAccess = now
		p.PagesInRAM[pg] = true
		p.LastAccessTime[pg] = now
	}
	return true
}

// PickVictim implements spec.md ยง4.4: scan every resident (pid, page) pair
// except those owned by excludePid, choose the minimum last_access_time,
// tie-broken by lowest pid then lowest page number.
func (m *MemoryManager) PickVictim(excludePid int) (pid, page int, ok bool) {
	best := -1
	var bestPid, bestPage, bestAccess int
	m.ram.Each(func(idx int, f *memstore.Frame) {
		if f.Pid == excludePid {
			return
		}
		better := best == -1 ||
			f.LastAccess < bestAccess ||
			(f.LastAccess == bestAccess && f.Pid < bestPid) ||
			(f.LastAccess == bestAccess && f.Pid == bestPid && f.Page < bestPage)
		if better {
			best = idx
			bestPid, bestPage, bestAccess = f.Pid, f.Page, f.LastAccess
		}
	})
	if best == -1 {
		return 0, 0, false
	}
	return bestPid, bestPage, true
}

// evictOne picks a victim via PickVictim, resolves its owning process
// through lookup, and swaps that single page out. Returns false if there is
// no eligible victim at all.
func (m *MemoryManager) evictOne(lookup ProcessLookup, excludePid, now int) bool {
	victimPid, victimPage, ok := m.PickVictim(excludePid)
	if !ok {
		return false
	}
	victim, found := lookup.Lookup(victimPid)
	if !found {
		panic("mm: LRU victim pid not present in the process table")
	}
	return m.SwapOut(victim, victimPage, now)
}

// SwapOut implements spec.md ยง4.5: move one resident page to swap. Fails
// (without mutating anything) if swap is full.
func (m *MemoryManager) SwapOut(p *proc.Process, page int, now int) bool {
	e := p.PageTable.Entry(page)
	if !e.InRAM {
		panic("mm: SwapOut of a page that is not resident")
	}
	slot, ok := m.swap.AllocateLowest(p.PID, page, now)
	if !ok {
		return false
	}
	m.ram.Release(e.Frame)
	e.Frame = vm.NoFrame
	e.SwapLoc = slot
	e.InRAM = false
	delete(p.PagesInRAM, page)
	p.PagesInSwap[page] = true
	m.totalSwaps++
	return true
}

// SwapIn implements spec.md ยง4.5: restore a swapped page to RAM, evicting
// another resident page first if RAM has no free frame. excludePid is
// always the pid owning `page` itself, since a process may not evict its
// own pages to make room for one of its other pages. The page's swap slot
// is freed before the eviction, so the victim can take that slot when swap
// is otherwise full; if no victim can be evicted, the slot is restored.
func (m *MemoryManager) SwapIn(p *proc.Process, page int, lookup ProcessLookup, now int) bool {
	e := p.PageTable.Entry(page)
	if e.SwapLoc == vm.NoSwapSlot {
		panic("mm: SwapIn of a page with no swap location")
	}
	slot := e.SwapLoc
	saved := *m.swap.Frame(slot)
	m.swap.Release(slot)
	if m.ram.Free() == 0 {
		if !m.evictOne(lookup, p.PID, now) {
			*m.swap.Frame(slot) = saved
			return false
		}
	}
	idx, ok := m.ram.AllocateLowest(p.PID, page, now)
	if !ok {
		// evictOne just freed a frame; this would mean a concurrent
		// mutation, impossible under the single-threaded model.
		panic("mm: no free frame immediately after eviction")
	}
	e.Frame = idx
	e.SwapLoc = vm.NoSwapSlot
	e.InRAM = true
	e.LastAccess = now
	delete(p.PagesInSwap, page)
	p.PagesInRAM[page] = true
	p.LastAccessTime[page] = now
	return true
}

// InstallOnePage loads a page that has never been resident (absent from
// both RAM and swap), evicting a victim first if RAM is full.
func (m *MemoryManager) InstallOnePage(p *proc.Process, page int, lookup ProcessLookup, now int) bool {
	if m.ram.Free() == 0 {
		if !m.evictOne(lookup, p.PID, now) {
			return false
		}
	}
	return m.InstallToRAM(p, []int{page}, now)
}

// AccessPage implements spec.md ยง4.6's translation step (hit vs fault) for
// a page that already has a page table. It does not touch kernel-level
// counters (memory_accesses, total_page_faults); the kernel adds those
// after calling this, since they are kernel-wide, not memory-manager state.
func (m *MemoryManager) AccessPage(p *proc.Process, page int, lookup ProcessLookup, now int) (fault bool, ok bool) {
	e := p.PageTable.Entry(page)
	if e.InRAM {
		e.LastAccess = now
		p.LastAccessTime[page] = now
		m.ram.Touch(e.Frame, now)
		return false, true
	}

	p.PageFaults++
	if e.SwapLoc != vm.NoSwapSlot {
		return true, m.SwapIn(p, page, lookup, now)
	}
	return true, m.InstallOnePage(p, page, lookup, now)
}

// Release frees every RAM frame and swap slot a process holds and clears
// its page table, used by force-termination (spec.md ยง4.11).
func (m *MemoryManager) Release(p *proc.Process) {
	if p.PageTable == nil {
		return
	}
	for page := range p.PagesInRAM {
		e := p.PageTable.Entry(page)
		m.ram.Release(e.Frame)
	}
	for page := range p.PagesInSwap {
		e := p.PageTable.Entry(page)
		m.swap.Release(e.SwapLoc)
	}
	p.PagesInRAM = make(map[int]bool)
	p.PagesInSwap = make(map[int]bool)
	p.PageTable = nil
}
