package mm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ksim/internal/proc"
	"ksim/internal/vm"
)

// fakeTable is a minimal ProcessLookup double for tests that need to
// resolve an LRU victim belonging to a process other than the one under
// test.
type fakeTable map[int]*proc.Process

func (t fakeTable) Lookup(pid int) (*proc.Process, bool) {
	p, ok := t[pid]
	return p, ok
}

func TestTryAdmitRejectsOversizedProcess(t *testing.T) {
	m := New(16, 16, 4) // 4 RAM + 4 swap frames
	p := proc.New(1, 1000, 10, 0, 0, 0)
	lookup := fakeTable{1: p}

	result := m.TryAdmit(p, lookup, 0)
	assert.Equal(t, Rejected, result)
	assert.Equal(t, 0, p.NumPages)
	assert.Nil(t, p.PageTable)
}

func TestTryAdmitFitsEntirelyInRAM(t *testing.T) {
	m := New(16, 16, 4)
	p := proc.New(1, 8, 10, 0, 0, 0)
	lookup := fakeTable{1: p}

	result := m.TryAdmit(p, lookup, 0)
	require.Equal(t, Admitted, result)
	assert.Equal(t, 2, p.NumPages)
	require.NotNil(t, p.PageTable)
	assert.Len(t, p.PagesInRAM, 2)
	assert.Equal(t, 2, m.RAM().Used())
}

func TestTryAdmitWaitsWhenNeitherRAMNorSwapHasRoom(t *testing.T) {
	m := New(8, 0, 4) // 2 RAM frames, no swap at all
	p1 := proc.New(1, 8, 10, 0, 0, 0)
	lookup := fakeTable{1: p1}
	require.Equal(t, Admitted, m.TryAdmit(p1, lookup, 0))

	p2 := proc.New(2, 8, 10, 0, 0, 0)
	lookup[2] = p2
	result := m.TryAdmit(p2, lookup, 1)
	assert.Equal(t, WaitingNoCapacity, result)
	assert.Equal(t, 0, p2.NumPages)
	assert.Nil(t, p2.PageTable)
}

func TestTryAdmitEvictsToSwapWhenRAMIsFullButSwapHasRoom(t *testing.T) {
	m := New(8, 8, 4) // 2 RAM frames, 2 swap frames
	p1 := proc.New(1, 8, 10, 0, 0, 0)
	lookup := fakeTable{1: p1}
	require.Equal(t, Admitted, m.TryAdmit(p1, lookup, 0))
	// Touch page 1 more recently than page 0 so page 0 is the LRU victim.
	m.AccessPage(p1, 1, lookup, 5)

	p2 := proc.New(2, 4, 10, 0, 0, 1)
	lookup[2] = p2
	result := m.TryAdmit(p2, lookup, 6)
	require.Equal(t, Admitted, result)

	assert.Len(t, p1.PagesInSwap, 1, "page 0 of p1 should have been swapped out")
	assert.Contains(t, p1.PagesInSwap, 0)
	assert.Equal(t, 1, m.TotalSwaps())
}

func TestPickVictimExcludesGivenPidAndBreaksTiesByPidThenPage(t *testing.T) {
	m := New(12, 0, 4) // 3 frames
	p1 := proc.New(1, 8, 10, 0, 0, 0)
	p2 := proc.New(2, 4, 10, 0, 0, 0)
	lookup := fakeTable{1: p1, 2: p2}
	require.Equal(t, Admitted, m.TryAdmit(p1, lookup, 0)) // pages 0,1 at time 0
	require.Equal(t, Admitted, m.TryAdmit(p2, lookup, 0)) // page 0 at time 0

	pid, page, ok := m.PickVictim(0)
	require.True(t, ok)
	// All three frames share LastAccess=0; lowest pid wins, then lowest page.
	assert.Equal(t, 1, pid)
	assert.Equal(t, 0, page)

	pid, page, ok = m.PickVictim(1)
	require.True(t, ok)
	assert.Equal(t, 2, pid)
	assert.Equal(t, 0, page)
}

func TestSwapOutOfNonResidentPagePanics(t *testing.T) {
	m := New(8, 8, 4)
	p := proc.New(1, 8, 10, 0, 0, 0)
	lookup := fakeTable{1: p}
	require.Equal(t, Admitted, m.TryAdmit(p, lookup, 0))
	// Manually swap page 0 out first, then try again.
	require.True(t, m.SwapOut(p, 0, 1))
	assert.Panics(t, func() { m.SwapOut(p, 0, 2) })
}

func TestAccessPageHitDoesNotFault(t *testing.T) {
	m := New(8, 8, 4)
	p := proc.New(1, 8, 10, 0, 0, 0)
	lookup := fakeTable{1: p}
	require.Equal(t, Admitted, m.TryAdmit(p, lookup, 0))

	fault, ok := m.AccessPage(p, 0, lookup, 1)
	assert.False(t, fault)
	assert.True(t, ok)
}

func TestAccessPageFaultsOnSwappedPageAndBringsItBack(t *testing.T) {
	m := New(8, 8, 4)
	p := proc.New(1, 8, 10, 0, 0, 0)
	lookup := fakeTable{1: p}
	require.Equal(t, Admitted, m.TryAdmit(p, lookup, 0))
	require.True(t, m.SwapOut(p, 0, 1))

	fault, ok := m.AccessPage(p, 0, lookup, 2)
	assert.True(t, fault)
	assert.True(t, ok)
	assert.True(t, p.PagesInRAM[0])
	assert.False(t, p.PagesInSwap[0])
}

func TestReleaseFreesAllFramesAndClearsPageTable(t *testing.T) {
	m := New(8, 8, 4)
	p := proc.New(1, 8, 10, 0, 0, 0)
	lookup := fakeTable{1: p}
	require.Equal(t, Admitted, m.TryAdmit(p, lookup, 0))
	require.True(t, m.SwapOut(p, 0, 1))

	m.Release(p)
	assert.Nil(t, p.PageTable)
	assert.Empty(t, p.PagesInRAM)
	assert.Empty(t, p.PagesInSwap)
	assert.Equal(t, 0, m.RAM().Used())
	assert.Equal(t, 0, m.Swap().Used())
}

func TestInstallToRAMRollsBackOnPartialFailure(t *testing.T) {
	m := New(4, 0, 4) // 1 RAM frame only
	p := proc.New(1, 8, 10, 0, 0, 0)
	p.NumPages = 2
	p.PageTable = vm.New(2)

	ok := m.InstallToRAM(p, []int{0, 1}, 0)
	assert.False(t, ok)
	assert.Empty(t, p.PagesInRAM, "a partially-claimed install must roll back completely")
	assert.Equal(t, 0, m.RAM().Used())
}
