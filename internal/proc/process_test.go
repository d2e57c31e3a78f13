package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessDefaults(t *testing.T) {
	p := New(1, 16, 10, 0, 0, 3)
	assert.Equal(t, 1, p.PID)
	assert.Equal(t, 16, p.SizeKB)
	assert.Equal(t, StateNew, p.State)
	assert.Equal(t, -1, p.StartTime)
	assert.Equal(t, -1, p.FinishTime)
}

func TestCPUBurstFallsBackToLifetime(t *testing.T) {
	p := New(1, 16, 10, 0, 0, 0)
	assert.Equal(t, 10, p.CPUBurst)
	assert.Equal(t, 10, p.RemainingCPU)

	p2 := New(2, 16, 10, 0, 4, 0)
	assert.Equal(t, 4, p2.CPUBurst)
	assert.Equal(t, 4, p2.RemainingCPU)
}

func TestLegalTransitions(t *testing.T) {
	p := New(1, 16, 10, 0, 0, 0)
	require.Equal(t, StateNew, p.State)

	p.Transition(Ready, 1)
	assert.Equal(t, Ready, p.State)

	p.Transition(Running, 2)
	assert.Equal(t, Running, p.State)

	p.Transition(Blocked, 3)
	assert.Equal(t, Blocked, p.State)

	p.Transition(Ready, 4)
	assert.Equal(t, Ready, p.State)

	p.Transition(Terminated, 5)
	assert.Equal(t, Terminated, p.State)

	require.Len(t, p.Timeline, 5)
	assert.Equal(t, 5, p.Timeline[4].Tick)
}

func TestIllegalTransitionPanics(t *testing.T) {
	p := New(1, 16, 10, 0, 0, 0)
	p.Transition(Terminated, 1)
	assert.Panics(t, func() {
		p.Transition(Ready, 2)
	})
}

func TestSuspendFromReadyIsLegal(t *testing.T) {
	p := New(1, 16, 10, 0, 0, 0)
	p.Transition(Ready, 1)
	p.Transition(Blocked, 2)
	assert.Equal(t, Blocked, p.State)
}

func TestResidentPages(t *testing.T) {
	p := New(1, 16, 10, 0, 0, 0)
	p.PagesInRAM[0] = true
	p.PagesInRAM[1] = true
	p.PagesInSwap[2] = true
	assert.Equal(t, 3, p.ResidentPages())
}
