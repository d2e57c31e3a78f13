package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	s := New()
	s.Enqueue(1)
	s.Enqueue(2)
	s.Enqueue(3)

	pid, ok := s.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, pid)

	assert.Equal(t, []int{2, 3}, s.Pids())
}

func TestDequeueEmpty(t *testing.T) {
	s := New()
	_, ok := s.Dequeue()
	assert.False(t, ok)
}

func TestRemoveFromMiddle(t *testing.T) {
	s := New()
	s.Enqueue(1)
	s.Enqueue(2)
	s.Enqueue(3)
	s.Remove(2)
	assert.Equal(t, []int{1, 3}, s.Pids())
	assert.Equal(t, 2, s.Len())
}

func TestShouldPreemptAlwaysFalse(t *testing.T) {
	s := New()
	assert.False(t, s.ShouldPreempt())
}
