package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateLowestFreeFrame(t *testing.T) {
	s := New(3)
	assert.Equal(t, 3, s.Free())

	i0, ok := s.AllocateLowest(1, 0, 5)
	require.True(t, ok)
	assert.Equal(t, 0, i0)

	i1, ok := s.AllocateLowest(1, 1, 6)
	require.True(t, ok)
	assert.Equal(t, 1, i1)

	s.Release(0)
	i2, ok := s.AllocateLowest(2, 0, 7)
	require.True(t, ok)
	assert.Equal(t, 0, i2, "the freed low frame should be reused before a higher one")
}

func TestAllocateFailsWhenFull(t *testing.T) {
	s := New(1)
	_, ok := s.AllocateLowest(1, 0, 0)
	require.True(t, ok)
	_, ok = s.AllocateLowest(2, 0, 0)
	assert.False(t, ok)
}

func TestReleaseOfFreeFramePanics(t *testing.T) {
	s := New(1)
	assert.Panics(t, func() { s.Release(0) })
}

func TestEachVisitsOnlyOccupiedInIndexOrder(t *testing.T) {
	s := New(4)
	s.AllocateLowest(1, 0, 0)
	s.AllocateLowest(2, 0, 0)

	var seen []int
	s.Each(func(idx int, f *Frame) {
		seen = append(seen, idx)
	})
	assert.Equal(t, []int{0, 1}, seen)
}

func TestUsedAndFree(t *testing.T) {
	s := New(4)
	s.AllocateLowest(1, 0, 0)
	assert.Equal(t, 1, s.Used())
	assert.Equal(t, 3, s.Free())
}
