package sharedbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRespectsCapacity(t *testing.T) {
	b := New("buf", 2)
	assert.True(t, b.Write(1, "a"))
	assert.True(t, b.Write(1, "b"))
	assert.False(t, b.Write(1, "c"), "buffer is at capacity")
}

func TestReadIsFIFO(t *testing.T) {
	b := New("buf", 2)
	b.Write(1, "first")
	b.Write(2, "second")

	it, ok := b.Read()
	require.True(t, ok)
	assert.Equal(t, Item{Pid: 1, Payload: "first"}, it)

	it, ok = b.Read()
	require.True(t, ok)
	assert.Equal(t, Item{Pid: 2, Payload: "second"}, it)

	_, ok = b.Read()
	assert.False(t, ok)
}

func TestWriteAfterReadFreesCapacity(t *testing.T) {
	b := New("buf", 1)
	require.True(t, b.Write(1, "x"))
	require.False(t, b.Write(2, "y"))
	_, _ = b.Read()
	assert.True(t, b.Write(2, "y"))
}
