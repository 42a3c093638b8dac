package linebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_CompleteLines(t *testing.T) {
	b := New(0)
	lines := b.Write([]byte("one\ntwo\n"))
	assert.Equal(t, []string{"one", "two"}, lines)
	assert.Equal(t, 0, b.Pending())
}

func TestWrite_RetainsPartialAcrossReads(t *testing.T) {
	b := New(0)
	assert.Empty(t, b.Write([]byte("Batt")))
	assert.Equal(t, 4, b.Pending())
	lines := b.Write([]byte("ery 80%\nVol"))
	assert.Equal(t, []string{"Battery 80%"}, lines)
	lines = b.Write([]byte(" 50%\n"))
	assert.Equal(t, []string{"Vol 50%"}, lines)
}

func TestWrite_StripsCR(t *testing.T) {
	b := New(0)
	assert.Equal(t, []string{"a", ""}, b.Write([]byte("a\r\n\r\n")))
}

func TestWrite_ForceEmitsOverMax(t *testing.T) {
	b := New(4)
	lines := b.Write([]byte("abcdefg"))
	require.Len(t, lines, 1)
	assert.Equal(t, "abcdefg", lines[0])
	assert.Equal(t, 0, b.Pending())
}

func TestFlush(t *testing.T) {
	b := New(0)
	_, ok := b.Flush()
	assert.False(t, ok)

	b.Write([]byte("x\ntail"))
	s, ok := b.Flush()
	require.True(t, ok)
	assert.Equal(t, "tail", s)
	_, ok = b.Flush()
	assert.False(t, ok)
}
