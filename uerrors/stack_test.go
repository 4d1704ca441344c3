package uerrors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackTopWins(t *testing.T) {
	s := NewStack()
	s.Pushf(System, "socket", 100, "read timeout")
	s.Pushf(Plugin, "netcdf", 200, "bad dimension")
	top, ok := s.Top()
	require.True(t, ok)
	require.Equal(t, 200, top.Code)
	require.Equal(t, Plugin, top.Kind)
}

func TestStackResetAtBoundary(t *testing.T) {
	s := NewStack()
	s.Pushf(Code, "parser", 1, "bad subset")
	require.Equal(t, 1, s.Len())
	s.Reset()
	require.Equal(t, 0, s.Len())
	_, ok := s.Top()
	require.False(t, ok)
}

func TestStackOverflowDropsOldestNonFatal(t *testing.T) {
	s := NewStack()
	for i := 0; i < maxEntries+10; i++ {
		s.Pushf(Plugin, "x", i+1, "entry %d", i)
	}
	require.Equal(t, maxEntries, s.Len())
	require.Greater(t, s.Dropped(), 0)
	top, ok := s.Top()
	require.True(t, ok)
	require.Equal(t, maxEntries+10, top.Code)
}

func TestStackSystemNeverDropped(t *testing.T) {
	s := NewStack()
	s.Pushf(System, "disk", 9, "ENOSPC")
	for i := 0; i < maxEntries+5; i++ {
		s.Pushf(Plugin, "x", i+1, "entry")
	}
	found := false
	for _, e := range s.Entries() {
		if e.Kind == System && e.Code == 9 {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidInvariant(t *testing.T) {
	s := NewStack()
	require.True(t, s.Valid())
	s.Push(Entry{Kind: Code, Where: "x", Code: 0, Message: "bad"})
	require.False(t, s.Valid(), "code==0 with nerrors>0 must be invalid")
}
