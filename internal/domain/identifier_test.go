package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	require.True(t, ValidIdentifier("L-3"))
	require.True(t, ValidIdentifier("CTRL-14"))
	require.False(t, ValidIdentifier("l-3"))
	require.False(t, ValidIdentifier("L3"))
	require.False(t, ValidIdentifier(""))
	require.False(t, ValidIdentifier("VERYLONGPREFIXTHATEXCEEDSBOUNDS-1"))
}

func TestIDAllocator_SequentialPerPrefix(t *testing.T) {
	a := NewIDAllocator("L")
	require.Equal(t, "L-1", a.Next())
	require.Equal(t, "L-2", a.Next())
	require.Equal(t, "L-3", a.Peek())
	require.Equal(t, "L-3", a.Next())
}
