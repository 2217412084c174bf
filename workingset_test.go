package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkingSetTruncateEvictsFurthestFirst(t *testing.T) {
	ws := newWorkingSet(0)
	ws.Insert(1, 10)
	ws.Insert(2, 5)
	ws.Insert(3, 20)
	ws.SortByDistance()

	evicted := ws.TruncateTo(2)
	require.Equal(t, []ValueID{3}, evicted, "furthest-use value should be evicted first")
	require.Equal(t, 2, ws.Len())
	require.False(t, ws.Contains(3))
}

func TestWorkingSetFurthest(t *testing.T) {
	ws := newWorkingSet(0)
	ws.Insert(1, 3)
	ws.Insert(2, 30)
	ws.SortByDistance()

	v, ok := ws.Furthest()
	require.True(t, ok)
	require.Equal(t, ValueID(2), v)
}

func TestWorkingSetCloneIndependent(t *testing.T) {
	ws := newWorkingSet(0)
	ws.Insert(1, 1)
	clone := ws.Clone()
	clone.Insert(2, 2)

	require.False(t, ws.Contains(2), "mutating clone should not affect original")
	require.True(t, clone.Contains(1))
	require.True(t, clone.Contains(2))
}

func TestWorkingSetRemove(t *testing.T) {
	ws := newWorkingSet(0)
	ws.Insert(1, 1)
	require.True(t, ws.Remove(1))
	require.False(t, ws.Remove(1), "second removal of the same value should report false")
}
