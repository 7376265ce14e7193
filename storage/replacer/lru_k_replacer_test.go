package replacer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/pagecache/storage/page"
)

func TestLRUK_PromotesAfterKAccesses(t *testing.T) {
	t.Parallel()
	r := New(8, 2, nil)

	require.NoError(t, r.RecordAccess(1))
	r.SetEvictable(1, true)
	require.Equal(t, 1, r.Size())

	// Frame 1 has only a single access, so it's still in the history list.
	// Frame 2 gets two accesses and is promoted to the cache list.
	require.NoError(t, r.RecordAccess(2))
	require.NoError(t, r.RecordAccess(2))
	r.SetEvictable(2, true)

	frame, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, page.FrameID(1), frame, "history list entries are evicted before cache list entries")
}

func TestLRUK_HistoryIsOldestFirst(t *testing.T) {
	t.Parallel()
	r := New(8, 3, nil)

	for _, f := range []page.FrameID{1, 2, 3} {
		require.NoError(t, r.RecordAccess(f))
		r.SetEvictable(f, true)
	}

	frame, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, page.FrameID(1), frame)
}

func TestLRUK_SetEvictableFalseProtectsFrame(t *testing.T) {
	t.Parallel()
	r := New(4, 2, nil)

	require.NoError(t, r.RecordAccess(1))
	r.SetEvictable(1, true)
	r.SetEvictable(1, false)
	require.Equal(t, 0, r.Size())

	_, ok := r.Evict()
	require.False(t, ok)
}

func TestLRUK_RecordAccessRejectsOutOfRangeFrame(t *testing.T) {
	t.Parallel()
	r := New(4, 2, nil)

	err := r.RecordAccess(4)
	require.ErrorIs(t, err, ErrInvalidFrame)

	err = r.RecordAccess(-1)
	require.ErrorIs(t, err, ErrInvalidFrame)

	require.NoError(t, r.RecordAccess(3))
}

func TestLRUK_RemoveRequiresEvictable(t *testing.T) {
	t.Parallel()
	r := New(4, 2, nil)

	require.NoError(t, r.RecordAccess(1))
	err := r.Remove(1)
	require.ErrorIs(t, err, ErrNotEvictable)

	r.SetEvictable(1, true)
	require.NoError(t, r.Remove(1))
	require.Equal(t, 0, r.Size())
}

func TestLRUK_CacheListMostRecentSurvives(t *testing.T) {
	t.Parallel()
	r := New(4, 2, nil)

	for _, f := range []page.FrameID{1, 2} {
		require.NoError(t, r.RecordAccess(f))
		require.NoError(t, r.RecordAccess(f))
		r.SetEvictable(f, true)
	}
	// Touch frame 1 again so frame 2 becomes the oldest in the cache list.
	require.NoError(t, r.RecordAccess(1))

	frame, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, page.FrameID(2), frame)
}
