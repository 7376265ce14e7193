package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/pagecache/storage/page"
)

func TestLeafPage_InsertKeepsSortedOrder(t *testing.T) {
	t.Parallel()
	l := NewLeafPage[int64, int64](1, page.InvalidID, 8, Int64Codec())

	l.Insert(30, 300, Int64Comparator)
	l.Insert(10, 100, Int64Comparator)
	l.Insert(20, 200, Int64Comparator)

	require.Equal(t, 3, l.Size())
	require.Equal(t, int64(10), l.KeyAt(0))
	require.Equal(t, int64(20), l.KeyAt(1))
	require.Equal(t, int64(30), l.KeyAt(2))
}

func TestLeafPage_InsertRejectsDuplicateKey(t *testing.T) {
	t.Parallel()
	l := NewLeafPage[int64, int64](1, page.InvalidID, 8, Int64Codec())

	size := l.Insert(10, 100, Int64Comparator)
	require.Equal(t, 1, size)
	size = l.Insert(10, 999, Int64Comparator)
	require.Equal(t, 1, size, "duplicate key must leave the leaf unchanged")

	v, ok := l.Lookup(10, Int64Comparator)
	require.True(t, ok)
	require.Equal(t, int64(100), v)
}

func TestLeafPage_LookupMissingKey(t *testing.T) {
	t.Parallel()
	l := NewLeafPage[int64, int64](1, page.InvalidID, 8, Int64Codec())
	l.Insert(10, 100, Int64Comparator)

	_, ok := l.Lookup(99, Int64Comparator)
	require.False(t, ok)
}

func TestLeafPage_MoveHalfToRelinksChain(t *testing.T) {
	t.Parallel()
	l := NewLeafPage[int64, int64](1, page.InvalidID, 8, Int64Codec())
	l.SetNextPageID(page.ID(99))
	for _, k := range []int64{10, 20, 30, 40} {
		l.Insert(k, k*10, Int64Comparator)
	}

	recipient := NewLeafPage[int64, int64](2, page.InvalidID, 8, Int64Codec())
	l.MoveHalfTo(recipient)

	require.Equal(t, 2, l.Size())
	require.Equal(t, 2, recipient.Size())
	require.Equal(t, int64(30), recipient.KeyAt(0))
	require.Equal(t, page.ID(2), l.NextPageID())
	require.Equal(t, page.ID(99), recipient.NextPageID())
}

func TestLeafPage_SerializeRoundTrip(t *testing.T) {
	t.Parallel()
	codec := Int64Codec()
	l := NewLeafPage[int64, int64](5, page.ID(1), 8, codec)
	l.SetNextPageID(page.ID(6))
	l.Insert(10, 100, Int64Comparator)
	l.Insert(20, 200, Int64Comparator)

	data := l.Serialize()
	got, err := DeserializeLeafPage[int64, int64](data, codec)
	require.NoError(t, err)

	require.Equal(t, page.ID(5), got.PageID())
	require.Equal(t, page.ID(1), got.ParentPageID())
	require.Equal(t, page.ID(6), got.NextPageID())
	require.Equal(t, 2, got.Size())
	k, v := got.GetItem(1)
	require.Equal(t, int64(20), k)
	require.Equal(t, int64(200), v)
}

func TestLeafPage_DeserializeRejectsWrongType(t *testing.T) {
	t.Parallel()
	codec := Int64Codec()
	buf := make([]byte, page.Size)
	writeCommonHeader(buf, typeInternal, 0, 8, page.ID(1), page.InvalidID)

	_, err := DeserializeLeafPage[int64, int64](buf, codec)
	require.ErrorIs(t, err, ErrWrongPageType)
}
