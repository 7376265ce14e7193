package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/pagecache/storage/buffer"
	"github.com/sushant-115/pagecache/storage/disk"
	"github.com/sushant-115/pagecache/storage/page"
)

func newTestPool(t *testing.T) *buffer.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.pages")
	dm, err := disk.Open(path, true)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return buffer.NewPool(8, dm, 2)
}

// writeLeaf serializes a leaf with the given entries, writes it through the
// pool, and returns its page id, leaving the page unpinned.
func writeLeaf(t *testing.T, pool *buffer.Pool, codec *Codec[int64, int64], entries [][2]int64, next page.ID) page.ID {
	t.Helper()
	pg, ok := pool.NewPage()
	require.True(t, ok)
	id := pg.ID()

	leaf := NewLeafPage[int64, int64](id, page.InvalidID, 8, codec)
	leaf.SetNextPageID(next)
	for _, e := range entries {
		leaf.Insert(e[0], e[1], Int64Comparator)
	}
	copy(pg.Data(), leaf.Serialize())
	require.True(t, pool.UnpinPage(id, true))
	return id
}

func TestIterator_WalksSingleLeaf(t *testing.T) {
	t.Parallel()
	pool := newTestPool(t)
	codec := Int64Codec()

	leafID := writeLeaf(t, pool, codec, [][2]int64{{1, 10}, {2, 20}, {3, 30}}, page.InvalidID)

	it, err := NewIterator(pool, codec, leafID, 0)
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for !it.IsEnd() {
		k, _ := it.Item()
		got = append(got, k)
		require.NoError(t, it.Advance())
	}
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestIterator_CrossesLeafChain(t *testing.T) {
	t.Parallel()
	pool := newTestPool(t)
	codec := Int64Codec()

	secondID := writeLeaf(t, pool, codec, [][2]int64{{3, 30}, {4, 40}}, page.InvalidID)
	firstID := writeLeaf(t, pool, codec, [][2]int64{{1, 10}, {2, 20}}, secondID)

	it, err := NewIterator(pool, codec, firstID, 0)
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for !it.IsEnd() {
		k, _ := it.Item()
		got = append(got, k)
		require.NoError(t, it.Advance())
	}
	require.Equal(t, []int64{1, 2, 3, 4}, got)
}

func TestIterator_ClosePinDiscipline(t *testing.T) {
	t.Parallel()
	pool := newTestPool(t)
	codec := Int64Codec()

	leafID := writeLeaf(t, pool, codec, [][2]int64{{1, 10}}, page.InvalidID)

	it, err := NewIterator(pool, codec, leafID, 0)
	require.NoError(t, err)

	count, ok := pool.GetPinCount(leafID)
	require.True(t, ok)
	require.Equal(t, uint32(1), count)

	it.Close()
	count, ok = pool.GetPinCount(leafID)
	require.True(t, ok)
	require.Equal(t, uint32(0), count)

	it.Close() // idempotent
}
