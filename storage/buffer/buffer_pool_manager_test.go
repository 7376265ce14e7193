package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/pagecache/storage/page"
)

// fakeDisk is an in-memory stand-in for storage/disk.Manager, letting these
// tests exercise the pool's eviction and flush paths without touching the
// filesystem.
type fakeDisk struct {
	mu      sync.Mutex
	next    int64
	pages   map[page.ID][]byte
	writes  int
	reads   int
	allocs  int
	deallocs int
}

func newFakeDisk() *fakeDisk {
	return &fakeDisk{pages: make(map[page.ID][]byte)}
}

func (d *fakeDisk) AllocatePage() (page.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := page.ID(d.next)
	d.next++
	d.allocs++
	d.pages[id] = make([]byte, page.Size)
	return id, nil
}

func (d *fakeDisk) DeallocatePage(id page.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deallocs++
	return nil
}

func (d *fakeDisk) ReadPage(id page.ID, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	copy(dst, d.pages[id])
	return nil
}

func (d *fakeDisk) WritePage(id page.ID, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	buf := make([]byte, len(src))
	copy(buf, src)
	d.pages[id] = buf
	return nil
}

func TestPool_NewPageThenFetchIsAHit(t *testing.T) {
	t.Parallel()
	disk := newFakeDisk()
	pool := NewPool(4, disk, 2)

	pg, ok := pool.NewPage()
	require.True(t, ok)
	id := pg.ID()
	require.True(t, pool.UnpinPage(id, false))

	fetched, ok := pool.FetchPage(id)
	require.True(t, ok)
	require.Equal(t, id, fetched.ID())
	require.True(t, pool.UnpinPage(id, false))
}

func TestPool_ExhaustedWhenAllFramesPinned(t *testing.T) {
	t.Parallel()
	disk := newFakeDisk()
	pool := NewPool(2, disk, 2)

	_, ok := pool.NewPage()
	require.True(t, ok)
	_, ok = pool.NewPage()
	require.True(t, ok)

	_, ok = pool.NewPage()
	require.False(t, ok, "every frame is pinned, so the pool must refuse rather than evict a pinned page")
}

func TestPool_DirtyPageFlushedBeforeEviction(t *testing.T) {
	t.Parallel()
	disk := newFakeDisk()
	pool := NewPool(1, disk, 2)

	pg, ok := pool.NewPage()
	require.True(t, ok)
	firstID := pg.ID()
	require.True(t, pool.UnpinPage(firstID, true))

	_, ok = pool.NewPage()
	require.True(t, ok, "the sole frame's page is unpinned and evictable, so a second NewPage must succeed")

	require.Equal(t, 1, disk.writes, "the dirty victim must be flushed to disk exactly once before its frame is reused")
}

func TestPool_UnpinUnknownPageFails(t *testing.T) {
	t.Parallel()
	pool := NewPool(2, newFakeDisk(), 2)
	require.False(t, pool.UnpinPage(page.ID(999), false))
}

func TestPool_DeletePinnedPageRefused(t *testing.T) {
	t.Parallel()
	disk := newFakeDisk()
	pool := NewPool(2, disk, 2)

	pg, ok := pool.NewPage()
	require.True(t, ok)

	require.False(t, pool.DeletePage(pg.ID()))
	require.True(t, pool.UnpinPage(pg.ID(), false))
	require.True(t, pool.DeletePage(pg.ID()))
}

func TestPool_GetPinCountTracksPinUnpin(t *testing.T) {
	t.Parallel()
	pool := NewPool(2, newFakeDisk(), 2)

	pg, ok := pool.NewPage()
	require.True(t, ok)

	count, ok := pool.GetPinCount(pg.ID())
	require.True(t, ok)
	require.Equal(t, uint32(1), count)

	require.True(t, pool.UnpinPage(pg.ID(), false))
	count, ok = pool.GetPinCount(pg.ID())
	require.True(t, ok)
	require.Equal(t, uint32(0), count)
}
