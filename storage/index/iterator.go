package index

import (
	"fmt"

	"github.com/sushant-115/pagecache/storage/buffer"
	"github.com/sushant-115/pagecache/storage/page"
)

// Iterator is a forward cursor over a leaf chain. It holds exactly one
// pinned leaf at a time; advancing past the end of a leaf unpins it clean
// and fetches the next leaf in the chain, pinning that one instead.
type Iterator[K any, V any] struct {
	pool   *buffer.Pool
	codec  *Codec[K, V]
	leaf   *LeafPage[K, V]
	leafID page.ID
	index  int
}

// NewIterator pins startLeaf and positions the cursor at startIndex within
// it. The caller must eventually call Close (directly, or indirectly by
// draining to IsEnd) to release the pin.
func NewIterator[K any, V any](pool *buffer.Pool, codec *Codec[K, V], startLeaf page.ID, startIndex int) (*Iterator[K, V], error) {
	pg, ok := pool.FetchPage(startLeaf)
	if !ok {
		return nil, fmt.Errorf("iterator: fetching leaf %d: buffer pool exhausted", startLeaf)
	}
	leaf, err := DeserializeLeafPage(pg.Data(), codec)
	if err != nil {
		pool.UnpinPage(startLeaf, false)
		return nil, fmt.Errorf("iterator: deserializing leaf %d: %w", startLeaf, err)
	}
	return &Iterator[K, V]{pool: pool, codec: codec, leaf: leaf, leafID: startLeaf, index: startIndex}, nil
}

// IsEnd reports whether the cursor has been exhausted.
func (it *Iterator[K, V]) IsEnd() bool {
	return it.leaf == nil || it.index >= it.leaf.Size()
}

// Item returns the (key, value) pair the cursor currently points at. It
// panics if IsEnd(), matching the precondition a dereference-at-end bug
// in the caller would be.
func (it *Iterator[K, V]) Item() (K, V) {
	if it.IsEnd() {
		panic(fmt.Errorf("%w: iterator dereferenced at end", ErrIndexOutOfRange))
	}
	return it.leaf.GetItem(it.index)
}

// Advance moves the cursor to the next entry, crossing into the next
// chained leaf (pinning it) when the current leaf is exhausted, or marking
// the iterator ended when there is no next leaf.
func (it *Iterator[K, V]) Advance() error {
	if it.leaf == nil {
		return nil
	}
	it.index++
	if it.index < it.leaf.Size() {
		return nil
	}

	next := it.leaf.NextPageID()
	it.pool.UnpinPage(it.leafID, false)
	it.leaf = nil

	if next == page.InvalidID {
		return nil
	}

	pg, ok := it.pool.FetchPage(next)
	if !ok {
		return fmt.Errorf("iterator: fetching next leaf %d: buffer pool exhausted", next)
	}
	leaf, err := DeserializeLeafPage(pg.Data(), it.codec)
	if err != nil {
		it.pool.UnpinPage(next, false)
		return fmt.Errorf("iterator: deserializing next leaf %d: %w", next, err)
	}
	it.leaf = leaf
	it.leafID = next
	it.index = 0
	return nil
}

// Close releases the iterator's pin on its current leaf, if any. Safe to
// call more than once and on an already-ended iterator.
func (it *Iterator[K, V]) Close() {
	if it.leaf == nil {
		return
	}
	it.pool.UnpinPage(it.leafID, false)
	it.leaf = nil
}
