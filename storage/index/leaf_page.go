package index

import (
	"fmt"

	"github.com/sushant-115/pagecache/storage/page"
)

// LeafPage is a sorted (key, value) array plus a next_page_id link used to
// chain leaves for ordered range scans.
type LeafPage[K any, V any] struct {
	id         page.ID
	parentID   page.ID
	nextPageID page.ID
	maxSize    int
	keys       []K
	values     []V
	codec      *Codec[K, V]
}

// NewLeafPage returns an empty leaf with no next-leaf link.
func NewLeafPage[K any, V any](id, parentID page.ID, maxSize int, codec *Codec[K, V]) *LeafPage[K, V] {
	return &LeafPage[K, V]{id: id, parentID: parentID, nextPageID: page.InvalidID, maxSize: maxSize, codec: codec}
}

func (l *LeafPage[K, V]) PageID() page.ID           { return l.id }
func (l *LeafPage[K, V]) ParentPageID() page.ID     { return l.parentID }
func (l *LeafPage[K, V]) SetParentPageID(p page.ID) { l.parentID = p }
func (l *LeafPage[K, V]) NextPageID() page.ID       { return l.nextPageID }
func (l *LeafPage[K, V]) SetNextPageID(id page.ID)  { l.nextPageID = id }
func (l *LeafPage[K, V]) Size() int                 { return len(l.keys) }
func (l *LeafPage[K, V]) MaxSize() int              { return l.maxSize }
func (l *LeafPage[K, V]) IsLeafPage() bool          { return true }
func (l *LeafPage[K, V]) IsRootPage() bool          { return l.parentID == page.InvalidID }

// KeyAt returns the key at index i.
func (l *LeafPage[K, V]) KeyAt(i int) K {
	if i < 0 || i >= len(l.keys) {
		panic(fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfRange, i, len(l.keys)))
	}
	return l.keys[i]
}

// GetItem returns the (key, value) pair at index i.
func (l *LeafPage[K, V]) GetItem(i int) (K, V) {
	if i < 0 || i >= len(l.keys) {
		panic(fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfRange, i, len(l.keys)))
	}
	return l.keys[i], l.values[i]
}

// KeyIndex returns the first index with keys[i] >= key under cmp, or
// Size() if key would sort after every existing entry.
func (l *LeafPage[K, V]) KeyIndex(key K, cmp Comparator[K]) int {
	lo, hi := 0, len(l.keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(l.keys[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Insert shift-inserts (key, value) in sorted position. Duplicate keys are
// rejected: the leaf is left unchanged and the returned size matches the
// size before the call.
func (l *LeafPage[K, V]) Insert(key K, value V, cmp Comparator[K]) int {
	idx := l.KeyIndex(key, cmp)
	if idx < len(l.keys) && cmp(l.keys[idx], key) == 0 {
		return len(l.keys)
	}
	l.keys = append(l.keys, key)
	l.values = append(l.values, value)
	for i := len(l.keys) - 1; i > idx; i-- {
		l.keys[i] = l.keys[i-1]
		l.values[i] = l.values[i-1]
	}
	l.keys[idx] = key
	l.values[idx] = value
	return len(l.keys)
}

// Lookup returns the value for key, if present.
func (l *LeafPage[K, V]) Lookup(key K, cmp Comparator[K]) (V, bool) {
	idx := l.KeyIndex(key, cmp)
	if idx < len(l.keys) && cmp(l.keys[idx], key) == 0 {
		return l.values[idx], true
	}
	var zero V
	return zero, false
}

// MoveHalfTo splits this leaf at size/2, moving the upper half into
// recipient and relinking next_page_id as this -> recipient -> old next.
// The old next leaf's own predecessor link (if any higher structure kept
// one) is not updated, matching a singly-linked chain.
func (l *LeafPage[K, V]) MoveHalfTo(recipient *LeafPage[K, V]) {
	total := len(l.keys)
	mid := total / 2
	recipient.keys = append([]K(nil), l.keys[mid:]...)
	recipient.values = append([]V(nil), l.values[mid:]...)
	l.keys = l.keys[:mid]
	l.values = l.values[:mid]

	recipient.nextPageID = l.nextPageID
	l.nextPageID = recipient.id
}

// Serialize packs the leaf into a page.Size buffer. Layout: common header,
// next_page_id, then size*(key,value) pairs, then a trailing CRC32.
func (l *LeafPage[K, V]) Serialize() []byte {
	buf := make([]byte, page.Size)
	writeCommonHeader(buf, typeLeaf, len(l.keys), l.maxSize, l.id, l.parentID)
	putPageID(buf[leafNextIDOffset:], l.nextPageID)
	off := leafHeaderLen
	for i := range l.keys {
		l.codec.EncodeKey(l.keys[i], buf[off:off+l.codec.KeySize])
		off += l.codec.KeySize
		l.codec.EncodeValue(l.values[i], buf[off:off+l.codec.ValueSize])
		off += l.codec.ValueSize
	}
	appendChecksum(buf, off)
	return buf
}

// DeserializeLeafPage reconstructs a leaf page from bytes previously
// produced by Serialize.
func DeserializeLeafPage[K any, V any](data []byte, codec *Codec[K, V]) (*LeafPage[K, V], error) {
	typ, size, maxSize, id, parentID := readCommonHeader(data)
	if typ != typeLeaf {
		return nil, fmt.Errorf("%w: got type %d", ErrWrongPageType, typ)
	}
	nextID := getPageID(data[leafNextIDOffset:])
	off := leafHeaderLen
	l := &LeafPage[K, V]{id: id, parentID: parentID, nextPageID: nextID, maxSize: maxSize, codec: codec}
	l.keys = make([]K, size)
	l.values = make([]V, size)
	for i := 0; i < size; i++ {
		l.keys[i] = codec.DecodeKey(data[off : off+codec.KeySize])
		off += codec.KeySize
		l.values[i] = codec.DecodeValue(data[off : off+codec.ValueSize])
		off += codec.ValueSize
	}
	if err := verifyChecksum(data, off); err != nil {
		return nil, err
	}
	return l, nil
}
