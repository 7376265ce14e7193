package index

import (
	"fmt"

	"github.com/sushant-115/pagecache/storage/page"
)

// InternalPage is an ordered array of (separator key, child page id). Slot
// 0's key is a placeholder never compared against; children are reached
// via the keys at indices >= 1.
type InternalPage[K any] struct {
	id       page.ID
	parentID page.ID
	maxSize  int
	keys     []K
	children []page.ID
	codec    *Codec[K, page.ID]
}

// NewInternalPage returns an empty internal page ready to receive its
// first two entries via PopulateNewRoot, or its entries as the recipient
// of MoveHalfTo. InsertNodeAfter needs an existing entry to insert after.
func NewInternalPage[K any](id, parentID page.ID, maxSize int, codec *Codec[K, page.ID]) *InternalPage[K] {
	return &InternalPage[K]{id: id, parentID: parentID, maxSize: maxSize, codec: codec}
}

func (n *InternalPage[K]) PageID() page.ID         { return n.id }
func (n *InternalPage[K]) ParentPageID() page.ID   { return n.parentID }
func (n *InternalPage[K]) SetParentPageID(p page.ID) { n.parentID = p }
func (n *InternalPage[K]) Size() int               { return len(n.keys) }
func (n *InternalPage[K]) MaxSize() int            { return n.maxSize }
func (n *InternalPage[K]) IsLeafPage() bool        { return false }
func (n *InternalPage[K]) IsRootPage() bool        { return n.parentID == page.InvalidID }

// KeyAt returns the key at index i. Index 0 holds an unused placeholder.
func (n *InternalPage[K]) KeyAt(i int) K {
	n.checkBounds(i)
	return n.keys[i]
}

// SetKeyAt overwrites the key at index i.
func (n *InternalPage[K]) SetKeyAt(i int, k K) {
	n.checkBounds(i)
	n.keys[i] = k
}

// ValueAt returns the child page id at index i.
func (n *InternalPage[K]) ValueAt(i int) page.ID {
	n.checkBounds(i)
	return n.children[i]
}

func (n *InternalPage[K]) checkBounds(i int) {
	if i < 0 || i >= len(n.keys) {
		panic(fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfRange, i, len(n.keys)))
	}
}

// ValueIndex returns the index of child v, or -1 if absent.
func (n *InternalPage[K]) ValueIndex(v page.ID) int {
	for i, c := range n.children {
		if c == v {
			return i
		}
	}
	return -1
}

// Lookup returns the child page id to descend into for key, by binary
// search for the last index i>=1 with key[i] <= target.
func (n *InternalPage[K]) Lookup(key K, cmp Comparator[K]) page.ID {
	if len(n.keys) <= 1 {
		panic(fmt.Errorf("%w: lookup on internal page with size %d", ErrIndexOutOfRange, len(n.keys)))
	}
	lo, hi := 1, len(n.keys)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if cmp(n.keys[mid], key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return n.children[lo-1]
}

// PopulateNewRoot initializes a fresh two-entry root after a root split.
func (n *InternalPage[K]) PopulateNewRoot(oldValue page.ID, newKey K, newValue page.ID) {
	var zero K
	n.keys = []K{zero, newKey}
	n.children = []page.ID{oldValue, newValue}
}

// InsertNodeAfter shift-and-inserts (newKey, newValue) immediately after
// the entry whose child value equals oldValue, returning the new index.
func (n *InternalPage[K]) InsertNodeAfter(oldValue page.ID, newKey K, newValue page.ID) int {
	idx := n.ValueIndex(oldValue) + 1
	if idx <= 0 {
		panic(fmt.Errorf("%w: old value not found in internal page", ErrIndexOutOfRange))
	}
	n.keys = append(n.keys, newKey)
	n.children = append(n.children, newValue)
	for i := len(n.keys) - 1; i > idx; i-- {
		n.keys[i] = n.keys[i-1]
		n.children[i] = n.children[i-1]
	}
	n.keys[idx] = newKey
	n.children[idx] = newValue
	return idx
}

// Reparent is invoked once per child moved by MoveHalfTo so the caller can
// fetch that child page through its own buffer pool handle, mutate its
// parent pointer, and unpin it dirty. Kept as a callback so this package
// never needs to import the buffer pool.
type Reparent func(child page.ID, newParent page.ID) error

// MoveHalfTo splits this page at size/2, moving the upper half into
// recipient and reparenting each moved child via reparent.
func (n *InternalPage[K]) MoveHalfTo(recipient *InternalPage[K], reparent Reparent) error {
	total := len(n.keys)
	mid := total / 2
	recipient.keys = append([]K(nil), n.keys[mid:]...)
	recipient.children = append([]page.ID(nil), n.children[mid:]...)
	n.keys = n.keys[:mid]
	n.children = n.children[:mid]

	for _, child := range recipient.children {
		if err := reparent(child, recipient.id); err != nil {
			return fmt.Errorf("reparenting child %d to %d: %w", child, recipient.id, err)
		}
	}
	return nil
}

// Remove shift-deletes the entry at index.
func (n *InternalPage[K]) Remove(index int) {
	n.checkBounds(index)
	n.keys = append(n.keys[:index], n.keys[index+1:]...)
	n.children = append(n.children[:index], n.children[index+1:]...)
}

// Serialize packs the page into a page.Size buffer for the buffer pool to
// write out. Layout: common header, then size*(key,child) pairs, then a
// trailing CRC32 over everything before it.
func (n *InternalPage[K]) Serialize() []byte {
	buf := make([]byte, page.Size)
	writeCommonHeader(buf, typeInternal, len(n.keys), n.maxSize, n.id, n.parentID)
	off := commonHeaderLen
	for i := range n.keys {
		n.codec.EncodeKey(n.keys[i], buf[off:off+n.codec.KeySize])
		off += n.codec.KeySize
		putPageID(buf[off:], n.children[i])
		off += 4
	}
	appendChecksum(buf, off)
	return buf
}

// DeserializeInternalPage reconstructs an internal page from bytes
// previously produced by Serialize.
func DeserializeInternalPage[K any](data []byte, codec *Codec[K, page.ID]) (*InternalPage[K], error) {
	typ, size, maxSize, id, parentID := readCommonHeader(data)
	if typ != typeInternal {
		return nil, fmt.Errorf("%w: got type %d", ErrWrongPageType, typ)
	}
	off := commonHeaderLen
	n := &InternalPage[K]{id: id, parentID: parentID, maxSize: maxSize, codec: codec}
	n.keys = make([]K, size)
	n.children = make([]page.ID, size)
	for i := 0; i < size; i++ {
		n.keys[i] = codec.DecodeKey(data[off : off+codec.KeySize])
		off += codec.KeySize
		n.children[i] = getPageID(data[off:])
		off += 4
	}
	if err := verifyChecksum(data, off); err != nil {
		return nil, err
	}
	return n, nil
}

func putPageID(buf []byte, id page.ID) {
	buf[0] = byte(id)
	buf[1] = byte(id >> 8)
	buf[2] = byte(id >> 16)
	buf[3] = byte(id >> 24)
}

func getPageID(buf []byte) page.ID {
	return page.ID(int32(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24))
}
