// Package page defines the fixed-size disk page and the in-memory frame
// metadata shared by the buffer pool, the replacer, and the B+ tree page
// layouts built on top of them.
package page

// Size is the fixed byte length of every page this engine manages.
const Size = 4096

// ID identifies a page on disk. InvalidID is the sentinel for "no page".
type ID int32

// InvalidID marks an unallocated or absent page.
const InvalidID ID = -1

// LSN is a log sequence number assigned by the external log manager.
type LSN int64

// InvalidLSN marks a page that has never been touched by a logged write.
const InvalidLSN LSN = -1

// FrameID identifies a slot in the buffer pool's fixed frame array.
type FrameID int32

// Page is the in-memory copy of one on-disk page, along with the metadata
// the buffer pool needs to track pinning, dirtiness, and recency.
type Page struct {
	id       ID
	data     [Size]byte
	pinCount int32
	dirty    bool
	lsn      LSN
}

// NewPage returns a zeroed page with an invalid id, ready to be installed
// into a frame by the buffer pool.
func NewPage() *Page {
	return &Page{id: InvalidID, lsn: InvalidLSN}
}

// Reset clears a page back to its just-allocated state, as done whenever a
// frame is reused for a different page id. Callers must hold whatever lock
// protects the frame before calling Reset.
func (p *Page) Reset() {
	p.id = InvalidID
	p.pinCount = 0
	p.dirty = false
	p.lsn = InvalidLSN
	for i := range p.data {
		p.data[i] = 0
	}
}

// Data returns the mutable backing buffer. Mutating it concurrently with
// another holder of the same pin is the caller's responsibility; the buffer
// pool only guarantees the page will not be evicted while pinned.
func (p *Page) Data() []byte { return p.data[:] }

// ID returns the page's stable identifier.
func (p *Page) ID() ID { return p.id }

// SetID installs a new page identity into this frame. Callers must have
// already Reset the page (or know it is already clean) before reassigning.
func (p *Page) SetID(id ID) { p.id = id }

// IsDirty reports whether the page has unflushed writes.
func (p *Page) IsDirty() bool { return p.dirty }

// SetDirty latches the dirty flag. Per the dirty-stickiness invariant,
// passing false does NOT clear an already-dirty page — only flush or reset
// does that. Passing true always sets it.
func (p *Page) SetDirty(dirty bool) {
	if dirty {
		p.dirty = true
	}
}

// ClearDirty un-latches the dirty flag, called by the buffer pool after a
// successful flush or before reuse. Apart from Reset, it is the only way
// the flag is cleared.
func (p *Page) ClearDirty() { p.dirty = false }

// PinCount returns the number of outstanding borrows of this page.
func (p *Page) PinCount() int32 { return p.pinCount }

// Pin increments the outstanding-borrow count.
func (p *Page) Pin() { p.pinCount++ }

// Unpin decrements the outstanding-borrow count, floored at zero.
func (p *Page) Unpin() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}

// LSN returns the sequence number of the last logged write to this page.
func (p *Page) LSN() LSN { return p.lsn }

// SetLSN records the sequence number of the most recent logged write.
func (p *Page) SetLSN(lsn LSN) { p.lsn = lsn }
