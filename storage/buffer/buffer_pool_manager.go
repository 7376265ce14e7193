// Package buffer implements the fixed-capacity buffer pool: the component
// every other piece of this engine's read/write path goes through to touch
// a page. It owns the frame array, the free list, the page-id directory
// (an extendible hash table), and drives the LRU-K replacer when no frame
// is free.
package buffer

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sushant-115/pagecache/internal/metrics"
	"github.com/sushant-115/pagecache/storage/hash"
	"github.com/sushant-115/pagecache/storage/page"
	"github.com/sushant-115/pagecache/storage/replacer"
)

// DiskManager is the external collaborator the pool reads from and writes
// to. storage/disk.Manager satisfies this; tests may supply a fake.
type DiskManager interface {
	AllocatePage() (page.ID, error)
	DeallocatePage(page.ID) error
	ReadPage(id page.ID, dst []byte) error
	WritePage(id page.ID, src []byte) error
}

// LogSink is the write-ahead-log handoff point. The pool never inspects
// log contents; it only needs to know the log has durably persisted up to
// a page's LSN before that page's bytes may be written back, satisfying
// the write-ahead rule. A nil sink (the default) skips this entirely,
// matching the "optional sink" contract.
type LogSink interface {
	FlushTo(lsn page.LSN) error
}

// Pool is a fixed-capacity, thread-safe buffer pool.
type Pool struct {
	mu sync.Mutex

	frames    []*page.Page
	pageTable *hash.Table[page.ID, page.FrameID]
	freeList  []page.FrameID
	replacer  *replacer.LRUK

	disk    DiskManager
	logSink LogSink
	log     *zap.Logger
	metrics *metrics.BufferPoolMetrics
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithLogger attaches a structured logger; nil installs a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithLogSink attaches the write-ahead-log collaborator.
func WithLogSink(s LogSink) Option {
	return func(p *Pool) { p.logSink = s }
}

// WithMetrics attaches an OTel-backed counters object; see internal/metrics.
func WithMetrics(m *metrics.BufferPoolMetrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// NewPool constructs a pool of poolSize frames, backed by disk, whose
// replacer tracks the K-th most recent access per frame.
func NewPool(poolSize int, disk DiskManager, replacerK int, opts ...Option) *Pool {
	p := &Pool{
		frames:    make([]*page.Page, poolSize),
		pageTable: hash.NewWithHash[page.ID, page.FrameID](4, hash.HashInt64[page.ID], nil),
		freeList:  make([]page.FrameID, poolSize),
		replacer:  replacer.New(poolSize, replacerK, nil),
		disk:      disk,
		log:       zap.NewNop(),
	}
	for i := 0; i < poolSize; i++ {
		p.frames[i] = page.NewPage()
		p.freeList[i] = page.FrameID(i)
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// getAvailableFrame pops a frame from the free list if one exists, else
// asks the replacer to evict one, flushing it first if dirty. Must be
// called with p.mu held. Reports false if no frame can be obtained.
func (p *Pool) getAvailableFrame() (page.FrameID, bool) {
	if len(p.freeList) > 0 {
		f := p.freeList[0]
		p.freeList = p.freeList[1:]
		return f, true
	}

	frameID, ok := p.replacer.Evict()
	if !ok {
		return 0, false
	}
	victim := p.frames[frameID]
	if victim.IsDirty() {
		if p.logSink != nil {
			if err := p.logSink.FlushTo(victim.LSN()); err != nil {
				p.log.Error("log flush before evict failed", zap.Int32("pageID", int32(victim.ID())), zap.Error(err))
			}
		}
		if err := p.disk.WritePage(victim.ID(), victim.Data()); err != nil {
			p.log.Error("flush-on-evict failed", zap.Int32("pageID", int32(victim.ID())), zap.Error(err))
		} else {
			p.metrics.RecordFlush()
		}
		victim.ClearDirty()
	}
	if victim.ID() != page.InvalidID {
		p.pageTable.Remove(victim.ID())
	}
	p.metrics.RecordEviction()
	return frameID, true
}

// NewPage allocates a fresh page id, installs it in a pinned frame, and
// returns the page. It reports false when every frame is pinned, and also
// when the disk manager fails to allocate an id; that error is logged, not
// returned.
func (p *Pool) NewPage() (*page.Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.getAvailableFrame()
	if !ok {
		p.log.Warn("buffer pool exhausted on NewPage")
		return nil, false
	}

	id, err := p.disk.AllocatePage()
	if err != nil {
		p.log.Error("disk allocate failed", zap.Error(err))
		p.freeList = append(p.freeList, frameID)
		return nil, false
	}

	pg := p.frames[frameID]
	pg.Reset()
	pg.SetID(id)
	pg.Pin()

	p.pageTable.Insert(id, frameID)
	p.replacer.RecordAccess(frameID)
	p.replacer.SetEvictable(frameID, false)

	p.log.Debug("new page", zap.Int32("pageID", int32(id)), zap.Int32("frameID", int32(frameID)))
	return pg, true
}

// FetchPage returns the page for id, reading it from disk on a miss. It
// reports false when the page is not resident and every frame is pinned,
// and also when the disk read fails; that error is logged, not returned.
func (p *Pool) FetchPage(id page.ID) (*page.Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frameID, ok := p.pageTable.Find(id); ok {
		pg := p.frames[frameID]
		pg.Pin()
		p.replacer.RecordAccess(frameID)
		p.replacer.SetEvictable(frameID, false)
		p.metrics.RecordHit()
		return pg, true
	}

	frameID, ok := p.getAvailableFrame()
	if !ok {
		p.log.Warn("buffer pool exhausted on FetchPage", zap.Int32("pageID", int32(id)))
		return nil, false
	}

	pg := p.frames[frameID]
	pg.Reset()
	if err := p.disk.ReadPage(id, pg.Data()); err != nil {
		p.log.Error("disk read failed", zap.Int32("pageID", int32(id)), zap.Error(err))
		p.freeList = append(p.freeList, frameID)
		return nil, false
	}
	pg.SetID(id)
	pg.Pin()

	p.pageTable.Insert(id, frameID)
	p.replacer.RecordAccess(frameID)
	p.replacer.SetEvictable(frameID, false)
	p.metrics.RecordMiss()

	return pg, true
}

// UnpinPage decrements id's pin count and, once it reaches zero, marks its
// frame evictable. isDirty latches the dirty flag (it is sticky — passing
// false never clears an already-dirty page). Reports false if id is not
// resident or already unpinned.
func (p *Pool) UnpinPage(id page.ID, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable.Find(id)
	if !ok {
		return false
	}
	pg := p.frames[frameID]
	if pg.PinCount() == 0 {
		return false
	}
	pg.SetDirty(isDirty)
	pg.Unpin()
	if pg.PinCount() == 0 {
		p.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage synchronously writes id's bytes to disk regardless of its
// dirty flag, then clears it. Reports false if id is not resident.
func (p *Pool) FlushPage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(id)
}

func (p *Pool) flushLocked(id page.ID) bool {
	frameID, ok := p.pageTable.Find(id)
	if !ok {
		return false
	}
	pg := p.frames[frameID]
	if p.logSink != nil {
		if err := p.logSink.FlushTo(pg.LSN()); err != nil {
			p.log.Error("log flush before page flush failed", zap.Int32("pageID", int32(id)), zap.Error(err))
		}
	}
	if err := p.disk.WritePage(id, pg.Data()); err != nil {
		p.log.Error("flush failed", zap.Int32("pageID", int32(id)), zap.Error(err))
		return false
	}
	pg.ClearDirty()
	p.metrics.RecordFlush()
	return true
}

// FlushAllPages flushes every resident page.
func (p *Pool) FlushAllPages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pg := range p.frames {
		if pg.ID() != page.InvalidID {
			p.flushLocked(pg.ID())
		}
	}
}

// DeletePage removes id from the pool and returns its id to the disk
// manager's allocator. If id is not resident, deallocation still runs and
// true is returned (per contract: not-resident is not a failure). If id is
// resident but pinned, the delete is refused.
func (p *Pool) DeletePage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable.Find(id)
	if !ok {
		if err := p.disk.DeallocatePage(id); err != nil {
			p.log.Error("deallocate failed for non-resident page", zap.Int32("pageID", int32(id)), zap.Error(err))
		}
		return true
	}

	pg := p.frames[frameID]
	if pg.PinCount() > 0 {
		return false
	}

	if pg.IsDirty() {
		if p.logSink != nil {
			if err := p.logSink.FlushTo(pg.LSN()); err != nil {
				p.log.Error("log flush before delete failed", zap.Int32("pageID", int32(id)), zap.Error(err))
			}
		}
		if err := p.disk.WritePage(pg.ID(), pg.Data()); err != nil {
			p.log.Error("flush-on-delete failed", zap.Int32("pageID", int32(id)), zap.Error(err))
		} else {
			p.metrics.RecordFlush()
		}
		pg.ClearDirty()
	}

	p.pageTable.Remove(id)
	p.replacer.Remove(frameID)
	pg.Reset()
	p.freeList = append(p.freeList, frameID)

	if err := p.disk.DeallocatePage(id); err != nil {
		p.log.Error("deallocate failed", zap.Int32("pageID", int32(id)), zap.Error(err))
	}
	return true
}

// GetPinCount reports id's current pin count, if resident. Supplemental
// introspection used by tests and by callers deciding whether a delete
// would be refused.
func (p *Pool) GetPinCount(id page.ID) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frameID, ok := p.pageTable.Find(id)
	if !ok {
		return 0, false
	}
	return uint32(p.frames[frameID].PinCount()), true
}
