// Package replacer implements the LRU-K frame replacement policy the
// buffer pool consults when no frame is free.
package replacer

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sushant-115/pagecache/storage/page"
)

// Sentinel errors.
var (
	ErrInvalidFrame     = errors.New("frame id out of range")
	ErrNotEvictable     = errors.New("cannot remove a non-evictable frame")
)

type entry struct {
	frame     page.FrameID
	hitCount  int
	evictable bool
	elem      *list.Element // this entry's node in whichever list it lives in
}

// LRUK tracks access history for up to size frames and chooses eviction
// victims by the K-distance policy: frames with fewer than k accesses are
// classic-LRU candidates (the "history" list); frames with k or more
// accesses are ordered by most-recent access (the "cache" list). History
// is always drained before cache, oldest-first in each.
type LRUK struct {
	mu sync.Mutex

	k         int
	numFrames int // valid frame ids are [0, numFrames)
	size      int // count of currently evictable tracked frames

	history *list.List // of *entry, front = newest, back = oldest
	cache   *list.List // of *entry, front = most-recently-used

	entries map[page.FrameID]*entry

	log *zap.Logger
}

// New constructs a replacer that can track frame ids in [0, numFrames) and
// promotes a frame from history to cache on its k-th access.
func New(numFrames int, k int, log *zap.Logger) *LRUK {
	if log == nil {
		log = zap.NewNop()
	}
	return &LRUK{
		k:         k,
		numFrames: numFrames,
		history:   list.New(),
		cache:     list.New(),
		entries:   make(map[page.FrameID]*entry, numFrames),
		log:       log,
	}
}

// RecordAccess registers a reference to frameID, creating a tracked entry
// on first sight. It fails with ErrInvalidFrame if frameID falls outside
// [0, numFrames).
func (r *LRUK) RecordAccess(frameID page.FrameID) error {
	if frameID < 0 || int(frameID) >= r.numFrames {
		return fmt.Errorf("%w: %d", ErrInvalidFrame, frameID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[frameID]
	if !ok {
		e = &entry{frame: frameID}
		e.elem = r.history.PushFront(e)
		r.entries[frameID] = e
	}
	e.hitCount++

	switch {
	case e.hitCount == r.k:
		r.history.Remove(e.elem)
		e.elem = r.cache.PushFront(e)
	case e.hitCount > r.k:
		r.cache.MoveToFront(e.elem)
	}
	return nil
}

// SetEvictable toggles whether frameID may be chosen by Evict. Toggling to
// the same value is a no-op beyond bookkeeping; curr_size only moves on an
// actual flip.
func (r *LRUK) SetEvictable(frameID page.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[frameID]
	if !ok {
		return
	}
	if e.evictable == evictable {
		return
	}
	e.evictable = evictable
	if evictable {
		r.size++
	} else {
		r.size--
	}
}

// Remove stops tracking frameID entirely. The frame must currently be
// evictable; removing an untracked frame is a silent no-op, but removing a
// pinned (non-evictable) tracked frame is an invariant violation.
func (r *LRUK) Remove(frameID page.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[frameID]
	if !ok {
		return nil
	}
	if !e.evictable {
		return fmt.Errorf("%w: frame %d", ErrNotEvictable, frameID)
	}
	if e.hitCount < r.k {
		r.history.Remove(e.elem)
	} else {
		r.cache.Remove(e.elem)
	}
	delete(r.entries, frameID)
	r.size--
	return nil
}

// Evict selects and unregisters the highest-priority evictable frame:
// history list oldest-first, then cache list oldest-first. It reports
// false if no tracked frame is currently evictable.
func (r *LRUK) Evict() (page.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for el := r.history.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.evictable {
			r.history.Remove(el)
			delete(r.entries, e.frame)
			r.size--
			return e.frame, true
		}
	}
	for el := r.cache.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.evictable {
			r.cache.Remove(el)
			delete(r.entries, e.frame)
			r.size--
			return e.frame, true
		}
	}
	return 0, false
}

// Size returns the number of currently evictable tracked frames.
func (r *LRUK) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
