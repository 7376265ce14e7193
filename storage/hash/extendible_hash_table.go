// Package hash implements a concurrent extendible hash table, used by the
// buffer pool as its page-id to frame-id directory and available as a
// general-purpose concurrent map keyed by any comparable type.
package hash

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// Hashable constrains keys to types this table can hash consistently.
// Generic Go maps already require comparable; we additionally need a
// stable byte encoding to feed xxhash, so callers may supply a HashFunc via
// NewWithHash (New falls back to hashing the key's %v formatting).
type Hashable interface {
	comparable
}

// HashFunc turns a key into a 64-bit digest. The table's correctness does
// not depend on which hash function is used, only that it is deterministic
// for equal keys; xxhash is wired in as the production default (see New).
type HashFunc[K Hashable] func(K) uint64

// Table is a thread-safe extendible hash map from K to V.
type Table[K Hashable, V any] struct {
	mu sync.Mutex

	globalDepth int
	dir         []*bucket[K, V] // len == 1<<globalDepth; entries may alias
	numBuckets  int
	bucketSize  int

	hash HashFunc[K]
	log  *zap.Logger
}

type bucketEntry[K Hashable, V any] struct {
	key   K
	value V
}

type bucket[K Hashable, V any] struct {
	depth   int
	entries []bucketEntry[K, V]
}

func newBucket[K Hashable, V any](depth int) *bucket[K, V] {
	return &bucket[K, V]{depth: depth}
}

func (b *bucket[K, V]) find(key K) (V, bool) {
	for _, e := range b.entries {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) removeKey(key K) bool {
	for i, e := range b.entries {
		if e.key == key {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (b *bucket[K, V]) full(capacity int) bool { return len(b.entries) >= capacity }

// New constructs a table with the given per-bucket capacity (bucketSize)
// and a production xxhash-based hash function over the key's default
// formatting. For fixed-width integer keys (the common page-id case), use
// NewWithHash and supply a dedicated encoder to avoid the formatting cost.
func New[K Hashable, V any](bucketSize int, log *zap.Logger) *Table[K, V] {
	return NewWithHash[K, V](bucketSize, defaultHash[K], log)
}

// NewWithHash is New with an explicit hash function, letting callers avoid
// reflection-based key encoding for hot paths (e.g. integer page ids).
func NewWithHash[K Hashable, V any](bucketSize int, h HashFunc[K], log *zap.Logger) *Table[K, V] {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Table[K, V]{
		globalDepth: 0,
		bucketSize:  bucketSize,
		numBuckets:  1,
		hash:        h,
		log:         log,
	}
	t.dir = []*bucket[K, V]{newBucket[K, V](0)}
	return t
}

func defaultHash[K Hashable](key K) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%v", key))
}

// HashInt64 is a ready-made HashFunc for int64-domain keys (page.ID and
// page.FrameID both convert cleanly), avoiding defaultHash's formatting.
func HashInt64[K ~int32 | ~int64](key K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(key)))
	return xxhash.Sum64(buf[:])
}

func (t *Table[K, V]) indexOf(key K) int {
	mask := (1 << t.globalDepth) - 1
	return int(t.hash(key)) & mask
}

// GlobalDepth returns the current directory depth G (directory size 2^G).
func (t *Table[K, V]) GlobalDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalDepth
}

// LocalDepth returns the local depth of the bucket at directory index i.
func (t *Table[K, V]) LocalDepth(dirIndex int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[dirIndex].depth
}

// NumBuckets returns the number of physically distinct buckets.
func (t *Table[K, V]) NumBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numBuckets
}

// Find looks up key, reporting whether it is present.
func (t *Table[K, V]) Find(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.dir[t.indexOf(key)]
	return b.find(key)
}

// Remove deletes key if present, reporting whether it was found. Removing
// an absent key is not an error.
func (t *Table[K, V]) Remove(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.dir[t.indexOf(key)]
	return b.removeKey(key)
}

// Insert stores key->value, overwriting any existing value for key,
// splitting and doubling the directory as needed. Insert cannot fail.
func (t *Table[K, V]) Insert(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOf(key)
	target := t.dir[idx]

	for i, e := range target.entries {
		if e.key == key {
			target.entries[i].value = value
			return
		}
	}

	for target.full(t.bucketSize) {
		if target.depth == t.globalDepth {
			t.doubleDirectory()
		}
		t.splitBucket(target)
		target = t.dir[t.indexOf(key)]
	}
	target.entries = append(target.entries, bucketEntry[K, V]{key, value})
}

// doubleDirectory must be called with t.mu held.
func (t *Table[K, V]) doubleDirectory() {
	t.dir = append(t.dir, t.dir...)
	t.globalDepth++
	t.log.Debug("extendible hash directory doubled", zap.Int("globalDepth", t.globalDepth), zap.Int("size", len(t.dir)))
}

// splitBucket replaces every directory slot pointing at full with two
// fresh buckets partitioned by the new depth-th hash bit. Must be called
// with t.mu held.
func (t *Table[K, V]) splitBucket(full *bucket[K, V]) {
	newDepth := full.depth + 1
	zeroBucket := newBucket[K, V](newDepth)
	oneBucket := newBucket[K, V](newDepth)
	mask := uint64(1) << uint(full.depth)

	for _, e := range full.entries {
		if t.hash(e.key)&mask != 0 {
			oneBucket.entries = append(oneBucket.entries, e)
		} else {
			zeroBucket.entries = append(zeroBucket.entries, e)
		}
	}

	for i := range t.dir {
		if t.dir[i] == full {
			if uint64(i)&mask != 0 {
				t.dir[i] = oneBucket
			} else {
				t.dir[i] = zeroBucket
			}
		}
	}
	t.numBuckets++
	t.log.Debug("extendible hash bucket split", zap.Int("localDepth", newDepth), zap.Int("numBuckets", t.numBuckets))
}

// Dump logs a snapshot of the directory and its distinct buckets at debug
// level, mirroring BusTub's PrintHT. It costs nothing when the injected
// logger isn't at debug level.
func (t *Table[K, V]) Dump() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ce := t.log.Check(zap.DebugLevel, "extendible hash table dump"); ce == nil {
		return
	}
	t.log.Debug("directory", zap.Int("globalDepth", t.globalDepth), zap.Int("numBuckets", t.numBuckets))
	seen := make(map[*bucket[K, V]]bool)
	for i, b := range t.dir {
		if seen[b] {
			continue
		}
		seen[b] = true
		t.log.Debug("bucket", zap.Int("dirIndex", i), zap.Int("localDepth", b.depth), zap.Int("size", len(b.entries)))
	}
}

// NumEntries returns the total number of live key-value pairs across every
// distinct bucket. Supplemental introspection mirroring BusTub's
// test-facing helpers; not part of the hot path.
func (t *Table[K, V]) NumEntries() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[*bucket[K, V]]bool)
	count := 0
	for _, b := range t.dir {
		if seen[b] {
			continue
		}
		seen[b] = true
		count += len(b.entries)
	}
	return count
}
