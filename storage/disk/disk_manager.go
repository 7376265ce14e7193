// Package disk is the on-disk block store the buffer pool treats as an
// external collaborator: it knows nothing about pages beyond "a fixed-size
// block identified by an id", and nothing about pins, dirtiness, or
// eviction.
package disk

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sushant-115/pagecache/storage/page"
)

// Sentinel errors. Wrapped with fmt.Errorf("%w: ...") at the call site.
var (
	ErrFileExists    = errors.New("database file already exists")
	ErrFileNotFound  = errors.New("database file not found")
	ErrIO            = errors.New("i/o error")
	ErrBadMagic      = errors.New("database file magic number mismatch")
	ErrBadPageSize   = errors.New("database file page size mismatch")
	ErrShortReadback = errors.New("short read/write against database file")
)

const (
	magic         uint32 = 0x50474341 // "PGCA"
	headerPageID         = page.ID(0)
	headerSize           = 32
)

// fileHeader is the fixed-size record persisted at page id 0. It exists so
// a reopened database recovers the next-page-id counter instead of
// colliding with pages it already handed out.
type fileHeader struct {
	Magic      uint32
	Version    uint32
	PageSize   uint32
	_          uint32 // padding
	NextPageID int64
}

// Manager reads and writes fixed-size pages by id and owns the monotonic
// page-id allocator, per this engine's "Page-id allocation" contract.
// Deallocation is advisory: freed ids are queued for reuse but nothing
// forces a caller to wait for that reuse before the id is handed out again
// fresh if the free queue is empty.
type Manager struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	nextPageID int64
	freeIDs    []page.ID
	limiter    *rate.Limiter
	log        *zap.Logger
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithFlushRateLimit throttles WritePage to at most bytesPerSec, grounded
// on the same token-bucket discipline this lineage uses for throttled file
// copies. A nil/zero limiter (the default) applies no throttling.
func WithFlushRateLimit(bytesPerSec int) Option {
	return func(m *Manager) {
		if bytesPerSec > 0 {
			m.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), page.Size)
		}
	}
}

// WithLogger attaches a structured logger; a nil logger installs a no-op.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Open creates (if create is true) or opens an existing page file at path.
func Open(path string, create bool, opts ...Option) (*Manager, error) {
	m := &Manager{path: path, log: zap.NewNop()}
	for _, o := range opts {
		o(m)
	}

	_, statErr := os.Stat(path)
	switch {
	case os.IsNotExist(statErr):
		if !create {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		if err != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", ErrIO, path, err)
		}
		m.file = f
		m.nextPageID = 1 // page 0 is reserved for the header
		if err := m.writeHeader(); err != nil {
			f.Close()
			os.Remove(path)
			return nil, err
		}
		m.log.Debug("disk manager created new file", zap.String("path", path))
	case statErr == nil:
		if create {
			return nil, fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0o666)
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
		}
		m.file = f
		if err := m.readHeader(); err != nil {
			f.Close()
			return nil, err
		}
		m.log.Debug("disk manager opened existing file", zap.String("path", path), zap.Int64("nextPageID", m.nextPageID))
	default:
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, statErr)
	}
	return m, nil
}

func (m *Manager) writeHeader() error {
	h := fileHeader{Magic: magic, Version: 1, PageSize: page.Size, NextPageID: m.nextPageID}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("%w: serializing header: %v", ErrIO, err)
	}
	block := make([]byte, page.Size)
	copy(block, buf.Bytes())
	if _, err := m.file.WriteAt(block, 0); err != nil {
		return fmt.Errorf("%w: writing header: %v", ErrIO, err)
	}
	return m.file.Sync()
}

func (m *Manager) readHeader() error {
	block := make([]byte, page.Size)
	n, err := m.file.ReadAt(block, 0)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: reading header: %v", ErrIO, err)
	}
	if n < headerSize {
		return fmt.Errorf("%w: header too short", ErrShortReadback)
	}
	var h fileHeader
	if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("%w: deserializing header: %v", ErrIO, err)
	}
	if h.Magic != magic {
		return fmt.Errorf("%w: got 0x%x", ErrBadMagic, h.Magic)
	}
	if h.PageSize != page.Size {
		return fmt.Errorf("%w: file has %d, engine uses %d", ErrBadPageSize, h.PageSize, page.Size)
	}
	m.nextPageID = h.NextPageID
	return nil
}

// AllocatePage returns a fresh page id: a previously deallocated id if one
// is queued, else the next id off the monotonic counter.
func (m *Manager) AllocatePage() (page.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.freeIDs) > 0 {
		id := m.freeIDs[len(m.freeIDs)-1]
		m.freeIDs = m.freeIDs[:len(m.freeIDs)-1]
		return id, nil
	}
	id := page.ID(m.nextPageID)
	m.nextPageID++
	if err := m.writeHeader(); err != nil {
		m.nextPageID--
		return page.InvalidID, err
	}
	return id, nil
}

// DeallocatePage returns id to the free queue for future reuse. This is
// advisory only, as the contract requires: the bytes on disk are left
// untouched until the id is reallocated and overwritten.
func (m *Manager) DeallocatePage(id page.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeIDs = append(m.freeIDs, id)
	return nil
}

// ReadPage fills dst (must be exactly page.Size bytes) with the on-disk
// contents of id.
func (m *Manager) ReadPage(id page.ID, dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(dst) != page.Size {
		return fmt.Errorf("%w: read buffer is %d bytes, want %d", ErrShortReadback, len(dst), page.Size)
	}
	offset := int64(id) * page.Size
	n, err := m.file.ReadAt(dst, offset)
	if err != nil && !(err == io.EOF && n == page.Size) {
		return fmt.Errorf("%w: reading page %d: %v", ErrIO, id, err)
	}
	if n != page.Size {
		return fmt.Errorf("%w: page %d: got %d bytes", ErrShortReadback, id, n)
	}
	return nil
}

// WritePage durably persists src (must be exactly page.Size bytes) at id's
// offset, subject to the configured flush rate limit.
func (m *Manager) WritePage(id page.ID, src []byte) error {
	if len(src) != page.Size {
		return fmt.Errorf("%w: write buffer is %d bytes, want %d", ErrShortReadback, len(src), page.Size)
	}
	if m.limiter != nil {
		if err := m.limiter.WaitN(context.Background(), page.Size); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", ErrIO, err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	offset := int64(id) * page.Size
	if _, err := m.file.WriteAt(src, offset); err != nil {
		return fmt.Errorf("%w: writing page %d: %v", ErrIO, id, err)
	}
	return nil
}

// Sync forces any buffered writes to stable storage.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrIO, err)
	}
	return nil
}

// Close syncs the underlying file and closes it. The header is not
// rewritten here; AllocatePage already persists it on every allocation.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		m.log.Warn("sync before close failed", zap.Error(err))
	}
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}
