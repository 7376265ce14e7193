// Package walmgr is the write-ahead log sink the buffer pool treats as an
// optional external collaborator: the core only hands it records and, on
// flush, asks it to guarantee durability up to a given LSN. It knows
// nothing about pages beyond the bytes it is handed.
package walmgr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sushant-115/pagecache/storage/page"
)

// RecordType tags the kind of operation a Record describes.
type RecordType byte

const (
	RecordUpdate RecordType = iota + 1
	RecordInsertKey
	RecordDeleteKey
	RecordNodeSplit
	RecordNodeMerge
	RecordNewPage
	RecordFreePage
	RecordCheckpointStart
	RecordCheckpointEnd
)

// Record is a single write-ahead log entry.
type Record struct {
	LSN     page.LSN
	PrevLSN page.LSN
	Type    RecordType
	PageID  page.ID
	Offset  uint16
	OldData []byte
	NewData []byte
}

// Serialize converts r into its stable on-disk byte representation.
func (r *Record) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, int64(r.LSN))
	binary.Write(buf, binary.LittleEndian, int64(r.PrevLSN))
	binary.Write(buf, binary.LittleEndian, r.Type)
	binary.Write(buf, binary.LittleEndian, int32(r.PageID))
	binary.Write(buf, binary.LittleEndian, r.Offset)
	binary.Write(buf, binary.LittleEndian, uint16(len(r.OldData)))
	buf.Write(r.OldData)
	binary.Write(buf, binary.LittleEndian, uint16(len(r.NewData)))
	buf.Write(r.NewData)
	return buf.Bytes()
}

// Deserialize populates r from data previously produced by Serialize.
func (r *Record) Deserialize(data []byte) error {
	buf := bytes.NewReader(data)
	var lsn, prev int64
	var pid int32
	if err := binary.Read(buf, binary.LittleEndian, &lsn); err != nil {
		return fmt.Errorf("record: reading lsn: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &prev); err != nil {
		return fmt.Errorf("record: reading prev lsn: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &r.Type); err != nil {
		return fmt.Errorf("record: reading type: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &pid); err != nil {
		return fmt.Errorf("record: reading page id: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &r.Offset); err != nil {
		return fmt.Errorf("record: reading offset: %w", err)
	}
	var oldLen, newLen uint16
	if err := binary.Read(buf, binary.LittleEndian, &oldLen); err != nil {
		return fmt.Errorf("record: reading old data length: %w", err)
	}
	r.OldData = make([]byte, oldLen)
	if _, err := io.ReadFull(buf, r.OldData); err != nil {
		return fmt.Errorf("record: reading old data: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &newLen); err != nil {
		return fmt.Errorf("record: reading new data length: %w", err)
	}
	r.NewData = make([]byte, newLen)
	if _, err := io.ReadFull(buf, r.NewData); err != nil {
		return fmt.Errorf("record: reading new data: %w", err)
	}
	r.LSN = page.LSN(lsn)
	r.PrevLSN = page.LSN(prev)
	r.PageID = page.ID(pid)
	return nil
}

// Manager buffers log records in memory and periodically flushes and syncs
// them to a segment file, assigning each record the next LSN in sequence.
type Manager struct {
	mu         sync.Mutex
	file       *os.File
	segmentID  string
	currentLSN int64
	buffer     *bytes.Buffer
	bufferSize int
	stopChan   chan struct{}
	wg         sync.WaitGroup
	log        *zap.Logger
}

// New opens a fresh log segment (named with a random UUID, so concurrent
// processes or restarts never collide on a filename) under dir and starts
// a background flusher that syncs every flushInterval.
func New(dir string, bufferSize int, flushInterval time.Duration, log *zap.Logger) (*Manager, error) {
	if bufferSize <= 0 {
		return nil, fmt.Errorf("walmgr: buffer size must be positive")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("walmgr: creating log directory %s: %w", dir, err)
	}

	segmentID := uuid.NewString()
	segmentPath := filepath.Join(dir, fmt.Sprintf("log_%s.log", segmentID))
	f, err := os.OpenFile(segmentPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("walmgr: opening segment %s: %w", segmentPath, err)
	}

	m := &Manager{
		file:       f,
		segmentID:  segmentID,
		buffer:     bytes.NewBuffer(make([]byte, 0, bufferSize)),
		bufferSize: bufferSize,
		stopChan:   make(chan struct{}),
		log:        log,
	}

	if flushInterval <= 0 {
		flushInterval = 100 * time.Millisecond
	}
	m.wg.Add(1)
	go m.flusher(flushInterval)

	log.Debug("log manager opened segment", zap.String("segment", segmentID))
	return m, nil
}

// Append assigns record the next LSN, serializes it into the in-memory
// buffer (flushing first if there's no room), and returns the assigned
// LSN. The record is not guaranteed durable until Flush.
func (m *Manager) Append(record *Record) (page.LSN, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.LSN = page.LSN(m.currentLSN)
	serialized := record.Serialize()
	m.currentLSN += int64(len(serialized))

	if m.buffer.Len()+len(serialized) > m.bufferSize {
		if err := m.flushLocked(); err != nil {
			return page.InvalidLSN, fmt.Errorf("walmgr: flushing before append: %w", err)
		}
	}
	m.buffer.Write(serialized)
	m.log.Debug("appended log record", zap.Int64("lsn", int64(record.LSN)), zap.Uint8("type", uint8(record.Type)))
	return record.LSN, nil
}

// Flush writes buffered records to the segment file and fsyncs it.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.flushLocked(); err != nil {
		return err
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("walmgr: sync: %w", err)
	}
	return nil
}

// FlushTo satisfies storage/buffer.LogSink: the buffer pool calls this
// before writing back a dirty page, so the log record that produced that
// page's LSN is durable first. This implementation always flushes
// everything buffered rather than tracking a precise durable watermark,
// matching the "flush everything, sync" shortcut already used in this
// lineage's simpler log manager.
func (m *Manager) FlushTo(lsn page.LSN) error {
	return m.Flush()
}

func (m *Manager) flushLocked() error {
	if m.buffer.Len() == 0 {
		return nil
	}
	n, err := m.file.Write(m.buffer.Bytes())
	if err != nil {
		return fmt.Errorf("walmgr: writing buffer to segment: %w", err)
	}
	if n != m.buffer.Len() {
		return fmt.Errorf("walmgr: short write: wrote %d of %d bytes", n, m.buffer.Len())
	}
	m.buffer.Reset()
	return nil
}

func (m *Manager) flusher(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			m.mu.Lock()
			if err := m.flushLocked(); err != nil {
				m.log.Error("final flush failed", zap.Error(err))
			}
			if err := m.file.Sync(); err != nil {
				m.log.Error("final sync failed", zap.Error(err))
			}
			m.mu.Unlock()
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.buffer.Len() > 0 {
				if err := m.flushLocked(); err != nil {
					m.log.Error("periodic flush failed", zap.Error(err))
				} else if err := m.file.Sync(); err != nil {
					m.log.Error("periodic sync failed", zap.Error(err))
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close stops the flusher, performs a final flush and sync, and closes the
// segment file.
func (m *Manager) Close() error {
	close(m.stopChan)
	m.wg.Wait()
	return m.file.Close()
}
