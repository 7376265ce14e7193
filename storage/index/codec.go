// Package index implements the B+ tree internal and leaf page layouts and
// the forward iterator built on top of them. Pages are kept as plain
// generic in-memory structs and (de)serialized to/from a buffer-pool
// page's raw bytes through an injected codec, the same
// binary.Write/encoding-plus-checksum discipline this lineage's page
// layer already uses.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/sushant-115/pagecache/storage/page"
)

// Sentinel errors.
var (
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrPageFull         = errors.New("page has no room for another entry")
	ErrChecksumMismatch = errors.New("page checksum mismatch")
	ErrWrongPageType    = errors.New("page bytes do not match the expected page type")
)

// Comparator orders two keys: negative if a < b, zero if equal, positive
// if a > b. It is the only thing the index package needs to know about K.
type Comparator[K any] func(a, b K) int

// Codec encodes and decodes fixed-width keys and values so a generic page
// can be packed into a page.Page's raw byte buffer. KeySize/ValueSize must
// be exact and constant, mirroring this lineage's fixed dbFileHeaderSize
// discipline for binary.Write/Read-safe layouts.
type Codec[K any, V any] struct {
	KeySize     int
	ValueSize   int
	EncodeKey   func(K, []byte)
	DecodeKey   func([]byte) K
	EncodeValue func(V, []byte)
	DecodeValue func([]byte) V
}

// pageType tags the header of a serialized page so Deserialize can refuse
// to reinterpret bytes as the wrong layout.
type pageType uint8

const (
	typeInvalid pageType = iota
	typeLeaf
	typeInternal
)

const (
	headerTypeOffset     = 0
	headerSizeOffset     = 1
	headerMaxSizeOffset  = 5
	headerPageIDOffset   = 9
	headerParentIDOffset = 13
	commonHeaderLen      = 17
	leafNextIDOffset     = commonHeaderLen
	leafHeaderLen        = commonHeaderLen + 4
)

func writeCommonHeader(buf []byte, typ pageType, size, maxSize int, id, parentID page.ID) {
	buf[headerTypeOffset] = byte(typ)
	binary.LittleEndian.PutUint32(buf[headerSizeOffset:], uint32(size))
	binary.LittleEndian.PutUint32(buf[headerMaxSizeOffset:], uint32(maxSize))
	binary.LittleEndian.PutUint32(buf[headerPageIDOffset:], uint32(id))
	binary.LittleEndian.PutUint32(buf[headerParentIDOffset:], uint32(parentID))
}

func readCommonHeader(buf []byte) (typ pageType, size, maxSize int, id, parentID page.ID) {
	typ = pageType(buf[headerTypeOffset])
	size = int(binary.LittleEndian.Uint32(buf[headerSizeOffset:]))
	maxSize = int(int32(binary.LittleEndian.Uint32(buf[headerMaxSizeOffset:])))
	id = page.ID(int32(binary.LittleEndian.Uint32(buf[headerPageIDOffset:])))
	parentID = page.ID(int32(binary.LittleEndian.Uint32(buf[headerParentIDOffset:])))
	return
}

// appendChecksum writes a CRC32 of buf[:dataLen] into the last 4 bytes of
// buf, which must be page.Size long.
func appendChecksum(buf []byte, dataLen int) {
	sum := crc32.ChecksumIEEE(buf[:dataLen])
	binary.LittleEndian.PutUint32(buf[page.Size-4:], sum)
}

func verifyChecksum(buf []byte, dataLen int) error {
	want := binary.LittleEndian.Uint32(buf[page.Size-4:])
	got := crc32.ChecksumIEEE(buf[:dataLen])
	if want != got {
		return fmt.Errorf("%w: want 0x%x got 0x%x", ErrChecksumMismatch, want, got)
	}
	return nil
}
