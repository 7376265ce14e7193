package index

import (
	"encoding/binary"

	"github.com/sushant-115/pagecache/storage/page"
)

// Int64Codec returns a fixed-width codec for int64 keys and values, the
// common case for an integer-keyed index.
func Int64Codec() *Codec[int64, int64] {
	return &Codec[int64, int64]{
		KeySize:   8,
		ValueSize: 8,
		EncodeKey: func(k int64, dst []byte) { binary.LittleEndian.PutUint64(dst, uint64(k)) },
		DecodeKey: func(src []byte) int64 { return int64(binary.LittleEndian.Uint64(src)) },
		EncodeValue: func(v int64, dst []byte) { binary.LittleEndian.PutUint64(dst, uint64(v)) },
		DecodeValue: func(src []byte) int64 { return int64(binary.LittleEndian.Uint64(src)) },
	}
}

// Int64Comparator orders int64 keys numerically.
func Int64Comparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FixedStringCodec returns a codec for keys/values that fit within width
// bytes, null-padded on encode and trimmed of trailing NULs on decode.
// Values longer than width are truncated, matching this lineage's
// "value too large for page" ethos without a separate error path here —
// callers with variable-length payloads should size width generously.
func FixedStringCodec(keyWidth, valueWidth int) *Codec[string, string] {
	encode := func(w int) func(string, []byte) {
		return func(s string, dst []byte) {
			n := copy(dst, s)
			for i := n; i < w; i++ {
				dst[i] = 0
			}
		}
	}
	decode := func(src []byte) string {
		n := len(src)
		for n > 0 && src[n-1] == 0 {
			n--
		}
		return string(src[:n])
	}
	return &Codec[string, string]{
		KeySize:     keyWidth,
		ValueSize:   valueWidth,
		EncodeKey:   encode(keyWidth),
		DecodeKey:   decode,
		EncodeValue: encode(valueWidth),
		DecodeValue: decode,
	}
}

// StringComparator orders strings lexicographically.
func StringComparator(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// NewInternalCodec builds the Codec[K, page.ID] an internal page needs,
// given just a key encoder/decoder pair — the child-id half is always the
// same fixed 4-byte page.ID encoding.
func NewInternalCodec[K any](keySize int, encodeKey func(K, []byte), decodeKey func([]byte) K) *Codec[K, page.ID] {
	return &Codec[K, page.ID]{
		KeySize:     keySize,
		ValueSize:   4,
		EncodeKey:   encodeKey,
		DecodeKey:   decodeKey,
		EncodeValue: func(v page.ID, dst []byte) { putPageID(dst, v) },
		DecodeValue: func(src []byte) page.ID { return getPageID(src) },
	}
}
