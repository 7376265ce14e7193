package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// identityHash lets tests reason exactly about which directory slot and
// bucket a key lands in, without depending on xxhash's actual digest.
func identityHash(k int) uint64 { return uint64(k) }

func TestTable_FindAfterInsert(t *testing.T) {
	t.Parallel()
	tbl := NewWithHash[int, string](2, identityHash, nil)

	tbl.Insert(1, "one")
	tbl.Insert(2, "two")

	v, ok := tbl.Find(1)
	require.True(t, ok)
	require.Equal(t, "one", v)

	v, ok = tbl.Find(2)
	require.True(t, ok)
	require.Equal(t, "two", v)

	_, ok = tbl.Find(3)
	require.False(t, ok)
}

func TestTable_InsertOverwritesExistingKey(t *testing.T) {
	t.Parallel()
	tbl := NewWithHash[int, string](4, identityHash, nil)

	tbl.Insert(5, "first")
	tbl.Insert(5, "second")

	v, ok := tbl.Find(5)
	require.True(t, ok)
	require.Equal(t, "second", v)
	require.Equal(t, 1, tbl.NumEntries())
}

func TestTable_SplitGrowsDirectoryAndDepth(t *testing.T) {
	t.Parallel()
	// bucketSize 1 forces a split as soon as a bucket sees a second distinct
	// key, so depth 0 -> 1 after the second insert.
	tbl := NewWithHash[int, string](1, identityHash, nil)

	require.Equal(t, 0, tbl.GlobalDepth())
	require.Equal(t, 1, tbl.NumBuckets())

	tbl.Insert(0, "zero") // hash bit 0 = 0
	tbl.Insert(1, "one")  // hash bit 0 = 1, collides with "zero"'s single bucket

	require.Equal(t, 1, tbl.GlobalDepth())
	require.Equal(t, 2, tbl.NumBuckets())

	v, ok := tbl.Find(0)
	require.True(t, ok)
	require.Equal(t, "zero", v)
	v, ok = tbl.Find(1)
	require.True(t, ok)
	require.Equal(t, "one", v)
}

func TestTable_RemoveAbsentKeyIsNoop(t *testing.T) {
	t.Parallel()
	tbl := NewWithHash[int, string](4, identityHash, nil)
	require.False(t, tbl.Remove(42))

	tbl.Insert(42, "answer")
	require.True(t, tbl.Remove(42))
	_, ok := tbl.Find(42)
	require.False(t, ok)
}

func TestTable_DumpDoesNotPanicAtAnyLogLevel(t *testing.T) {
	t.Parallel()

	quiet := NewWithHash[int, string](1, identityHash, nil)
	quiet.Insert(0, "zero")
	quiet.Insert(1, "one")
	require.NotPanics(t, quiet.Dump)

	log, err := zap.NewDevelopment()
	require.NoError(t, err)
	verbose := NewWithHash[int, string](1, identityHash, log)
	verbose.Insert(0, "zero")
	verbose.Insert(1, "one")
	require.NotPanics(t, verbose.Dump)
}

func TestTable_DefaultHashDeterministic(t *testing.T) {
	t.Parallel()
	tbl := New[string, int](4, nil)
	tbl.Insert("a", 1)
	tbl.Insert("b", 2)

	v, ok := tbl.Find("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}
