package disktable

import (
	"encoding/binary"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func key(width int, n uint64) []byte {
	k := make([]byte, width)
	binary.BigEndian.PutUint64(k[width-8:], n)
	return k
}

func TestTable(t *testing.T) {
	tbl, err := New(t.TempDir(), 16, Options{InitialCapacity: 10, MaxLoadPercent: 90})
	require.Nil(t, err)
	defer tbl.Close()

	found, err := tbl.Contains(key(16, 1))
	require.Nil(t, err)
	require.False(t, found, "empty table")

	added, err := tbl.Insert(key(16, 1))
	require.Nil(t, err)
	require.True(t, added)
	added, err = tbl.Insert(key(16, 1))
	require.Nil(t, err)
	require.False(t, added, "second insert of the same key")
	require.Equal(t, uint64(1), tbl.Len())

	found, err = tbl.Contains(key(16, 1))
	require.Nil(t, err)
	require.True(t, found)
	found, err = tbl.Contains(key(16, 2))
	require.Nil(t, err)
	require.False(t, found)
}

func TestTableAllZeroKey(t *testing.T) {
	tbl, err := New(t.TempDir(), 8, Options{InitialCapacity: 4})
	require.Nil(t, err)
	defer tbl.Close()

	zero := make([]byte, 8)
	found, err := tbl.Contains(zero)
	require.Nil(t, err)
	require.False(t, found, "zeroed slots must not read as a stored zero key")
	added, err := tbl.Insert(zero)
	require.Nil(t, err)
	require.True(t, added)
	found, err = tbl.Contains(zero)
	require.Nil(t, err)
	require.True(t, found)
}

func TestTableKeyWidth(t *testing.T) {
	tbl, err := New(t.TempDir(), 32, DefaultOptions())
	require.Nil(t, err)
	defer tbl.Close()

	_, err = tbl.Insert([]byte("short"))
	require.ErrorIs(t, err, ErrKeyWidth)
	_, err = tbl.Contains(make([]byte, 33))
	require.ErrorIs(t, err, ErrKeyWidth)

	_, err = New(t.TempDir(), 0, DefaultOptions())
	require.NotNil(t, err)
}

func TestTableGrow(t *testing.T) {
	var grown []uint64
	tbl, err := New(t.TempDir(), 12, Options{
		InitialCapacity: 4,
		MaxLoadPercent:  75,
		OnGrow:          func(slots uint64) { grown = append(grown, slots) },
	})
	require.Nil(t, err)
	defer tbl.Close()
	require.Equal(t, uint64(8), tbl.Slots())
	firstPath := tbl.Path()

	const n = 5000
	for i := uint64(0); i < n; i++ {
		added, err := tbl.Insert(key(12, i))
		require.Nil(t, err)
		require.True(t, added, "key %d", i)
	}
	require.Equal(t, uint64(n), tbl.Len())
	require.NotEmpty(t, grown)
	require.Equal(t, tbl.Slots(), grown[len(grown)-1])
	require.LessOrEqual(t, tbl.Len()*100, tbl.Slots()*75)

	// the old files are removed as the table moves
	_, err = os.Stat(firstPath)
	require.True(t, os.IsNotExist(err))

	for i := uint64(0); i < n; i++ {
		found, err := tbl.Contains(key(12, i))
		require.Nil(t, err)
		require.True(t, found, "key %d lost during resize", i)
	}
	for i := uint64(n); i < n+100; i++ {
		found, err := tbl.Contains(key(12, i))
		require.Nil(t, err)
		require.False(t, found)
	}
}

func TestTableClose(t *testing.T) {
	tbl, err := New(t.TempDir(), 8, Options{InitialCapacity: 100})
	require.Nil(t, err)
	path := tbl.Path()
	_, err = os.Stat(path)
	require.Nil(t, err)

	require.Nil(t, tbl.Close())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, "", tbl.Path())
	require.Nil(t, tbl.Close())

	_, err = tbl.Insert(key(8, 1))
	require.ErrorIs(t, err, ErrClosed)
}

func TestSlotsFor(t *testing.T) {
	require.Equal(t, uint64(8), slotsFor(1, 95))
	require.Equal(t, uint64(16), slotsFor(10, 90))
	// 1m keys at 95% need 1052632 slots
	require.Equal(t, uint64(1<<21), slotsFor(1_000_000, 95))
}

var result bool

func BenchmarkInsert(b *testing.B) {
	tbl, err := New(b.TempDir(), 32, Options{InitialCapacity: 100_000})
	require.Nil(b, err)
	defer tbl.Close()
	var seed [1000][]byte
	for i := 0; i < len(seed); i++ {
		seed[i] = make([]byte, 32)
		rand.Read(seed[i])
	}
	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		result, _ = tbl.Insert(seed[rand.Intn(len(seed))])
	}
}
