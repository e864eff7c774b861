package fs

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"defs"
)

// inodeSnapshot_t captures the on-disk-record fields of a Dinode_t that
// must survive a close/reopen round trip through the open-inode index.
type inodeSnapshot_t struct {
	Isdir     bool
	Filecount int
	Length    int
	Parent    int
}

func snapshotInode(ino *Inode_t) inodeSnapshot_t {
	return inodeSnapshot_t{
		Isdir:     ino.Isdir(),
		Filecount: ino.Filecount(),
		Length:    ino.Length(),
		Parent:    ino.Parent(),
	}
}

// fakecache_t is a direct, unevicting in-memory stand-in for
// cache.Cache_t, sized generously enough that tests never trigger
// eviction — the cache's own eviction behavior is covered in the cache
// package's tests.
type fakecache_t struct {
	sectors map[int][]byte
}

func mkFakeCache() *fakecache_t {
	return &fakecache_t{sectors: make(map[int][]byte)}
}

func (c *fakecache_t) sector(n int) []byte {
	if c.sectors[n] == nil {
		c.sectors[n] = make([]byte, defs.SECSIZE)
	}
	return c.sectors[n]
}

func (c *fakecache_t) Read(sector int, dst []byte, size, offset int) {
	copy(dst[:size], c.sector(sector)[offset:offset+size])
}

func (c *fakecache_t) Write(sector int, src []byte, size, offset int) {
	copy(c.sector(sector)[offset:offset+size], src[:size])
}

func (c *fakecache_t) Free(sector int) {
	delete(c.sectors, sector)
}

func (c *fakecache_t) Flush(terminate bool) {}

func mkTestFs(nsectors int) *Fs_t {
	return Format(mkFakeCache(), nsectors)
}

func TestCreateAndReadWriteRoundTrip(t *testing.T) {
	fs := mkTestFs(4096)

	const fileSector = 100
	require.Equal(t, defs.Err_t(0), fs.Create(fileSector, 0, false, RootSector))

	ino := fs.Open(fileSector)
	defer ino.Close()

	data := make([]byte, 10000) // spans direct, indirect extents
	rand.New(rand.NewSource(1)).Read(data)

	n := ino.WriteAt(data, len(data), 0)
	require.Equal(t, len(data), n)
	require.Equal(t, len(data), ino.Length())

	got := make([]byte, len(data))
	n = ino.ReadAt(got, len(got), 0)
	require.Equal(t, len(data), n)
	require.Equal(t, data, got)
}

func TestReadPastEOFReturnsZero(t *testing.T) {
	fs := mkTestFs(4096)
	const fileSector = 100
	fs.Create(fileSector, 0, false, RootSector)
	ino := fs.Open(fileSector)
	defer ino.Close()

	ino.WriteAt([]byte("hello"), 5, 0)

	buf := make([]byte, 10)
	n := ino.ReadAt(buf, len(buf), 100)
	require.Equal(t, 0, n)
	require.Equal(t, 5, ino.Length(), "reading past EOF must not change length")
}

func TestWriteAtOffsetBeyondLengthGrowsImplicitly(t *testing.T) {
	fs := mkTestFs(4096)
	const fileSector = 100
	fs.Create(fileSector, 0, false, RootSector)
	ino := fs.Open(fileSector)
	defer ino.Close()

	n := ino.WriteAt([]byte("end"), 3, 1000)
	require.Equal(t, 3, n)
	require.Equal(t, 1003, ino.Length())
}

func TestDenyWriteBlocksWrites(t *testing.T) {
	fs := mkTestFs(4096)
	const fileSector = 100
	fs.Create(fileSector, 0, false, RootSector)
	ino := fs.Open(fileSector)
	defer ino.Close()

	ino.DenyWrite()
	n := ino.WriteAt([]byte("nope"), 4, 0)
	require.Equal(t, 0, n)

	ino.AllowWrite()
	n = ino.WriteAt([]byte("ok"), 2, 0)
	require.Equal(t, 2, n)
}

func TestOpenSharesSingleInstancePerSector(t *testing.T) {
	fs := mkTestFs(4096)
	const fileSector = 100
	fs.Create(fileSector, 0, false, RootSector)

	a := fs.Open(fileSector)
	b := fs.Open(fileSector)
	require.Same(t, a, b, "concurrent opens of the same sector must share one Inode_t")

	a.Close()
	b.Close()
}

func TestInodeRecordSurvivesCloseReopen(t *testing.T) {
	fs := mkTestFs(4096)
	const dirSector = 300
	require.Equal(t, defs.Err_t(0), fs.Create(dirSector, 0, true, RootSector))

	ino := fs.Open(dirSector)
	ino.UpdateFilecount(2)
	ino.WriteAt(make([]byte, 64), 64, 0)
	want := snapshotInode(ino)
	ino.Close() // drops the open-inode index's only reference

	reopened := fs.Open(dirSector)
	defer reopened.Close()
	got := snapshotInode(reopened)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("inode record changed across close/reopen (-want +got):\n%s", diff)
	}
}

func TestCloseRemovedInodeFreesExtents(t *testing.T) {
	c := mkFakeCache()
	fs := Format(c, 4096)

	const fileSector = 200
	fs.Create(fileSector, 0, false, RootSector)
	ino := fs.Open(fileSector)
	ino.WriteAt(make([]byte, 6000), 6000, 0) // forces an indirect block

	freeBefore, _ := fs.Free.Allocate(1)
	fs.Free.Release(freeBefore, 1) // just probing capacity, not consuming it

	ino.Remove()
	ino.Close()

	// the freed extents are reusable: the lowest free sector is now one
	// the file used to hold, below the first sector free before removal
	got, err := fs.Free.Allocate(1)
	require.Equal(t, defs.Err_t(0), err)
	require.Less(t, got, freeBefore)
}

func TestGrowExtentsUnwindsOnExhaustion(t *testing.T) {
	// a tiny device: barely enough room for the reserved sectors plus a
	// handful of data sectors, so a large Create runs out of space and
	// must unwind everything it allocated.
	fs := mkTestFs(10)

	err := fs.Create(9, 50*defs.SECSIZE, false, RootSector)
	require.Equal(t, -defs.ENOSPC, err)

	// every sector grow allocated must have been released back to the
	// free map: sectors 0-2 are reserved and sector 3 holds the free
	// map's own data, so sectors 4-9 (six of them) are free again
	free, allocErr := fs.Free.Allocate(6)
	require.Equal(t, defs.Err_t(0), allocErr)
	_ = free
}
