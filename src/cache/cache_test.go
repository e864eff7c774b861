package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"defs"
)

type fakedisk_t struct {
	sectors map[int][defs.SECSIZE]byte
	reads   int
	writes  int
}

func mkFakeDisk() *fakedisk_t {
	return &fakedisk_t{sectors: make(map[int][defs.SECSIZE]byte)}
}

func (d *fakedisk_t) ReadSector(sector int, dst []byte) {
	d.reads++
	buf := d.sectors[sector]
	copy(dst, buf[:])
}

func (d *fakedisk_t) WriteSector(sector int, src []byte) {
	d.writes++
	var buf [defs.SECSIZE]byte
	copy(buf[:], src)
	d.sectors[sector] = buf
}

func (d *fakedisk_t) SizeInSectors() int { return 1 << 20 }

func TestReadWriteRoundTrip(t *testing.T) {
	disk := mkFakeDisk()
	c := MkCache(disk)

	src := make([]byte, 16)
	copy(src, []byte("hello, sector 3!"))
	c.Write(3, src, len(src), 100)

	dst := make([]byte, 16)
	c.Read(3, dst, len(dst), 100)
	require.Equal(t, src, dst)

	// the write must not have hit disk yet (write-back, not write-through)
	require.Equal(t, 0, disk.writes)
}

func TestFlushWritesBackDirtySlots(t *testing.T) {
	disk := mkFakeDisk()
	c := MkCache(disk)

	c.Write(5, []byte("x"), 1, 0)
	c.Flush(false)
	require.Equal(t, 1, disk.writes)

	// a second flush with nothing newly dirtied writes nothing more
	c.Flush(false)
	require.Equal(t, 1, disk.writes)
}

func TestEvictionWritesBackDirtyVictim(t *testing.T) {
	disk := mkFakeDisk()
	c := MkCache(disk)

	// dirty every slot, then touch one more sector to force an eviction
	for i := 0; i < Nslots; i++ {
		c.Write(i, []byte{byte(i)}, 1, 0)
	}
	writesBefore := disk.writes
	c.Write(Nslots, []byte{0xff}, 1, 0)
	require.Greater(t, disk.writes, writesBefore, "eviction of a dirty slot must write it back")

	// the newly written sector reads back the value just written to it
	var dst [1]byte
	c.Read(Nslots, dst[:], 1, 0)
	require.Equal(t, byte(0xff), dst[0])
}

func TestFreeInvalidatesWithoutWriteback(t *testing.T) {
	disk := mkFakeDisk()
	c := MkCache(disk)

	c.Write(9, []byte("stale"), 5, 0)
	c.Free(9)
	require.Equal(t, 0, disk.writes, "Free must not write back the freed slot")

	// re-reading the sector now re-fetches from disk rather than serving
	// the freed slot's stale contents
	readsBefore := disk.reads
	var dst [5]byte
	c.Read(9, dst[:], 5, 0)
	require.Greater(t, disk.reads, readsBefore)
}

func TestBackgroundFlusherStopsOnTerminate(t *testing.T) {
	disk := mkFakeDisk()
	c := MkCache(disk)
	c.Write(1, []byte("a"), 1, 0)

	c.StartFlusher(5 * time.Millisecond)
	c.Flush(true)

	select {
	case <-c.stopped:
	case <-time.After(time.Second):
		t.Fatal("background flusher did not stop after Flush(true)")
	}
	require.GreaterOrEqual(t, disk.writes, 1)
}
