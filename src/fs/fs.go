package fs

import "defs"

// Fixed sectors reserved at format time: the superblock, the free-sector
// map's own inode, and the root directory's inode.
const (
	SuperblockSector = 0
	FreemapSector    = 1
	RootSector       = 2
)

/// Format initializes a fresh filesystem over an nsectors-sector device
/// and returns the mounted state. Reserves the superblock, free-map
/// inode, and root directory inode at fixed sectors before anything else
/// can be allocated.
func Format(c Cache_i, nsectors int) *Fs_t {
	free := MkFreemap(nsectors)
	free.MarkUsed(SuperblockSector)
	free.MarkUsed(FreemapSector)
	free.MarkUsed(RootSector)

	fs := MkFs(c, free)

	sbbuf := make([]byte, defs.SECSIZE)
	sb := MkSuperblock(sbbuf)
	sb.Init(RootSector, FreemapSector, nsectors)
	c.Write(SuperblockSector, sbbuf, defs.SECSIZE, 0)

	bitmapLen := (nsectors + 7) / 8
	fs.Create(FreemapSector, bitmapLen, false, FreemapSector)
	fs.Create(RootSector, 0, true, RootSector)

	fs.syncFreemap()
	c.Flush(false)
	return fs
}

/// Mount loads an already-formatted filesystem from disk, reconstructing
/// the in-memory free-sector bitmap from the freemap inode's contents.
func Mount(c Cache_i, nsectors int) *Fs_t {
	sbbuf := make([]byte, defs.SECSIZE)
	c.Read(SuperblockSector, sbbuf, defs.SECSIZE, 0)
	sb := MkSuperblock(sbbuf)
	if !sb.Valid() {
		panic("fs: device is not formatted")
	}

	free := MkFreemap(sb.Nsectors())
	fs := MkFs(c, free)

	bitmapLen := (sb.Nsectors() + 7) / 8
	bitmap := make([]byte, bitmapLen)
	ino := fs.Open(sb.Freemapsector())
	ino.ReadAt(bitmap, bitmapLen, 0)
	ino.Close()
	free.Load(bitmap)

	return fs
}

/// Shutdown persists the in-memory free-sector bitmap back to its inode
/// and flushes the cache, stopping the background flusher (spec.md
/// §4.E: "persistent backing is only written at shutdown... and after
/// format").
func (fs *Fs_t) Shutdown() {
	fs.syncFreemap()
	fs.Cache.Flush(true)
}

func (fs *Fs_t) syncFreemap() {
	bitmapLen := (fs.Free.Nsectors() + 7) / 8
	buf := make([]byte, bitmapLen)
	fs.Free.Store(buf)
	ino := fs.Open(FreemapSector)
	ino.WriteAt(buf, bitmapLen, 0)
	ino.Close()
}
