package fs

import (
	"sync"

	"defs"
	"hashtable"
	"synch"
)

/// Inode_t is the in-memory, refcounted view of an on-disk inode
/// (spec.md §3). There is at most one Inode_t per sector at any time;
/// concurrent Open of the same sector returns the shared instance with
/// an incremented open count.
type Inode_t struct {
	Sector int

	fs *Fs_t

	rw *synch.Rwlock_t // guards the cached record and its data I/O

	mu             sync.Mutex // guards opencount/removed/denywrite below
	opencount      int
	removed        bool
	denywritecount int
}

/// Fs_t ties together the sector cache, free-sector map, and open-inode
/// index — the filesystem-wide state every Inode_t needs to act on
/// itself (spec.md §4.D/§4.E).
type Fs_t struct {
	Cache Cache_i
	Free  *Freemap_t

	openlock sync.Mutex // serializes "create Inode_t for sector" races
	open     *hashtable.Hashtable_t
}

/// Cache_i is the subset of the sector cache the filesystem layer needs.
/// Satisfied by *cache.Cache_t; named as an interface here so fs can be
/// tested against a fake without importing cache's concrete type.
type Cache_i interface {
	Read(sector int, dst []byte, size, offset int)
	Write(sector int, src []byte, size, offset int)
	Free(sector int)
	Flush(terminate bool)
}

/// MkFs constructs filesystem state over an already-formatted cache.
func MkFs(c Cache_i, free *Freemap_t) *Fs_t {
	return &Fs_t{Cache: c, Free: free, open: hashtable.MkHash(64)}
}

func (fs *Fs_t) readSector(sector int) []uint8 {
	buf := make([]uint8, defs.SECSIZE)
	fs.Cache.Read(sector, buf, defs.SECSIZE, 0)
	return buf
}

func (fs *Fs_t) writeSector(sector int, buf []uint8) {
	fs.Cache.Write(sector, buf, defs.SECSIZE, 0)
}

/// Create initializes a fresh on-disk inode at sector, sized to length
/// bytes, allocating data extents as needed. All-or-nothing: on
/// allocation failure every sector grown so far (including intermediate
/// indirect blocks) is released in reverse order (spec.md §4.D).
func (fs *Fs_t) Create(sector int, length int, isdir bool, parent int) defs.Err_t {
	buf := fs.readSector(sector)
	d := MkDinode(buf)
	d.Init(isdir, parent)
	needed := roundupSectors(length)
	if err := growExtents(fs, d, 0, needed); err != 0 {
		return err
	}
	d.SetLength(length)
	fs.writeSector(sector, buf)
	return 0
}

func roundupSectors(length int) int {
	if length == 0 {
		return 0
	}
	return (length + defs.SECSIZE - 1) / defs.SECSIZE
}

/// Open returns the shared in-memory inode for sector, creating it (and
/// setting its open count to 1) if this is the first open.
func (fs *Fs_t) Open(sector int) *Inode_t {
	fs.openlock.Lock()
	defer fs.openlock.Unlock()

	if v, ok := fs.open.Get(sector); ok {
		ino := v.(*Inode_t)
		ino.mu.Lock()
		ino.opencount++
		ino.mu.Unlock()
		return ino
	}
	ino := &Inode_t{Sector: sector, fs: fs, opencount: 1, rw: synch.MkRwlock()}
	fs.open.Set(sector, ino)
	return ino
}

/// Reopen increments the open count, guarded against a concurrent Close
/// that is about to destroy the instance.
func (ino *Inode_t) Reopen() {
	ino.mu.Lock()
	ino.opencount++
	ino.mu.Unlock()
}

/// Close decrements the open count; when it reaches zero, the inode
/// leaves the open list and, if marked removed, every allocated sector
/// is released back to the free map (spec.md §4.D).
func (ino *Inode_t) Close() {
	ino.fs.openlock.Lock()
	ino.mu.Lock()
	ino.opencount--
	last := ino.opencount == 0
	removed := ino.removed
	ino.mu.Unlock()
	if last {
		ino.fs.open.Del(ino.Sector)
	}
	ino.fs.openlock.Unlock()

	if !last {
		return
	}
	if removed {
		ino.fs.Cache.Flush(false) // spec.md §4.D: flush before the recursive free walk
		ino.rw.Lock()
		ino.freeAllExtents()
		ino.fs.Cache.Free(ino.Sector)
		ino.fs.Free.Release(ino.Sector, 1)
		ino.rw.Unlock()
	}
}

/// Remove marks the inode for deletion on last Close.
func (ino *Inode_t) Remove() {
	ino.mu.Lock()
	ino.removed = true
	ino.mu.Unlock()
}

/// DenyWrite increments the deny-write counter; WriteAt fails silently
/// while it is positive. Bounded above by the open count, as spec.md
/// §4.D requires.
func (ino *Inode_t) DenyWrite() {
	ino.mu.Lock()
	if ino.denywritecount < ino.opencount {
		ino.denywritecount++
	}
	ino.mu.Unlock()
}

/// AllowWrite decrements the deny-write counter.
func (ino *Inode_t) AllowWrite() {
	ino.mu.Lock()
	if ino.denywritecount > 0 {
		ino.denywritecount--
	}
	ino.mu.Unlock()
}

func (ino *Inode_t) deniedWrite() bool {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.denywritecount > 0
}

/// Filecount reads the directory entry count (valid only for directory
/// inodes) under the reader lock.
func (ino *Inode_t) Filecount() int {
	ino.rw.RLock()
	defer ino.rw.RUnlock()
	return MkDinode(ino.fs.readSector(ino.Sector)).Filecount()
}

/// UpdateFilecount applies delta to the on-disk file_count field under
/// the inode's writer lock.
func (ino *Inode_t) UpdateFilecount(delta int) {
	ino.rw.Lock()
	defer ino.rw.Unlock()
	buf := ino.fs.readSector(ino.Sector)
	d := MkDinode(buf)
	d.SetFilecount(d.Filecount() + delta)
	ino.fs.writeSector(ino.Sector, buf)
}

/// Isdir reports whether the inode is a directory.
func (ino *Inode_t) Isdir() bool {
	ino.rw.RLock()
	defer ino.rw.RUnlock()
	return MkDinode(ino.fs.readSector(ino.Sector)).Isdir()
}

/// Parent returns the inode's recorded parent sector.
func (ino *Inode_t) Parent() int {
	ino.rw.RLock()
	defer ino.rw.RUnlock()
	return MkDinode(ino.fs.readSector(ino.Sector)).Parent()
}

/// Length returns the inode's current byte length.
func (ino *Inode_t) Length() int {
	ino.rw.RLock()
	defer ino.rw.RUnlock()
	return MkDinode(ino.fs.readSector(ino.Sector)).Length()
}
