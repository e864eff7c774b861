package ufs

import (
	"cache"
	"defs"
	"dir"
	"fs"
	"ustr"
)

/// Ufs_t wraps a mounted filesystem over a file-backed disk image,
/// exposing the handful of whole-path operations integration tests want
/// (MkFile, MkDir, Read, Ls, Unlink) without going through a process's
/// fd table the way src/proc's syscalls do (donor: src/ufs/ufs.go's
/// Ufs_t, built on Fs_open/Fs_mkdir; here built directly on fs.Create
/// and the dir package since this tree's fs layer has no Fs_open/path
/// API of its own).
type Ufs_t struct {
	disk  *Filedisk_t
	cache *cache.Cache_t
	Fs    *fs.Fs_t
}

/// BootFS mounts (or, for a freshly created image, formats) a
/// nsectors-sector disk image at path.
func BootFS(path string, nsectors int) (*Ufs_t, error) {
	disk, fresh, err := OpenFiledisk(path, nsectors)
	if err != nil {
		return nil, err
	}
	c := cache.MkCache(disk)
	var fsys *fs.Fs_t
	if fresh {
		fsys = fs.Format(c, nsectors)
	} else {
		fsys = fs.Mount(c, nsectors)
	}
	return &Ufs_t{disk: disk, cache: c, Fs: fsys}, nil
}

func (u *Ufs_t) resolveParent(path string) (*fs.Inode_t, int, ustr.Ustr, defs.Err_t) {
	parent, last, err := dir.ResolveParent(u.Fs, fs.RootSector, fs.RootSector, ustr.Ustr(path))
	if err != 0 {
		return nil, 0, nil, err
	}
	return u.Fs.Open(parent), parent, last, 0
}

/// MkFile creates a new, empty regular file at path.
func (u *Ufs_t) MkFile(path string) defs.Err_t {
	parentIno, parent, last, err := u.resolveParent(path)
	if err != 0 {
		return err
	}
	defer parentIno.Close()

	sector, aerr := u.Fs.Free.Allocate(1)
	if aerr != 0 {
		return aerr
	}
	if cerr := u.Fs.Create(sector, 0, false, parent); cerr != 0 {
		u.Fs.Free.Release(sector, 1)
		return cerr
	}
	if derr := dir.Add(parentIno, parent, last, sector); derr != 0 {
		u.Fs.Free.Release(sector, 1)
		return derr
	}
	return 0
}

/// MkDir creates a new, empty directory at path.
func (u *Ufs_t) MkDir(path string) defs.Err_t {
	parentIno, parent, last, err := u.resolveParent(path)
	if err != 0 {
		return err
	}
	defer parentIno.Close()

	sector, aerr := u.Fs.Free.Allocate(1)
	if aerr != 0 {
		return aerr
	}
	if cerr := u.Fs.Create(sector, 0, true, parent); cerr != 0 {
		u.Fs.Free.Release(sector, 1)
		return cerr
	}
	if derr := dir.Add(parentIno, parent, last, sector); derr != 0 {
		u.Fs.Free.Release(sector, 1)
		return derr
	}
	return 0
}

/// Write overwrites the file at path with data, starting at offset 0.
func (u *Ufs_t) Write(path string, data []byte) defs.Err_t {
	sector, err := dir.Resolve(u.Fs, fs.RootSector, fs.RootSector, ustr.Ustr(path))
	if err != 0 {
		return err
	}
	ino := u.Fs.Open(sector)
	defer ino.Close()
	if ino.Isdir() {
		return -defs.EISDIR
	}
	n := ino.WriteAt(data, len(data), 0)
	if n != len(data) {
		return -defs.EINVAL
	}
	return 0
}

/// Read reads the entire file at path.
func (u *Ufs_t) Read(path string) ([]byte, defs.Err_t) {
	sector, err := dir.Resolve(u.Fs, fs.RootSector, fs.RootSector, ustr.Ustr(path))
	if err != 0 {
		return nil, err
	}
	ino := u.Fs.Open(sector)
	defer ino.Close()
	if ino.Isdir() {
		return nil, -defs.EISDIR
	}
	buf := make([]byte, ino.Length())
	n := ino.ReadAt(buf, len(buf), 0)
	return buf[:n], 0
}

/// Ls lists the directory at path.
func (u *Ufs_t) Ls(path string) ([]string, defs.Err_t) {
	sector, err := dir.Resolve(u.Fs, fs.RootSector, fs.RootSector, ustr.Ustr(path))
	if err != 0 {
		return nil, err
	}
	ino := u.Fs.Open(sector)
	defer ino.Close()
	if !ino.Isdir() {
		return nil, -defs.ENOTDIR
	}
	names := make([]string, 0)
	rd := dir.MkReaddir(ino)
	for {
		name, _, ok := rd.Next()
		if !ok {
			break
		}
		names = append(names, name.String())
	}
	return names, 0
}

/// Unlink removes the entry at path, refusing root and non-empty
/// directories (the directory layer enforces the latter).
func (u *Ufs_t) Unlink(path string) defs.Err_t {
	parentIno, parent, last, err := u.resolveParent(path)
	if err != 0 {
		return err
	}
	defer parentIno.Close()
	notProtected := func(sector int) bool { return false }
	return dir.Remove(u.Fs, parentIno, parent, last, notProtected)
}

/// Shutdown persists the free-sector bitmap, flushes the cache, and
/// closes the backing disk image.
func (u *Ufs_t) Shutdown() error {
	u.Fs.Shutdown()
	return u.disk.close()
}
