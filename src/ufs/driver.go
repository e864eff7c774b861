// Package ufs provides a file-backed disk image and a small set of
// high-level filesystem operations over it, for use as an integration
// test harness against src/fs and src/dir — the same role the donor
// kernel's ufs package plays for its own Fs_open/Fs_mkdir/Fs_unlink
// lineup, adapted here to this tree's Format/Mount/Create + dir.Add API.
package ufs

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"defs"
)

/// Filedisk_t simulates a disk backed by a regular host file, one
/// sector per defs.SECSIZE bytes (adapted from ahci_disk_t's
/// lock-seek-then-read/write pattern, src/ufs/driver.go in the donor,
/// but using positioned pread/pwrite instead of a Seek+Read/Write pair
/// so a racing reader can never observe another goroutine's seek).
type Filedisk_t struct {
	mu       sync.Mutex
	f        *os.File
	nsectors int
}

/// OpenFiledisk opens (or creates) path as a disk image of nsectors
/// sectors, growing it if necessary, and reports whether it was freshly
/// created (in which case the caller must Format rather than Mount it).
func OpenFiledisk(path string, nsectors int) (*Filedisk_t, bool, error) {
	_, staterr := os.Stat(path)
	fresh := os.IsNotExist(staterr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, false, err
	}
	sz := int64(nsectors) * defs.SECSIZE
	if fi, _ := f.Stat(); fi.Size() < sz {
		if err := f.Truncate(sz); err != nil {
			f.Close()
			return nil, false, err
		}
	}
	return &Filedisk_t{f: f, nsectors: nsectors}, fresh, nil
}

/// ReadSector satisfies cache.Disk_i.
func (d *Filedisk_t) ReadSector(sector int, dst []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := unix.Pread(int(d.f.Fd()), dst, int64(sector)*defs.SECSIZE)
	if err != nil {
		panic(err)
	}
	if n != len(dst) {
		panic("ufs: short read")
	}
}

/// WriteSector satisfies cache.Disk_i.
func (d *Filedisk_t) WriteSector(sector int, src []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := unix.Pwrite(int(d.f.Fd()), src, int64(sector)*defs.SECSIZE)
	if err != nil {
		panic(err)
	}
	if n != len(src) {
		panic("ufs: short write")
	}
}

/// SizeInSectors satisfies cache.Disk_i.
func (d *Filedisk_t) SizeInSectors() int { return d.nsectors }

func (d *Filedisk_t) close() error {
	return d.f.Close()
}
