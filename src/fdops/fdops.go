// Package fdops names the two interfaces that sit at the file-descriptor
// boundary: the operations a descriptor supports, and the buffer shape
// read/write hand data through. Both are trimmed down from the donor
// kernel's full VFS vnode interface to exactly the surface spec.md's
// syscall layer (§6) needs — no poll, no socket options, no ioctl.
package fdops

import "defs"

/// Fdops_i is implemented by anything installed in a process's fd table:
/// an open file (backed by fs.Inode_t plus a cursor), a directory stream,
/// or the console device.
type Fdops_i interface {
	Close() defs.Err_t
	Fstat(st *Stat_i) defs.Err_t
	Lseek(off, whence int) (int, defs.Err_t)
	Read(dst Userio_i) (int, defs.Err_t)
	Write(src Userio_i) (int, defs.Err_t)
	Reopen() defs.Err_t
}

/// Stat_i is the destination a descriptor's Fstat fills in; kept as a
/// narrow interface here instead of importing the stat package directly,
/// since fdops sits below fd/fs/vm in the dependency order and must not
/// pull in any of them.
type Stat_i interface {
	Wdev(uint)
	Wino(uint)
	Wmode(uint)
	Wsize(uint)
	Wrdev(uint)
}

/// Userio_i is any buffer that can be drained into, or filled from,
/// kernel code — a real user-memory window (vm.Userbuf_t) or a plain
/// kernel byte slice dressed up as one (vm.Fakeubuf_t).
type Userio_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Remain() int
	Totalsz() int
}
