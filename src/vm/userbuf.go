package vm

import (
	"defs"
	"util"
)

/// Userbuf_t assists reading and writing user memory. Address lookups
/// and accesses are resolved through the owning address space's
/// supplemental page table, faulting pages in as needed.
type Userbuf_t struct {
	userva int
	len    int
	// 0 <= off <= len
	off int
	as  *Vm_t
}

/// Ub_init initialises the buffer for the given address space.
func (ub *Userbuf_t) Ub_init(as *Vm_t, uva, len int) {
	if len < 0 {
		panic("negative length")
	}
	ub.userva = uva
	ub.len = len
	ub.off = 0
	ub.as = as
}

/// Remain returns the number of unread bytes left in the buffer.
func (ub *Userbuf_t) Remain() int {
	return ub.len - ub.off
}

/// Totalsz reports the total size of the buffer in bytes.
func (ub *Userbuf_t) Totalsz() int {
	return ub.len
}

/// Uioread copies data from user memory into dst and returns the number
/// of bytes read along with an error code.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	return ub._tx(dst, false)
}

/// Uiowrite copies data from src into user memory and returns the number
/// of bytes written along with an error code.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	return ub._tx(src, true)
}

// _tx copies the min of either the provided buffer or ub.len. It returns
// the number of bytes copied and an error. If an error occurs partway
// through, the userbuf's state is updated such that the operation can be
// restarted.
func (ub *Userbuf_t) _tx(buf []uint8, write bool) (int, defs.Err_t) {
	ret := 0
	for len(buf) != 0 && ub.off != ub.len {
		va := ub.userva + ub.off
		pg := util.Rounddown(va, defs.PGSIZE)
		pgoff := va - pg

		data, err := ub.as.access(pg, write)
		if err != 0 {
			return ret, err
		}
		uslice := data[pgoff:]

		left := ub.len - ub.off
		uslice = uslice[:util.Min(len(uslice), left)]

		var c int
		if write {
			c = copy(uslice, buf)
		} else {
			c = copy(buf, uslice)
		}
		buf = buf[c:]
		ub.off += c
		ret += c
		if c == 0 {
			// uslice was already empty (pgoff == len(data)); avoid a
			// zero-progress infinite loop.
			break
		}
	}
	return ret, 0
}

/// Fakeubuf_t implements the same interface as Userbuf_t but operates on
/// a kernel buffer. It is used when the kernel needs to treat internal
/// memory like user memory — console I/O, and tests.
type Fakeubuf_t struct {
	fbuf []uint8
	len  int
}

/// Fake_init sets up the fake buffer with the provided slice.
func (fb *Fakeubuf_t) Fake_init(buf []uint8) {
	fb.fbuf = buf
	fb.len = len(fb.fbuf)
}

/// Remain returns the number of bytes left in the fake buffer.
func (fb *Fakeubuf_t) Remain() int {
	return len(fb.fbuf)
}

/// Totalsz returns the total length of the fake buffer.
func (fb *Fakeubuf_t) Totalsz() int {
	return fb.len
}

func (fb *Fakeubuf_t) _tx(buf []uint8, tofbuf bool) (int, defs.Err_t) {
	var c int
	if tofbuf {
		c = copy(fb.fbuf, buf)
	} else {
		c = copy(buf, fb.fbuf)
	}
	fb.fbuf = fb.fbuf[c:]
	return c, 0
}

/// Uioread copies from the fake buffer into dst.
func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	return fb._tx(dst, false)
}

/// Uiowrite copies src into the fake buffer.
func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	return fb._tx(src, true)
}
