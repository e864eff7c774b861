// Package circbuf implements a simple single-reader/single-writer ring
// buffer used to back console I/O (spec.md §4.I). It is adapted from the
// donor kernel's Circbuf_t, dropping the physical-page-backed allocation
// path (Cb_init_phys, mem.Page_i) since this tree's "frames" (src/frame)
// are not real physical memory and carry no host for that plumbing once
// that's true — the ring-buffer bookkeeping (head/tail, Full/Left) is
// kept over a plain byte slice instead.
package circbuf

import "defs"
import "fdops"

/// Circbuf_t is not safe for concurrent use and references no global
/// state; a single owner (the console device) serializes access to it.
type Circbuf_t struct {
	Buf   []uint8 /// underlying backing buffer
	bufsz int     /// buffer capacity in bytes
	head  int     /// write position
	tail  int     /// read position
}

/// Bufsz returns the configured buffer size.
func (cb *Circbuf_t) Bufsz() int {
	return cb.bufsz
}

/// Cb_init allocates a sz-byte backing buffer.
func (cb *Circbuf_t) Cb_init(sz int) {
	if sz <= 0 || sz > defs.PGSIZE {
		panic("bad circbuf size")
	}
	cb.Buf = make([]uint8, sz)
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
}

/// Full returns true when the buffer cannot accept more data.
func (cb *Circbuf_t) Full() bool {
	return cb.head-cb.tail == cb.bufsz
}

/// Empty reports whether the buffer contains any data.
func (cb *Circbuf_t) Empty() bool {
	return cb.head == cb.tail
}

/// Left returns the remaining capacity in bytes.
func (cb *Circbuf_t) Left() int {
	return cb.bufsz - (cb.head - cb.tail)
}

/// Used returns the current number of bytes in the buffer.
func (cb *Circbuf_t) Used() int {
	return cb.head - cb.tail
}

/// Copyin reads from src into the circular buffer.
func (cb *Circbuf_t) Copyin(src fdops.Userio_i) (int, defs.Err_t) {
	if cb.Full() {
		return 0, 0
	}
	hi := cb.head % cb.bufsz
	ti := cb.tail % cb.bufsz
	c := 0
	if ti <= hi {
		dst := cb.Buf[hi:]
		wrote, err := src.Uioread(dst)
		if err != 0 {
			return 0, err
		}
		if wrote != len(dst) {
			cb.head += wrote
			return wrote, 0
		}
		c += wrote
		hi = (cb.head + wrote) % cb.bufsz
	}
	if hi > ti {
		panic("circbuf: inconsistent head/tail")
	}
	dst := cb.Buf[hi:ti]
	wrote, err := src.Uioread(dst)
	c += wrote
	if err != 0 {
		return c, err
	}
	cb.head += c
	return c, 0
}

/// Copyout writes the entire buffer contents to dst.
func (cb *Circbuf_t) Copyout(dst fdops.Userio_i) (int, defs.Err_t) {
	return cb.Copyout_n(dst, 0)
}

/// Copyout_n writes up to max bytes of the buffer to dst (all of it, if
/// max is 0).
func (cb *Circbuf_t) Copyout_n(dst fdops.Userio_i, max int) (int, defs.Err_t) {
	if cb.Empty() {
		return 0, 0
	}
	hi := cb.head % cb.bufsz
	ti := cb.tail % cb.bufsz
	c := 0
	if hi <= ti {
		src := cb.Buf[ti:]
		if max != 0 && max < len(src) {
			src = src[:max]
		}
		wrote, err := dst.Uiowrite(src)
		if err != 0 {
			return 0, err
		}
		if wrote != len(src) || wrote == max {
			cb.tail += wrote
			return wrote, 0
		}
		c += wrote
		if max != 0 {
			max -= c
		}
		ti = (cb.tail + wrote) % cb.bufsz
	}
	if ti > hi {
		panic("circbuf: inconsistent head/tail")
	}
	src := cb.Buf[ti:hi]
	if max != 0 && max < len(src) {
		src = src[:max]
	}
	wrote, err := dst.Uiowrite(src)
	if err != 0 {
		return c, err
	}
	c += wrote
	cb.tail += c
	return c, 0
}
