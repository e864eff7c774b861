package proc

import (
	"fmt"
	"os"

	"circbuf"
	"defs"
	"dir"
	"fdops"
	"fs"
)

/// file_t is a regular open file: an fs.Inode_t plus a private byte
/// cursor (spec.md §6: SEEK/TELL operate per-descriptor, not per-inode,
/// since the same inode may be open at several different offsets).
type file_t struct {
	ino    *fs.Inode_t
	cursor int
	append bool
}

func mkFile(ino *fs.Inode_t) *file_t {
	return &file_t{ino: ino}
}

func (f *file_t) Close() defs.Err_t {
	f.ino.Close()
	return 0
}

func (f *file_t) Reopen() defs.Err_t {
	f.ino.Reopen()
	return 0
}

func (f *file_t) Fstat(st *fdops.Stat_i) defs.Err_t {
	s := *st
	if f.ino.Isdir() {
		s.Wmode(1)
	} else {
		s.Wmode(0)
	}
	s.Wsize(uint(f.ino.Length()))
	s.Wino(uint(f.ino.Sector))
	return 0
}

func (f *file_t) Lseek(off, whence int) (int, defs.Err_t) {
	switch whence {
	case defs.SEEK_SET:
		f.cursor = off
	case defs.SEEK_CUR:
		f.cursor += off
	case defs.SEEK_END:
		f.cursor = f.ino.Length() + off
	default:
		return 0, -defs.EINVAL
	}
	if f.cursor < 0 {
		f.cursor = 0
	}
	return f.cursor, 0
}

func (f *file_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, dst.Remain())
	n := f.ino.ReadAt(buf, len(buf), f.cursor)
	wrote, err := dst.Uiowrite(buf[:n])
	f.cursor += wrote
	return wrote, err
}

func (f *file_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	if f.append {
		f.cursor = f.ino.Length()
	}
	wrote := f.ino.WriteAt(buf[:n], n, f.cursor)
	f.cursor += wrote
	return wrote, 0
}

// dirstream_t is the READDIR-only fd a directory gets opened as
// (spec.md §6: READDIR(fd, name)).
type dirstream_t struct {
	ino *fs.Inode_t
	rd  *dir.Readdir_t
}

func mkDirstream(ino *fs.Inode_t) *dirstream_t {
	return &dirstream_t{ino: ino, rd: dir.MkReaddir(ino)}
}

func (d *dirstream_t) Close() defs.Err_t { d.ino.Close(); return 0 }
func (d *dirstream_t) Reopen() defs.Err_t {
	d.ino.Reopen()
	return 0
}
func (d *dirstream_t) Fstat(st *fdops.Stat_i) defs.Err_t {
	s := *st
	s.Wmode(1)
	s.Wino(uint(d.ino.Sector))
	return 0
}
func (d *dirstream_t) Lseek(off, whence int) (int, defs.Err_t) { return 0, -defs.EINVAL }
func (d *dirstream_t) Write(src fdops.Userio_i) (int, defs.Err_t) { return 0, -defs.EISDIR }

/// Next advances the cursor, satisfying READDIR(fd, name).
func (d *dirstream_t) Next() (name string, ok bool) {
	n, _, ok := d.rd.Next()
	if !ok {
		return "", false
	}
	return n.String(), true
}

func (d *dirstream_t) Read(dst fdops.Userio_i) (int, defs.Err_t) { return 0, -defs.EISDIR }

/// console_t backs fds 0/1 (spec.md §4.I): stdin reads drain a circbuf
/// that stands in for the console getc input queue (nothing in this
/// package fills it, so a stdin read returns 0 bytes); stdout writes go
/// straight to the host's stdout, standing in for putbuf.
type console_t struct {
	in  *circbuf.Circbuf_t
	out bool // true for the stdout half
}

func mkConsoleIn(cb *circbuf.Circbuf_t) *console_t { return &console_t{in: cb} }
func mkConsoleOut() *console_t                     { return &console_t{out: true} }

func (c *console_t) Close() defs.Err_t  { return 0 }
func (c *console_t) Reopen() defs.Err_t { return 0 }
func (c *console_t) Fstat(st *fdops.Stat_i) defs.Err_t {
	s := *st
	s.Wmode(2)
	return 0
}
func (c *console_t) Lseek(off, whence int) (int, defs.Err_t) { return 0, -defs.EINVAL }

func (c *console_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	if c.out || c.in == nil {
		return 0, -defs.EINVAL
	}
	return c.in.Copyout(dst)
}

func (c *console_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	if !c.out {
		return 0, -defs.EINVAL
	}
	buf := make([]byte, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	fmt.Fprint(os.Stdout, string(buf[:n]))
	return n, 0
}
