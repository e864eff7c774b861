// syscalls.go wraps fs/dir/vm operations with the process identity
// (fd table, cwd) the numbered syscalls in spec.md §6 need, but are not
// themselves part of any single lower package. The actual syscall
// dispatcher (decoding a trap number and validating raw user pointers)
// is the external collaborator spec.md §1 names; these methods are what
// it would call once arguments are already validated Go values.
package proc

import (
	"defs"
	"dir"
	"fd"
	"fdops"
	"fs"
	"stat"
	"ustr"
)

func (p *Proc_t) resolve(path string) (int, defs.Err_t) {
	return dir.Resolve(p.Fs, fs.RootSector, p.cwdSector(), ustr.Ustr(path))
}

/// Create implements CREATE(path, size): allocates a fresh inode sector,
/// initializes it, and links it into its parent directory.
func (p *Proc_t) Create(path string, size int) defs.Err_t {
	parent, last, err := dir.ResolveParent(p.Fs, fs.RootSector, p.cwdSector(), ustr.Ustr(path))
	if err != 0 {
		return err
	}
	parentIno := p.Fs.Open(parent)
	defer parentIno.Close()
	if !parentIno.Isdir() {
		return -defs.ENOTDIR
	}

	sector, aerr := p.Fs.Free.Allocate(1)
	if aerr != 0 {
		return aerr
	}
	if cerr := p.Fs.Create(sector, size, false, parent); cerr != 0 {
		p.Fs.Free.Release(sector, 1)
		return cerr
	}
	if derr := dir.Add(parentIno, parent, last, sector); derr != 0 {
		p.Fs.Free.Release(sector, 1)
		return derr
	}
	return 0
}

/// Mkdir implements MKDIR(path): like Create, but the new inode is a
/// directory and is linked into its parent with file_count 0.
func (p *Proc_t) Mkdir(path string) defs.Err_t {
	parent, last, err := dir.ResolveParent(p.Fs, fs.RootSector, p.cwdSector(), ustr.Ustr(path))
	if err != 0 {
		return err
	}
	parentIno := p.Fs.Open(parent)
	defer parentIno.Close()
	if !parentIno.Isdir() {
		return -defs.ENOTDIR
	}

	sector, aerr := p.Fs.Free.Allocate(1)
	if aerr != 0 {
		return aerr
	}
	if cerr := p.Fs.Create(sector, 0, true, parent); cerr != 0 {
		p.Fs.Free.Release(sector, 1)
		return cerr
	}
	if derr := dir.Add(parentIno, parent, last, sector); derr != 0 {
		p.Fs.Free.Release(sector, 1)
		return derr
	}
	return 0
}

/// Remove implements REMOVE(path): refuses root, any process's cwd (via
/// isProtected), and non-empty directories (enforced by the dir layer).
func (p *Proc_t) Remove(path string, isProtected func(sector int) bool) defs.Err_t {
	parent, last, err := dir.ResolveParent(p.Fs, fs.RootSector, p.cwdSector(), ustr.Ustr(path))
	if err != 0 {
		return err
	}
	if parent == fs.RootSector && last.Eq(ustr.MkUstrRoot()) {
		return -defs.EBUSY
	}
	parentIno := p.Fs.Open(parent)
	defer parentIno.Close()
	return dir.Remove(p.Fs, parentIno, parent, last, isProtected)
}

/// Open implements OPEN(path): resolves path and installs a fd backed by
/// a file_t (regular file) or dirstream_t (directory), matching spec.md
/// §6's READDIR/ISDIR/INUMBER working uninterpreted off of an OPEN'd fd.
func (p *Proc_t) Open(path string) (int, defs.Err_t) {
	sector, err := p.resolve(path)
	if err != 0 {
		return 0, err
	}
	ino := p.Fs.Open(sector)
	var fobj *fd.Fd_t
	if ino.Isdir() {
		fobj = &fd.Fd_t{Fops: mkDirstream(ino), Perms: fd.FD_READ}
	} else {
		fobj = &fd.Fd_t{Fops: mkFile(ino), Perms: fd.FD_READ | fd.FD_WRITE}
	}
	return p.Fds.Alloc(fobj)
}

/// Close implements CLOSE(fd).
func (p *Proc_t) Close(fdn int) defs.Err_t {
	return p.Fds.Close(fdn)
}

/// Read implements READ(fd, buf, n) against an already-validated kernel
/// buffer; fd 0 reads from the console.
func (p *Proc_t) Read(fdn int, dst []byte) (int, defs.Err_t) {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return 0, err
	}
	var ub fakeReader
	ub.buf = dst
	return f.Fops.Read(&ub)
}

/// Write implements WRITE(fd, buf, n); fd 1 writes to the console.
func (p *Proc_t) Write(fdn int, src []byte) (int, defs.Err_t) {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return 0, err
	}
	var ub fakeReader
	ub.buf = src
	ub.full = len(src)
	return f.Fops.Write(&ub)
}

/// Seek implements SEEK(fd, pos).
func (p *Proc_t) Seek(fdn, pos int) defs.Err_t {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return err
	}
	_, serr := f.Fops.Lseek(pos, defs.SEEK_SET)
	return serr
}

/// Tell implements TELL(fd).
func (p *Proc_t) Tell(fdn int) (int, defs.Err_t) {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return 0, err
	}
	return f.Fops.Lseek(0, defs.SEEK_CUR)
}

/// Filesize implements FILESIZE(fd), routed through Fstat (spec.md §6)
/// rather than reaching into file_t directly, so it works uniformly
/// across every fdops.Fdops_i implementation.
func (p *Proc_t) Filesize(fdn int) (int, defs.Err_t) {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return 0, err
	}
	var st stat.Stat_t
	var si fdops.Stat_i = &st
	if serr := f.Fops.Fstat(&si); serr != 0 {
		return 0, serr
	}
	if st.Mode() == 1 {
		return 0, -defs.EISDIR
	}
	return int(st.Size()), 0
}

/// Chdir implements CHDIR(path).
func (p *Proc_t) Chdir(path string) defs.Err_t {
	sector, err := p.resolve(path)
	if err != 0 {
		return err
	}
	ino := p.Fs.Open(sector)
	if !ino.Isdir() {
		ino.Close()
		return -defs.ENOTDIR
	}

	p.Cwd.Lock()
	old := p.Cwd.Fd
	p.Cwd.Fd = &fd.Fd_t{Fops: mkDirstream(ino), Perms: fd.FD_READ}
	p.Cwd.Path = p.Cwd.Canonicalpath(ustr.Ustr(path))
	p.Cwd.Unlock()
	old.Fops.Close()
	return 0
}

/// Readdir implements READDIR(fd, name).
func (p *Proc_t) Readdir(fdn int) (string, bool, defs.Err_t) {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return "", false, err
	}
	d, ok := f.Fops.(*dirstream_t)
	if !ok {
		return "", false, -defs.ENOTDIR
	}
	name, ok := d.Next()
	return name, ok, 0
}

/// Isdir implements ISDIR(fd).
func (p *Proc_t) Isdir(fdn int) (bool, defs.Err_t) {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return false, err
	}
	_, ok := f.Fops.(*dirstream_t)
	return ok, 0
}

/// Inumber implements INUMBER(fd).
func (p *Proc_t) Inumber(fdn int) (int, defs.Err_t) {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return 0, err
	}
	switch v := f.Fops.(type) {
	case *file_t:
		return v.ino.Sector, 0
	case *dirstream_t:
		return v.ino.Sector, 0
	default:
		return 0, -defs.EINVAL
	}
}

// fakeReader adapts a plain kernel []byte to fdops.Userio_i, the same
// role vm.Fakeubuf_t plays for user-provided buffers that are actually
// already kernel-resident (here, a syscall argument already copied in
// by the (external) dispatcher).
type fakeReader struct {
	buf  []byte
	off  int
	full int
}

func (r *fakeReader) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, r.buf[r.off:])
	r.off += n
	return n, 0
}

func (r *fakeReader) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(r.buf[r.off:], src)
	r.off += n
	return n, 0
}

func (r *fakeReader) Remain() int { return len(r.buf) - r.off }
func (r *fakeReader) Totalsz() int {
	if r.full != 0 {
		return r.full
	}
	return len(r.buf)
}
