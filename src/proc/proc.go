package proc

import (
	"fmt"
	"sync"

	"accnt"
	"circbuf"
	"defs"
	"dir"
	"fd"
	"frame"
	"fs"
	"limits"
	"swap"
	"tinfo"
	"ustr"
	"vm"
)

/// Proc_t is one process (spec.md §4.I): its fd table, cwd, address
/// space, executable (write-denied while running), accounting, and the
/// bookkeeping exit/exec needs (its own tid, its children's tids, and
/// outstanding mmap regions).
type Proc_t struct {
	Tid  defs.Tid_t
	Name string
	Note *tinfo.Tnote_t

	Fs  *fs.Fs_t
	Vm  *vm.Vm_t
	Fds *Fdtable_t
	Cwd *fd.Cwd_t
	Exe *fs.Inode_t
	Acc *accnt.Accnt_t

	mu       sync.Mutex
	children []defs.Tid_t
	mmaps    map[int]*mapping_t
	nextmap  int
}

type mapping_t struct {
	upage  int
	npages int
}

func (p *Proc_t) cwdSector() int {
	return p.Cwd.Fd.Fops.(*dirstream_t).ino.Sector
}

/// Loader_i is the external user-program loader (spec.md §1): given the
/// already-opened executable and a freshly constructed address space, it
/// lazily maps LOAD segments via as.LazyLoad and reports the entry point
/// and the initial top of the user stack region (spec.md §4.I:
/// start_process's setup_stack maps one zeroed page there before argv
/// is pushed).
type Loader_i interface {
	Load(exe *fs.Inode_t, as *vm.Vm_t) (entry, stacktop int, err defs.Err_t)
}

/// Program_i stands in for the system-call dispatcher and the "jump to
/// user mode" trampoline (both external collaborators, spec.md §1):
/// once argv is marshalled and entry/esp are known, Run executes the
/// loaded program to completion and returns the status it would have
/// passed to process_exit.
type Program_i interface {
	Run(p *Proc_t, entry, esp int) int
}

/// Table_t is the process table: the kernel-wide singletons every
/// process shares (the mounted filesystem, the cross-process
/// supplemental-page index, the frame table, the swap area — spec.md §5
/// "process-wide singletons") plus the live process and exit-data maps.
type Table_t struct {
	mu    sync.Mutex
	procs map[defs.Tid_t]*Proc_t
	exits map[defs.Tid_t]*Exitdata_t
	next  defs.Tid_t

	Fs     *fs.Fs_t
	VmG    *vm.Global_t
	Frames *frame.Table_t
	Swap   *swap.Swap_t
}

/// MkTable constructs the process table over the given already-booted
/// subsystems.
func MkTable(fsys *fs.Fs_t, vmg *vm.Global_t, frames *frame.Table_t, sw *swap.Swap_t) *Table_t {
	return &Table_t{
		procs: make(map[defs.Tid_t]*Proc_t),
		exits: make(map[defs.Tid_t]*Exitdata_t),
		next:  1,

		Fs:     fsys,
		VmG:    vmg,
		Frames: frames,
		Swap:   sw,
	}
}

func (pt *Table_t) allocTid() defs.Tid_t {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	t := pt.next
	pt.next++
	return t
}

/// Get looks up a live process by tid.
func (pt *Table_t) Get(tid defs.Tid_t) (*Proc_t, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	p, ok := pt.procs[tid]
	return p, ok
}

func mkRootCwdFd(fsys *fs.Fs_t) *fd.Fd_t {
	return &fd.Fd_t{Fops: mkDirstream(fsys.Open(fs.RootSector)), Perms: fd.FD_READ}
}

/// MkInitProc constructs the first process, cwd rooted at "/", with no
/// parent and therefore no exit data.
func (pt *Table_t) MkInitProc(mmu vm.Mmu_i) *Proc_t {
	tid := pt.allocTid()
	p := &Proc_t{
		Tid:   tid,
		Name:  "init",
		Note:  tinfo.MkTnote(tid, tinfo.PriDefault),
		Fs:    pt.Fs,
		Acc:   &accnt.Accnt_t{},
		Vm:    vm.MkVm(pt.VmG, mmu, pt.Frames, pt.Swap),
		mmaps: make(map[int]*mapping_t),
	}
	p.Fds = MkFdtable(p.Tid, limits.Syslimit.Openfiles)
	stdin := &circbuf.Circbuf_t{}
	stdin.Cb_init(512)
	p.Fds.InstallStdio(
		&fd.Fd_t{Fops: mkConsoleIn(stdin), Perms: fd.FD_READ},
		&fd.Fd_t{Fops: mkConsoleOut(), Perms: fd.FD_WRITE},
	)
	p.Cwd = fd.MkRootCwd(mkRootCwdFd(pt.Fs))

	pt.mu.Lock()
	pt.procs[p.Tid] = p
	pt.mu.Unlock()
	return p
}

/// Exec implements spec.md §4.I's execute(cmd): parses argv, resolves
/// and opens the named executable (deny-writing it), forks a goroutine
/// standing in for start_process's new kernel thread, and blocks on a
/// load-complete signal exactly as the original's parent does on
/// ch_load_sema, returning the new tid on success or the failure code
/// on load failure.
func (pt *Table_t) Exec(parent *Proc_t, cmdline string, mmu vm.Mmu_i, loader Loader_i, prog Program_i) (defs.Tid_t, defs.Err_t) {
	argv, everr := ParseArgv(cmdline)
	if everr != 0 {
		return defs.NO_TID, everr
	}

	cwdSector := fs.RootSector
	if parent != nil {
		cwdSector = parent.cwdSector()
	}
	exeSector, rerr := dir.Resolve(pt.Fs, fs.RootSector, cwdSector, ustr.Ustr(argv[0]))
	if rerr != 0 {
		return defs.NO_TID, rerr
	}
	exe := pt.Fs.Open(exeSector)
	if exe.Isdir() {
		exe.Close()
		return defs.NO_TID, -defs.EISDIR
	}
	exe.DenyWrite()

	child := &Proc_t{
		Tid:   pt.allocTid(),
		Name:  argv[0],
		Fs:    pt.Fs,
		Exe:   exe,
		Acc:   &accnt.Accnt_t{},
		Vm:    vm.MkVm(pt.VmG, mmu, pt.Frames, pt.Swap),
		mmaps: make(map[int]*mapping_t),
	}
	child.Note = tinfo.MkTnote(child.Tid, tinfo.PriDefault)
	child.Fds = MkFdtable(child.Tid, limits.Syslimit.Openfiles)
	stdin := &circbuf.Circbuf_t{}
	stdin.Cb_init(512)
	child.Fds.InstallStdio(
		&fd.Fd_t{Fops: mkConsoleIn(stdin), Perms: fd.FD_READ},
		&fd.Fd_t{Fops: mkConsoleOut(), Perms: fd.FD_WRITE},
	)
	parentPath := ustr.MkUstrRoot()
	if parent != nil {
		parentPath = append(ustr.Ustr{}, parent.Cwd.Path...)
	}
	child.Cwd = &fd.Cwd_t{Fd: &fd.Fd_t{Fops: mkDirstream(pt.Fs.Open(cwdSector)), Perms: fd.FD_READ}, Path: parentPath}

	pt.mu.Lock()
	pt.procs[child.Tid] = child
	if parent != nil {
		ed := mkExitdata(child.Tid, parent.Tid)
		pt.exits[child.Tid] = ed
	}
	pt.mu.Unlock()
	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, child.Tid)
		parent.mu.Unlock()
	}

	loadResult := make(chan defs.Err_t, 1)
	go func() {
		entry, stacktop, lerr := loader.Load(exe, child.Vm)
		if lerr != 0 {
			loadResult <- lerr
			pt.ProcessExit(child, -1)
			return
		}
		if err := child.Vm.FullLoadStack(stacktop - defs.PGSIZE); err != 0 {
			loadResult <- -defs.ENOMEM
			pt.ProcessExit(child, -1)
			return
		}
		blob, base := MarshalArgv(argv, stacktop)
		var ub vm.Userbuf_t
		ub.Ub_init(child.Vm, base, len(blob))
		if _, werr := ub.Uiowrite(blob); werr != 0 {
			loadResult <- werr
			pt.ProcessExit(child, -1)
			return
		}
		loadResult <- 0

		status := prog.Run(child, entry, base)
		pt.ProcessExit(child, status)
	}()

	if err := <-loadResult; err != 0 {
		return defs.NO_TID, err
	}
	return child.Tid, 0
}

/// Wait implements spec.md §4.I's wait(tid): valid only once, only for
/// the calling process's own direct child.
func (pt *Table_t) Wait(parent *Proc_t, tid defs.Tid_t) int {
	pt.mu.Lock()
	ed, ok := pt.exits[tid]
	pt.mu.Unlock()
	if !ok || ed.Parent != parent.Tid {
		return -1
	}
	status, err := ed.wait()
	if err != 0 {
		return -1
	}
	pt.mu.Lock()
	delete(pt.exits, tid)
	pt.mu.Unlock()
	return status
}

/// Mmap implements spec.md §6's MMAP(fd, addr): lazily maps every page
/// of fdn's backing file at addr, writable, keeping its own inode
/// reference independent of fdn's lifetime.
func (p *Proc_t) Mmap(fdn int, addr int) (int, defs.Err_t) {
	f, err := p.Fds.Get(fdn)
	if err != 0 {
		return 0, err
	}
	ff, ok := f.Fops.(*file_t)
	if !ok {
		return 0, -defs.EINVAL
	}
	length := ff.ino.Length()
	if length == 0 {
		return 0, -defs.EINVAL
	}
	npages := (length + defs.PGSIZE - 1) / defs.PGSIZE

	ff.ino.Reopen()
	for i := 0; i < npages; i++ {
		upage := addr + i*defs.PGSIZE
		readBytes := defs.PGSIZE
		if rem := length - i*defs.PGSIZE; rem < defs.PGSIZE {
			readBytes = rem
		}
		p.Vm.LazyLoad(ff.ino, i*defs.PGSIZE, upage, readBytes, defs.PGSIZE-readBytes, true, vm.FILE, vm.Identity_t{}, false)
	}

	p.mu.Lock()
	id := p.nextmap
	p.nextmap++
	p.mmaps[id] = &mapping_t{upage: addr, npages: npages}
	p.mu.Unlock()
	return id, 0
}

/// Munmap implements spec.md §6's MUNMAP(mapping): tears down every page
/// of the region, flushing dirty file-backed pages synchronously
/// (Open Question #2's resolution).
func (p *Proc_t) Munmap(mapid int) defs.Err_t {
	p.mu.Lock()
	m, ok := p.mmaps[mapid]
	if ok {
		delete(p.mmaps, mapid)
	}
	p.mu.Unlock()
	if !ok {
		return -defs.EINVAL
	}
	for i := 0; i < m.npages; i++ {
		p.Vm.Munmap(m.upage + i*defs.PGSIZE)
	}
	return 0
}

/// ProcessExit implements spec.md §4.I's process_exit(status) in order:
/// print the exit banner, close the executable (re-enabling writes),
/// post this process's own exit status and signal death, destroy
/// children's exit records (orphaning them), unmap every outstanding
/// mapping and free every remaining supplemental page, then tear down
/// the address space's MMU state.
func (pt *Table_t) ProcessExit(p *Proc_t, status int) {
	fmt.Printf("%s: exit(%d)\n", p.Name, status)

	if p.Exe != nil {
		p.Exe.AllowWrite()
		p.Exe.Close()
	}

	pt.mu.Lock()
	ed := pt.exits[p.Tid]
	pt.mu.Unlock()
	if ed != nil {
		ed.post(status)
	}

	p.mu.Lock()
	children := p.children
	p.children = nil
	p.mu.Unlock()
	if len(children) > 0 {
		pt.mu.Lock()
		for _, c := range children {
			delete(pt.exits, c)
		}
		pt.mu.Unlock()
	}

	p.mu.Lock()
	mapids := make([]int, 0, len(p.mmaps))
	for id := range p.mmaps {
		mapids = append(mapids, id)
	}
	p.mu.Unlock()
	for _, id := range mapids {
		p.Munmap(id)
	}

	p.Vm.Teardown()
	p.Fds.CloseAll()
	if p.Cwd != nil {
		p.Cwd.Fd.Fops.Close()
	}

	pt.mu.Lock()
	delete(pt.procs, p.Tid)
	pt.mu.Unlock()
}
