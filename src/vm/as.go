// Package vm implements the per-process supplemental page table
// (spec.md §4.H): lazy/anonymous/file-backed logical pages, fault-in,
// frame-sharing for read-only executable pages, and teardown. It is
// adapted from the donor kernel's vm/as.go Vm_t, keeping its locking
// discipline (one lock serializes lookups and mutations of a page
// table, released around the blocking I/O a fault-in may need) but
// replacing the hardware page-table walk (Vmregion_t.Ptefor, raw PTE_*
// bits, TLB shootdown) with the Mmu_i interface spec.md §1 names as an
// external collaborator.
package vm

import (
	"fmt"
	"sync"

	"defs"
	"frame"
	"hashtable"
	"swap"
)

/// Ptype_t is a supplemental page's kind (spec.md §3).
type Ptype_t int

const (
	UNALLOC Ptype_t = iota /// registered but never faulted in
	ALLOC                  /// anonymous, backed by a frame or a swap slot
	FILE                   /// memory-mapped, backed by a file
)

/// Mmu_i is the MMU/page-directory shim spec.md §1 and §6 name as an
/// external collaborator: install_page, clear_page, is_accessed,
/// set_accessed, is_dirty, set_dirty, get_page. pagedir_create/destroy/
/// activate are folded into the owning Vm_t's lifetime (MkVm takes an
/// already-created Mmu_i; Teardown calls Destroy).
type Mmu_i interface {
	/// Install maps upage to kpage's contents, writable per the flag.
	/// Returns false if the mapping could not be installed.
	Install(upage int, kpage []byte, writable bool) bool
	/// Clear removes upage's mapping, if any.
	Clear(upage int)
	Accessed(upage int) bool
	SetAccessed(upage int, v bool)
	Dirty(upage int) bool
	SetDirty(upage int, v bool)
	/// Destroy tears down the whole address space's MMU state.
	Destroy()
}

/// Filer_i is the backing store a FILE-type or lazily-loaded executable
/// page reads from and (if writable and memory-mapped) writes back to.
/// fs.Inode_t already satisfies this shape.
type Filer_i interface {
	ReadAt(buf []byte, size, offset int) int
	WriteAt(buf []byte, size, offset int) int
}

/// Identity_t names the backing a lazily-loaded executable page came
/// from, used as the cross-process frame-sharing key (spec.md §3:
/// "identical (executable-identity, file-offset)"). Exe is typically the
/// *fs.Inode_t of the program file; any comparable-by-Sprintf value works.
type Identity_t struct {
	Exe interface{}
	Ofs int
}

/// Page_t is one supplemental page table entry (spec.md §3).
type Page_t struct {
	as *Vm_t

	Upage     int
	Ptype     Ptype_t
	File      Filer_i
	FileOfs   int
	ReadBytes int
	ZeroBytes int
	Writable  bool

	Identity    Identity_t
	hasIdentity bool

	frame *frame.Frame_t
	slot  swap.Slot_t
}

/// Accessed satisfies frame.Pager_i.
func (p *Page_t) Accessed() bool { return p.as.mmu.Accessed(p.Upage) }

/// ClearAccessed satisfies frame.Pager_i.
func (p *Page_t) ClearAccessed() { p.as.mmu.SetAccessed(p.Upage, false) }

/// Evict satisfies frame.Pager_i: it is called once per owner of a
/// victim frame, with that frame's contents, to persist them per this
/// page's own type (spec.md §4.G "victim handling") before the caller
/// frees the frame.
func (p *Page_t) Evict(contents []byte) {
	switch p.Ptype {
	case ALLOC:
		if p.as.mmu.Dirty(p.Upage) {
			p.slot = p.as.swap.SwapOut(contents)
		} else {
			// Reconstructible from its original backing (a still-
			// unmodified, lazily-loaded executable segment).
			p.Ptype = UNALLOC
		}
	case FILE:
		if p.Writable && p.as.mmu.Dirty(p.Upage) && p.File != nil {
			p.File.WriteAt(contents, len(contents), p.FileOfs)
		}
	}
	p.as.mmu.Clear(p.Upage)
	p.frame = nil
}

/// Global_t is the cross-process shared-frame search index, guarded by
/// its own lock. Each Vm_t keeps its own page map under its own lock; no
/// single lock covers the page maps of all processes.
type Global_t struct {
	mu     sync.Mutex
	shared *hashtable.Hashtable_t // identityKey -> *Page_t, the current frame-bearing representative
}

/// MkGlobal constructs the cross-process shared-frame search index.
func MkGlobal() *Global_t {
	return &Global_t{shared: hashtable.MkHash(64)}
}

func identityKey(id Identity_t) string {
	return fmt.Sprintf("%p:%d", id.Exe, id.Ofs)
}

// findShare returns a still-resident, non-writable ALLOC page matching
// id, or nil. A stale entry (its frame already torn down) is treated as
// absent rather than removed, since whoever faults next will overwrite
// the index entry via registerShare.
func (g *Global_t) findShare(id Identity_t) *Page_t {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.shared.Get(identityKey(id))
	if !ok {
		return nil
	}
	p := v.(*Page_t)
	if p.frame == nil || p.Ptype != ALLOC || p.Writable {
		return nil
	}
	return p
}

func (g *Global_t) registerShare(p *Page_t) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := identityKey(p.Identity)
	if _, ok := g.shared.Get(k); ok {
		g.shared.Del(k)
	}
	g.shared.Set(k, p)
}

/// Vm_t is one process's supplemental page table.
type Vm_t struct {
	g      *Global_t
	mmu    Mmu_i
	frames *frame.Table_t
	swap   *swap.Swap_t

	mu    sync.Mutex // the single per-process supplemental-page-table lock, spec.md §5 position 3
	pages map[int]*Page_t
}

/// MkVm constructs an address space sharing the cross-process index g,
/// backed by frames and swap, with mmu already created for this process
/// (pagedir_create has already run by the time MkVm is called).
func MkVm(g *Global_t, mmu Mmu_i, frames *frame.Table_t, sw *swap.Swap_t) *Vm_t {
	return &Vm_t{g: g, mmu: mmu, frames: frames, swap: sw, pages: make(map[int]*Page_t)}
}

/// LazyLoad registers a page without allocating a frame (spec.md §4.H
/// "creation paths"): UNALLOC for an anonymous/executable page not yet
/// faulted in, FILE for a memory-mapped page.
func (as *Vm_t) LazyLoad(file Filer_i, ofs, upage, readBytes, zeroBytes int, writable bool, ptype Ptype_t, identity Identity_t, hasIdentity bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.pages[upage] = &Page_t{
		as: as, Upage: upage, Ptype: ptype, File: file, FileOfs: ofs,
		ReadBytes: readBytes, ZeroBytes: zeroBytes, Writable: writable,
		Identity: identity, hasIdentity: hasIdentity, slot: swap.NoSlot,
	}
}

/// FullLoadStack registers and immediately resolves a zeroed anonymous
/// ALLOC page, used to create the initial stack page.
func (as *Vm_t) FullLoadStack(upage int) defs.Err_t {
	as.mu.Lock()
	p := &Page_t{as: as, Upage: upage, Ptype: ALLOC, Writable: true, slot: swap.NoSlot}
	as.pages[upage] = p
	as.mu.Unlock()
	return as.resolve(p, true)
}

/// FullLoad is the fault-in entry point (spec.md §4.H "fault-in"): look
/// up the page at fault, fail if absent, then dispatch by type.
func (as *Vm_t) FullLoad(fault int) defs.Err_t {
	as.mu.Lock()
	p, ok := as.pages[fault]
	as.mu.Unlock()
	if !ok {
		return -defs.EFAULT
	}
	return as.resolve(p, false)
}

func (as *Vm_t) resolve(p *Page_t, zeroNew bool) defs.Err_t {
	switch p.Ptype {
	case UNALLOC:
		if !p.Writable && p.hasIdentity {
			if shared := as.g.findShare(p.Identity); shared != nil {
				as.frames.Share(shared.frame, p)
				p.frame = shared.frame
				as.install(p)
				as.frames.SetPinned(p.frame, false)
				return 0
			}
		}
		f := as.frames.Alloc(p, true)
		data := as.frames.Data(f)
		as.fillFromFile(p, data)
		p.frame = f
		p.Ptype = ALLOC
		as.install(p)
		if !p.Writable && p.hasIdentity {
			as.g.registerShare(p)
		}
		as.frames.SetPinned(f, false)
		return 0

	case FILE:
		f := as.frames.Alloc(p, true)
		data := as.frames.Data(f)
		as.fillFromFile(p, data)
		p.frame = f
		as.install(p)
		as.frames.SetPinned(f, false)
		return 0

	case ALLOC:
		f := as.frames.Alloc(p, true)
		data := as.frames.Data(f)
		if p.slot != swap.NoSlot {
			as.swap.SwapIn(p.slot, data)
			p.slot = swap.NoSlot
		} else if zeroNew {
			for i := range data {
				data[i] = 0
			}
		}
		p.frame = f
		as.install(p)
		as.mmu.SetDirty(p.Upage, true)
		as.frames.SetPinned(f, false)
		return 0
	}
	return -defs.EINVAL
}

func (as *Vm_t) fillFromFile(p *Page_t, data []byte) {
	n := 0
	if p.File != nil {
		n = p.File.ReadAt(data, p.ReadBytes, p.FileOfs)
	}
	for i := n; i < len(data); i++ {
		data[i] = 0
	}
}

func (as *Vm_t) install(p *Page_t) {
	as.mmu.Install(p.Upage, as.frames.Data(p.frame), p.Writable)
}

/// Free tears down one page (spec.md §4.H "teardown"): pins any
/// installed frame, removes this page as an owner (possibly freeing the
/// frame), clears the MMU entry, or discards an outstanding swap slot.
func (as *Vm_t) Free(upage int) {
	as.mu.Lock()
	p, ok := as.pages[upage]
	if ok {
		delete(as.pages, upage)
	}
	as.mu.Unlock()
	if !ok {
		return
	}

	if p.frame != nil {
		as.frames.SetPinned(p.frame, true)
		as.frames.Remove(p.frame, p)
		as.mmu.Clear(p.Upage)
		p.frame = nil
	} else if p.slot != swap.NoSlot {
		scratch := make([]byte, defs.PGSIZE)
		as.swap.SwapIn(p.slot, scratch)
		p.slot = swap.NoSlot
	}
}

/// Munmap tears down one page of a memory-mapped region, flushing it
/// back to its backing file first if it is dirty (spec.md §4.I step 5,
/// resolving Open Question #2: the flush happens synchronously here,
/// not deferred to a later eviction). Non-FILE pages behave exactly as
/// Free.
func (as *Vm_t) Munmap(upage int) {
	as.mu.Lock()
	p, ok := as.pages[upage]
	as.mu.Unlock()
	if ok && p.Ptype == FILE && p.Writable && p.frame != nil && p.File != nil && as.mmu.Dirty(p.Upage) {
		p.File.WriteAt(as.frames.Data(p.frame), len(as.frames.Data(p.frame)), p.FileOfs)
	}
	as.Free(upage)
}

/// Teardown frees every page in this address space and destroys its MMU
/// state (spec.md §4.I process_exit steps 5-6).
func (as *Vm_t) Teardown() {
	as.mu.Lock()
	upages := make([]int, 0, len(as.pages))
	for u := range as.pages {
		upages = append(upages, u)
	}
	as.mu.Unlock()

	for _, u := range upages {
		as.Free(u)
	}
	as.mmu.Destroy()
}

// access resolves upage (faulting it in if necessary) and returns its
// frame's backing bytes, recording access/dirty state in the MMU.
func (as *Vm_t) access(upage int, write bool) ([]byte, defs.Err_t) {
	as.mu.Lock()
	p, ok := as.pages[upage]
	as.mu.Unlock()
	if !ok {
		return nil, -defs.EFAULT
	}
	if write && !p.Writable {
		return nil, -defs.EFAULT
	}
	if p.frame == nil {
		if err := as.resolve(p, false); err != 0 {
			return nil, err
		}
	}
	if write {
		as.mmu.SetDirty(p.Upage, true)
	}
	as.mmu.SetAccessed(p.Upage, true)
	return as.frames.Data(p.frame), 0
}
