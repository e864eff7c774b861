// Package frame implements the physical (kernel-virtual) frame
// allocator: a fixed pool of byte-slice-backed frames, second-chance
// clock-sweep eviction, and multi-owner sharing for read-only executable
// pages (spec.md §4.G). It is grounded on this tree's cache.Cache_t
// two-tier locking discipline (table lock for directory-like search and
// owner-list bookkeeping, released around blocking eviction I/O) rather
// than the donor kernel's per-CPU-sharded Physmem_t, which is a
// real-multiprocessor concern this single dependency-ordered lock
// hierarchy has no use for.
package frame

import (
	"sync"

	"caller"
	"defs"
	"stats"
)

/// Pager_i decouples the frame table from whatever owns a frame's
/// contents (the supplemental page table, src/vm) so frame need not
/// import vm — spec.md §2's dependency order runs the other way (H
/// depends on G). The frame table calls back into a page's own Pager_i
/// only during eviction, to read its accessed/dirty state and to persist
/// its contents per its own type.
type Pager_i interface {
	/// Accessed reports this owner's accessed bit.
	Accessed() bool
	/// ClearAccessed clears this owner's accessed bit (second-chance
	/// clock sweep, spec.md §4.G step 2).
	ClearAccessed()
	/// Evict persists contents (the frame's current bytes, read once
	/// before any owner is unmapped) per this owner's own page type —
	/// swap-out if dirty and anonymous, write-back if dirty and
	/// file-backed, discard otherwise — then clears this owner's MMU
	/// mapping and its frame pointer. Called once per owner of a victim
	/// frame (spec.md §4.G "victim handling").
	Evict(contents []byte)
}

/// Owner_t names one mapping of a frame: the supplemental page that
/// installed it. spec.md's {process, user page base} pair lives inside
/// the Pager_i implementation itself (src/vm.Page_t), since frame has no
/// reason to know either.
type Owner_t struct {
	Pager Pager_i
}

/// Frame_t is a single physical frame: a fixed-size byte buffer plus its
/// owner list and pin bit.
type Frame_t struct {
	mu     sync.Mutex // guards pinned/owners
	data   []byte
	pinned bool
	owners []Owner_t
}

/// Table_t is the fixed pool of frames (spec.md §4.G).
type Table_t struct {
	mu     sync.Mutex // table lock: directory-like search, free-list, clock pointer
	frames []*Frame_t
	free   []*Frame_t
	clock  int

	Stats Fstats_t
}

/// Fstats_t counts frame-table activity: how many times Alloc is called,
/// and how many frames eviction has reclaimed.
type Fstats_t struct {
	Allocs    stats.Counter_t
	Evictions stats.Counter_t
}

/// Statistics renders the frame table's activity counters.
func (t *Table_t) Statistics() string {
	return stats.Stats2String(&t.Stats)
}

/// MkTable constructs a pool of n fixed defs.PGSIZE frames.
func MkTable(n int) *Table_t {
	t := &Table_t{frames: make([]*Frame_t, n), free: make([]*Frame_t, 0, n)}
	for i := range t.frames {
		f := &Frame_t{data: make([]byte, defs.PGSIZE)}
		t.frames[i] = f
		t.free = append(t.free, f)
	}
	return t
}

/// Data returns f's backing bytes.
func (t *Table_t) Data(f *Frame_t) []byte {
	return f.data
}

/// Alloc returns a free frame with pager installed as its sole owner,
/// running eviction once (and only once) if the pool is dry. Panics if
/// eviction cannot free one either (spec.md §4.G: "fails hard").
func (t *Table_t) Alloc(pager Pager_i, pinned bool) *Frame_t {
	t.Stats.Allocs.Inc()
	f := t.takeFree()
	if f == nil {
		if !t.evictOne() {
			panic("frame: pool exhausted")
		}
		f = t.takeFree()
		if f == nil {
			panic("frame: pool exhausted")
		}
	}
	f.mu.Lock()
	f.pinned = pinned
	f.owners = append(f.owners, Owner_t{Pager: pager})
	f.mu.Unlock()
	return f
}

/// Share appends pager as an additional owner of an already-installed
/// frame — used when two processes map the same read-only executable
/// page (spec.md §4.G "share").
func (t *Table_t) Share(f *Frame_t, pager Pager_i) {
	f.mu.Lock()
	f.owners = append(f.owners, Owner_t{Pager: pager})
	f.mu.Unlock()
}

/// Remove drops the owner matching pager; if the owner list becomes
/// empty, the frame is returned to the free pool.
func (t *Table_t) Remove(f *Frame_t, pager Pager_i) {
	f.mu.Lock()
	for i, o := range f.owners {
		if o.Pager == pager {
			f.owners = append(f.owners[:i], f.owners[i+1:]...)
			break
		}
	}
	empty := len(f.owners) == 0
	f.mu.Unlock()
	if empty {
		t.Free(f)
	}
}

/// Free relinquishes f to the allocator; the owner list must already be
/// empty.
func (t *Table_t) Free(f *Frame_t) {
	f.mu.Lock()
	if len(f.owners) != 0 {
		f.mu.Unlock()
		caller.Callerdump(1)
		panic("frame: free of frame with owners")
	}
	f.pinned = false
	f.mu.Unlock()

	t.mu.Lock()
	t.free = append(t.free, f)
	t.mu.Unlock()
}

/// SetPinned flips f's pin bit.
func (t *Table_t) SetPinned(f *Frame_t, pinned bool) {
	f.mu.Lock()
	f.pinned = pinned
	f.mu.Unlock()
}

func (t *Table_t) takeFree() *Frame_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.free) == 0 {
		return nil
	}
	f := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	return f
}

// evictOne runs the second-chance two-pass clock sweep (spec.md §4.G):
// advance the clock pointer, skip pinned frames, OR the accessed bit
// across owners (clearing all of them on a hit and continuing), and take
// the first unpinned-and-unaccessed frame as the victim. Bounded to
// three full cycles through the frame list.
func (t *Table_t) evictOne() bool {
	victim := t.pickVictim()
	if victim == nil {
		return false
	}
	t.Stats.Evictions.Inc()

	// The table lock is released for the duration of persisting
	// contents (spec.md §5: "released around blocking I/O for swap/
	// file writes"); the victim was pinned by pickVictim to prevent a
	// concurrent sweep from re-picking it in this window.
	contents := make([]byte, len(victim.data))
	copy(contents, victim.data)

	victim.mu.Lock()
	owners := append([]Owner_t(nil), victim.owners...)
	victim.mu.Unlock()

	for _, o := range owners {
		o.Pager.Evict(contents)
	}

	victim.mu.Lock()
	victim.owners = nil
	victim.pinned = false
	victim.mu.Unlock()

	t.mu.Lock()
	t.free = append(t.free, victim)
	t.mu.Unlock()
	return true
}

func (t *Table_t) pickVictim() *Frame_t {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.frames) == 0 {
		return nil
	}
	for cycle := 0; cycle < 3; cycle++ {
		for i := 0; i < len(t.frames); i++ {
			f := t.frames[t.clock]
			t.clock = (t.clock + 1) % len(t.frames)

			f.mu.Lock()
			if f.pinned || len(f.owners) == 0 {
				f.mu.Unlock()
				continue
			}
			accessed := false
			for _, o := range f.owners {
				if o.Pager.Accessed() {
					accessed = true
				}
			}
			if accessed {
				for _, o := range f.owners {
					o.Pager.ClearAccessed()
				}
				f.mu.Unlock()
				continue
			}
			f.pinned = true
			f.mu.Unlock()
			return f
		}
	}
	return nil
}
