// Package swap implements a bitmap-backed slot allocator over a swap
// device, in the spirit of this tree's free-sector bitmap (see
// biscuit/src/fs/super.go's field-packed on-disk records) but kept purely
// in memory plus a page-granular disk, per spec.md §4.C.
package swap

import (
	"sync"

	"defs"
)

/// Disk_i is the block device backing swap. Each slot spans
/// defs.SECPERPG contiguous sectors.
type Disk_i interface {
	ReadSector(sector int, dst []byte)
	WriteSector(sector int, src []byte)
	SizeInSectors() int
}

/// Slot_t identifies a swap slot in [0, slot_count).
type Slot_t int

/// NoSlot marks "no swap slot occupied".
const NoSlot Slot_t = defs.SLOT_NONE

/// Swap_t is a single-lock bitmap allocator over disk; I/O happens
/// outside the lock (spec.md §4.C).
type Swap_t struct {
	mu    sync.Mutex
	used  []bool
	disk  Disk_i
	nslot int
}

/// MkSwap constructs a swap area with nslot slots over disk. disk must
/// have at least nslot*defs.SECPERPG sectors.
func MkSwap(disk Disk_i, nslot int) *Swap_t {
	return &Swap_t{used: make([]bool, nslot), disk: disk, nslot: nslot}
}

// _alloc finds and claims the lowest-numbered free slot, or NoSlot if the
// bitmap is saturated. Must be called with s.mu held.
func (s *Swap_t) _alloc() Slot_t {
	for i, u := range s.used {
		if !u {
			s.used[i] = true
			return Slot_t(i)
		}
	}
	return NoSlot
}

/// SwapOut writes page (defs.PGSIZE bytes) to a freshly allocated slot
/// and returns it. Panics if the bitmap is saturated — spec.md §4.C
/// names this the caller's policy, not swap's.
func (s *Swap_t) SwapOut(page []byte) Slot_t {
	s.mu.Lock()
	slot := s._alloc()
	s.mu.Unlock()

	if slot == NoSlot {
		panic("swap: area exhausted")
	}

	base := int(slot) * defs.SECPERPG
	for i := 0; i < defs.SECPERPG; i++ {
		lo, hi := i*defs.SECSIZE, (i+1)*defs.SECSIZE
		s.disk.WriteSector(base+i, page[lo:hi])
	}
	return slot
}

/// SwapIn reads slot's page back into dst (defs.PGSIZE bytes) and frees
/// the slot.
func (s *Swap_t) SwapIn(slot Slot_t, dst []byte) {
	base := int(slot) * defs.SECPERPG
	for i := 0; i < defs.SECPERPG; i++ {
		lo, hi := i*defs.SECSIZE, (i+1)*defs.SECSIZE
		s.disk.ReadSector(base+i, dst[lo:hi])
	}

	s.mu.Lock()
	s.used[slot] = false
	s.mu.Unlock()
}

/// Free releases slot without reading it back, used when a page's owner
/// is destroyed without ever being swapped back in.
func (s *Swap_t) Free(slot Slot_t) {
	if slot == NoSlot {
		return
	}
	s.mu.Lock()
	s.used[slot] = false
	s.mu.Unlock()
}
