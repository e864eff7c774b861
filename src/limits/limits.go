// Package limits tracks the system-wide resource budgets this kernel
// core is built to: how many frames, cache slots, swap slots, and open
// files exist, collected in one struct. Of these, only Openfiles is read
// elsewhere in the tree (by proc); the cache and the frame table take
// their sizes from cache.Nslots and frame.MkTable's argument.
package limits

import "unsafe"
import "sync/atomic"

/// Sysatomic_t is a numeric limit that can be atomically given or taken.
type Sysatomic_t int64

/// Syslimit_t tracks system wide resource limits relevant to the
/// VM/FS/sync core: frame pool size, swap slot count, sector-cache slot
/// count, and per-process open-file budget.
type Syslimit_t struct {
	// number of physical (kernel-virtual) frames in the frame table, §4.G
	Frames int
	// number of page-sized slots on the swap device, §4.C
	Swapslots int
	// number of slots in the sector cache, §4.B ("N = 64")
	Cacheslots int
	// per-process open-file-descriptor table size, §4.I ("OPEN_FILE_MAX")
	Openfiles int
	// total in-memory inodes budgeted system-wide (fs.Open does not
	// consult it)
	Vnodes Sysatomic_t
	// total outstanding processes
	Sysprocs Sysatomic_t
}

/// Syslimit holds the system-wide limits, constructed once at package
/// initialization; proc reads Openfiles from it when building fd tables.
var Syslimit *Syslimit_t = MkSysLimit()

/// MkSysLimit returns a pointer to the default set of limits matching
/// spec.md's stated budgets (N=64 cache slots, FRAME_COUNT≈256,
/// OPEN_FILE_MAX=1024).
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Frames:     256,
		Swapslots:  512,
		Cacheslots: 64,
		Openfiles:  1024,
		Vnodes:     20000,
		Sysprocs:   10000,
	}
}

func (s *Sysatomic_t) _aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

/// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(_n uint) {
	n := int64(_n)
	atomic.AddInt64(s._aptr(), n)
}

/// Taken tries to decrement the limit by the provided amount.
/// It returns true on success.
func (s *Sysatomic_t) Taken(_n uint) bool {
	n := int64(_n)
	g := atomic.AddInt64(s._aptr(), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s._aptr(), n)
	return false
}

/// Take decrements the limit and reports whether it succeeded.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

/// Give increments the limit by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}
