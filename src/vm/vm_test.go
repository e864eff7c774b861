package vm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"defs"
	"frame"
	"swap"
)

// fakeMmu_t is a minimal Mmu_i: a plain map standing in for a page
// directory, enough to exercise fault-in/eviction bookkeeping without a
// real hardware table. Accessed always reports false, so the frame
// table's clock sweep always treats every unpinned frame as an
// immediate eviction candidate, keeping victim choice deterministic.
type fakeMmu_t struct {
	pages map[int][]byte
	dirty map[int]bool
}

func mkFakeMmu() *fakeMmu_t {
	return &fakeMmu_t{pages: make(map[int][]byte), dirty: make(map[int]bool)}
}

func (m *fakeMmu_t) Install(upage int, kpage []byte, writable bool) bool {
	m.pages[upage] = kpage
	return true
}
func (m *fakeMmu_t) Clear(upage int)               { delete(m.pages, upage); delete(m.dirty, upage) }
func (m *fakeMmu_t) Accessed(upage int) bool       { return false }
func (m *fakeMmu_t) SetAccessed(upage int, v bool) {}
func (m *fakeMmu_t) Dirty(upage int) bool          { return m.dirty[upage] }
func (m *fakeMmu_t) SetDirty(upage int, v bool)    { m.dirty[upage] = v }
func (m *fakeMmu_t) Destroy()                      {}

// fakeSwapDisk_t is a page-granular in-memory stand-in for the swap
// device, sized generously so tests never run out of sectors.
type fakeSwapDisk_t struct {
	sectors map[int][defs.SECSIZE]byte
}

func mkFakeSwapDisk() *fakeSwapDisk_t {
	return &fakeSwapDisk_t{sectors: make(map[int][defs.SECSIZE]byte)}
}
func (d *fakeSwapDisk_t) ReadSector(sector int, dst []byte) {
	buf := d.sectors[sector]
	copy(dst, buf[:])
}
func (d *fakeSwapDisk_t) WriteSector(sector int, src []byte) {
	var buf [defs.SECSIZE]byte
	copy(buf[:], src)
	d.sectors[sector] = buf
}
func (d *fakeSwapDisk_t) SizeInSectors() int { return 1 << 16 }

// fakeFiler_t is a Filer_i whose reads always come back zeroed, used
// only to stand in for an executable's backing file in the frame-
// sharing test, where the page's contents don't matter.
type fakeFiler_t struct{}

func (fakeFiler_t) ReadAt(buf []byte, size, offset int) int  { return 0 }
func (fakeFiler_t) WriteAt(buf []byte, size, offset int) int { return size }

func mkTestVm(nframes int) (*Vm_t, *fakeMmu_t, *frame.Table_t) {
	g := MkGlobal()
	mmu := mkFakeMmu()
	frames := frame.MkTable(nframes)
	sw := swap.MkSwap(mkFakeSwapDisk(), 8)
	return MkVm(g, mmu, frames, sw), mmu, frames
}

// TestAllocPageSurvivesEvictionRoundTrip forces a real Page_t through
// frame.Table_t's eviction path (a one-frame pool, so the second
// fault-in must evict the first) and checks the dirty contents written
// before eviction come back byte-for-byte after a later fault-in swaps
// them back in (spec.md eviction-cleanliness property, scenarios
// S4/S5/S7, testable properties #6/#7).
func TestAllocPageSurvivesEvictionRoundTrip(t *testing.T) {
	as, mmu, _ := mkTestVm(1)

	require.Equal(t, defs.Err_t(0), as.FullLoadStack(0))

	data, err := as.access(0, true)
	require.Equal(t, defs.Err_t(0), err)
	pattern := make([]byte, len(data))
	for i := range pattern {
		pattern[i] = byte(i)
	}
	copy(data, pattern)
	require.True(t, mmu.Dirty(0), "a write access must mark the page dirty")

	// upage 1 exhausts the one-frame pool; evicting upage 0 must swap
	// its dirty contents out rather than discard them.
	require.Equal(t, defs.Err_t(0), as.FullLoadStack(1))

	p0 := as.pages[0]
	require.Nil(t, p0.frame, "evicted page must have lost its frame")
	require.NotEqual(t, swap.NoSlot, p0.slot, "a dirty ALLOC page must swap out, not degrade to UNALLOC")

	// faulting upage 0 back in evicts upage 1 in turn (still only one
	// frame) and must swap upage 0's contents back in unchanged.
	got, err := as.access(0, false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, pattern, got, "swap round trip must preserve the dirty page's contents")
}

// TestSharedExecutablePageFoundByIdentity checks frame-sharing across
// two address spaces: two LazyLoad calls naming the same Identity_t
// must resolve to a single shared frame, and the struct recorded in
// the cross-process index is the exact same (executable, offset) pair
// both pages were loaded with (spec.md §3's frame-sharing key).
func TestSharedExecutablePageFoundByIdentity(t *testing.T) {
	g := MkGlobal()
	frames := frame.MkTable(4)
	sw := swap.MkSwap(mkFakeSwapDisk(), 8)

	exe := &struct{ Name string }{"prog"}
	identity := Identity_t{Exe: exe, Ofs: 4096}

	as1 := MkVm(g, mkFakeMmu(), frames, sw)
	as1.LazyLoad(fakeFiler_t{}, 4096, 10, defs.PGSIZE, 0, false, UNALLOC, identity, true)
	require.Equal(t, defs.Err_t(0), as1.FullLoad(10))

	as2 := MkVm(g, mkFakeMmu(), frames, sw)
	as2.LazyLoad(fakeFiler_t{}, 4096, 20, defs.PGSIZE, 0, false, UNALLOC, identity, true)
	require.Equal(t, defs.Err_t(0), as2.FullLoad(20))

	p1 := as1.pages[10]
	p2 := as2.pages[20]
	require.Same(t, p1.frame, p2.frame, "identical identity must resolve to the same shared frame")

	if diff := cmp.Diff(p1.Identity, p2.Identity); diff != "" {
		t.Fatalf("shared pages recorded different identities (-p1 +p2):\n%s", diff)
	}

	other := Identity_t{Exe: exe, Ofs: 8192}
	if diff := cmp.Diff(identity, other); diff == "" {
		t.Fatal("a different offset into the same executable must not compare equal")
	}
}
