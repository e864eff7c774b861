package swap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
)

type fakedisk_t struct {
	sectors map[int][]byte
}

func mkFakeDisk() *fakedisk_t {
	return &fakedisk_t{sectors: make(map[int][]byte)}
}

func (d *fakedisk_t) ReadSector(sector int, dst []byte) {
	if buf, ok := d.sectors[sector]; ok {
		copy(dst, buf)
	}
}

func (d *fakedisk_t) WriteSector(sector int, src []byte) {
	buf := make([]byte, len(src))
	copy(buf, src)
	d.sectors[sector] = buf
}

func (d *fakedisk_t) SizeInSectors() int { return 1 << 20 }

func mkPage(fill byte) []byte {
	p := make([]byte, defs.PGSIZE)
	for i := range p {
		p[i] = fill
	}
	return p
}

func TestSwapOutInRoundTrip(t *testing.T) {
	s := MkSwap(mkFakeDisk(), 4)
	page := mkPage(0xab)

	slot := s.SwapOut(page)
	require.NotEqual(t, NoSlot, slot)

	dst := make([]byte, defs.PGSIZE)
	s.SwapIn(slot, dst)
	require.Equal(t, page, dst)
}

func TestSwapInFreesSlotForReuse(t *testing.T) {
	s := MkSwap(mkFakeDisk(), 1)

	slot := s.SwapOut(mkPage(1))
	dst := make([]byte, defs.PGSIZE)
	s.SwapIn(slot, dst)

	// the single slot must be reusable now that it was read back
	slot2 := s.SwapOut(mkPage(2))
	require.Equal(t, slot, slot2)
}

func TestSwapOutPanicsWhenSaturated(t *testing.T) {
	s := MkSwap(mkFakeDisk(), 1)
	s.SwapOut(mkPage(1))

	require.Panics(t, func() {
		s.SwapOut(mkPage(2))
	})
}

func TestFreeReturnsSlotWithoutReadback(t *testing.T) {
	s := MkSwap(mkFakeDisk(), 1)
	slot := s.SwapOut(mkPage(7))
	s.Free(slot)

	// freed slot must be available again
	slot2 := s.SwapOut(mkPage(8))
	require.Equal(t, slot, slot2)
}
