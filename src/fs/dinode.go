package fs

import (
	"defs"
	"util"
)

/// NDIRECT is the number of direct extent pointers in a Dinode_t
/// (spec.md §3, "direct[10]").
const NDIRECT = 10

/// NIDIRECT is how many sector numbers fit in one indirect block:
/// sector_size / 4 bytes per pointer (spec.md §3, "128 sector numbers").
const NIDIRECT = defs.SECSIZE / 4

const dinodeMagic = 0x6269736b

// field offsets within a Dinode_t's on-disk sector, each a 4-byte value
// read/written via util.Readn/Writen — the same fixed-width record idiom
// this tree's fs/super.go uses for the superblock.
const (
	offMagic      = 0
	offIsdir      = 4
	offFileCount  = 8
	offLength     = 12
	offParent     = 16
	offDirect     = 20 // NDIRECT * 4 bytes follow
	offIndirect   = offDirect + NDIRECT*4
	offDindirect  = offIndirect + 4
	dinodeRecSize = offDindirect + 4
)

func fieldr(a []uint8, off int) int {
	return util.Readn(a, 4, off)
}

func fieldw(a []uint8, off int, v int) {
	util.Writen(a, 4, off, v)
}

/// Dinode_t is a single-sector on-disk inode record (spec.md §3).
/// It is a thin view over a caller-owned 512-byte buffer, not a copy —
/// callers pull that buffer from the sector cache, mutate through this
/// view, and mark the sector dirty themselves.
type Dinode_t struct {
	data []uint8
}

/// MkDinode wraps buf (which must be at least dinodeRecSize bytes) as a
/// Dinode_t view.
func MkDinode(buf []uint8) *Dinode_t {
	return &Dinode_t{data: buf}
}

/// Init stamps a fresh, empty inode record: all extents NO_SECTOR, zero
/// length, zero file_count, magic set.
func (d *Dinode_t) Init(isdir bool, parent int) {
	fieldw(d.data, offMagic, dinodeMagic)
	if isdir {
		fieldw(d.data, offIsdir, 1)
	} else {
		fieldw(d.data, offIsdir, 0)
	}
	fieldw(d.data, offFileCount, 0)
	fieldw(d.data, offLength, 0)
	fieldw(d.data, offParent, parent)
	for i := 0; i < NDIRECT; i++ {
		fieldw(d.data, offDirect+i*4, defs.NO_SECTOR)
	}
	fieldw(d.data, offIndirect, defs.NO_SECTOR)
	fieldw(d.data, offDindirect, defs.NO_SECTOR)
}

/// Valid reports whether this sector actually holds an inode (as opposed
/// to, say, an uninitialized or freed sector read by mistake).
func (d *Dinode_t) Valid() bool {
	return fieldr(d.data, offMagic) == dinodeMagic
}

func (d *Dinode_t) Isdir() bool        { return fieldr(d.data, offIsdir) != 0 }
func (d *Dinode_t) Filecount() int     { return fieldr(d.data, offFileCount) }
func (d *Dinode_t) Length() int        { return fieldr(d.data, offLength) }
func (d *Dinode_t) Parent() int        { return fieldr(d.data, offParent) }
func (d *Dinode_t) Indirect() int      { return fieldr(d.data, offIndirect) }
func (d *Dinode_t) Dindirect() int     { return fieldr(d.data, offDindirect) }

func (d *Dinode_t) SetFilecount(n int) { fieldw(d.data, offFileCount, n) }
func (d *Dinode_t) SetLength(n int)    { fieldw(d.data, offLength, n) }
func (d *Dinode_t) SetIndirect(s int)  { fieldw(d.data, offIndirect, s) }
func (d *Dinode_t) SetDindirect(s int) { fieldw(d.data, offDindirect, s) }

/// Direct returns the i'th direct extent pointer, i in [0, NDIRECT).
func (d *Dinode_t) Direct(i int) int {
	return fieldr(d.data, offDirect+i*4)
}

/// SetDirect sets the i'th direct extent pointer.
func (d *Dinode_t) SetDirect(i, sector int) {
	fieldw(d.data, offDirect+i*4, sector)
}

/// indirectEntry reads/writes one of the NIDIRECT sector numbers packed
/// into an indirect block's own 512-byte sector.
func indirectEntry(block []uint8, i int) int {
	return fieldr(block, i*4)
}

func setIndirectEntry(block []uint8, i, sector int) {
	fieldw(block, i*4, sector)
}